package vectorstore

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sync"

	"modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// This file registers a minimal, pure-Go virtual table ("vec0") and a
// "vector_distance_cos" scalar function against modernc.org/sqlite, giving
// the default backend sqlite-vec-compatible SQL surface without cgo. It
// backs every frontier/branch/goal/learning embedding the store indexes;
// see store.go for the public Upsert/Query/Delete API built on top of it.

func init() {
	registerVecCompat()
}

func registerVecCompat() {
	vtab.RegisterModule(nil, "vec0", &vecModule{})
	sqlite.RegisterDeterministicScalarFunction("vector_distance_cos", 2, vecDistanceCos)
}

type vecModule struct{}

func (m *vecModule) Create(c *sqlite.Conn, args []string) (vtab.Table, error) {
	return m.connect(c, args)
}

func (m *vecModule) Connect(c *sqlite.Conn, args []string) (vtab.Table, error) {
	return m.connect(c, args)
}

func (m *vecModule) connect(c *sqlite.Conn, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vectorstore: vec0 requires a table name argument")
	}
	name := args[2]

	if err := c.DeclareVTab("CREATE TABLE x(embedding BLOB, content TEXT, metadata TEXT)"); err != nil {
		return nil, err
	}

	vecTablesMu.Lock()
	tbl, ok := vecTables[name]
	if !ok {
		tbl = &vecTable{name: name, nextRowID: 1}
		vecTables[name] = tbl
	}
	vecTablesMu.Unlock()

	return tbl, nil
}

var (
	vecTablesMu sync.RWMutex
	vecTables   = map[string]*vecTable{}
)

// vecTable is the in-memory backing store for one vec0 virtual table
// instance. Delete removes the row from the slice outright; new rows take
// their rowid from nextRowID, which a delete never winds back.
type vecTable struct {
	name      string
	mu        sync.RWMutex
	rows      []vecRow
	nextRowID int64
}

// vecRow is one indexed document: embedding is the raw float32 vector,
// content carries the caller's string id, metadata carries a JSON blob.
type vecRow struct {
	rowid    int64
	embedding []byte
	content   string
	metadata  string
}

func (t *vecTable) BestIndex(*vtab.IndexInfo) error {
	return nil // full scan only; no index pushdowns
}

func (t *vecTable) Open() (vtab.Cursor, error) {
	return &vecCursor{tbl: t}, nil
}

func (t *vecTable) Disconnect() error { return nil }

func (t *vecTable) Destroy() error {
	vecTablesMu.Lock()
	delete(vecTables, t.name)
	vecTablesMu.Unlock()
	return nil
}

func (t *vecTable) Insert(rowid int64, values []driver.Value) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextRowID
	if rowid != 0 {
		id = rowid
	}
	t.nextRowID = id + 1

	row := vecRow{rowid: id}
	if len(values) > 0 {
		row.embedding = coerceBlob(values[0])
	}
	if len(values) > 1 {
		row.content = toString(values[1])
	}
	if len(values) > 2 {
		row.metadata = toString(values[2])
	}
	t.rows = append(t.rows, row)
	return id, nil
}

func (t *vecTable) Update(rowid int64, values []driver.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].rowid == rowid {
			if len(values) > 0 {
				t.rows[i].embedding = coerceBlob(values[0])
			}
			if len(values) > 1 {
				t.rows[i].content = toString(values[1])
			}
			if len(values) > 2 {
				t.rows[i].metadata = toString(values[2])
			}
			return nil
		}
	}
	return fmt.Errorf("vectorstore: update of unknown rowid %d", rowid)
}

func (t *vecTable) Delete(rowid int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].rowid == rowid {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

type vecCursor struct {
	tbl *vecTable
	idx int
}

func (c *vecCursor) Filter(...driver.Value) error {
	c.idx = 0
	return nil
}

func (c *vecCursor) Next() error {
	c.idx++
	return nil
}

func (c *vecCursor) Eof() bool {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	return c.idx >= len(c.tbl.rows)
}

func (c *vecCursor) Column(col int) (driver.Value, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	row := c.tbl.rows[c.idx]
	switch col {
	case 0:
		return row.embedding, nil
	case 1:
		return row.content, nil
	case 2:
		return row.metadata, nil
	default:
		return nil, fmt.Errorf("vectorstore: no column %d", col)
	}
}

func (c *vecCursor) Rowid() (int64, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	return c.tbl.rows[c.idx].rowid, nil
}

func (c *vecCursor) Close() error { return nil }

// vecDistanceCos implements "vector_distance_cos(a, b)" as 1 - cosine
// similarity, matching sqlite-vec's convention so query ordering (ascending
// distance) is identical whether the cgo extension or this fallback is
// loaded.
func vecDistanceCos(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vectorstore: vector_distance_cos takes 2 arguments")
	}
	a, err := decodeFloat32(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeFloat32(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vectorstore: dimension mismatch %d vs %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1.0, nil
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return 1 - sim, nil
}

func decodeFloat32(v driver.Value) ([]float32, error) {
	switch val := v.(type) {
	case []float32:
		return val, nil
	case []float64:
		out := make([]float32, len(val))
		for i, f := range val {
			out[i] = float32(f)
		}
		return out, nil
	case []byte:
		return bytesToFloat32(val)
	case string:
		return bytesToFloat32([]byte(val))
	default:
		return nil, fmt.Errorf("vectorstore: unsupported vector encoding %T", v)
	}
}

func coerceBlob(v driver.Value) []byte {
	switch val := v.(type) {
	case []byte:
		return val
	case string:
		return []byte(val)
	default:
		return nil
	}
}

func toString(v driver.Value) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
