// Package vectorstore implements the Vector Index (C2): a sqlite-vec
// compatible approximate nearest-neighbor index used to mirror goal,
// branch, task, learning, and breakthrough embeddings alongside the
// authoritative JSON documents in the KV Store.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"forest/internal/domain"
	"forest/internal/logging"
)

// Store is a single vec0-backed collection. server.New opens one Store
// shared by every project and path (spec.md §4.2's "one logical index,
// id-namespaced"); callers keep their entries apart with ids that encode
// their own namespace prefix, as the onboarding and HTA packages do.
type Store struct {
	db    *sql.DB
	table string
	dim   int
}

// Result is one ranked match from Query.
type Result struct {
	ID         string
	Similarity float64
	Metadata   map[string]string
}

// QueryOptions bounds and filters a nearest-neighbor search.
type QueryOptions struct {
	K         int
	Threshold float64           // minimum cosine similarity, 0 means unset
	Filter    map[string]string // exact-match metadata filter, applied post-scan
}

// Open creates or attaches to a vec0 collection backed by the sqlite file at
// path (":memory:" for ephemeral/test stores). dim is recorded for
// dimension-mismatch checks at Upsert time; it is not enforced by sqlite
// itself.
func Open(path, table string, dim int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.VectorUnavailable{Err: err}
	}
	db.SetMaxOpenConns(1) // vecTable's in-process state isn't safe under concurrent writers across connections

	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0()", table)
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, domain.VectorUnavailable{Err: fmt.Errorf("create vec0 table %s: %w", table, err)}
	}

	return &Store{db: db, table: table, dim: dim}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the backing connection is reachable, surfaced by
// get_vector_status (spec.md §6).
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.VectorUnavailable{Err: err}
	}
	return nil
}

// Stats reports the collection's row count, used by get_vector_status.
func (s *Store) Stats(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table))
	if err := row.Scan(&n); err != nil {
		return 0, domain.VectorUnavailable{Err: err}
	}
	return n, nil
}

// Upsert inserts or replaces the vector and metadata under id (spec.md §4.2:
// re-indexing a known id must not create a duplicate match on the next
// query, invariant I5's mirror guarantee). metadata is flattened to a JSON
// string for vec0's metadata column.
func (s *Store) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if s.dim > 0 && len(vector) != s.dim {
		return domain.ValidationError{Key: "vector", Message: fmt.Sprintf("expected %d dimensions, got %d", s.dim, len(vector))}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return domain.StorageError{Op: "vectorstore.upsert.marshal", Err: err}
	}

	var rowid int64
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT rowid FROM %s WHERE content = ?", s.table), id)
	switch err := row.Scan(&rowid); err {
	case nil:
		_, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET embedding = ?, metadata = ? WHERE rowid = ?", s.table),
			encodeFloat32(vector), string(metaJSON), rowid)
		if err != nil {
			return domain.StorageError{Op: "vectorstore.upsert.update", Err: err}
		}
	case sql.ErrNoRows:
		_, err := s.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s(embedding, content, metadata) VALUES(?, ?, ?)", s.table),
			encodeFloat32(vector), id, string(metaJSON))
		if err != nil {
			return domain.StorageError{Op: "vectorstore.upsert.insert", Err: err}
		}
	default:
		return domain.StorageError{Op: "vectorstore.upsert.lookup", Err: err}
	}

	logging.VectorDebug("upsert id=%s dim=%d", id, len(vector))
	return nil
}

// Delete removes id from the collection. Deleting an absent id is a no-op,
// matching the KV Store's idempotent delete semantics.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE content = ?", s.table), id)
	if err != nil {
		return domain.StorageError{Op: "vectorstore.delete", Err: err}
	}
	return nil
}

// Query returns the opts.K nearest neighbors to vector by cosine similarity,
// highest similarity first with ties broken by ascending id (spec.md §4.2),
// respecting Threshold and Filter.
func (s *Store) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Result, error) {
	if s.dim > 0 && len(vector) != s.dim {
		return nil, domain.ValidationError{Key: "vector", Message: fmt.Sprintf("expected %d dimensions, got %d", s.dim, len(vector))}
	}
	k := opts.K
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT content, metadata, vector_distance_cos(embedding, ?) AS dist FROM %s ORDER BY dist ASC, content ASC", s.table),
		encodeFloat32(vector))
	if err != nil {
		return nil, domain.VectorUnavailable{Err: err}
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var content, metaJSON string
		var dist float64
		if err := rows.Scan(&content, &metaJSON, &dist); err != nil {
			return nil, domain.StorageError{Op: "vectorstore.query.scan", Err: err}
		}
		sim := 1 - dist
		if opts.Threshold > 0 && sim < opts.Threshold {
			continue
		}
		var meta map[string]string
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return nil, domain.StorageError{Op: "vectorstore.query.unmarshal", Err: err}
			}
		}
		if !matchesFilter(meta, opts.Filter) {
			continue
		}
		out = append(out, Result{ID: content, Similarity: sim, Metadata: meta})
		if len(out) >= k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.VectorUnavailable{Err: err}
	}
	return out, nil
}

func matchesFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}
