package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"forest/internal/domain"
	"forest/internal/logging"
)

// Tx batches several document writes so they commit atomically: either all
// of them land or none do (spec.md §5: "in-flight KV/Vector writes must
// either complete atomically or roll back — partial commits are
// forbidden"). Staged writes are invisible to Read until Commit.
type Tx struct {
	store   *Store
	staged  map[string][]byte
	deleted map[string]bool
}

// BeginTx opens a transaction against the store.
func (s *Store) BeginTx() *Tx {
	return &Tx{store: s, staged: make(map[string][]byte), deleted: make(map[string]bool)}
}

// Write stages v to be written at path on Commit.
func (tx *Tx) Write(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.StorageError{Op: "kvstore.tx.write.marshal", Err: err}
	}
	tx.staged[path] = data
	delete(tx.deleted, path)
	return nil
}

// Delete stages a removal of path on Commit.
func (tx *Tx) Delete(path string) {
	tx.deleted[path] = true
	delete(tx.staged, path)
}

// Commit applies every staged write and delete. If any step fails, every
// file already committed in this transaction is restored to its
// pre-transaction content (or removed, if it didn't exist before), and the
// first error is returned.
func (tx *Tx) Commit() error {
	type applied struct {
		path       string
		hadBackup  bool
		backup     []byte
		wasDeleted bool
	}
	var done []applied

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			a := done[i]
			full := filepath.Join(tx.store.root, a.path)
			if a.hadBackup {
				os.WriteFile(full, a.backup, 0o644)
				tx.store.cache.Store(a.path, a.backup)
			} else {
				os.Remove(full)
				tx.store.cache.Delete(a.path)
			}
		}
		logging.Get(logging.CategoryKV).Warn("transaction rolled back after %d applied step(s)", len(done))
	}

	for path, data := range tx.staged {
		backup, hadBackup := tx.readRaw(path)
		if err := tx.store.writeAtomic(path, data); err != nil {
			rollback()
			return err
		}
		tx.store.cache.Store(path, data)
		done = append(done, applied{path: path, hadBackup: hadBackup, backup: backup})
	}
	for path := range tx.deleted {
		backup, hadBackup := tx.readRaw(path)
		full := filepath.Join(tx.store.root, path)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			rollback()
			return domain.StorageError{Op: "kvstore.tx.delete", Err: err}
		}
		tx.store.cache.Delete(path)
		done = append(done, applied{path: path, hadBackup: hadBackup, backup: backup, wasDeleted: true})
	}
	return nil
}

// Rollback discards every staged change without touching disk.
func (tx *Tx) Rollback() {
	tx.staged = make(map[string][]byte)
	tx.deleted = make(map[string]bool)
}

func (tx *Tx) readRaw(path string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(tx.store.root, path))
	if err != nil {
		return nil, false
	}
	return data, true
}
