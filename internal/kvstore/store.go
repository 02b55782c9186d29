package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"forest/internal/domain"
	"forest/internal/logging"
)

// Store is a JSON document store rooted at a data directory. Every
// operation takes a path relative to that root (see paths.go). Writes are
// atomic (temp file + rename); reads are cached in-process until
// invalidated by a write, delete, or ClearCache.
type Store struct {
	root  string
	cache sync.Map // relative path -> []byte, last-written/last-read contents
}

// Open ensures root exists and returns a Store rooted there.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.StorageError{Op: "kvstore.open", Err: err}
	}
	return &Store{root: root}, nil
}

// Read unmarshals the document at path into v. Returns (false, nil) if the
// document does not exist; callers treat that as "use defaults".
func (s *Store) Read(path string, v any) (bool, error) {
	timer := logging.StartTimer(logging.CategoryKV, "read:"+path)
	defer timer.Stop()

	if cached, ok := s.cache.Load(path); ok {
		if err := json.Unmarshal(cached.([]byte), v); err != nil {
			return false, domain.StorageError{Op: "kvstore.read.unmarshal", Err: err}
		}
		return true, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError{Op: "kvstore.read", Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, domain.StorageError{Op: "kvstore.read.unmarshal", Err: err}
	}
	s.cache.Store(path, data)
	return true, nil
}

// Write marshals v and atomically replaces the document at path.
func (s *Store) Write(path string, v any) error {
	timer := logging.StartTimer(logging.CategoryKV, "write:"+path)
	defer timer.Stop()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.StorageError{Op: "kvstore.write.marshal", Err: err}
	}
	if err := s.writeAtomic(path, data); err != nil {
		return err
	}
	s.cache.Store(path, data)
	return nil
}

// Delete removes the document at path. Deleting an absent document is a
// no-op.
func (s *Store) Delete(path string) error {
	full := filepath.Join(s.root, path)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return domain.StorageError{Op: "kvstore.delete", Err: err}
	}
	s.cache.Delete(path)
	return nil
}

// DeleteProject removes a project's entire directory tree and invalidates
// every cache entry under it, backing factory_reset_forest for a single
// project.
func (s *Store) DeleteProject(projectID string) error {
	full := filepath.Join(s.root, ProjectDir(projectID))
	if err := os.RemoveAll(full); err != nil {
		return domain.StorageError{Op: "kvstore.delete_project", Err: err}
	}
	prefix := ProjectDir(projectID)
	s.cache.Range(func(key, _ any) bool {
		if p, ok := key.(string); ok && hasPrefix(p, prefix) {
			s.cache.Delete(p)
		}
		return true
	})
	return nil
}

// DeleteAll removes every project, backing factory_reset_forest(all).
func (s *Store) DeleteAll() error {
	full := filepath.Join(s.root, "projects")
	if err := os.RemoveAll(full); err != nil {
		return domain.StorageError{Op: "kvstore.delete_all", Err: err}
	}
	s.ClearCache()
	return s.Write(GlobalConfigPath(), domain.GlobalConfig{})
}

// ClearCache drops every cached document, forcing the next Read from each
// path to hit disk. Exposed as the clear_cache diagnostic operation.
func (s *Store) ClearCache() {
	s.cache.Range(func(key, _ any) bool {
		s.cache.Delete(key)
		return true
	})
}

// CacheSize reports the number of cached documents, used by the diagnostic
// cache tools.
func (s *Store) CacheSize() int {
	n := 0
	s.cache.Range(func(_, _ any) bool { n++; return true })
	return n
}

func (s *Store) writeAtomic(path string, data []byte) error {
	full := filepath.Join(s.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return domain.StorageError{Op: "kvstore.write.mkdir", Err: err}
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.StorageError{Op: "kvstore.write.tmp", Err: err}
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return domain.StorageError{Op: "kvstore.write.rename", Err: err}
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
