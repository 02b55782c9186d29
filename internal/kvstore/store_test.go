package kvstore

import (
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Write(GoalMetadataPath("p1"), sample{Name: "x", Count: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got sample
	ok, err := s.Read(GoalMetadataPath("p1"), &got)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Fatalf("unexpected content: %+v", got)
	}
}

func TestReadMissingDocumentReturnsFalseNoError(t *testing.T) {
	s, _ := Open(t.TempDir())
	var got sample
	ok, err := s.Read(GoalMetadataPath("nonexistent"), &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing document")
	}
}

func TestClearCacheForcesDiskRead(t *testing.T) {
	root := t.TempDir()
	s, _ := Open(root)
	_ = s.Write(GoalMetadataPath("p1"), sample{Name: "first"})

	var got sample
	s.Read(GoalMetadataPath("p1"), &got)
	if s.CacheSize() != 1 {
		t.Fatalf("expected 1 cached document, got %d", s.CacheSize())
	}
	s.ClearCache()
	if s.CacheSize() != 0 {
		t.Fatalf("expected cache cleared")
	}
}

func TestDeleteProjectRemovesDirectoryAndCache(t *testing.T) {
	root := t.TempDir()
	s, _ := Open(root)
	_ = s.Write(GoalMetadataPath("p1"), sample{Name: "x"})
	_ = s.Write(TreePath("p1", "general"), sample{Name: "tree"})

	if err := s.DeleteProject("p1"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if s.CacheSize() != 0 {
		t.Fatalf("expected all project cache entries invalidated")
	}
	if ok, _ := s.Read(GoalMetadataPath("p1"), &sample{}); ok {
		t.Fatalf("expected project document gone")
	}
}

func TestTxCommitAppliesAllWrites(t *testing.T) {
	s, _ := Open(t.TempDir())
	tx := s.BeginTx()
	if err := tx.Write(GoalMetadataPath("p1"), sample{Name: "a"}); err != nil {
		t.Fatalf("stage write: %v", err)
	}
	if err := tx.Write(BranchMetadataPath("p1"), sample{Name: "b"}); err != nil {
		t.Fatalf("stage write: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var got sample
	if ok, _ := s.Read(GoalMetadataPath("p1"), &got); !ok || got.Name != "a" {
		t.Fatalf("expected committed goal metadata, got %+v ok=%v", got, ok)
	}
	if ok, _ := s.Read(BranchMetadataPath("p1"), &got); !ok || got.Name != "b" {
		t.Fatalf("expected committed branch metadata, got %+v ok=%v", got, ok)
	}
}

func TestTxRollbackDiscardsStagedWrites(t *testing.T) {
	s, _ := Open(t.TempDir())
	tx := s.BeginTx()
	_ = tx.Write(GoalMetadataPath("p1"), sample{Name: "a"})
	tx.Rollback()

	if ok, _ := s.Read(GoalMetadataPath("p1"), &sample{}); ok {
		t.Fatalf("rolled-back write should not be visible")
	}
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	root := t.TempDir()
	s, _ := Open(root)
	if err := s.Write(TreePath("p1", "photography"), sample{Name: "tree"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := filepath.Glob(filepath.Join(root, "projects", "p1", "photography", "hta.json")); err != nil {
		t.Fatalf("glob: %v", err)
	}
}
