package htastore

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"forest/internal/htaengine"
	"forest/internal/kvstore"
	"forest/internal/vectorstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	engine := htaengine.New(nil)
	return New(kv, engine, nil, nil)
}

// constEmbedder returns a fixed-length all-ones vector regardless of input,
// enough to exercise Upsert/Query's id and metadata plumbing without a real
// embedding backend.
type constEmbedder struct{ dim int }

func (c constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, c.dim)
	for i := range v {
		v[i] = 1
	}
	return v, nil
}

func (c constEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = c.Embed(ctx, texts[i])
	}
	return out, nil
}

func (c constEmbedder) Dimensions() int { return c.dim }
func (c constEmbedder) Name() string    { return "const-test" }

// TestMirrorUsesNamespacedVectorIDs asserts the vector ids mirror writes
// follow spec.md §6's "<project>:goal" / "<project>:branch:<name>" /
// "<project>:task:<id>" scheme, so that a shared vector index never lets one
// project's frontier task collide with another's bare task id (I5).
func TestMirrorUsesNamespacedVectorIDs(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	vec, err := vectorstore.Open(":memory:", "vectors", 0)
	if err != nil {
		t.Fatalf("open vec: %v", err)
	}
	defer vec.Close()
	embedder := constEmbedder{dim: 8}
	engine := htaengine.New(nil)
	s := New(kv, engine, vec, embedder)
	ctx := context.Background()

	tree, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	probe, _ := embedder.Embed(ctx, "x")
	results, err := vec.Query(ctx, probe, vectorstore.QueryOptions{K: 1000})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected mirrored vectors, got none")
	}

	var sawGoal, sawBranch, sawTask bool
	for _, r := range results {
		switch {
		case r.ID == "proj_1:goal":
			sawGoal = true
		case strings.HasPrefix(r.ID, "proj_1:branch:"):
			sawBranch = true
		case strings.HasPrefix(r.ID, "proj_1:task:"):
			sawTask = true
		default:
			t.Fatalf("unexpected un-namespaced vector id %q", r.ID)
		}
	}
	if !sawGoal || !sawBranch || !sawTask {
		t.Fatalf("expected goal, branch, and task ids all mirrored, got %+v", results)
	}

	for _, n := range tree.FrontierNodes {
		for _, r := range results {
			if r.ID == n.ID {
				t.Fatalf("found bare frontier task id %q as a vector id, expected namespaced proj_1:task:%s", n.ID, n.ID)
			}
		}
	}
}

func TestBuildPersistsTreeWithFrontier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tree, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(tree.FrontierNodes) == 0 {
		t.Fatalf("expected frontier nodes after build")
	}
	if tree.AvailableDepth != 2 {
		t.Fatalf("expected available_depth 2 after L1+L2, got %d", tree.AvailableDepth)
	}

	loaded, err := s.Load(ctx, "proj_1", "default")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || len(loaded.FrontierNodes) != len(tree.FrontierNodes) {
		t.Fatalf("expected persisted tree to match built tree")
	}
	if diff := cmp.Diff(tree, loaded); diff != "" {
		t.Fatalf("load after build should round-trip the tree exactly (-built +loaded):\n%s", diff)
	}
}

func TestBuildIsIdempotentWhenFrontierNonEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build (again): %v", err)
	}
	if len(first.FrontierNodes) != len(second.FrontierNodes) {
		t.Fatalf("expected idempotent build, got %d then %d frontier nodes", len(first.FrontierNodes), len(second.FrontierNodes))
	}
}

func TestLoadMissingTreeReturnsNil(t *testing.T) {
	s := newTestStore(t)
	tree, err := s.Load(context.Background(), "proj_missing", "default")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tree != nil {
		t.Fatalf("expected nil tree for unknown project")
	}
}

func TestSaveRejectsFrontierNodeWithUnknownBranch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tree, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree.FrontierNodes[0].Branch = "does-not-exist"

	if err := s.Save(ctx, "proj_1", "default", tree); err == nil {
		t.Fatalf("expected I1 conflict for unknown branch reference")
	}
}

func TestSaveRejectsDanglingPrerequisite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tree, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree.FrontierNodes[len(tree.FrontierNodes)-1].Prerequisites = []string{"no-such-task"}

	if err := s.Save(ctx, "proj_1", "default", tree); err == nil {
		t.Fatalf("expected I2 conflict for dangling prerequisite")
	}
}

func TestExistingTreeResponseSummarizesWithoutMutating(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tree, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	summary := ExistingTreeResponse(tree)
	if summary.FrontierCount != len(tree.FrontierNodes) {
		t.Fatalf("expected frontier count %d, got %d", len(tree.FrontierNodes), summary.FrontierCount)
	}
}

func TestEnsureFrontierNodesRecoversEmptyFrontier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tree, err := s.Build(ctx, "proj_1", "default", "Master portrait photography", BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree.FrontierNodes = nil

	if err := s.EnsureFrontierNodes(ctx, "proj_1", "default", tree); err != nil {
		t.Fatalf("ensure frontier nodes: %v", err)
	}
	if len(tree.FrontierNodes) == 0 {
		t.Fatalf("expected frontier to be re-synthesized")
	}
}
