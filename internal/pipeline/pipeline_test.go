package pipeline

import (
	"context"
	"testing"

	"forest/internal/domain"
	"forest/internal/htaengine"
	"forest/internal/htastore"
	"forest/internal/kvstore"
	"forest/internal/selector"
)

func newTestPresenter(t *testing.T) (*Presenter, string, string) {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	engine := htaengine.New(nil)
	hstore := htastore.New(kv, engine, nil, nil)
	_, err = hstore.Build(context.Background(), "proj_1", "default", "Master portrait photography", htastore.BuildArgs{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sel := selector.New(hstore, nil, nil)
	return New(sel, hstore, nil), "proj_1", "default"
}

func TestNextPipelineReturnsUpToDefaultWindow(t *testing.T) {
	p, projectID, path := newTestPresenter(t)
	window, err := p.NextPipeline(context.Background(), projectID, path, Criteria{EnergyLevel: 3, TimeAvailable: 60}, 0)
	if err != nil {
		t.Fatalf("next pipeline: %v", err)
	}
	if len(window) == 0 || len(window) > DefaultWindowSize {
		t.Fatalf("expected 1-%d tasks, got %d", DefaultWindowSize, len(window))
	}
}

func TestNextPipelineMaximizesBranchCoverage(t *testing.T) {
	p, projectID, path := newTestPresenter(t)
	window, err := p.NextPipeline(context.Background(), projectID, path, Criteria{EnergyLevel: 3, TimeAvailable: 60}, 5)
	if err != nil {
		t.Fatalf("next pipeline: %v", err)
	}
	seen := make(map[string]bool)
	for _, n := range window {
		if seen[n.Branch] {
			continue
		}
		seen[n.Branch] = true
	}
	if len(seen) < 2 && len(window) > 1 {
		t.Fatalf("expected window to cover more than one branch when possible, got %d distinct branches across %d tasks", len(seen), len(window))
	}
}

func TestNextPipelineReturnsNilForMissingTree(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	hstore := htastore.New(kv, htaengine.New(nil), nil, nil)
	sel := selector.New(hstore, nil, nil)
	p := New(sel, hstore, nil)

	window, err := p.NextPipeline(context.Background(), "no-such-project", "default", Criteria{EnergyLevel: 3, TimeAvailable: 30}, 0)
	if err != nil {
		t.Fatalf("next pipeline: %v", err)
	}
	if window != nil {
		t.Fatalf("expected nil window for missing tree")
	}
}

func TestNextPipelineDoesNotMutateTaskStatus(t *testing.T) {
	p, projectID, path := newTestPresenter(t)
	_, err := p.NextPipeline(context.Background(), projectID, path, Criteria{EnergyLevel: 3, TimeAvailable: 60}, 3)
	if err != nil {
		t.Fatalf("next pipeline: %v", err)
	}

	tree, err := p.tree.Load(context.Background(), projectID, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, n := range tree.FrontierNodes {
		if n.Status != domain.TaskPending {
			t.Fatalf("expected all tasks to remain pending after presentation, got %s for %s", n.Status, n.ID)
		}
	}
}
