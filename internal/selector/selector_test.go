package selector

import (
	"context"
	"testing"

	"forest/internal/domain"
	"forest/internal/htaengine"
	"forest/internal/htastore"
	"forest/internal/kvstore"
)

func newTestTree(t *testing.T) (*htastore.Store, string, string) {
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
	return hstore, "proj_1", "default"
}

func TestSelectReturnsNilForMissingTree(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	hstore := htastore.New(kv, htaengine.New(nil), nil, nil)
	sel := New(hstore, nil, nil)

	task, err := sel.Select(context.Background(), "no-such-project", "default", domain.SelectionCriteria{EnergyLevel: 3, TimeAvailable: 30})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil task for missing tree")
	}
}

func TestSelectReturnsEligibleTask(t *testing.T) {
	hstore, projectID, path := newTestTree(t)
	sel := New(hstore, nil, nil)

	task, err := sel.Select(context.Background(), projectID, path, domain.SelectionCriteria{EnergyLevel: 3, TimeAvailable: 60})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if task == nil {
		t.Fatalf("expected a task to be selected")
	}
	if len(task.Prerequisites) != 0 {
		t.Fatalf("expected first selected task to have no prerequisites, got %v", task.Prerequisites)
	}
}

func TestSelectExcludesTasksWithUnsatisfiedPrerequisites(t *testing.T) {
	hstore, projectID, path := newTestTree(t)
	tree, err := hstore.Load(context.Background(), projectID, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	branch := tree.FrontierNodes[0].Branch
	var branchTasks []domain.FrontierNode
	for _, n := range tree.FrontierNodes {
		if n.Branch == branch {
			branchTasks = append(branchTasks, n)
		}
	}
	if len(branchTasks) < 2 {
		t.Fatalf("expected at least 2 tasks in branch %s", branch)
	}

	sel := New(hstore, nil, nil)
	task, err := sel.Select(context.Background(), projectID, path, domain.SelectionCriteria{EnergyLevel: 3, TimeAvailable: 60, FocusArea: branch})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if task == nil || task.ID != branchTasks[0].ID {
		t.Fatalf("expected first task in branch (%s) to be selected before its successor, got %v", branchTasks[0].ID, task)
	}
}

func TestSelectReturnsNilWhenAllTasksCompleted(t *testing.T) {
	hstore, projectID, path := newTestTree(t)
	tree, err := hstore.Load(context.Background(), projectID, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := range tree.FrontierNodes {
		tree.FrontierNodes[i].Status = domain.TaskCompleted
	}
	if err := hstore.Save(context.Background(), projectID, path, tree); err != nil {
		t.Fatalf("save: %v", err)
	}

	sel := New(hstore, nil, nil)
	task, err := sel.Select(context.Background(), projectID, path, domain.SelectionCriteria{EnergyLevel: 3, TimeAvailable: 60})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil task when all tasks completed, got %v", task)
	}
}
