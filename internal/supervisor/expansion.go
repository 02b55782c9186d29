package supervisor

import (
	"context"
	"time"

	"forest/internal/domain"
)

// ActiveProjectLocator resolves the single active project's (id, path), the
// scope the Expansion Agent checks on each tick (spec.md §4.10: "the active
// project's tree").
type ActiveProjectLocator interface {
	ActivePath(ctx context.Context) (projectID, path string, ok bool, err error)
}

// TreeLoader is the read-only dependency the Expansion Agent needs from the
// HTA Store.
type TreeLoader interface {
	Load(ctx context.Context, projectID, path string) (*domain.Tree, error)
}

// Expander materializes more frontier, either by expanding depth or by
// running another C6.build pass; the concrete implementation is wired at
// server construction from the HTA Store and HTA Engine.
type Expander interface {
	Expand(ctx context.Context, projectID, path string) error
}

// eligibleFrontierCount counts frontier tasks that are not completed and
// whose prerequisites are all satisfied (spec.md §4.10's eligible_frontier).
func eligibleFrontierCount(tree *domain.Tree) int {
	completed := make(map[string]bool, len(tree.CompletedNodes))
	for _, n := range tree.CompletedNodes {
		completed[n.ID] = true
	}
	count := 0
	for _, n := range tree.FrontierNodes {
		if n.Status == domain.TaskCompleted {
			continue
		}
		ok := true
		for _, p := range n.Prerequisites {
			if !completed[p] {
				ok = false
				break
			}
		}
		if ok {
			count++
		}
	}
	return count
}

// NewExpansionAgent builds the Job spec.md §4.10 describes: on each tick (or
// on a task_completed/hta_tree_updated event) it loads the active project's
// tree, counts eligible_frontier, and triggers expansion when it falls
// below minAvailableTasks.
func NewExpansionAgent(active ActiveProjectLocator, loader TreeLoader, expander Expander, interval time.Duration, minAvailableTasks int) Job {
	run := func(ctx context.Context) error {
		projectID, path, ok, err := active.ActivePath(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		tree, err := loader.Load(ctx, projectID, path)
		if err != nil {
			return err
		}
		if tree == nil {
			return nil
		}
		if eligibleFrontierCount(tree) >= minAvailableTasks {
			return nil
		}
		return expander.Expand(ctx, projectID, path)
	}

	return Job{
		Name:     "expansion_agent",
		Interval: interval,
		Run:      run,
		Triggers: []EventType{EventTaskCompleted, EventTreeUpdated},
	}
}
