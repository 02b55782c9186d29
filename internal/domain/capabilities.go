package domain

import "context"

// TreeBuilder materializes a tree for a (project, path). Nothing in this
// module consumes it: onboarding holds the concrete *htastore.Store, and the
// expansion agent uses its own TreeLoader/Expander interfaces.
type TreeBuilder interface {
	Build(ctx context.Context, projectID, path string) (*Tree, error)
}

// TreeMutator covers the evolver's and completion path's write access to a
// tree without pulling in the store's load/expand surface.
type TreeMutator interface {
	Load(ctx context.Context, projectID, path string) (*Tree, error)
	Save(ctx context.Context, projectID, path string, tree *Tree) error
}

// TaskSource covers the presenter's read-only dependency on the selector.
type TaskSource interface {
	Select(ctx context.Context, projectID, path string, criteria SelectionCriteria) (*FrontierNode, error)
}

// SelectionCriteria is the Task Selector's typed input (C8).
type SelectionCriteria struct {
	EnergyLevel    int
	TimeAvailable  int // minutes
	FocusArea      string
	Complexity     int
	SemanticQuery  string
}
