package router

import (
	"context"

	"forest/internal/domain"
)

// CompleteBlockRequest is complete_block_forest's typed argument set
// (Design Notes: parse dynamic argument maps into typed request structs at
// the router boundary).
type CompleteBlockRequest struct {
	BlockID           string
	Outcome           string
	EnergyLevel       int
	Learned           string
	DifficultyRating  int
	Breakthrough      bool
}

// FactoryResetRequest is factory_reset_forest's typed argument set.
type FactoryResetRequest struct {
	ConfirmDeletion     bool
	ConfirmationMessage string
	ProjectID           string // empty means "all projects"
}

// Deps is every component operation the router's dispatch table calls
// into. Each field is wired to a concrete component method at server
// construction time; the router itself holds no business logic.
type Deps struct {
	CreateProject        func(ctx context.Context, goal string) (*domain.Project, error)
	SwitchProject        func(ctx context.Context, projectID string) error
	ListProjects         func(ctx context.Context) ([]domain.ProjectSummary, error)
	GetActiveProject     func(ctx context.Context, projectID string) (*domain.Project, error)

	BuildTree    func(ctx context.Context, projectID, path string) (*domain.Tree, error)
	GetTreeStatus func(ctx context.Context, projectID, path string) (*domain.Tree, error)

	SelectTask    func(ctx context.Context, projectID, path string, criteria domain.SelectionCriteria) (*domain.FrontierNode, error)
	CompleteBlock func(ctx context.Context, projectID, path string, req CompleteBlockRequest) (*domain.FrontierNode, error)
	EvolveStrategy func(ctx context.Context, projectID, path, hint string) (any, error)

	CurrentStatus func(ctx context.Context, projectID string) (any, error)
	SyncMemory    func(ctx context.Context, projectID, path string) (any, error)

	StartOnboarding      func(ctx context.Context, projectID string) (*domain.OnboardingState, error)
	ContinueOnboarding   func(ctx context.Context, projectID string, args map[string]any) (*domain.OnboardingState, error)
	GetOnboardingStatus  func(ctx context.Context, projectID string) (*domain.OnboardingState, error)
	CompleteOnboarding   func(ctx context.Context, projectID string, finalConfirmation bool) (*domain.OnboardingState, error)

	NextPipeline   func(ctx context.Context, projectID, path string) (any, error)
	EvolvePipeline func(ctx context.Context, projectID, path string) (any, error)

	FactoryReset func(ctx context.Context, req FactoryResetRequest) error

	ProcessBridgeResponse func(ctx context.Context, requestID, response string) (*domain.ResponseEnvelope, error)
}
