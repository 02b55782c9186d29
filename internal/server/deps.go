package server

import (
	"context"

	"forest/internal/domain"
	"forest/internal/evolver"
	"forest/internal/htastore"
	"forest/internal/pipeline"
	"forest/internal/router"
	"forest/internal/supervisor"
)

// buildDeps wires every router.Deps function field to a concrete Server
// method or a small inline adapter. The router owns no business logic; all
// of it lives here and in the component packages.
func (s *Server) buildDeps() router.Deps {
	return router.Deps{
		CreateProject:    s.project.Create,
		SwitchProject:    s.project.Switch,
		ListProjects:     s.project.List,
		GetActiveProject: func(ctx context.Context, _ string) (*domain.Project, error) { return s.project.GetActive(ctx) },

		BuildTree:     s.buildTree,
		GetTreeStatus: s.hta.Load,

		SelectTask:    s.selector.Select,
		CompleteBlock: s.completeBlock,
		EvolveStrategy: func(ctx context.Context, projectID, path, hint string) (any, error) {
			result, err := s.strategyEvolver.Evolve(ctx, projectID, path, hint)
			if err != nil {
				return nil, err
			}
			if result.Kind != evolver.NoEvolution {
				s.supervisor.Publish(supervisor.Event{Type: supervisor.EventTreeUpdated, ProjectID: projectID, Path: path})
			}
			return result, nil
		},

		CurrentStatus: s.currentStatus,
		SyncMemory:    s.syncMemory,

		StartOnboarding:     s.startOnboarding,
		ContinueOnboarding:  s.continueOnboarding,
		GetOnboardingStatus: s.onboarding.Status,
		CompleteOnboarding:  s.completeOnboarding,

		NextPipeline: func(ctx context.Context, projectID, path string) (any, error) {
			return s.pipeline.NextPipeline(ctx, projectID, path, pipeline.Criteria{}, 0)
		},
		EvolvePipeline: func(ctx context.Context, projectID, path string) (any, error) {
			return s.pipeline.EvolvePipeline(ctx, projectID, path, nil, pipeline.Criteria{}, 0)
		},

		FactoryReset: s.factoryReset,

		ProcessBridgeResponse: s.processBridgeResponse,
	}
}

// completeBlock adapts router.CompleteBlockRequest to evolver.CompletionInput
// and publishes task_completed so the Expansion Agent can check eligible
// frontier immediately instead of waiting for its next tick.
func (s *Server) completeBlock(ctx context.Context, projectID, path string, req router.CompleteBlockRequest) (*domain.FrontierNode, error) {
	node, err := s.strategyEvolver.CompleteBlock(ctx, projectID, path, evolver.CompletionInput{
		BlockID:          req.BlockID,
		Outcome:          req.Outcome,
		EnergyLevel:      req.EnergyLevel,
		Learned:          req.Learned,
		DifficultyRating: req.DifficultyRating,
		Breakthrough:     req.Breakthrough,
	})
	if err != nil {
		return nil, err
	}
	s.supervisor.Publish(supervisor.Event{Type: supervisor.EventTaskCompleted, ProjectID: projectID, Path: path})
	return node, nil
}

// buildTree looks up the project's stated goal and any onboarding context
// before invoking the HTA Store's build.
func (s *Server) buildTree(ctx context.Context, projectID, path string) (*domain.Tree, error) {
	p, err := s.project.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	aggregateContext := p.Context
	if state, err := s.onboarding.Status(ctx, projectID); err == nil && state != nil {
		aggregateContext = state.AggregateContext.Context
	}
	return s.hta.Build(ctx, projectID, path, p.Goal, htastore.BuildArgs{AggregateContext: aggregateContext})
}

// processBridgeResponse delivers a client-supplied completion back to the
// Intelligence Bridge's pending request. The Bridge itself validates
// response against the request's registered schema and returns the
// resulting INTELLIGENCE_RESPONSE envelope or the ValidationError/Timeout
// that blocked it — this adapter forwards that outcome verbatim.
func (s *Server) processBridgeResponse(ctx context.Context, requestID, response string) (*domain.ResponseEnvelope, error) {
	return s.bridge.ProcessResponse(requestID, response)
}

// factoryReset enforces the confirmation phrase invariant (spec.md §6:
// confirmation_message must be at least 10 characters) before delegating to
// the project service.
func (s *Server) factoryReset(ctx context.Context, req router.FactoryResetRequest) error {
	if !req.ConfirmDeletion {
		return domain.ValidationError{Key: "confirm_deletion", Message: "confirm_deletion must be true"}
	}
	if len(req.ConfirmationMessage) < 10 {
		return domain.ValidationError{Key: "confirmation_message", Message: "confirmation_message must be at least 10 characters"}
	}
	return s.project.FactoryReset(ctx, req.ProjectID)
}
