package router

import (
	"context"

	"forest/internal/domain"
)

// landingWhitelist is the set of tools a fresh Session may call first
// without triggering the landing-page injection (SPEC_FULL.md §4.12).
var landingWhitelist = map[string]bool{
	"create_project_forest":       true,
	"list_projects_forest":        true,
	"get_active_project_forest":   true,
	"start_learning_journey_forest": true,
}

// landingPage is the synthetic response injected before the first
// non-whitelisted tool call of a session.
var landingPage = map[string]any{
	"type":    "landing_page",
	"message": "Welcome to Forest. Start with create_project_forest, list_projects_forest, get_active_project_forest, or start_learning_journey_forest.",
}

// Router enforces the landing-page gate and dispatches to the registry.
type Router struct {
	registry *Registry
}

// New builds a Router with every tool in SPEC_FULL.md §6 registered against
// deps, plus the diagnostic cache-clearing aliases and process_response.
func New(deps Deps) *Router {
	reg := NewRegistry()
	for _, t := range buildTools(deps) {
		reg.Register(t)
	}
	return &Router{registry: reg}
}

// Names lists every registered tool.
func (rt *Router) Names() []string {
	return rt.registry.Names()
}

// Dispatch runs name against args for sess, applying the landing-page gate
// first. Dispatching an unregistered name returns UnknownTool regardless of
// gate state (an unknown name is never a valid "first call").
func (rt *Router) Dispatch(ctx context.Context, sess *domain.Session, name string, args map[string]any) (any, error) {
	if rt.registry.Get(name) == nil {
		return nil, domain.UnknownTool{Name: name}
	}

	if !sess.LandingShown() {
		sess.MarkLandingShown()
		if !landingWhitelist[name] {
			return landingPage, nil
		}
	}

	return rt.registry.Execute(ctx, name, args)
}

func requireActiveProject(sess *domain.Session) (string, error) {
	return sess.RequireActiveProject()
}

func buildTools(d Deps) []*Tool {
	return []*Tool{
		{
			Name:        "create_project_forest",
			Description: "Create a project record and return its id.",
			Category:    CategoryProject,
			Schema:      ToolSchema{Required: []string{"goal"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				p, err := d.CreateProject(ctx, str(args, "goal"))
				return p, err
			},
		},
		{
			Name:        "switch_project_forest",
			Description: "Set the active project.",
			Category:    CategoryProject,
			Schema:      ToolSchema{Required: []string{"project_id"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, d.SwitchProject(ctx, str(args, "project_id"))
			},
		},
		{
			Name:        "list_projects_forest",
			Description: "Enumerate all projects.",
			Category:    CategoryProject,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.ListProjects(ctx)
			},
		},
		{
			Name:        "get_active_project_forest",
			Description: "Return the active project, or an empty result.",
			Category:    CategoryProject,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.GetActiveProject(ctx, str(args, "project_id"))
			},
		},
		{
			Name:        "build_hta_tree_forest",
			Description: "Invoke the HTA Store's build using project config and args.",
			Category:    CategoryTree,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.BuildTree(ctx, str(args, "project_id"), pathOrDefault(args))
			},
		},
		{
			Name:        "get_hta_status_forest",
			Description: "Summarize the existing tree.",
			Category:    CategoryTree,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.GetTreeStatus(ctx, str(args, "project_id"), pathOrDefault(args))
			},
		},
		{
			Name:        "get_next_task_forest",
			Description: "Select the next frontier task.",
			Category:    CategoryTask,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				criteria := domain.SelectionCriteria{
					EnergyLevel:   intArg(args, "energy_level"),
					TimeAvailable: minutesArg(args, "time_available"),
					FocusArea:     str(args, "focus_area"),
					Complexity:    intArg(args, "complexity"),
					SemanticQuery: str(args, "semantic_query"),
				}
				return d.SelectTask(ctx, str(args, "project_id"), pathOrDefault(args), criteria)
			},
		},
		{
			Name:        "complete_block_forest",
			Description: "Retire a task, append a learning event, and trigger strategy evolution.",
			Category:    CategoryTask,
			Schema:      ToolSchema{Required: []string{"block_id", "outcome", "energy_level"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				req := CompleteBlockRequest{
					BlockID:          str(args, "block_id"),
					Outcome:          str(args, "outcome"),
					EnergyLevel:      intArg(args, "energy_level"),
					Learned:          str(args, "learned"),
					DifficultyRating: intArg(args, "difficulty_rating"),
					Breakthrough:     boolArg(args, "breakthrough"),
				}
				return d.CompleteBlock(ctx, str(args, "project_id"), pathOrDefault(args), req)
			},
		},
		{
			Name:        "evolve_strategy_forest",
			Description: "Run strategy evolution with an explicit hint.",
			Category:    CategoryTask,
			Schema:      ToolSchema{Required: []string{"hint"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.EvolveStrategy(ctx, str(args, "project_id"), pathOrDefault(args), str(args, "hint"))
			},
		},
		{
			Name:        "current_status_forest",
			Description: "Aggregate progress summary.",
			Category:    CategorySystem,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.CurrentStatus(ctx, str(args, "project_id"))
			},
		},
		{
			Name:        "sync_forest_memory_forest",
			Description: "Replay learning events into accumulated context.",
			Category:    CategorySystem,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.SyncMemory(ctx, str(args, "project_id"), pathOrDefault(args))
			},
		},
		{
			Name:        "start_learning_journey_forest",
			Description: "Enter onboarding at goal_capture.",
			Category:    CategoryOnboarding,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.StartOnboarding(ctx, str(args, "project_id"))
			},
		},
		{
			Name:        "continue_onboarding_forest",
			Description: "Advance the onboarding gate state machine.",
			Category:    CategoryOnboarding,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.ContinueOnboarding(ctx, str(args, "project_id"), args)
			},
		},
		{
			Name:        "get_onboarding_status_forest",
			Description: "Read onboarding state.",
			Category:    CategoryOnboarding,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.GetOnboardingStatus(ctx, str(args, "project_id"))
			},
		},
		{
			Name:        "complete_onboarding_forest",
			Description: "Transition onboarding to completed.",
			Category:    CategoryOnboarding,
			Schema:      ToolSchema{Required: []string{"final_confirmation"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.CompleteOnboarding(ctx, str(args, "project_id"), boolArg(args, "final_confirmation"))
			},
		},
		{
			Name:        "get_next_pipeline_forest",
			Description: "Return the next task pipeline.",
			Category:    CategoryPipeline,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.NextPipeline(ctx, str(args, "project_id"), pathOrDefault(args))
			},
		},
		{
			Name:        "evolve_pipeline_forest",
			Description: "Re-rank the task pipeline.",
			Category:    CategoryPipeline,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.EvolvePipeline(ctx, str(args, "project_id"), pathOrDefault(args))
			},
		},
		{
			Name:        "factory_reset_forest",
			Description: "Delete one project, or all projects.",
			Category:    CategorySystem,
			Schema:      ToolSchema{Required: []string{"confirm_deletion", "confirmation_message"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				msg := str(args, "confirmation_message")
				if len(msg) < 10 {
					return nil, domain.ValidationError{Key: "confirmation_message", Message: "confirmation_message must be at least 10 characters"}
				}
				req := FactoryResetRequest{
					ConfirmDeletion:     boolArg(args, "confirm_deletion"),
					ConfirmationMessage: msg,
					ProjectID:           str(args, "project_id"),
				}
				return nil, d.FactoryReset(ctx, req)
			},
		},
		{
			Name:        "process_response",
			Description: "Deliver a client's response to a pending Intelligence Bridge request.",
			Category:    CategoryBridge,
			Schema:      ToolSchema{Required: []string{"request_id", "response"}},
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return d.ProcessBridgeResponse(ctx, str(args, "request_id"), str(args, "response"))
			},
		},
		// debug_cache_forest and emergency_clear_cache_forest are registered
		// under two ids for the same diagnostic handler (Design Notes: prefer
		// the diagnostic-handler version when ids alias).
		{
			Name:        "debug_cache_forest",
			Description: "Report KV and vector cache diagnostics.",
			Category:    CategorySystem,
			Execute:     cacheDiagnostics(d),
		},
		{
			Name:        "emergency_clear_cache_forest",
			Description: "Report KV and vector cache diagnostics.",
			Category:    CategorySystem,
			Execute:     cacheDiagnostics(d),
		},
	}
}

func cacheDiagnostics(d Deps) ExecuteFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return d.CurrentStatus(ctx, str(args, "project_id"))
	}
}

func pathOrDefault(args map[string]any) string {
	if p := str(args, "path"); p != "" {
		return p
	}
	return domain.DefaultPath
}
