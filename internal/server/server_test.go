package server

import (
	"context"
	"testing"

	"forest/internal/config"
	"forest/internal/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Embedding.Provider = "deterministic"
	cfg.Embedding.Dim = 32
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestLandingPageGatesFirstNonWhitelistedCall(t *testing.T) {
	srv := newTestServer(t)
	sess := srv.NewSession()
	ctx := context.Background()

	result, err := srv.Dispatch(ctx, sess, "get_next_task_forest", map[string]any{"project_id": "proj_x"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	page, ok := result.(map[string]any)
	if !ok || page["type"] != "landing_page" {
		t.Fatalf("expected landing page on first non-whitelisted call, got %#v", result)
	}

	// A second call to the same tool now actually dispatches (and fails
	// with NoActiveProject, since no project exists yet in this session).
	_, err = srv.Dispatch(ctx, sess, "get_next_task_forest", map[string]any{})
	if err == nil {
		t.Fatalf("expected an error dispatching get_next_task_forest with no active project")
	}
}

func TestCreateBuildSelectCompleteRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	sess := srv.NewSession()
	ctx := context.Background()

	// Whitelisted calls do not trigger the landing page.
	res, err := srv.Dispatch(ctx, sess, "create_project_forest", map[string]any{"goal": "Master portrait photography"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	project, ok := res.(*domain.Project)
	if !ok {
		t.Fatalf("expected *domain.Project, got %T", res)
	}

	_, err = srv.Dispatch(ctx, sess, "build_hta_tree_forest", map[string]any{"project_id": project.ID})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	next, err := srv.Dispatch(ctx, sess, "get_next_task_forest", map[string]any{"project_id": project.ID, "energy_level": 3})
	if err != nil {
		t.Fatalf("get next task: %v", err)
	}
	if next == nil {
		t.Fatalf("expected a selected task")
	}
	task, ok := next.(*domain.FrontierNode)
	if !ok || task == nil {
		t.Fatalf("expected a *domain.FrontierNode, got %#v", next)
	}

	completed, err := srv.Dispatch(ctx, sess, "complete_block_forest", map[string]any{
		"project_id": project.ID, "block_id": task.ID, "outcome": "done", "energy_level": 4,
		"learned": "understood exposure triangle", "difficulty_rating": 2,
	})
	if err != nil {
		t.Fatalf("complete block: %v", err)
	}
	if _, ok := completed.(*domain.FrontierNode); !ok {
		t.Fatalf("expected a *domain.FrontierNode, got %#v", completed)
	}

	status, err := srv.Dispatch(ctx, sess, "current_status_forest", map[string]any{"project_id": project.ID})
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	summary, ok := status.(StatusSummary)
	if !ok {
		t.Fatalf("expected StatusSummary, got %T", status)
	}
	if summary.CompletedCount != 1 {
		t.Fatalf("expected 1 completed task in status summary, got %d", summary.CompletedCount)
	}

	sync, err := srv.Dispatch(ctx, sess, "sync_forest_memory_forest", map[string]any{"project_id": project.ID})
	if err != nil {
		t.Fatalf("sync memory: %v", err)
	}
	result, ok := sync.(SyncResult)
	if !ok || result.EventsReplayed != 1 {
		t.Fatalf("expected 1 replayed event, got %#v", sync)
	}
}

func TestFactoryResetRequiresConfirmationMessageLength(t *testing.T) {
	srv := newTestServer(t)
	sess := srv.NewSession()
	ctx := context.Background()

	srv.Dispatch(ctx, sess, "create_project_forest", map[string]any{"goal": "goal one"})

	_, err := srv.Dispatch(ctx, sess, "factory_reset_forest", map[string]any{
		"confirm_deletion":     true,
		"confirmation_message": "too short",
	})
	if err == nil {
		t.Fatalf("expected an error for a confirmation_message under 10 characters")
	}

	_, err = srv.Dispatch(ctx, sess, "factory_reset_forest", map[string]any{
		"confirm_deletion":     true,
		"confirmation_message": "yes I am sure, delete everything",
	})
	if err != nil {
		t.Fatalf("factory reset: %v", err)
	}

	list, err := srv.Dispatch(ctx, sess, "list_projects_forest", map[string]any{})
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	projects, ok := list.([]domain.ProjectSummary)
	if !ok {
		t.Fatalf("expected []domain.ProjectSummary, got %T", list)
	}
	if len(projects) != 0 {
		t.Fatalf("expected no projects after factory reset, got %d", len(projects))
	}
}

func TestOnboardingFlowReachesCompleted(t *testing.T) {
	srv := newTestServer(t)
	sess := srv.NewSession()
	ctx := context.Background()

	res, err := srv.Dispatch(ctx, sess, "start_learning_journey_forest", map[string]any{"project_id": "Master landscape photography"})
	if err != nil {
		t.Fatalf("start onboarding: %v", err)
	}
	state := mustOnboardingState(t, res)
	if state.CurrentStage != domain.StageContextGathering {
		t.Fatalf("expected context_gathering after goal_capture, got %s", state.CurrentStage)
	}

	active, err := srv.project.GetActive(ctx)
	if err != nil || active == nil {
		t.Fatalf("expected active project after start_learning_journey_forest, err=%v", err)
	}
	projectID := active.ID

	res, err = srv.Dispatch(ctx, sess, "continue_onboarding_forest", map[string]any{
		"project_id":  projectID,
		"background":  "some photography background",
		"constraints": "weekends only",
		"motivation":  "want to sell prints",
	})
	if err != nil {
		t.Fatalf("continue onboarding (context): %v", err)
	}
	state = mustOnboardingState(t, res)
	if state.CurrentStage != domain.StageQuestionnaire {
		t.Fatalf("expected questionnaire stage, got %s", state.CurrentStage)
	}

	res, err = srv.Dispatch(ctx, sess, "continue_onboarding_forest", map[string]any{"project_id": projectID, "action": "start"})
	if err != nil {
		t.Fatalf("start questionnaire: %v", err)
	}
	state = mustOnboardingState(t, res)
	for len(state.QuestionQueue) > 0 {
		res, err = srv.Dispatch(ctx, sess, "continue_onboarding_forest", map[string]any{"project_id": projectID, "answer": "an answer"})
		if err != nil {
			t.Fatalf("answer question: %v", err)
		}
		state = mustOnboardingState(t, res)
	}
	if state.CurrentStage != domain.StageComplexityAnalysis {
		t.Fatalf("expected complexity_analysis after questionnaire empties, got %s", state.CurrentStage)
	}

	res, err = srv.Dispatch(ctx, sess, "continue_onboarding_forest", map[string]any{"project_id": projectID})
	if err != nil {
		t.Fatalf("complexity analysis: %v", err)
	}
	state = mustOnboardingState(t, res)
	if state.CurrentStage != domain.StageHTAGeneration {
		t.Fatalf("expected hta_generation, got %s", state.CurrentStage)
	}

	res, err = srv.Dispatch(ctx, sess, "continue_onboarding_forest", map[string]any{"project_id": projectID})
	if err != nil {
		t.Fatalf("hta generation: %v", err)
	}
	state = mustOnboardingState(t, res)
	if state.CurrentStage != domain.StageStrategicFramework {
		t.Fatalf("expected strategic_framework, got %s", state.CurrentStage)
	}

	res, err = srv.Dispatch(ctx, sess, "complete_onboarding_forest", map[string]any{"project_id": projectID, "final_confirmation": true})
	if err != nil {
		t.Fatalf("complete onboarding: %v", err)
	}
	state = mustOnboardingState(t, res)
	if state.CurrentStage != domain.StageCompleted {
		t.Fatalf("expected completed, got %s", state.CurrentStage)
	}
}

func mustOnboardingState(t *testing.T, res any) *domain.OnboardingState {
	t.Helper()
	s, ok := res.(*domain.OnboardingState)
	if !ok {
		t.Fatalf("expected *domain.OnboardingState, got %T", res)
	}
	return s
}
