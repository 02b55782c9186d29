package onboarding

import (
	"context"
	"testing"

	"forest/internal/domain"
	"forest/internal/htaengine"
	"forest/internal/htastore"
	"forest/internal/kvstore"
)

type stubProjects struct{ nextID string }

func (p *stubProjects) Create(ctx context.Context, goal string) (*domain.Project, error) {
	return &domain.Project{ID: p.nextID, Goal: goal}, nil
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	engine := htaengine.New(nil)
	hstore := htastore.New(kv, engine, nil, nil)
	return New(kv, engine, hstore, &stubProjects{nextID: "proj_onb"}), "proj_onb"
}

func TestStartWithEmptyGoalBlocksGate(t *testing.T) {
	s, _ := newTestService(t)
	state, _, err := s.Start(context.Background(), "")
	if _, ok := err.(domain.GateBlocked); !ok {
		t.Fatalf("expected GateBlocked, got %v", err)
	}
	if state.GateStatusFor(domain.StageGoalCapture) != domain.GateBlockedSt {
		t.Fatalf("expected goal_capture gate blocked, got %s", state.GateStatusFor(domain.StageGoalCapture))
	}
}

func TestStartPassesGoalCaptureAndOpensContextGathering(t *testing.T) {
	s, projectID := newTestService(t)
	state, _, err := s.Start(context.Background(), "Master portrait photography")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.GateStatusFor(domain.StageGoalCapture) != domain.GatePassed {
		t.Fatalf("expected goal_capture passed")
	}
	if state.CurrentStage != domain.StageContextGathering {
		t.Fatalf("expected current stage context_gathering, got %s", state.CurrentStage)
	}

	loaded, err := s.Status(context.Background(), projectID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if loaded == nil || loaded.AggregateContext.Goal != "Master portrait photography" {
		t.Fatalf("expected persisted state with goal, got %v", loaded)
	}
}

func TestContextGatheringRequiresMinimumFields(t *testing.T) {
	s, projectID := newTestService(t)
	state, _, _ := s.Start(context.Background(), "Master portrait photography")

	state, _, err := s.ContextGathering(context.Background(), projectID, state, ContextFields{Background: "some background"})
	if err != nil {
		t.Fatalf("context gathering: %v", err)
	}
	if state.GateStatusFor(domain.StageContextGathering) == domain.GatePassed {
		t.Fatalf("expected gate to remain in_progress with only one field")
	}

	state, _, err = s.ContextGathering(context.Background(), projectID, state, ContextFields{
		Background: "some background", Motivation: "career change", Timeline: "6 months",
	})
	if err != nil {
		t.Fatalf("context gathering: %v", err)
	}
	if state.GateStatusFor(domain.StageContextGathering) != domain.GatePassed {
		t.Fatalf("expected gate passed with 3 fields, got %s", state.GateStatusFor(domain.StageContextGathering))
	}
}

func fullyOnboardedState(t *testing.T, s *Service, projectID string) *domain.OnboardingState {
	t.Helper()
	ctx := context.Background()
	state, _, err := s.Start(ctx, "Master portrait photography")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	state, _, err = s.ContextGathering(ctx, projectID, state, ContextFields{
		Background: "some background", Motivation: "career change", Timeline: "6 months",
	})
	if err != nil {
		t.Fatalf("context gathering: %v", err)
	}
	state, _, err = s.StartQuestionnaire(ctx, projectID, state)
	if err != nil {
		t.Fatalf("start questionnaire: %v", err)
	}
	for len(state.QuestionQueue) > 0 {
		state, _, err = s.AnswerQuestion(ctx, projectID, state, "an answer")
		if err != nil {
			t.Fatalf("answer question: %v", err)
		}
	}
	return state
}

func TestQuestionnaireEmptyingQueuePassesGate(t *testing.T) {
	s, projectID := newTestService(t)
	state := fullyOnboardedState(t, s, projectID)
	if state.GateStatusFor(domain.StageQuestionnaire) != domain.GatePassed {
		t.Fatalf("expected questionnaire passed, got %s", state.GateStatusFor(domain.StageQuestionnaire))
	}
	if state.CurrentStage != domain.StageComplexityAnalysis {
		t.Fatalf("expected current stage complexity_analysis, got %s", state.CurrentStage)
	}
}

func TestFullOnboardingReachesCompleted(t *testing.T) {
	s, projectID := newTestService(t)
	ctx := context.Background()
	state := fullyOnboardedState(t, s, projectID)

	state, _, err := s.ComplexityAnalysis(ctx, projectID, state)
	if err != nil {
		t.Fatalf("complexity analysis: %v", err)
	}
	if state.AggregateContext.Complexity == nil {
		t.Fatalf("expected complexity to be stored")
	}

	state, _, err = s.HTAGeneration(ctx, projectID, state)
	if err != nil {
		t.Fatalf("hta generation: %v", err)
	}
	if state.GateStatusFor(domain.StageHTAGeneration) != domain.GatePassed {
		t.Fatalf("expected hta_generation passed")
	}

	state, summary, err := s.StrategicFramework(ctx, projectID, state, false)
	if err != nil {
		t.Fatalf("strategic framework (preview): %v", err)
	}
	if summary == "" {
		t.Fatalf("expected a plan-of-attack summary before confirmation")
	}
	if state.CurrentStage == domain.StageCompleted {
		t.Fatalf("should not complete before confirmation")
	}

	state, _, err = s.StrategicFramework(ctx, projectID, state, true)
	if err != nil {
		t.Fatalf("strategic framework (confirm): %v", err)
	}
	if state.CurrentStage != domain.StageCompleted {
		t.Fatalf("expected onboarding completed, got %s", state.CurrentStage)
	}
}

func TestSkippingStageReturnsGateBlocked(t *testing.T) {
	s, projectID := newTestService(t)
	state, _, _ := s.Start(context.Background(), "Master portrait photography")

	_, _, err := s.ComplexityAnalysis(context.Background(), projectID, state)
	if _, ok := err.(domain.GateBlocked); !ok {
		t.Fatalf("expected GateBlocked when skipping ahead, got %v", err)
	}
}
