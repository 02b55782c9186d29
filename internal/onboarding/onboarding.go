// Package onboarding implements the Gated Onboarding state machine (C7): a
// fixed progression of locked gates whose accumulated aggregate_context is
// the sole input the Schema HTA Engine receives for level 1/2 generation.
package onboarding

import (
	"context"
	"fmt"
	"strings"

	"forest/internal/domain"
	"forest/internal/htaengine"
	"forest/internal/htastore"
	"forest/internal/kvstore"
	"forest/internal/logging"
)

// ProjectCreator is the capability the goal_capture stage needs from the
// external project manager, kept narrow to avoid an import cycle with
// package project.
type ProjectCreator interface {
	Create(ctx context.Context, goal string) (*domain.Project, error)
}

// Service runs the gate state machine for one project at a time, persisting
// state via the KV Store.
type Service struct {
	kv      *kvstore.Store
	engine  *htaengine.Engine
	store   *htastore.Store
	project ProjectCreator
}

// New wires the onboarding state machine to its collaborators.
func New(kv *kvstore.Store, engine *htaengine.Engine, store *htastore.Store, project ProjectCreator) *Service {
	return &Service{kv: kv, engine: engine, store: store, project: project}
}

// Start begins onboarding for initialGoal, running goal_capture.
func (s *Service) Start(ctx context.Context, initialGoal string) (*domain.OnboardingState, string, error) {
	state := domain.NewOnboardingState()
	return s.runGoalCapture(ctx, state, initialGoal)
}

func (s *Service) runGoalCapture(ctx context.Context, state *domain.OnboardingState, goal string) (*domain.OnboardingState, string, error) {
	if strings.TrimSpace(goal) == "" {
		return s.block(ctx, "", state, domain.StageGoalCapture, "initial_goal must not be empty")
	}

	proj, err := s.project.Create(ctx, goal)
	if err != nil {
		return nil, "", err
	}
	state.AggregateContext.Goal = goal
	state.SetGateStatus(domain.StageGoalCapture, domain.GatePassed)
	state.CurrentStage = domain.StageContextGathering
	state.SetGateStatus(domain.StageContextGathering, domain.GateInProgress)

	if err := s.persist(ctx, proj.ID, state); err != nil {
		return nil, "", err
	}
	logging.OnboardingDebug("project %s: goal_capture passed", proj.ID)
	return state, "proceed to context_gathering", nil
}

// ContextFields is the context_gathering stage's typed input; absent fields
// are accepted but lower the gate's confidence.
type ContextFields struct {
	Background    string
	Constraints   string
	Motivation    string
	Timeline      string
	AvailableTime string
	Budget        string
	LearningStyle string
	CurrentSkills string
}

func (f ContextFields) presentCount() int {
	n := 0
	for _, v := range []string{f.Background, f.Constraints, f.Motivation, f.Timeline, f.AvailableTime, f.Budget, f.LearningStyle, f.CurrentSkills} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// minContextFields is the minimum number of populated fields for the gate
// to pass; below this it stays in_progress rather than blocking outright,
// since every field is individually optional.
const minContextFields = 3

// ContextGathering runs the context_gathering stage.
func (s *Service) ContextGathering(ctx context.Context, projectID string, state *domain.OnboardingState, fields ContextFields) (*domain.OnboardingState, string, error) {
	if !state.EarlierGatesPassed(domain.StageContextGathering) {
		return s.block(ctx, projectID, state, domain.StageContextGathering, "goal_capture has not passed yet")
	}

	parts := []string{}
	for k, v := range map[string]string{
		"background": fields.Background, "constraints": fields.Constraints, "motivation": fields.Motivation,
		"timeline": fields.Timeline, "available_time": fields.AvailableTime, "budget": fields.Budget,
		"learning_style": fields.LearningStyle, "current_skills": fields.CurrentSkills,
	} {
		if strings.TrimSpace(v) != "" {
			state.AggregateContext.UserProfile[k] = v
			parts = append(parts, k+": "+v)
		}
	}
	state.AggregateContext.Context = strings.Join(parts, "; ")
	if fields.Constraints != "" {
		state.AggregateContext.Constraints["stated"] = fields.Constraints
	}

	if fields.presentCount() < minContextFields {
		state.SetGateStatus(domain.StageContextGathering, domain.GateInProgress)
		if err := s.persist(ctx, projectID, state); err != nil {
			return nil, "", err
		}
		return state, "more context needed before proceeding", nil
	}

	state.SetGateStatus(domain.StageContextGathering, domain.GatePassed)
	state.CurrentStage = domain.StageQuestionnaire
	state.SetGateStatus(domain.StageQuestionnaire, domain.GateLocked)
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "proceed to questionnaire", nil
}

// StartQuestionnaire generates a short question queue from the aggregate
// context and moves the gate to in_progress.
func (s *Service) StartQuestionnaire(ctx context.Context, projectID string, state *domain.OnboardingState) (*domain.OnboardingState, string, error) {
	if !state.EarlierGatesPassed(domain.StageQuestionnaire) {
		return s.block(ctx, projectID, state, domain.StageQuestionnaire, "context_gathering has not passed yet")
	}
	state.QuestionQueue = generateQuestions(state.AggregateContext)
	state.SetGateStatus(domain.StageQuestionnaire, domain.GateInProgress)
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "answer the question queue", nil
}

func generateQuestions(ctx domain.AggregateContext) []string {
	qs := []string{
		fmt.Sprintf("What does success look like for %q?", ctx.Goal),
		"How much time can you commit per week?",
	}
	if _, ok := ctx.UserProfile["current_skills"]; !ok {
		qs = append(qs, "What relevant skills or experience do you already have?")
	}
	return qs
}

// AnswerQuestion accepts the next queued answer, passing the gate once the
// queue empties.
func (s *Service) AnswerQuestion(ctx context.Context, projectID string, state *domain.OnboardingState, answer string) (*domain.OnboardingState, string, error) {
	if state.GateStatusFor(domain.StageQuestionnaire) != domain.GateInProgress {
		return s.block(ctx, projectID, state, domain.StageQuestionnaire, "questionnaire has not been started")
	}
	if len(state.QuestionQueue) == 0 {
		return s.passQuestionnaire(ctx, projectID, state)
	}
	q := state.QuestionQueue[0]
	state.QuestionQueue = state.QuestionQueue[1:]
	state.Answers[q] = answer
	if len(state.QuestionQueue) == 0 {
		return s.passQuestionnaire(ctx, projectID, state)
	}
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "next question", nil
}

func (s *Service) passQuestionnaire(ctx context.Context, projectID string, state *domain.OnboardingState) (*domain.OnboardingState, string, error) {
	var focus []string
	for _, a := range state.Answers {
		focus = append(focus, a)
	}
	state.AggregateContext.FocusAreas = focus
	state.SetGateStatus(domain.StageQuestionnaire, domain.GatePassed)
	state.CurrentStage = domain.StageComplexityAnalysis
	state.SetGateStatus(domain.StageComplexityAnalysis, domain.GateInProgress)
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "proceed to complexity_analysis", nil
}

// ComplexityAnalysis runs C5's goal-characteristic analysis (AnalyzeGoal) on
// the aggregate context and stores the resulting complexity.
func (s *Service) ComplexityAnalysis(ctx context.Context, projectID string, state *domain.OnboardingState) (*domain.OnboardingState, string, error) {
	if !state.EarlierGatesPassed(domain.StageComplexityAnalysis) {
		return s.block(ctx, projectID, state, domain.StageComplexityAnalysis, "questionnaire has not passed yet")
	}
	complexity := htaengine.AnalyzeGoal(state.AggregateContext.Goal+" "+state.AggregateContext.Context, htaengine.ExperienceNeutral)
	state.AggregateContext.Complexity = &complexity
	state.SetGateStatus(domain.StageComplexityAnalysis, domain.GatePassed)
	state.CurrentStage = domain.StageHTAGeneration
	state.SetGateStatus(domain.StageHTAGeneration, domain.GateInProgress)
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "proceed to hta_generation", nil
}

// HTAGeneration invokes C6.build and passes iff the resulting tree has at
// least one branch and one frontier task.
func (s *Service) HTAGeneration(ctx context.Context, projectID string, state *domain.OnboardingState) (*domain.OnboardingState, string, error) {
	if !state.EarlierGatesPassed(domain.StageHTAGeneration) {
		return s.block(ctx, projectID, state, domain.StageHTAGeneration, "complexity_analysis has not passed yet")
	}

	tree, err := s.store.Build(ctx, projectID, domain.DefaultPath, state.AggregateContext.Goal, htastore.BuildArgs{
		AggregateContext: state.AggregateContext.Context,
	})
	if err != nil {
		return nil, "", err
	}
	if len(tree.StrategicBranches) == 0 || len(tree.FrontierNodes) == 0 {
		return s.block(ctx, projectID, state, domain.StageHTAGeneration, "tree build produced no branches or frontier tasks")
	}

	state.SetGateStatus(domain.StageHTAGeneration, domain.GatePassed)
	state.CurrentStage = domain.StageStrategicFramework
	state.SetGateStatus(domain.StageStrategicFramework, domain.GateInProgress)
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "proceed to strategic_framework", nil
}

// StrategicFramework derives a plan-of-attack summary and, on confirm,
// completes onboarding.
func (s *Service) StrategicFramework(ctx context.Context, projectID string, state *domain.OnboardingState, confirm bool) (*domain.OnboardingState, string, error) {
	if !state.EarlierGatesPassed(domain.StageStrategicFramework) {
		return s.block(ctx, projectID, state, domain.StageStrategicFramework, "hta_generation has not passed yet")
	}
	if !confirm {
		if err := s.persist(ctx, projectID, state); err != nil {
			return nil, "", err
		}
		return state, PlanOfAttackSummary(state), nil
	}

	state.SetGateStatus(domain.StageStrategicFramework, domain.GatePassed)
	state.CurrentStage = domain.StageCompleted
	state.SetGateStatus(domain.StageCompleted, domain.GatePassed)
	if err := s.persist(ctx, projectID, state); err != nil {
		return nil, "", err
	}
	return state, "onboarding completed", nil
}

// PlanOfAttackSummary renders a lightweight human-readable summary of the
// accumulated context and complexity, shown before strategic_framework
// confirmation.
func PlanOfAttackSummary(state *domain.OnboardingState) string {
	level := "unknown"
	if state.AggregateContext.Complexity != nil {
		level = string(state.AggregateContext.Complexity.Level)
	}
	return fmt.Sprintf("Goal: %s. Complexity: %s. Focus areas: %s.",
		state.AggregateContext.Goal, level, strings.Join(state.AggregateContext.FocusAreas, ", "))
}

// Status loads the persisted onboarding state for a project, if any.
func (s *Service) Status(ctx context.Context, projectID string) (*domain.OnboardingState, error) {
	var state domain.OnboardingState
	ok, err := s.kv.Read(kvstore.OnboardingStatePath(projectID), &state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// block marks the current gate blocked, records a remediation suggestion,
// and returns GateBlocked — the state machine never silently advances past
// a blocked gate.
func (s *Service) block(ctx context.Context, projectID string, state *domain.OnboardingState, stage domain.OnboardingStage, remediation string) (*domain.OnboardingState, string, error) {
	state.SetGateStatus(stage, domain.GateBlockedSt)
	state.Remediation = remediation
	if projectID != "" {
		_ = s.persist(ctx, projectID, state)
	}
	return state, remediation, domain.GateBlocked{Stage: string(stage), Remediation: remediation}
}

func (s *Service) persist(ctx context.Context, projectID string, state *domain.OnboardingState) error {
	return s.kv.Write(kvstore.OnboardingStatePath(projectID), state)
}
