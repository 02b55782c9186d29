package server

import (
	"context"

	"forest/internal/domain"
	"forest/internal/onboarding"
)

// startOnboarding enters goal_capture. The router forwards a single string
// argument under the "project_id" key for start_learning_journey_forest;
// since no project exists yet at this point, that argument carries the
// initial goal text rather than a project id (onboarding.Service.Start
// creates the project itself from the goal).
func (s *Server) startOnboarding(ctx context.Context, goal string) (*domain.OnboardingState, error) {
	state, _, err := s.onboarding.Start(ctx, goal)
	return state, err
}

// continueOnboarding routes args to whichever gate the project's onboarding
// state is currently sitting at.
func (s *Server) continueOnboarding(ctx context.Context, projectID string, args map[string]any) (*domain.OnboardingState, error) {
	state, err := s.onboarding.Status(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ValidationError{Key: "project_id", Message: "onboarding has not been started for " + projectID}
	}

	switch state.CurrentStage {
	case domain.StageContextGathering:
		fields := onboarding.ContextFields{
			Background:    strArg(args, "background"),
			Constraints:   strArg(args, "constraints"),
			Motivation:    strArg(args, "motivation"),
			Timeline:      strArg(args, "timeline"),
			AvailableTime: strArg(args, "available_time"),
			Budget:        strArg(args, "budget"),
			LearningStyle: strArg(args, "learning_style"),
			CurrentSkills: strArg(args, "current_skills"),
		}
		out, _, err := s.onboarding.ContextGathering(ctx, projectID, state, fields)
		return out, err

	case domain.StageQuestionnaire:
		if strArg(args, "action") == "start" {
			out, _, err := s.onboarding.StartQuestionnaire(ctx, projectID, state)
			return out, err
		}
		out, _, err := s.onboarding.AnswerQuestion(ctx, projectID, state, strArg(args, "answer"))
		return out, err

	case domain.StageComplexityAnalysis:
		out, _, err := s.onboarding.ComplexityAnalysis(ctx, projectID, state)
		return out, err

	case domain.StageHTAGeneration:
		out, _, err := s.onboarding.HTAGeneration(ctx, projectID, state)
		return out, err

	case domain.StageStrategicFramework:
		out, _, err := s.onboarding.StrategicFramework(ctx, projectID, state, boolArg(args, "confirm"))
		return out, err

	default:
		return state, nil
	}
}

// completeOnboarding is complete_onboarding_forest: a convenience entry
// point that only acts once the state machine has already reached
// strategic_framework, confirming it in one call.
func (s *Server) completeOnboarding(ctx context.Context, projectID string, finalConfirmation bool) (*domain.OnboardingState, error) {
	state, err := s.onboarding.Status(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ValidationError{Key: "project_id", Message: "onboarding has not been started for " + projectID}
	}
	if state.CurrentStage != domain.StageStrategicFramework {
		return nil, domain.GateBlocked{Stage: string(state.CurrentStage), Remediation: "strategic_framework has not been reached yet"}
	}
	out, _, err := s.onboarding.StrategicFramework(ctx, projectID, state, finalConfirmation)
	return out, err
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
