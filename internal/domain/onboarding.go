package domain

// OnboardingStage is one step of the gated state machine (C7).
type OnboardingStage string

const (
	StageGoalCapture        OnboardingStage = "goal_capture"
	StageContextGathering   OnboardingStage = "context_gathering"
	StageQuestionnaire      OnboardingStage = "questionnaire"
	StageComplexityAnalysis OnboardingStage = "complexity_analysis"
	StageHTAGeneration      OnboardingStage = "hta_generation"
	StageStrategicFramework OnboardingStage = "strategic_framework"
	StageCompleted          OnboardingStage = "completed"
)

// StageOrder is the fixed progression gates must follow.
var StageOrder = []OnboardingStage{
	StageGoalCapture,
	StageContextGathering,
	StageQuestionnaire,
	StageComplexityAnalysis,
	StageHTAGeneration,
	StageStrategicFramework,
	StageCompleted,
}

// GateStatus is a single stage's locked/in_progress/passed/blocked state.
type GateStatus string

const (
	GateLocked     GateStatus = "locked"
	GateInProgress GateStatus = "in_progress"
	GatePassed     GateStatus = "passed"
	GateBlockedSt  GateStatus = "blocked"
)

// Gate is one entry of the onboarding state's gates[] list.
type Gate struct {
	Name   OnboardingStage `json:"name"`
	Status GateStatus      `json:"status"`
}

// AggregateContext is the "context snowball" accumulated across gates and
// consumed by C5 L1/L2.
type AggregateContext struct {
	Goal        string            `json:"goal"`
	Context     string            `json:"context"`
	UserProfile map[string]string `json:"user_profile"`
	Complexity  *Complexity       `json:"complexity,omitempty"`
	FocusAreas  []string          `json:"focus_areas"`
	Constraints map[string]string `json:"constraints"`
}

// OnboardingState is the gate state machine's durable record, one per project.
type OnboardingState struct {
	CurrentStage     OnboardingStage  `json:"current_stage"`
	Gates            []Gate           `json:"gates"`
	AggregateContext AggregateContext `json:"aggregate_context"`
	QuestionQueue    []string         `json:"question_queue"`
	Answers          map[string]string `json:"answers"`
	Remediation      string           `json:"remediation,omitempty"`
}

// GateStatusFor returns the status of the named gate, or GateLocked if absent.
func (s *OnboardingState) GateStatusFor(stage OnboardingStage) GateStatus {
	for _, g := range s.Gates {
		if g.Name == stage {
			return g.Status
		}
	}
	return GateLocked
}

// SetGateStatus updates (or appends) a gate's status.
func (s *OnboardingState) SetGateStatus(stage OnboardingStage, status GateStatus) {
	for i := range s.Gates {
		if s.Gates[i].Name == stage {
			s.Gates[i].Status = status
			return
		}
	}
	s.Gates = append(s.Gates, Gate{Name: stage, Status: status})
}

// EarlierGatesPassed reports whether every stage before the given one has
// status passed, which is the entry condition for the gate at that stage.
func (s *OnboardingState) EarlierGatesPassed(stage OnboardingStage) bool {
	for _, st := range StageOrder {
		if st == stage {
			return true
		}
		if s.GateStatusFor(st) != GatePassed {
			return false
		}
	}
	return false
}

// NewOnboardingState creates a fresh state machine at goal_capture, with the
// goal_capture gate in_progress and every later gate locked.
func NewOnboardingState() *OnboardingState {
	gates := make([]Gate, len(StageOrder))
	for i, stage := range StageOrder {
		status := GateLocked
		if i == 0 {
			status = GateInProgress
		}
		gates[i] = Gate{Name: stage, Status: status}
	}
	return &OnboardingState{
		CurrentStage: StageGoalCapture,
		Gates:        gates,
		Answers:      make(map[string]string),
		AggregateContext: AggregateContext{
			UserProfile: make(map[string]string),
			Constraints: make(map[string]string),
		},
	}
}
