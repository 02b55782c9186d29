package domain

import "time"

// ComplexityLevel buckets a goal's complexity score into a coarse label.
type ComplexityLevel string

const (
	ComplexitySimple   ComplexityLevel = "simple"
	ComplexityModerate ComplexityLevel = "moderate"
	ComplexityComplex  ComplexityLevel = "complex"
	ComplexityExpert   ComplexityLevel = "expert"
)

// Complexity is the output of the goal-characteristic analysis (C5 L1),
// also stored in the onboarding aggregate_context.
type Complexity struct {
	Score            int             `json:"score"` // 1..10
	Level            ComplexityLevel `json:"level"`
	RecommendedDepth int             `json:"recommended_depth"` // 2..6
	Factors          []string        `json:"factors"`
}

// BranchFocus classifies a strategic branch's learning mode.
type BranchFocus string

const (
	FocusTheory   BranchFocus = "theory"
	FocusHandsOn  BranchFocus = "hands-on"
	FocusProject  BranchFocus = "project"
	FocusBalanced BranchFocus = "balanced"
)

// StrategicBranch is a top-level partition of the goal (level 2 output,
// materialized into the tree). Names are unique within a tree (I1 relies on
// this).
type StrategicBranch struct {
	Name                   string      `json:"name"`
	Description            string      `json:"description"`
	Priority               int         `json:"priority"`
	DomainFocus            string      `json:"domain_focus"`
	Rationale              string      `json:"rationale"`
	ExpectedOutcomes       []string    `json:"expected_outcomes"`
	ContextAdaptations     []string    `json:"context_adaptations"`
	ExplorationOpportunities []string  `json:"exploration_opportunities"`
	Focus                  BranchFocus `json:"focus"`
}

// TaskStatus is a frontier or completed node's lifecycle state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// FrontierNode is a task record. id is unique within a tree and stable
// across evolutions (I2, I3).
type FrontierNode struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Branch          string     `json:"branch"`
	Difficulty      float64    `json:"difficulty"` // 1..5
	DurationMinutes int        `json:"duration"`
	Priority        int        `json:"priority"`
	Prerequisites   []string   `json:"prerequisites"`
	Status          TaskStatus `json:"status"`
	Generated       bool       `json:"generated"`
	LearningOutcome string     `json:"learning_outcome"`
	DomainFocus     string     `json:"domain_focus"`

	// CompletedAt and LearningEventID are populated when a node moves to
	// completed_nodes (retains completion metadata, spec.md §3).
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LearningEventID string     `json:"learning_event_id,omitempty"`
}

// GoalAnalysis is the C5 L1 "goal_analysis" sub-object.
type GoalAnalysis struct {
	GoalComplexity     int      `json:"goal_complexity"` // 1..10
	ComplexityFactors  []string `json:"complexity_factors"`
}

// Level1GoalContext is the raw C5 level-1 schema output.
type Level1GoalContext struct {
	GoalAnalysis     GoalAnalysis `json:"goal_analysis"`
	LearningApproach struct {
		RecommendedStrategy string `json:"recommended_strategy"`
	} `json:"learning_approach"`
	DomainBoundaries []string `json:"domain_boundaries"`
}

// Level2StrategicBranches is the raw C5 level-2 schema output (3-7 items,
// unique names) before frontier materialization.
type Level2StrategicBranches struct {
	StrategicBranches []StrategicBranch `json:"strategic_branches"`
}

// TaskDecompositionItem is one entry of a C5 level-3 response.
type TaskDecompositionItem struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	LearningOutcome string   `json:"learning_outcome"`
	Prerequisites   []string `json:"prerequisites"`
}

// Level3TaskDecomposition holds, per branch name, the ordered task list
// produced by decomposing that branch (C5 L3 is scoped to one branch + L1).
type Level3TaskDecomposition struct {
	ByBranch map[string][]TaskDecompositionItem `json:"by_branch"`
}

// MicroParticle is one atomic step with a duration estimate (C5 L4 output).
type MicroParticle struct {
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Level4MicroParticles holds, per frontier task id, its atomic steps.
type Level4MicroParticles struct {
	ByTask map[string][]MicroParticle `json:"by_task"`
}

// NanoAction is an environment-agnostic minimal step (C5 L5 output).
type NanoAction struct {
	Description string `json:"description"`
}

// Level5NanoActions holds, per micro-particle title, its nano-actions.
type Level5NanoActions struct {
	ByParticle map[string][]NanoAction `json:"by_particle"`
}

// ContextVariant is a concrete rendering of a nano-action for one
// recognized context (C5 L6 output).
type ContextVariant struct {
	Context     string `json:"context"`
	Description string `json:"description"`
}

// Level6ContextAdaptivePrimitives holds, per nano-action description, its
// per-context variants.
type Level6ContextAdaptivePrimitives struct {
	ByAction map[string][]ContextVariant `json:"by_action"`
}

// GenerationContext audits how and when the tree (or a level) was produced.
type GenerationContext struct {
	Method    string    `json:"method"` // "schema", "retry", "fallback"
	Timestamp time.Time `json:"timestamp"`
}

// ArchivedTree records a tree superseded by a goal_rewrite evolution.
type ArchivedTree struct {
	ArchivedAt time.Time `json:"archived_at"`
	Suffix     string    `json:"suffix"`
	Tree       *Tree     `json:"tree"`
}

// Tree is the canonical HTA document, one per (project, path).
type Tree struct {
	Goal        string    `json:"goal"`
	Context     string    `json:"context"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`

	Complexity Complexity `json:"complexity"`

	StrategicBranches []StrategicBranch `json:"strategic_branches"`
	FrontierNodes     []FrontierNode    `json:"frontier_nodes"`
	CompletedNodes    []FrontierNode    `json:"completed_nodes"`

	Level1 *Level1GoalContext               `json:"level1_goal_context,omitempty"`
	Level2 *Level2StrategicBranches         `json:"level2_strategic_branches,omitempty"`
	Level3 *Level3TaskDecomposition         `json:"level3_task_decomposition,omitempty"`
	Level4 *Level4MicroParticles            `json:"level4_micro_particles,omitempty"`
	Level5 *Level5NanoActions               `json:"level5_nano_actions,omitempty"`
	Level6 *Level6ContextAdaptivePrimitives `json:"level6_context_adaptive_primitives,omitempty"`

	AvailableDepth int  `json:"available_depth"` // 1..6
	MaxDepth       int  `json:"max_depth"`        // always 6
	CanExpand      bool `json:"can_expand"`

	DomainBoundaries []string `json:"domain_boundaries"`

	GenerationContext GenerationContext `json:"generation_context"`

	ArchivedTrees []ArchivedTree `json:"archived_trees,omitempty"`
}

// BranchNames returns the set of strategic branch names in this tree.
func (t *Tree) BranchNames() map[string]bool {
	names := make(map[string]bool, len(t.StrategicBranches))
	for _, b := range t.StrategicBranches {
		names[b.Name] = true
	}
	return names
}

// FindFrontierNode returns the frontier node with the given id, or nil.
func (t *Tree) FindFrontierNode(id string) *FrontierNode {
	for i := range t.FrontierNodes {
		if t.FrontierNodes[i].ID == id {
			return &t.FrontierNodes[i]
		}
	}
	return nil
}

// FindCompletedNode returns the completed node with the given id, or nil.
func (t *Tree) FindCompletedNode(id string) *FrontierNode {
	for i := range t.CompletedNodes {
		if t.CompletedNodes[i].ID == id {
			return &t.CompletedNodes[i]
		}
	}
	return nil
}

// TaskExists reports whether id refers to a task in either frontier or
// completed nodes (used to validate prerequisites, I2).
func (t *Tree) TaskExists(id string) bool {
	return t.FindFrontierNode(id) != nil || t.FindCompletedNode(id) != nil
}

// RecomputeDepthFlags sets AvailableDepth/CanExpand per I4: AvailableDepth
// is the highest i for which level{i} is non-null.
func (t *Tree) RecomputeDepthFlags() {
	depth := 0
	if t.Level1 != nil {
		depth = 1
	}
	if t.Level2 != nil {
		depth = 2
	}
	if t.Level3 != nil {
		depth = 3
	}
	if t.Level4 != nil {
		depth = 4
	}
	if t.Level5 != nil {
		depth = 5
	}
	if t.Level6 != nil {
		depth = 6
	}
	t.AvailableDepth = depth
	if t.MaxDepth == 0 {
		t.MaxDepth = 6
	}
	t.CanExpand = t.AvailableDepth < t.MaxDepth
}
