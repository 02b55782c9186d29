package htaengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forest/internal/domain"
	"forest/internal/embedding"
	"forest/internal/logging"
	"forest/internal/vectorstore"
)

// Delegator is the subset of the Intelligence Bridge the engine needs
// (Design Notes: depend on a small capability interface, not a concrete
// type, so tests can substitute a fake).
type Delegator interface {
	Delegate(params domain.DelegateParams) domain.RequestEnvelope
	AwaitResponse(ctx context.Context, requestID string) (*domain.ResponseEnvelope, error)
}

// Engine is the Schema HTA Engine (C5).
type Engine struct {
	bridge Delegator
}

// New wraps a Delegator (normally *bridge.Bridge).
func New(d Delegator) *Engine {
	return &Engine{bridge: d}
}

// levelTemperature decreases with depth, per spec.md §4.4 step 2.
func levelTemperature(level int) float64 {
	return clampFloat(1.0-float64(level-1)*0.15, 0.1, 1.0)
}

// delegateOrFallback runs one schema-constrained round trip through the
// bridge and falls back to a deterministic generator on any error
// (timeout, validation failure, or no bridge configured). This realizes the
// retry ladder's terminal step for every level, and is the only round trip
// for levels that have no further retries.
func (e *Engine) delegateOrFallback(ctx context.Context, level int, system, user string, schema *domain.Schema, fallback func() map[string]interface{}) (map[string]interface{}, string) {
	if e.bridge == nil {
		return fallback(), "fallback"
	}
	env := e.bridge.Delegate(domain.DelegateParams{
		System:      system,
		User:        user,
		Schema:      schema,
		Temperature: levelTemperature(level),
	})
	resp, err := e.bridge.AwaitResponse(ctx, env.RequestID)
	if err != nil {
		logging.Get(logging.CategoryHTAEngine).Warn("level %d delegation failed (%v), using fallback", level, err)
		return fallback(), "fallback"
	}
	return resp.Data, "schema"
}

// BuildLevel1 produces the goal context level. An unrecoverable failure
// here fails the whole tree build (spec.md §4.4 failure semantics).
func (e *Engine) BuildLevel1(ctx context.Context, goal, aggregateContext string, experience UserExperience) (*domain.Level1GoalContext, domain.GenerationContext, error) {
	complexity := AnalyzeGoal(goal+" "+aggregateContext, experience)

	data, method := e.delegateOrFallback(ctx, 1,
		"You are analyzing a learning goal to produce its level-1 goal context.",
		fmt.Sprintf("Goal: %s\nContext: %s", goal, aggregateContext),
		&domain.Schema{Required: []string{"goal_analysis", "learning_approach", "domain_boundaries"}},
		func() map[string]interface{} {
			return map[string]interface{}{
				"goal_analysis": map[string]interface{}{
					"goal_complexity":    complexity.Score,
					"complexity_factors": complexity.Factors,
				},
				"learning_approach": map[string]interface{}{
					"recommended_strategy": recommendedStrategy(complexity),
				},
				"domain_boundaries": deriveDomainBoundaries(goal),
			}
		},
	)

	l1 := decodeLevel1(data, complexity)
	return l1, domain.GenerationContext{Method: method, Timestamp: nowUTC()}, nil
}

// BuildLevel2 produces strategic branches, running the retry ladder: one
// retry with an enriched, genericism-forbidding prompt, then the
// goal-adaptive fallback.
func (e *Engine) BuildLevel2(ctx context.Context, goal string, l1 *domain.Level1GoalContext, complexity domain.Complexity) (*domain.Level2StrategicBranches, domain.GenerationContext, error) {
	schema := &domain.Schema{Required: []string{"strategic_branches"}}
	user := fmt.Sprintf("Goal: %s\nDomain boundaries: %s", goal, strings.Join(l1.DomainBoundaries, ", "))

	system := "Produce 3-7 strategic branches partitioning this learning goal, each with name, description, priority, domain_focus, rationale, expected_outcomes[], and context_adaptations[]."
	data, method := e.delegateOrFallback(ctx, 2, system, user, schema,
		func() map[string]interface{} { return nil },
	)
	branches := decodeBranches(data)
	if !acceptableBranches(branches) {
		enriched := user + "\nDo not use generic terms like Foundation, Research, or Implementation; use terminology specific to the goal's domain."
		data2, _ := e.delegateOrFallback(ctx, 2, "Retry: produce 3-7 strategic branches, domain-specific naming required.", enriched, schema,
			func() map[string]interface{} { return nil })
		branches = decodeBranches(data2)
		method = "retry"
	}
	if !acceptableBranches(branches) {
		branches = FallbackBranches(goal, complexity)
		method = "fallback"
	}

	return &domain.Level2StrategicBranches{StrategicBranches: branches}, domain.GenerationContext{Method: method, Timestamp: nowUTC()}, nil
}

// acceptableBranches implements L2's level-specific predicate: at least 3
// branches with unique names.
func acceptableBranches(branches []domain.StrategicBranch) bool {
	if len(branches) < 3 {
		return false
	}
	seen := make(map[string]bool, len(branches))
	for _, b := range branches {
		if b.Name == "" || seen[b.Name] {
			return false
		}
		seen[b.Name] = true
	}
	return true
}

func decodeLevel1(data map[string]interface{}, fallback domain.Complexity) *domain.Level1GoalContext {
	l1 := &domain.Level1GoalContext{
		GoalAnalysis: domain.GoalAnalysis{
			GoalComplexity:    fallback.Score,
			ComplexityFactors: fallback.Factors,
		},
	}
	if ga, ok := data["goal_analysis"].(map[string]interface{}); ok {
		if v, ok := ga["goal_complexity"].(float64); ok {
			l1.GoalAnalysis.GoalComplexity = int(v)
		}
		if factors, ok := ga["complexity_factors"].([]interface{}); ok {
			l1.GoalAnalysis.ComplexityFactors = toStringSlice(factors)
		}
	}
	if la, ok := data["learning_approach"].(map[string]interface{}); ok {
		if s, ok := la["recommended_strategy"].(string); ok {
			l1.LearningApproach.RecommendedStrategy = s
		}
	}
	if db, ok := data["domain_boundaries"].([]interface{}); ok {
		l1.DomainBoundaries = toStringSlice(db)
	}
	return l1
}

func decodeBranches(data map[string]interface{}) []domain.StrategicBranch {
	raw, ok := data["strategic_branches"].([]interface{})
	if !ok {
		return nil
	}
	var out []domain.StrategicBranch
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var expectedOutcomes, contextAdaptations []string
		if eo, ok := m["expected_outcomes"].([]interface{}); ok {
			expectedOutcomes = toStringSlice(eo)
		}
		if ca, ok := m["context_adaptations"].([]interface{}); ok {
			contextAdaptations = toStringSlice(ca)
		}
		out = append(out, domain.StrategicBranch{
			Name:               stringField(m, "name"),
			Description:        stringField(m, "description"),
			Priority:           intField(m, "priority"),
			DomainFocus:        stringField(m, "domain_focus"),
			Rationale:          stringField(m, "rationale"),
			ExpectedOutcomes:   expectedOutcomes,
			ContextAdaptations: contextAdaptations,
			Focus:              domain.BranchFocus(stringField(m, "focus")),
		})
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func toStringSlice(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func recommendedStrategy(c domain.Complexity) string {
	switch c.Level {
	case domain.ComplexitySimple:
		return "broad-survey"
	case domain.ComplexityExpert:
		return "deep-specialization"
	default:
		return "progressive-practice"
	}
}

func deriveDomainBoundaries(goal string) []string {
	core := coreSubject(goal)
	return []string{core}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// BuildLevel3 decomposes one branch into an ordered task list. Scoped to a
// single branch per spec.md §4.4's input contract for level 3.
func (e *Engine) BuildLevel3(ctx context.Context, branch domain.StrategicBranch, l1 *domain.Level1GoalContext) []domain.TaskDecompositionItem {
	schema := &domain.Schema{Required: []string{"tasks"}}
	user := fmt.Sprintf("Branch: %s\nDescription: %s\nDomain boundaries: %s", branch.Name, branch.Description, strings.Join(l1.DomainBoundaries, ", "))

	data, _ := e.delegateOrFallback(ctx, 3,
		"Decompose this strategic branch into an ordered list of concrete tasks.", user, schema,
		func() map[string]interface{} { return nil },
	)
	items := decodeTaskDecomposition(data)
	if len(items) == 0 {
		items = fallbackTaskDecomposition(branch)
	}
	return items
}

func decodeTaskDecomposition(data map[string]interface{}) []domain.TaskDecompositionItem {
	raw, ok := data["tasks"].([]interface{})
	if !ok {
		return nil
	}
	var out []domain.TaskDecompositionItem
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var prereqs []string
		if p, ok := m["prerequisites"].([]interface{}); ok {
			prereqs = toStringSlice(p)
		}
		out = append(out, domain.TaskDecompositionItem{
			Title:           stringField(m, "title"),
			Description:     stringField(m, "description"),
			LearningOutcome: stringField(m, "learning_outcome"),
			Prerequisites:   prereqs,
		})
	}
	return out
}

func fallbackTaskDecomposition(branch domain.StrategicBranch) []domain.TaskDecompositionItem {
	core := coreSubject(branch.Name)
	titles := []string{"Orient", "Practice core technique", "Apply in context", "Review and refine"}
	items := make([]domain.TaskDecompositionItem, 0, len(titles))
	var prev string
	for _, t := range titles {
		title := fmt.Sprintf("%s: %s", t, core)
		var prereqs []string
		if prev != "" {
			prereqs = []string{prev}
		}
		items = append(items, domain.TaskDecompositionItem{
			Title:           title,
			Description:     fmt.Sprintf("%s within %s.", t, branch.Name),
			LearningOutcome: fmt.Sprintf("Can %s.", strings.ToLower(t)),
			Prerequisites:   prereqs,
		})
		prev = title
	}
	return items
}

// BuildLevel4 breaks one frontier task into atomic steps with duration
// estimates (spec.md §4.4 level 4).
func (e *Engine) BuildLevel4(ctx context.Context, task domain.FrontierNode, l1 *domain.Level1GoalContext) []domain.MicroParticle {
	schema := &domain.Schema{Required: []string{"steps"}}
	user := fmt.Sprintf("Task: %s\nDescription: %s", task.Title, task.Description)

	data, _ := e.delegateOrFallback(ctx, 4,
		"Break this task into atomic micro-particle steps with duration estimates.", user, schema,
		func() map[string]interface{} { return nil },
	)
	particles := decodeMicroParticles(data)
	if len(particles) == 0 {
		per := task.DurationMinutes / 3
		if per < 1 {
			per = 1
		}
		particles = []domain.MicroParticle{
			{Title: "Prepare for " + task.Title, DurationMinutes: per},
			{Title: "Work through " + task.Title, DurationMinutes: per},
			{Title: "Reflect on " + task.Title, DurationMinutes: task.DurationMinutes - 2*per},
		}
	}
	return particles
}

func decodeMicroParticles(data map[string]interface{}) []domain.MicroParticle {
	raw, ok := data["steps"].([]interface{})
	if !ok {
		return nil
	}
	var out []domain.MicroParticle
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, domain.MicroParticle{
			Title:           stringField(m, "title"),
			DurationMinutes: intField(m, "duration_minutes"),
		})
	}
	return out
}

// BuildLevel5 reduces one micro-particle to environment-agnostic minimal
// steps (spec.md §4.4 level 5).
func (e *Engine) BuildLevel5(ctx context.Context, particle domain.MicroParticle, l1 *domain.Level1GoalContext) []domain.NanoAction {
	schema := &domain.Schema{Required: []string{"actions"}}
	user := fmt.Sprintf("Micro-particle: %s (%d min)", particle.Title, particle.DurationMinutes)

	data, _ := e.delegateOrFallback(ctx, 5,
		"Reduce this micro-particle to environment-agnostic minimal nano-actions.", user, schema,
		func() map[string]interface{} { return nil },
	)
	actions := decodeNanoActions(data)
	if len(actions) == 0 {
		actions = []domain.NanoAction{{Description: "Begin: " + particle.Title}, {Description: "Complete: " + particle.Title}}
	}
	return actions
}

func decodeNanoActions(data map[string]interface{}) []domain.NanoAction {
	raw, ok := data["actions"].([]interface{})
	if !ok {
		return nil
	}
	var out []domain.NanoAction
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, domain.NanoAction{Description: stringField(m, "description")})
	}
	return out
}

// defaultContexts enumerates the recognized rendering contexts used when no
// specific user context is supplied to level 6.
var defaultContexts = []string{"low-resource", "standard", "high-resource"}

// BuildLevel6 renders one nano-action as concrete variants per recognized
// context (spec.md §4.4 level 6).
func (e *Engine) BuildLevel6(ctx context.Context, action domain.NanoAction, l1 *domain.Level1GoalContext, userContext string) []domain.ContextVariant {
	schema := &domain.Schema{Required: []string{"variants"}}
	contexts := defaultContexts
	if userContext != "" {
		contexts = []string{userContext}
	}
	user := fmt.Sprintf("Nano-action: %s\nContexts: %s", action.Description, strings.Join(contexts, ", "))

	data, _ := e.delegateOrFallback(ctx, 6,
		"Render this nano-action as concrete variants for each listed context.", user, schema,
		func() map[string]interface{} { return nil },
	)
	variants := decodeContextVariants(data)
	if len(variants) == 0 {
		for _, c := range contexts {
			variants = append(variants, domain.ContextVariant{Context: c, Description: action.Description + " (" + c + ")"})
		}
	}
	return variants
}

func decodeContextVariants(data map[string]interface{}) []domain.ContextVariant {
	raw, ok := data["variants"].([]interface{})
	if !ok {
		return nil
	}
	var out []domain.ContextVariant
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, domain.ContextVariant{
			Context:     stringField(m, "context"),
			Description: stringField(m, "description"),
		})
	}
	return out
}

// Expand generates only the missing level{k}_* slices up to targetDepth,
// scoped to branch if given, and is idempotent: levels already present are
// left untouched (spec.md §4.4 "on-demand depth expansion").
func (e *Engine) Expand(ctx context.Context, tree *domain.Tree, targetDepth int, branch string) {
	if tree.Level1 == nil || targetDepth < 3 {
		tree.RecomputeDepthFlags()
		return
	}

	branches := tree.StrategicBranches
	if branch != "" {
		branches = filterBranches(branches, branch)
	}

	if targetDepth >= 3 && tree.Level3 == nil {
		tree.Level3 = &domain.Level3TaskDecomposition{ByBranch: map[string][]domain.TaskDecompositionItem{}}
	}
	if targetDepth >= 3 {
		for _, b := range branches {
			if _, ok := tree.Level3.ByBranch[b.Name]; ok {
				continue
			}
			tree.Level3.ByBranch[b.Name] = e.BuildLevel3(ctx, b, tree.Level1)
		}
	}

	if targetDepth >= 4 && tree.Level3 != nil {
		if tree.Level4 == nil {
			tree.Level4 = &domain.Level4MicroParticles{ByTask: map[string][]domain.MicroParticle{}}
		}
		for _, node := range relevantFrontier(tree, branches) {
			if _, ok := tree.Level4.ByTask[node.ID]; ok {
				continue
			}
			tree.Level4.ByTask[node.ID] = e.BuildLevel4(ctx, node, tree.Level1)
		}
	}

	if targetDepth >= 5 && tree.Level4 != nil {
		if tree.Level5 == nil {
			tree.Level5 = &domain.Level5NanoActions{ByParticle: map[string][]domain.NanoAction{}}
		}
		for _, particles := range tree.Level4.ByTask {
			for _, p := range particles {
				if _, ok := tree.Level5.ByParticle[p.Title]; ok {
					continue
				}
				tree.Level5.ByParticle[p.Title] = e.BuildLevel5(ctx, p, tree.Level1)
			}
		}
	}

	if targetDepth >= 6 && tree.Level5 != nil {
		if tree.Level6 == nil {
			tree.Level6 = &domain.Level6ContextAdaptivePrimitives{ByAction: map[string][]domain.ContextVariant{}}
		}
		for _, actions := range tree.Level5.ByParticle {
			for _, a := range actions {
				if _, ok := tree.Level6.ByAction[a.Description]; ok {
					continue
				}
				tree.Level6.ByAction[a.Description] = e.BuildLevel6(ctx, a, tree.Level1, "")
			}
		}
	}

	tree.RecomputeDepthFlags()
}

func filterBranches(branches []domain.StrategicBranch, name string) []domain.StrategicBranch {
	for _, b := range branches {
		if b.Name == name {
			return []domain.StrategicBranch{b}
		}
	}
	return nil
}

func relevantFrontier(tree *domain.Tree, branches []domain.StrategicBranch) []domain.FrontierNode {
	names := make(map[string]bool, len(branches))
	for _, b := range branches {
		names[b.Name] = true
	}
	var out []domain.FrontierNode
	for _, n := range tree.FrontierNodes {
		if names[n.Branch] {
			out = append(out, n)
		}
	}
	return out
}

// RelevanceClass classifies a user topic against a tree's domain boundaries.
type RelevanceClass string

const (
	RelevanceInScope  RelevanceClass = "in-scope"
	RelevanceAdjacent RelevanceClass = "adjacent"
	RelevanceOffTopic RelevanceClass = "off-topic"
)

// ExplorationRelevance scores a user topic against a tree's domain
// boundaries, blending semantic similarity (a C2 query over branch vectors)
// with plain keyword overlap (spec.md §4.4 "exploration-relevance check").
func ExplorationRelevance(ctx context.Context, topic string, domainBoundaries []string, store *vectorstore.Store, embedder embedding.EmbeddingEngine) (float64, RelevanceClass, error) {
	keywordScore := keywordOverlap(topic, domainBoundaries)

	semanticScore := 0.0
	if store != nil && embedder != nil {
		vec, err := embedder.Embed(ctx, topic)
		if err == nil {
			results, err := store.Query(ctx, vec, vectorstore.QueryOptions{K: 3})
			if err == nil && len(results) > 0 {
				semanticScore = results[0].Similarity
			}
		}
	}

	score := clampFloat(0.6*semanticScore+0.4*keywordScore, 0, 1)
	class := RelevanceOffTopic
	switch {
	case score >= 0.66:
		class = RelevanceInScope
	case score >= 0.33:
		class = RelevanceAdjacent
	}
	return score, class, nil
}

func keywordOverlap(topic string, boundaries []string) float64 {
	if len(boundaries) == 0 {
		return 0
	}
	topicWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		topicWords[strings.Trim(w, ".,!?")] = true
	}
	hits := 0
	total := 0
	for _, b := range boundaries {
		for _, w := range strings.Fields(strings.ToLower(b)) {
			total++
			if topicWords[strings.Trim(w, ".,!?")] {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
