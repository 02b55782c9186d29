// Package evolver implements the Strategy Evolver (C10): retires completed
// tasks into the learning history, scores breakthroughs, and reshapes the
// tree in response to completion patterns or an explicit hint. It is the
// only component allowed to renumber priorities, and it must never change
// an existing task id.
package evolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"forest/internal/domain"
	"forest/internal/embedding"
	"forest/internal/htaengine"
	"forest/internal/kvstore"
	"forest/internal/logging"
	"forest/internal/vectorstore"
)

// uncertaintyThreshold is the centroid-similarity floor below which
// convergenceRefinement prunes a non-dominant branch (spec.md §4.9:
// "centroid similarity to the dominant cluster falls below 0.2").
const uncertaintyThreshold = 0.2

// EvolutionKind tags which of the five evolutions ran. Each kind carries its
// own payload on Evolution rather than a shared grab-bag of optional fields.
type EvolutionKind string

const (
	ConvergenceRefinement EvolutionKind = "convergence_refinement"
	UncertaintyExpansion  EvolutionKind = "uncertainty_expansion"
	BranchPruning         EvolutionKind = "branch_pruning"
	DiscoveryEnhancement  EvolutionKind = "discovery_enhancement"
	GoalRewrite           EvolutionKind = "goal_rewrite"
	NoEvolution           EvolutionKind = "none"
)

// ConvergenceRefinementPayload is Evolution's payload when recent completions
// cluster on a dominant knowledge domain.
type ConvergenceRefinementPayload struct {
	DominantDomain string   `json:"dominant_domain"`
	PrunedBranches []string `json:"pruned_branches"`
	BoostedTaskIDs []string `json:"boosted_task_ids"`
}

// UncertaintyExpansionPayload is Evolution's payload when recent completions
// show high variance or signal confusion.
type UncertaintyExpansionPayload struct {
	InjectedTaskIDs []string `json:"injected_task_ids"`
	DifficultyDelta float64  `json:"difficulty_delta"`
}

// BranchPruningPayload is Evolution's payload for an explicit irrelevance hint.
type BranchPruningPayload struct {
	Branch string `json:"branch"`
}

// DiscoveryEnhancementPayload is Evolution's payload for an "explore" hint.
type DiscoveryEnhancementPayload struct {
	NewBranch string `json:"new_branch"`
}

// GoalRewritePayload is Evolution's payload when the user changes direction.
type GoalRewritePayload struct {
	ArchivedSuffix string `json:"archived_suffix"`
	NewGoal        string `json:"new_goal"`
}

// Evolution is the tagged result of an evolve pass. Exactly one payload
// field is populated, selected by Kind.
type Evolution struct {
	Kind        EvolutionKind
	Convergence *ConvergenceRefinementPayload
	Uncertainty *UncertaintyExpansionPayload
	Pruning     *BranchPruningPayload
	Discovery   *DiscoveryEnhancementPayload
	GoalRewrite *GoalRewritePayload
}

// CompletionInput is complete_block_forest's typed input.
type CompletionInput struct {
	BlockID          string
	Outcome          string
	EnergyLevel      int
	Learned          string
	DifficultyRating int
	Breakthrough     bool
}

// Evolver retires tasks and reshapes trees.
type Evolver struct {
	kv       *kvstore.Store
	tree     domain.TreeMutator
	engine   *htaengine.Engine
	vec      *vectorstore.Store // nil means vector mirroring/centroids are unavailable
	embedder embedding.EmbeddingEngine
}

// New wires the evolver to the KV Store, a tree mutator, and the HTA Engine
// (needed for discovery_enhancement and goal_rewrite, which regenerate
// strategic content). vec and embedder may be nil: learning-event mirroring
// and centroid-based convergence detection degrade to a logged no-op and a
// priority-only fallback, respectively (spec.md §5 VectorUnavailable).
func New(kv *kvstore.Store, tree domain.TreeMutator, engine *htaengine.Engine, vec *vectorstore.Store, embedder embedding.EmbeddingEngine) *Evolver {
	return &Evolver{kv: kv, tree: tree, engine: engine, vec: vec, embedder: embedder}
}

// breakthroughLevel scores a completion on a 1..5 scale (spec.md §4.9),
// used both for the appended learning event and for escalation.
func breakthroughLevel(in CompletionInput) int {
	level := 2
	if in.Breakthrough {
		level += 2
	}
	if len(in.Learned) > 100 {
		level++
	}
	if in.DifficultyRating >= 4 {
		level++
	}
	lowerOutcome := strings.ToLower(in.Outcome)
	if strings.Contains(lowerOutcome, "breakthrough") {
		level++
	}
	lowerLearned := strings.ToLower(in.Learned)
	if strings.Contains(lowerLearned, "insight") || strings.Contains(lowerLearned, "understanding") {
		level++
	}
	if level > 5 {
		level = 5
	}
	return level
}

// CompleteBlock retires a frontier task into completed_nodes, appends a
// learning event, and escalates nearby difficulty on a high breakthrough
// score. It returns the now-completed node.
func (e *Evolver) CompleteBlock(ctx context.Context, projectID, path string, in CompletionInput) (*domain.FrontierNode, error) {
	tree, err := e.tree.Load(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, domain.NoActiveProject{}
	}
	node := tree.FindFrontierNode(in.BlockID)
	if node == nil {
		return nil, domain.ValidationError{Message: fmt.Sprintf("no frontier task %s", in.BlockID)}
	}

	level := breakthroughLevel(in)
	now := time.Now().UTC()
	eventID := "evt_" + uuid.NewString()

	completed := *node
	completed.Status = domain.TaskCompleted
	completed.CompletedAt = &now
	completed.LearningEventID = eventID

	remaining := make([]domain.FrontierNode, 0, len(tree.FrontierNodes))
	for _, n := range tree.FrontierNodes {
		if n.ID != in.BlockID {
			remaining = append(remaining, n)
		}
	}
	tree.FrontierNodes = remaining
	tree.CompletedNodes = append(tree.CompletedNodes, completed)

	eventType := domain.EventTaskCompletion
	if level >= 4 {
		eventType = domain.EventBreakthrough
	} else if strings.Contains(strings.ToLower(in.Learned), "insight") {
		eventType = domain.EventInsight
	}
	event := domain.LearningEvent{
		ID:                eventID,
		Type:              eventType,
		TaskID:            in.BlockID,
		Outcome:           in.Outcome,
		Learned:           in.Learned,
		DifficultyRating:  in.DifficultyRating,
		BreakthroughLevel: level,
		Timestamp:         now,
		KnowledgeDomain:   completed.Branch,
	}
	if err := e.appendLearningEvent(projectID, path, event); err != nil {
		return nil, err
	}
	e.mirrorLearningEvent(ctx, projectID, path, event)

	if level >= 4 {
		escalate(tree, completed.Branch)
	}

	tree.RecomputeDepthFlags()
	if err := e.tree.Save(ctx, projectID, path, tree); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryEvolver).Debug("complete_block: %s done, breakthrough_level=%d", in.BlockID, level)
	result := completed
	return &result, nil
}

// escalate raises difficulty on the branch's remaining tasks by 1 (capped at
// 5) and prepends an "Advanced" follow-on task, per spec.md §4.9's
// breakthrough-level-4+ escalation rule.
func escalate(tree *domain.Tree, branch string) {
	highestPriority := 0
	for i := range tree.FrontierNodes {
		if tree.FrontierNodes[i].Branch != branch {
			continue
		}
		if tree.FrontierNodes[i].Difficulty+1 > 5 {
			tree.FrontierNodes[i].Difficulty = 5
		} else {
			tree.FrontierNodes[i].Difficulty++
		}
		if tree.FrontierNodes[i].Priority > highestPriority {
			highestPriority = tree.FrontierNodes[i].Priority
		}
	}

	advanced := domain.FrontierNode{
		ID:              "task_" + uuid.NewString(),
		Title:           "Advanced: " + branch,
		Description:     fmt.Sprintf("A harder follow-on task in %s, unlocked by a breakthrough.", branch),
		Branch:          branch,
		Difficulty:      5,
		DurationMinutes: 30,
		Priority:        highestPriority + 10,
		Status:          domain.TaskPending,
		Generated:       true,
		DomainFocus:     branch,
	}
	tree.FrontierNodes = append([]domain.FrontierNode{advanced}, tree.FrontierNodes...)
}

// mirrorLearningEvent embeds a completed learning event into the vector
// index under "<project>:learning:<event-id>" and, when it crossed the
// breakthrough threshold, additionally under
// "<project>:breakthrough:<event-id>" (spec.md §1 item 6, §6), so
// convergence/uncertainty detection and future semantic lookups can find
// it. Failures degrade gracefully: logged, not propagated (spec.md §5
// VectorUnavailable).
func (e *Evolver) mirrorLearningEvent(ctx context.Context, projectID, path string, event domain.LearningEvent) {
	if e.vec == nil || e.embedder == nil {
		return
	}
	text := strings.TrimSpace(event.Learned + " " + event.Outcome)
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		logging.Get(logging.CategoryEvolver).Warn("mirror learning event: embed failed for %s: %v", event.ID, err)
		return
	}

	meta := map[string]string{
		"type": "learning", "project_id": projectID, "path": path,
		"branch": event.KnowledgeDomain, "task_id": event.TaskID,
	}
	if err := e.vec.Upsert(ctx, projectID+":learning:"+event.ID, vec, meta); err != nil {
		logging.Get(logging.CategoryEvolver).Warn("mirror learning event: upsert failed for %s: %v", event.ID, err)
	}

	if event.BreakthroughLevel >= 4 {
		breakthroughMeta := map[string]string{
			"type": "breakthrough", "project_id": projectID, "path": path,
			"branch": event.KnowledgeDomain, "task_id": event.TaskID,
		}
		if err := e.vec.Upsert(ctx, projectID+":breakthrough:"+event.ID, vec, breakthroughMeta); err != nil {
			logging.Get(logging.CategoryEvolver).Warn("mirror breakthrough: upsert failed for %s: %v", event.ID, err)
		}
	}
}

func (e *Evolver) appendLearningEvent(projectID, path string, event domain.LearningEvent) error {
	var history domain.LearningHistory
	if _, err := e.kv.Read(kvstore.LearningHistoryPath(projectID, path), &history); err != nil {
		return err
	}
	history.Events = append(history.Events, event)
	return e.kv.Write(kvstore.LearningHistoryPath(projectID, path), history)
}

func (e *Evolver) recentEvents(projectID, path string, n int) ([]domain.LearningEvent, error) {
	var history domain.LearningHistory
	if _, err := e.kv.Read(kvstore.LearningHistoryPath(projectID, path), &history); err != nil {
		return nil, err
	}
	events := history.Events
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// EvolveWithFocus is the pipeline.Evolver capability: it folds triggers and
// free-text context into a hint and runs Evolve, discarding the result
// (the caller regenerates its own view afterward).
func (e *Evolver) EvolveWithFocus(ctx context.Context, projectID, path string, triggers []string, context string, pipelineFocus bool) error {
	hint := strings.TrimSpace(strings.Join(triggers, " ") + " " + context)
	_, err := e.Evolve(ctx, projectID, path, hint)
	return err
}

// Evolve dispatches to one of the five tagged evolutions based on hint, or
// (when hint is empty) analyzes recent learning history to decide between
// convergence_refinement and uncertainty_expansion. All mutations preserve
// I1-I6; ids are never changed.
func (e *Evolver) Evolve(ctx context.Context, projectID, path, hint string) (*Evolution, error) {
	tree, err := e.tree.Load(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, domain.NoActiveProject{}
	}

	lower := strings.ToLower(hint)
	var result *Evolution
	switch {
	case strings.Contains(lower, "irrelevant"):
		branch := matchBranch(hint, tree)
		if branch == "" {
			return nil, domain.ValidationError{Message: "branch_pruning hint does not name a known branch"}
		}
		result = e.pruneBranch(tree, branch)
	case strings.Contains(lower, "explore") || strings.Contains(lower, "discover"):
		result, err = e.discoveryEnhancement(ctx, tree, hint)
		if err != nil {
			return nil, err
		}
	case strings.Contains(lower, "change direction") || strings.Contains(lower, "rewrite") || strings.Contains(lower, "new goal"):
		result, err = e.goalRewrite(ctx, tree, hint)
		if err != nil {
			return nil, err
		}
	default:
		result, err = e.convergenceOrUncertainty(ctx, projectID, path, tree)
		if err != nil {
			return nil, err
		}
	}

	if result == nil || result.Kind == NoEvolution {
		return result, nil
	}
	tree.RecomputeDepthFlags()
	if err := e.tree.Save(ctx, projectID, path, tree); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryEvolver).Debug("evolve: %s for %s/%s", result.Kind, projectID, path)
	return result, nil
}

func matchBranch(hint string, tree *domain.Tree) string {
	lower := strings.ToLower(hint)
	for _, b := range tree.StrategicBranches {
		if strings.Contains(lower, strings.ToLower(b.Name)) {
			return b.Name
		}
	}
	return ""
}

// pruneBranch removes a branch and its non-completed frontier tasks. Tasks
// already retired to completed_nodes, and any priority/id on surviving
// branches, are untouched.
func (e *Evolver) pruneBranch(tree *domain.Tree, branch string) *Evolution {
	var branches []domain.StrategicBranch
	for _, b := range tree.StrategicBranches {
		if b.Name != branch {
			branches = append(branches, b)
		}
	}
	tree.StrategicBranches = branches

	var frontier []domain.FrontierNode
	for _, n := range tree.FrontierNodes {
		if n.Branch != branch {
			frontier = append(frontier, n)
		}
	}
	tree.FrontierNodes = frontier

	return &Evolution{Kind: BranchPruning, Pruning: &BranchPruningPayload{Branch: branch}}
}

// convergenceOrUncertainty inspects recent learning events to decide which
// of the two pattern-driven evolutions applies. An empty or too-small
// history is a no-op (nothing to converge or diverge from yet). The
// dominant-domain/confusion signals decide *which* evolution fires; the
// vector centroid of those same events (spec.md §4.9: "aggregating
// knowledge_domain and vector centroids of recent events") decides which
// branches convergence_refinement prunes.
func (e *Evolver) convergenceOrUncertainty(ctx context.Context, projectID, path string, tree *domain.Tree) (*Evolution, error) {
	events, err := e.recentEvents(projectID, path, 10)
	if err != nil {
		return nil, err
	}
	if len(events) < 3 {
		return &Evolution{Kind: NoEvolution}, nil
	}

	if showsConfusion(events) {
		return e.uncertaintyExpansion(tree), nil
	}

	dominant, count := dominantDomain(events)
	if dominant == "" || count*2 < len(events) {
		return e.uncertaintyExpansion(tree), nil
	}

	similarities := e.branchCentroidSimilarities(ctx, projectID, path, events)
	return e.convergenceRefinement(tree, dominant, similarities), nil
}

// eventsCentroid averages the embeddings of events' learned+outcome+domain
// text into a single centroid vector (spec.md §4.9's "vector centroids of
// recent events"). Events that fail to embed are skipped; an error is
// returned only if none embedded at all.
func (e *Evolver) eventsCentroid(ctx context.Context, events []domain.LearningEvent) ([]float32, error) {
	var sum []float64
	count := 0
	for _, ev := range events {
		text := strings.TrimSpace(ev.Learned + " " + ev.Outcome + " " + ev.KnowledgeDomain)
		if text == "" {
			continue
		}
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		for i, v := range vec {
			if i < len(sum) {
				sum[i] += float64(v)
			}
		}
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("no recent events could be embedded")
	}
	centroid := make([]float32, len(sum))
	for i, v := range sum {
		centroid[i] = float32(v / float64(count))
	}
	return centroid, nil
}

// branchCentroidSimilarities compares recent events' centroid against every
// strategic branch's mirrored embedding, returning each branch name's
// cosine similarity to that centroid. Returns nil when no vector
// index/embedder is wired or embedding/querying fails; callers then
// degrade to a priority-only fallback (spec.md §5 VectorUnavailable).
func (e *Evolver) branchCentroidSimilarities(ctx context.Context, projectID, path string, events []domain.LearningEvent) map[string]float64 {
	if e.vec == nil || e.embedder == nil {
		return nil
	}
	centroid, err := e.eventsCentroid(ctx, events)
	if err != nil {
		logging.Get(logging.CategoryEvolver).Warn("centroid: %v", err)
		return nil
	}
	results, err := e.vec.Query(ctx, centroid, vectorstore.QueryOptions{
		K:      len(events) + 10,
		Filter: map[string]string{"type": "branch", "project_id": projectID, "path": path},
	})
	if err != nil {
		logging.Get(logging.CategoryEvolver).Warn("centroid query failed: %v", err)
		return nil
	}
	sims := make(map[string]float64, len(results))
	for _, r := range results {
		if name := r.Metadata["branch"]; name != "" {
			sims[name] = r.Similarity
		}
	}
	return sims
}

func showsConfusion(events []domain.LearningEvent) bool {
	confused := 0
	for _, ev := range events {
		l := strings.ToLower(ev.Learned + " " + ev.Outcome)
		if strings.Contains(l, "confus") || strings.Contains(l, "stuck") || strings.Contains(l, "unclear") {
			confused++
		}
	}
	return confused*3 >= len(events)
}

func dominantDomain(events []domain.LearningEvent) (string, int) {
	counts := make(map[string]int)
	for _, ev := range events {
		if ev.KnowledgeDomain == "" {
			continue
		}
		counts[ev.KnowledgeDomain]++
	}
	best, bestCount := "", 0
	for name, c := range counts {
		if c > bestCount {
			best, bestCount = name, c
		}
	}
	return best, bestCount
}

// convergenceRefinement prunes branches whose centroid similarity to the
// dominant domain's recent events falls below uncertaintyThreshold (spec.md
// §4.9), and boosts the dominant branch's remaining tasks' priority (the
// evolver's one license to renumber priorities). When similarities is nil
// (no vector index/embedder wired), pruning falls back to below-median
// priority instead (spec.md §5 VectorUnavailable).
func (e *Evolver) convergenceRefinement(tree *domain.Tree, dominant string, similarities map[string]float64) *Evolution {
	median := medianPriority(tree.StrategicBranches)
	var pruned []string
	var branches []domain.StrategicBranch
	for _, b := range tree.StrategicBranches {
		keep := b.Name == dominant
		if !keep {
			if similarities != nil {
				keep = similarities[b.Name] >= uncertaintyThreshold
			} else {
				keep = b.Priority >= median
			}
		}
		if keep {
			branches = append(branches, b)
			continue
		}
		pruned = append(pruned, b.Name)
	}
	tree.StrategicBranches = branches

	prunedSet := make(map[string]bool, len(pruned))
	for _, p := range pruned {
		prunedSet[p] = true
	}
	var frontier []domain.FrontierNode
	var boosted []string
	for _, n := range tree.FrontierNodes {
		if prunedSet[n.Branch] {
			continue
		}
		if n.Branch == dominant {
			n.Priority += 50
			boosted = append(boosted, n.ID)
		}
		frontier = append(frontier, n)
	}
	tree.FrontierNodes = frontier

	return &Evolution{
		Kind: ConvergenceRefinement,
		Convergence: &ConvergenceRefinementPayload{
			DominantDomain: dominant,
			PrunedBranches: pruned,
			BoostedTaskIDs: boosted,
		},
	}
}

func medianPriority(branches []domain.StrategicBranch) int {
	if len(branches) == 0 {
		return 0
	}
	ps := make([]int, len(branches))
	for i, b := range branches {
		ps[i] = b.Priority
	}
	sort.Ints(ps)
	mid := len(ps) / 2
	if len(ps)%2 == 0 {
		return (ps[mid-1] + ps[mid]) / 2
	}
	return ps[mid]
}

// uncertaintyExpansion injects a couple of discovery tasks under a reserved
// branch and lowers global difficulty by 1 until the next convergence pass.
func (e *Evolver) uncertaintyExpansion(tree *domain.Tree) *Evolution {
	const reservedBranch = "Exploration"
	if !tree.BranchNames()[reservedBranch] {
		tree.StrategicBranches = append(tree.StrategicBranches, domain.StrategicBranch{
			Name:        reservedBranch,
			Description: "Low-stakes discovery tasks to rebuild footing after a rough patch.",
			Priority:    medianPriority(tree.StrategicBranches),
			Focus:       domain.FocusHandsOn,
		})
	}

	var injected []string
	titles := []string{"Explore a related angle", "Try a small experiment"}
	for i, title := range titles {
		id := "task_" + uuid.NewString()
		tree.FrontierNodes = append(tree.FrontierNodes, domain.FrontierNode{
			ID:              id,
			Title:           title,
			Branch:          reservedBranch,
			Difficulty:      2,
			DurationMinutes: 20,
			Priority:        10 * (i + 1),
			Status:          domain.TaskPending,
			Generated:       true,
			DomainFocus:     reservedBranch,
		})
		injected = append(injected, id)
	}

	for i := range tree.FrontierNodes {
		if tree.FrontierNodes[i].Difficulty-1 >= 1 {
			tree.FrontierNodes[i].Difficulty--
		}
	}

	return &Evolution{
		Kind: UncertaintyExpansion,
		Uncertainty: &UncertaintyExpansionPayload{
			InjectedTaskIDs: injected,
			DifficultyDelta: -1,
		},
	}
}

// discoveryEnhancement adds a branch derived from a fresh level-2 pass on a
// goal prompt refined by hint, and materializes its frontier.
func (e *Evolver) discoveryEnhancement(ctx context.Context, tree *domain.Tree, hint string) (*Evolution, error) {
	refinedGoal := strings.TrimSpace(tree.Goal + " " + hint)
	l2, _, err := e.engine.BuildLevel2(ctx, refinedGoal, tree.Level1, tree.Complexity)
	if err != nil {
		return nil, err
	}

	existing := tree.BranchNames()
	var fresh *domain.StrategicBranch
	for i := range l2.StrategicBranches {
		if !existing[l2.StrategicBranches[i].Name] {
			fresh = &l2.StrategicBranches[i]
			break
		}
	}
	if fresh == nil {
		return &Evolution{Kind: NoEvolution}, nil
	}

	tree.StrategicBranches = append(tree.StrategicBranches, *fresh)
	newTasks := htaengine.MaterializeFrontier([]domain.StrategicBranch{*fresh}, tree.Complexity, htaengine.FrontierContext{})
	tree.FrontierNodes = append(tree.FrontierNodes, newTasks...)

	return &Evolution{Kind: DiscoveryEnhancement, Discovery: &DiscoveryEnhancementPayload{NewBranch: fresh.Name}}, nil
}

// goalRewrite archives the current tree under archived_trees[] and rebuilds
// from a new goal derived from hint.
func (e *Evolver) goalRewrite(ctx context.Context, tree *domain.Tree, hint string) (*Evolution, error) {
	newGoal := strings.TrimSpace(hint)
	if newGoal == "" {
		newGoal = tree.Goal
	}

	archivedCopy := *tree
	suffix := fmt.Sprintf("rewrite-%d", time.Now().UTC().UnixNano())
	archived := domain.ArchivedTree{ArchivedAt: time.Now().UTC(), Suffix: suffix, Tree: &archivedCopy}

	l1, _, err := e.engine.BuildLevel1(ctx, newGoal, tree.Context, htaengine.ExperienceNeutral)
	if err != nil {
		return nil, err
	}
	complexity := htaengine.AnalyzeGoal(newGoal+" "+tree.Context, htaengine.ExperienceNeutral)
	l2, _, err := e.engine.BuildLevel2(ctx, newGoal, l1, complexity)
	if err != nil {
		return nil, err
	}
	frontier := htaengine.MaterializeFrontier(l2.StrategicBranches, complexity, htaengine.FrontierContext{})

	now := time.Now().UTC()
	tree.Goal = newGoal
	tree.LastUpdated = now
	tree.Complexity = complexity
	tree.StrategicBranches = l2.StrategicBranches
	tree.FrontierNodes = frontier
	tree.CompletedNodes = nil
	tree.Level1 = l1
	tree.Level2 = l2
	tree.Level3 = nil
	tree.Level4 = nil
	tree.Level5 = nil
	tree.Level6 = nil
	tree.DomainBoundaries = l1.DomainBoundaries
	tree.GenerationContext = domain.GenerationContext{Method: "schema", Timestamp: now}
	tree.ArchivedTrees = append(tree.ArchivedTrees, archived)

	return &Evolution{Kind: GoalRewrite, GoalRewrite: &GoalRewritePayload{ArchivedSuffix: suffix, NewGoal: newGoal}}, nil
}
