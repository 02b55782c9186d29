// Package selector implements the Task Selector (C8): scores eligible
// frontier tasks against the caller's energy/time/focus criteria and
// returns the single best match.
package selector

import (
	"context"
	"math"
	"sort"

	"forest/internal/domain"
	"forest/internal/embedding"
	"forest/internal/logging"
	"forest/internal/vectorstore"
)

// Selector scores and picks frontier tasks.
type Selector struct {
	tree     domain.TreeMutator
	vec      *vectorstore.Store // nil degrades gracefully (VectorUnavailable)
	embedder embedding.EmbeddingEngine
}

// New wires the selector to its tree store and optional semantic boost.
func New(tree domain.TreeMutator, vec *vectorstore.Store, embedder embedding.EmbeddingEngine) *Selector {
	return &Selector{tree: tree, vec: vec, embedder: embedder}
}

// Select returns the highest-scoring eligible task, or nil if none exists.
func (s *Selector) Select(ctx context.Context, projectID, path string, criteria domain.SelectionCriteria) (*domain.FrontierNode, error) {
	tree, err := s.tree.Load(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}

	eligible := eligibleTasks(tree)
	if len(eligible) == 0 {
		return nil, nil
	}

	semanticBoost := s.semanticBoosts(ctx, projectID, path, criteria, eligible)

	type scored struct {
		node  domain.FrontierNode
		score int
	}
	var results []scored
	for _, n := range eligible {
		sc := score(n, criteria) + semanticBoost[n.ID]
		results = append(results, scored{node: n, score: sc})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].node.Priority != results[j].node.Priority {
			return results[i].node.Priority > results[j].node.Priority
		}
		return results[i].node.ID < results[j].node.ID
	})

	best := results[0].node
	return &best, nil
}

// eligibleTasks excludes completed tasks and tasks with any unsatisfied
// prerequisite.
func eligibleTasks(tree *domain.Tree) []domain.FrontierNode {
	completed := make(map[string]bool, len(tree.CompletedNodes))
	for _, n := range tree.CompletedNodes {
		completed[n.ID] = true
	}

	var out []domain.FrontierNode
	for _, n := range tree.FrontierNodes {
		if n.Status == domain.TaskCompleted {
			continue
		}
		ok := true
		for _, p := range n.Prerequisites {
			if !completed[p] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, n)
		}
	}
	return out
}

// Score computes a task's energy/time/focus/priority match against criteria,
// the same formula Select uses to rank eligible tasks. Exported so the
// Pipeline Presenter can rank its non-top candidates by the same criteria
// the selector used for the top pick, instead of raw priority alone.
func Score(n domain.FrontierNode, c domain.SelectionCriteria) int {
	return score(n, c)
}

func score(n domain.FrontierNode, c domain.SelectionCriteria) int {
	diff := int(math.Round(n.Difficulty)) - c.EnergyLevel
	if diff < 0 {
		diff = -diff
	}
	energyMatch := max0(5-diff) * 2

	timeMatch := 1
	if c.TimeAvailable >= n.DurationMinutes {
		timeMatch = 3
	}

	focusMatch := 0
	if c.FocusArea != "" && n.Branch == c.FocusArea {
		focusMatch = 3
	}

	priorityBoost := priorityBucketScore(n.Priority)

	statusAdjust := 0
	if n.Status == domain.TaskInProgress {
		statusAdjust = 2
	}

	return energyMatch + timeMatch + focusMatch + priorityBoost + statusAdjust
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// priorityBucketScore buckets the priority field into high/medium/low,
// since frontier priorities are generated as branch.priority*100+index*10
// and top-priority branches start materializing at the 100s (spec.md §4.4).
func priorityBucketScore(priority int) int {
	switch {
	case priority >= 200:
		return 2
	case priority >= 100:
		return 1
	default:
		return 0
	}
}

// semanticBoosts runs one C2 query (filtered to this tree's frontier) when a
// semantic_query is set, and returns round(similarity*5) per matching task
// id. A nil/unavailable vector index degrades to no boost, per
// VectorUnavailable semantics.
func (s *Selector) semanticBoosts(ctx context.Context, projectID, path string, c domain.SelectionCriteria, eligible []domain.FrontierNode) map[string]int {
	boosts := make(map[string]int)
	if c.SemanticQuery == "" || s.vec == nil || s.embedder == nil {
		return boosts
	}

	vec, err := s.embedder.Embed(ctx, c.SemanticQuery)
	if err != nil {
		logging.Get(logging.CategorySelector).Warn("semantic boost: embed failed: %v", err)
		return boosts
	}
	results, err := s.vec.Query(ctx, vec, vectorstore.QueryOptions{
		K:      len(eligible),
		Filter: map[string]string{"type": "task", "project_id": projectID, "path": path},
	})
	if err != nil {
		logging.Get(logging.CategorySelector).Warn("semantic boost: query failed: %v", err)
		return boosts
	}
	for _, r := range results {
		boosts[r.ID] = int(math.Round(r.Similarity * 5))
	}
	return boosts
}
