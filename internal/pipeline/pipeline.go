// Package pipeline implements the Pipeline Presenter (C9): an ordered
// window of upcoming tasks drawn from the Task Selector, mixed across
// branches to avoid monotony.
package pipeline

import (
	"context"
	"sort"

	"forest/internal/domain"
	"forest/internal/logging"
	"forest/internal/selector"
)

// DefaultWindowSize is N, the default pipeline length (spec.md §4.8).
const DefaultWindowSize = 5

// Evolver is the capability the presenter needs from the Strategy Evolver
// to run evolve_pipeline's pipeline-focused evolution pass.
type Evolver interface {
	EvolveWithFocus(ctx context.Context, projectID, path string, triggers []string, context string, pipelineFocus bool) error
}

// Presenter builds the task pipeline window.
type Presenter struct {
	selector domain.TaskSource
	evolver  Evolver
	tree     domain.TreeMutator
}

// New wires the presenter to the selector, tree store, and evolver.
func New(selector domain.TaskSource, tree domain.TreeMutator, evolver Evolver) *Presenter {
	return &Presenter{selector: selector, tree: tree, evolver: evolver}
}

// Criteria is next_pipeline's typed input.
type Criteria struct {
	EnergyLevel   int
	TimeAvailable int
	Context       string
}

// NextPipeline returns up to n tasks (DefaultWindowSize if n <= 0): the top
// selector candidate, then additional picks maximizing branch coverage.
func (p *Presenter) NextPipeline(ctx context.Context, projectID, path string, criteria Criteria, n int) ([]domain.FrontierNode, error) {
	if n <= 0 {
		n = DefaultWindowSize
	}

	tree, err := p.tree.Load(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}

	top, err := p.selector.Select(ctx, projectID, path, domain.SelectionCriteria{
		EnergyLevel:   criteria.EnergyLevel,
		TimeAvailable: criteria.TimeAvailable,
	})
	if err != nil {
		return nil, err
	}
	if top == nil {
		return nil, nil
	}

	window := []domain.FrontierNode{*top}
	seenBranches := map[string]bool{top.Branch: true}
	seenIDs := map[string]bool{top.ID: true}

	candidates := rankedEligible(tree, criteria)

	for len(window) < n {
		picked := false
		for _, c := range candidates {
			if seenIDs[c.ID] || seenBranches[c.Branch] {
				continue
			}
			window = append(window, c)
			seenIDs[c.ID] = true
			seenBranches[c.Branch] = true
			picked = true
			break
		}
		if picked {
			continue
		}
		found := false
		for _, c := range candidates {
			if seenIDs[c.ID] {
				continue
			}
			window = append(window, c)
			seenIDs[c.ID] = true
			found = true
			break
		}
		if !found {
			break
		}
	}

	logging.Get(logging.CategoryPipeline).Debug("next_pipeline: %d/%d tasks for %s/%s", len(window), n, projectID, path)
	return window, nil
}

// rankedEligible mirrors the selector's eligibility filter and scores each
// candidate with the selector's own energy/time/priority formula against
// criteria, so the presenter's non-top picks respect the same energy/time
// match the top slot used instead of falling back to raw priority.
func rankedEligible(tree *domain.Tree, criteria Criteria) []domain.FrontierNode {
	completed := make(map[string]bool, len(tree.CompletedNodes))
	for _, n := range tree.CompletedNodes {
		completed[n.ID] = true
	}

	var eligible []domain.FrontierNode
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
			eligible = append(eligible, n)
		}
	}

	sel := domain.SelectionCriteria{EnergyLevel: criteria.EnergyLevel, TimeAvailable: criteria.TimeAvailable}
	scores := make(map[string]int, len(eligible))
	for _, n := range eligible {
		scores[n.ID] = selector.Score(n, sel)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] > scores[b.ID]
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return eligible
}

// EvolvePipeline triggers a pipeline-focused Strategy Evolver pass, then
// regenerates the window (spec.md §4.8).
func (p *Presenter) EvolvePipeline(ctx context.Context, projectID, path string, triggers []string, criteria Criteria, n int) ([]domain.FrontierNode, error) {
	if p.evolver != nil {
		if err := p.evolver.EvolveWithFocus(ctx, projectID, path, triggers, criteria.Context, true); err != nil {
			return nil, err
		}
	}
	return p.NextPipeline(ctx, projectID, path, criteria, n)
}
