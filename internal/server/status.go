package server

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"forest/internal/domain"
	"forest/internal/kvstore"
)

// StatusSummary is current_status_forest's result: a cross-component
// snapshot rather than any one component's native shape.
type StatusSummary struct {
	Project          *domain.Project            `json:"project"`
	OnboardingStage  domain.OnboardingStage      `json:"onboarding_stage,omitempty"`
	FrontierCount    int                         `json:"frontier_count"`
	CompletedCount   int                         `json:"completed_count"`
	EligibleFrontier int                         `json:"eligible_frontier"`
	BridgePending    int                         `json:"bridge_pending"`
	Supervisor       map[string]supervisorStatus `json:"supervisor"`
}

type supervisorStatus struct {
	Running    bool `json:"running"`
	RunCount   int  `json:"run_count"`
	ErrorCount int  `json:"error_count"`
}

// currentStatus aggregates project, tree, onboarding, bridge, and
// supervisor state into one summary (spec.md §6 current_status_forest).
// An empty projectID falls back to whichever project is active.
func (s *Server) currentStatus(ctx context.Context, projectID string) (any, error) {
	var p *domain.Project
	var err error
	if projectID == "" {
		p, err = s.project.GetActive(ctx)
	} else {
		p, err = s.project.Get(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NoActiveProject{}
	}

	summary := StatusSummary{Project: p, BridgePending: s.bridge.Pending()}

	// Onboarding status, tree state, and supervisor stats come from three
	// independent subsystems with no shared state between them, so they are
	// gathered concurrently (SPEC_FULL.md §5).
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := s.onboarding.Status(gctx, p.ID)
		if err == nil && state != nil {
			summary.OnboardingStage = state.CurrentStage
		}
		return nil
	})
	g.Go(func() error {
		tree, err := s.hta.Load(gctx, p.ID, p.ActivePath)
		if err == nil && tree != nil {
			summary.FrontierCount = len(tree.FrontierNodes)
			summary.CompletedCount = len(tree.CompletedNodes)
			summary.EligibleFrontier = eligibleFrontierCount(tree)
		}
		return nil
	})
	g.Go(func() error {
		summary.Supervisor = make(map[string]supervisorStatus)
		for name, stats := range s.supervisor.Stats() {
			summary.Supervisor[name] = supervisorStatus{Running: stats.Running, RunCount: stats.RunCount, ErrorCount: stats.ErrorCount}
		}
		return nil
	})
	_ = g.Wait() // every goroutine above only ever returns nil; errors are absorbed into zero-value fields instead

	return summary, nil
}

// eligibleFrontierCount mirrors supervisor.eligibleFrontierCount; kept as a
// small local copy since that helper is unexported and status reporting
// should not need to reach into the supervisor package's internals.
func eligibleFrontierCount(tree *domain.Tree) int {
	completed := make(map[string]bool, len(tree.CompletedNodes))
	for _, n := range tree.CompletedNodes {
		completed[n.ID] = true
	}
	count := 0
	for _, n := range tree.FrontierNodes {
		if n.Status == domain.TaskCompleted {
			continue
		}
		ok := true
		for _, pr := range n.Prerequisites {
			if !completed[pr] {
				ok = false
				break
			}
		}
		if ok {
			count++
		}
	}
	return count
}

// SyncResult is sync_forest_memory_forest's result.
type SyncResult struct {
	EventsReplayed int    `json:"events_replayed"`
	Summary        string `json:"summary"`
}

// syncMemory replays every learning event into the project's and (if
// present) the onboarding state's accumulated context, so a later
// build_hta_tree_forest or continue_onboarding_forest call sees what was
// learned (spec.md §6: "Replay learning events into accumulated context").
func (s *Server) syncMemory(ctx context.Context, projectID, path string) (any, error) {
	var history domain.LearningHistory
	ok, err := s.kv.Read(kvstore.LearningHistoryPath(projectID, path), &history)
	if err != nil {
		return nil, err
	}
	if !ok || len(history.Events) == 0 {
		return SyncResult{EventsReplayed: 0, Summary: ""}, nil
	}

	var lines []string
	for _, ev := range history.Events {
		if ev.Learned != "" {
			lines = append(lines, ev.Learned)
		}
	}
	summary := strings.Join(lines, "; ")

	p, err := s.project.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(p.Context, summary) {
		p.Context = strings.TrimSpace(p.Context + " " + summary)
		if err := s.kv.Write(kvstore.ProjectConfigPath(projectID), p); err != nil {
			return nil, err
		}
	}

	var state domain.OnboardingState
	hasState, err := s.kv.Read(kvstore.OnboardingStatePath(projectID), &state)
	if err != nil {
		return nil, err
	}
	if hasState && !strings.Contains(state.AggregateContext.Context, summary) {
		state.AggregateContext.Context = strings.TrimSpace(state.AggregateContext.Context + " " + summary)
		if err := s.kv.Write(kvstore.OnboardingStatePath(projectID), &state); err != nil {
			return nil, err
		}
	}

	return SyncResult{EventsReplayed: len(history.Events), Summary: summary}, nil
}
