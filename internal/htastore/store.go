// Package htastore implements the HTA Store (C6): converts Schema HTA
// Engine output into the canonical tree document, persists it through the
// KV Store, and mirrors level-1/branch/frontier entities into the Vector
// Index so semantic lookups (selector boost, exploration relevance) stay
// in sync with the document of record (I5).
package htastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forest/internal/domain"
	"forest/internal/embedding"
	"forest/internal/htaengine"
	"forest/internal/kvstore"
	"forest/internal/logging"
	"forest/internal/vectorstore"
)

// BuildArgs carries the optional signals build() forwards into generation:
// the user's stated context, urgency, and modality preferences.
type BuildArgs struct {
	AggregateContext string
	Experience       htaengine.UserExperience
	FrontierContext  htaengine.FrontierContext
}

// Store wraps C1/C2/C5 into the tree lifecycle operations (build, load,
// save, ensure_frontier_nodes, existing_tree_response).
type Store struct {
	kv       *kvstore.Store
	vec      *vectorstore.Store // nil means vector mirroring is unavailable
	embedder embedding.EmbeddingEngine
	engine   *htaengine.Engine

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New wires a KV Store, engine, and optional vector index/embedder. vec and
// embedder may be nil: mirroring degrades to a logged no-op (spec.md §5
// VectorUnavailable semantics), and builds still succeed.
func New(kv *kvstore.Store, engine *htaengine.Engine, vec *vectorstore.Store, embedder embedding.EmbeddingEngine) *Store {
	return &Store{kv: kv, vec: vec, embedder: embedder, engine: engine, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) treeLock(projectID, path string) *sync.Mutex {
	key := projectID + "/" + path
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// Load returns the persisted tree for (projectID, path), or nil if none
// exists yet.
func (s *Store) Load(ctx context.Context, projectID, path string) (*domain.Tree, error) {
	var tree domain.Tree
	ok, err := s.kv.Read(kvstore.TreePath(projectID, path), &tree)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &tree, nil
}

// Save enforces I1-I4 and persists the tree. Per-tree serialization (spec.md
// §4 "at most one mutating operation proceeds at a time") is the caller's
// responsibility via Build/WithLock; Save itself only validates and writes.
func (s *Store) Save(ctx context.Context, projectID, path string, tree *domain.Tree) error {
	if err := validateInvariants(tree); err != nil {
		return err
	}
	tree.LastUpdated = time.Now().UTC()
	return s.kv.Write(kvstore.TreePath(projectID, path), tree)
}

// validateInvariants enforces I1-I4 before a tree is written.
func validateInvariants(tree *domain.Tree) error {
	branchNames := tree.BranchNames()
	for _, n := range tree.FrontierNodes {
		if !branchNames[n.Branch] {
			return domain.Conflict{Invariant: "I1", Detail: fmt.Sprintf("frontier node %s references unknown branch %q", n.ID, n.Branch)}
		}
	}
	for _, n := range tree.CompletedNodes {
		if !branchNames[n.Branch] {
			return domain.Conflict{Invariant: "I1", Detail: fmt.Sprintf("completed node %s references unknown branch %q", n.ID, n.Branch)}
		}
	}

	ids := make(map[string]bool, len(tree.FrontierNodes)+len(tree.CompletedNodes))
	for _, n := range tree.FrontierNodes {
		if ids[n.ID] {
			return domain.Conflict{Invariant: "I3", Detail: fmt.Sprintf("task %s present more than once", n.ID)}
		}
		ids[n.ID] = true
	}
	for _, n := range tree.CompletedNodes {
		if ids[n.ID] {
			return domain.Conflict{Invariant: "I3", Detail: fmt.Sprintf("task %s is both frontier and completed", n.ID)}
		}
		ids[n.ID] = true
	}

	for _, n := range tree.FrontierNodes {
		for _, p := range n.Prerequisites {
			if !ids[p] {
				return domain.Conflict{Invariant: "I2", Detail: fmt.Sprintf("task %s prerequisite %s does not exist in this tree", n.ID, p)}
			}
		}
	}
	for _, n := range tree.CompletedNodes {
		for _, p := range n.Prerequisites {
			if !ids[p] {
				return domain.Conflict{Invariant: "I2", Detail: fmt.Sprintf("task %s prerequisite %s does not exist in this tree", n.ID, p)}
			}
		}
	}

	wantDepth := 0
	for i, lvl := range []interface{}{tree.Level1, tree.Level2, tree.Level3, tree.Level4, tree.Level5, tree.Level6} {
		if lvl != nil && !isNilPointer(lvl) {
			wantDepth = i + 1
		}
	}
	if tree.AvailableDepth != wantDepth {
		return domain.Conflict{Invariant: "I4", Detail: fmt.Sprintf("available_depth is %d, expected %d", tree.AvailableDepth, wantDepth)}
	}
	if tree.AvailableDepth < tree.MaxDepth && !tree.CanExpand {
		return domain.Conflict{Invariant: "I4", Detail: "can_expand must be true while available_depth < max_depth"}
	}
	return nil
}

// isNilPointer reports whether an interface{} wrapping a typed pointer is a
// nil pointer (a plain `lvl != nil` check is always true for a typed-nil
// interface value).
func isNilPointer(v interface{}) bool {
	switch p := v.(type) {
	case *domain.Level1GoalContext:
		return p == nil
	case *domain.Level2StrategicBranches:
		return p == nil
	case *domain.Level3TaskDecomposition:
		return p == nil
	case *domain.Level4MicroParticles:
		return p == nil
	case *domain.Level5NanoActions:
		return p == nil
	case *domain.Level6ContextAdaptivePrimitives:
		return p == nil
	}
	return false
}

// Build returns the existing tree unchanged if one already has a non-empty
// frontier (idempotence); otherwise it runs the engine through L1/L2,
// materializes the initial frontier, persists, and mirrors into the vector
// index.
func (s *Store) Build(ctx context.Context, projectID, path, goal string, args BuildArgs) (*domain.Tree, error) {
	lock := s.treeLock(projectID, path)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Load(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if existing != nil && len(existing.FrontierNodes) > 0 {
		logging.HTAStoreDebug("build: existing tree for %s/%s has frontier, returning unchanged", projectID, path)
		return existing, nil
	}

	l1, _, err := s.engine.BuildLevel1(ctx, goal, args.AggregateContext, args.Experience)
	if err != nil {
		return nil, err
	}
	complexity := htaengine.AnalyzeGoal(goal+" "+args.AggregateContext, args.Experience)

	l2, _, err := s.engine.BuildLevel2(ctx, goal, l1, complexity)
	if err != nil {
		return nil, err
	}
	frontier := htaengine.MaterializeFrontier(l2.StrategicBranches, complexity, args.FrontierContext)

	now := time.Now().UTC()
	tree := &domain.Tree{
		Goal:              goal,
		Context:           args.AggregateContext,
		Created:           now,
		LastUpdated:       now,
		Complexity:        complexity,
		StrategicBranches: l2.StrategicBranches,
		FrontierNodes:     frontier,
		Level1:            l1,
		Level2:            l2,
		MaxDepth:          6,
		DomainBoundaries:  l1.DomainBoundaries,
		GenerationContext: domain.GenerationContext{Method: "schema", Timestamp: now},
	}
	tree.RecomputeDepthFlags()

	if err := s.Save(ctx, projectID, path, tree); err != nil {
		return nil, err
	}

	s.mirror(ctx, projectID, path, tree)
	return tree, nil
}

// EnsureFrontierNodes re-synthesizes the frontier from L2 if it is empty
// (recovery path for a tree that lost its frontier, e.g. a partially
// applied evolution).
func (s *Store) EnsureFrontierNodes(ctx context.Context, projectID, path string, tree *domain.Tree) error {
	if len(tree.FrontierNodes) > 0 || tree.Level2 == nil {
		return nil
	}
	tree.FrontierNodes = htaengine.MaterializeFrontier(tree.Level2.StrategicBranches, tree.Complexity, htaengine.FrontierContext{})
	return s.Save(ctx, projectID, path, tree)
}

// ExistingTreeSummary is the shape returned by existing_tree_response: a
// status overview without regenerating anything.
type ExistingTreeSummary struct {
	Goal              string `json:"goal"`
	BranchCount       int    `json:"branch_count"`
	FrontierCount     int    `json:"frontier_count"`
	CompletedCount    int    `json:"completed_count"`
	AvailableDepth    int    `json:"available_depth"`
	CanExpand         bool   `json:"can_expand"`
}

// ExistingTreeResponse summarizes tree without triggering generation.
func ExistingTreeResponse(tree *domain.Tree) ExistingTreeSummary {
	return ExistingTreeSummary{
		Goal:           tree.Goal,
		BranchCount:    len(tree.StrategicBranches),
		FrontierCount:  len(tree.FrontierNodes),
		CompletedCount: len(tree.CompletedNodes),
		AvailableDepth: tree.AvailableDepth,
		CanExpand:      tree.CanExpand,
	}
}

// mirror embeds L1, each branch, and each frontier task into the vector
// index, keeping C1 and C2 in sync per I5. Failures degrade gracefully:
// logged, not propagated, since C6 must continue without mirroring when C2
// is unavailable (spec.md §5 VectorUnavailable).
func (s *Store) mirror(ctx context.Context, projectID, path string, tree *domain.Tree) {
	if s.vec == nil || s.embedder == nil {
		logging.HTAStoreDebug("mirror: vector index unavailable, skipping for %s/%s", projectID, path)
		return
	}

	upsert := func(id, text string, metadata map[string]string) {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			logging.Get(logging.CategoryHTAStore).Warn("mirror: embed failed for %s: %v", id, err)
			return
		}
		if err := s.vec.Upsert(ctx, id, vec, metadata); err != nil {
			logging.Get(logging.CategoryHTAStore).Warn("mirror: upsert failed for %s: %v", id, err)
		}
	}

	upsert(projectID+":goal", tree.Goal+" "+joinStrings(tree.DomainBoundaries), map[string]string{
		"type": "level1", "project_id": projectID, "path": path,
	})
	for _, b := range tree.StrategicBranches {
		upsert(projectID+":branch:"+b.Name, b.Name+" "+b.Description, map[string]string{
			"type": "branch", "project_id": projectID, "path": path, "branch": b.Name,
		})
	}
	for _, n := range tree.FrontierNodes {
		upsert(projectID+":task:"+n.ID, n.Title+" "+n.Description, map[string]string{
			"type": "task", "project_id": projectID, "path": path, "branch": n.Branch,
		})
	}
}

func joinStrings(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
