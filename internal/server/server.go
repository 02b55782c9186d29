// Package server implements the Server Session (C15): it wires every
// component (C1-C11) into a single process-wide Server, and hands out one
// domain.Session per connected client on top of that shared wiring, per
// SPEC_FULL.md §4.13.
package server

import (
	"context"
	"fmt"
	"path/filepath"

	"forest/internal/bridge"
	"forest/internal/config"
	"forest/internal/domain"
	"forest/internal/embedding"
	"forest/internal/evolver"
	"forest/internal/htaengine"
	"forest/internal/htastore"
	"forest/internal/kvstore"
	"forest/internal/logging"
	"forest/internal/onboarding"
	"forest/internal/pipeline"
	"forest/internal/project"
	"forest/internal/router"
	"forest/internal/selector"
	"forest/internal/supervisor"
	"forest/internal/vectorstore"
)

// Server owns every shared component and the tool dispatch table. It is
// constructed once per process; domain.Session is the per-connection state
// layered on top of it.
type Server struct {
	cfg *config.Config

	kv       *kvstore.Store
	vec      *vectorstore.Store // nil if the vector backend failed to open
	embedder embedding.EmbeddingEngine
	bridge   *bridge.Bridge
	engine   *htaengine.Engine
	hta      *htastore.Store

	project         *project.Service
	onboarding      *onboarding.Service
	selector        *selector.Selector
	pipeline        *pipeline.Presenter
	strategyEvolver *evolver.Evolver
	supervisor      *supervisor.Supervisor

	router *router.Router
}

// New builds a fully wired Server from cfg. A vector index that fails to
// open degrades to nil (VectorUnavailable semantics): construction still
// succeeds, selection and mirroring just skip the semantic boost.
func New(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Initialize(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	kv, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		Dim:            cfg.Embedding.Dim,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
	})
	if err != nil {
		return nil, fmt.Errorf("build embedding engine: %w", err)
	}

	vec, err := vectorstore.Open(filepath.Join(cfg.DataDir, "vectors.db"), "vectors", cfg.Embedding.Dim)
	if err != nil {
		logging.VectorWarn("vector index unavailable, continuing without semantic boost: %v", err)
		vec = nil
	}

	br := bridge.New(cfg.BridgeTimeout())
	engine := htaengine.New(br)
	hta := htastore.New(kv, engine, vec, embedder)

	projectSvc := project.New(kv)
	onboardingSvc := onboarding.New(kv, engine, hta, projectSvc)
	selectorSvc := selector.New(hta, vec, embedder)
	evolverSvc := evolver.New(kv, hta, engine, vec, embedder)
	pipelineSvc := pipeline.New(selectorSvc, hta, evolverSvc)

	sup := supervisor.New(cfg.ShutdownGrace())
	agent := supervisor.NewExpansionAgent(
		activeProjectLocator{projectSvc},
		treeLoader{hta},
		expander{hta, engine},
		cfg.SupervisorInterval(),
		cfg.Supervisor.MinTasks,
	)
	if err := sup.Add(agent); err != nil {
		return nil, fmt.Errorf("register expansion agent: %w", err)
	}

	srv := &Server{
		cfg:             cfg,
		kv:              kv,
		vec:             vec,
		embedder:        embedder,
		bridge:          br,
		engine:          engine,
		hta:             hta,
		project:         projectSvc,
		onboarding:      onboardingSvc,
		selector:        selectorSvc,
		pipeline:        pipelineSvc,
		strategyEvolver: evolverSvc,
		supervisor:      sup,
	}
	srv.router = router.New(srv.buildDeps())
	return srv, nil
}

// Start begins the background supervisor's jobs.
func (s *Server) Start(ctx context.Context) error {
	return s.supervisor.Start("expansion_agent")
}

// Shutdown stops the supervisor (honoring its shutdown grace period),
// closes the vector index, and flushes every log category.
func (s *Server) Shutdown() {
	s.supervisor.StopAll()
	if s.vec != nil {
		if err := s.vec.Close(); err != nil {
			logging.BootError("closing vector index: %v", err)
		}
	}
	logging.CloseAll()
}

// NewSession returns a fresh per-connection session with no active project
// and the landing page not yet shown.
func (s *Server) NewSession() *domain.Session {
	return domain.NewSession()
}

// Dispatch runs a named tool call for sess, applying the landing-page gate
// via the Tool Router.
func (s *Server) Dispatch(ctx context.Context, sess *domain.Session, name string, args map[string]any) (any, error) {
	return s.router.Dispatch(ctx, sess, name, args)
}

// Names lists every registered tool, for discovery/help output.
func (s *Server) Names() []string {
	return s.router.Names()
}

// activeProjectLocator adapts project.Service to supervisor.ActiveProjectLocator.
type activeProjectLocator struct{ project *project.Service }

func (a activeProjectLocator) ActivePath(ctx context.Context) (string, string, bool, error) {
	p, err := a.project.GetActive(ctx)
	if err != nil {
		return "", "", false, err
	}
	if p == nil {
		return "", "", false, nil
	}
	return p.ID, p.ActivePath, true, nil
}

// treeLoader adapts htastore.Store to supervisor.TreeLoader.
type treeLoader struct{ store *htastore.Store }

func (t treeLoader) Load(ctx context.Context, projectID, path string) (*domain.Tree, error) {
	return t.store.Load(ctx, projectID, path)
}

// expander adapts the HTA Store and Engine to supervisor.Expander. Since
// build-time frontier materialization already covers every strategic
// branch (spec.md §4.4), a low eligible_frontier count signals the tree
// needs deeper decomposition rather than more top-level tasks; Expander
// deepens to level 4 and re-synthesizes the frontier only as the recovery
// path for a tree that lost it entirely.
type expander struct {
	store  *htastore.Store
	engine *htaengine.Engine
}

func (e expander) Expand(ctx context.Context, projectID, path string) error {
	tree, err := e.store.Load(ctx, projectID, path)
	if err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	e.engine.Expand(ctx, tree, 4, "")
	if err := e.store.EnsureFrontierNodes(ctx, projectID, path, tree); err != nil {
		return err
	}
	return e.store.Save(ctx, projectID, path, tree)
}
