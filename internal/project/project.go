// Package project implements project-record CRUD and the global config
// document (one active project id plus a summary list), backing the
// create/switch/list/get-active tool family.
package project

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"forest/internal/domain"
	"forest/internal/kvstore"
	"forest/internal/logging"
)

// Service owns global/config.json and each project's config.json.
type Service struct {
	kv *kvstore.Store
}

// New wraps a kvstore.Store with project-record operations.
func New(kv *kvstore.Store) *Service {
	return &Service{kv: kv}
}

// Create adds a project for goal and sets it active.
func (s *Service) Create(ctx context.Context, goal string) (*domain.Project, error) {
	if goal == "" {
		return nil, domain.ValidationError{Key: "goal", Message: "goal is required"}
	}

	now := time.Now().UTC()
	p := &domain.Project{
		ID:           newProjectID(),
		Goal:         goal,
		ActivePath:   domain.DefaultPath,
		Constraints:  map[string]string{},
		CreatedAt:    now,
		LastAccessed: now,
	}

	if err := s.kv.Write(kvstore.ProjectConfigPath(p.ID), p); err != nil {
		return nil, err
	}

	cfg, err := s.loadGlobal()
	if err != nil {
		return nil, err
	}
	cfg.Projects = append(cfg.Projects, domain.ProjectSummary{ID: p.ID, Goal: p.Goal, LastAccessed: now})
	cfg.ActiveProject = p.ID
	if err := s.kv.Write(kvstore.GlobalConfigPath(), cfg); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryProject).Info("created project %s (goal=%q)", p.ID, goal)
	return p, nil
}

// Switch sets projectID active, failing if it is not known.
func (s *Service) Switch(ctx context.Context, projectID string) error {
	var p domain.Project
	ok, err := s.kv.Read(kvstore.ProjectConfigPath(projectID), &p)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ValidationError{Key: "project_id", Message: "unknown project " + projectID}
	}

	cfg, err := s.loadGlobal()
	if err != nil {
		return err
	}
	cfg.ActiveProject = projectID
	return s.kv.Write(kvstore.GlobalConfigPath(), cfg)
}

// List returns every known project summary, most recently accessed first.
func (s *Service) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	cfg, err := s.loadGlobal()
	if err != nil {
		return nil, err
	}
	out := append([]domain.ProjectSummary(nil), cfg.Projects...)
	sort.Slice(out, func(i, j int) bool { return out[i].LastAccessed.After(out[j].LastAccessed) })
	return out, nil
}

// GetActive returns the active project, or nil if none is set.
func (s *Service) GetActive(ctx context.Context) (*domain.Project, error) {
	cfg, err := s.loadGlobal()
	if err != nil {
		return nil, err
	}
	if cfg.ActiveProject == "" {
		return nil, nil
	}
	var p domain.Project
	ok, err := s.kv.Read(kvstore.ProjectConfigPath(cfg.ActiveProject), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Get loads a project record by id.
func (s *Service) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	var p domain.Project
	ok, err := s.kv.Read(kvstore.ProjectConfigPath(projectID), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ValidationError{Key: "project_id", Message: "unknown project " + projectID}
	}
	return &p, nil
}

// Touch updates a project's last_accessed timestamp in both its own record
// and the global summary list.
func (s *Service) Touch(ctx context.Context, projectID string) error {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	p.LastAccessed = time.Now().UTC()
	if err := s.kv.Write(kvstore.ProjectConfigPath(projectID), p); err != nil {
		return err
	}

	cfg, err := s.loadGlobal()
	if err != nil {
		return err
	}
	for i := range cfg.Projects {
		if cfg.Projects[i].ID == projectID {
			cfg.Projects[i].LastAccessed = p.LastAccessed
		}
	}
	return s.kv.Write(kvstore.GlobalConfigPath(), cfg)
}

// FactoryReset deletes one project (projectID non-empty) or every project
// (projectID == "").
func (s *Service) FactoryReset(ctx context.Context, projectID string) error {
	if projectID == "" {
		logging.Get(logging.CategoryProject).Warn("factory reset: deleting all projects")
		return s.kv.DeleteAll()
	}

	logging.Get(logging.CategoryProject).Warn("factory reset: deleting project %s", projectID)
	if err := s.kv.DeleteProject(projectID); err != nil {
		return err
	}
	cfg, err := s.loadGlobal()
	if err != nil {
		return err
	}
	filtered := cfg.Projects[:0]
	for _, p := range cfg.Projects {
		if p.ID != projectID {
			filtered = append(filtered, p)
		}
	}
	cfg.Projects = filtered
	if cfg.ActiveProject == projectID {
		cfg.ActiveProject = ""
	}
	return s.kv.Write(kvstore.GlobalConfigPath(), cfg)
}

func (s *Service) loadGlobal() (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig
	_, err := s.kv.Read(kvstore.GlobalConfigPath(), &cfg)
	return cfg, err
}

func newProjectID() string {
	return "proj_" + uuid.NewString()
}
