package domain

import "sync"

// Session is the per-connection mutable state the Design Notes require to
// live in one explicit struct rather than process-wide globals: the active
// project id and whether the landing page has been shown yet this process
// (C15). Component handles and the dispatch table are layered on top of
// this by the server package; this type stays dependency-free so the router
// and every component can take a *Session without an import cycle.
type Session struct {
	mu               sync.Mutex
	activeProjectID  string
	landingShown     bool
}

// NewSession returns a fresh session with no active project and the landing
// page not yet shown.
func NewSession() *Session {
	return &Session{}
}

// ActiveProjectID returns the currently active project id, or "" if none.
func (s *Session) ActiveProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeProjectID
}

// SetActiveProjectID updates the active project.
func (s *Session) SetActiveProjectID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeProjectID = id
}

// RequireActiveProject returns the active project id or NoActiveProject.
func (s *Session) RequireActiveProject() (string, error) {
	id := s.ActiveProjectID()
	if id == "" {
		return "", NoActiveProject{}
	}
	return id, nil
}

// LandingShown reports whether the landing page has already been injected
// this session.
func (s *Session) LandingShown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.landingShown
}

// MarkLandingShown records that the landing page has now been shown.
func (s *Session) MarkLandingShown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.landingShown = true
}
