package session

import "github.com/dmitrijs2005/ticketdesk/internal/client/models"

// State is the position of the session in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Loading reports whether a login or restore is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated && s.identity != nil
}

func (s *Store) hasRole(roles ...models.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return false
	}
	for _, r := range roles {
		if s.identity.Role == r {
			return true
		}
	}
	return false
}

func (s *Store) IsAdmin() bool    { return s.hasRole(models.RoleAdmin) }
func (s *Store) IsExecutor() bool { return s.hasRole(models.RoleExecutor) }
func (s *Store) IsCustomer() bool { return s.hasRole(models.RoleCustomer) }

// CanCreateTickets is true for customers and admins.
func (s *Store) CanCreateTickets() bool {
	return s.hasRole(models.RoleAdmin, models.RoleCustomer)
}

func (s *Store) CanManageUsers() bool     { return s.hasRole(models.RoleAdmin) }
func (s *Store) CanGenerateReports() bool { return s.hasRole(models.RoleAdmin) }
