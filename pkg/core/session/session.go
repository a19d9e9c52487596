// Package session holds per-operator state behind the shared-secret gate:
// login tokens and the proposals waiting for confirmation.
package session

import (
	"crypto/subtle"
	"errors"
	"sort"
	"sync"
	"time"

	"catalog_agent/pkg/core/reconcile"

	"github.com/google/uuid"
)

// DefaultTTL is how long an idle session stays valid.
const DefaultTTL = 12 * time.Hour

var (
	ErrInvalidSecret   = errors.New("invalid secret")
	ErrGateDisabled    = errors.New("no secret configured")
	ErrNoSession       = errors.New("not logged in")
	ErrUnknownProposal = errors.New("proposal not found")
)

type session struct {
	lastSeen  time.Time
	proposals map[string]*reconcile.Proposal
}

// Manager is the application state shared by every handler.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates the gate. An empty secret refuses every login.
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Login compares secret in constant time and returns a new session token.
func (m *Manager) Login(secret string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrGateDisabled
	}
	if subtle.ConstantTimeCompare([]byte(secret), m.secret) != 1 {
		return "", ErrInvalidSecret
	}

	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &session{lastSeen: m.now(), proposals: make(map[string]*reconcile.Proposal)}
	return token, nil
}

// Logout drops the session and every proposal staged in it.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// Valid reports whether token belongs to a live session and refreshes it.
func (m *Manager) Valid(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.get(token)
	return err == nil
}

// get must be called with mu held.
func (m *Manager) get(token string) (*session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	now := m.now()
	if now.Sub(s.lastSeen) > m.ttl {
		delete(m.sessions, token)
		return nil, ErrNoSession
	}
	s.lastSeen = now
	return s, nil
}

// Stage keeps a copy of p until it is applied or discarded.
func (m *Manager) Stage(token string, p *reconcile.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(token)
	if err != nil {
		return err
	}
	s.proposals[p.ID] = p.Clone()
	return nil
}

// Proposal returns a copy of a staged proposal.
func (m *Manager) Proposal(token, id string) (*reconcile.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(token)
	if err != nil {
		return nil, err
	}
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrUnknownProposal
	}
	return p.Clone(), nil
}

// Discard drops a staged proposal without touching the catalog.
func (m *Manager) Discard(token, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(token)
	if err != nil {
		return err
	}
	if _, ok := s.proposals[id]; !ok {
		return ErrUnknownProposal
	}
	delete(s.proposals, id)
	return nil
}

// Pending lists staged proposals, oldest first.
func (m *Manager) Pending(token string) ([]*reconcile.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(token)
	if err != nil {
		return nil, err
	}
	out := make([]*reconcile.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
