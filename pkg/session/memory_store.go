package session

import (
	"context"
	"sync"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
)

// MemoryStore is a Store backed by an in-process map with a mutex, suitable for a single
// issuer/verifier instance (§6.3's persistence contract does not mandate a particular backing
// store; a production deployment would swap this for a shared store, e.g. the teacher's Redis
// or database-backed session persistence).
type MemoryStore[D any] struct {
	mu       sync.Mutex
	sessions map[Token]*State[D]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore[D any]() *MemoryStore[D] {
	return &MemoryStore[D]{sessions: make(map[Token]*State[D])}
}

// Get returns the session for token, or ErrUnknownSession if none exists or it is past its
// expiry without being Done. A Done session, including one Cleanup marked Done{Expired}, is
// returned until Cleanup purges it.
func (m *MemoryStore[D]) Get(_ context.Context, token Token) (*State[D], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[token]
	if !ok || (state.Status != StatusDone && state.IsExpired(time.Now())) {
		return nil, ErrUnknownSession
	}
	// Return a copy so callers mutate their own view; Write is the only path back into the
	// store (§5 "value-consuming transitions", not mutable-in-place).
	copied := *state
	return &copied, nil
}

// Write persists state transactionally. isNew distinguishes session creation (the token must
// not already exist) from an update (the token must already exist and the transition must be
// monotonic relative to the stored state).
func (m *MemoryStore[D]) Write(_ context.Context, state *State[D], isNew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.sessions[state.Token]
	if isNew {
		if exists {
			return apierror.New(apierror.KindUnexpectedState, "session token already exists")
		}
		copied := *state
		m.sessions[state.Token] = &copied
		return nil
	}

	if !exists {
		return ErrUnknownSession
	}
	if state.Status < existing.Status {
		return apierror.New(apierror.KindUnexpectedState, "session state must move forward only")
	}
	copied := *state
	m.sessions[state.Token] = &copied
	return nil
}

// Cleanup marks every session past its expiry as Done{Expired} and purges sessions that have
// already been Done for longer than the grace interval (§5 "background cleanup every 60s sets
// Done{Expired} then purges after grace interval").
const purgeGraceInterval = 24 * time.Hour

func (m *MemoryStore[D]) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for token, state := range m.sessions {
		if state.Status != StatusDone && state.IsExpired(now) {
			state.Status = StatusDone
			state.DoneReason = DoneExpired
			state.UpdatedAt = now
			continue
		}
		if state.Status == StatusDone && now.Sub(state.UpdatedAt) > purgeGraceInterval {
			delete(m.sessions, token)
		}
	}
	return nil
}
