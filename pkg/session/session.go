// Package session implements the value-consuming session state machine shared by the
// issuance and disclosure engines (§3.4/§5): sessions transition Created → WaitingForResponse
// → Done{...} and never backward, state is carried entirely in a SessionStore rather than
// shared in-core mutable state, and expired sessions are reaped by a single cancellable
// background task.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/eudiwallet/core/pkg/logger"
	"github.com/google/uuid"
)

var log = logger.NewSimple("session")

// Token identifies a session across the HTTP surface (§6.1 path parameter `{token}`).
type Token string

// NewToken mints a fresh, unguessable session token.
func NewToken() Token { return Token(uuid.NewString()) }

// Status is a session's coarse lifecycle stage. Status values are ordered; a session may only
// ever move to an equal-or-later stage (§5 "monotonic Created ≤ WaitingForResponse ≤ Done").
type Status int

const (
	StatusCreated Status = iota
	StatusWaitingForResponse
	StatusDone
)

// DoneReason narrows a StatusDone session to its specific outcome.
type DoneReason int

const (
	DoneSuccess DoneReason = iota
	DoneFailed
	DoneCancelled
	DoneExpired
)

// State[D] is the full persisted record of one session: its lifecycle stage, caller-defined
// payload, and bookkeeping timestamps. D is the engine-specific data the issuance or
// disclosure session carries (e.g. the offered credentials, the DCQL query, accumulated
// c_nonce).
type State[D any] struct {
	Token      Token
	Status     Status
	DoneReason DoneReason
	FailedMsg  string
	Data       D
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}

// NewState creates a freshly Created session with the given expiry.
func NewState[D any](data D, ttl time.Duration) *State[D] {
	now := time.Now()
	return &State[D]{
		Token:     NewToken(),
		Status:    StatusCreated,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// transitionsTo reports whether moving from s's current status to next respects monotonicity.
func (s *State[D]) transitionsTo(next Status) bool { return next >= s.Status }

// Advance moves the session to WaitingForResponse. Calling it on a Done session is an
// UnexpectedState error (§7 "non-monotonic write attempts"); on a session already in
// WaitingForResponse it succeeds and only refreshes UpdatedAt.
func (s *State[D]) Advance() error {
	if !s.transitionsTo(StatusWaitingForResponse) {
		return apierror.New(apierror.KindUnexpectedState, "session cannot move backward to waiting_for_response")
	}
	s.Status = StatusWaitingForResponse
	s.UpdatedAt = time.Now()
	log.Debug("session advanced", "token", s.Token, "status", s.Status)
	return nil
}

// Finish moves the session to Done with the given reason. Calling it twice with a different
// reason, or after the session is already Done, is an UnexpectedState error — except that
// cancelling an already-cancelled session is idempotent (§5 "API cancel idempotent at
// Done{Cancelled}").
func (s *State[D]) Finish(reason DoneReason, failedMsg string) error {
	if s.Status == StatusDone {
		if reason == DoneCancelled && s.DoneReason == DoneCancelled {
			return nil
		}
		return apierror.New(apierror.KindUnexpectedState, "session is already done")
	}
	s.Status = StatusDone
	s.DoneReason = reason
	s.FailedMsg = failedMsg
	s.UpdatedAt = time.Now()
	log.Info("session done", "token", s.Token, "reason", reason)
	return nil
}

// IsExpired reports whether the session's expiry has passed as of now.
func (s *State[D]) IsExpired(now time.Time) bool { return now.After(s.ExpiresAt) }

// Store is the persistence boundary sessions are written through (§6.3 "SessionStore
// interface get(token)/write(state, is_new)/cleanup()"). Implementations must make Write
// transactional: a failed write must not leave a partially-applied session visible to a
// concurrent Get.
type Store[D any] interface {
	Get(ctx context.Context, token Token) (*State[D], error)
	Write(ctx context.Context, state *State[D], isNew bool) error
	Cleanup(ctx context.Context) error
}

// ErrUnknownSession is returned by a Store's Get when no session exists for the given token.
var ErrUnknownSession = apierror.New(apierror.KindUnknownSession, "unknown session")

// CleanupInterval is how often a running Store's background reaper sweeps for expired
// sessions (§5 "background cleanup every 60s").
const CleanupInterval = 60 * time.Second

// Cleaner runs a Store's Cleanup on a fixed interval until Stop is called. Stop is idempotent
// and safe to call even if the cleaner was never started.
type Cleaner struct {
	stop    chan struct{}
	stopped bool
	mu      sync.Mutex
	done    chan struct{}
}

// StartCleaner launches a background goroutine calling store.Cleanup every CleanupInterval.
func StartCleaner[D any](store Store[D]) *Cleaner {
	c := &Cleaner{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := store.Cleanup(context.Background()); err != nil {
					log.Info("session cleanup sweep failed", "error", err)
				}
			case <-c.stop:
				return
			}
		}
	}()
	return c
}

// Stop ends the cleaner's background loop. It is safe to call more than once.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.stop == nil {
		return
	}
	c.stopped = true
	close(c.stop)
	<-c.done
}
