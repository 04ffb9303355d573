// Package session owns the per-user aggregates: one UserSession per
// active user, per-user serialized execution, and the inactivity
// timers for both the main session and the nested edit session.
package session

import (
	"sync"
	"time"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/rs/zerolog/log"
)

// ExpiryFunc runs inside the expired user's serialized path with the
// aggregate already removed from the store
type ExpiryFunc func(userID string, sess *domain.UserSession)

// EditExpiryFunc runs inside the user's serialized path after the
// edit sub-session has been torn down; the base session stays live
type EditExpiryFunc func(userID string, sess *domain.UserSession)

// Store keys the aggregates by UserId. All access goes through Do,
// which serializes work per user: live webhook events and timer fires
// for the same user never interleave.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	mainTTL time.Duration
	editTTL time.Duration

	onExpire     ExpiryFunc
	onEditExpire EditExpiryFunc
}

type entry struct {
	mu   sync.Mutex
	refs int

	session *domain.UserSession

	mainTimer *time.Timer
	editTimer *time.Timer
	// Sequence numbers invalidate timers superseded by a newer touch:
	// an AfterFunc that fires after a reschedule sees a stale seq and
	// does nothing.
	mainSeq uint64
	editSeq uint64
}

// NewStore creates a session store with the given inactivity windows
func NewStore(mainTTL, editTTL time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		mainTTL: mainTTL,
		editTTL: editTTL,
	}
}

// EditTTL reports the configured edit-session inactivity window
func (s *Store) EditTTL() time.Duration {
	return s.editTTL
}

// SetExpiryHandlers wires the expiry callbacks. Must be called before
// the store serves traffic.
func (s *Store) SetExpiryHandlers(onExpire ExpiryFunc, onEditExpire EditExpiryFunc) {
	s.onExpire = onExpire
	s.onEditExpire = onEditExpire
}

// Do runs fn holding the user's entry lock. A user with no aggregate
// gets an empty handle; fn observing Session() == nil treats the user
// as implicitly fresh.
func (s *Store) Do(userID string, fn func(h *Handle)) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	fn(&Handle{store: s, userID: userID, e: e})
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	if e.refs == 0 && e.session == nil {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
}

// ActiveUsers reports how many aggregates are live
func (s *Store) ActiveUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.session != nil {
			n++
		}
	}
	return n
}

// Handle is the serialized view of one user's aggregate, valid only
// inside the Do callback that produced it
type Handle struct {
	store  *Store
	userID string
	e      *entry
}

// UserID returns the key this handle serializes
func (h *Handle) UserID() string {
	return h.userID
}

// Session returns the aggregate, or nil when the user has none
func (h *Handle) Session() *domain.UserSession {
	return h.e.session
}

// Replace installs a fresh aggregate and starts its inactivity timer
func (h *Handle) Replace(sess *domain.UserSession) {
	h.stopEditTimer()
	h.e.session = sess
	h.Touch()
}

// Clear drops the aggregate and cancels both timers. Idempotent.
func (h *Handle) Clear() {
	h.stopMainTimer()
	h.stopEditTimer()
	h.e.session = nil
}

// Touch reschedules the main inactivity timer, atomically cancelling
// the previous one. Called on every inbound event for the user.
func (h *Handle) Touch() {
	e := h.e
	h.stopMainTimer()
	if e.session == nil {
		return
	}

	seq := e.mainSeq
	userID := h.userID
	store := h.store
	e.mainTimer = time.AfterFunc(store.mainTTL, func() {
		store.expireMain(userID, seq)
	})
}

// TouchEdit reschedules the edit-session inactivity timer
func (h *Handle) TouchEdit() {
	e := h.e
	h.stopEditTimer()
	if e.session == nil || e.session.EditSession == nil {
		return
	}

	e.session.EditSession.LastInteractionAt = time.Now()

	seq := e.editSeq
	userID := h.userID
	store := h.store
	e.editTimer = time.AfterFunc(store.editTTL, func() {
		store.expireEdit(userID, seq)
	})
}

// CancelEditTimer stops the edit timer without touching the session,
// used when the edit sub-session ends explicitly
func (h *Handle) CancelEditTimer() {
	h.stopEditTimer()
}

func (h *Handle) stopMainTimer() {
	e := h.e
	e.mainSeq++
	if e.mainTimer != nil {
		e.mainTimer.Stop()
		e.mainTimer = nil
	}
}

func (h *Handle) stopEditTimer() {
	e := h.e
	e.editSeq++
	if e.editTimer != nil {
		e.editTimer.Stop()
		e.editTimer = nil
	}
}

func (s *Store) expireMain(userID string, seq uint64) {
	s.Do(userID, func(h *Handle) {
		e := h.e
		if e.mainSeq != seq || e.session == nil {
			return
		}

		log.Info().Str("user", userID).Msg("session expired after inactivity")

		sess := e.session
		h.Clear()

		if s.onExpire != nil {
			s.onExpire(userID, sess)
		}
	})
}

func (s *Store) expireEdit(userID string, seq uint64) {
	s.Do(userID, func(h *Handle) {
		e := h.e
		if e.editSeq != seq || e.session == nil || e.session.EditSession == nil {
			return
		}

		log.Info().Str("user", userID).Msg("edit session expired after inactivity")

		sess := e.session
		sess.EditSession = nil
		h.stopEditTimer()

		if s.onEditExpire != nil {
			s.onEditExpire(userID, sess)
		}
	})
}
