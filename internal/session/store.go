// Package session tracks per-conversation runtime state: the manual
// takeover flag and the bargain-round cache. State is in-memory only;
// durable history lives in the store package.
package session

import (
	"sync"
	"time"
)

// Modes returned by Toggle.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

// DefaultManualTimeout is how long a manual takeover lasts without
// renewal before automatic replies resume.
const DefaultManualTimeout = time.Hour

type state struct {
	manualSetAt  time.Time // zero when not in manual mode
	bargainCount int
	bargainKnown bool
	lastActivity time.Time
}

// Store is a concurrency-safe table of conversation state keyed by chat
// id. Entries are created lazily and live for the process lifetime.
type Store struct {
	mu            sync.Mutex
	sessions      map[string]*state
	manualTimeout time.Duration

	now func() time.Time // test seam
}

// NewStore creates a Store with the given manual-mode timeout. A zero or
// negative timeout falls back to DefaultManualTimeout.
func NewStore(manualTimeout time.Duration) *Store {
	if manualTimeout <= 0 {
		manualTimeout = DefaultManualTimeout
	}
	return &Store{
		sessions:      make(map[string]*state),
		manualTimeout: manualTimeout,
		now:           time.Now,
	}
}

func (s *Store) get(chatID string) *state {
	st, ok := s.sessions[chatID]
	if !ok {
		st = &state{}
		s.sessions[chatID] = st
	}
	return st
}

// IsManual reports whether the conversation is under human takeover.
// Expiry is checked lazily: an override older than the timeout clears
// itself on read.
func (s *Store) IsManual(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[chatID]
	if !ok || st.manualSetAt.IsZero() {
		return false
	}
	if s.now().Sub(st.manualSetAt) > s.manualTimeout {
		st.manualSetAt = time.Time{}
		return false
	}
	return true
}

// ToggleManual flips the takeover flag and returns the resulting mode.
func (s *Store) ToggleManual(chatID string) string {
	// IsManual first so an expired override toggles to manual, not auto.
	if s.IsManual(chatID) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.get(chatID).manualSetAt = time.Time{}
		return ModeAuto
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(chatID).manualSetAt = s.now()
	return ModeManual
}

// SetManual forces the takeover flag to a specific value. Used by the
// admin API where the operator states the desired mode explicitly.
func (s *Store) SetManual(chatID string, manual bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(chatID)
	if manual {
		st.manualSetAt = s.now()
	} else {
		st.manualSetAt = time.Time{}
	}
}

// SeedBargain primes the bargain cache from durable storage. It only
// applies when the cache has no value yet, so a warm cache never moves
// backwards.
func (s *Store) SeedBargain(chatID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(chatID)
	if !st.bargainKnown {
		st.bargainCount = count
		st.bargainKnown = true
	}
}

// IncrementBargain bumps the conversation's bargain round counter and
// returns the new value. The counter never decreases.
func (s *Store) IncrementBargain(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(chatID)
	st.bargainCount++
	st.bargainKnown = true
	return st.bargainCount
}

// BargainCount returns the cached bargain round counter. The second
// return is false when the cache was never seeded for this chat.
func (s *Store) BargainCount(chatID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[chatID]
	if !ok || !st.bargainKnown {
		return 0, false
	}
	return st.bargainCount, true
}

// Touch records conversation activity.
func (s *Store) Touch(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(chatID).lastActivity = s.now()
}

// LastActivity returns when the conversation last saw traffic.
func (s *Store) LastActivity(chatID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[chatID]
	if !ok {
		return time.Time{}
	}
	return st.lastActivity
}
