package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-artists-client/internal/model"
	"go-artists-client/internal/tokenstore"
)

// Refresher is the slice of the auth gateway the background expiry check
// needs.
type Refresher interface {
	CheckAndRefresh(ctx context.Context) error
}

type subscriber struct {
	id string
	fn func(*model.User)
}

// Store holds the current authenticated identity and broadcasts every
// transition to its subscribers. The in-memory value is a cache over the
// token store; authentication validity is always recomputed against the
// stored expiry because it depends on wall-clock time.
type Store struct {
	tokens *tokenstore.Store
	now    func() time.Time

	// notifyMu serializes transitions so a later one is never delivered
	// before an earlier one, and replays stay consistent with dispatch.
	notifyMu sync.Mutex

	mu          sync.Mutex
	current     *model.User
	subscribers []subscriber

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a session store seeded from the token store: a complete,
// unexpired credential record becomes the initial identity.
func New(tokens *tokenstore.Store) *Store {
	s := &Store{
		tokens: tokens,
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	if creds, ok := tokens.Load(); ok && creds.ExpiresAt > s.now().UnixMilli() {
		s.current = model.UserFromCredentials(creds)
	}

	return s
}

// Current returns the identity as of now: nil when anonymous.
func (s *Store) Current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn and immediately replays the current identity to it,
// so a late subscriber never misses the value set before it arrived. The
// returned function removes the subscription. Callbacks run synchronously on
// the goroutine driving the transition and must not call back into the
// store.
func (s *Store) Subscribe(fn func(*model.User)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := uuid.NewString()
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	current := s.current
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Set replaces the identity and notifies every subscriber synchronously, in
// registration order.
func (s *Store) Set(user *model.User) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = user
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(user)
	}
}

// Clear drops the identity, which subscribers observe as a transition to
// nil.
func (s *Store) Clear() {
	s.Set(nil)
}

// IsAuthenticated reports whether an identity is set and the stored
// credential record is complete with an expiry still in the future. The
// expiry check is recomputed on every call, never cached.
func (s *Store) IsAuthenticated() bool {
	if s.Current() == nil {
		return false
	}

	creds, ok := s.tokens.Load()
	if !ok {
		return false
	}

	return creds.ExpiresAt > s.now().UnixMilli()
}

// StartExpiryCheck runs the periodic token check: every interval, while
// authenticated, it asks the gateway to refresh a near-expiry token. A
// failed check silently clears the identity; subscribers see the transition
// to nil and the UI layer redirects to login.
func (s *Store) StartExpiryCheck(refresher Refresher, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if !s.IsAuthenticated() {
					continue
				}
				if err := refresher.CheckAndRefresh(context.Background()); err != nil {
					slog.Warn("background token check failed, clearing session", "error", err)
					s.Clear()
				}
			}
		}
	}()
}

// Close cancels the background expiry check. Safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
