package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-artists-client/internal/model"
	"go-artists-client/internal/tokenstore"
)

func newTokens(t *testing.T) *tokenstore.Store {
	t.Helper()
	return tokenstore.New(filepath.Join(t.TempDir(), "credentials.json"))
}

func testUser() *model.User {
	return &model.User{
		Username:     "admin",
		Token:        "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(15 * time.Minute).UnixMilli(),
	}
}

func credsFor(u *model.User) model.Credentials {
	return model.Credentials{
		AccessToken:  u.Token,
		RefreshToken: u.RefreshToken,
		ExpiresAt:    u.ExpiresAt,
		Username:     u.Username,
	}
}

func TestStore_SubscribeReplaysCurrentValue(t *testing.T) {
	store := New(newTokens(t))
	defer store.Close()

	user := testUser()
	store.Set(user)

	var got []*model.User
	unsubscribe := store.Subscribe(func(u *model.User) {
		got = append(got, u)
	})
	defer unsubscribe()

	// The subscriber registered after Set still receives the value first.
	require.Len(t, got, 1)
	assert.Equal(t, user, got[0])
}

func TestStore_SubscribersReceiveTransitionsInOrder(t *testing.T) {
	store := New(newTokens(t))
	defer store.Close()

	var first, second []*model.User
	store.Subscribe(func(u *model.User) { first = append(first, u) })
	store.Subscribe(func(u *model.User) { second = append(second, u) })

	user := testUser()
	store.Set(user)
	store.Set(nil)

	// Initial replay (nil) plus the two transitions, same order for both.
	require.Len(t, first, 3)
	require.Len(t, second, 3)
	assert.Nil(t, first[0])
	assert.Equal(t, user, first[1])
	assert.Nil(t, first[2])
	assert.Equal(t, first, second)
}

func TestStore_Unsubscribe(t *testing.T) {
	store := New(newTokens(t))
	defer store.Close()

	calls := 0
	unsubscribe := store.Subscribe(func(*model.User) { calls++ })
	unsubscribe()

	store.Set(testUser())
	assert.Equal(t, 1, calls) // only the replay
}

func TestStore_IsAuthenticatedFollowsStoredExpiry(t *testing.T) {
	tokens := newTokens(t)
	store := New(tokens)
	defer store.Close()

	user := testUser()
	require.NoError(t, tokens.Save(credsFor(user)))
	store.Set(user)

	now := time.Now()
	store.now = func() time.Time { return now }
	assert.True(t, store.IsAuthenticated())

	// Moving only the clock past the stored expiry flips the result.
	store.now = func() time.Time { return time.UnixMilli(user.ExpiresAt).Add(time.Second) }
	assert.False(t, store.IsAuthenticated())
}

func TestStore_IsAuthenticatedFalseWithoutStoredRecord(t *testing.T) {
	store := New(newTokens(t))
	defer store.Close()

	store.Set(testUser())

	// Identity set but no persisted record: not authenticated.
	assert.False(t, store.IsAuthenticated())
}

func TestStore_NewSeedsFromTokenStore(t *testing.T) {
	tokens := newTokens(t)
	user := testUser()
	require.NoError(t, tokens.Save(credsFor(user)))

	store := New(tokens)
	defer store.Close()

	require.NotNil(t, store.Current())
	assert.Equal(t, user.Username, store.Current().Username)
}

func TestStore_NewIgnoresExpiredRecord(t *testing.T) {
	tokens := newTokens(t)
	user := testUser()
	user.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	require.NoError(t, tokens.Save(credsFor(user)))

	store := New(tokens)
	defer store.Close()

	assert.Nil(t, store.Current())
}

type stubRefresher struct {
	calls atomic.Int64
	err   error
}

func (r *stubRefresher) CheckAndRefresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestStore_ExpiryCheckClearsSessionOnFailure(t *testing.T) {
	tokens := newTokens(t)
	store := New(tokens)
	defer store.Close()

	user := testUser()
	require.NoError(t, tokens.Save(credsFor(user)))
	store.Set(user)

	refresher := &stubRefresher{err: errors.New("refresh rejected")}
	store.StartExpiryCheck(refresher, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return store.Current() == nil
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, refresher.calls.Load(), int64(1))
}

func TestStore_ExpiryCheckSkipsWhenAnonymous(t *testing.T) {
	store := New(newTokens(t))
	defer store.Close()

	refresher := &stubRefresher{}
	store.StartExpiryCheck(refresher, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, refresher.calls.Load())
}
