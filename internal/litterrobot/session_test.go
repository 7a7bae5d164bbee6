package litterrobot

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/litterbridge/internal/cache"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
}

func newTestSessions(t *testing.T, vendor *fakeVendor, clock cache.Clock) (*SessionManager, *Store) {
	t.Helper()
	var opts []cache.Option
	if clock != nil {
		opts = append(opts, cache.WithClock(clock))
	}
	store := NewStore(opts...)
	creds := Credentials{Email: testEmail, Password: testPassword}
	return NewSessionManager(vendor.client(t), creds, store, 0, nil), store
}

func TestGetSession_ConcurrentColdCacheLogsInOnce(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.loginDelay = 50 * time.Millisecond
	sessions, _ := newTestSessions(t, vendor, nil)

	const callers = 20
	results := make([]Session, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = sessions.GetSession(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), vendor.logins.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, Session{UserID: testUserID, Token: "token-1"}, results[i])
	}
}

func TestGetSession_CachedUntilTTL(t *testing.T) {
	vendor := newFakeVendor(t)
	clock := newManualClock()
	sessions, _ := newTestSessions(t, vendor, clock)
	ctx := context.Background()

	_, err := sessions.GetSession(ctx)
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL - time.Minute)
	_, err = sessions.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), vendor.logins.Load())

	clock.Advance(2 * time.Minute)
	_, err = sessions.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), vendor.logins.Load(), "expired session must trigger a relogin")
}

func TestGetSession_FailureLeavesCacheEmpty(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.loginErr = http.StatusServiceUnavailable
	sessions, store := newTestSessions(t, vendor, nil)
	ctx := context.Background()

	_, err := sessions.GetSession(ctx)
	require.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrProtocol, "cause stays inspectable")
	assert.Equal(t, 0, store.Len())

	vendor.mu.Lock()
	vendor.loginErr = 0
	vendor.mu.Unlock()

	s, err := sessions.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, testUserID, s.UserID)
	assert.Equal(t, int32(2), vendor.logins.Load())
}

func TestInvalidate(t *testing.T) {
	vendor := newFakeVendor(t)
	sessions, store := newTestSessions(t, vendor, nil)
	ctx := context.Background()

	first, err := sessions.GetSession(ctx)
	require.NoError(t, err)

	// A stale token that is no longer cached is ignored.
	sessions.Invalidate(Session{UserID: testUserID, Token: "older"})
	assert.Equal(t, 2, store.Len())

	sessions.Invalidate(first)
	assert.Equal(t, 0, store.Len())

	vendor.rotateToken("token-2")
	second, err := sessions.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", second.Token)
}
