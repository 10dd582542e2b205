package cache_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomsupport/botkit/pkg/cache"
)

// fakeStore is a map-backed SessionStore with TTL-free semantics; expiry is
// exercised through the injected clock instead.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (s *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = data
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T) (*cache.SessionManager, *testClock) {
	t.Helper()

	clk := &testClock{now: time.Now().UTC()}
	m, err := cache.NewSessionManager(newFakeStore(), cache.WithSessionClock(clk.Now))
	require.NoError(t, err)
	return m, clk
}

func TestNewSessionManager(t *testing.T) {
	t.Parallel()

	m, err := cache.NewSessionManager(nil)
	assert.ErrorIs(t, err, cache.ErrStoreNil)
	assert.Nil(t, m)
}

func TestSessionManager_Lifecycle(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	active, err := m.IsActive(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.False(t, active, "no session yet")

	require.NoError(t, m.Touch(ctx, "u1", "whatsapp"))

	active, err = m.IsActive(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.True(t, active)

	info, err := m.Info(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, "whatsapp", info.Channel)
	assert.Equal(t, 1, info.MessageCount)

	// Another message increments the count and resets the window.
	clk.Advance(time.Hour)
	require.NoError(t, m.Touch(ctx, "u1", "whatsapp"))

	info, err = m.Info(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, 2, info.MessageCount)
	assert.Equal(t, clk.Now(), info.LastMessage)

	require.NoError(t, m.End(ctx, "u1", "whatsapp"))

	active, err = m.IsActive(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSessionManager_WindowPerChannel(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Touch(ctx, "u1", "whatsapp"))
	require.NoError(t, m.Touch(ctx, "u1", "webchat"))

	// Two hours in: the one-hour webchat window is over, WhatsApp's 24-hour
	// window is not.
	clk.Advance(2 * time.Hour)

	active, err := m.IsActive(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = m.IsActive(ctx, "u1", "webchat")
	require.NoError(t, err)
	assert.False(t, active)

	// Past 24 hours the WhatsApp window closes too.
	clk.Advance(23 * time.Hour)
	active, err = m.IsActive(ctx, "u1", "whatsapp")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSessionManager_Extend(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		existed, err := m.Extend(ctx, "ghost", "whatsapp")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("fresh session untouched", func(t *testing.T) {
		require.NoError(t, m.Touch(ctx, "u1", "whatsapp"))
		touchedAt := clk.Now()

		clk.Advance(time.Hour)
		existed, err := m.Extend(ctx, "u1", "whatsapp")
		require.NoError(t, err)
		assert.True(t, existed)

		info, err := m.Info(ctx, "u1", "whatsapp")
		require.NoError(t, err)
		assert.Equal(t, touchedAt, info.LastMessage)
	})

	t.Run("near-expiry session refreshed", func(t *testing.T) {
		require.NoError(t, m.Touch(ctx, "u2", "whatsapp"))

		clk.Advance(23*time.Hour + 30*time.Minute)
		existed, err := m.Extend(ctx, "u2", "whatsapp")
		require.NoError(t, err)
		assert.True(t, existed)

		info, err := m.Info(ctx, "u2", "whatsapp")
		require.NoError(t, err)
		assert.Equal(t, clk.Now(), info.LastMessage)
	})
}
