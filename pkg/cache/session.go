package cache

import (
	"context"
	"errors"
	"time"
)

// Messaging-channel session windows. WhatsApp business messaging only
// permits free-form replies within 24 hours of the user's last message;
// other channels use a short conversational window.
const (
	whatsappSessionWindow = 24 * time.Hour
	defaultSessionWindow  = time.Hour

	// A session within this much of its window is refreshed by Extend.
	sessionExtendThreshold = 23 * time.Hour
)

// Session records a user's activity window on a messaging channel.
type Session struct {
	UserID       string    `json:"user_id"`
	Channel      string    `json:"channel"`
	LastMessage  time.Time `json:"last_message"`
	MessageCount int       `json:"message_count"`
}

// SessionStore is the slice of Cache the session manager needs. Cache
// satisfies it; tests substitute a map-backed fake.
type SessionStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionManager tracks per-user messaging sessions, in particular the
// 24-hour WhatsApp reply window.
type SessionManager struct {
	store SessionStore
	now   func() time.Time
}

// SessionOption is a functional option for NewSessionManager.
type SessionOption func(*SessionManager)

// WithSessionClock overrides the time source, for tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager creates a session manager on the given store.
func NewSessionManager(store SessionStore, opts ...SessionOption) (*SessionManager, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	m := &SessionManager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IsActive reports whether the user's session is still inside the channel's
// reply window.
func (m *SessionManager) IsActive(ctx context.Context, userID, channel string) (bool, error) {
	var s Session
	err := m.store.Get(ctx, sessionKey(userID, channel), &s)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.now().Sub(s.LastMessage) < sessionWindow(channel), nil
}

// Touch records user activity: it resets the window and increments the
// message count, creating the session when absent.
func (m *SessionManager) Touch(ctx context.Context, userID, channel string) error {
	key := sessionKey(userID, channel)

	var existing Session
	count := 1
	if err := m.store.Get(ctx, key, &existing); err == nil {
		count = existing.MessageCount + 1
	} else if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	s := Session{
		UserID:       userID,
		Channel:      channel,
		LastMessage:  m.now(),
		MessageCount: count,
	}
	return m.store.Set(ctx, key, s, sessionWindow(channel))
}

// Extend refreshes a session that is close to expiring. Sessions comfortably
// inside their window are left untouched.
func (m *SessionManager) Extend(ctx context.Context, userID, channel string) (bool, error) {
	var s Session
	err := m.store.Get(ctx, sessionKey(userID, channel), &s)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	threshold := sessionExtendThreshold
	if w := sessionWindow(channel); w < whatsappSessionWindow {
		// Shorter windows extend in the last tenth of their lifetime.
		threshold = w - w/10
	}
	if m.now().Sub(s.LastMessage) <= threshold {
		return true, nil
	}
	return true, m.Touch(ctx, userID, channel)
}

// End removes the user's session.
func (m *SessionManager) End(ctx context.Context, userID, channel string) error {
	return m.store.Delete(ctx, sessionKey(userID, channel))
}

// Info returns the session, or ErrCacheMiss when none exists.
func (m *SessionManager) Info(ctx context.Context, userID, channel string) (*Session, error) {
	var s Session
	if err := m.store.Get(ctx, sessionKey(userID, channel), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func sessionKey(userID, channel string) string {
	return "session:" + channel + ":" + userID
}

func sessionWindow(channel string) time.Duration {
	if channel == "whatsapp" {
		return whatsappSessionWindow
	}
	return defaultSessionWindow
}
