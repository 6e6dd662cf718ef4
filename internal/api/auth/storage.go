package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSessionNotFound is returned when a token resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session exists but its
	// expiry has passed.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStorage persists sessions. The memory implementation suits
// single-instance deployments and tests; Redis suits everything else.
type SessionStorage interface {
	Store(ctx context.Context, session *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	UpdateActivity(ctx context.Context, token string, lastActive time.Time) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// MemorySessionStorage keeps sessions in a map with a background sweep
// of expired entries.
type MemorySessionStorage struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	stopCleanup chan struct{}
	closeOnce   sync.Once
}

var _ SessionStorage = (*MemorySessionStorage)(nil)

// NewMemorySessionStorage creates an in-memory session store and starts
// its cleanup goroutine.
func NewMemorySessionStorage() *MemorySessionStorage {
	m := &MemorySessionStorage{
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *MemorySessionStorage) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

func (m *MemorySessionStorage) cleanupExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, token)
		}
	}
}

func (m *MemorySessionStorage) Store(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.Token] = &copied
	return nil
}

func (m *MemorySessionStorage) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[token]
	if !exists {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	copied := *session
	return &copied, nil
}

func (m *MemorySessionStorage) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessionStorage) UpdateActivity(_ context.Context, token string, lastActive time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[token]
	if !exists {
		return ErrSessionNotFound
	}
	session.LastActiveAt = lastActive
	return nil
}

func (m *MemorySessionStorage) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, session := range m.sessions {
		if now.Before(session.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (m *MemorySessionStorage) Close() error {
	m.closeOnce.Do(func() { close(m.stopCleanup) })
	return nil
}
