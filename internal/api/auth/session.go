// Package auth implements session-based authentication for the
// mitre-shield API: bcrypt credential checks, opaque session tokens,
// and pluggable session storage (memory or Redis).
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for unknown usernames and wrong
// passwords alike; callers must not be able to tell the two apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Session is an authenticated user session.
type Session struct {
	Token        string    `json:"token"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Manager authenticates users against configured bcrypt hashes and
// tracks their sessions.
type Manager struct {
	users   map[string]string // username -> bcrypt hash
	storage SessionStorage
	ttl     time.Duration
}

// dummyHash is compared against when the username is unknown, so login
// latency does not reveal which usernames exist.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// NewManager creates a session manager. users maps usernames to bcrypt
// password hashes as configured in auth.users.
func NewManager(users map[string]string, storage SessionStorage, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{users: users, storage: storage, ttl: ttl}
}

// Login verifies the credentials and creates a session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	hash, ok := m.users[username]
	if !ok {
		// Burn comparable time before rejecting.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &Session{
		Token:        token,
		Username:     username,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActiveAt: now,
	}

	if err := m.storage.Store(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Validate resolves a token to its session and refreshes the activity
// timestamp.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	session, err := m.storage.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	// Best effort; a failed activity update does not invalidate the
	// session.
	_ = m.storage.UpdateActivity(ctx, token, time.Now().UTC())

	return session, nil
}

// Logout deletes the session. Logging out an unknown token is a no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	return m.storage.Delete(ctx, token)
}

// Close releases the underlying session storage.
func (m *Manager) Close() error {
	return m.storage.Close()
}

// HashPassword produces a bcrypt hash suitable for the auth.users
// config map. Used by the CLI's hash helper.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	hash := sha256.Sum256(b)
	return base64.URLEncoding.EncodeToString(hash[:]), nil
}
