package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func testUsers(t *testing.T) map[string]string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{"admin": string(hash)}
}

func newTestManager(t *testing.T) (*Manager, *MemorySessionStorage) {
	t.Helper()
	storage := NewMemorySessionStorage()
	t.Cleanup(func() { storage.Close() })
	return NewManager(testUsers(t), storage, time.Hour), storage
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	session, err := m.Login(ctx, "admin", "correct horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.Token == "" {
		t.Error("session token is empty")
	}
	if session.Username != "admin" {
		t.Errorf("session username = %q", session.Username)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session already expired")
	}

	got, err := m.Validate(ctx, session.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.Username != "admin" {
		t.Errorf("validated username = %q", got.Username)
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "incorrect"},
		{"unknown user", "ghost", "correct horse"},
		{"empty credentials", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Login(ctx, tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	session, err := m.Login(ctx, "admin", "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Logout(ctx, session.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := m.Validate(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Validate() after logout: error = %v, want ErrSessionNotFound", err)
	}
	// Logging out twice is harmless.
	if err := m.Logout(ctx, session.Token); err != nil {
		t.Errorf("Logout() twice: error = %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemorySessionStorage()
	t.Cleanup(func() { storage.Close() })

	expired := &Session{
		Token:     "expired-token",
		Username:  "admin",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := storage.Store(ctx, expired); err != nil {
		t.Fatal(err)
	}

	if _, err := storage.Get(ctx, "expired-token"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get() expired session: error = %v, want ErrSessionExpired", err)
	}

	// Expired sessions do not count as active.
	count, err := storage.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}
}

func TestMemoryStorageActivity(t *testing.T) {
	ctx := context.Background()
	storage := NewMemorySessionStorage()
	t.Cleanup(func() { storage.Close() })

	session := &Session{
		Token:     "tok",
		Username:  "admin",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := storage.Store(ctx, session); err != nil {
		t.Fatal(err)
	}

	stamp := time.Now().Add(time.Minute).UTC()
	if err := storage.UpdateActivity(ctx, "tok", stamp); err != nil {
		t.Fatalf("UpdateActivity() error = %v", err)
	}
	got, err := storage.Get(ctx, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastActiveAt.Equal(stamp) {
		t.Errorf("LastActiveAt = %v, want %v", got.LastActiveAt, stamp)
	}

	if err := storage.UpdateActivity(ctx, "missing", stamp); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("UpdateActivity(missing) error = %v", err)
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}

	other, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if hash == other {
		t.Error("expected different hashes for the same password")
	}
}

func TestGenerateTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := generateToken()
		if err != nil {
			t.Fatal(err)
		}
		if seen[tok] {
			t.Fatal("token collision")
		}
		seen[tok] = true
	}
}
