package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

func TestSignup(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	user, err := srv.Signup(ctx, "Alice@Example.com", "correct horse battery", "203.0.113.5")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want lowercased alice@example.com", user.Email)
	}
	if user.UserID == "" {
		t.Error("UserID is empty")
	}
	if user.PasswordHash == "" || user.PasswordHash == "correct horse battery" {
		t.Error("password was not hashed")
	}

	stored, err := srv.users.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if stored.UserID != user.UserID {
		t.Errorf("stored UserID = %q, want %q", stored.UserID, user.UserID)
	}
}

func TestSignup_Validation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
	}{
		{"missing email", "", "long enough password", 400},
		{"email without at sign", "not-an-email", "long enough password", 400},
		{"short password", "bob@example.com", "short", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.Signup(ctx, tt.email, tt.password, "")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Signup() error type = %T, want *APIError", err)
			}
			if apiErr.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", apiErr.Status, tt.wantStatus)
			}
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if _, err := srv.Signup(ctx, "carol@example.com", "first password", ""); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	_, err := srv.Signup(ctx, "carol@example.com", "second password", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 409 {
		t.Errorf("duplicate Signup() error = %v, want 409 APIError", err)
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	created, err := srv.Signup(ctx, "dave@example.com", "open sesame now", "")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	sessionID, user, err := srv.Login(ctx, "Dave@Example.com", "open sesame now", "203.0.113.5")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sessionID == "" {
		t.Fatal("sessionID is empty")
	}
	if user.UserID != created.UserID {
		t.Errorf("UserID = %q, want %q", user.UserID, created.UserID)
	}

	resolved, err := srv.UserFromSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("UserFromSession() error = %v", err)
	}
	if resolved.UserID != created.UserID {
		t.Errorf("resolved UserID = %q, want %q", resolved.UserID, created.UserID)
	}
}

func TestLogin_Failures(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if _, err := srv.Signup(ctx, "erin@example.com", "the real password", ""); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "anything at all"},
		{"wrong password", "erin@example.com", "not the password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := srv.Login(ctx, tt.email, tt.password, "")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Login() error type = %T, want *APIError", err)
			}
			if apiErr.Status != 401 {
				t.Errorf("status = %d, want 401", apiErr.Status)
			}
			// Both failure modes share one message so callers cannot
			// enumerate accounts.
			if apiErr.Detail != "invalid email or password" {
				t.Errorf("detail = %q", apiErr.Detail)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if _, err := srv.Signup(ctx, "frank@example.com", "eight chars min", ""); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	sessionID, _, err := srv.Login(ctx, "frank@example.com", "eight chars min", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := srv.Logout(ctx, sessionID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := srv.UserFromSession(ctx, sessionID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UserFromSession() error = %v, want ErrNotFound after logout", err)
	}

	// Logging out twice, or with an unknown session, still succeeds.
	if err := srv.Logout(ctx, sessionID); err != nil {
		t.Errorf("repeat Logout() error = %v", err)
	}
	if err := srv.Logout(ctx, ""); err != nil {
		t.Errorf("empty Logout() error = %v", err)
	}
}

func TestUserFromSession_Expired(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	user, err := srv.Signup(ctx, "grace@example.com", "password please", "")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	// Expired beyond the clock skew grace the store tolerates.
	if err := srv.sessions.SaveSession(ctx, "stale-session", user.UserID, -time.Minute); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	if _, err := srv.UserFromSession(ctx, "stale-session"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UserFromSession() error = %v, want ErrNotFound for expired session", err)
	}
}

func TestUserFromSession_Empty(t *testing.T) {
	srv := newTestServer(t)

	if _, err := srv.UserFromSession(context.Background(), ""); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UserFromSession(\"\") error = %v, want ErrNotFound", err)
	}
}
