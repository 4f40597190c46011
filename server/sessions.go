package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// Signup creates a new resource-owner account. The password is stored only
// as a bcrypt hash. Fails with a conflict when the email is already taken.
func (s *Server) Signup(ctx context.Context, email, password, clientIP string) (*storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, NewValidationError("a valid email address is required")
	}
	if len(password) < s.Config.MinPasswordLength {
		return nil, NewValidationError("password is too short")
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.Logger.Error("Failed to hash password", "error", err)
		return nil, NewInternalError()
	}

	user := &storage.User{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, NewConflictError("email is already registered")
		}
		s.Logger.Error("Failed to save user", "error", err)
		return nil, NewInternalError()
	}

	s.Logger.Info("User signed up", "user_id", user.UserID)

	return user, nil
}

// Login authenticates a resource owner and opens a login session. The same
// generic error covers unknown email and wrong password, and a dummy hash
// comparison keeps the two cases indistinguishable by timing.
func (s *Server) Login(ctx context.Context, email, password, clientIP string) (string, *storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.Verify("", password)
			if s.Auditor != nil {
				s.Auditor.LogLoginFailure(clientIP, "unknown_email")
			}
			return "", nil, NewUnauthorizedError("invalid email or password")
		}
		s.Logger.Error("Failed to load user by email", "error", err)
		return "", nil, NewInternalError()
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		if s.Auditor != nil {
			s.Auditor.LogLoginFailure(clientIP, "wrong_password")
		}
		return "", nil, NewUnauthorizedError("invalid email or password")
	}

	sessionID := uuid.NewString()
	ttl := time.Duration(s.Config.SessionTTL) * time.Second
	if err := s.sessions.SaveSession(ctx, sessionID, user.UserID, ttl); err != nil {
		s.Logger.Error("Failed to save session", "error", err)
		return "", nil, NewInternalError()
	}

	s.Logger.Info("User logged in", "user_id", user.UserID)

	return sessionID, user, nil
}

// Logout terminates a login session. Unknown sessions succeed silently.
func (s *Server) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.Logger.Warn("Failed to delete session", "error", err)
	}
	return nil
}

// UserFromSession resolves the resource owner behind a session cookie.
// Returns storage.ErrNotFound when the session is absent or expired.
func (s *Server) UserFromSession(ctx context.Context, sessionID string) (*storage.User, error) {
	if sessionID == "" {
		return nil, storage.ErrNotFound
	}

	userID, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.users.GetUser(ctx, userID)
}
