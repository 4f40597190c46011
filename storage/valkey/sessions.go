package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// ============================================================
// SessionStore Implementation
// ============================================================

// SaveSession maps a session ID to a user for the given TTL
func (s *Store) SaveSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	if sessionID == "" || userID == "" {
		return fmt.Errorf("sessionID and userID cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	key := s.sessionKey(sessionID)

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(userID).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("Saved session",
		"session_prefix", safeTruncate(sessionID, tokenIDLogLength),
		"user_id", userID)
	return nil
}

// GetSession retrieves the user ID for a session
func (s *Store) GetSession(ctx context.Context, sessionID string) (string, error) {
	key := s.sessionKey(sessionID)

	userID, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return "", fmt.Errorf("%w: session", storage.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	return userID, nil
}

// DeleteSession removes a session
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	key := s.sessionKey(sessionID)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}
