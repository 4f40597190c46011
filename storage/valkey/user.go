package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// ============================================================
// UserStore Implementation
// ============================================================

// SaveUser saves a user, enforcing email uniqueness via the email index key.
func (s *Store) SaveUser(ctx context.Context, user *storage.User) error {
	if user == nil || user.UserID == "" || user.Email == "" {
		return fmt.Errorf("invalid user")
	}

	// Claim the email index first with SET NX. A nil reply means the email
	// is already mapped to another user.
	emailKey := s.userEmailKey(user.Email)
	err := s.client.Do(ctx,
		s.client.B().Set().Key(emailKey).Value(user.UserID).Nx().Build(),
	).Error()
	if err != nil {
		if isNilError(err) {
			// Key exists; allow overwriting our own record, reject others
			existingID, getErr := s.client.Do(ctx, s.client.B().Get().Key(emailKey).Build()).ToString()
			if getErr != nil || existingID != user.UserID {
				return fmt.Errorf("%w: email already registered", storage.ErrDuplicate)
			}
		} else {
			return fmt.Errorf("failed to claim email index: %w", err)
		}
	}

	data, err := json.Marshal(toUserJSON(user))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	key := s.userKey(user.UserID)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.Debug("Saved user", "user_id", user.UserID)
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	return getAndUnmarshal(ctx, s, s.userKey(userID),
		fmt.Errorf("%w: user", storage.ErrNotFound), fromUserJSON)
}

// GetUserByEmail retrieves a user by their unique email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	userID, err := s.client.Do(ctx, s.client.B().Get().Key(s.userEmailKey(email)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, fmt.Errorf("%w: no user for email", storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get email index: %w", err)
	}

	return s.GetUser(ctx, userID)
}
