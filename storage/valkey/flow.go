package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// ============================================================
// FlowStore Implementation
// ============================================================

// SaveAuthorizationCode saves an issued authorization code with its TTL
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" || code.ClientID == "" {
		return fmt.Errorf("invalid authorization code")
	}

	data, err := json.Marshal(toAuthorizationCodeJSON(code))
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	ttl := calculateTTL(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization code already expired")
	}

	key := s.codeKey(code.ClientID, code.Code)

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.logger.Debug("Saved authorization code",
		"client_id", code.ClientID,
		"code_prefix", safeTruncate(code.Code, tokenIDLogLength))
	return nil
}

// ConsumeAuthorizationCode atomically retrieves and deletes an authorization code.
//
// SECURITY: GETDEL makes the read and removal a single server-side operation,
// so only ONE concurrent redemption attempt can succeed. The code is gone from
// the store even when the caller's subsequent client or redirect URI
// validation fails, which prevents replay of a code observed in a failed
// attempt.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*storage.AuthorizationCode, error) {
	key := s.codeKey(clientID, code)

	data, err := s.client.Do(ctx, s.client.B().Getdel().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, fmt.Errorf("%w: authorization code", storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	var j authorizationCodeJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	authCode := fromAuthorizationCodeJSON(&j)

	// TTL should handle expiry, but double-check for safety
	if time.Now().After(authCode.ExpiresAt) {
		return nil, fmt.Errorf("%w: authorization code expired", storage.ErrNotFound)
	}

	s.logger.Debug("Consumed authorization code",
		"code_prefix", safeTruncate(code, tokenIDLogLength))
	return authCode, nil
}

// SaveConsentRequest saves a pending consent request with its TTL
func (s *Store) SaveConsentRequest(ctx context.Context, req *storage.ConsentRequest) error {
	if req == nil || req.ConsentID == "" {
		return fmt.Errorf("invalid consent request")
	}

	data, err := json.Marshal(toConsentRequestJSON(req))
	if err != nil {
		return fmt.Errorf("failed to marshal consent request: %w", err)
	}

	ttl := calculateTTL(req.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("consent request already expired")
	}

	key := s.consentKey(req.ConsentID)

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save consent request: %w", err)
	}

	s.logger.Debug("Saved consent request",
		"consent_id", safeTruncate(req.ConsentID, tokenIDLogLength),
		"client_id", req.ClientID)
	return nil
}

// GetConsentRequest retrieves a pending consent request by its ID
func (s *Store) GetConsentRequest(ctx context.Context, consentID string) (*storage.ConsentRequest, error) {
	req, err := getAndUnmarshal(ctx, s, s.consentKey(consentID),
		fmt.Errorf("%w: consent request", storage.ErrNotFound), fromConsentRequestJSON)
	if err != nil {
		return nil, err
	}

	// TTL should handle expiry, but double-check for safety
	if time.Now().After(req.ExpiresAt) {
		return nil, fmt.Errorf("%w: consent request expired", storage.ErrNotFound)
	}

	return req, nil
}

// DeleteConsentRequest removes a pending consent request
func (s *Store) DeleteConsentRequest(ctx context.Context, consentID string) error {
	key := s.consentKey(consentID)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete consent request: %w", err)
	}

	return nil
}

// SaveConsentGrant records a durable consent grant, refreshing its TTL
func (s *Store) SaveConsentGrant(ctx context.Context, userID, clientID, scope string, ttl time.Duration) error {
	if userID == "" || clientID == "" {
		return fmt.Errorf("userID and clientID cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("consent grant TTL must be positive")
	}

	key := s.grantKey(userID, clientID)

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(scope).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save consent grant: %w", err)
	}

	s.logger.Debug("Saved consent grant", "user_id", userID, "client_id", clientID)
	return nil
}

// GetConsentGrant retrieves the durably approved scope string for a user/client pair
func (s *Store) GetConsentGrant(ctx context.Context, userID, clientID string) (string, error) {
	key := s.grantKey(userID, clientID)

	scope, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return "", fmt.Errorf("%w: consent grant", storage.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get consent grant: %w", err)
	}

	return scope, nil
}

// DeleteConsentGrant revokes a user's durable approval for a client
func (s *Store) DeleteConsentGrant(ctx context.Context, userID, clientID string) error {
	key := s.grantKey(userID, clientID)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete consent grant: %w", err)
	}

	s.logger.Debug("Deleted consent grant", "user_id", userID, "client_id", clientID)
	return nil
}
