package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// Default grant and response types assigned to newly registered clients.
var (
	defaultGrantTypes    = []string{"authorization_code", "refresh_token"}
	defaultResponseTypes = []string{"code"}
)

// ClientMetadata is the validated input for dynamic client registration.
type ClientMetadata struct {
	ClientName   string
	RedirectURIs []string
	GrantTypes   []string
	Scopes       []string
	SoftwareID   string
}

// RegisterClient registers a new OAuth client with IP-based DoS protection.
// The plaintext secret is returned exactly once; only its bcrypt hash is
// persisted. An ownership link (client_id, ownerID) is recorded so the owner
// can later rotate the secret.
func (s *Server) RegisterClient(ctx context.Context, meta *ClientMetadata, ownerID, clientIP string) (*storage.Client, string, error) {
	if err := s.clients.CheckIPLimit(ctx, clientIP, s.Config.MaxClientsPerIP); err != nil {
		s.Logger.Warn("Client registration rejected: IP limit reached", "ip", clientIP)
		return nil, "", NewValidationError("client registration limit reached for this address")
	}

	if err := validateClientMetadata(meta.RedirectURIs); err != nil {
		if s.Auditor != nil {
			s.Auditor.LogInvalidRedirect("", clientIP, "", err.Error())
		}
		return nil, "", err
	}

	grantTypes := meta.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = defaultGrantTypes
	}

	clientID := uuid.NewString()
	clientSecret := generateRandomToken()

	secretHash, err := s.hasher.Hash(clientSecret)
	if err != nil {
		s.Logger.Error("Failed to hash client secret", "error", err)
		return nil, "", NewInternalError()
	}

	client := &storage.Client{
		ClientID:         clientID,
		ClientSecretHash: secretHash,
		RedirectURIs:     meta.RedirectURIs,
		GrantTypes:       grantTypes,
		ResponseTypes:    defaultResponseTypes,
		ClientName:       meta.ClientName,
		Scopes:           meta.Scopes,
		SoftwareID:       meta.SoftwareID,
		IsActive:         true,
		CreatedAt:        time.Now(),
	}

	if err := s.clients.SaveClient(ctx, client); err != nil {
		s.Logger.Error("Failed to save client", "error", err)
		return nil, "", NewInternalError()
	}

	if ownerID != "" {
		if err := s.clients.SaveOwnership(ctx, clientID, ownerID); err != nil {
			s.Logger.Error("Failed to save client ownership", "client_id", clientID, "error", err)
			return nil, "", NewInternalError()
		}
	}

	s.trackClientIP(ctx, clientIP)

	if s.Auditor != nil {
		s.Auditor.LogClientRegistered(clientID, meta.ClientName, clientIP)
	}

	s.Logger.Info("Registered new OAuth client",
		"client_id", clientID,
		"client_name", meta.ClientName,
		"client_ip", clientIP)

	return client, clientSecret, nil
}

// trackClientIP records a registration against the IP limit when the backing
// store supports it.
func (s *Server) trackClientIP(ctx context.Context, clientIP string) {
	type ipTracker interface {
		TrackClientIP(ip string)
	}
	type ctxIPTracker interface {
		TrackClientIP(ctx context.Context, ip string) error
	}

	switch tracker := s.clients.(type) {
	case ipTracker:
		tracker.TrackClientIP(clientIP)
	case ctxIPTracker:
		if err := tracker.TrackClientIP(ctx, clientIP); err != nil {
			s.Logger.Warn("Failed to track client registration IP", "error", err)
		}
	}
}

// GetClient retrieves a client by ID
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	return s.clients.GetClient(ctx, clientID)
}

// RotateClientSecret generates a new secret for a client the requesting user
// owns. The new plaintext is returned exactly once.
func (s *Server) RotateClientSecret(ctx context.Context, clientID, requestingUserID, clientIP string) (string, error) {
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", NewNotFoundError("client not found")
		}
		s.Logger.Error("Failed to load client for secret rotation", "client_id", clientID, "error", err)
		return "", NewInternalError()
	}

	owned, err := s.clients.HasOwnership(ctx, clientID, requestingUserID)
	if err != nil {
		s.Logger.Error("Failed to check client ownership", "client_id", clientID, "error", err)
		return "", NewInternalError()
	}
	if !owned {
		if s.Auditor != nil {
			s.Auditor.LogSuspiciousActivity(requestingUserID, clientID, clientIP, "secret rotation attempted without ownership")
		}
		return "", NewForbiddenError("you do not own this client")
	}

	newSecret := generateRandomToken()
	secretHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		s.Logger.Error("Failed to hash rotated client secret", "client_id", clientID, "error", err)
		return "", NewInternalError()
	}

	client.ClientSecretHash = secretHash
	if err := s.clients.SaveClient(ctx, client); err != nil {
		s.Logger.Error("Failed to persist rotated client secret", "client_id", clientID, "error", err)
		return "", NewInternalError()
	}

	if s.Auditor != nil {
		s.Auditor.LogClientSecretRotated(clientID, clientIP)
	}

	s.Logger.Info("Rotated client secret", "client_id", clientID)

	return newSecret, nil
}

// VerifyClientSecret compares a plaintext secret against the client's stored
// hash in constant time. A client without a stored hash always fails, after a
// dummy comparison so timing does not reveal which case occurred.
func (s *Server) VerifyClientSecret(client *storage.Client, secret string) bool {
	return s.hasher.Verify(client.ClientSecretHash, secret)
}
