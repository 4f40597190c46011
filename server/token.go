package server

import (
	"context"
	"errors"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/security"
	"github.com/guilherme-hl1ma/project-library-oauth/storage"
	"github.com/guilherme-hl1ma/project-library-oauth/token"
)

// TokenResponse is the successful token endpoint payload.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
}

// ClientCredentials carries whatever client identification accompanied a
// token endpoint request: the tolerantly parsed Basic header pair and the
// client_id form parameter.
type ClientCredentials struct {
	HeaderID     string
	HeaderSecret string
	ParamID      string
}

// AuthenticateClient resolves and verifies the client behind a token
// endpoint request. Header-derived client_id wins over the form parameter.
// A missing secret is tolerated; a supplied secret must verify. All
// authentication failures collapse into invalid_client so responses cannot
// be used to probe which check failed; a store failure surfaces as
// server_error instead.
func (s *Server) AuthenticateClient(ctx context.Context, creds *ClientCredentials, clientIP string) (*storage.Client, error) {
	clientID := creds.HeaderID
	if clientID == "" {
		clientID = creds.ParamID
	}

	if clientID == "" {
		return nil, ErrInvalidClient("Client authentication required")
	}

	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.Logger.Error("Failed to load client", "client_id", clientID, "error", err)
			return nil, ErrServerError("Temporarily unable to process the request")
		}
		s.logAuthFailure(clientID, clientIP, "unknown_client")
		return nil, ErrInvalidClient("Client authentication failed")
	}

	if !client.IsActive {
		s.logAuthFailure(clientID, clientIP, "inactive_client")
		return nil, ErrInvalidClient("Client authentication failed")
	}

	if creds.HeaderSecret != "" {
		if !s.VerifyClientSecret(client, creds.HeaderSecret) {
			s.logAuthFailure(clientID, clientIP, "invalid_client_secret")
			return nil, ErrInvalidClient("Client authentication failed")
		}
	} else if client.ClientSecretHash != "" {
		// Tolerated for public and pre-trusted clients, but worth a trace:
		// a confidential client skipping its secret may indicate a
		// misconfigured integration or a probing attempt.
		if s.Auditor != nil {
			s.Auditor.LogEvent(security.Event{
				Type:      security.EventMissingClientSecret,
				ClientID:  clientID,
				IPAddress: clientIP,
			})
		}
	}

	return client, nil
}

// ExchangeAuthorizationCode redeems a single-use authorization code for an
// access and refresh token pair. The code record is consumed before any
// validation so a failed attempt can never be replayed.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, client *storage.Client, code, redirectURI, clientIP string) (*TokenResponse, error) {
	record, err := s.flows.ConsumeAuthorizationCode(ctx, client.ClientID, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if s.Auditor != nil {
				s.Auditor.LogEvent(security.Event{
					Type:      security.EventAuthorizationCodeReuseDetected,
					ClientID:  client.ClientID,
					IPAddress: clientIP,
				})
			}
			return nil, ErrInvalidGrant("Authorization code not found or expired")
		}
		s.Logger.Error("Failed to consume authorization code", "client_id", client.ClientID, "error", err)
		return nil, ErrServerError("internal server error")
	}

	// The record is already gone from the store; every path below either
	// succeeds or rejects a now-unusable code.
	if record.ClientID != client.ClientID {
		s.logAuthFailure(client.ClientID, clientIP, "code_client_mismatch")
		return nil, ErrInvalidGrant("Authorization code was issued to a different client")
	}

	if record.RedirectURI != normalizeRedirectURI(redirectURI) {
		if s.Auditor != nil {
			s.Auditor.LogInvalidRedirect(client.ClientID, clientIP, redirectURI, "does not match code binding")
		}
		return nil, ErrInvalidGrant("redirect_uri does not match the authorization request")
	}

	resp, err := s.issueTokens(record.UserID, client.ClientID, record.Scope, record.Scope)
	if err != nil {
		s.Logger.Error("Failed to sign tokens", "client_id", client.ClientID, "error", err)
		return nil, ErrServerError("internal server error")
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(record.UserID, client.ClientID, clientIP, record.Scope)
	}

	s.Logger.Info("Authorization code exchanged",
		"client_id", client.ClientID,
		"scope", record.Scope)

	return resp, nil
}

// RefreshAccessToken verifies a refresh token and mints a new token pair.
// A requested scope must be a subset of the original grant; the access token
// then carries the narrowed scope while the new refresh token retains the
// full original scope.
func (s *Server) RefreshAccessToken(ctx context.Context, refreshToken, requestedScope string, creds *ClientCredentials, clientIP string) (*TokenResponse, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			s.logAuthFailure("", clientIP, "refresh_token_expired")
			return nil, ErrInvalidGrant("Refresh token has expired")
		default:
			s.logAuthFailure("", clientIP, "refresh_token_invalid")
			return nil, ErrInvalidGrant("Invalid refresh token")
		}
	}

	if claims.TokenType != token.TypeRefresh {
		s.logAuthFailure(claims.ClientID, clientIP, "wrong_token_type")
		return nil, ErrInvalidGrant("Invalid refresh token")
	}

	if claims.Subject == "" || claims.ClientID == "" {
		return nil, ErrInvalidGrant("Refresh token is missing required claims")
	}

	client, err := s.clients.GetClient(ctx, claims.ClientID)
	if err != nil {
		s.logAuthFailure(claims.ClientID, clientIP, "unknown_client")
		return nil, ErrInvalidClient("Client authentication failed")
	}
	if !client.IsActive {
		s.logAuthFailure(claims.ClientID, clientIP, "inactive_client")
		return nil, ErrInvalidClient("Client authentication failed")
	}

	// Credentials are optional on refresh, but when supplied they must both
	// verify and match the token's client binding.
	if creds != nil {
		credID := creds.HeaderID
		if credID == "" {
			credID = creds.ParamID
		}
		if credID != "" && credID != claims.ClientID {
			s.logAuthFailure(credID, clientIP, "client_token_mismatch")
			return nil, ErrInvalidClient("Client authentication failed")
		}
		if creds.HeaderSecret != "" && !s.VerifyClientSecret(client, creds.HeaderSecret) {
			s.logAuthFailure(claims.ClientID, clientIP, "invalid_client_secret")
			return nil, ErrInvalidClient("Client authentication failed")
		}
	}

	accessScope := claims.Scope
	if requestedScope != "" {
		requestedScope = normalizeScope(requestedScope)
		if !scopeSubset(requestedScope, claims.Scope) {
			if s.Auditor != nil {
				s.Auditor.LogEvent(security.Event{
					Type:      security.EventScopeEscalationAttempt,
					UserID:    claims.Subject,
					ClientID:  claims.ClientID,
					IPAddress: clientIP,
					Details: map[string]any{
						"requested_scope": requestedScope,
					},
				})
			}
			return nil, ErrInvalidScope("Requested scope exceeds original grant")
		}
		accessScope = requestedScope
	}

	resp, err := s.issueTokens(claims.Subject, claims.ClientID, accessScope, claims.Scope)
	if err != nil {
		s.Logger.Error("Failed to sign tokens", "client_id", claims.ClientID, "error", err)
		return nil, ErrServerError("internal server error")
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenRefreshed(claims.Subject, claims.ClientID, clientIP, accessScope)
	}

	s.Logger.Info("Access token refreshed",
		"client_id", claims.ClientID,
		"scope", accessScope)

	return resp, nil
}

// issueTokens signs a fresh access and refresh token pair. The two tokens may
// carry different scopes: a narrowed access scope from a refresh request
// never narrows the refresh token itself.
func (s *Server) issueTokens(userID, clientID, accessScope, refreshScope string) (*TokenResponse, error) {
	now := time.Now()

	accessToken, err := s.codec.Sign(token.Claims{
		Subject:   userID,
		ClientID:  clientID,
		Scope:     accessScope,
		TokenType: token.TypeAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(s.Config.AccessTokenTTL) * time.Second),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.codec.Sign(token.Claims{
		Subject:   userID,
		ClientID:  clientID,
		Scope:     refreshScope,
		TokenType: token.TypeRefresh,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(s.Config.RefreshTokenTTL) * time.Second),
	})
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.Config.AccessTokenTTL,
		Scope:        accessScope,
	}, nil
}

// logAuthFailure logs a client authentication failure with optional auditing.
func (s *Server) logAuthFailure(clientID, clientIP, reason string) {
	s.Logger.Warn("Client authentication failed", "client_id", clientID, "ip", clientIP, "reason", reason)
	if s.Auditor != nil {
		s.Auditor.LogAuthFailure("", clientID, clientIP, reason)
	}
}
