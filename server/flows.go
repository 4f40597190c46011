package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guilherme-hl1ma/project-library-oauth/security"
	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// AuthorizeRequest carries the parameters of a GET /authorize request.
// UserID is empty when no login session accompanied the request;
// OriginalQuery is the raw query string, preserved for post-login replay.
type AuthorizeRequest struct {
	UserID        string
	ClientID      string
	RedirectURI   string
	ResponseType  string
	Scope         string
	State         string
	OriginalQuery string
	ClientIP      string
}

// ConsentDecision carries the resource owner's answer to a pending consent
// request. An empty ApprovedScopes means everything originally requested.
type ConsentDecision struct {
	ConsentID      string
	Approved       bool
	ApprovedScopes []string
	ClientIP       string
}

// ConsentData is what the consent UI needs to render a decision page.
type ConsentData struct {
	ClientName string
	Scopes     []string
	UserEmail  string
}

// HandleAuthorize runs one authorization attempt and returns the URL the
// user agent should be redirected to: the login page, the consent UI, or the
// client's redirect URI carrying a code or an error.
//
// Protocol errors detected after the redirect target is known are delivered
// as error parameters on that target, never surfaced as HTTP errors. Errors
// detected before a trusted target exists (unknown client, missing
// redirect_uri) are terminal and returned as *Error.
func (s *Server) HandleAuthorize(ctx context.Context, req *AuthorizeRequest) (string, error) {
	// No authenticated resource owner: send to login, preserving the full
	// query so the flow replays after authentication.
	if req.UserID == "" {
		return s.loginRedirect(req.OriginalQuery), nil
	}

	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.Logger.Error("Failed to load client", "client_id", req.ClientID, "error", err)
			return "", ErrServerError("Temporarily unable to process the request")
		}
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", req.ClientID, req.ClientIP, "unknown_client")
		}
		return "", ErrInvalidClient("Unknown client")
	}
	if !client.IsActive {
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", req.ClientID, req.ClientIP, "inactive_client")
		}
		return "", ErrInvalidClient("Client is not active")
	}

	if req.RedirectURI == "" {
		return "", ErrInvalidRedirectURI("redirect_uri is required")
	}

	// An unregistered redirect_uri must never be redirected to. The error
	// goes to the client's first registered URI instead.
	if !isRegisteredRedirectURI(client, req.RedirectURI) {
		if s.Auditor != nil {
			s.Auditor.LogInvalidRedirect(client.ClientID, req.ClientIP, req.RedirectURI, "not registered")
		}
		return buildRedirect(client.RedirectURIs[0], url.Values{
			"error": {ErrorCodeInvalidRequest},
			"state": {"auth_error"},
		})
	}

	if req.ResponseType != "code" {
		return s.errorRedirect(req.RedirectURI, ErrorCodeUnsupportedResponseType, req.State)
	}

	scope := normalizeScope(req.Scope)
	if err := s.validateScopes(scope); err != nil {
		s.Logger.Warn("Rejected authorization request scope",
			"client_id", client.ClientID, "error", err)
		return s.errorRedirect(req.RedirectURI, ErrorCodeInvalidScope, req.State)
	}

	redirectURI := normalizeRedirectURI(req.RedirectURI)

	if s.Auditor != nil {
		s.Auditor.LogEvent(security.Event{
			Type:      security.EventAuthorizationFlowStarted,
			UserID:    req.UserID,
			ClientID:  client.ClientID,
			IPAddress: req.ClientIP,
			Details: map[string]any{
				"scope": scope,
			},
		})
	}

	// Durable consent already covering the requested scopes lets the flow
	// skip the consent screen entirely.
	granted, err := s.flows.GetConsentGrant(ctx, req.UserID, client.ClientID)
	if err == nil && scopeSubset(scope, granted) {
		code, mintErr := s.mintAuthorizationCode(ctx, req.UserID, client.ClientID, redirectURI, scope)
		if mintErr != nil {
			s.Logger.Error("Failed to issue authorization code", "client_id", client.ClientID, "error", mintErr)
			return s.errorRedirect(req.RedirectURI, ErrorCodeServerError, req.State)
		}
		return buildRedirect(req.RedirectURI, url.Values{
			"code":  {code},
			"state": {req.State},
		})
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.Logger.Error("Failed to check consent grant", "client_id", client.ClientID, "error", err)
		return s.errorRedirect(req.RedirectURI, ErrorCodeServerError, req.State)
	}

	// Park the request and send the user to the consent UI.
	consent := &storage.ConsentRequest{
		ConsentID:   uuid.NewString(),
		UserID:      req.UserID,
		ClientID:    client.ClientID,
		RedirectURI: redirectURI,
		Scope:       scope,
		State:       req.State,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Duration(s.Config.ConsentTTL) * time.Second),
	}
	if err := s.flows.SaveConsentRequest(ctx, consent); err != nil {
		s.Logger.Error("Failed to save consent request", "client_id", client.ClientID, "error", err)
		return s.errorRedirect(req.RedirectURI, ErrorCodeServerError, req.State)
	}

	return buildRedirect(s.Config.ConsentURL, url.Values{
		"consent_id": {consent.ConsentID},
	})
}

// ConsentData loads the pending consent request and returns what the consent
// UI needs to render it. Only the user the request was parked for may read it.
func (s *Server) ConsentData(ctx context.Context, userID, consentID string) (*ConsentData, error) {
	consent, err := s.flows.GetConsentRequest(ctx, consentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewNotFoundError("consent request not found or expired")
		}
		s.Logger.Error("Failed to load consent request", "error", err)
		return nil, NewInternalError()
	}

	if consent.UserID != userID {
		return nil, NewForbiddenError("consent request belongs to a different user")
	}

	client, err := s.clients.GetClient(ctx, consent.ClientID)
	if err != nil {
		s.Logger.Error("Failed to load client for consent", "client_id", consent.ClientID, "error", err)
		return nil, NewInternalError()
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.Logger.Error("Failed to load user for consent", "error", err)
		return nil, NewInternalError()
	}

	return &ConsentData{
		ClientName: client.ClientName,
		Scopes:     strings.Fields(consent.Scope),
		UserEmail:  user.Email,
	}, nil
}

// HandleConsentDecision records the resource owner's approval or denial of a
// pending consent request and returns the redirect URL for the user agent.
// The consent record is deleted either way; a denial redirects with
// error=access_denied, an approval persists a durable consent grant, mints an
// authorization code, and redirects with code and state.
func (s *Server) HandleConsentDecision(ctx context.Context, userID string, decision *ConsentDecision) (string, error) {
	consent, err := s.flows.GetConsentRequest(ctx, decision.ConsentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", NewNotFoundError("consent request not found or expired")
		}
		s.Logger.Error("Failed to load consent request", "error", err)
		return "", NewInternalError()
	}

	if consent.UserID != userID {
		if s.Auditor != nil {
			s.Auditor.LogSuspiciousActivity(userID, consent.ClientID, decision.ClientIP, "consent decision for another user's request")
		}
		return "", NewForbiddenError("consent request belongs to a different user")
	}

	// Single decision per request.
	if err := s.flows.DeleteConsentRequest(ctx, decision.ConsentID); err != nil {
		s.Logger.Warn("Failed to delete consent request", "error", err)
	}

	if !decision.Approved {
		if s.Auditor != nil {
			s.Auditor.LogConsentDenied(userID, consent.ClientID, decision.ClientIP)
		}
		return buildRedirect(consent.RedirectURI, url.Values{
			"error": {ErrorCodeAccessDenied},
			"state": {consent.State},
		})
	}

	scope := consent.Scope
	if len(decision.ApprovedScopes) > 0 {
		scope = normalizeScope(strings.Join(decision.ApprovedScopes, " "))
	}

	grantTTL := time.Duration(s.Config.ConsentGrantTTL) * time.Second
	if err := s.flows.SaveConsentGrant(ctx, userID, consent.ClientID, scope, grantTTL); err != nil {
		s.Logger.Error("Failed to save consent grant", "client_id", consent.ClientID, "error", err)
		return s.errorRedirect(consent.RedirectURI, ErrorCodeServerError, consent.State)
	}

	if s.Auditor != nil {
		s.Auditor.LogConsentGranted(userID, consent.ClientID, decision.ClientIP, scope)
	}

	code, err := s.mintAuthorizationCode(ctx, userID, consent.ClientID, consent.RedirectURI, scope)
	if err != nil {
		s.Logger.Error("Failed to issue authorization code", "client_id", consent.ClientID, "error", err)
		return s.errorRedirect(consent.RedirectURI, ErrorCodeServerError, consent.State)
	}

	return buildRedirect(consent.RedirectURI, url.Values{
		"code":  {code},
		"state": {consent.State},
	})
}

// RevokeConsent deletes the caller's durable consent grant for a client.
// Codes and tokens already issued remain valid until natural expiry; only
// silent re-authorization stops.
func (s *Server) RevokeConsent(ctx context.Context, userID, clientID, clientIP string) error {
	if err := s.flows.DeleteConsentGrant(ctx, userID, clientID); err != nil {
		s.Logger.Error("Failed to delete consent grant", "client_id", clientID, "error", err)
		return NewInternalError()
	}

	if s.Auditor != nil {
		s.Auditor.LogConsentRevoked(userID, clientID, clientIP)
	}

	s.Logger.Info("Consent revoked", "client_id", clientID)
	return nil
}

// mintAuthorizationCode generates a fresh single-use code bound to the user,
// client, normalized redirect URI, and approved scope.
func (s *Server) mintAuthorizationCode(ctx context.Context, userID, clientID, redirectURI, scope string) (string, error) {
	code := generateRandomToken()

	record := &storage.AuthorizationCode{
		Code:        code,
		ClientID:    clientID,
		UserID:      userID,
		RedirectURI: redirectURI,
		Scope:       scope,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
	}

	if err := s.flows.SaveAuthorizationCode(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogEvent(security.Event{
			Type:     security.EventAuthorizationCodeIssued,
			UserID:   userID,
			ClientID: clientID,
			Details: map[string]any{
				"scope": scope,
			},
		})
	}

	return code, nil
}

// loginRedirect builds the login URL carrying the original authorize query
// for post-login replay.
func (s *Server) loginRedirect(originalQuery string) string {
	next := "/authorize"
	if originalQuery != "" {
		next += "?" + originalQuery
	}

	loginURL, err := buildRedirect(s.Config.LoginURL, url.Values{"next": {next}})
	if err != nil {
		return s.Config.LoginURL
	}
	return loginURL
}

// errorRedirect delivers a protocol error to an already-trusted redirect
// target.
func (s *Server) errorRedirect(target, errorCode, state string) (string, error) {
	params := url.Values{"error": {errorCode}}
	if state != "" {
		params.Set("state", state)
	}
	return buildRedirect(target, params)
}

// buildRedirect appends params to base, preserving any query the base
// already carries.
func buildRedirect(base string, params url.Values) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid redirect target: %w", err)
	}

	query := parsed.Query()
	for key, values := range params {
		for _, v := range values {
			query.Set(key, v)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
