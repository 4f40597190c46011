package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/guilherme-hl1ma/project-library-oauth/instrumentation"
	"github.com/guilherme-hl1ma/project-library-oauth/security"
	"github.com/guilherme-hl1ma/project-library-oauth/server"
)

const (
	tokenTypeBearer = "Bearer"

	// sessionCookieName carries the opaque login session identifier
	sessionCookieName = "token"

	accessTokenCookieName  = "access_token"
	refreshTokenCookieName = "refresh_token"
)

// Handler exposes the authorization server over HTTP
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates a new HTTP handler
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
	}

	// Initialize tracer if instrumentation is enabled
	if server.Instrumentation != nil {
		h.tracer = server.Instrumentation.Tracer("http")
	}

	return h
}

// RegisterRoutes registers all endpoints on the mux. Every route runs behind
// the request ID middleware so responses carry X-Request-ID and log lines can
// be correlated across a request.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, security.RequestIDMiddleware(fn))
	}
	handle("/authorize", h.ServeAuthorization)
	handle("/authorize/consent-data", h.ServeConsentData)
	handle("/authorize/consent", h.ServeConsentDecision)
	handle("/token", h.ServeToken)
	handle("/token/revoke", h.ServeTokenRevocation)
	handle("/token/revoke-consent", h.ServeConsentRevocation)
	handle("/dcr/register", h.ServeClientRegistration)
	handle("/dcr/", h.ServeSecretRotation)
	handle("/auth/signup", h.ServeSignup)
	handle("/auth/login", h.ServeLogin)
	handle("/auth/logout", h.ServeLogout)
}

// clientIP extracts the client IP honoring the proxy trust configuration
func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.TrustProxy, h.server.Config.TrustedProxyCount)
}

// sessionUserID resolves the login session cookie to a user ID.
// Returns "" when no valid session accompanies the request.
func (h *Handler) sessionUserID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}

	user, err := h.server.UserFromSession(r.Context(), cookie.Value)
	if err != nil {
		return ""
	}
	return user.UserID
}

// checkIPRateLimit returns true when the request was rejected
func (h *Handler) checkIPRateLimit(w http.ResponseWriter, clientIP, endpoint string) bool {
	if h.server.RateLimiter == nil {
		return false
	}

	if !h.server.RateLimiter.Allow(clientIP) {
		h.logger.Warn("Rate limit exceeded", "ip", clientIP, "endpoint", endpoint)
		if h.server.Auditor != nil {
			h.server.Auditor.LogRateLimitExceeded(clientIP, "")
		}
		h.recordRateLimitExceeded("ip")
		h.writeError(w, ErrorCodeRateLimitExceeded, "Too many requests", http.StatusTooManyRequests)
		return true
	}
	return false
}

// checkUserRateLimit returns true when the request was rejected
func (h *Handler) checkUserRateLimit(w http.ResponseWriter, userID, clientIP string) bool {
	if h.server.UserRateLimiter == nil || userID == "" {
		return false
	}

	if !h.server.UserRateLimiter.Allow(userID) {
		h.logger.Warn("User rate limit exceeded", "ip", clientIP)
		if h.server.Auditor != nil {
			h.server.Auditor.LogRateLimitExceeded(clientIP, userID)
		}
		h.recordRateLimitExceeded("user")
		h.writeError(w, ErrorCodeRateLimitExceeded, "Too many requests", http.StatusTooManyRequests)
		return true
	}
	return false
}

// ServeAuthorization handles GET /authorize, the entry point of the
// authorization code flow
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "authorize") {
		return
	}

	query := r.URL.Query()
	req := &server.AuthorizeRequest{
		UserID:        h.sessionUserID(r),
		ClientID:      query.Get("client_id"),
		RedirectURI:   query.Get("redirect_uri"),
		ResponseType:  query.Get("response_type"),
		Scope:         query.Get("scope"),
		State:         query.Get("state"),
		OriginalQuery: r.URL.RawQuery,
		ClientIP:      clientIP,
	}

	redirect, err := h.server.HandleAuthorize(r.Context(), req)
	if err != nil {
		h.logger.Warn("Authorization request rejected",
			"request_id", security.GetRequestID(r.Context()),
			"client_id", req.ClientID, "ip", clientIP, "error", err)
		h.recordHTTPMetrics("authorize", http.MethodGet, statusForError(err), startTime)
		h.writeServerError(w, err)
		return
	}

	h.recordAuthorizationStarted(req.ClientID)
	h.recordHTTPMetrics("authorize", http.MethodGet, http.StatusFound, startTime)

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// ServeConsentData handles GET /authorize/consent-data, serving what the
// consent UI needs to render a pending request
func (h *Handler) ServeConsentData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := h.sessionUserID(r)
	if userID == "" {
		h.writeDetail(w, "authentication required", http.StatusUnauthorized)
		return
	}

	data, err := h.server.ConsentData(r.Context(), userID, r.URL.Query().Get("consent_id"))
	if err != nil {
		h.writeServerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ConsentDataResponse{
		ClientName: data.ClientName,
		Scopes:     data.Scopes,
		UserEmail:  data.UserEmail,
	})
}

// ServeConsentDecision handles POST /authorize/consent, recording the
// resource owner's approval or denial
func (h *Handler) ServeConsentDecision(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)

	userID := h.sessionUserID(r)
	if userID == "" {
		h.writeDetail(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if h.checkUserRateLimit(w, userID, clientIP) {
		return
	}

	var req ConsentDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ConsentID == "" {
		h.writeDetail(w, "consent_id is required", http.StatusBadRequest)
		return
	}

	redirect, err := h.server.HandleConsentDecision(r.Context(), userID, &server.ConsentDecision{
		ConsentID:      req.ConsentID,
		Approved:       req.Approved,
		ApprovedScopes: req.ApprovedScopes,
		ClientIP:       clientIP,
	})
	if err != nil {
		h.recordHTTPMetrics("consent", http.MethodPost, statusForError(err), startTime)
		h.writeServerError(w, err)
		return
	}

	h.recordConsentDecision(req.Approved)
	h.recordHTTPMetrics("consent", http.MethodPost, http.StatusOK, startTime)

	h.writeJSON(w, http.StatusOK, RedirectResponse{RedirectURL: redirect})
}

// ServeToken handles POST /token, dispatching on grant_type
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "token") {
		return
	}

	// Parse form data
	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Failed to parse request", http.StatusBadRequest)
		return
	}

	grantType := r.FormValue("grant_type")

	switch grantType {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, clientIP)
	case "refresh_token":
		h.handleRefreshTokenGrant(w, r, clientIP)
	default:
		h.writeError(w, ErrorCodeUnsupportedGrantType, fmt.Sprintf("Grant type %s not supported", grantType), http.StatusBadRequest)
	}
}

func (h *Handler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, clientIP string) {
	startTime := time.Now()
	ctx := r.Context()

	// Create span if tracing is enabled
	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.token_exchange")
		defer span.End()
	}

	code := r.FormValue("code")
	redirectURI := r.FormValue("redirect_uri")

	if code == "" {
		h.recordHTTPMetrics("token", http.MethodPost, http.StatusBadRequest, startTime)
		instrumentation.SetSpanError(span, "code missing")
		h.writeError(w, ErrorCodeInvalidRequest, "Required parameter 'code' missing", http.StatusBadRequest)
		return
	}
	if redirectURI == "" {
		h.recordHTTPMetrics("token", http.MethodPost, http.StatusBadRequest, startTime)
		instrumentation.SetSpanError(span, "redirect_uri missing")
		h.writeError(w, ErrorCodeInvalidRequest, "Required parameter 'redirect_uri' missing", http.StatusBadRequest)
		return
	}

	client, err := h.server.AuthenticateClient(ctx, h.parseClientCredentials(r), clientIP)
	if err != nil {
		h.recordHTTPMetrics("token", http.MethodPost, http.StatusUnauthorized, startTime)
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanError(span, "client authentication failed")
		h.writeServerError(w, err)
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, client.ClientID),
		attribute.String(instrumentation.AttrGrantType, "authorization_code"),
	)

	resp, err := h.server.ExchangeAuthorizationCode(ctx, client, code, redirectURI, clientIP)
	if err != nil {
		h.logger.Warn("Code exchange failed",
			"request_id", security.GetRequestID(ctx),
			"client_id", client.ClientID, "ip", clientIP, "error", err)
		h.recordHTTPMetrics("token", http.MethodPost, statusForError(err), startTime)
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanError(span, "code exchange failed")
		h.writeServerError(w, err)
		return
	}

	h.recordCodeExchanged(client.ClientID)
	h.recordHTTPMetrics("token", http.MethodPost, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)

	h.writeTokenResponse(w, resp)
}

func (h *Handler) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request, clientIP string) {
	startTime := time.Now()
	ctx := r.Context()

	// Create span if tracing is enabled
	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.token_refresh")
		defer span.End()
	}

	// The refresh token may arrive as a form parameter or, for the cookie
	// based login flow, as the refresh_token cookie.
	refreshToken := r.FormValue("refresh_token")
	if refreshToken == "" {
		if cookie, err := r.Cookie(refreshTokenCookieName); err == nil {
			refreshToken = cookie.Value
		}
	}

	if refreshToken == "" {
		h.recordHTTPMetrics("token", http.MethodPost, http.StatusBadRequest, startTime)
		instrumentation.SetSpanError(span, "refresh_token missing")
		h.writeError(w, ErrorCodeInvalidRequest, "refresh_token is required", http.StatusBadRequest)
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrGrantType, "refresh_token"),
	)

	resp, err := h.server.RefreshAccessToken(ctx, refreshToken, r.FormValue("scope"), h.parseClientCredentials(r), clientIP)
	if err != nil {
		h.logger.Warn("Token refresh failed",
			"request_id", security.GetRequestID(ctx),
			"ip", clientIP, "error", err)
		h.recordHTTPMetrics("token", http.MethodPost, statusForError(err), startTime)
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanError(span, "token refresh failed")
		h.writeServerError(w, err)
		return
	}

	h.recordTokenRefreshed("")
	h.recordHTTPMetrics("token", http.MethodPost, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)

	h.writeTokenResponse(w, resp)
}

// ServeTokenRevocation handles POST /token/revoke. Tokens are stateless, so
// revocation clears the token cookies; bearer tokens presented elsewhere
// stay valid until natural expiry.
func (h *Handler) ServeTokenRevocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)

	h.clearCookie(w, accessTokenCookieName)
	h.clearCookie(w, refreshTokenCookieName)

	if h.server.Auditor != nil {
		h.server.Auditor.LogTokenRevoked(h.sessionUserID(r), "", clientIP, "cookie")
	}
	h.recordTokenRevoked()

	h.writeJSON(w, http.StatusOK, DetailResponse{Detail: "tokens revoked"})
}

// ServeConsentRevocation handles POST /token/revoke-consent, removing the
// caller's durable consent grant for a client
func (h *Handler) ServeConsentRevocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := h.sessionUserID(r)
	if userID == "" {
		h.writeDetail(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req ConsentRevocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		h.writeDetail(w, "client_id is required", http.StatusBadRequest)
		return
	}

	if err := h.server.RevokeConsent(r.Context(), userID, req.ClientID, h.clientIP(r)); err != nil {
		h.writeServerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, DetailResponse{Detail: "consent revoked"})
}

// ServeClientRegistration handles POST /dcr/register, the dynamic client
// registration endpoint
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.client_registration")
		defer span.End()
	}

	clientIP := h.clientIP(r)

	if !h.authorizeRegistration(r) {
		h.logger.Warn("Client registration rejected: missing or invalid registration token",
			"request_id", security.GetRequestID(r.Context()),
			"ip", clientIP)
		h.recordHTTPMetrics("register", http.MethodPost, http.StatusUnauthorized, startTime)
		instrumentation.SetSpanError(span, "registration not authorized")
		h.writeDetail(w, "registration requires a valid registration access token", http.StatusUnauthorized)
		return
	}

	if h.checkRegistrationRateLimit(w, clientIP) {
		h.recordHTTPMetrics("register", http.MethodPost, http.StatusTooManyRequests, startTime)
		instrumentation.SetSpanError(span, "registration rate limited")
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordHTTPMetrics("register", http.MethodPost, http.StatusBadRequest, startTime)
		h.writeDetail(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// An authenticated session makes the caller the client's owner, which
	// is what later authorizes secret rotation.
	ownerID := h.sessionUserID(r)

	client, secret, err := h.server.RegisterClient(ctx, &server.ClientMetadata{
		ClientName:   req.ClientName,
		RedirectURIs: req.RedirectURIs,
		GrantTypes:   req.GrantTypes,
		Scopes:       req.Scopes,
		SoftwareID:   req.SoftwareID,
	}, ownerID, clientIP)
	if err != nil {
		h.recordHTTPMetrics("register", http.MethodPost, statusForError(err), startTime)
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanError(span, "registration failed")
		h.writeServerError(w, err)
		return
	}

	h.recordClientRegistered()
	h.recordHTTPMetrics("register", http.MethodPost, http.StatusCreated, startTime)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrClientID, client.ClientID))
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusCreated, ClientRegistrationResponse{
		ClientID:         client.ClientID,
		ClientSecret:     secret,
		ClientIDIssuedAt: client.CreatedAt.Unix(),
		RedirectURIs:     client.RedirectURIs,
		GrantTypes:       client.GrantTypes,
		ResponseTypes:    client.ResponseTypes,
		ClientName:       client.ClientName,
		Scopes:           client.Scopes,
		SoftwareID:       client.SoftwareID,
	})
}

// authorizeRegistration checks the registration access token when one is
// configured. An unset token leaves registration open.
func (h *Handler) authorizeRegistration(r *http.Request) bool {
	configured := h.server.registrationAccessToken
	if configured == "" {
		return true
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(configured)) == 1
}

// checkRegistrationRateLimit returns true when the request was rejected
func (h *Handler) checkRegistrationRateLimit(w http.ResponseWriter, clientIP string) bool {
	if h.server.RegistrationRateLimiter == nil {
		return false
	}

	if !h.server.RegistrationRateLimiter.Allow(clientIP) {
		h.logger.Warn("Client registration rate limit exceeded",
			"ip", clientIP,
			"max_per_window", h.server.Config.MaxRegistrationsPerHour,
			"window", time.Duration(h.server.Config.RegistrationRateLimitWindow)*time.Second)
		if h.server.Auditor != nil {
			h.server.Auditor.LogRateLimitExceeded(clientIP, "")
		}
		h.recordRateLimitExceeded("registration")
		h.writeDetail(w, "client registration rate limit exceeded, try again later", http.StatusTooManyRequests)
		return true
	}
	return false
}

// ServeSecretRotation handles POST /dcr/{client_id}/rotate-secret
func (h *Handler) ServeSecretRotation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID, ok := parseRotationPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	userID := h.sessionUserID(r)
	if userID == "" {
		h.writeDetail(w, "authentication required", http.StatusUnauthorized)
		return
	}

	secret, err := h.server.RotateClientSecret(r.Context(), clientID, userID, h.clientIP(r))
	if err != nil {
		h.writeServerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SecretRotationResponse{
		ClientID:     clientID,
		ClientSecret: secret,
	})
}

// parseRotationPath extracts the client_id from /dcr/{client_id}/rotate-secret
func parseRotationPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/dcr/")
	if !ok {
		return "", false
	}
	clientID, ok := strings.CutSuffix(rest, "/rotate-secret")
	if !ok || clientID == "" || strings.Contains(clientID, "/") {
		return "", false
	}
	return clientID, true
}

// ServeSignup handles POST /auth/signup
func (h *Handler) ServeSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "signup") {
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.server.Signup(r.Context(), req.Email, req.Password, clientIP)
	if err != nil {
		h.writeServerError(w, err)
		return
	}

	h.recordUserSignup()

	h.writeJSON(w, http.StatusCreated, UserResponse{
		UserID: user.UserID,
		Email:  user.Email,
	})
}

// ServeLogin handles POST /auth/login, opening a login session on success
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "login") {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sessionID, user, err := h.server.Login(r.Context(), req.Email, req.Password, clientIP)
	if err != nil {
		h.recordLoginFailure()
		h.writeServerError(w, err)
		return
	}

	h.setCookie(w, sessionCookieName, sessionID, int(h.server.Config.SessionTTL))
	h.recordUserLogin()

	h.writeJSON(w, http.StatusOK, UserResponse{
		UserID: user.UserID,
		Email:  user.Email,
	})
}

// ServeLogout handles POST /auth/logout. Always succeeds.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		_ = h.server.Logout(r.Context(), cookie.Value)
	}
	h.clearCookie(w, sessionCookieName)

	h.writeJSON(w, http.StatusOK, DetailResponse{Detail: "logged out"})
}

// parseClientCredentials gathers client identification from the Basic header
// and the client_id form parameter. A malformed Basic header yields empty
// header credentials rather than an error; the server layer decides whether
// what remains is enough.
func (h *Handler) parseClientCredentials(r *http.Request) *server.ClientCredentials {
	creds := &server.ClientCredentials{
		ParamID: r.FormValue("client_id"),
	}

	if id, secret, ok := r.BasicAuth(); ok {
		creds.HeaderID = id
		creds.HeaderSecret = secret
	}

	return creds
}

// setCookie sets an httponly SameSite=Lax cookie, Secure when the issuer
// is served over HTTPS
func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(h.server.Config.Issuer, "https://"),
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(h.server.Config.Issuer, "https://"),
	})
}

// writeTokenResponse writes a successful token response. The tokens are
// also set as cookies for the browser-based flow.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, resp *server.TokenResponse) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	h.setCookie(w, accessTokenCookieName, resp.AccessToken, int(h.server.Config.AccessTokenTTL))
	h.setCookie(w, refreshTokenCookieName, resp.RefreshToken, int(h.server.Config.RefreshTokenTTL))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		RefreshToken: resp.RefreshToken,
		Scope:        resp.Scope,
	})
}

// writeServerError renders any error from the server layer: protocol errors
// as {error, error_description}, API errors as {detail}, anything else as
// an opaque 500.
func (h *Handler) writeServerError(w http.ResponseWriter, err error) {
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		h.writeDetail(w, apiErr.Detail, apiErr.Status)
		return
	}

	h.logger.Error("Unhandled error", "error", err)
	h.writeDetail(w, "internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	// RFC 6749 §5.2: invalid_client responses for Basic-authenticated
	// requests carry a WWW-Authenticate challenge
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

func (h *Handler) writeDetail(w http.ResponseWriter, detail string, status int) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(DetailResponse{Detail: detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusForError maps a server-layer error to the HTTP status it will be
// rendered with, for metrics
func statusForError(err error) int {
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		return oauthErr.Status
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// ==================== Metrics Recording ====================

func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	if h.server.Instrumentation == nil {
		return
	}

	duration := time.Since(startTime).Seconds() * 1000 // milliseconds
	h.server.Instrumentation.Metrics().RecordHTTPRequest(context.Background(), method, endpoint, status, duration)
}

func (h *Handler) recordAuthorizationStarted(clientID string) {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordAuthorizationStarted(context.Background(), clientID)
}

func (h *Handler) recordConsentDecision(approved bool) {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordConsentDecision(context.Background(), "", approved)
}

func (h *Handler) recordCodeExchanged(clientID string) {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordCodeExchange(context.Background(), clientID)
}

func (h *Handler) recordTokenRefreshed(clientID string) {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordTokenRefresh(context.Background(), clientID)
}

func (h *Handler) recordTokenRevoked() {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordTokenRevocation(context.Background(), "")
}

func (h *Handler) recordClientRegistered() {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordClientRegistration(context.Background())
}

func (h *Handler) recordUserSignup() {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordUserSignup(context.Background())
}

func (h *Handler) recordUserLogin() {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordUserLogin(context.Background())
}

func (h *Handler) recordLoginFailure() {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordLoginFailure(context.Background())
}

func (h *Handler) recordRateLimitExceeded(limiterType string) {
	if h.server.Instrumentation == nil {
		return
	}
	h.server.Instrumentation.Metrics().RecordRateLimitExceeded(context.Background(), limiterType)
}
