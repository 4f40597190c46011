package server

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
	"github.com/guilherme-hl1ma/project-library-oauth/storage/mock"
)

func seedClient(t *testing.T, srv *Server, client *storage.Client) {
	t.Helper()
	if err := srv.clients.SaveClient(context.Background(), client); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}
}

func seedUser(t *testing.T, srv *Server, user *storage.User) {
	t.Helper()
	if err := srv.users.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}
}

func parseRedirect(t *testing.T, redirect string) (*url.URL, url.Values) {
	t.Helper()
	parsed, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", redirect, err)
	}
	return parsed, parsed.Query()
}

func authorizeRequest(userID string) *AuthorizeRequest {
	return &AuthorizeRequest{
		UserID:        userID,
		ClientID:      "client-1",
		RedirectURI:   "https://app.example.com/cb",
		ResponseType:  "code",
		Scope:         "read write",
		State:         "xyz",
		OriginalQuery: "response_type=code&client_id=client-1&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcb&scope=read+write&state=xyz",
		ClientIP:      "203.0.113.5",
	}
}

func TestHandleAuthorize_LoginRedirect(t *testing.T) {
	srv := newTestServer(t)

	req := authorizeRequest("")
	redirect, err := srv.HandleAuthorize(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}

	parsed, query := parseRedirect(t, redirect)
	if parsed.Path != "/login" {
		t.Errorf("redirect path = %q, want /login", parsed.Path)
	}

	next := query.Get("next")
	if !strings.HasPrefix(next, "/authorize?") {
		t.Errorf("next = %q, want /authorize?...", next)
	}
	// The full original query must survive the round trip
	if !strings.Contains(next, "state=xyz") || !strings.Contains(next, "client-1") {
		t.Errorf("next = %q does not preserve the original query", next)
	}
}

func TestHandleAuthorize_UnknownClient(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.HandleAuthorize(context.Background(), authorizeRequest("user-1"))
	var oauthErr *Error
	if !errors.As(err, &oauthErr) {
		t.Fatalf("HandleAuthorize() error type = %T, want *Error", err)
	}
	if oauthErr.Code != ErrorCodeInvalidClient {
		t.Errorf("error code = %q, want %q", oauthErr.Code, ErrorCodeInvalidClient)
	}
}

func TestHandleAuthorize_ClientStoreFailure(t *testing.T) {
	clients := mock.NewMockClientStore()
	clients.GetClientFunc = func(clientID string) (*storage.Client, error) {
		return nil, errors.New("connection refused")
	}
	srv := newTestServerWithClients(t, clients)

	_, err := srv.HandleAuthorize(context.Background(), authorizeRequest("user-1"))
	var oauthErr *Error
	if !errors.As(err, &oauthErr) {
		t.Fatalf("HandleAuthorize() error type = %T, want *Error", err)
	}
	if oauthErr.Code != ErrorCodeServerError {
		t.Errorf("error code = %q, want %q", oauthErr.Code, ErrorCodeServerError)
	}
}

func TestHandleAuthorize_InactiveClient(t *testing.T) {
	srv := newTestServer(t)
	client := testClient("client-1", "https://app.example.com/cb")
	client.IsActive = false
	seedClient(t, srv, client)

	_, err := srv.HandleAuthorize(context.Background(), authorizeRequest("user-1"))
	var oauthErr *Error
	if !errors.As(err, &oauthErr) || oauthErr.Code != ErrorCodeInvalidClient {
		t.Errorf("HandleAuthorize() error = %v, want invalid_client", err)
	}
}

func TestHandleAuthorize_MissingRedirectURI(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))

	req := authorizeRequest("user-1")
	req.RedirectURI = ""

	_, err := srv.HandleAuthorize(context.Background(), req)
	var oauthErr *Error
	if !errors.As(err, &oauthErr) || oauthErr.Code != ErrorCodeInvalidRedirectURI {
		t.Errorf("HandleAuthorize() error = %v, want invalid_redirect_uri", err)
	}
}

func TestHandleAuthorize_UnregisteredRedirectURI(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb", "https://app.example.com/alt"))

	req := authorizeRequest("user-1")
	req.RedirectURI = "https://attacker.example.com/steal"

	redirect, err := srv.HandleAuthorize(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}

	parsed, query := parseRedirect(t, redirect)
	// Never the attacker-supplied URI; always the first registered one
	if parsed.Host != "app.example.com" || parsed.Path != "/cb" {
		t.Errorf("redirect = %q, want client's first registered URI", redirect)
	}
	if query.Get("error") != ErrorCodeInvalidRequest {
		t.Errorf("error = %q, want %q", query.Get("error"), ErrorCodeInvalidRequest)
	}
	if query.Get("state") != "auth_error" {
		t.Errorf("state = %q, want auth_error", query.Get("state"))
	}
}

func TestHandleAuthorize_UnsupportedResponseType(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))

	req := authorizeRequest("user-1")
	req.ResponseType = "token"

	redirect, err := srv.HandleAuthorize(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}

	_, query := parseRedirect(t, redirect)
	if query.Get("error") != ErrorCodeUnsupportedResponseType {
		t.Errorf("error = %q, want %q", query.Get("error"), ErrorCodeUnsupportedResponseType)
	}
	if query.Get("state") != "xyz" {
		t.Errorf("state = %q, want xyz", query.Get("state"))
	}
}

func TestHandleAuthorize_ConsentPending(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))

	redirect, err := srv.HandleAuthorize(context.Background(), authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}

	parsed, query := parseRedirect(t, redirect)
	if parsed.Path != "/consent" {
		t.Errorf("redirect path = %q, want /consent", parsed.Path)
	}

	consentID := query.Get("consent_id")
	if consentID == "" {
		t.Fatal("consent_id missing from consent redirect")
	}

	consent, err := srv.flows.GetConsentRequest(context.Background(), consentID)
	if err != nil {
		t.Fatalf("GetConsentRequest() error = %v", err)
	}
	if consent.UserID != "user-1" || consent.ClientID != "client-1" {
		t.Errorf("consent request = %+v, wrong binding", consent)
	}
	if consent.Scope != "read write" {
		t.Errorf("consent scope = %q, want %q", consent.Scope, "read write")
	}
	if consent.State != "xyz" {
		t.Errorf("consent state = %q, want xyz", consent.State)
	}
}

func TestHandleAuthorize_ConsentReuse(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	ctx := context.Background()

	// Durable grant already covers the requested scopes
	if err := srv.flows.SaveConsentGrant(ctx, "user-1", "client-1", "read write admin", time.Hour); err != nil {
		t.Fatalf("SaveConsentGrant() error = %v", err)
	}

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}

	parsed, query := parseRedirect(t, redirect)
	if parsed.Host != "app.example.com" {
		t.Errorf("redirect = %q, want client redirect URI", redirect)
	}
	code := query.Get("code")
	if code == "" {
		t.Fatal("code missing: consent reuse should skip the consent screen")
	}
	if query.Get("state") != "xyz" {
		t.Errorf("state = %q, want xyz", query.Get("state"))
	}

	// The minted code is redeemable and carries the requested scope
	record, err := srv.flows.ConsumeAuthorizationCode(ctx, "client-1", code)
	if err != nil {
		t.Fatalf("ConsumeAuthorizationCode() error = %v", err)
	}
	if record.Scope != "read write" {
		t.Errorf("code scope = %q, want %q", record.Scope, "read write")
	}
}

func TestHandleAuthorize_ConsentReuseInsufficientGrant(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	ctx := context.Background()

	// Grant covers less than what is now requested: consent must be asked again
	if err := srv.flows.SaveConsentGrant(ctx, "user-1", "client-1", "read", time.Hour); err != nil {
		t.Fatalf("SaveConsentGrant() error = %v", err)
	}

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}

	parsed, _ := parseRedirect(t, redirect)
	if parsed.Path != "/consent" {
		t.Errorf("redirect path = %q, want /consent for widened scope", parsed.Path)
	}
}

func TestConsentData(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	seedUser(t, srv, &storage.User{UserID: "user-1", Email: "owner@example.com"})
	ctx := context.Background()

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}
	_, query := parseRedirect(t, redirect)
	consentID := query.Get("consent_id")

	t.Run("owner reads", func(t *testing.T) {
		data, err := srv.ConsentData(ctx, "user-1", consentID)
		if err != nil {
			t.Fatalf("ConsentData() error = %v", err)
		}
		if data.ClientName != "Test App" {
			t.Errorf("ClientName = %q, want Test App", data.ClientName)
		}
		if data.UserEmail != "owner@example.com" {
			t.Errorf("UserEmail = %q, want owner@example.com", data.UserEmail)
		}
		if len(data.Scopes) != 2 || data.Scopes[0] != "read" || data.Scopes[1] != "write" {
			t.Errorf("Scopes = %v, want [read write]", data.Scopes)
		}
	})

	t.Run("other user forbidden", func(t *testing.T) {
		_, err := srv.ConsentData(ctx, "user-2", consentID)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 403 {
			t.Errorf("ConsentData() error = %v, want 403 APIError", err)
		}
	})

	t.Run("unknown consent id", func(t *testing.T) {
		_, err := srv.ConsentData(ctx, "user-1", "no-such-consent")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 404 {
			t.Errorf("ConsentData() error = %v, want 404 APIError", err)
		}
	})
}

func TestHandleConsentDecision_Denied(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	ctx := context.Background()

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}
	_, query := parseRedirect(t, redirect)
	consentID := query.Get("consent_id")

	result, err := srv.HandleConsentDecision(ctx, "user-1", &ConsentDecision{
		ConsentID: consentID,
		Approved:  false,
	})
	if err != nil {
		t.Fatalf("HandleConsentDecision() error = %v", err)
	}

	_, resultQuery := parseRedirect(t, result)
	if resultQuery.Get("error") != ErrorCodeAccessDenied {
		t.Errorf("error = %q, want %q", resultQuery.Get("error"), ErrorCodeAccessDenied)
	}
	if resultQuery.Get("state") != "xyz" {
		t.Errorf("state = %q, want xyz", resultQuery.Get("state"))
	}

	// No durable grant may survive a denial
	if _, err := srv.flows.GetConsentGrant(ctx, "user-1", "client-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetConsentGrant() error = %v, want ErrNotFound after denial", err)
	}

	// The consent record is gone either way
	if _, err := srv.flows.GetConsentRequest(ctx, consentID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetConsentRequest() error = %v, want ErrNotFound after decision", err)
	}
}

func TestHandleConsentDecision_Approved(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	ctx := context.Background()

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}
	_, query := parseRedirect(t, redirect)
	consentID := query.Get("consent_id")

	result, err := srv.HandleConsentDecision(ctx, "user-1", &ConsentDecision{
		ConsentID: consentID,
		Approved:  true,
	})
	if err != nil {
		t.Fatalf("HandleConsentDecision() error = %v", err)
	}

	_, resultQuery := parseRedirect(t, result)
	code := resultQuery.Get("code")
	if code == "" {
		t.Fatal("code missing from approval redirect")
	}
	if resultQuery.Get("state") != "xyz" {
		t.Errorf("state = %q, want xyz", resultQuery.Get("state"))
	}

	// Durable grant recorded with the full requested scope
	granted, err := srv.flows.GetConsentGrant(ctx, "user-1", "client-1")
	if err != nil {
		t.Fatalf("GetConsentGrant() error = %v", err)
	}
	if granted != "read write" {
		t.Errorf("granted scope = %q, want %q", granted, "read write")
	}

	// The code is bound to the user, client, and normalized redirect URI
	record, err := srv.flows.ConsumeAuthorizationCode(ctx, "client-1", code)
	if err != nil {
		t.Fatalf("ConsumeAuthorizationCode() error = %v", err)
	}
	if record.UserID != "user-1" {
		t.Errorf("code user = %q, want user-1", record.UserID)
	}
	if record.RedirectURI != "https://app.example.com/cb" {
		t.Errorf("code redirect_uri = %q", record.RedirectURI)
	}
}

func TestHandleConsentDecision_NarrowedApproval(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	ctx := context.Background()

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}
	_, query := parseRedirect(t, redirect)

	result, err := srv.HandleConsentDecision(ctx, "user-1", &ConsentDecision{
		ConsentID:      query.Get("consent_id"),
		Approved:       true,
		ApprovedScopes: []string{"read"},
	})
	if err != nil {
		t.Fatalf("HandleConsentDecision() error = %v", err)
	}

	granted, err := srv.flows.GetConsentGrant(ctx, "user-1", "client-1")
	if err != nil {
		t.Fatalf("GetConsentGrant() error = %v", err)
	}
	if granted != "read" {
		t.Errorf("granted scope = %q, want read", granted)
	}

	_, resultQuery := parseRedirect(t, result)
	record, err := srv.flows.ConsumeAuthorizationCode(ctx, "client-1", resultQuery.Get("code"))
	if err != nil {
		t.Fatalf("ConsumeAuthorizationCode() error = %v", err)
	}
	if record.Scope != "read" {
		t.Errorf("code scope = %q, want read", record.Scope)
	}
}

func TestHandleConsentDecision_WrongUser(t *testing.T) {
	srv := newTestServer(t)
	seedClient(t, srv, testClient("client-1", "https://app.example.com/cb"))
	ctx := context.Background()

	redirect, err := srv.HandleAuthorize(ctx, authorizeRequest("user-1"))
	if err != nil {
		t.Fatalf("HandleAuthorize() error = %v", err)
	}
	_, query := parseRedirect(t, redirect)

	_, err = srv.HandleConsentDecision(ctx, "user-2", &ConsentDecision{
		ConsentID: query.Get("consent_id"),
		Approved:  true,
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 403 {
		t.Errorf("HandleConsentDecision() error = %v, want 403 APIError", err)
	}
}

func TestRevokeConsent(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if err := srv.flows.SaveConsentGrant(ctx, "user-1", "client-1", "read", time.Hour); err != nil {
		t.Fatalf("SaveConsentGrant() error = %v", err)
	}

	if err := srv.RevokeConsent(ctx, "user-1", "client-1", "203.0.113.5"); err != nil {
		t.Fatalf("RevokeConsent() error = %v", err)
	}

	if _, err := srv.flows.GetConsentGrant(ctx, "user-1", "client-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetConsentGrant() error = %v, want ErrNotFound after revocation", err)
	}
}
