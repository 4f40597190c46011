package oauth

// ErrorResponse is the RFC 6749 error body for protocol errors
type ErrorResponse struct {
	// Error is the OAuth error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// DetailResponse is the body for non-protocol errors and simple confirmations
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ==================== Dynamic Client Registration Types ====================

// ClientRegistrationRequest represents a dynamic client registration request
type ClientRegistrationRequest struct {
	// ClientName is the human-readable name of the client
	ClientName string `json:"client_name,omitempty"`

	// RedirectURIs is the array of redirection URIs for redirect-based flows
	RedirectURIs []string `json:"redirect_uris"`

	// GrantTypes is the array of OAuth 2.0 grant types the client will use
	GrantTypes []string `json:"grant_types,omitempty"`

	// Scopes is the array of scope values the client may request
	Scopes []string `json:"scopes,omitempty"`

	// SoftwareID is a stable identifier for the client software
	SoftwareID string `json:"software_id,omitempty"`
}

// ClientRegistrationResponse represents a dynamic client registration response.
// ClientSecret carries the plaintext secret and is returned exactly once.
type ClientRegistrationResponse struct {
	// ClientID is the unique client identifier
	ClientID string `json:"client_id"`

	// ClientSecret is the plaintext client secret (shown only at registration)
	ClientSecret string `json:"client_secret"`

	// ClientIDIssuedAt is the time the client_id was issued (unix seconds)
	ClientIDIssuedAt int64 `json:"client_id_issued_at"`

	// RedirectURIs is the array of registered redirection URIs
	RedirectURIs []string `json:"redirect_uris"`

	// GrantTypes is the array of OAuth 2.0 grant types
	GrantTypes []string `json:"grant_types"`

	// ResponseTypes is the array of OAuth 2.0 response types
	ResponseTypes []string `json:"response_types"`

	// ClientName is the human-readable name of the client
	ClientName string `json:"client_name,omitempty"`

	// Scopes is the array of registered scope values
	Scopes []string `json:"scopes,omitempty"`

	// SoftwareID is the stable software identifier, echoed when supplied
	SoftwareID string `json:"software_id,omitempty"`
}

// SecretRotationResponse carries a freshly rotated client secret.
// The plaintext is returned exactly once; the previous secret is invalid.
type SecretRotationResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// ==================== Token Endpoint Types ====================

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	// AccessToken is the access token
	AccessToken string `json:"access_token"`

	// TokenType is the type of token (always "Bearer")
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is the refresh token
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the scope of the access token
	Scope string `json:"scope,omitempty"`
}

// ==================== Consent Types ====================

// ConsentDataResponse is what the consent UI needs to render a decision page
type ConsentDataResponse struct {
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
	UserEmail  string   `json:"user_email"`
}

// ConsentDecisionRequest carries the resource owner's consent decision
type ConsentDecisionRequest struct {
	ConsentID string `json:"consent_id"`

	Approved bool `json:"approved"`

	// ApprovedScopes optionally narrows the approval; empty means everything
	// that was requested
	ApprovedScopes []string `json:"approved_scopes,omitempty"`
}

// RedirectResponse carries the URL the user agent should navigate to next
type RedirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// ConsentRevocationRequest names the client whose durable consent grant
// should be removed
type ConsentRevocationRequest struct {
	ClientID string `json:"client_id"`
}

// ==================== Session Types ====================

// SignupRequest creates a new resource-owner account
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates a resource owner
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a resource owner
type UserResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
