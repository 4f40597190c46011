package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Token lifecycle events

	// EventTokenIssued is logged when a new access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when an access token is refreshed using a refresh token
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is revoked by the user or client
	EventTokenRevoked = "token_revoked"

	// Authorization flow events

	// EventAuthorizationFlowStarted is logged when an authorization flow is initiated
	EventAuthorizationFlowStarted = "authorization_flow_started"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationCodeReuseDetected is logged when an authorization code is reused (attack)
	EventAuthorizationCodeReuseDetected = "authorization_code_reuse_detected"

	// Consent events

	// EventConsentGranted is logged when a user approves a consent request
	EventConsentGranted = "consent_granted"

	// EventConsentDenied is logged when a user denies a consent request
	EventConsentDenied = "consent_denied"

	// EventConsentRevoked is logged when a user revokes a previously granted consent
	EventConsentRevoked = "consent_revoked"

	// User account events

	// EventUserSignedUp is logged when a new user account is created
	EventUserSignedUp = "user_signed_up"

	// EventUserLoggedIn is logged when a user authenticates successfully
	EventUserLoggedIn = "user_logged_in"

	// EventUserLoggedOut is logged when a user session is terminated
	EventUserLoggedOut = "user_logged_out"

	// EventLoginFailure is logged when user authentication fails
	EventLoginFailure = "login_failure"

	// Client registration events

	// EventClientRegistered is logged when a new OAuth client is registered
	EventClientRegistered = "client_registered"

	// EventClientRegistrationRejected is logged when client registration is rejected for security reasons
	EventClientRegistrationRejected = "client_registration_rejected"

	// EventClientRegistrationRateLimitExceeded is logged when client registration rate limit is exceeded
	EventClientRegistrationRateLimitExceeded = "client_registration_rate_limit_exceeded"

	// EventClientSecretRotated is logged when a client secret is rotated
	EventClientSecretRotated = "client_secret_rotated" //nolint:gosec // G101: False positive - this is an event type name, not a credential

	// Security violation events

	// EventAuthFailure is logged when client authentication fails (wrong credentials, etc.)
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventSuspiciousActivity is logged for general suspicious behavior
	EventSuspiciousActivity = "suspicious_activity"

	// EventInvalidRedirect is logged when an invalid redirect URI is used
	EventInvalidRedirect = "invalid_redirect"

	// EventScopeEscalationAttempt is logged when a client tries to escalate scopes
	EventScopeEscalationAttempt = "scope_escalation_attempt"

	// EventMissingClientSecret is logged when a confidential client omits its secret
	EventMissingClientSecret = "missing_client_secret" //nolint:gosec // G101: False positive - this is an event type name, not a credential
)
