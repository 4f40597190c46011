package server

import (
	"log/slog"
)

// Config holds OAuth server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL)
	Issuer string

	// LoginURL is where unauthenticated authorization requests are sent.
	// The original query string is preserved in a "next" parameter so the
	// flow can be replayed after login.
	// Default: "/login"
	LoginURL string

	// ConsentURL is the consent UI the user is sent to when a pending
	// consent decision is required. The consent_id is appended as a query
	// parameter.
	// Default: "/consent"
	ConsentURL string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// RefreshTokenTTL is how long refresh tokens are valid
	RefreshTokenTTL int64 // seconds, default: 2592000 (30 days)

	// SessionTTL is how long the server's own login sessions are valid
	SessionTTL int64 // seconds, default: 86400 (24 hours)

	// ConsentTTL is how long a pending consent request awaits a decision
	ConsentTTL int64 // seconds, default: 600 (10 minutes)

	// ConsentGrantTTL is how long a user's durable approval for a client
	// lasts, enabling silent re-authorization
	ConsentGrantTTL int64 // seconds, default: 2592000 (30 days)

	// ClockSkewGracePeriod is the grace period for token expiration checks (in seconds)
	// This prevents false expiration errors due to time synchronization issues
	// Default: 5 seconds
	ClockSkewGracePeriod int64 // seconds, default: 5

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers
	// WARNING: Only enable if behind a trusted reverse proxy (nginx, HAProxy, etc.)
	// When false, uses direct connection IP (secure by default)
	// Default: false
	TrustProxy bool // default: false

	// TrustedProxyCount is the number of trusted proxies in front of this server
	// Used with TrustProxy to correctly extract client IP from X-Forwarded-For
	// Example: If you have 2 proxies (CloudFlare + nginx), set this to 2
	// The client IP will be extracted as: ips[len(ips) - TrustedProxyCount - 1]
	// Default: 1
	TrustedProxyCount int // default: 1

	// MaxClientsPerIP limits client registrations per IP address
	// Prevents DoS via mass client registration
	// Default: 10
	MaxClientsPerIP int // default: 10

	// MaxRegistrationsPerHour limits registration attempts per IP per window
	// Default: 10
	MaxRegistrationsPerHour int

	// RegistrationRateLimitWindow is the registration rate-limit window
	RegistrationRateLimitWindow int64 // seconds, default: 3600 (1 hour)

	// SupportedScopes lists the scopes that are allowed for clients
	// If empty, all scopes are allowed
	SupportedScopes []string

	// BcryptCost is the cost factor used for client secrets and passwords.
	// Zero means bcrypt.DefaultCost.
	BcryptCost int

	// MinPasswordLength is the minimum accepted user password length
	// Default: 8
	MinPasswordLength int

	// AllowInsecureHTTP permits a non-HTTPS issuer outside localhost.
	// WARNING: Only enable for testing. OAuth over HTTP exposes all tokens
	// and credentials to network interception.
	// Default: false
	AllowInsecureHTTP bool // default: false
}

// applySecureDefaults applies secure-by-default configuration values
// This follows the principle: secure by default, opt-in for less secure options
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	// Apply time-based defaults
	applyTimeDefaults(config)

	// Apply security defaults and log warnings for insecure settings
	applySecurityDefaults(config, logger)

	return config
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 2592000 // 30 days
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = 86400 // 24 hours
	}
	if config.ConsentTTL == 0 {
		config.ConsentTTL = 600 // 10 minutes
	}
	if config.ConsentGrantTTL == 0 {
		config.ConsentGrantTTL = 2592000 // 30 days
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = 5
	}
	if config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
	if config.MaxClientsPerIP == 0 {
		config.MaxClientsPerIP = 10
	}
	if config.MaxRegistrationsPerHour == 0 {
		config.MaxRegistrationsPerHour = 10
	}
	if config.RegistrationRateLimitWindow == 0 {
		config.RegistrationRateLimitWindow = 3600 // 1 hour
	}
	if config.MinPasswordLength == 0 {
		config.MinPasswordLength = 8
	}
	if config.LoginURL == "" {
		config.LoginURL = "/login"
	}
	if config.ConsentURL == "" {
		config.ConsentURL = "/consent"
	}
}

// applySecurityDefaults logs warnings for explicitly configured insecure
// settings. A fresh config (all security bools false) is already secure and
// produces no noise.
func applySecurityDefaults(config *Config, logger *slog.Logger) {
	isDefaultConfig := !config.TrustProxy && !config.AllowInsecureHTTP

	if isDefaultConfig {
		return
	}

	logSecurityWarnings(config, logger)
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.TrustProxy {
		logger.Warn("⚠️  SECURITY NOTICE: Trusting proxy headers",
			"risk", "IP spoofing if proxy is not properly configured",
			"recommendation", "Only enable behind trusted reverse proxies",
			"config", "TrustedProxyCount should match your proxy chain length")
	}
	if config.AllowInsecureHTTP {
		logger.Warn("⚠️  SECURITY WARNING: Insecure HTTP is ALLOWED",
			"risk", "Tokens and credentials exposed to network interception",
			"recommendation", "Set AllowInsecureHTTP=false and serve over HTTPS")
	}
}
