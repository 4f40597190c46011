package oauth

import (
	"log/slog"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/instrumentation"
	"github.com/guilherme-hl1ma/project-library-oauth/server"
	"github.com/guilherme-hl1ma/project-library-oauth/storage/valkey"
)

// Config holds the full authorization server configuration.
// Structured using composition: the core grant machinery is configured
// through Server, everything around it (storage, rate limiting, signing)
// through the sibling fields.
type Config struct {
	// Server configures the core authorization server (issuer, TTLs,
	// supported scopes, proxy trust). Required; see server.Config.
	Server *server.Config

	// TokenSigningSecret is the HS256 signing key for access and refresh
	// tokens. Required, minimum 32 bytes.
	TokenSigningSecret []byte

	// RegistrationAccessToken, when set, is required as a Bearer token on
	// client registration requests. Empty leaves registration open, which
	// should be combined with registration rate limiting.
	RegistrationAccessToken string

	// Valkey selects the Valkey storage backend when non-nil. Nil uses the
	// in-memory store, suitable for single-node deployments and tests.
	Valkey *valkey.Config

	// CleanupInterval is how often the in-memory store sweeps expired
	// records. Ignored for Valkey, which expires keys natively.
	// Default: 1 minute
	CleanupInterval time.Duration

	// RateLimit configures per-IP and per-user request limiting.
	RateLimit RateLimitConfig

	// EnableAuditLogging enables structured security audit events
	// (auth failures, consent decisions, token issuance).
	EnableAuditLogging bool

	// Instrumentation is the optional OpenTelemetry instrumentation.
	// Nil disables metrics and tracing.
	Instrumentation *instrumentation.Instrumentation

	// Logger for structured logging (optional, uses slog.Default if not provided)
	Logger *slog.Logger
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// UserRate is requests per second allowed per authenticated user,
	// applied in addition to IP-based limiting. Zero disables.
	UserRate int

	// UserBurst is the maximum burst size per authenticated user.
	UserBurst int
}
