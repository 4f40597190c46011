package server

import (
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/guilherme-hl1ma/project-library-oauth/instrumentation"
	"github.com/guilherme-hl1ma/project-library-oauth/security"
	"github.com/guilherme-hl1ma/project-library-oauth/storage"
	"github.com/guilherme-hl1ma/project-library-oauth/token"
)

// Server implements the OAuth 2.0 authorization server logic. It coordinates
// the authorization code grant across the storage backends and the token
// codec.
type Server struct {
	clients                 storage.ClientStore
	users                   storage.UserStore
	flows                   storage.FlowStore
	sessions                storage.SessionStore
	codec                   *token.Codec
	hasher                  *security.Hasher
	Auditor                 *security.Auditor
	RateLimiter             *security.RateLimiter // IP-based rate limiter
	UserRateLimiter         *security.RateLimiter // User-based rate limiter (authenticated requests)
	RegistrationRateLimiter *security.ClientRegistrationRateLimiter
	Instrumentation         *instrumentation.Instrumentation
	Logger                  *slog.Logger
	Config                  *Config
}

// New creates a new OAuth server
func New(
	clients storage.ClientStore,
	users storage.UserStore,
	flows storage.FlowStore,
	sessions storage.SessionStore,
	codec *token.Codec,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if flows == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if config == nil {
		config = &Config{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	// Apply secure defaults
	config = applySecureDefaults(config, logger)

	srv := &Server{
		clients:  clients,
		users:    users,
		flows:    flows,
		sessions: sessions,
		codec:    codec,
		hasher:   security.NewHasher(config.BcryptCost),
		Config:   config,
		Logger:   logger,
	}

	// Validate HTTPS enforcement (OAuth security requirement)
	if err := srv.validateHTTPSEnforcement(); err != nil {
		return nil, err
	}

	return srv, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetRateLimiter sets the IP-based rate limiter
func (s *Server) SetRateLimiter(rl *security.RateLimiter) {
	s.RateLimiter = rl
}

// SetUserRateLimiter sets the user-based rate limiter for authenticated requests
func (s *Server) SetUserRateLimiter(rl *security.RateLimiter) {
	s.UserRateLimiter = rl
}

// SetRegistrationRateLimiter sets the windowed per-IP limiter for dynamic
// client registration
func (s *Server) SetRegistrationRateLimiter(rl *security.ClientRegistrationRateLimiter) {
	s.RegistrationRateLimiter = rl
}

// SetInstrumentation sets the OpenTelemetry instrumentation
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.Instrumentation = inst
}

// generateRandomToken generates a cryptographically secure random token.
// This is an alias for oauth2.GenerateVerifier() which produces a URL-safe,
// base64-encoded 32-byte random string suitable for authorization codes,
// client secrets, and client IDs.
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}
