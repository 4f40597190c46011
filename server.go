package oauth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/security"
	"github.com/guilherme-hl1ma/project-library-oauth/server"
	"github.com/guilherme-hl1ma/project-library-oauth/storage"
	"github.com/guilherme-hl1ma/project-library-oauth/storage/memory"
	"github.com/guilherme-hl1ma/project-library-oauth/storage/valkey"
	"github.com/guilherme-hl1ma/project-library-oauth/token"
)

const minSigningSecretLength = 32

// Server is the fully wired authorization server: the core grant machinery
// from the server package plus storage, token codec, auditing, and rate
// limiting assembled from a single Config.
//
// Callers who need finer control over the wiring (custom stores, shared
// rate limiters) can use the server package directly; this facade covers
// the common single-binary deployment.
type Server struct {
	*server.Server

	registrationAccessToken string

	closers []func()
}

// New assembles an authorization server from the configuration. The caller
// owns the returned server and must Close it to release the storage backend
// and rate limiter goroutines.
func New(cfg Config) (*Server, error) {
	if cfg.Server == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if len(cfg.TokenSigningSecret) < minSigningSecretLength {
		return nil, fmt.Errorf("token signing secret must be at least %d bytes", minSigningSecretLength)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := token.NewCodec(cfg.TokenSigningSecret, cfg.Server.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	var (
		store interface {
			storage.ClientStore
			storage.UserStore
			storage.FlowStore
			storage.SessionStore
		}
		closers []func()
	)

	if cfg.Valkey != nil {
		vcfg := *cfg.Valkey
		if vcfg.Logger == nil {
			vcfg.Logger = logger
		}
		vstore, err := valkey.New(vcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey storage: %w", err)
		}
		store = vstore
		closers = append(closers, vstore.Close)
	} else {
		mstore := memory.NewWithInterval(cfg.CleanupInterval)
		store = mstore
		closers = append(closers, mstore.Stop)
	}

	core, err := server.New(store, store, store, store, codec, cfg.Server, logger)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	core.SetAuditor(security.NewAuditor(logger, cfg.EnableAuditLogging))

	if cfg.RateLimit.Rate > 0 {
		rl := security.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, logger)
		core.SetRateLimiter(rl)
		closers = append(closers, rl.Stop)
	}

	if cfg.RateLimit.UserRate > 0 {
		rl := security.NewRateLimiter(cfg.RateLimit.UserRate, cfg.RateLimit.UserBurst, logger)
		core.SetUserRateLimiter(rl)
		closers = append(closers, rl.Stop)
	}

	regLimiter := security.NewClientRegistrationRateLimiterWithConfig(
		core.Config.MaxRegistrationsPerHour,
		time.Duration(core.Config.RegistrationRateLimitWindow)*time.Second,
		security.DefaultMaxRegistrationEntries,
		logger,
	)
	core.SetRegistrationRateLimiter(regLimiter)
	closers = append(closers, regLimiter.Stop)

	if cfg.Instrumentation != nil {
		core.SetInstrumentation(cfg.Instrumentation)
	}

	return &Server{
		Server:                  core,
		registrationAccessToken: cfg.RegistrationAccessToken,
		closers:                 closers,
	}, nil
}

// Close releases the storage backend and stops rate limiter goroutines.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
