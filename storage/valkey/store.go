package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "oauth:"

	// tokenIDLogLength is the number of characters to include when logging
	// codes and session IDs
	tokenIDLogLength = 8

	// scanBatchSize is the number of keys to fetch per SCAN iteration
	scanBatchSize = 100

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second
)

// Validation error messages (generic to prevent information leakage)
var (
	errRateLimitExceeded = fmt.Errorf("rate limit exceeded")
)

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "oauth:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Valkey-backed implementation of all storage interfaces.
// It implements ClientStore, UserStore, FlowStore, and SessionStore.
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.ClientStore  = (*Store)(nil)
	_ storage.UserStore    = (*Store)(nil)
	_ storage.FlowStore    = (*Store)(nil)
	_ storage.SessionStore = (*Store)(nil)
)

// New creates a new Valkey-backed storage instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Build client options
	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// ============================================================
// Key Helpers
// ============================================================

// clientKey returns the key for a client: {prefix}client:{clientID}
func (s *Store) clientKey(clientID string) string {
	return fmt.Sprintf("%sclient:%s", s.prefix, clientID)
}

// clientIPKey returns the key for client IP tracking: {prefix}client:ip:{ip}
func (s *Store) clientIPKey(ip string) string {
	return fmt.Sprintf("%sclient:ip:%s", s.prefix, ip)
}

// ownersKey returns the key for a client's owner set: {prefix}client:owners:{clientID}
func (s *Store) ownersKey(clientID string) string {
	return fmt.Sprintf("%sclient:owners:%s", s.prefix, clientID)
}

// userKey returns the key for a user: {prefix}user:{userID}
func (s *Store) userKey(userID string) string {
	return fmt.Sprintf("%suser:%s", s.prefix, userID)
}

// userEmailKey returns the key for the email index: {prefix}user:email:{email}
func (s *Store) userEmailKey(email string) string {
	return fmt.Sprintf("%suser:email:%s", s.prefix, email)
}

// codeKey returns the key for an authorization code: {prefix}{clientID}:auth_code:{code}
func (s *Store) codeKey(clientID, code string) string {
	return fmt.Sprintf("%s%s:auth_code:%s", s.prefix, clientID, code)
}

// consentKey returns the key for a pending consent request: {prefix}consent:{consentID}
func (s *Store) consentKey(consentID string) string {
	return fmt.Sprintf("%sconsent:%s", s.prefix, consentID)
}

// grantKey returns the key for a durable consent grant: {prefix}consent_granted:{userID}:{clientID}
func (s *Store) grantKey(userID, clientID string) string {
	return fmt.Sprintf("%sconsent_granted:%s:%s", s.prefix, userID, clientID)
}

// sessionKey returns the key for a login session: {prefix}session:{sessionID}
func (s *Store) sessionKey(sessionID string) string {
	return fmt.Sprintf("%ssession:%s", s.prefix, sessionID)
}

// ============================================================
// JSON Serialization Helpers
// ============================================================

// clientJSON is the JSON representation of an OAuth client
type clientJSON struct {
	ClientID         string   `json:"client_id"`
	ClientSecretHash string   `json:"client_secret_hash,omitempty"`
	RedirectURIs     []string `json:"redirect_uris"`
	GrantTypes       []string `json:"grant_types,omitempty"`
	ResponseTypes    []string `json:"response_types,omitempty"`
	ClientName       string   `json:"client_name,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
	SoftwareID       string   `json:"software_id,omitempty"`
	IsActive         bool     `json:"is_active"`
	CreatedAt        int64    `json:"created_at"`
}

func toClientJSON(client *storage.Client) *clientJSON {
	return &clientJSON{
		ClientID:         client.ClientID,
		ClientSecretHash: client.ClientSecretHash,
		RedirectURIs:     client.RedirectURIs,
		GrantTypes:       client.GrantTypes,
		ResponseTypes:    client.ResponseTypes,
		ClientName:       client.ClientName,
		Scopes:           client.Scopes,
		SoftwareID:       client.SoftwareID,
		IsActive:         client.IsActive,
		CreatedAt:        client.CreatedAt.Unix(),
	}
}

func fromClientJSON(j *clientJSON) *storage.Client {
	if j == nil {
		return nil
	}
	return &storage.Client{
		ClientID:         j.ClientID,
		ClientSecretHash: j.ClientSecretHash,
		RedirectURIs:     j.RedirectURIs,
		GrantTypes:       j.GrantTypes,
		ResponseTypes:    j.ResponseTypes,
		ClientName:       j.ClientName,
		Scopes:           j.Scopes,
		SoftwareID:       j.SoftwareID,
		IsActive:         j.IsActive,
		CreatedAt:        time.Unix(j.CreatedAt, 0),
	}
}

// userJSON is the JSON representation of a user
type userJSON struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

func toUserJSON(user *storage.User) *userJSON {
	return &userJSON{
		UserID:       user.UserID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.Unix(),
	}
}

func fromUserJSON(j *userJSON) *storage.User {
	if j == nil {
		return nil
	}
	return &storage.User{
		UserID:       j.UserID,
		Email:        j.Email,
		PasswordHash: j.PasswordHash,
		CreatedAt:    time.Unix(j.CreatedAt, 0),
	}
}

// authorizationCodeJSON is the JSON representation of an authorization code
type authorizationCodeJSON struct {
	Code        string `json:"code"`
	ClientID    string `json:"client_id"`
	UserID      string `json:"user_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

func toAuthorizationCodeJSON(code *storage.AuthorizationCode) *authorizationCodeJSON {
	return &authorizationCodeJSON{
		Code:        code.Code,
		ClientID:    code.ClientID,
		UserID:      code.UserID,
		RedirectURI: code.RedirectURI,
		Scope:       code.Scope,
		CreatedAt:   code.CreatedAt.Unix(),
		ExpiresAt:   code.ExpiresAt.Unix(),
	}
}

func fromAuthorizationCodeJSON(j *authorizationCodeJSON) *storage.AuthorizationCode {
	if j == nil {
		return nil
	}
	return &storage.AuthorizationCode{
		Code:        j.Code,
		ClientID:    j.ClientID,
		UserID:      j.UserID,
		RedirectURI: j.RedirectURI,
		Scope:       j.Scope,
		CreatedAt:   time.Unix(j.CreatedAt, 0),
		ExpiresAt:   time.Unix(j.ExpiresAt, 0),
	}
}

// consentRequestJSON is the JSON representation of a pending consent request
type consentRequestJSON struct {
	ConsentID   string `json:"consent_id"`
	UserID      string `json:"user_id"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	State       string `json:"state,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

func toConsentRequestJSON(req *storage.ConsentRequest) *consentRequestJSON {
	return &consentRequestJSON{
		ConsentID:   req.ConsentID,
		UserID:      req.UserID,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		State:       req.State,
		CreatedAt:   req.CreatedAt.Unix(),
		ExpiresAt:   req.ExpiresAt.Unix(),
	}
}

func fromConsentRequestJSON(j *consentRequestJSON) *storage.ConsentRequest {
	if j == nil {
		return nil
	}
	return &storage.ConsentRequest{
		ConsentID:   j.ConsentID,
		UserID:      j.UserID,
		ClientID:    j.ClientID,
		RedirectURI: j.RedirectURI,
		Scope:       j.Scope,
		State:       j.State,
		CreatedAt:   time.Unix(j.CreatedAt, 0),
		ExpiresAt:   time.Unix(j.ExpiresAt, 0),
	}
}

// ============================================================
// Helper methods
// ============================================================

// getAndUnmarshal is a generic helper for fetching a key from Valkey,
// unmarshalling the JSON data, and converting to the target type.
func getAndUnmarshal[J any, T any](
	ctx context.Context,
	s *Store,
	key string,
	notFoundErr error,
	fromJSON func(*J) *T,
) (*T, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("failed to get data: %w", err)
	}

	var j J
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return fromJSON(&j), nil
}

// safeTruncate safely truncates a string to n characters
func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// calculateTTL calculates the TTL for a key based on expiry time
// Returns 0 if the key has already expired
func calculateTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return 0
	}
	return ttl
}

// isNilError checks if the error indicates a nil/not-found result from Valkey.
// Uses the valkey-go library's built-in nil detection for robustness.
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
