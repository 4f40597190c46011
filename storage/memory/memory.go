// Package memory provides an in-memory implementation of all storage interfaces.
// It is suitable for development, testing, and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/guilherme-hl1ma/project-library-oauth/instrumentation"
	"github.com/guilherme-hl1ma/project-library-oauth/internal/util"
	"github.com/guilherme-hl1ma/project-library-oauth/security"
	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

const (
	// tokenIDLogLength is the number of characters to include when logging
	// authorization codes and session IDs. Enough uniqueness for debugging
	// while keeping logs safe.
	tokenIDLogLength = 8
)

// consentGrant is a durably approved scope string with its expiry.
type consentGrant struct {
	Scope     string
	ExpiresAt time.Time
}

// session maps an opaque session ID to a user with its expiry.
type session struct {
	UserID    string
	ExpiresAt time.Time
}

// Store is an in-memory implementation of all storage interfaces.
// It implements ClientStore, UserStore, FlowStore, and SessionStore.
type Store struct {
	mu sync.RWMutex

	// Client storage
	clients      map[string]*storage.Client
	ownerships   map[string]map[string]bool // client ID -> set of owner user IDs
	clientsPerIP map[string]int             // IP address -> client count (for DoS protection)

	// User storage
	users        map[string]*storage.User
	usersByEmail map[string]string // email -> user ID

	// Flow storage
	authCodes       map[string]*storage.AuthorizationCode // composite key -> code record
	consentRequests map[string]*storage.ConsentRequest
	consentGrants   map[string]*consentGrant // user:client key -> grant

	// Session storage
	sessions map[string]*session

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	meter           metric.Meter

	// Atomic counters for metrics (lock-free access during metric collection)
	clientsCountAtomic  atomic.Int64
	usersCountAtomic    atomic.Int64
	codesCountAtomic    atomic.Int64
	grantsCountAtomic   atomic.Int64
	sessionsCountAtomic atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	logger          *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.ClientStore  = (*Store)(nil)
	_ storage.UserStore    = (*Store)(nil)
	_ storage.FlowStore    = (*Store)(nil)
	_ storage.SessionStore = (*Store)(nil)
)

// New creates a new in-memory store with default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		ownerships:      make(map[string]map[string]bool),
		clientsPerIP:    make(map[string]int),
		users:           make(map[string]*storage.User),
		usersByEmail:    make(map[string]string),
		authCodes:       make(map[string]*storage.AuthorizationCode),
		consentRequests: make(map[string]*storage.ConsentRequest),
		consentGrants:   make(map[string]*consentGrant),
		sessions:        make(map[string]*session),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	// Start background cleanup
	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
		s.meter = inst.Meter("storage")
	}

	// Initialize atomic counters with current counts
	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.usersCountAtomic.Store(int64(len(s.users)))
	s.codesCountAtomic.Store(int64(len(s.authCodes)))
	s.grantsCountAtomic.Store(int64(len(s.consentGrants)))
	s.sessionsCountAtomic.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	if inst != nil {
		// Register storage size callbacks using atomic counters (lock-free).
		// These provide real-time visibility into storage size for capacity
		// planning and DoS attack monitoring.
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.clientsCountAtomic.Load() },
			func() int64 { return s.usersCountAtomic.Load() },
			func() int64 { return s.codesCountAtomic.Load() },
			func() int64 { return s.grantsCountAtomic.Load() },
			func() int64 { return s.sessionsCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop gracefully stops the cleanup goroutine
func (s *Store) Stop() {
	close(s.stopCleanup)
}

// authCodeKey builds the composite storage key for an authorization code.
func authCodeKey(clientID, code string) string {
	return clientID + ":auth_code:" + code
}

// grantKey builds the storage key for a durable consent grant.
func grantKey(userID, clientID string) string {
	return "consent_granted:" + userID + ":" + clientID
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	// Start span and track metrics
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		err = fmt.Errorf("invalid client")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.clients[client.ClientID]
	s.clients[client.ClientID] = client

	if !existed {
		s.clientsCountAtomic.Add(1)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", storage.ErrNotFound, clientID)
	}

	// Return a copy to prevent caller from modifying our stored version
	clientCopy := *client
	return &clientCopy, nil
}

// SaveOwnership records that userID owns clientID
func (s *Store) SaveOwnership(ctx context.Context, clientID, userID string) error {
	if clientID == "" || userID == "" {
		return fmt.Errorf("clientID and userID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owners, ok := s.ownerships[clientID]
	if !ok {
		owners = make(map[string]bool)
		s.ownerships[clientID] = owners
	}
	owners[userID] = true

	s.logger.Debug("Saved ownership link", "client_id", clientID, "user_id", userID)
	return nil
}

// HasOwnership reports whether userID has an ownership link to clientID
func (s *Store) HasOwnership(ctx context.Context, clientID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ownerships[clientID][userID], nil
}

// ListClients lists all registered clients
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clientCopy := *client
		clients = append(clients, &clientCopy)
	}
	return clients, nil
}

// CheckIPLimit checks if an IP has reached the client registration limit
func (s *Store) CheckIPLimit(ctx context.Context, ip string, maxClientsPerIP int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxClientsPerIP <= 0 {
		return nil // No limit
	}

	count := s.clientsPerIP[ip]
	if count >= maxClientsPerIP {
		return fmt.Errorf("client registration limit reached for IP %s (%d/%d clients)", ip, count, maxClientsPerIP)
	}

	return nil
}

// TrackClientIP increments the client count for an IP address
func (s *Store) TrackClientIP(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientsPerIP[ip]++
}

// ============================================================
// UserStore Implementation
// ============================================================

// SaveUser saves a user, enforcing email uniqueness
func (s *Store) SaveUser(ctx context.Context, user *storage.User) error {
	ctx, span := s.startStorageSpan(ctx, "save_user")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_user", err, startTime)
	}()

	if user == nil || user.UserID == "" || user.Email == "" {
		err = fmt.Errorf("invalid user")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, taken := s.usersByEmail[user.Email]; taken && existingID != user.UserID {
		err = fmt.Errorf("%w: email already registered", storage.ErrDuplicate)
		return err
	}

	_, existed := s.users[user.UserID]
	s.users[user.UserID] = user
	s.usersByEmail[user.Email] = user.UserID

	if !existed {
		s.usersCountAtomic.Add(1)
	}

	s.logger.Debug("Saved user", "user_id", user.UserID)
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, userID)
	}

	userCopy := *user
	return &userCopy, nil
}

// GetUserByEmail retrieves a user by their unique email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.usersByEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: no user for email", storage.ErrNotFound)
	}

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: no user for email", storage.ErrNotFound)
	}

	userCopy := *user
	return &userCopy, nil
}

// ============================================================
// FlowStore Implementation
// ============================================================

// SaveAuthorizationCode saves an issued authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	// Start span and track metrics
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" || code.ClientID == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := authCodeKey(code.ClientID, code.Code)
	_, existed := s.authCodes[key]
	s.authCodes[key] = code
	if !existed {
		s.codesCountAtomic.Add(1)
	}
	s.logger.Debug("Saved authorization code",
		"client_id", code.ClientID,
		"code_prefix", util.SafeTruncate(code.Code, tokenIDLogLength))
	return nil
}

// ConsumeAuthorizationCode atomically retrieves and deletes an authorization code.
//
// SECURITY: The delete happens under the same lock as the lookup, so only ONE
// concurrent redemption attempt can succeed. The code is removed even when the
// caller's subsequent client or redirect URI validation fails, which prevents
// replay of a code observed in a failed attempt.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*storage.AuthorizationCode, error) {
	ctx, span := s.startStorageSpan(ctx, "consume_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "consume_authorization_code", err, startTime)
	}()

	s.mu.Lock() // MUST use write lock for atomic get-and-delete
	defer s.mu.Unlock()

	key := authCodeKey(clientID, code)
	authCode, ok := s.authCodes[key]
	if !ok {
		err = fmt.Errorf("%w: authorization code", storage.ErrNotFound)
		return nil, err
	}

	// Consume unconditionally before any expiry check
	delete(s.authCodes, key)
	s.codesCountAtomic.Add(-1)

	// Check if expired with clock skew grace period
	if security.IsTokenExpired(authCode.ExpiresAt) {
		err = fmt.Errorf("%w: authorization code expired", storage.ErrNotFound)
		return nil, err
	}

	s.logger.Debug("Consumed authorization code",
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength))
	return authCode, nil
}

// SaveConsentRequest saves a pending consent request
func (s *Store) SaveConsentRequest(ctx context.Context, req *storage.ConsentRequest) error {
	if req == nil || req.ConsentID == "" {
		return fmt.Errorf("invalid consent request")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.consentRequests[req.ConsentID] = req
	s.logger.Debug("Saved consent request",
		"consent_id", util.SafeTruncate(req.ConsentID, tokenIDLogLength),
		"client_id", req.ClientID)
	return nil
}

// GetConsentRequest retrieves a pending consent request
func (s *Store) GetConsentRequest(ctx context.Context, consentID string) (*storage.ConsentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.consentRequests[consentID]
	if !ok {
		return nil, fmt.Errorf("%w: consent request", storage.ErrNotFound)
	}

	if security.IsTokenExpired(req.ExpiresAt) {
		return nil, fmt.Errorf("%w: consent request expired", storage.ErrNotFound)
	}

	reqCopy := *req
	return &reqCopy, nil
}

// DeleteConsentRequest removes a pending consent request
func (s *Store) DeleteConsentRequest(ctx context.Context, consentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.consentRequests, consentID)
	return nil
}

// SaveConsentGrant records a durable consent grant, refreshing its TTL
func (s *Store) SaveConsentGrant(ctx context.Context, userID, clientID, scope string, ttl time.Duration) error {
	if userID == "" || clientID == "" {
		return fmt.Errorf("userID and clientID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(userID, clientID)
	_, existed := s.consentGrants[key]
	s.consentGrants[key] = &consentGrant{
		Scope:     scope,
		ExpiresAt: time.Now().Add(ttl),
	}

	if !existed {
		s.grantsCountAtomic.Add(1)
	}

	s.logger.Debug("Saved consent grant", "user_id", userID, "client_id", clientID)
	return nil
}

// GetConsentGrant retrieves the durably approved scope string for a user/client pair
func (s *Store) GetConsentGrant(ctx context.Context, userID, clientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.consentGrants[grantKey(userID, clientID)]
	if !ok {
		return "", fmt.Errorf("%w: consent grant", storage.ErrNotFound)
	}

	if security.IsTokenExpired(grant.ExpiresAt) {
		return "", fmt.Errorf("%w: consent grant expired", storage.ErrNotFound)
	}

	return grant.Scope, nil
}

// DeleteConsentGrant revokes a user's durable approval for a client
func (s *Store) DeleteConsentGrant(ctx context.Context, userID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(userID, clientID)
	if _, ok := s.consentGrants[key]; ok {
		delete(s.consentGrants, key)
		s.grantsCountAtomic.Add(-1)
	}
	return nil
}

// ============================================================
// SessionStore Implementation
// ============================================================

// SaveSession maps a session ID to a user for the given TTL
func (s *Store) SaveSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	if sessionID == "" || userID == "" {
		return fmt.Errorf("sessionID and userID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.sessions[sessionID]
	s.sessions[sessionID] = &session{
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}

	if !existed {
		s.sessionsCountAtomic.Add(1)
	}

	s.logger.Debug("Saved session",
		"session_prefix", util.SafeTruncate(sessionID, tokenIDLogLength),
		"user_id", userID)
	return nil
}

// GetSession retrieves the user ID for a session
func (s *Store) GetSession(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: session", storage.ErrNotFound)
	}

	if security.IsTokenExpired(sess.ExpiresAt) {
		return "", fmt.Errorf("%w: session expired", storage.ErrNotFound)
	}

	return sess.UserID, nil
}

// DeleteSession removes a session
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		s.sessionsCountAtomic.Add(-1)
	}
	return nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0

	// Cleanup expired authorization codes (with clock skew grace period)
	for key, authCode := range s.authCodes {
		if security.IsTokenExpired(authCode.ExpiresAt) {
			delete(s.authCodes, key)
			s.codesCountAtomic.Add(-1)
			cleaned++
		}
	}

	// Cleanup expired consent requests
	for consentID, req := range s.consentRequests {
		if security.IsTokenExpired(req.ExpiresAt) {
			delete(s.consentRequests, consentID)
			cleaned++
		}
	}

	// Cleanup expired consent grants
	for key, grant := range s.consentGrants {
		if security.IsTokenExpired(grant.ExpiresAt) {
			delete(s.consentGrants, key)
			s.grantsCountAtomic.Add(-1)
			cleaned++
		}
	}

	// Cleanup expired sessions
	for sessionID, sess := range s.sessions {
		if security.IsTokenExpired(sess.ExpiresAt) {
			delete(s.sessions, sessionID)
			s.sessionsCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired records", "count", cleaned)
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation
// Returns a context with the span attached and the span itself
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	// Record operation with count and duration
	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
