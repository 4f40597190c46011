// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// MockClientStore is a mock implementation of ClientStore for testing
type MockClientStore struct {
	mu               sync.RWMutex
	clients          map[string]*storage.Client
	ownerships       map[string]map[string]bool
	ipRegistrations  map[string]int
	SaveClientFunc   func(client *storage.Client) error
	GetClientFunc    func(clientID string) (*storage.Client, error)
	SaveOwnerFunc    func(clientID, userID string) error
	HasOwnerFunc     func(clientID, userID string) (bool, error)
	ListClientsFunc  func() ([]*storage.Client, error)
	CheckIPLimitFunc func(ip string, maxClientsPerIP int) error
	CallCounts       map[string]int
}

// NewMockClientStore creates a new mock client store
func NewMockClientStore() *MockClientStore {
	m := &MockClientStore{
		clients:         make(map[string]*storage.Client),
		ownerships:      make(map[string]map[string]bool),
		ipRegistrations: make(map[string]int),
		CallCounts:      make(map[string]int),
	}

	// Set default implementations
	m.SaveClientFunc = func(client *storage.Client) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clients[client.ClientID] = client
		return nil
	}

	m.GetClientFunc = func(clientID string) (*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		client, ok := m.clients[clientID]
		if !ok {
			return nil, fmt.Errorf("%w: client", storage.ErrNotFound)
		}
		return client, nil
	}

	m.SaveOwnerFunc = func(clientID, userID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		owners, ok := m.ownerships[clientID]
		if !ok {
			owners = make(map[string]bool)
			m.ownerships[clientID] = owners
		}
		owners[userID] = true
		return nil
	}

	m.HasOwnerFunc = func(clientID, userID string) (bool, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.ownerships[clientID][userID], nil
	}

	m.ListClientsFunc = func() ([]*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		clients := make([]*storage.Client, 0, len(m.clients))
		for _, client := range m.clients {
			clients = append(clients, client)
		}
		return clients, nil
	}

	m.CheckIPLimitFunc = func(ip string, maxClientsPerIP int) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if maxClientsPerIP <= 0 {
			return nil
		}
		if count := m.ipRegistrations[ip]; count >= maxClientsPerIP {
			return fmt.Errorf("IP registration limit exceeded")
		}
		return nil
	}

	return m
}

// SaveClient saves a registered client
func (m *MockClientStore) SaveClient(ctx context.Context, client *storage.Client) error {
	m.CallCounts["SaveClient"]++
	return m.SaveClientFunc(client)
}

// GetClient retrieves a client by ID
func (m *MockClientStore) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	m.CallCounts["GetClient"]++
	return m.GetClientFunc(clientID)
}

// SaveOwnership records an ownership link
func (m *MockClientStore) SaveOwnership(ctx context.Context, clientID, userID string) error {
	m.CallCounts["SaveOwnership"]++
	return m.SaveOwnerFunc(clientID, userID)
}

// HasOwnership reports whether an ownership link exists
func (m *MockClientStore) HasOwnership(ctx context.Context, clientID, userID string) (bool, error) {
	m.CallCounts["HasOwnership"]++
	return m.HasOwnerFunc(clientID, userID)
}

// ListClients lists all registered clients
func (m *MockClientStore) ListClients(ctx context.Context) ([]*storage.Client, error) {
	m.CallCounts["ListClients"]++
	return m.ListClientsFunc()
}

// CheckIPLimit checks if an IP has reached the client registration limit
func (m *MockClientStore) CheckIPLimit(ctx context.Context, ip string, maxClientsPerIP int) error {
	m.CallCounts["CheckIPLimit"]++
	return m.CheckIPLimitFunc(ip, maxClientsPerIP)
}

// TrackClientIP increments the registration count for an IP
func (m *MockClientStore) TrackClientIP(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ipRegistrations[ip]++
}

// ResetCallCounts resets all call counters
func (m *MockClientStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

// MockUserStore is a mock implementation of UserStore for testing
type MockUserStore struct {
	mu                 sync.RWMutex
	users              map[string]*storage.User
	usersByEmail       map[string]string
	SaveUserFunc       func(user *storage.User) error
	GetUserFunc        func(userID string) (*storage.User, error)
	GetUserByEmailFunc func(email string) (*storage.User, error)
	CallCounts         map[string]int
}

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	m := &MockUserStore{
		users:        make(map[string]*storage.User),
		usersByEmail: make(map[string]string),
		CallCounts:   make(map[string]int),
	}

	m.SaveUserFunc = func(user *storage.User) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, taken := m.usersByEmail[user.Email]; taken && existing != user.UserID {
			return fmt.Errorf("%w: email already registered", storage.ErrDuplicate)
		}
		m.users[user.UserID] = user
		m.usersByEmail[user.Email] = user.UserID
		return nil
	}

	m.GetUserFunc = func(userID string) (*storage.User, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		user, ok := m.users[userID]
		if !ok {
			return nil, fmt.Errorf("%w: user", storage.ErrNotFound)
		}
		return user, nil
	}

	m.GetUserByEmailFunc = func(email string) (*storage.User, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		userID, ok := m.usersByEmail[email]
		if !ok {
			return nil, fmt.Errorf("%w: no user for email", storage.ErrNotFound)
		}
		return m.users[userID], nil
	}

	return m
}

// SaveUser saves a user
func (m *MockUserStore) SaveUser(ctx context.Context, user *storage.User) error {
	m.CallCounts["SaveUser"]++
	return m.SaveUserFunc(user)
}

// GetUser retrieves a user by ID
func (m *MockUserStore) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	m.CallCounts["GetUser"]++
	return m.GetUserFunc(userID)
}

// GetUserByEmail retrieves a user by email
func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	m.CallCounts["GetUserByEmail"]++
	return m.GetUserByEmailFunc(email)
}

// ResetCallCounts resets all call counters
func (m *MockUserStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

// MockFlowStore is a mock implementation of FlowStore for testing
type MockFlowStore struct {
	mu                     sync.RWMutex
	authCodes              map[string]*storage.AuthorizationCode
	consentRequests        map[string]*storage.ConsentRequest
	consentGrants          map[string]string
	SaveAuthCodeFunc       func(code *storage.AuthorizationCode) error
	ConsumeAuthCodeFunc    func(clientID, code string) (*storage.AuthorizationCode, error)
	SaveConsentReqFunc     func(req *storage.ConsentRequest) error
	GetConsentReqFunc      func(consentID string) (*storage.ConsentRequest, error)
	DeleteConsentReqFunc   func(consentID string) error
	SaveConsentGrantFunc   func(userID, clientID, scope string, ttl time.Duration) error
	GetConsentGrantFunc    func(userID, clientID string) (string, error)
	DeleteConsentGrantFunc func(userID, clientID string) error
	CallCounts             map[string]int
}

// NewMockFlowStore creates a new mock flow store
func NewMockFlowStore() *MockFlowStore {
	m := &MockFlowStore{
		authCodes:       make(map[string]*storage.AuthorizationCode),
		consentRequests: make(map[string]*storage.ConsentRequest),
		consentGrants:   make(map[string]string),
		CallCounts:      make(map[string]int),
	}

	// Set default implementations
	m.SaveAuthCodeFunc = func(code *storage.AuthorizationCode) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.authCodes[code.ClientID+":"+code.Code] = code
		return nil
	}

	m.ConsumeAuthCodeFunc = func(clientID, code string) (*storage.AuthorizationCode, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		key := clientID + ":" + code
		authCode, ok := m.authCodes[key]
		if !ok {
			return nil, fmt.Errorf("%w: authorization code", storage.ErrNotFound)
		}
		delete(m.authCodes, key)
		if !authCode.ExpiresAt.IsZero() && time.Now().After(authCode.ExpiresAt) {
			return nil, fmt.Errorf("%w: authorization code expired", storage.ErrNotFound)
		}
		return authCode, nil
	}

	m.SaveConsentReqFunc = func(req *storage.ConsentRequest) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.consentRequests[req.ConsentID] = req
		return nil
	}

	m.GetConsentReqFunc = func(consentID string) (*storage.ConsentRequest, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		req, ok := m.consentRequests[consentID]
		if !ok {
			return nil, fmt.Errorf("%w: consent request", storage.ErrNotFound)
		}
		if !req.ExpiresAt.IsZero() && time.Now().After(req.ExpiresAt) {
			return nil, fmt.Errorf("%w: consent request expired", storage.ErrNotFound)
		}
		return req, nil
	}

	m.DeleteConsentReqFunc = func(consentID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.consentRequests, consentID)
		return nil
	}

	m.SaveConsentGrantFunc = func(userID, clientID, scope string, ttl time.Duration) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.consentGrants[userID+":"+clientID] = scope
		return nil
	}

	m.GetConsentGrantFunc = func(userID, clientID string) (string, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		scope, ok := m.consentGrants[userID+":"+clientID]
		if !ok {
			return "", fmt.Errorf("%w: consent grant", storage.ErrNotFound)
		}
		return scope, nil
	}

	m.DeleteConsentGrantFunc = func(userID, clientID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.consentGrants, userID+":"+clientID)
		return nil
	}

	return m
}

// SaveAuthorizationCode saves an issued authorization code
func (m *MockFlowStore) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	m.CallCounts["SaveAuthorizationCode"]++
	return m.SaveAuthCodeFunc(code)
}

// ConsumeAuthorizationCode atomically retrieves and deletes an authorization code
func (m *MockFlowStore) ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*storage.AuthorizationCode, error) {
	m.CallCounts["ConsumeAuthorizationCode"]++
	return m.ConsumeAuthCodeFunc(clientID, code)
}

// SaveConsentRequest saves a pending consent request
func (m *MockFlowStore) SaveConsentRequest(ctx context.Context, req *storage.ConsentRequest) error {
	m.CallCounts["SaveConsentRequest"]++
	return m.SaveConsentReqFunc(req)
}

// GetConsentRequest retrieves a pending consent request
func (m *MockFlowStore) GetConsentRequest(ctx context.Context, consentID string) (*storage.ConsentRequest, error) {
	m.CallCounts["GetConsentRequest"]++
	return m.GetConsentReqFunc(consentID)
}

// DeleteConsentRequest removes a pending consent request
func (m *MockFlowStore) DeleteConsentRequest(ctx context.Context, consentID string) error {
	m.CallCounts["DeleteConsentRequest"]++
	return m.DeleteConsentReqFunc(consentID)
}

// SaveConsentGrant records a durable consent grant
func (m *MockFlowStore) SaveConsentGrant(ctx context.Context, userID, clientID, scope string, ttl time.Duration) error {
	m.CallCounts["SaveConsentGrant"]++
	return m.SaveConsentGrantFunc(userID, clientID, scope, ttl)
}

// GetConsentGrant retrieves a durable consent grant
func (m *MockFlowStore) GetConsentGrant(ctx context.Context, userID, clientID string) (string, error) {
	m.CallCounts["GetConsentGrant"]++
	return m.GetConsentGrantFunc(userID, clientID)
}

// DeleteConsentGrant revokes a durable consent grant
func (m *MockFlowStore) DeleteConsentGrant(ctx context.Context, userID, clientID string) error {
	m.CallCounts["DeleteConsentGrant"]++
	return m.DeleteConsentGrantFunc(userID, clientID)
}

// ResetCallCounts resets all call counters
func (m *MockFlowStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

// MockSessionStore is a mock implementation of SessionStore for testing
type MockSessionStore struct {
	mu              sync.RWMutex
	sessions        map[string]sessionEntry
	SaveSessionFunc func(sessionID, userID string, ttl time.Duration) error
	GetSessionFunc  func(sessionID string) (string, error)
	DeleteFunc      func(sessionID string) error
	CallCounts      map[string]int
}

type sessionEntry struct {
	userID    string
	expiresAt time.Time
}

// NewMockSessionStore creates a new mock session store
func NewMockSessionStore() *MockSessionStore {
	m := &MockSessionStore{
		sessions:   make(map[string]sessionEntry),
		CallCounts: make(map[string]int),
	}

	m.SaveSessionFunc = func(sessionID, userID string, ttl time.Duration) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.sessions[sessionID] = sessionEntry{
			userID:    userID,
			expiresAt: time.Now().Add(ttl),
		}
		return nil
	}

	m.GetSessionFunc = func(sessionID string) (string, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		entry, ok := m.sessions[sessionID]
		if !ok {
			return "", fmt.Errorf("%w: session", storage.ErrNotFound)
		}
		if time.Now().After(entry.expiresAt) {
			return "", fmt.Errorf("%w: session expired", storage.ErrNotFound)
		}
		return entry.userID, nil
	}

	m.DeleteFunc = func(sessionID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, sessionID)
		return nil
	}

	return m
}

// SaveSession maps a session ID to a user
func (m *MockSessionStore) SaveSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	m.CallCounts["SaveSession"]++
	return m.SaveSessionFunc(sessionID, userID, ttl)
}

// GetSession retrieves the user ID for a session
func (m *MockSessionStore) GetSession(ctx context.Context, sessionID string) (string, error) {
	m.CallCounts["GetSession"]++
	return m.GetSessionFunc(sessionID)
}

// DeleteSession removes a session
func (m *MockSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.CallCounts["DeleteSession"]++
	return m.DeleteFunc(sessionID)
}

// ResetCallCounts resets all call counters
func (m *MockSessionStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}
