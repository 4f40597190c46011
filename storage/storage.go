// Package storage defines interfaces for persisting OAuth clients, users, and
// authorization flow state. It supports various backend implementations
// including in-memory and Valkey/Redis.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations. Callers use errors.Is to
// distinguish "record absent or expired" from transient backend failures.
var (
	// ErrNotFound indicates the requested record does not exist or has expired.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate indicates a uniqueness constraint violation, such as
	// registering a user with an email that is already taken.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// ClientStore defines the interface for managing OAuth client registrations
// and their ownership links.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client.
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID. Returns ErrNotFound if absent.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// SaveOwnership records that userID created (and may manage) clientID.
	SaveOwnership(ctx context.Context, clientID, userID string) error

	// HasOwnership reports whether userID has an ownership link to clientID.
	HasOwnership(ctx context.Context, clientID, userID string) (bool, error)

	// ListClients lists all registered clients (for admin purposes).
	ListClients(ctx context.Context) ([]*Client, error)

	// CheckIPLimit checks if an IP has reached the client registration limit.
	CheckIPLimit(ctx context.Context, ip string, maxClientsPerIP int) error
}

// UserStore defines the interface for managing resource-owner accounts.
// All methods accept context.Context for tracing and cancellation.
type UserStore interface {
	// SaveUser saves a user. Returns ErrDuplicate if the email is taken.
	SaveUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetUserByEmail retrieves a user by their unique email address.
	// Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// FlowStore defines the interface for the ephemeral authorization flow state:
// single-use authorization codes, pending consent requests, and durable
// consent grants. Every record carries a TTL; an expired record is
// indistinguishable from an absent one.
// All methods accept context.Context for tracing and cancellation.
type FlowStore interface {
	// SaveAuthorizationCode saves an issued authorization code with its TTL.
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeAuthorizationCode atomically retrieves and deletes an
	// authorization code. The code is removed from the store whether or not
	// the caller's subsequent validation succeeds.
	// Returns ErrNotFound if the code is absent, expired, or already consumed.
	// SECURITY: This operation MUST be atomic to prevent concurrent
	// redemption of the same code.
	ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*AuthorizationCode, error)

	// SaveConsentRequest saves a pending consent request awaiting the
	// resource owner's decision.
	SaveConsentRequest(ctx context.Context, req *ConsentRequest) error

	// GetConsentRequest retrieves a pending consent request by its ID.
	// Returns ErrNotFound if absent or expired.
	GetConsentRequest(ctx context.Context, consentID string) (*ConsentRequest, error)

	// DeleteConsentRequest removes a pending consent request.
	DeleteConsentRequest(ctx context.Context, consentID string) error

	// SaveConsentGrant records the space-joined scope string a user has
	// durably approved for a client, refreshing the grant's TTL.
	SaveConsentGrant(ctx context.Context, userID, clientID, scope string, ttl time.Duration) error

	// GetConsentGrant retrieves the durably approved scope string for a
	// user/client pair. Returns ErrNotFound if absent or expired.
	GetConsentGrant(ctx context.Context, userID, clientID string) (string, error)

	// DeleteConsentGrant revokes a user's durable approval for a client.
	DeleteConsentGrant(ctx context.Context, userID, clientID string) error
}

// SessionStore defines the interface for the authorization server's own
// login sessions. A session maps an opaque random ID to a user ID; it
// identifies the resource owner during the authorize and consent steps and
// is unrelated to the tokens issued to clients.
// All methods accept context.Context for tracing and cancellation.
type SessionStore interface {
	// SaveSession maps sessionID to userID for the given TTL.
	SaveSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error

	// GetSession retrieves the user ID for a session.
	// Returns ErrNotFound if absent or expired.
	GetSession(ctx context.Context, sessionID string) (string, error)

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, sessionID string) error
}

// Client represents a registered OAuth client.
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash; plaintext never stored
	RedirectURIs     []string
	GrantTypes       []string
	ResponseTypes    []string
	ClientName       string
	Scopes           []string
	SoftwareID       string
	IsActive         bool
	CreatedAt        time.Time
}

// User represents a resource owner who can log in and approve consent.
type User struct {
	UserID       string
	Email        string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}

// AuthorizationCode represents an issued single-use authorization code.
// RedirectURI is stored in normalized form (one trailing slash stripped);
// Scope is the space-joined approved scope string.
type AuthorizationCode struct {
	Code        string
	ClientID    string
	UserID      string
	RedirectURI string
	Scope       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ConsentRequest holds an authorization request parked while the resource
// owner decides whether to approve it.
type ConsentRequest struct {
	ConsentID   string
	UserID      string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
