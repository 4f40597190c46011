// Package valkey provides a Valkey storage backend for the OAuth server.
//
// Valkey is a high-performance key-value store that is wire-compatible with
// Redis. This package implements all storage interfaces required by the
// library, making it suitable for production deployments that require:
//
//   - Distributed storage for horizontal scaling
//   - Persistence across server restarts
//   - Automatic TTL-based expiration
//
// # Implemented Interfaces
//
// The Store type implements all required storage interfaces:
//
//   - [storage.ClientStore]: OAuth client records and ownership links
//   - [storage.UserStore]: resource-owner accounts with a unique email index
//   - [storage.FlowStore]: authorization codes, consent requests, consent grants
//   - [storage.SessionStore]: the server's own login sessions
//
// # Key Schema
//
// All keys use a configurable prefix (default "oauth:") to avoid conflicts
// with other applications sharing the same Valkey instance:
//
//	{prefix}client:{clientID}                   -> JSON(Client)
//	{prefix}client:ip:{ip}                      -> count (with TTL)
//	{prefix}client:owners:{clientID}            -> SET of owner user IDs
//	{prefix}user:{userID}                       -> JSON(User)
//	{prefix}user:email:{email}                  -> userID
//	{prefix}{clientID}:auth_code:{code}         -> JSON(AuthorizationCode, with TTL)
//	{prefix}consent:{consentID}                 -> JSON(ConsentRequest, with TTL)
//	{prefix}consent_granted:{userID}:{clientID} -> scope string (with TTL)
//	{prefix}session:{sessionID}                 -> userID (with TTL)
//
// # Atomic Operations
//
// Authorization codes are consumed with GETDEL, so a code is read and removed
// in one server-side step. Two concurrent redemptions of the same code cannot
// both succeed, which enforces the single-use guarantee without a separate
// existence check followed by a delete.
//
// # Configuration
//
// Basic usage:
//
//	store, err := valkey.New(valkey.Config{
//	    Address:   "localhost:6379",
//	    KeyPrefix: "oauth:",
//	})
//
// With TLS:
//
//	store, err := valkey.New(valkey.Config{
//	    Address:   "valkey.example.com:6379",
//	    Password:  os.Getenv("VALKEY_PASSWORD"),
//	    TLS:       &tls.Config{MinVersion: tls.VersionTLS12},
//	    KeyPrefix: "oauth:",
//	})
//
// # Security Considerations
//
//   - All flow records are stored with TTLs to prevent unbounded growth
//   - GETDEL enforces single-use authorization codes atomically
//   - TLS support enables encrypted connections to Valkey servers
//   - Generic error messages prevent information leakage
//
// # Best Practices
//
//   - Always use TLS in production environments
//   - Set strong passwords for Valkey authentication
//   - Use dedicated Valkey instances or databases for OAuth storage
//   - Monitor key count and memory usage for potential DoS attacks
package valkey
