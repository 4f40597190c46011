// Package server implements the core OAuth 2.0 authorization server logic.
//
// This package provides the authorization code grant with user consent,
// token issuance and refresh, token revocation, and dynamic client
// registration. It coordinates between storage backends, the token codec,
// and security features; the HTTP surface lives in the root package.
//
// The Server type delegates to specialized modules:
//   - Self-contained JWT signing and verification (token package)
//   - Client, user, and flow storage (storage package)
//   - Security features (security package)
//
// Key features:
//   - Single-use authorization codes with client and redirect URI binding
//   - Durable consent grants enabling silent re-authorization
//   - Scope narrowing on refresh with containment enforcement
//   - Dynamic client registration with secret rotation
//   - Comprehensive security auditing
//   - Rate limiting (IP and user-based)
//
// Example usage:
//
//	store := memory.New()
//	codec, err := token.NewCodec(signingSecret, "https://auth.example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	config := &server.Config{
//	    Issuer: "https://auth.example.com",
//	}
//
//	srv, err := server.New(store, store, store, store, codec, config, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
package server
