// Package storage provides interfaces and shared types for persisting OAuth
// clients, users, sessions, and authorization flow state.
//
// The core interfaces are:
//   - ClientStore: registered OAuth clients and their ownership links
//   - UserStore: resource-owner accounts
//   - FlowStore: authorization codes, consent requests, durable consent grants
//   - SessionStore: the server's own login sessions
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
//   - storage/mock: mock storage for unit testing
//   - storage/valkey: Valkey/Redis-compatible distributed storage for production
package storage
