// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the OAuth server.
//
// This package enables comprehensive observability across all layers through:
// - Metrics: Counters, histograms, and gauges for monitoring OAuth operations
// - Traces: Distributed tracing for request flows across components
// - Logging: Structured logs with trace context integration
//
// # Quick Start
//
// Enable basic instrumentation:
//
//	import "github.com/guilherme-hl1ma/project-library-oauth/instrumentation"
//
//	// Initialize instrumentation
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-oauth-service",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	// Pass to server configuration
//	server.SetInstrumentation(inst)
//
// # Available Metrics
//
// HTTP Layer:
//   - oauth.http.requests.total{method, endpoint, status} - Total HTTP requests
//   - oauth.http.request.duration{endpoint} - Request duration in milliseconds
//
// OAuth Flows:
//   - oauth.authorization.started{client_id} - Authorization flows started
//   - oauth.consent.decided{client_id, approved} - Consent decisions processed
//   - oauth.code.exchanged{client_id} - Authorization codes exchanged
//   - oauth.token.refreshed{client_id} - Tokens refreshed
//   - oauth.token.revoked{client_id} - Tokens revoked
//   - oauth.client.registered - Clients registered
//
// User Accounts:
//   - oauth.user.signed_up - User accounts created
//   - oauth.user.logged_in - Successful user logins
//   - oauth.login.failed - Failed user login attempts
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type} - Rate limit violations
//   - oauth.code.reuse_detected - Authorization code reuse attempts
//   - oauth.audit.events.total{event_type} - Audit events
//
// Storage:
//   - storage.operation.total{operation, result} - Storage operations
//   - storage.operation.duration{operation} - Operation duration in milliseconds
//   - storage.clients.count - Registered clients currently in storage
//   - storage.users.count - User accounts currently in storage
//   - storage.codes.count - Pending authorization codes currently in storage
//   - storage.grants.count - Durable consent grants currently in storage
//   - storage.sessions.count - Active user sessions currently in storage
//
// # Distributed Tracing
//
// Spans are created for all major operations:
//   - HTTP requests
//   - OAuth flows (authorization, consent, token exchange, refresh, revocation)
//   - Storage operations (save, get, consume, delete)
//
// Example span structure:
//
//	http.request
//	└── oauth.server.authorize
//	    ├── storage.get_consent_grant
//	    ├── storage.save_authorization_code
//	    └── storage.save_consent_request
//
// # Performance
//
// When instrumentation is not configured or disabled:
//   - Zero overhead (uses no-op providers)
//   - No allocations or latency impact
//
// When enabled:
//   - < 1% latency overhead
//   - ~1-2 MB memory for metric registry
//   - Lock-free atomic operations for metrics
//
// # Thread Safety
//
// All instrumentation operations are thread-safe and can be called concurrently from multiple goroutines.
//
// # Metric Cardinality Considerations
//
// Metric cardinality refers to the number of unique label combinations for a metric.
// High cardinality can cause memory pressure and slow queries in monitoring systems.
//
// Label cardinality in this library:
//   - client_id: One value per registered OAuth client (typically 1-1000s)
//   - endpoint: Fixed set (roughly 10 endpoints)
//   - operation: Fixed set (10-20 operations)
//   - status: Fixed set (HTTP status codes ~10-20 values)
//
// For deployments with many thousands of clients, consider removing client_id
// labels from high-frequency metrics or pre-aggregating with recording rules.
//
// # Security Considerations
//
// IMPORTANT: This package is designed to collect observability data, not sensitive credentials.
//
// When instrumenting OAuth flows, you MUST:
//   - NEVER log actual token values (access tokens, refresh tokens, authorization codes)
//   - NEVER log client secrets or user passwords
//   - ONLY log metadata (token types, expiry times, validation results)
//
// Data collected in traces and metrics may be:
//   - Persisted for extended periods in observability backends
//   - Accessible to operations teams and potentially wider audiences
//   - Subject to compliance requirements (GDPR, PCI-DSS, SOC 2, etc.)
//   - Replicated across monitoring infrastructure
//
// Privacy considerations:
//   - Client IP addresses may be considered PII in some jurisdictions
//   - User IDs may be subject to privacy regulations
//   - Configure appropriate retention policies and access controls
//   - Document data collection in your privacy policy
package instrumentation
