package security

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{
			name:    "enabled with logger",
			logger:  slog.Default(),
			enabled: true,
		},
		{
			name:    "disabled with logger",
			logger:  slog.Default(),
			enabled: false,
		},
		{
			name:    "enabled with nil logger",
			logger:  nil,
			enabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			if auditor == nil {
				t.Fatal("NewAuditor() returned nil")
			}
			if auditor.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", auditor.enabled, tt.enabled)
			}
			if auditor.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

func TestAuditor_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	tests := []struct {
		name    string
		enabled bool
		event   Event
		wantLog bool
	}{
		{
			name:    "enabled",
			enabled: true,
			event: Event{
				Type:      "test_event",
				UserID:    "user-123",
				ClientID:  "client-456",
				IPAddress: "192.168.1.1",
				Details:   map[string]any{"key": "value"},
			},
			wantLog: true,
		},
		{
			name:    "disabled",
			enabled: false,
			event: Event{
				Type:      "test_event",
				UserID:    "user-123",
				ClientID:  "client-456",
				IPAddress: "192.168.1.1",
			},
			wantLog: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			auditor := NewAuditor(logger, tt.enabled)

			auditor.LogEvent(tt.event)

			hasLog := buf.Len() > 0
			if hasLog != tt.wantLog {
				t.Errorf("LogEvent() logged = %v, want %v", hasLog, tt.wantLog)
			}
		})
	}
}

func TestAuditor_EventHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	auditor := NewAuditor(logger, true)

	tests := []struct {
		name      string
		log       func()
		eventType string
	}{
		{
			name:      "token issued",
			log:       func() { auditor.LogTokenIssued("user-123", "client-456", "192.168.1.1", "openid email") },
			eventType: EventTokenIssued,
		},
		{
			name:      "token refreshed",
			log:       func() { auditor.LogTokenRefreshed("user-123", "client-456", "192.168.1.1", "openid") },
			eventType: EventTokenRefreshed,
		},
		{
			name:      "token revoked",
			log:       func() { auditor.LogTokenRevoked("user-123", "client-456", "192.168.1.1", "refresh_token") },
			eventType: EventTokenRevoked,
		},
		{
			name:      "consent granted",
			log:       func() { auditor.LogConsentGranted("user-123", "client-456", "192.168.1.1", "openid") },
			eventType: EventConsentGranted,
		},
		{
			name:      "consent denied",
			log:       func() { auditor.LogConsentDenied("user-123", "client-456", "192.168.1.1") },
			eventType: EventConsentDenied,
		},
		{
			name:      "consent revoked",
			log:       func() { auditor.LogConsentRevoked("user-123", "client-456", "192.168.1.1") },
			eventType: EventConsentRevoked,
		},
		{
			name:      "auth failure",
			log:       func() { auditor.LogAuthFailure("user-123", "client-456", "192.168.1.1", "invalid credentials") },
			eventType: EventAuthFailure,
		},
		{
			name:      "login failure",
			log:       func() { auditor.LogLoginFailure("192.168.1.1", "wrong password") },
			eventType: EventLoginFailure,
		},
		{
			name:      "rate limit exceeded",
			log:       func() { auditor.LogRateLimitExceeded("192.168.1.1", "user-123") },
			eventType: EventRateLimitExceeded,
		},
		{
			name:      "client registered",
			log:       func() { auditor.LogClientRegistered("client-123", "Example App", "192.168.1.1") },
			eventType: EventClientRegistered,
		},
		{
			name:      "client secret rotated",
			log:       func() { auditor.LogClientSecretRotated("client-123", "192.168.1.1") },
			eventType: EventClientSecretRotated,
		},
		{
			name:      "suspicious activity",
			log:       func() { auditor.LogSuspiciousActivity("user-123", "client-456", "192.168.1.1", "unusual pattern") },
			eventType: EventSuspiciousActivity,
		},
		{
			name:      "invalid redirect",
			log:       func() { auditor.LogInvalidRedirect("client-123", "192.168.1.1", "https://evil.com", "not registered") },
			eventType: EventInvalidRedirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			if buf.Len() == 0 {
				t.Fatal("expected log output")
			}
			if !bytes.Contains(buf.Bytes(), []byte(tt.eventType)) {
				t.Errorf("log output missing event type %q: %s", tt.eventType, buf.String())
			}
		})
	}
}

func Test_hashForLogging(t *testing.T) {
	tests := []struct {
		name      string
		sensitive string
		want      string
	}{
		{
			name:      "empty string",
			sensitive: "",
			want:      "<empty>",
		},
		{
			name:      "non-empty string",
			sensitive: "sensitive-data",
			want:      "", // We just verify it's not empty and not the original
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hashForLogging(tt.sensitive)
			if tt.sensitive == "" {
				if got != tt.want {
					t.Errorf("hashForLogging() = %q, want %q", got, tt.want)
				}
			} else {
				if got == "" {
					t.Error("hashForLogging() returned empty string for non-empty input")
				}
				if got == tt.sensitive {
					t.Error("hashForLogging() returned unhashed sensitive data")
				}
				// Should be 16 characters (truncated hash)
				if len(got) != 16 {
					t.Errorf("hashForLogging() returned hash of length %d, want 16", len(got))
				}
			}
		})
	}
}

func Test_hashForLogging_Deterministic(t *testing.T) {
	input := "test-data"
	hash1 := hashForLogging(input)
	hash2 := hashForLogging(input)

	if hash1 != hash2 {
		t.Error("hashForLogging() should return same hash for same input")
	}
}

func Test_hashForLogging_Different(t *testing.T) {
	hash1 := hashForLogging("data1")
	hash2 := hashForLogging("data2")

	if hash1 == hash2 {
		t.Error("hashForLogging() should return different hashes for different inputs")
	}
}
