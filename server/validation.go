package server

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/guilherme-hl1ma/project-library-oauth/internal/util"
	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

// validateHTTPSEnforcement ensures that the OAuth server is running over HTTPS
// in production environments. This is a critical security requirement as OAuth
// over HTTP exposes all tokens, authorization codes, and client credentials to
// network interception and man-in-the-middle attacks.
//
// The validation logic:
// - HTTPS URLs: Always allowed (secure)
// - HTTP on localhost: Allowed with warning (development)
// - HTTP on non-localhost: Blocked unless AllowInsecureHTTP=true
func (s *Server) validateHTTPSEnforcement() error {
	// Skip validation if Issuer is empty (will fail elsewhere with more appropriate error)
	if s.Config.Issuer == "" {
		return nil
	}

	issuerURL, err := url.Parse(s.Config.Issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}

	if issuerURL.Scheme == "https" {
		return nil
	}

	if issuerURL.Scheme == "http" {
		hostname := issuerURL.Hostname()

		// Allow localhost for development (with warning)
		if isLocalhostHostname(hostname) {
			if !s.Config.AllowInsecureHTTP {
				s.Logger.Warn("⚠️  DEVELOPMENT WARNING: Running OAuth over HTTP on localhost",
					"issuer", s.Config.Issuer,
					"risk", "Credentials exposed on local network",
					"recommendation", "Use HTTPS even in development for production-like testing",
					"to_suppress", "Set AllowInsecureHTTP=true in Config")
			}
			return nil
		}

		// Non-localhost HTTP is blocked unless explicitly allowed
		if !s.Config.AllowInsecureHTTP {
			return fmt.Errorf(
				"SECURITY ERROR: Issuer must use HTTPS in production (got %s://%s). "+
					"OAuth over HTTP exposes tokens and credentials to interception. "+
					"To run on localhost for development, set AllowInsecureHTTP=true. "+
					"For production, use HTTPS",
				issuerURL.Scheme,
				hostname,
			)
		}

		s.Logger.Error("🚨 CRITICAL SECURITY WARNING: Running OAuth server over HTTP",
			"issuer", s.Config.Issuer,
			"hostname", hostname,
			"risk", "All tokens and credentials exposed to network sniffing and MITM attacks",
			"action_required", "Switch to HTTPS immediately")

		return nil
	}

	// Unknown scheme (not http or https)
	return fmt.Errorf("invalid issuer URL scheme: %s (must be http or https)", issuerURL.Scheme)
}

// isLocalhostHostname checks if a hostname refers to the local machine.
// This includes IPv4 loopback (entire 127.0.0.0/8 range per RFC 1122),
// IPv6 loopback (::1), localhost hostname, and 0.0.0.0 (bind-all in dev).
func isLocalhostHostname(hostname string) bool {
	if hostname == "localhost" || hostname == "0.0.0.0" {
		return true
	}

	// Strip brackets from IPv6 addresses for parsing
	// net.ParseIP doesn't handle brackets, but url.Hostname() may include them
	cleanHostname := hostname
	if len(hostname) > 2 && hostname[0] == '[' && hostname[len(hostname)-1] == ']' {
		cleanHostname = hostname[1 : len(hostname)-1]
	}

	if ip := net.ParseIP(cleanHostname); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

// validateClientMetadata validates redirect URIs at registration time.
// The list must be non-empty; every URI must be absolute (non-empty host)
// and must not contain a fragment.
func validateClientMetadata(redirectURIs []string) error {
	if len(redirectURIs) == 0 {
		return ErrInvalidRedirectURI("at least one redirect_uri is required")
	}

	for _, uri := range redirectURIs {
		parsed, err := url.Parse(uri)
		if err != nil {
			return ErrInvalidRedirectURI(fmt.Sprintf("invalid redirect_uri format: %s", uri))
		}
		if parsed.Host == "" {
			return ErrInvalidRedirectURI(fmt.Sprintf("redirect_uri must be absolute with a host component: %s", uri))
		}
		if parsed.Fragment != "" {
			return ErrInvalidRedirectURI(fmt.Sprintf("redirect_uri must not contain a fragment: %s", uri))
		}
	}

	return nil
}

// isRegisteredRedirectURI reports whether redirectURI appears verbatim in the
// client's registered set. No normalization happens here: registration-time
// and request-time strings must match exactly.
func isRegisteredRedirectURI(client *storage.Client, redirectURI string) bool {
	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// normalizeRedirectURI strips a single trailing slash so that the form stored
// with an authorization code and the form presented at redemption compare
// equal.
func normalizeRedirectURI(uri string) string {
	return util.NormalizeURL(uri)
}

// normalizeScope collapses whitespace in a requested scope into the canonical
// single-space-joined form.
func normalizeScope(scope string) string {
	return strings.Join(strings.Fields(scope), " ")
}

// validateScopes validates that requested scopes are allowed
func (s *Server) validateScopes(scope string) error {
	// If no scopes configured, allow all
	if len(s.Config.SupportedScopes) == 0 {
		return nil
	}

	if scope == "" {
		return nil // Empty scope is allowed
	}

	for _, reqScope := range strings.Fields(scope) {
		found := false
		for _, supportedScope := range s.Config.SupportedScopes {
			if reqScope == supportedScope {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unsupported scope: %s", reqScope)
		}
	}

	return nil
}

// scopeSubset reports whether every scope token in requested is a member of
// the granted scope set. An empty requested scope is trivially contained.
func scopeSubset(requested, granted string) bool {
	grantedSet := make(map[string]struct{})
	for _, g := range strings.Fields(granted) {
		grantedSet[g] = struct{}{}
	}

	for _, r := range strings.Fields(requested) {
		if _, ok := grantedSet[r]; !ok {
			return false
		}
	}

	return true
}
