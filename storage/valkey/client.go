package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/guilherme-hl1ma/project-library-oauth/storage"
)

const (
	// clientIPTrackingTTL is the TTL for client IP tracking keys (24 hours)
	clientIPTrackingTTL = 24 * time.Hour
)

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	data, err := json.Marshal(toClientJSON(client))
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	key := s.clientKey(client.ClientID)

	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	// Generic not-found error prevents client enumeration attacks
	return getAndUnmarshal(ctx, s, s.clientKey(clientID),
		fmt.Errorf("%w: client", storage.ErrNotFound), fromClientJSON)
}

// SaveOwnership records that userID owns clientID
func (s *Store) SaveOwnership(ctx context.Context, clientID, userID string) error {
	if clientID == "" || userID == "" {
		return fmt.Errorf("clientID and userID cannot be empty")
	}

	key := s.ownersKey(clientID)
	if err := s.client.Do(ctx, s.client.B().Sadd().Key(key).Member(userID).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save ownership link: %w", err)
	}

	s.logger.Debug("Saved ownership link", "client_id", clientID, "user_id", userID)
	return nil
}

// HasOwnership reports whether userID has an ownership link to clientID
func (s *Store) HasOwnership(ctx context.Context, clientID, userID string) (bool, error) {
	key := s.ownersKey(clientID)

	isMember, err := s.client.Do(ctx, s.client.B().Sismember().Key(key).Member(userID).Build()).AsBool()
	if err != nil {
		if isNilError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check ownership link: %w", err)
	}

	return isMember, nil
}

// ListClients lists all registered clients
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	// Use SCAN to iterate over all client keys
	pattern := s.clientKey("*")

	// Use a map to deduplicate results (SCAN can return duplicates across iterations)
	clientMap := make(map[string]*storage.Client)

	var cursor uint64
	for {
		result, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanBatchSize).Build(),
		).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan clients: %w", err)
		}

		for _, key := range result.Elements {
			if _, exists := clientMap[key]; exists {
				continue
			}

			data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
			if err != nil {
				if isNilError(err) {
					continue // Key may have been deleted between SCAN and GET
				}
				return nil, fmt.Errorf("failed to get client %s: %w", key, err)
			}

			var j clientJSON
			if err := json.Unmarshal([]byte(data), &j); err != nil {
				s.logger.Warn("Failed to unmarshal client, skipping",
					"key", key,
					"error", err)
				continue
			}

			clientMap[key] = fromClientJSON(&j)
		}

		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}

	clients := make([]*storage.Client, 0, len(clientMap))
	for _, c := range clientMap {
		clients = append(clients, c)
	}

	return clients, nil
}

// CheckIPLimit checks if an IP has reached the client registration limit
func (s *Store) CheckIPLimit(ctx context.Context, ip string, maxClientsPerIP int) error {
	if maxClientsPerIP <= 0 {
		return nil // No limit
	}

	key := s.clientIPKey(ip)

	countStr, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			// No registrations yet for this IP
			return nil
		}
		return fmt.Errorf("failed to check IP limit: %w", err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		// Invalid count, reset to 0
		return nil
	}

	if count >= maxClientsPerIP {
		// SECURITY: Generic error message prevents revealing current count
		// or confirming the IP is being tracked
		s.logger.Warn("Client registration limit reached",
			"ip", ip,
			"current_count", count,
			"max_allowed", maxClientsPerIP)
		return errRateLimitExceeded
	}

	return nil
}

// TrackClientIP increments the client count for an IP address
func (s *Store) TrackClientIP(ctx context.Context, ip string) error {
	key := s.clientIPKey(ip)

	// Use INCR to atomically increment the count
	_, err := s.client.Do(ctx, s.client.B().Incr().Key(key).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to track client IP: %w", err)
	}

	// Set TTL on the key (reset daily)
	if err := s.client.Do(ctx, s.client.B().Expire().Key(key).Seconds(int64(clientIPTrackingTTL.Seconds())).Build()).Error(); err != nil {
		s.logger.Warn("Failed to set TTL on client IP tracking key",
			"ip", ip,
			"error", err)
	}

	return nil
}
