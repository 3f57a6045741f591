package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WarmStore implements the warm storage tier on Redis: shared across
// processes, every entry carries an explicit TTL.
type WarmStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewWarmStore creates a Redis-backed warm store.
func NewWarmStore(client *redis.Client, logger *zap.Logger) *WarmStore {
	return &WarmStore{client: client, logger: logger}
}

// Put stores a value with a TTL.
func (s *WarmStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Get reads a value. An absent key is a miss, not an error.
func (s *WarmStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return data, true, nil
}

// Delete removes a value.
func (s *WarmStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Keys scans for all keys with the given prefix.
func (s *WarmStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := prefix + "*"

	var cursor uint64
	var keys []string
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// archiveEnvelope is one archived version with its metadata.
type archiveEnvelope struct {
	Value      json.RawMessage   `json:"value"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// Archive implements the cold tier on Redis lists: each write appends a
// new version, nothing is ever overwritten. Entries carry no TTL; retention
// is the archive operator's policy.
type Archive struct {
	client *redis.Client
	logger *zap.Logger
}

// NewArchive creates a Redis-backed append-only archive.
func NewArchive(client *redis.Client, logger *zap.Logger) *Archive {
	return &Archive{client: client, logger: logger}
}

// Archive appends a new version for the key.
func (a *Archive) Archive(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	envelope := archiveEnvelope{
		Value:      value,
		Metadata:   metadata,
		ArchivedAt: time.Now(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal archive envelope: %w", err)
	}

	if err := a.client.RPush(ctx, archiveKey(key), data).Err(); err != nil {
		return fmt.Errorf("failed to append archive version: %w", err)
	}

	a.logger.Debug("archived",
		zap.String("key", key))
	return nil
}

// Retrieve returns the latest archived version for the key.
func (a *Archive) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := a.client.LIndex(ctx, archiveKey(key), -1).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to retrieve archive version: %w", err)
	}

	var envelope archiveEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal archive envelope: %w", err)
	}
	return envelope.Value, true, nil
}

// Versions returns every archived version for a key, oldest first.
func (a *Archive) Versions(ctx context.Context, key string) ([]json.RawMessage, error) {
	entries, err := a.client.LRange(ctx, archiveKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list archive versions: %w", err)
	}

	out := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		var envelope archiveEnvelope
		if err := json.Unmarshal([]byte(entry), &envelope); err != nil {
			continue
		}
		out = append(out, envelope.Value)
	}
	return out, nil
}

// archiveKey namespaces archive entries away from warm-tier keys.
func archiveKey(key string) string {
	return fmt.Sprintf("stepflow:archive:%s", key)
}
