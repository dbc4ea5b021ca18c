package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/relabs-ai/agentchain/types"
)

// RedisConfig holds connection settings for the Redis history store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	PoolSize  int    `yaml:"pool_size"`
}

// RedisHistoryStore is a Redis-based implementation of HistoryStore.
// Suitable for distributed production deployments. Entries are stored as
// JSON in a per-session list, preserving commit order.
type RedisHistoryStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisHistoryStore connects to Redis and verifies the connection.
func NewRedisHistoryStore(cfg RedisConfig) (*RedisHistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "agentchain:"
	}

	return &RedisHistoryStore{
		client:    client,
		keyPrefix: keyPrefix + "history:",
	}, nil
}

func (s *RedisHistoryStore) sessionKey(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Append persists a single entry.
func (s *RedisHistoryStore) Append(ctx context.Context, entry types.HistoryEntry) error {
	if entry.SessionID == "" {
		return ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return s.client.RPush(ctx, s.sessionKey(entry.SessionID), data).Err()
}

// List returns all entries for a session in commit order.
func (s *RedisHistoryStore) List(ctx context.Context, sessionID string) ([]types.HistoryEntry, error) {
	raw, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	entries := make([]types.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry types.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping checks if the store is healthy.
func (s *RedisHistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store.
func (s *RedisHistoryStore) Close() error {
	return s.client.Close()
}
