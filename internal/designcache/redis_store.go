// Package designcache provides draft storage for in-progress card designs.
// Drafts live under a versioned key prefix; bumping the schema version
// deliberately strands every draft written under the old one instead of
// attempting migration.
package designcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardsmith/api/internal/card"
)

// SchemaVersion is baked into every draft key.
const SchemaVersion = "v3"

// DefaultTTL is how long an untouched draft survives.
const DefaultTTL = 14 * 24 * time.Hour

// ErrDraftNotFound is returned when no draft exists under the current
// schema version.
var ErrDraftNotFound = errors.New("draft not found")

// draftEnvelope is the stored form: the document plus the write time.
type draftEnvelope struct {
	Document *card.Document `json:"document"`
	SavedAt  time.Time      `json:"savedAt"`
}

// RedisStore implements draft storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed draft store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "carddraft:" + SchemaVersion + ":",
		ttl:    DefaultTTL,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// SaveDraft stores a draft document for a session, resetting its TTL.
func (s *RedisStore) SaveDraft(ctx context.Context, sessionID string, doc *card.Document) error {
	envelope := draftEnvelope{Document: doc, SavedAt: time.Now().UTC()}
	jsonData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft retrieves a session's draft. Drafts from older schema versions
// are invisible, they live under a different prefix and age out on TTL.
func (s *RedisStore) LoadDraft(ctx context.Context, sessionID string) (*card.Document, time.Time, error) {
	jsonData, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, time.Time{}, ErrDraftNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load draft: %w", err)
	}

	var envelope draftEnvelope
	if err := json.Unmarshal([]byte(jsonData), &envelope); err != nil {
		// A corrupt draft is treated as absent rather than a fatal load.
		return nil, time.Time{}, ErrDraftNotFound
	}
	if envelope.Document == nil {
		return nil, time.Time{}, ErrDraftNotFound
	}
	envelope.Document.Normalize()
	return envelope.Document, envelope.SavedAt, nil
}

// DeleteDraft removes a session's draft.
func (s *RedisStore) DeleteDraft(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
