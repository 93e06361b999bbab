package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Blacklist records revoked tokens until they would have expired anyway.
type Blacklist interface {
	// Revoke marks a token as unusable for the given remaining lifetime.
	Revoke(ctx context.Context, token string, ttl time.Duration) error

	// IsRevoked reports whether a token has been revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisBlacklist stores revoked tokens as expiring Redis keys. The TTL is
// the token's remaining lifetime, so entries clean themselves up.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist connects to Redis and verifies the connection.
func NewRedisBlacklist(ctx context.Context, redisURL string) (*RedisBlacklist, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBlacklist{client: client}, nil
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired, nothing to record.
		return nil
	}

	err := b.client.Set(ctx, blacklistKey(token), "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	log.Debug().Dur("ttl", ttl).Msg("Revoked token")
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

// Close releases the Redis connection.
func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}

// MemoryBlacklist is an in-process Blacklist for tests and single-node runs.
type MemoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryBlacklist creates an empty in-memory blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{revoked: make(map[string]time.Time)}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.revoked[token] = time.Now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.revoked[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(b.revoked, token)
		return false, nil
	}
	return true, nil
}
