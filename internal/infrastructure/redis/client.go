package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client. It holds the session revocation denylist and
// the cross-instance dashboard stats cache.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Revoke denylists a session token ID until its natural expiry.
func (c *Client) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, revocationKey(tokenID), "1", ttl).Err()
}

// IsRevoked reports whether a session token ID has been denylisted.
func (c *Client) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := c.rdb.Get(ctx, revocationKey(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetStats stores serialized dashboard stats for a tenant.
func (c *Client) SetStats(ctx context.Context, tenantID string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, statsKey(tenantID), payload, ttl).Err()
}

// GetStats returns serialized dashboard stats for a tenant, or nil on miss.
func (c *Client) GetStats(ctx context.Context, tenantID string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, statsKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func revocationKey(tokenID string) string { return "session:revoked:" + tokenID }

func statsKey(tenantID string) string { return "stats:" + tenantID }
