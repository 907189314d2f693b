package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type cachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache is a read-through cache of order status; the database stays the source of truth.
type StatusCache struct {
	Client *redis.Client
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (string, bool) {
	s, err := c.Client.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil || s == "" {
		return "", false
	}
	var cs cachedStatus
	if err := json.Unmarshal([]byte(s), &cs); err != nil || cs.Status == "" {
		return "", false
	}
	return cs.Status, true
}

func (c *StatusCache) Set(ctx context.Context, orderID, status string) error {
	b, err := json.Marshal(cachedStatus{Status: status, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// Dedup marks event ids as seen per consuming service.
type Dedup struct {
	Client  *redis.Client
	Service string
}

// Claim returns true the first time id is seen. Redis failures let the event through.
func (d *Dedup) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.Client.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return true, err
	}
	return ok, nil
}

// Release forgets id so a failed handler can be retried.
func (d *Dedup) Release(ctx context.Context, id string) error {
	return d.Client.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
