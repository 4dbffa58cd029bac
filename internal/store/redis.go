package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list the API pushes recognition jobs onto and
// the worker drains.
const DefaultQueueKey = "classtrack:recognitions"

// Redis wraps the client shared by the recognition queue and the health
// endpoint.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects with timeouts sized for the queue: dials fail fast, but
// reads stay above the worker's 5s BRPOP block so blocking pops do not trip
// the client-side deadline.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     8,
		MinIdleConns: 1,
	})
	return &Redis{Client: client}
}

// Healthy reports whether Redis answers a ping. A nil receiver reports
// unhealthy, so deployments running the in-memory queue skip the check
// without a client configured.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
