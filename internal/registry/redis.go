// Package registry implements an optional, off-by-default session
// registry for tracking active sender/receiver streams in Redis. Nothing
// in the core pipeline calls this; it is wired up only when a deployment
// passes --redis-addr.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"karl/internal/obs"
)

// SessionRegistry records one entry per active SSRC stream, keyed by
// session ID, with a TTL so a crashed process's entries expire on their
// own rather than needing an explicit cleanup pass.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRegistry connects to addr and verifies reachability with Ping.
func NewSessionRegistry(addr string, ttl time.Duration) (*SessionRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, obs.NewError(err, obs.CodeResource, "registry", "NewSessionRegistry")
	}

	obs.Infof("✅ session registry connected to %s", addr)
	return &SessionRegistry{client: client, ttl: ttl}, nil
}

// RegisterStream records an active stream's SSRC and remote address.
func (r *SessionRegistry) RegisterStream(ctx context.Context, sessionID string, ssrc uint32, remoteAddr string) error {
	key := sessionKey(sessionID)
	value := fmt.Sprintf("%d|%s", ssrc, remoteAddr)
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return obs.NewError(err, obs.CodeResource, "registry", "RegisterStream")
	}
	return nil
}

// Touch refreshes a stream's TTL. cmd/sender and cmd/receiver do not call
// it, so their entries expire ttl after RegisterStream.
func (r *SessionRegistry) Touch(ctx context.Context, sessionID string) error {
	if err := r.client.Expire(ctx, sessionKey(sessionID), r.ttl).Err(); err != nil {
		return obs.NewError(err, obs.CodeResource, "registry", "Touch")
	}
	return nil
}

// Unregister removes a stream's entry, called on clean shutdown.
func (r *SessionRegistry) Unregister(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return obs.NewError(err, obs.CodeResource, "registry", "Unregister")
	}
	return nil
}

// Close releases the Redis client.
func (r *SessionRegistry) Close() error {
	return r.client.Close()
}

func sessionKey(sessionID string) string {
	return "karl:session:" + sessionID
}
