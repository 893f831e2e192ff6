package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/waterworm/waterworm/agent/internal/compute"
	"github.com/waterworm/waterworm/agent/internal/shipper"
)

// Redis keeps the latest reading per source under <prefix>:<source>:latest
// and publishes every reading on <prefix>:progress.
type Redis struct {
	opts   *redis.Options
	prefix string
	client *redis.Client
	owned  bool
}

// NewRedis returns a sink for the server at addr.
func NewRedis(addr, password string, db int, prefix string) *Redis {
	return &Redis{
		opts:   &redis.Options{Addr: addr, Password: password, DB: db},
		prefix: prefix,
	}
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Name() string { return "redis" }

// LatestKey is the key holding the last reading of sourceID.
func (r *Redis) LatestKey(sourceID string) string {
	return r.prefix + ":" + sourceID + ":latest"
}

// Channel is the pub/sub channel readings are published on.
func (r *Redis) Channel() string { return r.prefix + ":progress" }

func (r *Redis) Connect(ctx context.Context) error {
	if r.client == nil {
		r.client = redis.NewClient(r.opts)
		r.owned = true
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("sink: redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Write(ctx context.Context, res *compute.Result) error {
	if r.client == nil {
		return fmt.Errorf("sink: redis: not connected")
	}
	payload, err := json.Marshal(NewRecord(res))
	if err != nil {
		return fmt.Errorf("sink: redis marshal: %v: %w", err, shipper.ErrPermanent)
	}
	if err := r.client.Set(ctx, r.LatestKey(res.SourceID), string(payload), 0).Err(); err != nil {
		return fmt.Errorf("sink: redis set: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(), string(payload)).Err(); err != nil {
		return fmt.Errorf("sink: redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	if r.client == nil || !r.owned {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.owned = false
	return err
}
