// Package redis mirrors live incident state into Redis so reads during an
// emergency avoid the durable store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/model"
)

// Config defines the Redis connection parameters.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SetDefaults applies defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// Mirror is a TTL-bound incident cache on Redis.
type Mirror struct {
	client *redis.Client
	log    logger.Logger
}

// Connect opens a client and verifies connectivity.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Mirror{client: client, log: log}, nil
}

// Close releases the underlying client.
func (m *Mirror) Close() error { return m.client.Close() }

func incidentKey(id string) string { return "emergency:" + id }

// Put stores the incident under its key with the given TTL.
func (m *Mirror) Put(ctx context.Context, inc model.Incident, ttl time.Duration) error {
	data, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}
	if err := m.client.Set(ctx, incidentKey(inc.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set incident %s: %w", inc.ID, err)
	}
	return nil
}

// Get returns the mirrored incident, reporting a miss when the key is
// absent or expired.
func (m *Mirror) Get(ctx context.Context, id string) (model.Incident, bool, error) {
	data, err := m.client.Get(ctx, incidentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Incident{}, false, nil
		}
		return model.Incident{}, false, fmt.Errorf("get incident %s: %w", id, err)
	}
	var inc model.Incident
	if err := json.Unmarshal(data, &inc); err != nil {
		m.log.Warnf("dropping undecodable incident mirror %s: %v", id, err)
		return model.Incident{}, false, nil
	}
	return inc, true, nil
}

// Delete removes the mirror entry. Missing keys are not an error.
func (m *Mirror) Delete(ctx context.Context, id string) error {
	if err := m.client.Del(ctx, incidentKey(id)).Err(); err != nil {
		return fmt.Errorf("delete incident %s: %w", id, err)
	}
	return nil
}
