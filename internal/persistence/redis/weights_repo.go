// Package redis implements the learned-weight source against Redis, for
// deployments where the optimizer publishes through a cache instead of the
// database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/argusquant/argusd/internal/weights"
)

// DefaultKey is where the optimizer publishes the active snapshot.
const DefaultKey = "argusd:learned_weights"

const fetchTimeout = 2 * time.Second

// WeightsRepo reads JSON-encoded snapshots from a single Redis key.
type WeightsRepo struct {
	client *goredis.Client
	key    string
}

// NewWeightsRepo connects to Redis and verifies it responds.
func NewWeightsRepo(addr, key string) (*WeightsRepo, error) {
	if key == "" {
		key = DefaultKey
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  fetchTimeout,
		WriteTimeout: fetchTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &WeightsRepo{client: client, key: key}, nil
}

// Close releases the client.
func (r *WeightsRepo) Close() error {
	return r.client.Close()
}

// Fetch returns the published snapshot, or nil when the key is absent.
func (r *WeightsRepo) Fetch(ctx context.Context) (*weights.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}

	var snap weights.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot at %s: %w", r.key, err)
	}
	return &snap, nil
}
