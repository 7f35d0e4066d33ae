package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache/keys"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache/redisstore"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Redis shares resolved coordinates between service instances. Keys are
// written without TTL.
type Redis struct {
	cli     kv
	country string
	timeout time.Duration
}

func NewRedis(cli *redisstore.Client, opTimeout time.Duration) *Redis {
	return &Redis{cli: cli, country: "ca", timeout: opTimeout}
}

// returns context with timeout if set
func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Redis) Get(ctx context.Context, key string) (model.Coordinate, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := r.cli.Get(ctx, keys.Geocode(r.country, key))
	if errors.Is(err, redisstore.ErrNotFound) {
		return model.Coordinate{}, false, nil
	}
	if err != nil {
		return model.Coordinate{}, false, err
	}

	var c model.Coordinate
	if err := json.Unmarshal(b, &c); err != nil {
		return model.Coordinate{}, false, fmt.Errorf("decode cached coordinate %q: %w", key, err)
	}
	if !c.Valid() {
		return model.Coordinate{}, false, fmt.Errorf("cached coordinate %q out of range: %s", key, c)
	}
	return c, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, v model.Coordinate) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode coordinate: %w", err)
	}
	return r.cli.Set(ctx, keys.Geocode(r.country, key), b, 0)
}
