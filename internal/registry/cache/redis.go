package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sns/internal/registry/models"
	id "sns/pkg/domain"
)

const keyPrefix = "sns:name:"

// Redis shares resolved records across daemon replicas. Backend errors are
// logged and reported as misses.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func cacheKey(name string) string {
	return keyPrefix + id.NameKey(name).Hex()
}

func (r *Redis) Get(ctx context.Context, name string) (*models.NameRecord, bool) {
	raw, err := r.client.Get(ctx, cacheKey(name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "name cache read failed", "name", name, "error", err)
		}
		return nil, false
	}
	var rec models.NameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		r.logger.WarnContext(ctx, "name cache entry undecodable", "name", name, "error", err)
		return nil, false
	}
	return &rec, true
}

func (r *Redis) Set(ctx context.Context, record *models.NameRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		r.logger.WarnContext(ctx, "name cache encode failed", "name", record.Name, "error", err)
		return
	}
	if err := r.client.Set(ctx, cacheKey(record.Name), raw, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "name cache write failed", "name", record.Name, "error", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, name string) {
	if err := r.client.Del(ctx, cacheKey(name)).Err(); err != nil {
		r.logger.WarnContext(ctx, "name cache invalidate failed", "name", name, "error", err)
	}
}
