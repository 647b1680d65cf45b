// Package cache holds read-through caches for resolved name records. A miss
// is always safe: the service falls back to the store.
package cache

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"sns/internal/registry/models"
)

const DefaultTTL = 30 * time.Second

// Memory caches records in process.
type Memory struct {
	cache  *gocache.Cache
	logger *slog.Logger
}

func NewMemory(ttl time.Duration, logger *slog.Logger) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Memory{cache: gocache.New(ttl, 2*ttl), logger: logger}
}

func (m *Memory) Get(ctx context.Context, name string) (*models.NameRecord, bool) {
	value, found := m.cache.Get(name)
	if !found {
		return nil, false
	}
	rec, ok := value.(models.NameRecord)
	if !ok {
		m.logger.ErrorContext(ctx, "unexpected cache entry type", "name", name)
		return nil, false
	}
	return &rec, true
}

// Set stores a copy so later mutations by the caller are not visible.
func (m *Memory) Set(_ context.Context, record *models.NameRecord) {
	m.cache.Set(record.Name, *record, gocache.DefaultExpiration)
}

func (m *Memory) Invalidate(_ context.Context, name string) {
	m.cache.Delete(name)
}
