package service

import (
	"context"
	"time"

	"sns/internal/registry/models"
	"sns/internal/registry/store"
)

type recordingCache struct {
	entries     map[string]*models.NameRecord
	hits        int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*models.NameRecord)}
}

func (c *recordingCache) Get(_ context.Context, name string) (*models.NameRecord, bool) {
	rec, ok := c.entries[name]
	if ok {
		c.hits++
	}
	return rec, ok
}

func (c *recordingCache) Set(_ context.Context, record *models.NameRecord) {
	c.entries[record.Name] = record
}

func (c *recordingCache) Invalidate(_ context.Context, name string) {
	delete(c.entries, name)
	c.invalidated = append(c.invalidated, name)
}

func (s *ServiceSuite) TestResolveCachesAndMutationsInvalidate() {
	cache := newRecordingCache()
	svc, err := New(s.store,
		WithClock(func() time.Time { return s.clock }),
		WithMinimumReserve(testReserve),
		WithCache(cache),
	)
	s.Require().NoError(err)
	s.service = svc
	s.initialize()
	s.fund(alice, 10*testPrice)

	_, err = s.service.Register(s.ctx, alice, "alice", "v1")
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, cache.invalidated)

	first, err := s.service.Resolve(s.ctx, "alice")
	s.Require().NoError(err)
	second, err := s.service.Resolve(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(1, cache.hits)

	_, err = s.service.UpdateMetadata(s.ctx, alice, "alice", "v2")
	s.Require().NoError(err)
	rec, err := s.service.Resolve(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("v2", rec.Metadata)
}

// racingStore runs a mutation after a plain read returns and before the
// caller sees the result, so the read hands back a record that is already
// stale.
type racingStore struct {
	*store.InMemory
	afterRead func()
}

func (r *racingStore) GetName(ctx context.Context, name string) (*models.NameRecord, error) {
	rec, err := r.InMemory.GetName(ctx, name)
	if r.afterRead != nil {
		hook := r.afterRead
		r.afterRead = nil
		hook()
	}
	return rec, err
}

func (s *ServiceSuite) TestResolveDropsFillThatRacedAnUpdate() {
	cache := newRecordingCache()
	racing := &racingStore{InMemory: s.store}
	svc, err := New(racing,
		WithClock(func() time.Time { return s.clock }),
		WithMinimumReserve(testReserve),
		WithCache(cache),
	)
	s.Require().NoError(err)
	s.service = svc
	s.initialize()
	s.fund(alice, 10*testPrice)
	_, err = s.service.Register(s.ctx, alice, "alice", "v1")
	s.Require().NoError(err)

	racing.afterRead = func() {
		_, err := s.service.UpdateMetadata(s.ctx, alice, "alice", "v2")
		s.Require().NoError(err)
	}
	stale, err := s.service.Resolve(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("v1", stale.Metadata)
	s.NotContains(cache.entries, "alice")

	fresh, err := s.service.Resolve(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("v2", fresh.Metadata)
	s.Equal("v2", cache.entries["alice"].Metadata)
}
