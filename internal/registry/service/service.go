// Package service implements the registry operations. Each mutating call runs
// as one substrate transaction: validation, fee settlement, record writes and
// the outbox event commit together or not at all.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sns/internal/registry/metrics"
	"sns/internal/registry/models"
	"sns/internal/registry/ports"
	dErrors "sns/pkg/domain-errors"
	"sns/pkg/platform/sentinel"
)

// NameCache is a read-through cache for resolved names. Implementations must
// tolerate backend failures by reporting a miss.
type NameCache interface {
	Get(ctx context.Context, name string) (*models.NameRecord, bool)
	Set(ctx context.Context, record *models.NameRecord)
	Invalidate(ctx context.Context, name string)
}

// Service orchestrates registry operations over a transactional substrate.
type Service struct {
	store          ports.Substrate
	cache          NameCache
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	now            func() time.Time
	minimumReserve uint64

	// cacheMu orders Resolve's fill against post-commit invalidation;
	// cacheGen counts invalidations so a fill that raced one is dropped.
	cacheMu  sync.Mutex
	cacheGen uint64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(c NameCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithClock overrides the time source. Tests use it to pin expiry arithmetic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMinimumReserve sets the reserve Initialize funds and records in the
// config. It has no effect once the registry is initialized.
func WithMinimumReserve(reserve uint64) Option {
	return func(s *Service) {
		s.minimumReserve = reserve
	}
}

// New constructs a Service. The substrate is required.
func New(store ports.Substrate, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("registry store is required")
	}
	s := &Service{
		store:          store,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer("sns/internal/registry/service"),
		now:            func() time.Time { return time.Now().UTC() },
		minimumReserve: models.DefaultMinimumReserve(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MinimumReserve is the reserve a new Initialize call would fund.
func (s *Service) MinimumReserve() uint64 {
	return s.minimumReserve
}

// run wraps one operation with a span, an outcome metric and failure logging.
func (s *Service) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		code := dErrors.CodeOf(err)
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logFailure(ctx, op, code, err)
	}
	s.metrics.ObserveOperation(op, outcome, start)
	return err
}

func (s *Service) logFailure(ctx context.Context, op string, code dErrors.Code, err error) {
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		s.logger.ErrorContext(ctx, "registry operation failed",
			"operation", op,
			"code", code,
			"error", err,
		)
		return
	}
	s.logger.WarnContext(ctx, "registry operation rejected",
		"operation", op,
		"code", code,
		"error", err,
	)
}

// loadConfig reads the singleton config inside a transaction.
func loadConfig(ctx context.Context, store ports.Store) (*models.Config, error) {
	cfg, err := store.GetConfig(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotInitialized, "registry is not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry config")
	}
	return cfg, nil
}

func loadName(ctx context.Context, store ports.Store, name string) (*models.NameRecord, error) {
	record, err := store.GetName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "name not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load name")
	}
	return record, nil
}

// internal tags uncoded substrate failures; coded errors pass through.
func internal(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func appendEvent(ctx context.Context, store ports.Store, event *models.Event) error {
	if err := store.AppendEvent(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.cache.Invalidate(ctx, name)
}

func (s *Service) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// fillCache stores record unless an invalidation happened since gen was read.
// Invalidations from other processes sharing the cache are not seen here and
// are bounded by the cache TTL.
func (s *Service) fillCache(ctx context.Context, gen uint64, record *models.NameRecord) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen != gen {
		return
	}
	s.cache.Set(ctx, record)
}
