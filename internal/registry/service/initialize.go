package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"sns/internal/registry/fees"
	"sns/internal/registry/models"
	"sns/internal/registry/ports"
	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
	"sns/pkg/platform/sentinel"
)

// Initialize creates the registry config exactly once. The caller funds the
// custody account with the minimum reserve in the same transaction.
func (s *Service) Initialize(ctx context.Context, caller, admin, treasury id.Identity, pricePerChar uint64) (*models.Config, error) {
	var cfg *models.Config
	attrs := []attribute.KeyValue{attribute.String("caller", caller.Hex())}
	err := s.run(ctx, "initialize", attrs, func(ctx context.Context) error {
		created, err := models.NewConfig(admin, treasury, pricePerChar, s.minimumReserve, s.now())
		if err != nil {
			return err
		}
		err = s.store.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
			if err := store.CreateConfig(ctx, created); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyExists) {
					return dErrors.Wrap(err, dErrors.CodeAlreadyInitialized, "registry is already initialized")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry config")
			}
			if err := fees.Settle(ctx, store, caller, created.MinimumReserve); err != nil {
				return err
			}
			event := models.NewEvent(models.EventRegistryInitialized, caller, created.CreatedAt)
			event.Amount = created.MinimumReserve
			return appendEvent(ctx, store, event)
		})
		if err != nil {
			return internal(err, "initialize transaction failed")
		}
		cfg = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registry initialized",
		"admin", cfg.Admin.Hex(),
		"treasury", cfg.Treasury.Hex(),
		"price_per_char", cfg.PricePerChar,
		"minimum_reserve", cfg.MinimumReserve,
	)
	return cfg, nil
}
