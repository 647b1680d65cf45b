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

// Withdraw moves every unit above the reserve recorded in the config from
// custody to the treasury. Only the admin may call it and only toward the configured treasury.
func (s *Service) Withdraw(ctx context.Context, caller, treasury id.Identity) (uint64, error) {
	var amount uint64
	attrs := []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.String("treasury", treasury.Hex()),
	}
	err := s.run(ctx, "withdraw", attrs, func(ctx context.Context) error {
		err := s.store.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
			cfg, err := loadConfig(ctx, store)
			if err != nil {
				return err
			}
			if err := cfg.AuthorizeWithdrawal(caller, treasury); err != nil {
				return err
			}
			custody := id.CustodyAccount()
			balance, err := store.Balance(ctx, custody)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read custody balance")
			}
			available, err := fees.Withdrawable(balance, cfg.MinimumReserve)
			if err != nil {
				return err
			}
			if err := store.Transfer(ctx, custody, cfg.Treasury, available); err != nil {
				if errors.Is(err, sentinel.ErrInsufficientFunds) {
					return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "custody balance changed during withdrawal")
				}
				if errors.Is(err, sentinel.ErrOverflow) {
					return dErrors.Wrap(err, dErrors.CodeBalanceOverflow, "treasury balance would exceed the ledger's unit range")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer fees")
			}
			event := models.NewEvent(models.EventFeesWithdrawn, caller, s.now())
			event.Amount = available
			if err := appendEvent(ctx, store, event); err != nil {
				return err
			}
			amount = available
			return nil
		})
		if err != nil {
			amount = 0
			return internal(err, "withdraw transaction failed")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddFeesWithdrawn(amount)
	s.logger.InfoContext(ctx, "fees withdrawn",
		"treasury", treasury.Hex(),
		"amount", amount,
	)
	return amount, nil
}
