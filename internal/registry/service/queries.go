package service

import (
	"context"
	"errors"

	"sns/internal/registry/fees"
	"sns/internal/registry/models"
	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
	"sns/pkg/platform/sentinel"
)

// CustodyStatus reports the custody balance and the amount Withdraw would move.
type CustodyStatus struct {
	Account      id.Identity `json:"account"`
	Balance      uint64      `json:"balance"`
	Reserve      uint64      `json:"reserve"`
	Withdrawable uint64      `json:"withdrawable"`
}

func (s *Service) GetConfig(ctx context.Context) (*models.Config, error) {
	return loadConfig(ctx, s.store)
}

// Quote returns the fee for registering or renewing name at the current price.
func (s *Service) Quote(ctx context.Context, name string) (uint64, error) {
	if err := models.ValidateName(name); err != nil {
		return 0, err
	}
	cfg, err := loadConfig(ctx, s.store)
	if err != nil {
		return 0, err
	}
	return fees.Price(cfg.PricePerChar, name)
}

// Resolve returns the record for name, consulting the cache first.
func (s *Service) Resolve(ctx context.Context, name string) (*models.NameRecord, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return loadName(ctx, s.store, name)
	}
	if record, ok := s.cache.Get(ctx, name); ok {
		return record, nil
	}
	gen := s.cacheGeneration()
	record, err := loadName(ctx, s.store, name)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, gen, record)
	return record, nil
}

func (s *Service) ReverseLookup(ctx context.Context, owner id.Identity) (*models.ReverseRecord, error) {
	record, err := s.store.GetReverse(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "reverse record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reverse record")
	}
	return record, nil
}

// ListNames returns all records sorted by name, limited to owner when set.
func (s *Service) ListNames(ctx context.Context, owner *id.Identity) ([]*models.NameRecord, error) {
	records, err := s.store.ListNames(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list names")
	}
	return records, nil
}

// CustodyBalance reports custody against the reserve recorded in the config.
func (s *Service) CustodyBalance(ctx context.Context) (*CustodyStatus, error) {
	cfg, err := loadConfig(ctx, s.store)
	if err != nil {
		return nil, err
	}
	custody := id.CustodyAccount()
	balance, err := s.store.Balance(ctx, custody)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read custody balance")
	}
	status := &CustodyStatus{Account: custody, Balance: balance, Reserve: cfg.MinimumReserve}
	if balance > cfg.MinimumReserve {
		status.Withdrawable = balance - cfg.MinimumReserve
	}
	return status, nil
}
