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

func nameAttrs(caller id.Identity, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("caller", caller.Hex()),
		attribute.String("name", name),
	}
}

// Register claims name for caller for one year, charging the per-character
// fee. The caller's reverse record is pointed at the new name.
func (s *Service) Register(ctx context.Context, caller id.Identity, name, metadata string) (*models.NameRecord, error) {
	var out *models.NameRecord
	var charged uint64
	err := s.run(ctx, "register", nameAttrs(caller, name), func(ctx context.Context) error {
		now := s.now()
		record, err := models.NewNameRecord(caller, name, metadata, now)
		if err != nil {
			return err
		}
		err = s.store.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
			cfg, err := loadConfig(ctx, store)
			if err != nil {
				return err
			}
			price, err := fees.Price(cfg.PricePerChar, name)
			if err != nil {
				return err
			}
			if err := fees.Settle(ctx, store, caller, price); err != nil {
				return err
			}
			if err := store.CreateName(ctx, record); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyExists) {
					return dErrors.Wrap(err, dErrors.CodeNameTaken, "name already taken")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create name")
			}
			reverse := &models.ReverseRecord{Owner: caller, Name: name, UpdatedAt: now}
			if err := store.PutReverse(ctx, reverse); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set reverse record")
			}
			event := models.NewEvent(models.EventNameRegistered, caller, now)
			event.Name = name
			event.Amount = price
			expires := record.ExpiresAt
			event.ExpiresAt = &expires
			if err := appendEvent(ctx, store, event); err != nil {
				return err
			}
			charged = price
			return nil
		})
		if err != nil {
			return internal(err, "register transaction failed")
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, name)
	s.metrics.AddFeesCollected(charged)
	s.logger.InfoContext(ctx, "name registered",
		"name", out.Name,
		"owner", out.Owner.Hex(),
		"fee", charged,
		"expires_at", out.ExpiresAt,
	)
	return out, nil
}

// Renew resets the expiry of caller's name to one year from now and charges
// the per-character fee again. Expired names stay renewable by their owner.
func (s *Service) Renew(ctx context.Context, caller id.Identity, name string) (*models.NameRecord, error) {
	var out *models.NameRecord
	var charged uint64
	err := s.run(ctx, "renew", nameAttrs(caller, name), func(ctx context.Context) error {
		now := s.now()
		err := s.store.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
			cfg, err := loadConfig(ctx, store)
			if err != nil {
				return err
			}
			record, err := loadName(ctx, store, name)
			if err != nil {
				return err
			}
			if err := models.RequireOwner(caller, record); err != nil {
				return err
			}
			if err := record.CanRenew(now); err != nil {
				return err
			}
			price, err := fees.Price(cfg.PricePerChar, record.Name)
			if err != nil {
				return err
			}
			if err := fees.Settle(ctx, store, caller, price); err != nil {
				return err
			}
			record.ApplyRenewal(now)
			if err := store.UpdateName(ctx, record); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update name")
			}
			event := models.NewEvent(models.EventNameRenewed, caller, now)
			event.Name = record.Name
			event.Amount = price
			expires := record.ExpiresAt
			event.ExpiresAt = &expires
			if err := appendEvent(ctx, store, event); err != nil {
				return err
			}
			out = record
			charged = price
			return nil
		})
		if err != nil {
			out = nil
			return internal(err, "renew transaction failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, name)
	s.metrics.AddFeesCollected(charged)
	s.logger.InfoContext(ctx, "name renewed",
		"name", out.Name,
		"fee", charged,
		"expires_at", out.ExpiresAt,
	)
	return out, nil
}

// UpdateMetadata replaces the metadata of caller's name. No fee is charged.
// Ownership is checked before the metadata length.
func (s *Service) UpdateMetadata(ctx context.Context, caller id.Identity, name, metadata string) (*models.NameRecord, error) {
	var out *models.NameRecord
	err := s.run(ctx, "update_metadata", nameAttrs(caller, name), func(ctx context.Context) error {
		now := s.now()
		err := s.store.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
			record, err := loadName(ctx, store, name)
			if err != nil {
				return err
			}
			if err := models.RequireOwner(caller, record); err != nil {
				return err
			}
			if err := record.ApplyMetadata(metadata, now); err != nil {
				return err
			}
			if err := store.UpdateName(ctx, record); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update name")
			}
			event := models.NewEvent(models.EventMetadataUpdated, caller, now)
			event.Name = record.Name
			if err := appendEvent(ctx, store, event); err != nil {
				return err
			}
			out = record
			return nil
		})
		if err != nil {
			out = nil
			return internal(err, "update metadata transaction failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, name)
	return out, nil
}

// SetReverse points caller's reverse record at name, which caller must own.
func (s *Service) SetReverse(ctx context.Context, caller id.Identity, name string) (*models.ReverseRecord, error) {
	var out *models.ReverseRecord
	err := s.run(ctx, "set_reverse", nameAttrs(caller, name), func(ctx context.Context) error {
		now := s.now()
		err := s.store.RunInTx(ctx, func(ctx context.Context, store ports.Store) error {
			record, err := loadName(ctx, store, name)
			if err != nil {
				return err
			}
			if err := models.RequireOwner(caller, record); err != nil {
				return err
			}
			reverse := &models.ReverseRecord{Owner: caller, Name: record.Name, UpdatedAt: now}
			if err := store.PutReverse(ctx, reverse); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set reverse record")
			}
			event := models.NewEvent(models.EventReverseSet, caller, now)
			event.Name = record.Name
			if err := appendEvent(ctx, store, event); err != nil {
				return err
			}
			out = reverse
			return nil
		})
		if err != nil {
			out = nil
			return internal(err, "set reverse transaction failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
