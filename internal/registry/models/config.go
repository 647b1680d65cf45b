package models

import (
	"time"

	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
)

// Config is the registry singleton.
//
// Invariants:
//   - exactly one Config exists; creation goes through the store's
//     create-if-absent primitive
//   - no field changes after creation; only the custody balance moves
//   - Admin and Treasury are non-zero identities
//   - MinimumReserve is fixed at creation; Withdraw never leaves custody below it
type Config struct {
	Admin          id.Identity `json:"admin"`
	Treasury       id.Identity `json:"treasury"`
	PricePerChar   uint64      `json:"price_per_char"`
	MinimumReserve uint64      `json:"minimum_reserve"`
	CreatedAt      time.Time   `json:"created_at"`
}

func NewConfig(admin, treasury id.Identity, pricePerChar, minimumReserve uint64, now time.Time) (*Config, error) {
	if admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "admin identity is required")
	}
	if treasury.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "treasury identity is required")
	}
	return &Config{
		Admin:          admin,
		Treasury:       treasury,
		PricePerChar:   pricePerChar,
		MinimumReserve: minimumReserve,
		CreatedAt:      now,
	}, nil
}

// AuthorizeWithdrawal checks the caller is the admin and the destination is
// the configured treasury.
func (c *Config) AuthorizeWithdrawal(caller, treasury id.Identity) error {
	if caller != c.Admin {
		return dErrors.New(dErrors.CodeUnauthorized, "only the registry admin may withdraw fees")
	}
	if treasury != c.Treasury {
		return dErrors.New(dErrors.CodeUnauthorized, "withdrawal destination is not the registry treasury")
	}
	return nil
}
