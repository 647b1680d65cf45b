package models

import (
	"time"

	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
)

// NameRecord is one registered name.
//
// Invariants:
//   - Name is immutable, unique, 1..MaxNameLen bytes
//   - Metadata is at most MaxMetadataLen bytes
//   - ExpiresAt strictly increases on every renewal
//   - only Owner may change Metadata or renew
//
// Expiry is advisory: an expired record stays owned, renewable and mutable.
// Nothing reclaims it for another registrant.
type NameRecord struct {
	Owner     id.Identity `json:"owner"`
	Name      string      `json:"name"`
	Metadata  string      `json:"metadata"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NameStatus is the advisory lifecycle state shown to users.
type NameStatus string

const (
	NameStatusActive   NameStatus = "active"
	NameStatusExpiring NameStatus = "expiring"
	NameStatusExpired  NameStatus = "expired"
)

func ValidateName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if len(name) > MaxNameLen {
		return dErrors.New(dErrors.CodeNameTooLong, "name is too long")
	}
	return nil
}

func ValidateMetadata(metadata string) error {
	if len(metadata) > MaxMetadataLen {
		return dErrors.New(dErrors.CodeMetadataTooLong, "metadata is too long")
	}
	return nil
}

// NewNameRecord builds a record valid for OneYear from now.
func NewNameRecord(owner id.Identity, name, metadata string, now time.Time) (*NameRecord, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner identity is required")
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateMetadata(metadata); err != nil {
		return nil, err
	}
	return &NameRecord{
		Owner:     owner,
		Name:      name,
		Metadata:  metadata,
		ExpiresAt: now.Add(OneYear),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RequireOwner is the capability check shared by every owner-only operation.
func RequireOwner(caller id.Identity, record *NameRecord) error {
	if record == nil || caller.IsZero() || caller != record.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not own this name")
	}
	return nil
}

// RenewalExpiry is the expiry a renewal at now produces. Renewal restarts the
// validity period from now; unexpired time is not carried over.
func (r *NameRecord) RenewalExpiry(now time.Time) time.Time {
	return now.Add(OneYear)
}

// CanRenew checks that renewing at now moves the expiry forward.
func (r *NameRecord) CanRenew(now time.Time) error {
	if !r.RenewalExpiry(now).After(r.ExpiresAt) {
		return dErrors.New(dErrors.CodeInvariantViolation, "renewal would not extend the expiry")
	}
	return nil
}

// ApplyRenewal resets the expiry. Call CanRenew first.
func (r *NameRecord) ApplyRenewal(now time.Time) {
	r.ExpiresAt = r.RenewalExpiry(now)
	r.UpdatedAt = now
}

// ApplyMetadata replaces the metadata after validating its length.
func (r *NameRecord) ApplyMetadata(metadata string, now time.Time) error {
	if err := ValidateMetadata(metadata); err != nil {
		return err
	}
	r.Metadata = metadata
	r.UpdatedAt = now
	return nil
}

func (r *NameRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r *NameRecord) Status(now time.Time) NameStatus {
	switch {
	case r.IsExpired(now):
		return NameStatusExpired
	case now.After(r.ExpiresAt.Add(-ExpiringWindow)):
		return NameStatusExpiring
	default:
		return NameStatusActive
	}
}
