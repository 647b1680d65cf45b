// Package ports declares the substrate capabilities the registry consumes.
// Stores implement them; the service depends only on these interfaces.
package ports

import (
	"context"

	"github.com/google/uuid"

	"sns/internal/registry/models"
	id "sns/pkg/domain"
)

// Ledger holds balances keyed by identity. Transfer returns
// sentinel.ErrInsufficientFunds when from cannot cover amount.
type Ledger interface {
	Balance(ctx context.Context, account id.Identity) (uint64, error)
	Transfer(ctx context.Context, from, to id.Identity, amount uint64) error
}

// Store is the record set. Create methods are create-if-absent and return
// sentinel.ErrAlreadyExists on a live key; lookups return sentinel.ErrNotFound.
// Reads made through a transactional Store lock the rows they return until
// the transaction ends.
type Store interface {
	Ledger

	CreateConfig(ctx context.Context, cfg *models.Config) error
	GetConfig(ctx context.Context) (*models.Config, error)

	CreateName(ctx context.Context, record *models.NameRecord) error
	GetName(ctx context.Context, name string) (*models.NameRecord, error)
	UpdateName(ctx context.Context, record *models.NameRecord) error
	// ListNames returns records sorted by name, filtered by owner when non-nil.
	ListNames(ctx context.Context, owner *id.Identity) ([]*models.NameRecord, error)

	PutReverse(ctx context.Context, record *models.ReverseRecord) error
	GetReverse(ctx context.Context, owner id.Identity) (*models.ReverseRecord, error)
	ListReverse(ctx context.Context) ([]*models.ReverseRecord, error)

	AppendEvent(ctx context.Context, event *models.Event) error
}

// Transactor runs fn as one atomic, serializable unit. fn must use the ctx and
// Store it is handed; nothing it wrote is visible if it returns an error.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Substrate is a Store that can also open transactions over itself.
type Substrate interface {
	Store
	Transactor
}

// Outbox is the relay side of the event log.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]*models.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
