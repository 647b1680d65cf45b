package models

import (
	"time"

	"github.com/google/uuid"

	id "sns/pkg/domain"
)

// EventType names a committed registry mutation.
type EventType string

const (
	EventRegistryInitialized EventType = "registry_initialized"
	EventNameRegistered      EventType = "name_registered"
	EventNameRenewed         EventType = "name_renewed"
	EventMetadataUpdated     EventType = "metadata_updated"
	EventReverseSet          EventType = "reverse_set"
	EventFeesWithdrawn       EventType = "fees_withdrawn"
)

// Event is appended to the outbox in the same transaction as the mutation it
// describes and relayed to the broker afterwards.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Type        EventType   `json:"type"`
	Name        string      `json:"name,omitempty"`
	Actor       id.Identity `json:"actor"`
	Amount      uint64      `json:"amount,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
	PublishedAt *time.Time  `json:"-"`
}

func NewEvent(eventType EventType, actor id.Identity, now time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		Actor:      actor,
		OccurredAt: now,
	}
}

// AggregateKey partitions events: per name when present, otherwise per actor.
func (e *Event) AggregateKey() string {
	if e.Name != "" {
		return id.NameKey(e.Name).Hex()
	}
	return e.Actor.Hex()
}
