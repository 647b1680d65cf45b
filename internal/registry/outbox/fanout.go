package outbox

import (
	"context"
	"errors"

	"sns/internal/registry/models"
)

// Fanout publishes every batch to all sinks. The batch counts as published
// only when all of them accept it; a retry may duplicate events on sinks that
// already succeeded.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, events []*models.Event) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
