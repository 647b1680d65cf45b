package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"sns/internal/registry/models"
)

const SubjectPrefix = "sns.registry."

// Conn is the part of *nats.Conn the NATS sink uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSSink publishes each event on a subject named after its type, e.g.
// sns.registry.name_registered.
type NATSSink struct {
	conn Conn
}

func NewNATSSink(conn Conn) *NATSSink {
	return &NATSSink{conn: conn}
}

func Subject(t models.EventType) string {
	return SubjectPrefix + string(t)
}

func (n *NATSSink) Publish(ctx context.Context, events []*models.Event) error {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		if err := n.conn.Publish(Subject(e.Type), data); err != nil {
			return fmt.Errorf("publish event %s: %w", e.ID, err)
		}
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
