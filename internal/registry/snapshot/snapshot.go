// Package snapshot exports the registry state as JSON Lines for backups and
// offline audit.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"sns/internal/registry/models"
	id "sns/pkg/domain"
	"sns/pkg/platform/sentinel"
)

const FormatVersion = "1"

// Reader is the read side of the registry store the exporter needs.
type Reader interface {
	GetConfig(ctx context.Context) (*models.Config, error)
	ListNames(ctx context.Context, owner *id.Identity) ([]*models.NameRecord, error)
	ListReverse(ctx context.Context) ([]*models.ReverseRecord, error)
	Balance(ctx context.Context, account id.Identity) (uint64, error)
}

// Destination receives one complete export.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

type header struct {
	Kind           string      `json:"kind"`
	Version        string      `json:"version"`
	Timestamp      time.Time   `json:"timestamp"`
	Custody        id.Identity `json:"custody"`
	CustodyBalance uint64      `json:"custody_balance"`
	NameCount      int         `json:"name_count"`
	ReverseCount   int         `json:"reverse_count"`
}

type line struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

type Exporter struct {
	reader Reader
	now    func() time.Time
}

func NewExporter(reader Reader) *Exporter {
	return &Exporter{reader: reader, now: func() time.Time { return time.Now().UTC() }}
}

// WriteJSONL writes a header line, the config line when initialized, then
// one line per name and reverse record, each sorted by key.
func (e *Exporter) WriteJSONL(ctx context.Context, w io.Writer) error {
	cfg, err := e.reader.GetConfig(ctx)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("get config: %w", err)
	}
	names, err := e.reader.ListNames(ctx, nil)
	if err != nil {
		return fmt.Errorf("list names: %w", err)
	}
	reverses, err := e.reader.ListReverse(ctx)
	if err != nil {
		return fmt.Errorf("list reverse records: %w", err)
	}
	custody := id.CustodyAccount()
	balance, err := e.reader.Balance(ctx, custody)
	if err != nil {
		return fmt.Errorf("custody balance: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(header{
		Kind:           "header",
		Version:        FormatVersion,
		Timestamp:      e.now(),
		Custody:        custody,
		CustodyBalance: balance,
		NameCount:      len(names),
		ReverseCount:   len(reverses),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if cfg != nil {
		if err := enc.Encode(line{Kind: "config", Data: cfg}); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
	}
	for _, n := range names {
		if err := enc.Encode(line{Kind: "name", Data: n}); err != nil {
			return fmt.Errorf("encode name %q: %w", n.Name, err)
		}
	}
	for _, r := range reverses {
		if err := enc.Encode(line{Kind: "reverse", Data: r}); err != nil {
			return fmt.Errorf("encode reverse %s: %w", r.Owner.Hex(), err)
		}
	}
	return nil
}

// Export renders a snapshot and hands it to every destination.
func (e *Exporter) Export(ctx context.Context, destinations ...Destination) (int, error) {
	var buf bytes.Buffer
	if err := e.WriteJSONL(ctx, &buf); err != nil {
		return 0, err
	}
	for _, d := range destinations {
		if err := d.Write(ctx, buf.Bytes()); err != nil {
			return 0, err
		}
	}
	return buf.Len(), nil
}
