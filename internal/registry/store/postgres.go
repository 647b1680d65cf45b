package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"sns/internal/registry/models"
	"sns/internal/registry/ports"
	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
	"sns/pkg/platform/sentinel"
	txcontext "sns/pkg/platform/tx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultTxTimeout = 5 * time.Second
	uniqueViolation  = "23505"

	// maxUnits is math.MaxUint64; balances above it cannot be read back.
	maxUnits = "18446744073709551615"
)

// PostgresStore persists registry state in PostgreSQL. Methods join the
// transaction carried in ctx when called inside RunInTx and lock the rows they
// read, so concurrent operations on one name or account serialize.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

var (
	_ ports.Substrate = (*PostgresStore)(nil)
	_ ports.Outbox    = (*PostgresStore)(nil)
)

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, txTimeout: defaultTxTimeout}
}

// Open connects to databaseURL and configures the pool.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies pending schema migrations.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside one database transaction. A context without a
// deadline gets the default transaction timeout.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFor(ctx, s.db)
}

// lockClause returns a row lock suffix when ctx carries a transaction.
func lockClause(ctx context.Context) string {
	return lockMode(ctx, " FOR UPDATE")
}

func lockMode(ctx context.Context, mode string) string {
	if _, ok := txcontext.From(ctx); ok {
		return mode
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func units(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUnits(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse units %q: %w", s, err)
	}
	return v, nil
}

// Credit mints amount into account. A credit that would take the balance past
// the uint64 range updates nothing and returns sentinel.ErrOverflow.
func (s *PostgresStore) Credit(ctx context.Context, account id.Identity, amount uint64) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO accounts (identity, balance, updated_at) VALUES ($1, $2::numeric, now())
		ON CONFLICT (identity) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()
		WHERE accounts.balance + EXCLUDED.balance <= `+maxUnits,
		account.Hex(), units(amount))
	if err != nil {
		return fmt.Errorf("credit %s: %w", account.Hex(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit %s: %w", account.Hex(), err)
	}
	if n == 0 {
		return fmt.Errorf("credit %s: %w", account.Hex(), sentinel.ErrOverflow)
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, account id.Identity) (uint64, error) {
	var raw string
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT balance::text FROM accounts WHERE identity = $1`+lockClause(ctx),
		account.Hex()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", account.Hex(), err)
	}
	return parseUnits(raw)
}

// Transfer debits from and credits to atomically. Outside RunInTx it opens
// its own transaction.
func (s *PostgresStore) Transfer(ctx context.Context, from, to id.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, ok := txcontext.From(ctx); !ok {
		return s.RunInTx(ctx, func(ctx context.Context, _ ports.Store) error {
			return s.transfer(ctx, from, to, amount)
		})
	}
	return s.transfer(ctx, from, to, amount)
}

func (s *PostgresStore) transfer(ctx context.Context, from, to id.Identity, amount uint64) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE accounts SET balance = balance - $2::numeric, updated_at = now()
		WHERE identity = $1 AND balance >= $2::numeric`,
		from.Hex(), units(amount))
	if err != nil {
		return fmt.Errorf("debit %s: %w", from.Hex(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit %s: %w", from.Hex(), err)
	}
	if n == 0 {
		return fmt.Errorf("debit %s: %w", from.Hex(), sentinel.ErrInsufficientFunds)
	}
	return s.Credit(ctx, to, amount)
}

func (s *PostgresStore) CreateConfig(ctx context.Context, cfg *models.Config) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO registry_config (id, admin, treasury, price_per_char, minimum_reserve, created_at)
		VALUES (1, $1, $2, $3::numeric, $4::numeric, $5)`,
		cfg.Admin.Hex(), cfg.Treasury.Hex(), units(cfg.PricePerChar), units(cfg.MinimumReserve), cfg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create config: %w", sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("create config: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConfig(ctx context.Context) (*models.Config, error) {
	var admin, treasury, price, reserve string
	var cfg models.Config
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT admin, treasury, price_per_char::text, minimum_reserve::text, created_at FROM registry_config WHERE id = 1`+lockMode(ctx, " FOR SHARE"),
	).Scan(&admin, &treasury, &price, &reserve, &cfg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get config: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	if cfg.Admin, err = id.ParseIdentity(admin); err != nil {
		return nil, fmt.Errorf("get config admin: %w", err)
	}
	if cfg.Treasury, err = id.ParseIdentity(treasury); err != nil {
		return nil, fmt.Errorf("get config treasury: %w", err)
	}
	if cfg.PricePerChar, err = parseUnits(price); err != nil {
		return nil, err
	}
	if cfg.MinimumReserve, err = parseUnits(reserve); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const nameColumns = `name, owner, metadata, expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanName(row rowScanner) (*models.NameRecord, error) {
	var rec models.NameRecord
	var owner string
	if err := row.Scan(&rec.Name, &owner, &rec.Metadata, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseIdentity(owner)
	if err != nil {
		return nil, fmt.Errorf("name %q owner: %w", rec.Name, err)
	}
	rec.Owner = parsed
	return &rec, nil
}

func (s *PostgresStore) CreateName(ctx context.Context, record *models.NameRecord) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO name_records (`+nameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.Name, record.Owner.Hex(), record.Metadata, record.ExpiresAt, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create name %q: %w", record.Name, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("create name %q: %w", record.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetName(ctx context.Context, name string) (*models.NameRecord, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+nameColumns+` FROM name_records WHERE name = $1`+lockClause(ctx), name)
	rec, err := scanName(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get name %q: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get name %q: %w", name, err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateName(ctx context.Context, record *models.NameRecord) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE name_records SET metadata = $2, expires_at = $3, updated_at = $4
		WHERE name = $1`,
		record.Name, record.Metadata, record.ExpiresAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update name %q: %w", record.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update name %q: %w", record.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("update name %q: %w", record.Name, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListNames(ctx context.Context, owner *id.Identity) ([]*models.NameRecord, error) {
	query := `SELECT ` + nameColumns + ` FROM name_records`
	var args []any
	if owner != nil {
		query += ` WHERE owner = $1`
		args = append(args, owner.Hex())
	}
	query += ` ORDER BY name`

	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	var out []*models.NameRecord
	for rows.Next() {
		rec, err := scanName(rows)
		if err != nil {
			return nil, fmt.Errorf("list names: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutReverse(ctx context.Context, record *models.ReverseRecord) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO reverse_records (owner, name, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (owner) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`,
		record.Owner.Hex(), record.Name, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put reverse %s: %w", record.Owner.Hex(), err)
	}
	return nil
}

func scanReverse(row rowScanner) (*models.ReverseRecord, error) {
	var rec models.ReverseRecord
	var owner string
	if err := row.Scan(&owner, &rec.Name, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseIdentity(owner)
	if err != nil {
		return nil, fmt.Errorf("reverse owner: %w", err)
	}
	rec.Owner = parsed
	return &rec, nil
}

func (s *PostgresStore) GetReverse(ctx context.Context, owner id.Identity) (*models.ReverseRecord, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT owner, name, updated_at FROM reverse_records WHERE owner = $1`, owner.Hex())
	rec, err := scanReverse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get reverse %s: %w", owner.Hex(), sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reverse %s: %w", owner.Hex(), err)
	}
	return rec, nil
}

func (s *PostgresStore) ListReverse(ctx context.Context) ([]*models.ReverseRecord, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT owner, name, updated_at FROM reverse_records ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("list reverse: %w", err)
	}
	defer rows.Close()

	var out []*models.ReverseRecord
	for rows.Next() {
		rec, err := scanReverse(rows)
		if err != nil {
			return nil, fmt.Errorf("list reverse: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.exec(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, string(event.Type), event.AggregateKey(), payload, event.OccurredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append event %s: %w", event.ID, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("append event %s: %w", event.ID, err)
	}
	return nil
}

// FetchPending returns unpublished events in append order. A limit of zero
// or less returns all of them.
func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]*models.Event, error) {
	query := `SELECT payload FROM outbox WHERE published_at IS NULL ORDER BY seq`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch pending: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("fetch pending: %w", err)
		}
		var event models.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, &event)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, eventID := range ids {
		keys[i] = eventID.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = now() WHERE id = ANY($1::uuid[]) AND published_at IS NULL`,
		pq.Array(keys))
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
