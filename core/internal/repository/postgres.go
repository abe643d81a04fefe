package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // Driver PostgreSQL

	"github.com/xKoRx/echo/sdk/domain"
)

const pgUniqueViolation = "23505"

// PostgresStore LinkStore sobre PostgreSQL.
//
// La configuración completa del link se guarda como JSONB; enabled y config_version
// viven en columnas propias y son la fuente de verdad al leer.
type PostgresStore struct {
	db     *sql.DB
	schema string
}

// OpenPostgres abre la conexión, verifica con Ping y asegura el esquema.
func OpenPostgres(ctx context.Context, dsn, schema string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(db, schema)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore crea el store sobre una conexión existente.
func NewPostgresStore(db *sql.DB, schema string) *PostgresStore {
	if schema == "" {
		schema = "echo"
	}
	return &PostgresStore{db: db, schema: schema}
}

func (s *PostgresStore) table() string    { return pq.QuoteIdentifier(s.schema) + ".links" }
func (s *PostgresStore) sequence() string { return pq.QuoteIdentifier(s.schema) + ".config_version_seq" }

// Migrate crea esquema, secuencia y tabla si no existen.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pq.QuoteIdentifier(s.schema),
		`CREATE SEQUENCE IF NOT EXISTS ` + s.sequence(),
		`CREATE TABLE IF NOT EXISTS ` + s.table() + ` (
			link_id             TEXT PRIMARY KEY,
			source_account      TEXT NOT NULL,
			destination_account TEXT NOT NULL,
			enabled             BOOLEAN NOT NULL DEFAULT FALSE,
			settings            JSONB NOT NULL,
			config_version      BIGINT NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (source_account, destination_account)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate links: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Link, error) {
	query := `SELECT settings, enabled, config_version, updated_at FROM ` + s.table() + ` ORDER BY link_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) Get(ctx context.Context, linkID string) (domain.Link, error) {
	query := `SELECT settings, enabled, config_version, updated_at FROM ` + s.table() + ` WHERE link_id = $1`
	link, err := scanLink(s.db.QueryRowContext(ctx, query, linkID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Link{}, fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	return link, err
}

func (s *PostgresStore) Create(ctx context.Context, link domain.Link) (domain.Link, error) {
	settings, err := marshalSettings(link)
	if err != nil {
		return domain.Link{}, err
	}

	query := `
		INSERT INTO ` + s.table() + ` (link_id, source_account, destination_account, enabled, settings, config_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, nextval('` + s.sequence() + `'), NOW())
		RETURNING config_version, updated_at`
	err = s.db.QueryRowContext(ctx, query,
		link.LinkID, link.SourceAccount, link.DestinationAccount, link.Enabled, settings,
	).Scan(&link.ConfigVersion, &link.UpdatedAt)
	if err != nil {
		return domain.Link{}, mapPgError("create link", link.LinkID, err)
	}
	link.EquityRatio = 0
	return link, nil
}

func (s *PostgresStore) Update(ctx context.Context, link domain.Link) (domain.Link, error) {
	settings, err := marshalSettings(link)
	if err != nil {
		return domain.Link{}, err
	}

	query := `
		UPDATE ` + s.table() + `
		SET source_account = $2, destination_account = $3, enabled = $4, settings = $5,
		    config_version = nextval('` + s.sequence() + `'), updated_at = NOW()
		WHERE link_id = $1
		RETURNING config_version, updated_at`
	err = s.db.QueryRowContext(ctx, query,
		link.LinkID, link.SourceAccount, link.DestinationAccount, link.Enabled, settings,
	).Scan(&link.ConfigVersion, &link.UpdatedAt)
	if err != nil {
		return domain.Link{}, mapPgError("update link", link.LinkID, err)
	}
	link.EquityRatio = 0
	return link, nil
}

func (s *PostgresStore) SetEnabled(ctx context.Context, linkID string, enabled bool) (domain.Link, error) {
	query := `
		UPDATE ` + s.table() + `
		SET enabled = $2, config_version = nextval('` + s.sequence() + `'), updated_at = NOW()
		WHERE link_id = $1
		RETURNING settings, enabled, config_version, updated_at`
	link, err := scanLink(s.db.QueryRowContext(ctx, query, linkID, enabled))
	if err != nil {
		return domain.Link{}, mapPgError("set link enabled", linkID, err)
	}
	return link, nil
}

func (s *PostgresStore) Delete(ctx context.Context, linkID string) (link domain.Link, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Link{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `DELETE FROM ` + s.table() + ` WHERE link_id = $1 RETURNING settings, enabled, config_version, updated_at`
	link, err = scanLink(tx.QueryRowContext(ctx, query, linkID))
	if err != nil {
		return domain.Link{}, mapPgError("delete link", linkID, err)
	}

	if err = tx.QueryRowContext(ctx, `SELECT nextval('`+s.sequence()+`'), NOW()`).Scan(&link.ConfigVersion, &link.UpdatedAt); err != nil {
		return domain.Link{}, fmt.Errorf("tombstone version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.Link{}, fmt.Errorf("commit delete: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (domain.Link, error) {
	var (
		raw     []byte
		link    domain.Link
		enabled bool
		version int64
		updated time.Time
	)
	if err := row.Scan(&raw, &enabled, &version, &updated); err != nil {
		return domain.Link{}, err
	}
	if err := json.Unmarshal(raw, &link); err != nil {
		return domain.Link{}, fmt.Errorf("decode link settings: %w", err)
	}
	link.Enabled = enabled
	link.ConfigVersion = version
	link.UpdatedAt = updated
	return link, nil
}

func marshalSettings(link domain.Link) ([]byte, error) {
	link.ConfigVersion = 0
	link.EquityRatio = 0
	link.UpdatedAt = time.Time{}
	raw, err := json.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("encode link settings: %w", err)
	}
	return raw, nil
}

func mapPgError(op, linkID string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrLinkExists, linkID)
	}
	return fmt.Errorf("failed to %s %s: %w", op, linkID, err)
}
