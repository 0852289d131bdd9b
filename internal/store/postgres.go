package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tallyconv/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	modality    TEXT NOT NULL,
	blob_handle TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversions (
	id          TEXT PRIMARY KEY,
	file_id     TEXT NOT NULL REFERENCES documents(id),
	variant     TEXT NOT NULL,
	table_json  JSONB NOT NULL,
	findings    JSONB NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS findings (
	conversion_id TEXT NOT NULL,
	file_id       TEXT NOT NULL,
	row           INT NOT NULL,
	col           INT NOT NULL,
	kind          TEXT NOT NULL,
	severity      TEXT NOT NULL,
	message       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_entries (
	id               TEXT PRIMARY KEY,
	file_id          TEXT NOT NULL REFERENCES documents(id),
	name             TEXT NOT NULL,
	base_fingerprint TEXT NOT NULL DEFAULT '',
	payload          BYTEA NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversions_file_variant ON conversions(file_id, variant);
CREATE INDEX IF NOT EXISTS idx_findings_file_id ON findings(file_id);
CREATE INDEX IF NOT EXISTS idx_audit_entries_file_id ON audit_entries(file_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, modality, blob_handle, created_at) VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Name, doc.Modality, doc.BlobHandle, doc.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert document %s", doc.ID)
}

func (s *PostgresStore) GetDocument(ctx context.Context, fileID string) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, modality, blob_handle, created_at FROM documents WHERE id = $1`, fileID,
	).Scan(&doc.ID, &doc.Name, &doc.Modality, &doc.BlobHandle, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", fileID)
	}
	return &doc, nil
}

// SaveConversion supersedes the previous conversion for the file and variant,
// stores the new one, and bulk-copies its findings into the flat findings
// table for SQL reporting.
func (s *PostgresStore) SaveConversion(ctx context.Context, conv Conversion) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	tableJSON, findingsJSON, err := encodeConversion(conv)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM findings WHERE conversion_id IN (SELECT id FROM conversions WHERE file_id = $1 AND variant = $2)`,
		conv.FileID, string(conv.Variant),
	); err != nil {
		return eris.Wrapf(err, "postgres: supersede findings %s/%s", conv.FileID, conv.Variant)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversions WHERE file_id = $1 AND variant = $2`,
		conv.FileID, string(conv.Variant),
	); err != nil {
		return eris.Wrapf(err, "postgres: supersede conversion %s/%s", conv.FileID, conv.Variant)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO conversions (id, file_id, variant, table_json, findings, fingerprint, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conv.ID, conv.FileID, string(conv.Variant), tableJSON, findingsJSON, conv.Fingerprint, conv.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert conversion %s/%s", conv.FileID, conv.Variant)
	}

	rows := make([][]any, 0, len(conv.Findings))
	for _, f := range conv.Findings {
		rows = append(rows, []any{conv.ID, conv.FileID, f.Row, f.Col, string(f.Kind), string(f.Severity), f.Message})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "findings",
		[]string{"conversion_id", "file_id", "row", "col", "kind", "severity", "message"}, rows,
	); err != nil {
		return eris.Wrapf(err, "postgres: copy findings %s/%s", conv.FileID, conv.Variant)
	}
	return nil
}

func (s *PostgresStore) GetConversion(ctx context.Context, fileID string, variant Variant) (*Conversion, error) {
	var (
		conv                   Conversion
		tableJSON, findingsRaw []byte
		variantStr             string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, file_id, variant, table_json, findings, fingerprint, created_at
		 FROM conversions WHERE file_id = $1 AND variant = $2
		 ORDER BY created_at DESC LIMIT 1`,
		fileID, string(variant),
	).Scan(&conv.ID, &conv.FileID, &variantStr, &tableJSON, &findingsRaw, &conv.Fingerprint, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get conversion %s/%s", fileID, variant)
	}
	conv.Variant = Variant(variantStr)
	if err := decodeConversion(&conv, tableJSON, findingsRaw); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, file_id, name, base_fingerprint, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.FileID, entry.Name, entry.BaseFingerprint, entry.Payload, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append audit %s", entry.Name)
}

func (s *PostgresStore) ListAudit(ctx context.Context, fileID string) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_id, name, base_fingerprint, payload, created_at FROM audit_entries
		 WHERE file_id = $1 ORDER BY created_at, name`,
		fileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list audit %s", fileID)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.FileID, &e.Name, &e.BaseFingerprint, &e.Payload, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate audit entries")
}
