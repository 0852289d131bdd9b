package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tallyconv/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	modality    TEXT NOT NULL,
	blob_handle TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversions (
	id          TEXT PRIMARY KEY,
	file_id     TEXT NOT NULL REFERENCES documents(id),
	variant     TEXT NOT NULL,
	table_json  TEXT NOT NULL,
	findings    TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_entries (
	id               TEXT PRIMARY KEY,
	file_id          TEXT NOT NULL REFERENCES documents(id),
	name             TEXT NOT NULL,
	base_fingerprint TEXT NOT NULL DEFAULT '',
	payload          BLOB NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_conversions_file_variant ON conversions(file_id, variant);
CREATE INDEX IF NOT EXISTS idx_audit_entries_file_id ON audit_entries(file_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, modality, blob_handle, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Modality, doc.BlobHandle, doc.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert document %s", doc.ID)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, fileID string) (*Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, modality, blob_handle, created_at FROM documents WHERE id = ?`, fileID,
	).Scan(&doc.ID, &doc.Name, &doc.Modality, &doc.BlobHandle, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", fileID)
	}
	return &doc, nil
}

func (s *SQLiteStore) SaveConversion(ctx context.Context, conv Conversion) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save conversion")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversions WHERE file_id = ? AND variant = ?`,
		conv.FileID, string(conv.Variant),
	); err != nil {
		return eris.Wrapf(err, "sqlite: supersede conversion %s/%s", conv.FileID, conv.Variant)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversions (id, file_id, variant, table_json, findings, fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.FileID, string(conv.Variant), tableJSON, findingsJSON, conv.Fingerprint, conv.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert conversion %s/%s", conv.FileID, conv.Variant)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save conversion")
}

func (s *SQLiteStore) GetConversion(ctx context.Context, fileID string, variant Variant) (*Conversion, error) {
	var (
		conv                   Conversion
		tableJSON, findingsRaw string
		variantStr             string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_id, variant, table_json, findings, fingerprint, created_at
		 FROM conversions WHERE file_id = ? AND variant = ?
		 ORDER BY created_at DESC LIMIT 1`,
		fileID, string(variant),
	).Scan(&conv.ID, &conv.FileID, &variantStr, &tableJSON, &findingsRaw, &conv.Fingerprint, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get conversion %s/%s", fileID, variant)
	}
	conv.Variant = Variant(variantStr)
	if err := decodeConversion(&conv, []byte(tableJSON), []byte(findingsRaw)); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, file_id, name, base_fingerprint, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.FileID, entry.Name, entry.BaseFingerprint, entry.Payload, entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append audit %s", entry.Name)
}

func (s *SQLiteStore) ListAudit(ctx context.Context, fileID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, name, base_fingerprint, payload, created_at FROM audit_entries
		 WHERE file_id = ? ORDER BY created_at, name`,
		fileID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit %s", fileID)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.FileID, &e.Name, &e.BaseFingerprint, &e.Payload, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate audit entries")
}

func encodeConversion(conv Conversion) (string, string, error) {
	tableJSON, err := json.Marshal(conv.Table)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal table")
	}
	findings := conv.Findings
	if findings == nil {
		findings = []model.Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal findings")
	}
	return string(tableJSON), string(findingsJSON), nil
}

func decodeConversion(conv *Conversion, tableJSON, findingsJSON []byte) error {
	if err := json.Unmarshal(tableJSON, &conv.Table); err != nil {
		return eris.Wrap(err, "store: unmarshal table")
	}
	if err := json.Unmarshal(findingsJSON, &conv.Findings); err != nil {
		return eris.Wrap(err, "store: unmarshal findings")
	}
	return nil
}
