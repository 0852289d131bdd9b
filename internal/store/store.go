// Package store persists documents, conversion results, and the correction
// audit trail.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tallyconv/internal/model"
)

// ErrNotFound is returned when a document, conversion, or blob does not
// exist. Callers test with errors.Is.
var ErrNotFound = eris.New("store: not found")

// Variant distinguishes the untouched conversion output from the corrected
// table. Both coexist for a document; corrections never overwrite the
// original.
type Variant string

const (
	VariantOriginal Variant = "original"
	VariantModified Variant = "modified"
)

// Document is one uploaded source file. The bytes live in the blob store;
// rows here carry only the handle.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Modality   string    `json:"modality"`
	BlobHandle string    `json:"blobHandle"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversion is one persisted table for a document: the canonical table, the
// findings raised against it, and the table fingerprint.
type Conversion struct {
	ID          string           `json:"id"`
	FileID      string           `json:"fileId"`
	Variant     Variant          `json:"variant"`
	Table       *model.TableData `json:"table"`
	Findings    []model.Finding  `json:"findings"`
	Fingerprint string           `json:"fingerprint"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// AuditEntry is one saved correction batch artifact. Entries are append-only:
// nothing updates or deletes them. Payload is the bare JSON array of edits;
// BaseFingerprint identifies the table the batch was applied to.
type AuditEntry struct {
	ID              string    `json:"id"`
	FileID          string    `json:"fileId"`
	Name            string    `json:"name"`
	BaseFingerprint string    `json:"baseFingerprint"`
	Payload         []byte    `json:"payload"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store is the persistence interface for the conversion pipeline.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, fileID string) (*Document, error)

	// Conversions. SaveConversion supersedes any earlier conversion with the
	// same file and variant; GetConversion returns the latest.
	SaveConversion(ctx context.Context, conv Conversion) error
	GetConversion(ctx context.Context, fileID string, variant Variant) (*Conversion, error)

	// Audit trail
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, fileID string) ([]AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// BlobStore holds raw document bytes, addressed by content hash. Putting the
// same bytes twice yields the same handle.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, handle string) ([]byte, error)
	Delete(ctx context.Context, handle string) error
}
