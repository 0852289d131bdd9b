package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/ledger"
	"github.com/sells-group/tallyconv/internal/model"
	"github.com/sells-group/tallyconv/internal/store"
	"github.com/sells-group/tallyconv/internal/validate"
)

// Correction is one save-edits batch. Edits are authoritative: the corrected
// table is always recomputed server-side from the stored base. Original and
// Modified, when supplied, are the client's copies of the base and corrected
// tables; they are checked by fingerprint and never trusted as data.
type Correction struct {
	Edits    []model.EditRecord
	Original *model.TableData
	Modified *model.TableData
}

// SaveCorrection applies a batch of edits on top of the latest table for the
// document, revalidates, persists the corrected table as the modified
// conversion, and appends the audit artifact. The original conversion is
// never touched.
//
// Application is all-or-nothing: a single bad reference or fingerprint
// mismatch fails the whole batch and persists nothing.
func (s *Service) SaveCorrection(ctx context.Context, fileID string, corr Correction) (*Result, error) {
	result, err := s.saveCorrection(ctx, fileID, corr)
	s.metrics.RecordCorrection(err)
	return result, err
}

func (s *Service) saveCorrection(ctx context.Context, fileID string, corr Correction) (*Result, error) {
	log := zap.L().With(zap.String("file_id", fileID), zap.Int("edits", len(corr.Edits)))

	base, err := s.latestTable(ctx, fileID)
	if err != nil {
		return nil, err
	}
	baseFingerprint := base.Table.Fingerprint()

	if corr.Original != nil && corr.Original.Fingerprint() != baseFingerprint {
		log.Warn("pipeline: correction rejected, stale original table")
		return nil, model.ConversionError("submitted original table does not match the stored table")
	}

	corrected, err := ledger.Apply(base.Table, corr.Edits)
	if err != nil {
		log.Warn("pipeline: correction rejected", zap.Error(err))
		return nil, err
	}

	if corr.Modified != nil && corr.Modified.Fingerprint() != corrected.Fingerprint() {
		log.Warn("pipeline: correction rejected, modified table does not match edit history")
		return nil, model.ConversionError("submitted modified table does not match the table produced by the edit history")
	}

	findings := validate.Validate(corrected, s.profile)
	markCells(corrected, findings)

	savedAt := s.now().UTC()
	payload, err := ledger.EncodeEdits(corr.Edits)
	if err != nil {
		return nil, err
	}

	conv := store.Conversion{
		FileID:      fileID,
		Variant:     store.VariantModified,
		Table:       corrected,
		Findings:    findings,
		Fingerprint: corrected.Fingerprint(),
	}
	if err := s.store.SaveConversion(ctx, conv); err != nil {
		return nil, eris.Wrapf(err, "pipeline: persist corrected table %s", fileID)
	}
	if err := s.store.AppendAudit(ctx, store.AuditEntry{
		FileID:          fileID,
		Name:            ledger.ArtifactName(fileID, savedAt),
		BaseFingerprint: baseFingerprint,
		Payload:         payload,
		CreatedAt:       savedAt,
	}); err != nil {
		return nil, eris.Wrapf(err, "pipeline: append audit %s", fileID)
	}

	log.Info("pipeline: correction saved",
		zap.String("fingerprint", conv.Fingerprint),
		zap.Int("findings", len(findings)),
	)
	return &Result{FileID: fileID, Table: corrected, Findings: findings}, nil
}

// AuditTrail returns the decoded correction history for a document, oldest
// first. A document with no corrections has an empty trail.
func (s *Service) AuditTrail(ctx context.Context, fileID string) ([]ledger.AuditArtifact, error) {
	if _, err := s.store.GetDocument(ctx, fileID); err != nil {
		return nil, eris.Wrapf(err, "pipeline: load document %s", fileID)
	}
	entries, err := s.store.ListAudit(ctx, fileID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load audit trail %s", fileID)
	}

	artifacts := make([]ledger.AuditArtifact, 0, len(entries))
	for _, entry := range entries {
		edits, err := ledger.DecodeEdits(entry.Payload)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: decode audit artifact %s", entry.Name)
		}
		artifacts = append(artifacts, ledger.AuditArtifact{
			FileID:          entry.FileID,
			BaseFingerprint: entry.BaseFingerprint,
			SavedAt:         entry.CreatedAt,
			Edits:           edits,
		})
	}
	return artifacts, nil
}

// Verify replays the full audit trail over the original conversion and
// reports whether the result matches the stored corrected table. A document
// with no corrections verifies trivially.
func (s *Service) Verify(ctx context.Context, fileID string) (bool, error) {
	orig, err := s.store.GetConversion(ctx, fileID, store.VariantOriginal)
	if err != nil {
		return false, eris.Wrapf(err, "pipeline: load original conversion %s", fileID)
	}

	modified, err := s.store.GetConversion(ctx, fileID, store.VariantModified)
	if eris.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "pipeline: load modified conversion %s", fileID)
	}

	entries, err := s.store.ListAudit(ctx, fileID)
	if err != nil {
		return false, eris.Wrapf(err, "pipeline: load audit trail %s", fileID)
	}

	table := orig.Table
	for _, entry := range entries {
		if entry.BaseFingerprint != table.Fingerprint() {
			zap.L().Warn("pipeline: audit base fingerprint mismatch",
				zap.String("file_id", fileID),
				zap.String("artifact", entry.Name),
			)
			return false, nil
		}
		edits, err := ledger.DecodeEdits(entry.Payload)
		if err != nil {
			return false, eris.Wrapf(err, "pipeline: decode audit artifact %s", entry.Name)
		}
		if table, err = ledger.Apply(table, edits); err != nil {
			return false, eris.Wrapf(err, "pipeline: replay audit artifact %s", entry.Name)
		}
	}

	return table.Fingerprint() == modified.Fingerprint, nil
}
