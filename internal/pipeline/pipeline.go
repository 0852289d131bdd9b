// Package pipeline orchestrates the conversion flow: extract, normalize,
// validate, persist, correct, export.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/extract"
	"github.com/sells-group/tallyconv/internal/model"
	"github.com/sells-group/tallyconv/internal/monitoring"
	"github.com/sells-group/tallyconv/internal/normalize"
	"github.com/sells-group/tallyconv/internal/store"
	"github.com/sells-group/tallyconv/internal/validate"
)

// Extractor converts raw document bytes into raw tables. extract.Service is
// the production implementation.
type Extractor interface {
	Extract(ctx context.Context, data []byte, modality extract.Modality) ([]extract.RawTable, error)
}

// Service wires the pipeline stages to persistence.
type Service struct {
	store     store.Store
	blobs     store.BlobStore
	extractor Extractor
	profile   validate.Profile
	metrics   *monitoring.Collector
	now       func() time.Time
}

// New creates a Service. The profile applies to every converted document.
func New(st store.Store, blobs store.BlobStore, extractor Extractor, profile validate.Profile) *Service {
	return &Service{
		store:     st,
		blobs:     blobs,
		extractor: extractor,
		profile:   profile,
		now:       time.Now,
	}
}

// WithMetrics attaches a metrics collector. A nil collector is a no-op.
func (s *Service) WithMetrics(m *monitoring.Collector) *Service {
	s.metrics = m
	return s
}

// Metrics returns the current metrics snapshot.
func (s *Service) Metrics() monitoring.MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Result is the client-facing outcome of a conversion or correction.
type Result struct {
	FileID   string           `json:"fileId"`
	Table    *model.TableData `json:"table"`
	Findings []model.Finding  `json:"findings"`
}

// Upload stores a source document and registers it for conversion. The
// document bytes are content-addressed; the returned document ID is the
// fileID every later operation uses.
func (s *Service) Upload(ctx context.Context, name string, data []byte) (*store.Document, error) {
	modality, err := extract.ModalityForFilename(name)
	if err != nil {
		return nil, err
	}

	handle, err := s.blobs.Put(ctx, data)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: store upload %s", name)
	}

	doc := store.Document{
		ID:         uuid.New().String(),
		Name:       name,
		Modality:   string(modality),
		BlobHandle: handle,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, eris.Wrapf(err, "pipeline: register upload %s", name)
	}

	zap.L().Info("pipeline: document uploaded",
		zap.String("file_id", doc.ID),
		zap.String("name", name),
		zap.String("modality", doc.Modality),
		zap.Int("bytes", len(data)),
	)
	return &doc, nil
}

// Convert runs extraction, normalization, and validation for an uploaded
// document and persists the result as the original conversion. Findings are
// part of the successful result, never a failure.
func (s *Service) Convert(ctx context.Context, fileID string) (*Result, error) {
	start := s.now()
	result, err := s.convert(ctx, fileID)
	s.metrics.RecordConversion(err, s.now().Sub(start))
	return result, err
}

func (s *Service) convert(ctx context.Context, fileID string) (*Result, error) {
	log := zap.L().With(zap.String("file_id", fileID))

	doc, err := s.store.GetDocument(ctx, fileID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load document %s", fileID)
	}
	data, err := s.blobs.Get(ctx, doc.BlobHandle)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load document bytes %s", fileID)
	}

	start := s.now()
	raw, err := s.extractor.Extract(ctx, data, extract.Modality(doc.Modality))
	if err != nil {
		log.Warn("pipeline: extraction failed", zap.Error(err))
		return nil, err
	}

	table, findings, err := normalize.Normalize(raw)
	if err != nil {
		log.Warn("pipeline: normalization failed", zap.Error(err))
		return nil, err
	}
	findings = append(findings, validate.Validate(table, s.profile)...)
	markCells(table, findings)

	conv := store.Conversion{
		FileID:      fileID,
		Variant:     store.VariantOriginal,
		Table:       table,
		Findings:    findings,
		Fingerprint: table.Fingerprint(),
	}
	if err := s.store.SaveConversion(ctx, conv); err != nil {
		return nil, eris.Wrapf(err, "pipeline: persist conversion %s", fileID)
	}

	log.Info("pipeline: conversion complete",
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Headers)),
		zap.Int("findings", len(findings)),
		zap.Duration("took", s.now().Sub(start)),
	)
	return &Result{FileID: fileID, Table: table, Findings: findings}, nil
}

// ConvertUpload uploads and converts in one step.
func (s *Service) ConvertUpload(ctx context.Context, name string, data []byte) (*Result, error) {
	doc, err := s.Upload(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return s.Convert(ctx, doc.ID)
}

// latestTable returns the corrected table when one exists, otherwise the
// original conversion.
func (s *Service) latestTable(ctx context.Context, fileID string) (*store.Conversion, error) {
	conv, err := s.store.GetConversion(ctx, fileID, store.VariantModified)
	if err == nil {
		return conv, nil
	}
	if !eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(err, "pipeline: load modified conversion %s", fileID)
	}
	conv, err = s.store.GetConversion(ctx, fileID, store.VariantOriginal)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load conversion %s", fileID)
	}
	return conv, nil
}

// markCells projects findings onto cell metadata so clients can render
// per-cell state without re-joining the findings list.
func markCells(table *model.TableData, findings []model.Finding) {
	for _, f := range findings {
		if f.Col < 0 || f.Col >= len(table.Headers) {
			continue
		}
		header := table.Headers[f.Col]
		cell, ok := table.Cell(f.Row, header)
		if !ok {
			continue
		}
		switch {
		case f.Severity == model.SeverityCritical:
			cell.Metadata.Error = true
			cell.Metadata.Status = model.StatusError
		case cell.Metadata.Status != model.StatusError:
			cell.Metadata.Status = model.StatusWarning
		}
		table.SetCell(f.Row, header, cell)
	}
}
