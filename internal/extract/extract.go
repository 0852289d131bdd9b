package extract

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sells-group/tallyconv/internal/model"
)

// Modality is the declared source type of an input document. It selects
// which extractor variant runs; no other input shape is accepted.
type Modality string

const (
	ModalityPDF   Modality = "pdf"
	ModalityImage Modality = "image"
)

// RawTable is extraction output before normalization: ordered rows of raw
// text cells. Row 0 is conventionally treated as the header row downstream.
type RawTable [][]string

// Service dispatches raw document bytes to the extractor for the declared
// modality. Each call is self-contained: no state is shared between
// concurrent extractions.
type Service struct {
	pdf   *PDFExtractor
	image *ImageExtractor
}

// NewService creates a Service from the two extractor variants.
func NewService(pdf *PDFExtractor, image *ImageExtractor) *Service {
	return &Service{pdf: pdf, image: image}
}

// Extract converts raw bytes into zero or more raw tables.
func (s *Service) Extract(ctx context.Context, data []byte, modality Modality) ([]RawTable, error) {
	switch modality {
	case ModalityPDF:
		return s.pdf.Extract(ctx, data)
	case ModalityImage:
		return s.image.Extract(ctx, data)
	default:
		return nil, model.UnsupportedFormatErrorf("unsupported modality %q", modality)
	}
}

// ModalityForFilename maps a file extension to its modality. Unknown
// extensions are rejected before any extraction work begins.
func ModalityForFilename(name string) (Modality, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return ModalityPDF, nil
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		return ModalityImage, nil
	default:
		return "", model.UnsupportedFormatErrorf("unsupported file extension %q", filepath.Ext(name))
	}
}
