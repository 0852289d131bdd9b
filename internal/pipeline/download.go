package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/export"
)

// Download renders the latest table for a document in the requested format.
// Corrections take precedence over the original conversion: once a table has
// been edited, every export reflects the edits.
func (s *Service) Download(ctx context.Context, fileID string, format export.Format) ([]byte, error) {
	conv, err := s.latestTable(ctx, fileID)
	if err != nil {
		return nil, err
	}

	data, err := export.Render(conv.Table, format)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordExport(string(format))

	zap.L().Info("pipeline: export rendered",
		zap.String("file_id", fileID),
		zap.String("format", string(format)),
		zap.String("variant", string(conv.Variant)),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}
