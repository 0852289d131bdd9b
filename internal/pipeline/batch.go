package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchInput is one document in a batch conversion.
type BatchInput struct {
	Name string
	Data []byte
}

// BatchOutcome is the per-document result of a batch conversion. Failures
// are reported per document; one bad input never aborts its siblings.
type BatchOutcome struct {
	Name   string
	Result *Result
	Err    error
}

// ConvertBatch converts documents concurrently with at most limit in flight.
// Outcomes are returned in input order.
func (s *Service) ConvertBatch(ctx context.Context, inputs []BatchInput, limit int) []BatchOutcome {
	if limit <= 0 {
		limit = 4
	}

	outcomes := make([]BatchOutcome, len(inputs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, input := range inputs {
		g.Go(func() error {
			result, err := s.ConvertUpload(ctx, input.Name, input.Data)
			mu.Lock()
			outcomes[i] = BatchOutcome{Name: input.Name, Result: result, Err: err}
			mu.Unlock()
			if err != nil {
				zap.L().Warn("pipeline: batch document failed",
					zap.String("name", input.Name),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	// Per-document errors live in the outcomes; the group never fails.
	_ = g.Wait()

	return outcomes
}
