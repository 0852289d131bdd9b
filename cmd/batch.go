package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/pipeline"
)

var batchConcurrency int

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Convert multiple documents concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initService(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		inputs := make([]pipeline.BatchInput, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			inputs = append(inputs, pipeline.BatchInput{Name: filepath.Base(path), Data: data})
		}

		limit := batchConcurrency
		if limit == 0 {
			limit = cfg.Batch.MaxConcurrentDocuments
		}
		outcomes := env.Service.ConvertBatch(ctx, inputs, limit)

		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
				zap.L().Error("document failed", zap.String("name", o.Name), zap.Error(o.Err))
				continue
			}
			zap.L().Info("document converted",
				zap.String("name", o.Name),
				zap.String("file_id", o.Result.FileID),
				zap.Int("rows", len(o.Result.Table.Rows)),
				zap.Int("findings", len(o.Result.Findings)),
			)
		}
		if failed > 0 {
			return eris.Errorf("%d of %d documents failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max documents in flight (default from config)")
	rootCmd.AddCommand(batchCmd)
}
