package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/model"
	"github.com/sells-group/tallyconv/internal/pipeline"
)

var applyEditsCmd = &cobra.Command{
	Use:   "apply-edits <fileID> <edits.json>",
	Short: "Apply a batch of cell edits to a converted document",
	Long:  "Reads a JSON array of edit records and applies them on top of the document's latest table. The original conversion is kept and the batch is recorded in the audit trail.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initService(ctx, "convert")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[1])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[1])
		}
		var edits []model.EditRecord
		if err := json.Unmarshal(data, &edits); err != nil {
			return eris.Wrapf(err, "parse %s", args[1])
		}

		result, err := env.Service.SaveCorrection(ctx, args[0], pipeline.Correction{Edits: edits})
		if err != nil {
			return err
		}

		zap.L().Info("edits applied",
			zap.String("file_id", result.FileID),
			zap.Int("edits", len(edits)),
			zap.Int("findings", len(result.Findings)),
		)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "encode result")
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <fileID>",
	Short: "Replay the audit trail and check it reproduces the corrected table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initService(ctx, "convert")
		if err != nil {
			return err
		}
		defer env.Close()

		ok, err := env.Service.Verify(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("audit trail for %s does not reproduce the stored table", args[0])
		}
		zap.L().Info("audit trail verified", zap.String("file_id", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyEditsCmd)
	rootCmd.AddCommand(verifyCmd)
}
