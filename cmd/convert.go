package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/export"
)

var (
	convertFormat string
	convertOut    string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a PDF or image into a validated table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initService(ctx, "convert")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		result, err := env.Service.ConvertUpload(ctx, filepath.Base(args[0]), data)
		if err != nil {
			return err
		}

		if convertFormat != "" {
			format, err := export.ParseFormat(convertFormat)
			if err != nil {
				return err
			}
			rendered, err := env.Service.Download(ctx, result.FileID, format)
			if err != nil {
				return err
			}
			out := convertOut
			if out == "" {
				out = result.FileID + "." + format.Extension()
			}
			if err := os.WriteFile(out, rendered, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", out)
			}
			zap.L().Info("export written", zap.String("path", out))
			return nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "encode result")
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertFormat, "format", "", "export format (xlsx, csv, xml); omit to print the table as JSON")
	convertCmd.Flags().StringVar(&convertOut, "out", "", "output path (default <fileID>.<format>)")
	rootCmd.AddCommand(convertCmd)
}
