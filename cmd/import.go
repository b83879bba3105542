package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/importer"
)

var (
	importFilePath string
	importSource   string
	importDryRun   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Parse a batch file, preview it, and stage it for migration",
	Long:  "Reads a delimited text or XLSX batch file, parses it into candidate records, and stages them. With --dry-run the parsed preview is printed and nothing is staged.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		source := importSource
		if source == "" {
			source = importFilePath
		}

		var parsed []importer.ParsedRecord
		if strings.HasSuffix(strings.ToLower(importFilePath), ".xlsx") {
			parsed, err = env.Orchestrator.ImportWorkbook(ctx, importFilePath)
			if err != nil {
				return eris.Wrap(err, "import workbook")
			}
		} else {
			raw, err := os.ReadFile(importFilePath)
			if err != nil {
				return eris.Wrap(err, "read batch file")
			}
			parsed, err = env.Orchestrator.ImportBatch(ctx, string(raw), source)
			if err != nil {
				return eris.Wrap(err, "import batch")
			}
		}

		for _, r := range parsed {
			fmt.Printf("  %-30s %-20s %s\n", r.Name, r.Township, r.Phone)
		}
		zap.L().Info("import parsed",
			zap.Int("records", len(parsed)),
			zap.String("file", importFilePath),
		)

		if importDryRun {
			zap.L().Info("dry run, nothing staged")
			return nil
		}

		result, err := env.Orchestrator.StageAll(ctx)
		if err != nil {
			return eris.Wrap(err, "stage records")
		}
		for _, e := range result.Errors {
			zap.L().Warn("row rejected",
				zap.String("name", e.Name),
				zap.String("reason", e.Reason),
			)
		}
		zap.L().Info("staging complete",
			zap.Int("attempted", result.Attempted),
			zap.Int("imported", result.Imported),
			zap.Int("rejected", len(result.Errors)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to batch file, .txt/.csv or .xlsx (required)")
	importCmd.Flags().StringVar(&importSource, "source", "", "source label recorded with staged rows (default: file path)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and preview only, do not stage")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
