package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dedupeAutoRemove bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Scan the live population for duplicate restaurants",
	Long:  "Reports exact duplicate groups (same normalized name, township, and phone) and similar chain groups (same name and township, multiple phones). With --auto-remove, exact groups are merged into their most complete member.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Orchestrator.DetectDuplicates(ctx)
		if err != nil {
			return eris.Wrap(err, "detect duplicates")
		}

		for _, g := range report.Groups {
			fmt.Printf("[%s] %s\n", g.Kind, g.Reason)
			for i, m := range g.Members {
				marker := "  -"
				if i == 0 && g.AutoRemovable {
					marker = "  *" // canonical, kept on auto-remove
				}
				fmt.Printf("%s %s  %s (%s, %s)\n", marker, m.ID, m.Name, m.Township, m.Phone)
			}
		}
		zap.L().Info("duplicate scan complete",
			zap.Int("scanned", report.Stats.RecordsScanned),
			zap.Int("exact_groups", report.Stats.ExactGroups),
			zap.Int("similar_groups", report.Stats.SimilarGroups),
			zap.Int("removable", report.Stats.TotalRemovable),
		)

		if !dedupeAutoRemove {
			return nil
		}

		result, err := env.Orchestrator.AutoRemoveExactDuplicates(ctx)
		if err != nil {
			return eris.Wrap(err, "auto remove")
		}
		zap.L().Info("auto-remove complete",
			zap.Int("removed", result.Removed),
			zap.String("message", result.Message),
		)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeAutoRemove, "auto-remove", false, "merge exact duplicate groups into their canonical member")
	rootCmd.AddCommand(dedupeCmd)
}
