package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mapShowAll bool

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Match staged records against known identities",
	Long:  "Scores every staged record against the identity backups and records one mapping per record at exact, partial, or none confidence. Requires the staged phase; advances to mapped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Orchestrator.BuildMappings(ctx)
		if err != nil {
			return eris.Wrap(err, "build mappings")
		}

		if mapShowAll {
			mappings, err := env.Store.ListMappings(ctx)
			if err != nil {
				return eris.Wrap(err, "list mappings")
			}
			for _, m := range mappings {
				if m.MatchedID == "" {
					fmt.Printf("  %-8s %-30s (no match)\n", m.Confidence, m.StagedName)
					continue
				}
				fmt.Printf("  %-8s %-30s -> %s (%.3f)\n", m.Confidence, m.StagedName, m.MatchedName, m.Score)
			}
		}

		zap.L().Info("mapping complete",
			zap.Int("total", stats.Total),
			zap.Int("exact", stats.ExactMatches),
			zap.Int("partial", stats.PartialMatches),
			zap.Int("none", stats.NoMatches),
		)
		for col, n := range stats.DependentCounts {
			zap.L().Info("dependent references", zap.String("collection", col), zap.Int("count", n))
		}
		return nil
	},
}

func init() {
	mapCmd.Flags().BoolVar(&mapShowAll, "show", false, "print every mapping, not just the summary")
	rootCmd.AddCommand(mapCmd)
}
