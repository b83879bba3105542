package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mergeKeepID    string
	mergeRemoveIDs []string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge restaurants by repointing dependents and deleting the rest",
	Long:  "Repoints every dependent collection's references from the removed ids to the kept id, then deletes only the ids whose repointing fully succeeded. Safe to retry.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Merge(ctx, mergeKeepID, mergeRemoveIDs)
		if err != nil {
			return eris.Wrap(err, "merge records")
		}

		for _, f := range result.Failures {
			zap.L().Warn("repoint failed, record kept",
				zap.String("remove_id", f.RemoveID),
				zap.String("collection", f.Collection),
				zap.String("reason", f.Reason),
			)
		}
		zap.L().Info("merge complete",
			zap.String("keep_id", result.KeepID),
			zap.Int("merged", len(result.Merged)),
			zap.Int("failures", len(result.Failures)),
			zap.Any("repointed", result.Repointed),
		)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeKeepID, "keep", "", "id of the record to keep (required)")
	mergeCmd.Flags().StringSliceVar(&mergeRemoveIDs, "remove", nil, "ids of the records to merge away (required)")
	_ = mergeCmd.MarkFlagRequired("keep")
	_ = mergeCmd.MarkFlagRequired("remove")
	rootCmd.AddCommand(mergeCmd)
}
