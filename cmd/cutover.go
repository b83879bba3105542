package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cutoverConfirm bool
	cutoverTimeout time.Duration
)

var cutoverCmd = &cobra.Command{
	Use:   "cutover",
	Short: "Replace the live population with the staged records",
	Long:  "Snapshots current identities, deletes every live restaurant, promotes all staged records, and clears the staging area. Requires the mapped phase and --yes. This is destructive and not reversible.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cutoverConfirm {
			return eris.New("cutover deletes the entire live population; re-run with --yes to confirm")
		}

		ctx := cmd.Context()
		if cutoverTimeout > 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, cutoverTimeout)
			defer cancel()
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.ExecuteCutover(ctx)
		if err != nil {
			return eris.Wrap(err, "execute cutover")
		}

		zap.L().Info("cutover complete",
			zap.Int64("deleted", result.Deleted),
			zap.Int("inserted", result.Inserted),
			zap.String("message", result.Message),
		)
		return nil
	},
}

func init() {
	cutoverCmd.Flags().BoolVar(&cutoverConfirm, "yes", false, "confirm the destructive replacement")
	cutoverCmd.Flags().DurationVar(&cutoverTimeout, "timeout", 10*time.Minute, "abort if the cutover takes longer than this")
	rootCmd.AddCommand(cutoverCmd)
}
