package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	statusFormat     string
	statusAuditLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current migration phase, counts, and recent audit entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Orchestrator.Status(ctx, statusAuditLimit)
		if err != nil {
			return eris.Wrap(err, "read status")
		}

		switch statusFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(st)
		case "text":
			fmt.Printf("phase:       %s\n", st.Phase)
			fmt.Printf("restaurants: %d\n", st.Restaurants)
			fmt.Printf("staged:      %d\n", st.Staged)
			fmt.Printf("mappings:    %d\n", st.Mappings)
			for _, e := range st.AuditTail {
				fmt.Printf("  %s  %-20s %-22s %d\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Collection, e.Count)
			}
			return nil
		default:
			return eris.Errorf("unknown format %q (want text, json, or yaml)", statusFormat)
		}
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text, json, or yaml")
	statusCmd.Flags().IntVar(&statusAuditLimit, "audit", 10, "number of recent audit entries to include")
	rootCmd.AddCommand(statusCmd)
}
