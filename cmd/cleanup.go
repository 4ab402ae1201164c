package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired job outputs",
	Long:  `Delete job directories, records and mirrored objects older than JOB_TTL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.sweeper.Sweep(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired job(s) older than %s\n", removed, cfg.JobTTL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
