package cmd

import (
	"tgstream/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP server serving the submission form, the job API and the generated HLS streams.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var objects server.ObjectSource
	if a.store != nil {
		objects = a.store
	}
	var segments server.SegmentStore
	if a.segments != nil {
		segments = a.segments
	}
	return server.New(cfg, a.jobs, objects, segments).Start()
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
