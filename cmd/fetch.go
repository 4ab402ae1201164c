package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tgstream/core/job"
	"tgstream/model"

	"github.com/spf13/cobra"
)

var (
	fetchBotToken   string
	fetchTargetChat string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <post-link>",
	Short: "Download one post and convert it to HLS",
	Long:  `Run a single link through the same pipeline as the web form and print where the stream was written.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res := a.jobs.Run(ctx, job.Request{
			Link:       args[0],
			BotToken:   fetchBotToken,
			TargetChat: fetchTargetChat,
		})

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "[%s] %s\n", res.Category, res.Message)
		if res.EmbedURL != "" {
			fmt.Fprintf(out, "Embed:    %s\n", res.EmbedURL)
		}
		if res.Job != nil {
			fmt.Fprintf(out, "Job:      %s (%s)\n", res.Job.ID, res.Job.Status)
			if res.Job.Status == model.JobStatusReady {
				fmt.Fprintf(out, "Output:   %s\n", a.jobs.HLSDir(res.Job.ID))
				fmt.Fprintf(out, "Playlist: %s\n", res.PlaylistURL)
			}
		}

		if res.Category == model.CategoryDanger {
			return fmt.Errorf("fetch failed")
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchBotToken, "bot-token", "", "bot token overriding BOT_TOKEN")
	fetchCmd.Flags().StringVar(&fetchTargetChat, "target-chat", "", "chat the bot forwards into, overriding TARGET_CHAT")
	rootCmd.AddCommand(fetchCmd)
}
