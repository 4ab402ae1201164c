package cmd

import (
	"context"
	"fmt"
	"sort"

	"tgstream/model"
	"tgstream/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the stream mirror bucket",
	Long:  `List mirrored stream files, show per-job usage, or delete the mirrored output of one job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := cmd.OutOrStdout()

		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return err
		}

		if minioDelete != "" {
			if !model.IsJobID(minioDelete) {
				return fmt.Errorf("invalid job id %q", minioDelete)
			}
			n, err := store.DeleteJob(ctx, minioDelete)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %d object(s) of job %s\n", n, minioDelete)
			return nil
		}

		objects, stats, err := store.List(ctx, minioPrefix)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Bucket:   %s\n", store.Bucket())
		fmt.Fprintf(out, "Prefix:   %s\n", minioPrefix)
		fmt.Fprintf(out, "Objects:  %d\n", stats.TotalObjects)
		fmt.Fprintf(out, "Size:     %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Fprintf(out, "Modified: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
		}

		if minioStats {
			usage := storage.GroupByJob(objects)
			ids := make([]string, 0, len(usage))
			for id := range usage {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return usage[ids[i]] > usage[ids[j]] })
			fmt.Fprintln(out, "\nUsage by job:")
			for _, id := range ids {
				fmt.Fprintf(out, "  %-36s %s\n", id, storage.FormatSize(usage[id]))
			}
			return nil
		}

		fmt.Fprintln(out, "\nObjects:")
		for _, obj := range objects {
			fmt.Fprintf(out, "  %s  %s  %s\n", obj.LastModified.Format("2006-01-02 15:04:05"), storage.FormatSize(obj.Size), obj.Key)
		}
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.StreamPrefix, "only list objects under this prefix")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "show storage usage per job")
	minioCmd.Flags().StringVar(&minioDelete, "delete", "", "delete the mirrored output of this job id")
	rootCmd.AddCommand(minioCmd)
}
