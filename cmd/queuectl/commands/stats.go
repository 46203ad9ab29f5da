package commands

import (
	"github.com/spf13/cobra"

	"github.com/cuongbtq/scrapequeue/internal/queue"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of jobs per status",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			stats, err := a.deps.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			for _, status := range queue.Statuses {
				cmd.Printf("%-9s %d\n", status, stats[status])
			}
			return nil
		}),
	}
}
