package commands

import (
	"github.com/spf13/cobra"
)

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Run exactly one consumer cycle",
		Long: "Lease one eligible job, poll the batch service and either renew the lease, " +
			"delete a vanished job or hand the results off and complete the job.",
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			outcome, err := a.deps.Consumer.RunCycle(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Println(string(outcome))
			return nil
		}),
	}
}
