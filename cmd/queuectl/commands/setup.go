package commands

import (
	"github.com/spf13/cobra"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the job queue table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			created, err := a.deps.Store.Setup(cmd.Context())
			if err != nil {
				return err
			}

			if created {
				cmd.Println("Job queue table created")
			} else {
				cmd.Println("Job queue table already exists")
			}
			return nil
		}),
	}
}
