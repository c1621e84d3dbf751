package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"videoworker/internal/job"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Wait until the engine answers HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			client, supervisor, err := job.NewEngine(cfg, &logger)
			if err != nil {
				return err
			}
			if err := supervisor.WaitReady(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "engine at %s is ready\n", client.BaseURL())
			return nil
		},
	}
}
