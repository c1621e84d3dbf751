package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "worker",
		Short: "Image to video generation worker",
		Long: `worker runs image to video jobs against a local ComfyUI engine. Jobs are
read as JSON, either {"input": {...}} or the bare input object.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckCommand())
	return root
}
