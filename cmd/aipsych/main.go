package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "aipsych",
		Short:         "AIPsych room-credential server and voice agent",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(agentCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
