// Command chatmesh runs multi-participant chat turns from the command line
// and validates event streams.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatmesh",
		Short:         "chatmesh - stream group, compare and single chat turns",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `chatmesh orchestrates chat turns across assistants and raw models.

Turns stream canonical events as newline-delimited JSON, one object per line.`,
	}

	root.AddCommand(newRunCmd(), newNormalizeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
