package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "healthctl",
		Short:         "Offline tooling for the machine health service",
		Long:          "healthctl scores machine readings without a running server and\ninspects the history a server has recorded.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	root.PersistentFlags().String("table", "", "Reference table file (.json, .yaml); embedded table when empty")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newPartsCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newPruneCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
