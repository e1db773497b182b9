// Command eventhubctl is the developer tool for local EventHub environments.
package main

import (
	"fmt"
	"os"

	"github.com/robertarktes/eventhub/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eventhubctl",
		Short:         "Developer tooling for EventHub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newTokenCmd(), newVerifyTicketCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}
