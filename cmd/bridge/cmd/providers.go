package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opengovern/resilient-bridge/v2/adapters"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the outbound and webhook providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "outbound:")
			for _, name := range adapters.Names() {
				factory, _ := adapters.Lookup(name)
				fmt.Fprintf(out, "  %-12s %s\n", name, factory(nil).BaseURL())
			}
			fmt.Fprintln(out, "webhooks:")
			for _, name := range webhookProviderNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
