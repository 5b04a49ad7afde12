// Package cmd provides the commands of the bridge CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	envFiles []string
	verbose  bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Rate-limit aware API client and webhook receiver",
		Long: `bridge talks to SaaS APIs through provider adapters that understand each
provider's rate-limit headers and throttling responses, and receives provider
webhooks with signature verification.

Configuration is read from the environment. A .env file in the working
directory is read when present; use --env-file to name others. Variables
already set in the environment win over file values.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to read (default .env when present)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRequestCmd(opts))
	cmd.AddCommand(newProvidersCmd())
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
