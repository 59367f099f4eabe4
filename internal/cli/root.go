package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orderstorm",
		Short:   "Load test an e-commerce backend with synthetic shoppers",
		Version: version,
		Long: `orderstorm drives an e-commerce backend with synthetic shoppers.
Every shopper registers an account, logs in, then keeps placing orders
and fetching its profile until the run ends.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newValidateCmd())
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return RootCmd.Execute()
}
