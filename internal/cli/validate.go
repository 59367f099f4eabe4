package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/output"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Check a configuration file without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	noColor, _ := cmd.Flags().GetBool("no-color")
	out := cmd.OutOrStdout()
	plain := !output.UseColors(out, noColor)

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	total, err := cfg.Load.TotalDuration()
	if err != nil {
		return err
	}

	users := cfg.Load.Users
	for _, s := range cfg.Load.Stages {
		if s.Target > users {
			users = s.Target
		}
	}

	fmt.Fprintf(out, "%s %s is valid\n", output.SuccessIcon(plain), args[0])
	fmt.Fprintf(out, "  Host:     %s\n", cfg.Host)
	fmt.Fprintf(out, "  Executor: %s\n", cfg.Load.Executor)
	fmt.Fprintf(out, "  Users:    %d (max)\n", users)
	fmt.Fprintf(out, "  Duration: %s\n", total)
	fmt.Fprintf(out, "  Wait:     %s - %s\n", cfg.WaitTime.Min, cfg.WaitTime.Max)
	return nil
}
