package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/logger"
)

// loadRunConfig reads the config file (if any) and applies the environment.
// Flags are layered on top by the caller, then defaults.
func loadRunConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	config.ApplyEnvironment(cfg, os.LookupEnv)
	return cfg, nil
}

// applyLogFlags copies --log-level and --log-format onto cfg when given.
func applyLogFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}
}

// newLogger builds the run logger. Unset fields keep logger.DefaultConfig,
// which logs warnings to stderr so the live console stays readable.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	lc := logger.DefaultConfig()
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	if cfg.Output != "" {
		lc.Output = cfg.Output
	}

	log, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
