package main

import (
	"errors"
	"io/fs"

	"github.com/Sternrassler/ordering-favorites/internal/config"
	"github.com/Sternrassler/ordering-favorites/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	cfg        config.Config
}

func newRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "favorites",
		Short:         "Aggregate and reconcile a user's ordering favorites",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newListCommand(opts),
		newReorderCommand(opts),
		newAddCommand(opts),
		newRemoveCommand(opts),
		newServeCommand(opts),
	)

	return cmd
}

// load reads the dotenv file, the config file and the environment, then
// installs the global logger.
func (o *rootOptions) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg

	logging.Setup(cfg.LoggingConfig())
	return nil
}
