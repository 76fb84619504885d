// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/scriptdev/scriptdev/internal/config"
	"github.com/scriptdev/scriptdev/internal/logging"
)

// Global flags available to all subcommands.
var (
	configFile string
	logFormat  string
	logLevel   string
)

const serviceName = "scriptdev"

// NewRootCmd creates the root command for the scriptdev CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scriptdev",
		Short: "Scripted device adapters over an embedded Lua interpreter",
		Long: `scriptdev loads device classes written in Lua and drives them as
cameras or generic devices through the same bridge a host application uses.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(logFormat, logLevel)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "device config file (default: XDG_CONFIG_HOME/scriptdev/devices.yaml)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (json or text)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	config.RegisterFlags(flags)

	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSnapCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// setupLogging configures the default slog logger.
func setupLogging(format, level string) error {
	if format != "json" && format != "text" {
		return oops.In("cli").With("log_format", format).Errorf("log-format must be 'json' or 'text', got %q", format)
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	logging.SetDefault(serviceName, version, format, lvl)
	return nil
}

// loadConfig reads the --config file, or the default one, with flag
// overrides from cmd.
func loadConfig(cmd *cobra.Command) (*config.Loaded, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.Load(path, cmd.Flags())
}
