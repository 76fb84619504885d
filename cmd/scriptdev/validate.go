// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/scriptdev/scriptdev/internal/config"
	"github.com/scriptdev/scriptdev/internal/device"
)

// validateConfig holds configuration for the validate command.
type validateConfig struct {
	devices    []string
	schemaOnly bool
}

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	cfg := &validateConfig{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the device configuration and initialize every device once",
		Long: `Validate the device configuration against its schema, then load each
selected device script, instantiate its class and check the properties the
device kind requires. Every device is shut down again afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, cfg)
		},
	}

	cmd.Flags().StringSliceVar(&cfg.devices, "device", nil, "device name patterns (default: all)")
	cmd.Flags().BoolVar(&cfg.schemaOnly, "schema-only", false, "only check the file against the schema")

	return cmd
}

func runValidate(cmd *cobra.Command, cfg *validateConfig) error {
	if cfg.schemaOnly {
		return validateSchemaOnly(cmd)
	}

	set, err := openDevices(cmd, cfg.devices)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	failures := set.initialize(ctx)
	defer set.close(ctx)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DEVICE\tADAPTER\tRESULT\tCODE")
	for _, d := range set.devices {
		err := failures[d.Name()]
		result := "ok"
		if err != nil {
			result = err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.Name(), d.AdapterName(), result, device.HostCode(err))
	}
	if err := w.Flush(); err != nil {
		return oops.In("cli").Wrap(err)
	}

	if len(failures) > 0 {
		return oops.In("cli").
			With("failed", len(failures)).
			Errorf("%d of %d devices failed to initialize", len(failures), len(set.devices))
	}
	return nil
}

func validateSchemaOnly(cmd *cobra.Command) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return oops.In("cli").With("path", path).Wrap(err)
	}
	if err := config.ValidateSchema(data); err != nil {
		cmd.PrintErrln(config.FormatSchemaError(err))
		return err
	}
	cmd.Printf("%s: valid\n", path)
	return nil
}
