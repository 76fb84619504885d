// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/scriptdev/scriptdev/internal/config"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the device configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
}
