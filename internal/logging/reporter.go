// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package logging

import (
	"log/slog"

	"github.com/scriptdev/scriptdev/internal/bridge"
)

// Reporter sends bridge fault reports to a slog.Logger. Errors are logged
// at error level, everything else at debug level.
type Reporter struct {
	Logger *slog.Logger
	// Device is added to every record when set.
	Device string
}

var _ bridge.Reporter = Reporter{}

// Report implements bridge.Reporter.
func (r Reporter) Report(message string, isError bool) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Device != "" {
		logger = logger.With("device", r.Device)
	}
	if isError {
		logger.Error(message, "source", "script")
		return
	}
	logger.Debug(message, "source", "script")
}
