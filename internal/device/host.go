// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

// Package device implements host device adapters whose behavior lives in a
// scripted object reached through the bridge.
package device

import (
	"github.com/scriptdev/scriptdev/internal/bridge"
)

// Host is the part of the host plugin framework a device adapter calls.
type Host interface {
	// SetErrorText installs the message the host shows for code.
	SetErrorText(code int, text string)
	// LogMessage writes to the host log. debugOnly messages are dropped
	// unless the host runs with debug logging.
	LogMessage(msg string, debugOnly bool)
}

// HostReporter forwards bridge fault reports to the host log.
type HostReporter struct {
	Host Host
}

// Report implements bridge.Reporter. Errors are always logged; other
// reports are debug output.
func (r HostReporter) Report(message string, isError bool) {
	if r.Host == nil {
		return
	}
	r.Host.LogMessage(message, !isError)
}

var _ bridge.Reporter = HostReporter{}

// installErrorTexts sets the static message of every bridge fault code.
func installErrorTexts(h Host) {
	for _, t := range bridge.Templates() {
		h.SetErrorText(t.Code, t.Text)
	}
}

// HostCode converts the result of a device operation to the host integer
// code. nil is 0.
func HostCode(err error) int {
	return bridge.HostCode(err)
}
