// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"log/slog"
	"sync"

	"github.com/scriptdev/scriptdev/internal/device"
)

// logHost stands in for the host application: messages go to slog and
// error texts are kept for display.
type logHost struct {
	logger *slog.Logger

	mu    sync.Mutex
	texts map[int]string
}

var _ device.Host = (*logHost)(nil)

func newLogHost(logger *slog.Logger) *logHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &logHost{logger: logger.With("source", "host"), texts: make(map[int]string)}
}

func (h *logHost) SetErrorText(code int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts[code] = text
}

func (h *logHost) LogMessage(msg string, debugOnly bool) {
	if debugOnly {
		h.logger.Debug(msg)
		return
	}
	h.logger.Warn(msg)
}

// errorText returns the installed text for a host code.
func (h *logHost) errorText(code int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.texts[code]
}
