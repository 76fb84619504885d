// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/scriptdev/scriptdev/internal/bridge"
	"github.com/scriptdev/scriptdev/internal/config"
	"github.com/scriptdev/scriptdev/internal/device"
)

// scriptedDevice is what the commands need from every device kind.
type scriptedDevice interface {
	Name() string
	AdapterName() string
	State() bridge.State
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context)
}

// deviceSet is the group of configured devices a command works on. All of
// them share one interpreter registry.
type deviceSet struct {
	cfg      *config.Loaded
	registry *bridge.Registry
	host     *logHost
	devices  []scriptedDevice
}

// openDevices loads the configuration and creates the devices matching
// patterns. No script runs until initialize.
func openDevices(cmd *cobra.Command, patterns []string) (*deviceSet, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	sel, err := config.NewSelector(patterns...)
	if err != nil {
		return nil, err
	}
	selected := sel.Select(cfg.File)
	if len(selected) == 0 {
		return nil, oops.In("cli").
			With("patterns", sel.Patterns()).
			Errorf("no configured device matches %v", sel.Patterns())
	}

	set := &deviceSet{
		cfg:      cfg,
		registry: cfg.NewRegistry(),
		host:     newLogHost(slog.Default()),
	}
	for _, d := range selected {
		set.devices = append(set.devices, newDevice(set.registry, set.host, cfg, d))
	}
	return set, nil
}

func newDevice(reg *bridge.Registry, host device.Host, cfg *config.Loaded, d config.Device) scriptedDevice {
	settings := cfg.Settings(d)
	if d.Kind == config.KindCamera {
		return device.NewCamera(reg, host, d.Name, settings)
	}
	return device.NewGeneric(reg, host, d.Name, settings)
}

// initialize initializes every device and returns the failures by device
// name. A failed device has already shut itself down.
func (s *deviceSet) initialize(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, d := range s.devices {
		if err := d.Initialize(ctx); err != nil {
			failures[d.Name()] = err
			continue
		}
		slog.Info("device ready", "device", d.Name(), "adapter", d.AdapterName())
	}
	return failures
}

// ready reports whether every device is initialized.
func (s *deviceSet) ready() bool {
	for _, d := range s.devices {
		if d.State() != bridge.Initialized {
			return false
		}
	}
	return true
}

func (s *deviceSet) cameras() []*device.Camera {
	var out []*device.Camera
	for _, d := range s.devices {
		if cam, ok := d.(*device.Camera); ok && cam.State() == bridge.Initialized {
			out = append(out, cam)
		}
	}
	return out
}

func (s *deviceSet) generics() []*device.Generic {
	var out []*device.Generic
	for _, d := range s.devices {
		if g, ok := d.(*device.Generic); ok && g.State() == bridge.Initialized {
			out = append(out, g)
		}
	}
	return out
}

// close shuts every device down and closes the interpreter session.
func (s *deviceSet) close(ctx context.Context) {
	for _, d := range s.devices {
		d.Shutdown(ctx)
	}
	if err := s.registry.Close(); err != nil {
		slog.Warn("closing interpreter session", "error", err)
	}
}
