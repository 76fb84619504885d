// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package device

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/scriptdev/scriptdev/internal/bridge"
)

// Settings are the pre-initialization properties of a scripted device.
type Settings struct {
	// LibraryPath is the interpreter module search root shared by all
	// devices of a registry.
	LibraryPath string
	// ScriptPath is the Lua file defining the device class.
	ScriptPath string
	// ClassName names the class inside ScriptPath.
	ClassName string
	// Args are passed to the class constructor.
	Args []any
}

func (s Settings) config() bridge.Config {
	return bridge.Config{
		LibraryPath: s.LibraryPath,
		ScriptPath:  s.ScriptPath,
		ClassName:   s.ClassName,
		Args:        s.Args,
	}
}

// Base is the lifecycle shared by every scripted device kind. Device kinds
// embed it and supply a validation hook run after the script object exists.
type Base struct {
	adapter  string
	host     Host
	settings Settings
	bridge   *bridge.Bridge

	validate   func(ctx context.Context) error
	onShutdown func()

	shutdowns atomic.Int32
}

// newBase installs the host error texts and creates the binding. No
// interpreter call is made.
func newBase(adapter, name string, reg *bridge.Registry, host Host, settings Settings) *Base {
	installErrorTexts(host)
	return &Base{
		adapter:  adapter,
		host:     host,
		settings: settings,
		bridge:   bridge.New(reg, name, HostReporter{Host: host}),
	}
}

// AdapterName returns the device kind, for example "ScriptCamera".
func (b *Base) AdapterName() string {
	return b.adapter
}

// Name returns the device instance name.
func (b *Base) Name() string {
	return b.bridge.Name()
}

// Settings returns the pre-initialization settings.
func (b *Base) Settings() Settings {
	return b.settings
}

// Bridge exposes the binding for device specific calls.
func (b *Base) Bridge() *bridge.Bridge {
	return b.bridge
}

// State returns the binding lifecycle state.
func (b *Base) State() bridge.State {
	return b.bridge.State()
}

// Shutdowns returns how many times Shutdown has been called.
func (b *Base) Shutdowns() int {
	return int(b.shutdowns.Load())
}

// Initialize runs the script, instantiates the device class and validates
// the resulting object. Any failure shuts the device down before the error
// is returned.
func (b *Base) Initialize(ctx context.Context) error {
	if err := b.bridge.Initialize(ctx, b.settings.config()); err != nil {
		b.Shutdown(ctx)
		return err
	}
	if b.validate != nil {
		if err := b.validate(ctx); err != nil {
			b.Shutdown(ctx)
			return err
		}
	}
	b.bridge.MarkInitialized()
	slog.Debug("device initialized",
		"adapter", b.adapter,
		"device", b.Name(),
		"id", b.bridge.ID(),
		"script", b.settings.ScriptPath,
		"class", b.settings.ClassName)
	return nil
}

// Shutdown releases the scripted object. Calling it more than once is safe.
func (b *Base) Shutdown(ctx context.Context) {
	b.shutdowns.Add(1)
	if b.onShutdown != nil {
		b.onShutdown()
	}
	b.bridge.Destruct(ctx)
}
