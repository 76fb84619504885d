// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package device

import (
	"github.com/scriptdev/scriptdev/internal/bridge"
)

// GenericAdapterName is the adapter name of generic scripted devices.
const GenericAdapterName = "ScriptDevice"

// Generic is a scripted device without a fixed operation set. Its script
// object may expose a boolean "busy" property.
type Generic struct {
	*Base
}

// NewGeneric creates a generic device. No interpreter call is made.
func NewGeneric(reg *bridge.Registry, host Host, name string, settings Settings) *Generic {
	return &Generic{Base: newBase(GenericAdapterName, name, reg, host, settings)}
}

// Busy reports the script's busy property, or false when there is none.
func (g *Generic) Busy() (bool, error) {
	has, err := g.bridge.Has("busy")
	if err != nil || !has {
		return false, err
	}
	return g.bridge.Bool("busy")
}

// Property returns a property of the script object as a Go value.
func (g *Generic) Property(name string) (any, error) {
	return g.bridge.Value(name)
}

// SetProperty assigns a property of the script object.
func (g *Generic) SetProperty(name string, v any) error {
	return g.bridge.Set(name, v)
}

// Invoke calls a method of the script object and returns its result as a
// Go value.
func (g *Generic) Invoke(method string, args ...any) (any, error) {
	return g.bridge.CallValue(method, args...)
}
