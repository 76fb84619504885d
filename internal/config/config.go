// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

// Package config loads and validates scripted device configuration files.
package config

import (
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/scriptdev/scriptdev/internal/bridge"
	"github.com/scriptdev/scriptdev/internal/device"
)

// Error codes for configuration failures.
const (
	CodeInvalid          = "CONFIG_INVALID"
	CodeSchema           = "CONFIG_SCHEMA_INVALID"
	CodeUnsupportedAPI   = "CONFIG_UNSUPPORTED_API_VERSION"
	CodeLoad             = "CONFIG_LOAD_FAILED"
	CodeInvalidSelection = "CONFIG_INVALID_SELECTOR"
)

// SupportedAPIVersions is the api_version constraint this build accepts.
const SupportedAPIVersions = "^1.0"

// Kind identifies the device adapter a configured device uses.
type Kind string

// Device kinds.
const (
	KindCamera  Kind = "camera"
	KindGeneric Kind = "generic"
)

// File is a devices.yaml file.
type File struct {
	APIVersion    string   `yaml:"api_version" koanf:"api_version" jsonschema:"required,description=Configuration format version"`
	LibraryPath   string   `yaml:"library_path,omitempty" koanf:"library_path" jsonschema:"description=Interpreter module search root shared by all devices"`
	Teardown      string   `yaml:"teardown,omitempty" koanf:"teardown" jsonschema:"enum=retain,enum=close-when-unused"`
	FullLibraries bool     `yaml:"full_libraries,omitempty" koanf:"full_libraries" jsonschema:"description=Open the os and io libraries to scripts"`
	Devices       []Device `yaml:"devices" koanf:"devices" jsonschema:"required,minItems=1"`
}

// Device configures one scripted device.
type Device struct {
	Name   string `yaml:"name" koanf:"name" jsonschema:"required,minLength=1,maxLength=64"`
	Kind   Kind   `yaml:"kind" koanf:"kind" jsonschema:"required,enum=camera,enum=generic"`
	Script string `yaml:"script" koanf:"script" jsonschema:"required,minLength=1"`
	Class  string `yaml:"class" koanf:"class" jsonschema:"required,minLength=1"`
	Args   []any  `yaml:"args,omitempty" koanf:"args"`
}

// maxNameLength is the maximum allowed length for device names.
const maxNameLength = 64

// namePattern validates device names: a letter followed by letters, digits,
// hyphens or underscores.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Validate checks the constraints the schema cannot express.
func (f *File) Validate() error {
	if err := checkAPIVersion(f.APIVersion); err != nil {
		return err
	}
	if _, err := bridge.ParseTeardownPolicy(f.Teardown); err != nil {
		return oops.In("config").Code(CodeInvalid).With("field", "teardown").Wrap(err)
	}
	if len(f.Devices) == 0 {
		return invalid("devices", "at least one device is required")
	}

	seen := make(map[string]bool, len(f.Devices))
	for i, d := range f.Devices {
		if err := d.validate(); err != nil {
			return oops.In("config").With("device_index", i).Wrap(err)
		}
		if seen[d.Name] {
			return invalid("devices", "duplicate device name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

func (d Device) validate() error {
	if !namePattern.MatchString(d.Name) {
		return invalid("name", "device name %q must start with a letter and contain only letters, digits, hyphens and underscores", d.Name)
	}
	if len(d.Name) > maxNameLength {
		return invalid("name", "device name must be %d characters or less, got %d", maxNameLength, len(d.Name))
	}
	switch d.Kind {
	case KindCamera, KindGeneric:
	default:
		return invalid("kind", "kind must be 'camera' or 'generic', got %q", d.Kind)
	}
	if d.Script == "" {
		return invalid("script", "device %s: script is required", d.Name)
	}
	if d.Class == "" {
		return invalid("class", "device %s: class is required", d.Name)
	}
	return nil
}

func checkAPIVersion(v string) error {
	if v == "" {
		return invalid("api_version", "api_version is required")
	}
	version, err := semver.NewVersion(v)
	if err != nil {
		return oops.In("config").Code(CodeUnsupportedAPI).With("api_version", v).Wrapf(err, "invalid api_version")
	}
	constraint, err := semver.NewConstraint(SupportedAPIVersions)
	if err != nil {
		return oops.In("config").Wrapf(err, "invalid supported version constraint")
	}
	if !constraint.Check(version) {
		return oops.In("config").
			Code(CodeUnsupportedAPI).
			With("api_version", v).
			With("supported", SupportedAPIVersions).
			Errorf("api_version %s is not supported", v)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return oops.In("config").Code(CodeInvalid).With("field", field).Errorf(format, args...)
}

// TeardownPolicy returns the parsed teardown policy.
func (f *File) TeardownPolicy() bridge.TeardownPolicy {
	p, err := bridge.ParseTeardownPolicy(f.Teardown)
	if err != nil {
		return bridge.RetainSession
	}
	return p
}

// NewRegistry creates the interpreter registry this file describes.
func (f *File) NewRegistry() *bridge.Registry {
	var factoryOpts []bridge.FactoryOption
	if f.FullLibraries {
		factoryOpts = append(factoryOpts, bridge.WithFullLibraries())
	}
	return bridge.NewRegistry(
		bridge.WithTeardownPolicy(f.TeardownPolicy()),
		bridge.WithStateFactory(bridge.NewStateFactory(factoryOpts...)),
	)
}

// Settings returns the device settings for d. Relative script paths are
// resolved against baseDir, normally the directory of the config file.
func (f *File) Settings(d Device, baseDir string) device.Settings {
	return device.Settings{
		LibraryPath: resolve(baseDir, f.LibraryPath),
		ScriptPath:  resolve(baseDir, d.Script),
		ClassName:   d.Class,
		Args:        d.Args,
	}
}

// Device returns the device called name.
func (f *File) Device(name string) (Device, bool) {
	for _, d := range f.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
