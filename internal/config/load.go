// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/scriptdev/scriptdev/internal/device"
	"github.com/scriptdev/scriptdev/internal/xdg"
)

// DefaultFileName is the configuration file name inside the config
// directory.
const DefaultFileName = "devices.yaml"

// Flag names that override file settings.
const (
	FlagLibraryPath   = "library-path"
	FlagTeardown      = "teardown"
	FlagFullLibraries = "full-libraries"
)

var overridable = map[string]string{
	FlagLibraryPath:   "library_path",
	FlagTeardown:      "teardown",
	FlagFullLibraries: "full_libraries",
}

// DefaultPath returns $XDG_CONFIG_HOME/scriptdev/devices.yaml.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", oops.In("config").Code(CodeLoad).Wrap(err)
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// RegisterFlags adds the override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagLibraryPath, "", "interpreter module search root")
	fs.String(FlagTeardown, "retain", "session teardown policy (retain, close-when-unused)")
	fs.Bool(FlagFullLibraries, false, "open the os and io libraries to scripts")
}

// Loaded is a validated configuration and the directory it was read from.
type Loaded struct {
	*File
	Path string
	Dir  string
}

// Load reads path, validates it against the schema, applies flag overrides
// from fs and checks the result. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Loaded, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, oops.In("config").Code(CodeLoad).With("path", path).Wrap(err)
	}
	data, err := os.ReadFile(abs) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, oops.In("config").Code(CodeLoad).With("path", abs).Wrapf(err, "read configuration")
	}
	if err := ValidateSchema(data); err != nil {
		return nil, oops.In("config").With("path", abs).Wrap(err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(abs), yaml.Parser()); err != nil {
		return nil, oops.In("config").Code(CodeLoad).With("path", abs).Wrapf(err, "parse configuration")
	}
	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := overridable[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(CodeLoad).Wrapf(err, "apply flags")
		}
	}

	var f File
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.In("config").Code(CodeLoad).With("path", abs).Wrapf(err, "decode configuration")
	}
	f.Teardown = strings.TrimSpace(f.Teardown)
	if err := f.Validate(); err != nil {
		return nil, oops.In("config").With("path", abs).Wrap(err)
	}
	return &Loaded{File: &f, Path: abs, Dir: filepath.Dir(abs)}, nil
}

// Settings returns the device settings for d with paths resolved against
// the config file directory.
func (l *Loaded) Settings(d Device) device.Settings {
	return l.File.Settings(d, l.Dir)
}
