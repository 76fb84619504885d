// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package config

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Selector picks devices by name. Patterns use glob syntax: '*' matches any
// run of characters, '?' one character and '[...]' a character class.
// The zero value selects every device.
type Selector struct {
	patterns []string
	globs    []glob.Glob
}

// NewSelector compiles patterns. No pattern selects every device.
func NewSelector(patterns ...string) (*Selector, error) {
	s := &Selector{
		patterns: make([]string, 0, len(patterns)),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for i, p := range patterns {
		if p == "" {
			return nil, oops.In("config").Code(CodeInvalidSelection).With("index", i).Errorf("empty device pattern")
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.In("config").Code(CodeInvalidSelection).With("pattern", p).Wrap(err)
		}
		s.patterns = append(s.patterns, p)
		s.globs = append(s.globs, g)
	}
	return s, nil
}

// Match reports whether name is selected.
func (s *Selector) Match(name string) bool {
	if s == nil || len(s.globs) == 0 {
		return true
	}
	for _, g := range s.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the selector patterns.
func (s *Selector) Patterns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.patterns...)
}

// Select returns the devices of f that s matches, in file order.
func (s *Selector) Select(f *File) []Device {
	var out []Device
	for _, d := range f.Devices {
		if s.Match(d.Name) {
			out = append(out, d)
		}
	}
	return out
}
