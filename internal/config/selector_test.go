// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptdev/scriptdev/internal/config"
	"github.com/scriptdev/scriptdev/pkg/errutil"
)

func TestSelector_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		device   string
		want     bool
	}{
		{"no patterns selects all", nil, "cam1", true},
		{"exact", []string{"cam1"}, "cam1", true},
		{"exact mismatch", []string{"cam1"}, "cam2", false},
		{"star", []string{"cam*"}, "cam-left", true},
		{"question mark", []string{"cam?"}, "cam10", false},
		{"class", []string{"cam[12]"}, "cam2", true},
		{"any of several", []string{"lamp", "shutter*"}, "shutter-a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := config.NewSelector(tt.patterns...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Match(tt.device))
		})
	}
}

func TestSelector_Invalid(t *testing.T) {
	_, err := config.NewSelector("cam[")
	errutil.AssertErrorCode(t, err, config.CodeInvalidSelection)

	_, err = config.NewSelector("")
	errutil.AssertErrorCode(t, err, config.CodeInvalidSelection)
}

func TestSelector_Select(t *testing.T) {
	f := &config.File{Devices: []config.Device{
		{Name: "cam1"}, {Name: "shutter"}, {Name: "cam2"},
	}}

	s, err := config.NewSelector("cam*")
	require.NoError(t, err)

	var names []string
	for _, d := range s.Select(f) {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"cam1", "cam2"}, names)
	assert.Equal(t, []string{"cam*"}, s.Patterns())

	var zero *config.Selector
	assert.Len(t, zero.Select(f), 3)
}
