// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptdev/scriptdev/internal/bridge"
)

func TestNewFrame_Validation(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		bpp           int
		wantErr       bool
	}{
		{name: "8-bit", width: 4, height: 2, bpp: 1},
		{name: "16-bit", width: 4, height: 2, bpp: 2},
		{name: "32-bit", width: 4, height: 2, bpp: 4},
		{name: "24-bit unsupported", width: 4, height: 2, bpp: 3, wantErr: true},
		{name: "zero width", width: 0, height: 2, bpp: 1, wantErr: true},
		{name: "negative height", width: 4, height: -1, bpp: 1, wantErr: true},
		{name: "over the limit", width: 1<<14 + 1, height: 1 << 14, bpp: 4, wantErr: true},
		{name: "product overflows int", width: 1 << 31, height: 1 << 31, bpp: 4, wantErr: true},
		{name: "huge width", width: math.MaxInt, height: 2, bpp: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := bridge.NewFrame(tt.width, tt.height, tt.bpp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width*tt.height*tt.bpp, f.Len())
		})
	}
}

func TestFrame_SetAndAt(t *testing.T) {
	f, err := bridge.NewFrame(3, 2, 2)
	require.NoError(t, err)

	assert.True(t, f.Set(2, 1, 0xBEEF))
	assert.Equal(t, uint32(0xBEEF), f.At(2, 1))
	// Little endian layout.
	assert.Equal(t, []byte{0xEF, 0xBE}, f.Pix[10:12])

	assert.False(t, f.Set(3, 0, 1), "x outside frame")
	assert.False(t, f.Set(0, 0, 0x10000), "value wider than 16 bits")
	assert.Equal(t, uint32(0), f.At(-1, 0))
}

func TestFrame_Fill(t *testing.T) {
	f, err := bridge.NewFrame(2, 2, 4)
	require.NoError(t, err)

	f.Fill(7)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, uint32(7), f.At(x, y))
		}
	}
	assert.Equal(t, uint64(0xFFFFFFFF), f.MaxValue())
}

func TestFrameModule_FromScript(t *testing.T) {
	L, err := bridge.NewStateFactory().NewState(context.Background(), "")
	require.NoError(t, err)
	defer L.Close()

	require.NoError(t, L.DoString(`
		local frame = require("scriptdev.frame")
		local f = frame.new(4, 3)
		f:fill(9)
		f:set(1, 2, 300)
		result = {
			w = f:width(), h = f:height(), bpp = f:bytes_per_pixel(),
			len = #f, px = f:get(1, 2), other = f:get(0, 0),
		}
	`))

	got := bridge.ToGo(L.GetGlobal("result"))
	assert.Equal(t, map[string]any{
		"w": float64(4), "h": float64(3), "bpp": float64(2),
		"len": float64(24), "px": float64(300), "other": float64(9),
	}, got)
}

func TestFrameModule_ArgumentErrors(t *testing.T) {
	L, err := bridge.NewStateFactory().NewState(context.Background(), "")
	require.NoError(t, err)
	defer L.Close()

	scripts := map[string]string{
		"bad size":      `require("scriptdev.frame").new(0, 3)`,
		"bad depth":     `require("scriptdev.frame").new(2, 2, 3)`,
		"too large":     `require("scriptdev.frame").new(2^31, 2^31, 4)`,
		"out of range":  `require("scriptdev.frame").new(2, 2, 1):set(0, 0, 256)`,
		"outside frame": `require("scriptdev.frame").new(2, 2):get(5, 0)`,
		"negative fill": `require("scriptdev.frame").new(2, 2):fill(-1)`,
		"not a frame":   `local f = require("scriptdev.frame").new(2, 2); f.width({})`,
	}
	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, L.DoString(script))
		})
	}
}
