// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"encoding/binary"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// FrameModuleName is the module scripts require to build image frames.
const FrameModuleName = "scriptdev.frame"

const frameTypeName = "scriptdev_frame"

// MaxFrameBytes bounds the pixel buffer of a single frame (1 GiB).
const MaxFrameBytes = 1 << 30

// Frame is an image buffer shared between scripts and the host. Pixels are
// stored row-major, little endian, BytesPerPixel bytes each. The host reads
// Pix directly; it is never copied on the way out.
type Frame struct {
	Width         int
	Height        int
	BytesPerPixel int
	Pix           []byte
}

// NewFrame allocates a zeroed frame of at most MaxFrameBytes.
func NewFrame(width, height, bytesPerPixel int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	switch bytesPerPixel {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("unsupported bytes per pixel %d", bytesPerPixel)
	}
	// Divide rather than multiply so the check itself cannot overflow.
	if width > MaxFrameBytes/bytesPerPixel/height {
		return nil, fmt.Errorf("frame %dx%dx%d exceeds %d bytes", width, height, bytesPerPixel, MaxFrameBytes)
	}
	return &Frame{
		Width:         width,
		Height:        height,
		BytesPerPixel: bytesPerPixel,
		Pix:           make([]byte, width*height*bytesPerPixel),
	}, nil
}

// Len returns the buffer size in bytes.
func (f *Frame) Len() int {
	return len(f.Pix)
}

// MaxValue returns the largest pixel value the frame can hold.
func (f *Frame) MaxValue() uint64 {
	return 1<<(8*uint(f.BytesPerPixel)) - 1
}

func (f *Frame) offset(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, false
	}
	return (y*f.Width + x) * f.BytesPerPixel, true
}

// Set stores v at (x, y). It reports false when the position is outside
// the frame or v does not fit the pixel size.
func (f *Frame) Set(x, y int, v uint32) bool {
	off, ok := f.offset(x, y)
	if !ok || uint64(v) > f.MaxValue() {
		return false
	}
	f.put(off, v)
	return true
}

// At returns the pixel value at (x, y), or 0 outside the frame.
func (f *Frame) At(x, y int) uint32 {
	off, ok := f.offset(x, y)
	if !ok {
		return 0
	}
	switch f.BytesPerPixel {
	case 1:
		return uint32(f.Pix[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(f.Pix[off:]))
	default:
		return binary.LittleEndian.Uint32(f.Pix[off:])
	}
}

// Fill sets every pixel to v.
func (f *Frame) Fill(v uint32) {
	for off := 0; off < len(f.Pix); off += f.BytesPerPixel {
		f.put(off, v)
	}
}

func (f *Frame) put(off int, v uint32) {
	switch f.BytesPerPixel {
	case 1:
		f.Pix[off] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(f.Pix[off:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(f.Pix[off:], v)
	}
}

// frameTypeAPI defines the methods available on frame userdata.
var frameTypeAPI = map[string]lua.LGFunction{
	"width":           frameWidth,
	"height":          frameHeight,
	"bytes_per_pixel": frameBytesPerPixel,
	"len":             frameLen,
	"get":             frameGet,
	"set":             frameSet,
	"fill":            frameFill,
}

func registerFrameType(L *lua.LState) {
	mt := L.NewTypeMetatable(frameTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), frameTypeAPI))
	L.SetField(mt, "__len", L.NewFunction(frameLen))
}

// frameLoader is the module loader for scriptdev.frame.
func frameLoader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"new": frameNew,
	})
	L.Push(mod)
	return 1
}

// newFrameUserData wraps f in userdata carrying the frame metatable. The
// returned LUserData still needs to be pushed if it is a return value.
func newFrameUserData(L *lua.LState, f *Frame) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = f
	L.SetMetatable(ud, L.GetTypeMetatable(frameTypeName))
	return ud
}

func checkFrame(L *lua.LState) *Frame {
	ud := L.CheckUserData(1)
	if f, ok := ud.Value.(*Frame); ok {
		return f
	}
	L.ArgError(1, "frame expected")
	return nil
}

// frameNew provides frame.new(width, height[, bytes_per_pixel]).
func frameNew(L *lua.LState) int {
	w := L.CheckInt(1)
	h := L.CheckInt(2)
	bpp := L.OptInt(3, 2)

	f, err := NewFrame(w, h, bpp)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(newFrameUserData(L, f))
	return 1
}

func frameWidth(L *lua.LState) int {
	L.Push(lua.LNumber(checkFrame(L).Width))
	return 1
}

func frameHeight(L *lua.LState) int {
	L.Push(lua.LNumber(checkFrame(L).Height))
	return 1
}

func frameBytesPerPixel(L *lua.LState) int {
	L.Push(lua.LNumber(checkFrame(L).BytesPerPixel))
	return 1
}

func frameLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkFrame(L).Len()))
	return 1
}

// frameGet provides f:get(x, y) with zero-based coordinates.
func frameGet(L *lua.LState) int {
	f := checkFrame(L)
	x := L.CheckInt(2)
	y := L.CheckInt(3)
	if _, ok := f.offset(x, y); !ok {
		L.ArgError(2, fmt.Sprintf("pixel (%d, %d) outside %dx%d frame", x, y, f.Width, f.Height))
		return 0
	}
	L.Push(lua.LNumber(f.At(x, y)))
	return 1
}

// frameSet provides f:set(x, y, value) with zero-based coordinates.
func frameSet(L *lua.LState) int {
	f := checkFrame(L)
	x := L.CheckInt(2)
	y := L.CheckInt(3)
	v := L.CheckInt64(4)
	if v < 0 || uint64(v) > f.MaxValue() {
		L.ArgError(4, fmt.Sprintf("value %d does not fit %d bytes per pixel", v, f.BytesPerPixel))
		return 0
	}
	if !f.Set(x, y, uint32(v)) {
		L.ArgError(2, fmt.Sprintf("pixel (%d, %d) outside %dx%d frame", x, y, f.Width, f.Height))
	}
	return 0
}

func frameFill(L *lua.LState) int {
	f := checkFrame(L)
	v := L.CheckInt64(2)
	if v < 0 || uint64(v) > f.MaxValue() {
		L.ArgError(2, fmt.Sprintf("value %d does not fit %d bytes per pixel", v, f.BytesPerPixel))
		return 0
	}
	f.Fill(uint32(v))
	return 0
}
