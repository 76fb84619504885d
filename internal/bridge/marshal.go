// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
	luar "layeh.com/gopher-luar"
)

// maxConvertDepth bounds recursion when converting nested tables.
const maxConvertDepth = 32

// toLuaArgs converts host arguments for a call into s. Caller holds s.mu.
func toLuaArgs(L *lua.LState, s *Session, args []any) ([]lua.LValue, error) {
	out := make([]lua.LValue, 0, len(args))
	for i, arg := range args {
		v, err := ToLua(L, s, arg)
		if err != nil {
			return nil, typeMismatch(fmt.Sprintf("argument %d", i+1), "a convertible value", err.Error())
		}
		out = append(out, v)
	}
	return out, nil
}

// ToLua converts a host value to a Lua value for session s.
//
// Primitive values, numeric tuples, frames and handles from the same session
// are converted directly. Anything else is exposed through gopher-luar.
func ToLua(L *lua.LState, s *Session, v any) (lua.LValue, error) {
	switch val := v.(type) {
	case nil:
		return lua.LNil, nil
	case lua.LValue:
		return val, nil
	case bool:
		return lua.LBool(val), nil
	case int:
		return lua.LNumber(val), nil
	case int8:
		return lua.LNumber(val), nil
	case int16:
		return lua.LNumber(val), nil
	case int32:
		return lua.LNumber(val), nil
	case int64:
		return lua.LNumber(val), nil
	case uint:
		return lua.LNumber(val), nil
	case uint8:
		return lua.LNumber(val), nil
	case uint16:
		return lua.LNumber(val), nil
	case uint32:
		return lua.LNumber(val), nil
	case uint64:
		return lua.LNumber(val), nil
	case float32:
		return lua.LNumber(val), nil
	case float64:
		return lua.LNumber(val), nil
	case string:
		return lua.LString(val), nil
	case []byte:
		return lua.LString(string(val)), nil
	case []int:
		tbl := L.CreateTable(len(val), 0)
		for _, n := range val {
			tbl.Append(lua.LNumber(n))
		}
		return tbl, nil
	case []float64:
		tbl := L.CreateTable(len(val), 0)
		for _, n := range val {
			tbl.Append(lua.LNumber(n))
		}
		return tbl, nil
	case *Frame:
		if val == nil {
			return lua.LNil, nil
		}
		return newFrameUserData(L, val), nil
	case *Object:
		if val.IsNone() {
			return lua.LNil, nil
		}
		if val.sess != s {
			return lua.LNil, fmt.Errorf("object %s belongs to a different session", val.name)
		}
		return val.valueLocked(), nil
	case map[string]any:
		tbl := L.CreateTable(0, len(val))
		for k, item := range val {
			lv, err := ToLua(L, s, item)
			if err != nil {
				return lua.LNil, err
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	default:
		return luar.New(L, v), nil
	}
}

// ToGo converts a Lua value to a plain Go value. Numbers become float64,
// sequences become []any and other tables map[string]any. Frames are
// returned as *Frame; other userdata yield their wrapped Go value.
// Functions and threads are returned unchanged.
func ToGo(v lua.LValue) any {
	return toGo(v, 0)
}

func toGo(v lua.LValue, depth int) any {
	switch val := v.(type) {
	case nil, *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LUserData:
		return val.Value
	case *lua.LTable:
		if depth >= maxConvertDepth {
			return nil
		}
		return tableToGo(val, depth+1)
	default:
		return v
	}
}

func tableToGo(tbl *lua.LTable, depth int) any {
	n := tbl.MaxN()
	count := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		items := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			items = append(items, toGo(tbl.RawGetInt(i), depth))
		}
		return items
	}

	out := make(map[string]any, count)
	tbl.ForEach(func(k, item lua.LValue) {
		out[k.String()] = toGo(item, depth)
	})
	return out
}

// AsBool converts a Lua boolean. what names the value in fault messages.
func AsBool(v lua.LValue, what string) (bool, error) {
	b, ok := v.(lua.LBool)
	if !ok {
		return false, typeMismatch(what, "boolean", v.Type().String())
	}
	return bool(b), nil
}

// AsFloat converts a Lua number.
func AsFloat(v lua.LValue, what string) (float64, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, typeMismatch(what, "number", v.Type().String())
	}
	return float64(n), nil
}

// AsInt converts a Lua number that holds an integral value.
func AsInt(v lua.LValue, what string) (int, error) {
	f, err := AsFloat(v, what)
	if err != nil {
		return 0, err
	}
	// -float64(math.MinInt) is exactly 2^63 (2^31 on 32-bit), the first
	// value int cannot hold; float64(math.MaxInt) would round up to it.
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= -float64(math.MinInt) || f < float64(math.MinInt) {
		return 0, typeMismatch(what, "integer", fmt.Sprintf("number %v", f))
	}
	return int(f), nil
}

// AsString converts a Lua string.
func AsString(v lua.LValue, what string) (string, error) {
	s, ok := v.(lua.LString)
	if !ok {
		return "", typeMismatch(what, "string", v.Type().String())
	}
	return string(s), nil
}

// AsTuple converts a sequence of exactly n numbers.
func AsTuple(v lua.LValue, n int, what string) ([]float64, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, typeMismatch(what, fmt.Sprintf("%d-tuple", n), v.Type().String())
	}
	if got := tbl.Len(); got != n {
		return nil, typeMismatch(what, fmt.Sprintf("%d-tuple", n), fmt.Sprintf("%d values", got))
	}
	out := make([]float64, n)
	for i := range out {
		f, err := AsFloat(tbl.RawGetInt(i+1), fmt.Sprintf("%s[%d]", what, i+1))
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// AsIntTuple converts a sequence of exactly n integral numbers.
func AsIntTuple(v lua.LValue, n int, what string) ([]int, error) {
	floats, err := AsTuple(v, n, what)
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i, f := range floats {
		iv, err := AsInt(lua.LNumber(f), fmt.Sprintf("%s[%d]", what, i+1))
		if err != nil {
			return nil, err
		}
		out[i] = iv
	}
	return out, nil
}

// AsFrame converts a captured image. Frame userdata is returned by
// reference. A table of equally long rows of integers is copied into a new
// 16-bit frame.
func AsFrame(v lua.LValue, what string) (*Frame, error) {
	switch val := v.(type) {
	case *lua.LUserData:
		if f, ok := val.Value.(*Frame); ok && f != nil {
			return f, nil
		}
		return nil, typeMismatch(what, "frame", fmt.Sprintf("userdata %T", val.Value))
	case *lua.LTable:
		return rowsToFrame(val, what)
	default:
		return nil, typeMismatch(what, "frame", v.Type().String())
	}
}

func rowsToFrame(rows *lua.LTable, what string) (*Frame, error) {
	height := rows.Len()
	if height == 0 {
		return nil, typeMismatch(what, "non-empty rows", "empty table")
	}
	first, ok := rows.RawGetInt(1).(*lua.LTable)
	if !ok {
		return nil, typeMismatch(what+"[1]", "row table", rows.RawGetInt(1).Type().String())
	}
	width := first.Len()

	f, err := NewFrame(width, height, 2)
	if err != nil {
		return nil, typeMismatch(what, "frame rows", err.Error())
	}
	for y := 0; y < height; y++ {
		rowName := fmt.Sprintf("%s[%d]", what, y+1)
		row, ok := rows.RawGetInt(y + 1).(*lua.LTable)
		if !ok {
			return nil, typeMismatch(rowName, "row table", rows.RawGetInt(y+1).Type().String())
		}
		if row.Len() != width {
			return nil, typeMismatch(rowName, fmt.Sprintf("%d pixels", width), fmt.Sprintf("%d pixels", row.Len()))
		}
		for x := 0; x < width; x++ {
			px, err := AsInt(row.RawGetInt(x+1), fmt.Sprintf("%s[%d]", rowName, x+1))
			if err != nil {
				return nil, err
			}
			if px < 0 || uint64(px) > f.MaxValue() {
				return nil, typeMismatch(fmt.Sprintf("%s[%d]", rowName, x+1), "16-bit pixel", fmt.Sprintf("%d", px))
			}
			f.Set(x, y, uint32(px))
		}
	}
	return f, nil
}

// sortedKeys returns the string keys of tbl in order. Used for stable
// property listings.
func sortedKeys(tbl *lua.LTable) []string {
	var keys []string
	tbl.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			keys = append(keys, string(s))
		}
	})
	sort.Strings(keys)
	return keys
}
