// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	lua "github.com/yuin/gopher-lua"
)

// noCopy makes go vet's copylocks check flag Objects passed by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Object is a counted handle to a value living inside the interpreter.
//
// Every handle owns exactly one interpreter-side reference. Clone shares the
// value and takes another reference; Release gives the handle's reference
// back. When the last reference is gone the value is removed from the
// session anchor table and the Lua collector may reclaim it. Handles must
// be passed by pointer.
//
// The empty handle (see None) stands for "no value". Calling an attribute
// on it is a RequiredPropertyMissing fault.
type Object struct {
	_ noCopy

	sess     *Session
	id       uint64
	name     string
	released bool
}

// None returns the empty handle.
func None() *Object {
	return &Object{}
}

// IsNone reports whether o holds no value.
func (o *Object) IsNone() bool {
	return o == nil || o.sess == nil || o.released
}

// Name returns the human-readable name used in fault messages.
func (o *Object) Name() string {
	if o == nil {
		return ""
	}
	return o.name
}

// Clone returns a new handle to the same value.
func (o *Object) Clone() *Object {
	if o.IsNone() {
		return None()
	}
	o.sess.mu.Lock()
	defer o.sess.mu.Unlock()
	return o.cloneLocked()
}

func (o *Object) cloneLocked() *Object {
	o.sess.increfLocked(o.id)
	return &Object{sess: o.sess, id: o.id, name: o.name}
}

// Release drops the handle's reference. Releasing twice, or releasing the
// empty handle, does nothing.
func (o *Object) Release() {
	if o.IsNone() {
		return
	}
	o.sess.mu.Lock()
	defer o.sess.mu.Unlock()
	o.releaseLocked()
}

func (o *Object) releaseLocked() {
	if o.IsNone() {
		return
	}
	o.released = true
	o.sess.decrefLocked(o.id)
}

// qualified returns "name.attr" for fault messages.
func (o *Object) qualified(attr string) string {
	if o == nil || o.name == "" {
		return attr
	}
	return o.name + "." + attr
}

// GetAttribute returns a handle to the attribute called name. An attribute
// that is not defined yields the empty handle.
func (o *Object) GetAttribute(name string) (*Object, error) {
	if o.IsNone() {
		return nil, ErrRequiredPropertyMissing(o.qualified(name))
	}
	var attr *Object
	err := o.sess.with(func(L *lua.LState) error {
		var err error
		attr, err = o.getAttributeLocked(L, name)
		return err
	})
	if err != nil {
		return nil, Classify(err)
	}
	return attr, nil
}

// getAttributeLocked is GetAttribute with the interpreter lock held.
func (o *Object) getAttributeLocked(L *lua.LState, name string) (*Object, error) {
	v, err := o.fieldLocked(L, name)
	if err != nil {
		return nil, err
	}
	return o.sess.wrapLocked(v, o.qualified(name)), nil
}

// CallAttribute calls the method called name with o as self and returns a
// handle to its first result.
func (o *Object) CallAttribute(name string, args ...any) (*Object, error) {
	if o.IsNone() {
		return nil, ErrRequiredPropertyMissing(o.qualified(name))
	}
	var result *Object
	err := o.sess.with(func(L *lua.LState) error {
		var err error
		result, err = o.callAttributeLocked(L, name, args...)
		return err
	})
	if err != nil {
		return nil, Classify(err)
	}
	return result, nil
}

// callAttributeLocked is CallAttribute with the interpreter lock held.
func (o *Object) callAttributeLocked(L *lua.LState, name string, args ...any) (*Object, error) {
	ret, err := o.callLocked(L, name, args...)
	if err != nil {
		return nil, err
	}
	return o.sess.wrapLocked(ret, o.qualified(name)), nil
}

// Value converts the wrapped value to a Go value (see ToGo).
func (o *Object) Value() (any, error) {
	if o.IsNone() {
		return nil, nil
	}
	var out any
	err := o.sess.with(func(L *lua.LState) error {
		out = ToGo(o.sess.valueLocked(o.id))
		return nil
	})
	return out, Classify(err)
}

func (o *Object) valueLocked() lua.LValue {
	if o.IsNone() {
		return lua.LNil
	}
	return o.sess.valueLocked(o.id)
}

// fieldLocked reads o[name] inside a protected call so that failing
// __index metamethods surface as errors. It is the body of
// getAttributeLocked.
func (o *Object) fieldLocked(L *lua.LState, name string) (lua.LValue, error) {
	self := o.valueLocked()
	var out lua.LValue = lua.LNil
	err := L.CallByParam(lua.P{
		Fn: L.NewFunction(func(L *lua.LState) int {
			out = L.GetField(self, name)
			return 0
		}),
		NRet:    0,
		Protect: true,
	})
	if err != nil {
		return lua.LNil, err
	}
	return out, nil
}

// setFieldLocked assigns o[name] = v inside a protected call.
func (o *Object) setFieldLocked(L *lua.LState, name string, v lua.LValue) error {
	self := o.valueLocked()
	return L.CallByParam(lua.P{
		Fn: L.NewFunction(func(L *lua.LState) int {
			L.SetField(self, name, v)
			return 0
		}),
		NRet:    0,
		Protect: true,
	})
}

// callLocked calls the method name with self prepended to args and returns
// the raw result. It is the body of callAttributeLocked.
func (o *Object) callLocked(L *lua.LState, name string, args ...any) (lua.LValue, error) {
	fn, err := o.fieldLocked(L, name)
	if err != nil {
		return lua.LNil, err
	}
	if fn == lua.LNil {
		return lua.LNil, ErrRequiredPropertyMissing(o.qualified(name))
	}
	return o.invokeLocked(L, o.qualified(name), fn, args...)
}

// invokeLocked calls fn with o as self. label names fn in fault messages.
func (o *Object) invokeLocked(L *lua.LState, label string, fn lua.LValue, args ...any) (lua.LValue, error) {
	if !isCallable(L, fn) {
		return lua.LNil, typeMismatch(label, "function", fn.Type().String())
	}
	lvArgs, err := toLuaArgs(L, o.sess, args)
	if err != nil {
		return lua.LNil, err
	}
	lvArgs = append([]lua.LValue{o.valueLocked()}, lvArgs...)
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lvArgs...); err != nil {
		return lua.LNil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}
