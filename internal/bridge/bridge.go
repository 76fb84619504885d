// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

// Package bridge connects host devices to objects living in an embedded Lua
// interpreter.
//
// A Registry owns the one interpreter Session of a process. Each host device
// gets a Bridge, which loads the configured script class, instantiates it
// and marshals every device operation into the resulting object. Faults
// never leave a Bridge method unclassified: each public method translates
// its error exactly once and reports it on the host logging channel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scriptdev/bridge")

// State is the lifecycle state of a device binding.
type State int

// Binding lifecycle states, in order.
const (
	Unconstructed State = iota
	SessionReady
	ObjectInstantiated
	Initialized
	ShuttingDown
	Released
)

func (s State) String() string {
	switch s {
	case Unconstructed:
		return "unconstructed"
	case SessionReady:
		return "session-ready"
	case ObjectInstantiated:
		return "object-instantiated"
	case Initialized:
		return "initialized"
	case ShuttingDown:
		return "shutting-down"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the pre-initialization settings of a device binding.
type Config struct {
	// LibraryPath is the root of the Lua module search path. Empty keeps the
	// interpreter default.
	LibraryPath string
	// ScriptPath is the script file defining the device class.
	ScriptPath string
	// ClassName is the class to instantiate.
	ClassName string
	// Args are passed to the class constructor.
	Args []any
}

// Validate checks that the settings needed before any interpreter call are
// present.
func (c Config) Validate() error {
	if c.ScriptPath == "" {
		return ErrScriptNotFound("", errors.New("script path is not set"))
	}
	if c.ClassName == "" {
		return ErrClassNotFound(c.ScriptPath, "")
	}
	return nil
}

// Bridge is the binding between one host device and one scripted object.
//
// The host does not call into one device from several goroutines at once,
// but Bridge methods are safe for concurrent use anyway. Different Bridges
// sharing a Registry are serialized on the session interpreter lock.
type Bridge struct {
	id         ulid.ULID
	name       string
	registry   *Registry
	translator *Translator

	mu      sync.Mutex
	state   State
	session *Session
	object  *Object

	// pending anchors the value the last capture returned; frame is the
	// host view of it.
	pending *Object
	frame   *Frame
}

// New creates an unconstructed binding for the device called name. Faults
// are reported on reporter.
func New(reg *Registry, name string, reporter Reporter) *Bridge {
	return &Bridge{
		id:         ulid.Make(),
		name:       name,
		registry:   reg,
		translator: NewTranslator(name, reporter),
	}
}

// ID returns the unique binding id.
func (b *Bridge) ID() string {
	return b.id.String()
}

// Name returns the device name.
func (b *Bridge) Name() string {
	return b.name
}

// State returns the lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the shared session.
func (b *Bridge) Stats() Stats {
	return b.registry.Stats()
}

// Initialize joins the interpreter session, loads the script class and
// instantiates it. On failure the binding stays in the state it reached;
// the caller is expected to Destruct it.
func (b *Bridge) Initialize(ctx context.Context, cfg Config) (err error) {
	ctx, span := tracer.Start(ctx, "bridge.initialize",
		trace.WithAttributes(
			attribute.String("device.id", b.ID()),
			attribute.String("device.name", b.name),
			attribute.String("script.path", cfg.ScriptPath),
			attribute.String("script.class", cfg.ClassName),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finish("initialize", "", start, b.initializeLocked(ctx, cfg))
}

func (b *Bridge) initializeLocked(ctx context.Context, cfg Config) error {
	if b.state != Unconstructed {
		return ErrInterpreterException(fmt.Sprintf("device cannot be initialized in state %s", b.state))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sess, err := b.registry.EnsureSession(ctx, cfg.LibraryPath)
	if err != nil {
		return err
	}
	b.session = sess
	b.state = SessionReady

	class, err := sess.LoadScriptClass(cfg.ScriptPath, cfg.ClassName)
	if err != nil {
		return err
	}
	defer class.Release()

	obj, err := sess.Instantiate(class, cfg.Args...)
	if err != nil {
		return err
	}
	b.object = obj
	b.state = ObjectInstantiated
	return nil
}

// MarkInitialized records that device-specific validation succeeded.
func (b *Bridge) MarkInitialized() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == ObjectInstantiated {
		b.state = Initialized
	}
}

// Destruct releases the pending frame, the scripted object and the session
// hold. It may be called in any state and only acts the first time.
func (b *Bridge) Destruct(ctx context.Context) {
	_, span := tracer.Start(ctx, "bridge.destruct",
		trace.WithAttributes(attribute.String("device.id", b.ID())),
	)
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == ShuttingDown || b.state == Released {
		return
	}
	span.SetAttributes(attribute.String("device.state", b.state.String()))
	b.state = ShuttingDown

	b.pending.Release()
	b.pending = nil
	b.frame = nil

	b.object.Release()
	b.object = nil

	if b.session != nil {
		b.session = nil
		b.registry.ReleaseSession()
	}
	b.state = Released
}

// finish translates err once and records the call metrics.
func (b *Bridge) finish(op, subject string, start time.Time, err error) error {
	label := op
	if subject != "" {
		label = op + " " + subject
	}
	err = b.translator.Translate(label, err)
	recordCall(op, start, err)
	return err
}

// run executes fn against the scripted object under the interpreter lock.
func (b *Bridge) run(op, subject string, fn func(L *lua.LState, obj *Object) error) error {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finish(op, subject, start, b.runLocked(subject, fn))
}

func (b *Bridge) runLocked(subject string, fn func(L *lua.LState, obj *Object) error) error {
	if b.object.IsNone() {
		if subject == "" {
			subject = "object"
		}
		return ErrRequiredPropertyMissing(b.object.qualified(subject))
	}
	obj := b.object
	return b.session.with(func(L *lua.LState) error {
		return fn(L, obj)
	})
}

// propertyLocked reads a property. A get_<name> method takes precedence
// over a plain field. A missing property yields nil.
func propertyLocked(L *lua.LState, obj *Object, name string) (lua.LValue, error) {
	getter, err := obj.fieldLocked(L, "get_"+name)
	if err != nil {
		return lua.LNil, err
	}
	if getter != lua.LNil {
		return obj.invokeLocked(L, obj.qualified("get_"+name), getter)
	}
	return obj.fieldLocked(L, name)
}

func requiredLocked(L *lua.LState, obj *Object, name string) (lua.LValue, error) {
	v, err := propertyLocked(L, obj, name)
	if err != nil {
		return lua.LNil, err
	}
	if v == lua.LNil {
		return lua.LNil, ErrRequiredPropertyMissing(obj.qualified(name))
	}
	return v, nil
}

// setPropertyLocked writes a property through set_<name> when the object
// has one, and assigns the field otherwise.
func setPropertyLocked(L *lua.LState, obj *Object, name string, v any) error {
	setter, err := obj.fieldLocked(L, "set_"+name)
	if err != nil {
		return err
	}
	if setter != lua.LNil {
		_, err := obj.invokeLocked(L, obj.qualified("set_"+name), setter, v)
		return err
	}
	lv, err := ToLua(L, obj.sess, v)
	if err != nil {
		return typeMismatch(obj.qualified(name), "a convertible value", err.Error())
	}
	return obj.setFieldLocked(L, name, lv)
}

// Get returns a handle to the property name, or the empty handle when the
// object does not define it. The caller releases the handle.
func (b *Bridge) Get(name string) (*Object, error) {
	var out *Object
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		getter, err := obj.getAttributeLocked(L, "get_"+name)
		if err != nil {
			return err
		}
		defer getter.releaseLocked()
		if getter.IsNone() {
			out, err = obj.getAttributeLocked(L, name)
			return err
		}
		v, err := obj.invokeLocked(L, getter.Name(), getter.valueLocked())
		if err != nil {
			return err
		}
		out = obj.sess.wrapLocked(v, obj.qualified(name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Has reports whether the object defines the property name.
func (b *Bridge) Has(name string) (bool, error) {
	var found bool
	err := b.run("has", name, func(L *lua.LState, obj *Object) error {
		v, err := propertyLocked(L, obj, name)
		found = v != lua.LNil
		return err
	})
	return found, err
}

// Require checks that every named property is defined. It stops at the
// first missing one.
func (b *Bridge) Require(names ...string) error {
	return b.run("require", "", func(L *lua.LState, obj *Object) error {
		for _, name := range names {
			if _, err := requiredLocked(L, obj, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Method returns a handle to the callable attribute name. It fails when the
// attribute is missing or cannot be called.
func (b *Bridge) Method(name string) (*Object, error) {
	var out *Object
	err := b.run("method", name, func(L *lua.LState, obj *Object) error {
		fn, err := obj.getAttributeLocked(L, name)
		if err != nil {
			return err
		}
		if fn.IsNone() {
			return ErrRequiredPropertyMissing(obj.qualified(name))
		}
		if v := fn.valueLocked(); !isCallable(L, v) {
			fn.releaseLocked()
			return typeMismatch(obj.qualified(name), "function", v.Type().String())
		}
		out = fn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Value returns the property name converted with ToGo, or nil when it is
// not defined.
func (b *Bridge) Value(name string) (any, error) {
	var out any
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := propertyLocked(L, obj, name)
		out = ToGo(v)
		return err
	})
	return out, err
}

// Float reads a required numeric property.
func (b *Bridge) Float(name string) (float64, error) {
	var out float64
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := requiredLocked(L, obj, name)
		if err != nil {
			return err
		}
		out, err = AsFloat(v, obj.qualified(name))
		return err
	})
	return out, err
}

// Int reads a required integral property.
func (b *Bridge) Int(name string) (int, error) {
	var out int
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := requiredLocked(L, obj, name)
		if err != nil {
			return err
		}
		out, err = AsInt(v, obj.qualified(name))
		return err
	})
	return out, err
}

// Bool reads a required boolean property.
func (b *Bridge) Bool(name string) (bool, error) {
	var out bool
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := requiredLocked(L, obj, name)
		if err != nil {
			return err
		}
		out, err = AsBool(v, obj.qualified(name))
		return err
	})
	return out, err
}

// Text reads a required string property.
func (b *Bridge) Text(name string) (string, error) {
	var out string
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := requiredLocked(L, obj, name)
		if err != nil {
			return err
		}
		out, err = AsString(v, obj.qualified(name))
		return err
	})
	return out, err
}

// Tuple reads a required property holding exactly n numbers.
func (b *Bridge) Tuple(name string, n int) ([]float64, error) {
	var out []float64
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := requiredLocked(L, obj, name)
		if err != nil {
			return err
		}
		out, err = AsTuple(v, n, obj.qualified(name))
		return err
	})
	return out, err
}

// IntTuple reads a required property holding exactly n integers.
func (b *Bridge) IntTuple(name string, n int) ([]int, error) {
	var out []int
	err := b.run("get", name, func(L *lua.LState, obj *Object) error {
		v, err := requiredLocked(L, obj, name)
		if err != nil {
			return err
		}
		out, err = AsIntTuple(v, n, obj.qualified(name))
		return err
	})
	return out, err
}

// Set writes the property name.
func (b *Bridge) Set(name string, v any) error {
	return b.run("set", name, func(L *lua.LState, obj *Object) error {
		return setPropertyLocked(L, obj, name, v)
	})
}

// SetFloat writes a numeric property.
func (b *Bridge) SetFloat(name string, v float64) error {
	return b.Set(name, v)
}

// SetInt writes an integral property.
func (b *Bridge) SetInt(name string, v int) error {
	return b.Set(name, v)
}

// Call calls the method name and returns a handle to its result. The
// caller releases the handle.
func (b *Bridge) Call(name string, args ...any) (*Object, error) {
	var out *Object
	err := b.run("call", name, func(L *lua.LState, obj *Object) error {
		var err error
		out, err = obj.callAttributeLocked(L, name, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CallValue calls the method name and converts its result with ToGo.
func (b *Bridge) CallValue(name string, args ...any) (any, error) {
	var out any
	err := b.run("call", name, func(L *lua.LState, obj *Object) error {
		ret, err := obj.callLocked(L, name, args...)
		out = ToGo(ret)
		return err
	})
	return out, err
}

// Invoke calls fn, usually a handle obtained from Method, with the scripted
// object as self and returns a handle to its result.
func (b *Bridge) Invoke(fn *Object, args ...any) (*Object, error) {
	var out *Object
	err := b.run("invoke", fn.Name(), func(L *lua.LState, obj *Object) error {
		callee, err := calleeLocked(obj, fn)
		if err != nil {
			return err
		}
		ret, err := obj.invokeLocked(L, fn.Name(), callee, args...)
		if err != nil {
			return err
		}
		out = obj.sess.wrapLocked(ret, fn.Name())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func calleeLocked(obj, fn *Object) (lua.LValue, error) {
	if fn.IsNone() {
		name := fn.Name()
		if name == "" {
			name = "callable"
		}
		return lua.LNil, ErrRequiredPropertyMissing(name)
	}
	if fn.sess != obj.sess {
		return lua.LNil, ErrInterpreterException(fmt.Sprintf("%s belongs to a different interpreter session", fn.Name()))
	}
	return fn.valueLocked(), nil
}

// Capture calls trigger and then read on the scripted object and keeps the
// frame read returned as the pending image buffer. The previous pending
// buffer is released only once the new frame has been read, right before
// the new one is anchored, so exactly one is alive after the first
// successful capture. A failed capture leaves the previous frame pending.
// The returned frame stays valid until the next Capture or Destruct.
func (b *Bridge) Capture(ctx context.Context, trigger, read *Object) (frame *Frame, err error) {
	_, span := tracer.Start(ctx, "bridge.capture",
		trace.WithAttributes(attribute.String("device.id", b.ID())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("frame.width", frame.Width),
				attribute.Int("frame.height", frame.Height),
			)
		}
		span.End()
	}()

	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.runLocked("capture", func(L *lua.LState, obj *Object) error {
		trig, err := calleeLocked(obj, trigger)
		if err != nil {
			return err
		}
		if _, err := obj.invokeLocked(L, trigger.Name(), trig); err != nil {
			return err
		}

		rd, err := calleeLocked(obj, read)
		if err != nil {
			return err
		}
		v, err := obj.invokeLocked(L, read.Name(), rd)
		if err != nil {
			return err
		}
		f, err := AsFrame(v, read.Name())
		if err != nil {
			return err
		}
		b.pending.releaseLocked()
		b.pending = obj.sess.wrapLocked(v, read.Name())
		b.frame = f
		return nil
	})
	if err = b.finish("capture", "", start, err); err != nil {
		return nil, err
	}
	return b.frame, nil
}

// PendingFrame returns the frame of the last successful capture, or nil.
func (b *Bridge) PendingFrame() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// Attributes lists the string keys defined on the object and on the table
// its metatable indexes into, sorted.
func (b *Bridge) Attributes() ([]string, error) {
	var out []string
	err := b.run("attributes", "", func(L *lua.LState, obj *Object) error {
		seen := make(map[string]bool)
		collect := func(v lua.LValue) {
			tbl, ok := v.(*lua.LTable)
			if !ok {
				return
			}
			for _, k := range sortedKeys(tbl) {
				if !seen[k] && len(k) > 0 && k[0] != '_' {
					seen[k] = true
					out = append(out, k)
				}
			}
		}
		self := obj.valueLocked()
		collect(self)
		collect(L.GetMetaField(self, "__index"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
