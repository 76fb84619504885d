// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// refsKey is the Lua registry field holding the anchor table.
const refsKey = "scriptdev.refs"

// anchor is the interpreter-side reference count of one Lua value.
type anchor struct {
	value lua.LValue
	count int
}

// Session is one embedded interpreter shared by every device binding of a
// Registry. gopher-lua states are single threaded, so all entries into the
// state are serialized through mu.
type Session struct {
	mu          sync.Mutex
	state       *lua.LState
	libraryPath string
	closed      bool

	// scripts holds the environment of every executed script file.
	scripts map[string]*lua.LTable

	refs    *lua.LTable
	anchors map[uint64]*anchor
	nextID  uint64

	increments uint64
	decrements uint64
	dangling   uint64
}

func newSession(state *lua.LState, libraryPath string) *Session {
	refs := state.NewTable()
	state.SetField(state.Get(lua.RegistryIndex), refsKey, refs)
	return &Session{
		state:       state,
		libraryPath: libraryPath,
		scripts:     make(map[string]*lua.LTable),
		refs:        refs,
		anchors:     make(map[uint64]*anchor),
	}
}

// LibraryPath returns the resolved interpreter library path of the session.
func (s *Session) LibraryPath() string {
	return s.libraryPath
}

// with runs fn holding the interpreter lock. Panics escaping fn are turned
// into errors and the Lua stack is restored to where it was.
func (s *Session) with(fn func(L *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrInterpreterNotFound(s.libraryPath, oops.Errorf("interpreter session is closed"))
	}

	L := s.state
	top := L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			L.SetTop(top)
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return fn(L)
}

// anchorLocked registers one more Go-side holder of v and returns its
// anchor id. Caller holds s.mu.
func (s *Session) anchorLocked(v lua.LValue) uint64 {
	s.nextID++
	id := s.nextID
	s.anchors[id] = &anchor{value: v, count: 1}
	if !s.closed {
		s.refs.RawSetInt(int(id), v)
	}
	s.increments++
	LiveObjects.Inc()
	return id
}

func (s *Session) increfLocked(id uint64) {
	a, ok := s.anchors[id]
	if !ok {
		return
	}
	a.count++
	s.increments++
}

// decrefLocked drops one holder. At zero the value leaves the anchor table
// and becomes collectable by the interpreter.
func (s *Session) decrefLocked(id uint64) {
	a, ok := s.anchors[id]
	if !ok {
		return
	}
	a.count--
	s.decrements++
	if a.count > 0 {
		return
	}
	delete(s.anchors, id)
	if !s.closed {
		s.refs.RawSetInt(int(id), lua.LNil)
	}
	LiveObjects.Dec()
}

func (s *Session) valueLocked(id uint64) lua.LValue {
	if a, ok := s.anchors[id]; ok {
		return a.value
	}
	return lua.LNil
}

// wrapLocked returns a managed handle for v, or the empty handle for nil.
func (s *Session) wrapLocked(v lua.LValue, name string) *Object {
	if v == nil || v == lua.LNil {
		return None()
	}
	return &Object{sess: s, id: s.anchorLocked(v), name: name}
}

// LoadScriptClass executes scriptPath (once per session) and returns a
// reference to the class named className. The class is not instantiated.
func (s *Session) LoadScriptClass(scriptPath, className string) (*Object, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, ErrScriptNotFound(scriptPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, ErrScriptNotFound(abs, err)
	}
	if info.IsDir() {
		return nil, ErrScriptNotFound(abs, oops.Errorf("path is a directory"))
	}

	var class *Object
	err = s.with(func(L *lua.LState) error {
		env, err := s.executeLocked(L, abs)
		if err != nil {
			return err
		}

		var v lua.LValue = lua.LNil
		if exports, ok := env.RawGetString(exportsKey).(*lua.LTable); ok {
			v = exports.RawGetString(className)
		}
		if v == lua.LNil {
			v = env.RawGetString(className)
		}
		if v == lua.LNil {
			return ErrClassNotFound(abs, className)
		}
		class = s.wrapLocked(v, className)
		return nil
	})
	if err != nil {
		return nil, Classify(err)
	}
	return class, nil
}

// exportsKey stores the value a script chunk returned inside its environment.
const exportsKey = "__exports"

// executeLocked runs the script at path in a fresh environment the first
// time it is seen and returns the cached environment afterwards.
func (s *Session) executeLocked(L *lua.LState, path string) (*lua.LTable, error) {
	if env, ok := s.scripts[path]; ok {
		return env, nil
	}

	chunk, err := L.LoadFile(path)
	if err != nil {
		return nil, err
	}

	env := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", L.Get(lua.GlobalsIndex))
	L.SetMetatable(env, mt)
	L.SetFEnv(chunk, env)

	if err := L.CallByParam(lua.P{
		Fn:      chunk,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	if _, ok := ret.(*lua.LTable); ok {
		env.RawSetString(exportsKey, ret)
	}

	s.scripts[path] = env
	return env, nil
}

// Instantiate calls class as a constructor. Functions and values with a
// __call metamethod are called directly; tables with a "new" function are
// called as class:new(args...).
func (s *Session) Instantiate(class *Object, args ...any) (*Object, error) {
	if class.IsNone() {
		return nil, ErrRequiredPropertyMissing("class")
	}
	if class.sess != s {
		return nil, ErrInterpreterException("class belongs to a different interpreter session")
	}

	var obj *Object
	err := s.with(func(L *lua.LState) error {
		cls := s.valueLocked(class.id)

		lvArgs, err := toLuaArgs(L, s, args)
		if err != nil {
			return err
		}

		ctor := cls
		if !isCallable(L, cls) {
			tbl, ok := cls.(*lua.LTable)
			if !ok {
				return ErrInterpreterException(fmt.Sprintf("class %s is a %s and cannot be instantiated", class.name, cls.Type()))
			}
			ctor = L.GetField(tbl, "new")
			if !isCallable(L, ctor) {
				return ErrInterpreterException(fmt.Sprintf("class %s has no constructor", class.name))
			}
			lvArgs = append([]lua.LValue{cls}, lvArgs...)
		}

		if err := L.CallByParam(lua.P{
			Fn:      ctor,
			NRet:    1,
			Protect: true,
		}, lvArgs...); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LNil {
			return ErrInterpreterException(fmt.Sprintf("constructor of %s returned nil", class.name))
		}
		obj = s.wrapLocked(ret, class.name)
		return nil
	})
	if err != nil {
		return nil, Classify(err)
	}
	return obj, nil
}

func isCallable(L *lua.LState, v lua.LValue) bool {
	if v.Type() == lua.LTFunction {
		return true
	}
	return L.GetMetaField(v, "__call") != lua.LNil
}

// Stats is a snapshot of session bookkeeping.
type Stats struct {
	LiveDevices int
	LiveObjects int
	Increments  uint64
	Decrements  uint64
	// Dangling counts references still held when the session closed. They
	// are included in Decrements.
	Dangling      uint64
	ScriptsLoaded int
}

// Stats returns the session part of a Stats snapshot. LiveDevices is
// tracked by the Registry and left zero.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		LiveObjects:   len(s.anchors),
		Increments:    s.increments,
		Decrements:    s.decrements,
		Dangling:      s.dangling,
		ScriptsLoaded: len(s.scripts),
	}
}

// close shuts the Lua state down. Objects still held become dangling: their
// references are counted as released, their Release is a no-op and every
// other call fails with InterpreterNotFound.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, a := range s.anchors {
		s.dangling += uint64(a.count)
		s.decrements += uint64(a.count)
	}
	LiveObjects.Sub(float64(len(s.anchors)))
	clear(s.anchors)
	s.state.Close()
}
