// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
)

// library is a Lua standard library opened in new states.
type library struct {
	name string
	fn   lua.LGFunction
}

// defaultLibraries returns the libraries opened in sandboxed states.
// Opened: base, package, table, string, math.
// Blocked: os, io, debug.
func defaultLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.LoadLibName, lua.OpenPackage},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// fullLibraries adds the os and io libraries for scripts that talk to
// hardware through files or processes.
func fullLibraries() []library {
	return append(defaultLibraries(),
		library{lua.OsLibName, lua.OpenOs},
		library{lua.IoLibName, lua.OpenIo},
	)
}

// unsafeBaseFunctions load code from outside the library path.
var unsafeBaseFunctions = []string{"dofile", "loadfile"}

// StateFactory creates Lua states for interpreter sessions.
type StateFactory struct {
	libraries []library
	sandboxed bool
}

// FactoryOption configures a StateFactory.
type FactoryOption func(*StateFactory)

// WithFullLibraries opens the os and io libraries and keeps dofile/loadfile.
func WithFullLibraries() FactoryOption {
	return func(f *StateFactory) {
		f.libraries = fullLibraries()
		f.sandboxed = false
	}
}

// NewStateFactory creates a new state factory.
func NewStateFactory(opts ...FactoryOption) *StateFactory {
	f := &StateFactory{
		libraries: defaultLibraries(),
		sandboxed: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewState creates a Lua state whose module search path is rooted at
// libraryPath. An empty libraryPath keeps the interpreter default.
//
// Besides the standard libraries every state gets the "json" module, the
// "scriptdev.frame" module and a global "scriptdev" table with log().
func (f *StateFactory) NewState(_ context.Context, libraryPath string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("bridge").With("library", lib.name).Wrapf(err, "failed to open library %s", lib.name)
		}
	}

	if f.sandboxed {
		for _, fn := range unsafeBaseFunctions {
			L.SetGlobal(fn, lua.LNil)
		}
	}

	if libraryPath != "" {
		if pkg, ok := L.GetGlobal(lua.LoadLibName).(*lua.LTable); ok {
			pkg.RawSetString("path", lua.LString(searchPath(libraryPath)))
			pkg.RawSetString("cpath", lua.LString(""))
		}
	}

	luajson.Preload(L)
	registerFrameType(L)
	L.PreloadModule(FrameModuleName, frameLoader)
	registerHostFunctions(L)

	return L, nil
}

func searchPath(libraryPath string) string {
	return strings.Join([]string{
		filepath.Join(libraryPath, "?.lua"),
		filepath.Join(libraryPath, "?", "init.lua"),
	}, ";")
}

// registerHostFunctions installs the global scriptdev table.
func registerHostFunctions(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(logFn))
	L.SetGlobal("scriptdev", mod)
}

func logFn(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	logger := slog.Default().With("source", "script")
	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return 0
}
