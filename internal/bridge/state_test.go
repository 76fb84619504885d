// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge_test

import (
	"context"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/scriptdev/scriptdev/internal/bridge"
)

func TestStateFactory_NewState_LoadsSafeLibraries(t *testing.T) {
	factory := bridge.NewStateFactory()
	L, err := factory.NewState(context.Background(), "")
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	for _, lib := range []string{"table", "string", "math", "package", "scriptdev"} {
		if L.GetGlobal(lib).Type() == lua.LTNil {
			t.Errorf("library %q not loaded", lib)
		}
	}
}

func TestStateFactory_NewState_BlocksUnsafeLibraries(t *testing.T) {
	factory := bridge.NewStateFactory()
	L, err := factory.NewState(context.Background(), "")
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile"} {
		if L.GetGlobal(name).Type() != lua.LTNil {
			t.Errorf("%q should not be available", name)
		}
	}
}

func TestStateFactory_WithFullLibraries(t *testing.T) {
	factory := bridge.NewStateFactory(bridge.WithFullLibraries())
	L, err := factory.NewState(context.Background(), "")
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	for _, name := range []string{"os", "io", "dofile"} {
		if L.GetGlobal(name).Type() == lua.LTNil {
			t.Errorf("%q should be available", name)
		}
	}
}

func TestStateFactory_NewState_SearchPathRootedAtLibrary(t *testing.T) {
	lib := fixture(t, "lib")
	L, err := bridge.NewStateFactory().NewState(context.Background(), lib)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	path := L.GetField(L.GetGlobal("package"), "path").String()
	if !strings.HasPrefix(path, lib) {
		t.Errorf("package.path = %q, want prefix %q", path, lib)
	}

	if err := L.DoString(`result = require("sensors").scale(3)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := L.GetGlobal("result").String(); got != "30" {
		t.Errorf("result = %v, want 30", got)
	}
}

func TestStateFactory_NewState_JSONModule(t *testing.T) {
	L, err := bridge.NewStateFactory().NewState(context.Background(), "")
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	err = L.DoString(`
		local json = require("json")
		local decoded = json.decode('{"exposure": 12.5}')
		result = json.encode({ exposure = decoded.exposure * 2 })
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := L.GetGlobal("result").String(); got != `{"exposure":25}` {
		t.Errorf("result = %v, want {\"exposure\":25}", got)
	}
}

func TestStateFactory_NewState_LogFunction(t *testing.T) {
	L, err := bridge.NewStateFactory().NewState(context.Background(), "")
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	if err := L.DoString(`scriptdev.log("info", "camera ready")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if err := L.DoString(`scriptdev.log("info")`); err == nil {
		t.Error("log without message should fail")
	}
}
