// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptdev/scriptdev/internal/bridge"
	"github.com/scriptdev/scriptdev/pkg/errutil"
)

func TestSession_LoadScriptClass_FromReturnedTable(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "camera.lua"), "Camera")
	require.NoError(t, err)
	defer class.Release()

	assert.False(t, class.IsNone())
	assert.Equal(t, "Camera", class.Name())
}

func TestSession_LoadScriptClass_FromEnvironment(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "generic.lua"), "Shutter")
	require.NoError(t, err)
	defer class.Release()
	assert.False(t, class.IsNone())
}

func TestSession_LoadScriptClass_MissingScript(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "nope.lua"), "Camera")
	require.Error(t, err)
	assert.Nil(t, class)
	errutil.AssertErrorCode(t, err, bridge.CodeScriptNotFound)
	assert.Equal(t, 0, sess.Stats().ScriptsLoaded)
}

func TestSession_LoadScriptClass_Directory(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	_, err := sess.LoadScriptClass(t.TempDir(), "Camera")
	errutil.AssertErrorCode(t, err, bridge.CodeScriptNotFound)
}

func TestSession_LoadScriptClass_ClassNotFound(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	_, err := sess.LoadScriptClass(fixture(t, "camera.lua"), "Microscope")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, bridge.CodeClassNotFound)
	errutil.AssertErrorContext(t, err, "class", "Microscope")
}

func TestSession_LoadScriptClass_SyntaxError(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	_, err := sess.LoadScriptClass(fixture(t, "syntax.lua"), "Camera")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
	assert.NotEmpty(t, bridge.Detail(err))
}

func TestSession_LoadScriptClass_RuntimeErrorWhileLoading(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")
	script := writeScript(t, t.TempDir(), "boom.lua", `error("no hardware attached", 0)`)

	_, err := sess.LoadScriptClass(script, "Anything")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
	assert.Equal(t, "no hardware attached", bridge.Detail(err))
}

func TestSession_LoadScriptClass_ExecutesScriptOnce(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")
	script := fixture(t, "generic.lua")

	for i := 0; i < 3; i++ {
		class, err := sess.LoadScriptClass(script, "Stage")
		require.NoError(t, err)
		class.Release()
	}

	class, err := sess.LoadScriptClass(script, "Stage")
	require.NoError(t, err)
	defer class.Release()

	stage, err := sess.Instantiate(class, 0)
	require.NoError(t, err)
	defer stage.Release()

	loads, err := stage.CallAttribute("loads")
	require.NoError(t, err)
	defer loads.Release()

	v, err := loads.Value()
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
	assert.Equal(t, 1, sess.Stats().ScriptsLoaded)
}

func TestSession_LoadScriptClass_RequiresFromLibraryPath(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), fixture(t, "lib"))

	class, err := sess.LoadScriptClass(fixture(t, "uses_lib.lua"), "Probe")
	require.NoError(t, err)
	defer class.Release()

	probe, err := sess.Instantiate(class)
	require.NoError(t, err)
	defer probe.Release()

	reading, err := probe.CallAttribute("reading")
	require.NoError(t, err)
	defer reading.Release()

	v, err := reading.Value()
	require.NoError(t, err)
	assert.Equal(t, float64(40), v)
}

func TestSession_Instantiate_TableWithNew(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "camera.lua"), "Camera")
	require.NoError(t, err)
	defer class.Release()

	cam, err := sess.Instantiate(class, 8, 6)
	require.NoError(t, err)
	defer cam.Release()

	width, err := cam.GetAttribute("width")
	require.NoError(t, err)
	defer width.Release()

	v, err := width.Value()
	require.NoError(t, err)
	assert.Equal(t, float64(8), v)
}

func TestSession_Instantiate_InheritedConstructor(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "camera.lua"), "RowCamera")
	require.NoError(t, err)
	defer class.Release()

	cam, err := sess.Instantiate(class)
	require.NoError(t, err)
	defer cam.Release()
	assert.False(t, cam.IsNone())
}

func TestSession_Instantiate_CallableClass(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "generic.lua"), "Shutter")
	require.NoError(t, err)
	defer class.Release()

	shutter, err := sess.Instantiate(class, true)
	require.NoError(t, err)
	defer shutter.Release()

	open, err := shutter.GetAttribute("open")
	require.NoError(t, err)
	defer open.Release()

	v, err := open.Value()
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestSession_Instantiate_NilResult(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "generic.lua"), "Broken")
	require.NoError(t, err)
	defer class.Release()

	_, err = sess.Instantiate(class)
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
}

func TestSession_Instantiate_ConstructorRaises(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "raises.lua"), "Faulty")
	require.NoError(t, err)
	defer class.Release()

	_, err = sess.Instantiate(class)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
	assert.Equal(t, "sensor offline", bridge.Detail(err))
}

func TestSession_Instantiate_NotAClass(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	class, err := sess.LoadScriptClass(fixture(t, "raises.lua"), "NotAClass")
	require.NoError(t, err)
	defer class.Release()

	_, err = sess.Instantiate(class)
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
}

func TestSession_Instantiate_EmptyClass(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")

	_, err := sess.Instantiate(bridge.None())
	errutil.AssertErrorCode(t, err, bridge.CodeRequiredPropertyMissing)
}

func TestSession_Instantiate_ClassFromOtherSession(t *testing.T) {
	sess := ensureSession(t, bridge.NewRegistry(), "")
	other := ensureSession(t, bridge.NewRegistry(), "")

	class, err := other.LoadScriptClass(fixture(t, "camera.lua"), "Camera")
	require.NoError(t, err)
	defer class.Release()

	_, err = sess.Instantiate(class)
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
}

func TestSession_ClosedSessionFaults(t *testing.T) {
	reg := bridge.NewRegistry(bridge.WithTeardownPolicy(bridge.CloseWhenUnused))
	sess, err := reg.EnsureSession(t.Context(), "")
	require.NoError(t, err)

	class, err := sess.LoadScriptClass(fixture(t, "camera.lua"), "Camera")
	require.NoError(t, err)

	reg.ReleaseSession()

	_, err = class.GetAttribute("new")
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterNotFound)
	class.Release()
}

func TestSession_CloseCountsDanglingReferences(t *testing.T) {
	reg := bridge.NewRegistry(bridge.WithTeardownPolicy(bridge.CloseWhenUnused))
	sess, err := reg.EnsureSession(t.Context(), "")
	require.NoError(t, err)

	class, err := sess.LoadScriptClass(fixture(t, "camera.lua"), "Camera")
	require.NoError(t, err)
	clone := class.Clone()

	reg.ReleaseSession()

	st := sess.Stats()
	assert.Equal(t, 0, st.LiveObjects)
	assert.Equal(t, uint64(2), st.Dangling)
	assert.Equal(t, st.Increments, st.Decrements)

	// Releasing after close changes nothing.
	clone.Release()
	class.Release()
	assert.Equal(t, st, sess.Stats())
}
