// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/scriptdev/scriptdev/internal/bridge"
	"github.com/scriptdev/scriptdev/pkg/errutil"
)

func TestClassify(t *testing.T) {
	L := newLuaState(t)
	withMessage := L.NewTable()
	withMessage.RawSetString("message", lua.LString("  shutter jammed "))

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantDetail string
	}{
		{
			name:       "string error value",
			err:        &lua.ApiError{Type: lua.ApiErrorRun, Object: lua.LString("camera.lua:12: overexposed")},
			wantCode:   bridge.CodeInterpreterException,
			wantDetail: "camera.lua:12: overexposed",
		},
		{
			name:       "number error value",
			err:        &lua.ApiError{Type: lua.ApiErrorRun, Object: lua.LNumber(42)},
			wantCode:   bridge.CodeInterpreterException,
			wantDetail: "42",
		},
		{
			name:       "table with message",
			err:        &lua.ApiError{Type: lua.ApiErrorRun, Object: withMessage},
			wantCode:   bridge.CodeInterpreterException,
			wantDetail: "shutter jammed",
		},
		{
			name:     "table without message",
			err:      &lua.ApiError{Type: lua.ApiErrorRun, Object: L.NewTable()},
			wantCode: bridge.CodeNoDiagnosticAvailable,
		},
		{
			name:     "nil error value",
			err:      &lua.ApiError{Type: lua.ApiErrorRun, Object: lua.LNil},
			wantCode: bridge.CodeNoDiagnosticAvailable,
		},
		{
			name:     "blank string",
			err:      &lua.ApiError{Type: lua.ApiErrorRun, Object: lua.LString("   ")},
			wantCode: bridge.CodeNoDiagnosticAvailable,
		},
		{
			name:       "go cause without object",
			err:        &lua.ApiError{Type: lua.ApiErrorPanic, Cause: errors.New("host panic")},
			wantCode:   bridge.CodeInterpreterException,
			wantDetail: "host panic",
		},
		{
			name:       "plain error",
			err:        errors.New("out of memory"),
			wantCode:   bridge.CodeInterpreterException,
			wantDetail: "out of memory",
		},
		{
			name:     "empty error",
			err:      errors.New(""),
			wantCode: bridge.CodeNoDiagnosticAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bridge.Classify(tt.err)
			require.Error(t, got)
			errutil.AssertErrorCode(t, got, tt.wantCode)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, bridge.Detail(got))
			}
		})
	}
}

func TestClassify_NilIsNil(t *testing.T) {
	assert.NoError(t, bridge.Classify(nil))
}

func TestClassify_ClassifiedPassesThrough(t *testing.T) {
	original := bridge.ErrClassNotFound("camera.lua", "Camera")

	got := bridge.Classify(original)
	assert.Equal(t, original, got)

	again := bridge.Classify(bridge.Classify(got))
	assert.Equal(t, original, again)
	assert.Equal(t, original.Error(), again.Error())
}

func TestClassify_UncodedOopsErrorIsException(t *testing.T) {
	err := oops.In("test").Errorf("something broke")

	got := bridge.Classify(err)
	errutil.AssertErrorCode(t, got, bridge.CodeInterpreterException)
}

func TestTranslator_ReportsExactlyOnce(t *testing.T) {
	rec := &recorder{}
	tr := bridge.NewTranslator("cam1", rec)

	err := tr.Translate("snap", &lua.ApiError{Type: lua.ApiErrorRun, Object: lua.LString("no light")})
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, report{message: "cam1: snap: no light", isError: true}, rec.last())

	err = tr.Translate("snap", &lua.ApiError{Type: lua.ApiErrorRun, Object: lua.LNil})
	errutil.AssertErrorCode(t, err, bridge.CodeNoDiagnosticAvailable)
	assert.Equal(t, 2, rec.count())
	assert.Contains(t, rec.last().message, bridge.KindNoDiagnosticAvailable.Template())
}

func TestTranslator_NilErrorNotReported(t *testing.T) {
	rec := &recorder{}
	tr := bridge.NewTranslator("cam1", rec)

	assert.NoError(t, tr.Translate("snap", nil))
	assert.Equal(t, 0, rec.count())
}

func TestTranslator_MissingPropertyMessage(t *testing.T) {
	rec := &recorder{}
	tr := bridge.NewTranslator("cam1", rec)

	err := tr.Translate("initialize", bridge.ErrRequiredPropertyMissing("Camera.binning"))
	errutil.AssertErrorCode(t, err, bridge.CodeRequiredPropertyMissing)
	assert.Equal(t, "cam1: initialize: missing required property 'Camera.binning'", rec.last().message)
}

func TestTranslator_ReporterPanicDoesNotEscape(t *testing.T) {
	tr := bridge.NewTranslator("cam1", bridge.ReporterFunc(func(string, bool) {
		panic("log sink gone")
	}))

	var err error
	assert.NotPanics(t, func() {
		err = tr.Translate("snap", errors.New("boom"))
	})
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
}

func TestTranslator_NilReporter(t *testing.T) {
	tr := bridge.NewTranslator("", nil)
	err := tr.Translate("", errors.New("boom"))
	errutil.AssertErrorCode(t, err, bridge.CodeInterpreterException)
}

func TestTemplates_StableCodes(t *testing.T) {
	want := map[int]string{
		101: bridge.CodeInterpreterNotFound,
		102: bridge.CodeLibraryPathConflict,
		103: bridge.CodeScriptNotFound,
		104: bridge.CodeClassNotFound,
		105: bridge.CodeInterpreterException,
		106: bridge.CodeNoDiagnosticAvailable,
		107: bridge.CodeRequiredPropertyMissing,
	}

	texts := bridge.Templates()
	require.Len(t, texts, len(want))
	for i, text := range texts {
		assert.Equal(t, 101+i, text.Code)
		assert.Equal(t, want[text.Code], text.Kind.String())
		assert.NotEmpty(t, text.Text)
	}
}

func TestHostCode(t *testing.T) {
	assert.Equal(t, bridge.HostOK, bridge.HostCode(nil))
	assert.Equal(t, 103, bridge.HostCode(bridge.ErrScriptNotFound("x.lua", nil)))
	assert.Equal(t, 107, bridge.HostCode(bridge.ErrRequiredPropertyMissing("read")))
	assert.Equal(t, 106, bridge.HostCode(errors.New("unclassified")))
	assert.Equal(t, bridge.KindNone, bridge.KindOf(errors.New("unclassified")))
}
