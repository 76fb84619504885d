// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Reporter is the one-way logging side channel of the host.
type Reporter interface {
	Report(message string, isError bool)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(message string, isError bool)

// Report implements Reporter.
func (f ReporterFunc) Report(message string, isError bool) {
	f(message, isError)
}

// Classify converts any error coming out of the interpreter boundary into
// a bridge fault. Errors that already carry a fault kind are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindNone {
		return err
	}

	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		if msg := errorMessage(apiErr.Object); msg != "" {
			return ErrInterpreterException(msg)
		}
		if apiErr.Object == nil && apiErr.Cause != nil {
			if msg := strings.TrimSpace(apiErr.Cause.Error()); msg != "" {
				return ErrInterpreterException(msg)
			}
		}
		return ErrNoDiagnostic()
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return ErrInterpreterException(msg)
	}
	return ErrNoDiagnostic()
}

// errorMessage extracts a message from a raised Lua value. Strings and
// numbers are used directly; tables may carry a string "message" field.
func errorMessage(v lua.LValue) string {
	switch val := v.(type) {
	case lua.LString:
		return strings.TrimSpace(string(val))
	case lua.LNumber:
		return val.String()
	case *lua.LTable:
		if msg, ok := val.RawGetString("message").(lua.LString); ok {
			return strings.TrimSpace(string(msg))
		}
	}
	return ""
}

// Translator is the fault boundary of one device binding. Every fault that
// leaves the bridge passes through Translate exactly once.
type Translator struct {
	reporter Reporter
	device   string
}

// NewTranslator creates a translator reporting to r. A nil reporter drops
// reports.
func NewTranslator(device string, r Reporter) *Translator {
	return &Translator{reporter: r, device: device}
}

// Translate classifies err, reports it once on the side channel and returns
// the classified fault. It never panics; if anything goes wrong while
// inspecting err the result degrades to the no-diagnostic fault.
func (t *Translator) Translate(op string, err error) (out error) {
	if err == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = ErrNoDiagnostic()
		}
		t.report(op, out)
	}()
	return Classify(err)
}

func (t *Translator) report(op string, err error) {
	defer func() {
		_ = recover()
	}()
	kind := KindOf(err)
	recordFault(kind)
	if t == nil || t.reporter == nil {
		return
	}
	t.reporter.Report(t.message(op, kind, err), true)
}

func (t *Translator) message(op string, kind Kind, err error) string {
	var b strings.Builder
	if t.device != "" {
		b.WriteString(t.device)
		b.WriteString(": ")
	}
	if op != "" {
		b.WriteString(op)
		b.WriteString(": ")
	}
	switch kind {
	case KindInterpreterException:
		b.WriteString(Detail(err))
	case KindRequiredPropertyMissing:
		b.WriteString("missing required property '")
		b.WriteString(Detail(err))
		b.WriteString("'")
	default:
		b.WriteString(kind.Template())
		if msg := err.Error(); msg != "" {
			b.WriteString(" (")
			b.WriteString(msg)
			b.WriteString(")")
		}
	}
	return b.String()
}
