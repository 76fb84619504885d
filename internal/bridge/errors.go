// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"fmt"
	"sort"

	"github.com/samber/oops"
)

// Kind identifies one entry of the fixed fault taxonomy reported to the host.
type Kind int

// Fault kinds. The zero value means "not a bridge fault".
const (
	KindNone Kind = iota
	KindInterpreterNotFound
	KindLibraryPathConflict
	KindScriptNotFound
	KindClassNotFound
	KindInterpreterException
	KindNoDiagnosticAvailable
	KindRequiredPropertyMissing
)

// Error codes for bridge faults. The oops codes are used inside Go, the
// host codes are what the host displays and logs and must never change.
const (
	CodeInterpreterNotFound     = "INTERPRETER_NOT_FOUND"
	CodeLibraryPathConflict     = "LIBRARY_PATH_CONFLICT"
	CodeScriptNotFound          = "SCRIPT_NOT_FOUND"
	CodeClassNotFound           = "CLASS_NOT_FOUND"
	CodeInterpreterException    = "INTERPRETER_EXCEPTION"
	CodeNoDiagnosticAvailable   = "NO_DIAGNOSTIC_AVAILABLE"
	CodeRequiredPropertyMissing = "REQUIRED_PROPERTY_MISSING"
)

// HostOK is the host code for success.
const HostOK = 0

type kindInfo struct {
	code     string
	hostCode int
	template string
}

var kindTable = map[Kind]kindInfo{
	KindInterpreterNotFound: {
		code:     CodeInterpreterNotFound,
		hostCode: 101,
		template: "Could not initialize the script interpreter, perhaps an incorrect library path was specified?",
	},
	KindLibraryPathConflict: {
		code:     CodeLibraryPathConflict,
		hostCode: 102,
		template: "All scripted devices must have the same interpreter library path",
	},
	KindScriptNotFound: {
		code:     CodeScriptNotFound,
		hostCode: 103,
		template: "Could not find the script at the specified location",
	},
	KindClassNotFound: {
		code:     CodeClassNotFound,
		hostCode: 104,
		template: "Could not find a class definition with the specified name",
	},
	KindInterpreterException: {
		code:     CodeInterpreterException,
		hostCode: 105,
		template: "The script raised an error, check the log for details",
	},
	KindNoDiagnosticAvailable: {
		code:     CodeNoDiagnosticAvailable,
		hostCode: 106,
		template: "A script error occurred, but no further information was available",
	},
	KindRequiredPropertyMissing: {
		code:     CodeRequiredPropertyMissing,
		hostCode: 107,
		template: "The script class is missing a required property, check the log for details",
	},
}

// String returns the oops code of the kind.
func (k Kind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.code
	}
	return "NONE"
}

// HostCode returns the stable integer code shown by the host.
func (k Kind) HostCode() int {
	if info, ok := kindTable[k]; ok {
		return info.hostCode
	}
	return HostOK
}

// Template returns the static message installed in the host error table.
func (k Kind) Template() string {
	return kindTable[k].template
}

// Templates returns the static host code to message table, in code order.
func Templates() []ErrorText {
	texts := make([]ErrorText, 0, len(kindTable))
	for kind, info := range kindTable {
		texts = append(texts, ErrorText{Kind: kind, Code: info.hostCode, Text: info.template})
	}
	sort.Slice(texts, func(i, j int) bool { return texts[i].Code < texts[j].Code })
	return texts
}

// ErrorText is one row of the host error table.
type ErrorText struct {
	Kind Kind
	Code int
	Text string
}

// KindOf returns the fault kind carried by err, or KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindNone
	}
	code := oopsErr.Code()
	for kind, info := range kindTable {
		if code == info.code {
			return kind
		}
	}
	return KindNone
}

// HostCode maps an error returned by the bridge to the host's integer code.
// Errors outside the taxonomy map to the "no diagnostic" code.
func HostCode(err error) int {
	if err == nil {
		return HostOK
	}
	if kind := KindOf(err); kind != KindNone {
		return kind.HostCode()
	}
	return KindNoDiagnosticAvailable.HostCode()
}

// Detail returns the dynamic part of an exception or missing-property fault.
func Detail(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	ctx := oopsErr.Context()
	if p, ok := ctx["property"].(string); ok && p != "" {
		return p
	}
	if d, ok := ctx["detail"].(string); ok {
		return d
	}
	return ""
}

func fault(kind Kind) oops.OopsErrorBuilder {
	return oops.Code(kind.String()).In("bridge")
}

// ErrInterpreterNotFound reports an unusable interpreter library path.
func ErrInterpreterNotFound(libraryPath string, cause error) error {
	b := fault(KindInterpreterNotFound).With("library_path", libraryPath)
	if cause != nil {
		return b.Wrapf(cause, "interpreter not found at %q", libraryPath)
	}
	return b.Errorf("interpreter not found at %q", libraryPath)
}

// ErrLibraryPathConflict reports a device asking for a different library path
// than the running session.
func ErrLibraryPathConflict(sessionPath, requested string) error {
	return fault(KindLibraryPathConflict).
		With("library_path", requested).
		With("session_library_path", sessionPath).
		Errorf("library path %q conflicts with session library path %q", requested, sessionPath)
}

// ErrScriptNotFound reports a missing or unreadable script file.
func ErrScriptNotFound(scriptPath string, cause error) error {
	b := fault(KindScriptNotFound).With("script", scriptPath)
	if cause != nil {
		return b.Wrapf(cause, "script not found: %s", scriptPath)
	}
	return b.Errorf("script not found: %s", scriptPath)
}

// ErrClassNotFound reports a class name that is not defined by the script.
func ErrClassNotFound(scriptPath, className string) error {
	return fault(KindClassNotFound).
		With("script", scriptPath).
		With("class", className).
		Errorf("class %q not found in %s", className, scriptPath)
}

// ErrInterpreterException carries the message extracted from a script error.
func ErrInterpreterException(detail string) error {
	return fault(KindInterpreterException).
		With("detail", detail).
		Errorf("script error: %s", detail)
}

// ErrNoDiagnostic reports a script error that carried no usable message.
func ErrNoDiagnostic() error {
	return fault(KindNoDiagnosticAvailable).Errorf("script error without diagnostic information")
}

// ErrRequiredPropertyMissing reports an attribute the script object lacks.
func ErrRequiredPropertyMissing(property string) error {
	return fault(KindRequiredPropertyMissing).
		With("property", property).
		Errorf("missing required property %q", property)
}

func typeMismatch(what, expected, got string) error {
	return ErrInterpreterException(fmt.Sprintf("%s: expected %s, got %s", what, expected, got))
}
