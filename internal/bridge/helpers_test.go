// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptdev/scriptdev/internal/bridge"
)

// recorder is a Reporter that keeps every report.
type recorder struct {
	mu      sync.Mutex
	reports []report
}

type report struct {
	message string
	isError bool
}

func (r *recorder) Report(message string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{message: message, isError: isError})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func (r *recorder) last() report {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reports) == 0 {
		return report{}
	}
	return r.reports[len(r.reports)-1]
}

// fixture returns the absolute path of a file under testdata.
func fixture(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return path
}

// writeScript creates a Lua script in dir and returns its path.
func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ensureSession joins reg's session and releases it when the test ends.
func ensureSession(t *testing.T, reg *bridge.Registry, libraryPath string) *bridge.Session {
	t.Helper()
	sess, err := reg.EnsureSession(context.Background(), libraryPath)
	require.NoError(t, err)
	t.Cleanup(reg.ReleaseSession)
	return sess
}

// newBinding initializes a bridge for class in the testdata script and
// destructs it when the test ends.
func newBinding(t *testing.T, reg *bridge.Registry, script, class string, args ...any) (*bridge.Bridge, *recorder) {
	t.Helper()
	rec := &recorder{}
	b := bridge.New(reg, "dev", rec)
	err := b.Initialize(context.Background(), bridge.Config{
		ScriptPath: fixture(t, script),
		ClassName:  class,
		Args:       args,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Destruct(context.Background()) })
	return b, rec
}
