// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
)

// TeardownPolicy decides what happens to the interpreter session once the
// last device binding lets go of it.
type TeardownPolicy int

const (
	// RetainSession keeps the interpreter alive at zero live devices so that
	// the host can create devices again without reinitializing it. The
	// session is only closed by an explicit Registry.Close.
	RetainSession TeardownPolicy = iota
	// CloseWhenUnused closes the interpreter as soon as the live device count
	// drops to zero. The next device starts a fresh session.
	CloseWhenUnused
)

// String returns the configuration name of the policy.
func (p TeardownPolicy) String() string {
	switch p {
	case CloseWhenUnused:
		return "close-when-unused"
	default:
		return "retain"
	}
}

// ParseTeardownPolicy parses a configuration name. An empty string selects
// RetainSession.
func ParseTeardownPolicy(s string) (TeardownPolicy, error) {
	switch s {
	case "", "retain":
		return RetainSession, nil
	case "close-when-unused":
		return CloseWhenUnused, nil
	default:
		return RetainSession, oops.In("bridge").
			With("policy", s).
			Hint("use retain or close-when-unused").
			Errorf("unknown teardown policy %q", s)
	}
}

// Registry owns the interpreter session shared by all device bindings of a
// host process, and counts the bindings that use it.
type Registry struct {
	mu      sync.Mutex
	factory *StateFactory
	policy  TeardownPolicy
	session *Session
	live    int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTeardownPolicy sets the teardown policy.
func WithTeardownPolicy(p TeardownPolicy) RegistryOption {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithStateFactory sets the factory used to create the Lua state.
func WithStateFactory(f *StateFactory) RegistryOption {
	return func(r *Registry) {
		r.factory = f
	}
}

// NewRegistry creates a registry without a session. The session is created
// by the first EnsureSession call.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{policy: RetainSession}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = NewStateFactory()
	}
	return r
}

// Policy returns the configured teardown policy.
func (r *Registry) Policy() TeardownPolicy {
	return r.policy
}

// EnsureSession returns the session rooted at libraryPath, creating it if
// there is none. Every successful call counts one more live device and must
// be paired with ReleaseSession.
func (r *Registry) EnsureSession(ctx context.Context, libraryPath string) (*Session, error) {
	resolved, err := resolveLibraryPath(libraryPath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		if r.session.libraryPath != resolved {
			return nil, ErrLibraryPathConflict(r.session.libraryPath, resolved)
		}
		r.acquireLocked()
		return r.session, nil
	}

	L, err := r.factory.NewState(ctx, resolved)
	if err != nil {
		return nil, ErrInterpreterNotFound(resolved, err)
	}
	r.session = newSession(L, resolved)
	r.acquireLocked()
	return r.session, nil
}

func (r *Registry) acquireLocked() {
	r.live++
	LiveDevices.Set(float64(r.live))
}

func resolveLibraryPath(libraryPath string) (string, error) {
	if libraryPath == "" {
		return "", nil
	}
	abs, err := filepath.Abs(libraryPath)
	if err != nil {
		return "", ErrInterpreterNotFound(libraryPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", ErrInterpreterNotFound(abs, err)
	}
	if !info.IsDir() {
		return "", ErrInterpreterNotFound(abs, oops.Errorf("not a directory"))
	}
	return abs, nil
}

// ReleaseSession gives back one live device. What happens at zero depends
// on the teardown policy.
func (r *Registry) ReleaseSession() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live == 0 {
		return
	}
	r.live--
	LiveDevices.Set(float64(r.live))

	if r.live == 0 && r.policy == CloseWhenUnused {
		r.closeLocked()
	}
}

// Close tears the session down. It fails while any device still holds it.
// Closing a registry without a session does nothing.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live > 0 {
		return oops.In("bridge").
			With("live_devices", r.live).
			Hint("shut down all devices before closing the registry").
			Errorf("interpreter session still used by %d devices", r.live)
	}
	r.closeLocked()
	return nil
}

func (r *Registry) closeLocked() {
	if r.session == nil {
		return
	}
	r.session.close()
	r.session = nil
}

// Session returns the current session, or nil.
func (r *Registry) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Stats returns a snapshot of the registry and its session.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st Stats
	if r.session != nil {
		st = r.session.Stats()
	}
	st.LiveDevices = r.live
	return st
}
