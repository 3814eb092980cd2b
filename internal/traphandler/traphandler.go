// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package traphandler models the process-global trap-handler registration
// collaborator. The real mechanism (installing a SIGSEGV/SIGBUS handler
// that inspects protected-instruction tables on fault) is host- and
// OS-specific; only the narrow registration contract a code manager
// consumes is modeled here.
package traphandler

import (
	"sync"

	"gate.computer/nativecode/internal/errors"
)

// ProtectedInstruction records one PC, relative to a code blob's
// instruction start, at which a fault is intentional and must be
// redirected to a landing PC (also relative to instruction start).
type ProtectedInstruction struct {
	PC        uint32
	LandingPC uint32
}

// Registry is the trap handler's registration table. Registering code
// yields a handle; releasing a handle is idempotent from the registrant's
// point of view (the null handle, -1, always releases as a no-op).
type Registry interface {
	// Register records base/size and the protected-instruction table for
	// a code blob and returns a non-negative handle, or -1 on failure.
	Register(base uintptr, size uintptr, table []ProtectedInstruction) int
	// Release forgets a previously registered handle. Releasing a handle
	// that was never registered, or -1, is a no-op.
	Release(handle int)
}

// process is the default, in-memory Registry implementation: a process
// singleton table keyed by handle. It does not itself install any signal
// handler; it exists so that NativeModule has something real to call
// through outside of tests, and so that a host embedding this module can
// look up currently-registered ranges by PC (see Lookup).
type process struct {
	mu      sync.Mutex
	entries map[int]entry
	next    int
}

type entry struct {
	base  uintptr
	size  uintptr
	table []ProtectedInstruction
}

var global = &process{entries: make(map[int]entry)}

// Global returns the process-wide trap handler registry.
func Global() Registry { return global }

func (p *process) Register(base, size uintptr, table []ProtectedInstruction) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle := p.next
	p.next++
	p.entries[handle] = entry{base: base, size: size, table: table}
	return handle
}

func (p *process) Release(handle int) {
	if handle < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, handle)
}

// Lookup finds the protected-instruction table registered for a PC that
// faulted within [base, base+size), returning the matching entry's table
// and whether one was found. It is exposed for hosts that install their
// own signal handler and need to consult the registry during fault
// handling; the code manager itself does not call it.
func Lookup(pc uintptr) ([]ProtectedInstruction, bool) {
	global.mu.Lock()
	defer global.mu.Unlock()

	for _, e := range global.entries {
		if pc >= e.base && pc < e.base+e.size {
			return e.table, true
		}
	}
	return nil, false
}

// ErrRegistrationFailed is wrapped into a fatal error by the caller when
// Register returns -1: no retry path is defined for a failed registration.
var ErrRegistrationFailed = errors.New("trap handler registration failed")
