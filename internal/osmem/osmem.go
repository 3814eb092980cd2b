// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package osmem implements the OS-level virtual-memory primitives a native
// code manager needs: page-size discovery, address-space reservation,
// committing pages with a given permission, and instruction-cache
// synchronization. Every exported function here has a platform-specific
// implementation selected by build tags; this file holds only the shared,
// OS-independent pieces.
package osmem

import (
	"os"

	"gate.computer/nativecode/internal/errors"
)

// Permission is the page protection to apply to a committed range.
type Permission int

const (
	ReadWrite Permission = iota
	ReadExecute
	ReadWriteExecute
)

func (p Permission) String() string {
	switch p {
	case ReadWrite:
		return "rw-"
	case ReadExecute:
		return "r-x"
	case ReadWriteExecute:
		return "rwx"
	default:
		return "?--"
	}
}

// PageSize returns the OS allocation granularity.
func PageSize() int { return os.Getpagesize() }

// RoundUpToPage rounds size up to the next multiple of PageSize().
func RoundUpToPage(size uintptr) uintptr {
	ps := uintptr(PageSize())
	return (size + ps - 1) &^ (ps - 1)
}

// ErrOutOfAddressSpace is returned by Reserve when the OS cannot satisfy
// the request. Running out of address space is unrecoverable, so callers
// wrap this in errors.Fatal rather than retry.
var ErrOutOfAddressSpace = errors.New("failed to reserve virtual address space")

// RWXAllowed reports whether this architecture permits a single mapping
// that is simultaneously writable and executable. On x86/x86-64 the OS does
// not enforce W^X, so a module that never enables wasmWriteProtectCodeMemory
// can use one RWX reservation and skip permission syscalls entirely. On
// arm64 (and any architecture this module doesn't specifically recognize)
// pages must be committed read-write and separately transitioned to
// read-execute before use, regardless of that configuration flag.
func RWXAllowed() bool { return rwxAllowed }
