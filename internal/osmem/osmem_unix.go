// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin || freebsd

package osmem

import (
	"golang.org/x/sys/unix"

	"gate.computer/nativecode/internal/errors"
)

func protOf(p Permission) int {
	switch p {
	case ReadExecute:
		return unix.PROT_READ | unix.PROT_EXEC
	case ReadWriteExecute:
		return unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
	default:
		return unix.PROT_READ | unix.PROT_WRITE
	}
}

// Reserve maps a fresh anonymous region of at least size bytes, rounded up
// to a whole number of pages. The mapping starts out PROT_NONE: nothing may
// read, write, or execute it until Commit grants a permission. Letting the
// kernel choose the address, rather than requesting one, keeps the mapping
// subject to the kernel's own ASLR.
func Reserve(size int) ([]byte, error) {
	n := int(RoundUpToPage(uintptr(size)))
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(ErrOutOfAddressSpace, err.Error())
	}
	return mem, nil
}

// Commit grants perm over the whole of mem, which must have come from
// Reserve (or a prior Commit/SetPermissions on the same region). On amd64
// with write protection disabled this is called once with
// ReadWriteExecute; otherwise the caller commits ReadWrite first and calls
// SetPermissions(ReadExecute) once the code has been written and relocated.
func Commit(mem []byte, perm Permission) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Mprotect(mem, protOf(perm)); err != nil {
		return errors.Wrap(err, "mprotect commit failed")
	}
	return nil
}

// SetPermissions changes the protection of an already-committed region.
// This is the primitive NativeModuleModificationScope uses to toggle a
// NativeModule's owned memory between writable and executable.
func SetPermissions(mem []byte, perm Permission) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Mprotect(mem, protOf(perm)); err != nil {
		return errors.Wrap(err, "mprotect failed")
	}
	return nil
}

// Release unmaps mem in its entirety.
func Release(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return errors.Wrap(err, "munmap failed")
	}
	return nil
}
