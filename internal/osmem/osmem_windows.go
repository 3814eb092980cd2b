// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package osmem

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"gate.computer/nativecode/internal/errors"
)

func protectOf(p Permission) uint32 {
	switch p {
	case ReadExecute:
		return windows.PAGE_EXECUTE_READ
	case ReadWriteExecute:
		return windows.PAGE_EXECUTE_READWRITE
	default:
		return windows.PAGE_READWRITE
	}
}

// Reserve reserves (but does not commit) a region of address space of at
// least size bytes.
func Reserve(size int) ([]byte, error) {
	n := uintptr(RoundUpToPage(uintptr(size)))
	addr, err := windows.VirtualAlloc(0, n, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, errors.Wrap(ErrOutOfAddressSpace, err.Error())
	}
	var mem []byte
	sh := (*sliceHeader)(unsafe.Pointer(&mem))
	sh.Data = addr
	sh.Len = int(n)
	sh.Cap = int(n)
	return mem, nil
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// Commit backs mem with physical pages and grants perm.
func Commit(mem []byte, perm Permission) error {
	if len(mem) == 0 {
		return nil
	}
	addr := (*sliceHeader)(unsafe.Pointer(&mem)).Data
	_, err := windows.VirtualAlloc(addr, uintptr(len(mem)), windows.MEM_COMMIT, protectOf(perm))
	if err != nil {
		return errors.Wrap(err, "VirtualAlloc commit failed")
	}
	return nil
}

// SetPermissions changes the protection of an already-committed region.
func SetPermissions(mem []byte, perm Permission) error {
	if len(mem) == 0 {
		return nil
	}
	addr := (*sliceHeader)(unsafe.Pointer(&mem)).Data
	var old uint32
	if err := windows.VirtualProtect(addr, uintptr(len(mem)), protectOf(perm), &old); err != nil {
		return errors.Wrap(err, "VirtualProtect failed")
	}
	return nil
}

// Release frees mem in its entirety.
func Release(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	addr := (*sliceHeader)(unsafe.Pointer(&mem)).Data
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return errors.Wrap(err, "VirtualFree failed")
	}
	return nil
}
