// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jumptable implements the jump-table slot encoding the code
// manager uses as its one indirection point for all wasm-to-wasm calls.
//
// Architecture-specific slot emission (a short indirect-jump prologue
// ending in a load of a patchable word) is out of scope here; this package
// instead supplies the one concrete encoding every GOARCH this module
// supports shares: each slot holds a single 8-byte absolute target address,
// patchable with a single aligned atomic store, followed by padding.
package jumptable

import (
	"encoding/binary"
	"sync/atomic"
)

// SlotSize is the fixed width of one jump-table slot, in bytes. It is
// uniform across every supported architecture because the slot holds only
// data (a patchable target address), not architecture-specific code.
const SlotSize = 16

// fillByte pads the unused tail of a slot. It is not executable in this
// module's abstract model; a concrete assembler backend would use its
// architecture's no-op encoding here instead.
const fillByte = 0xcc

// EmitLazyCompileJumpSlot writes slot i of table to target and pads the
// rest of the slot. It is the non-atomic bulk-initialization path used by
// NativeModule.SetLazyBuiltin, which owns the whole table and has not yet
// published it for concurrent readers.
func EmitLazyCompileJumpSlot(table []byte, i int, target uintptr) {
	off := i * SlotSize
	slot := table[off : off+SlotSize]
	binary.LittleEndian.PutUint64(slot[:8], uint64(target))
	for j := 8; j < SlotSize; j++ {
		slot[j] = fillByte
	}
}

// PatchJumpTableSlot atomically rewrites the target of an already-published
// slot. The write is a single aligned 8-byte store, so a concurrently
// executing core reads either the old target or the new one in full, never
// a torn mix of the two.
func PatchJumpTableSlot(table []byte, i int, target uintptr) {
	off := i * SlotSize
	word := (*uint64)(wordPointer(table[off : off+8]))
	atomic.StoreUint64(word, uint64(target))
}

// ReadJumpTableSlot returns the target currently stored in slot i. Tests
// and GetFunctionIndexFromJumpTableSlot-adjacent diagnostics use this
// instead of re-deriving the encoding.
func ReadJumpTableSlot(table []byte, i int) uintptr {
	off := i * SlotSize
	word := (*uint64)(wordPointer(table[off : off+8]))
	return uintptr(atomic.LoadUint64(word))
}

// NumSlots returns how many slots fit in a table of the given byte length.
func NumSlots(tableLen int) int { return tableLen / SlotSize }
