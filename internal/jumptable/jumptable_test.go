// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jumptable

import "testing"

func TestEmitAndPatch(t *testing.T) {
	table := make([]byte, SlotSize*3)

	EmitLazyCompileJumpSlot(table, 0, 0x1000)
	EmitLazyCompileJumpSlot(table, 1, 0x1000)
	EmitLazyCompileJumpSlot(table, 2, 0x1000)

	for i := 0; i < 3; i++ {
		if got := ReadJumpTableSlot(table, i); got != 0x1000 {
			t.Fatalf("slot %d: got %#x, want 0x1000", i, got)
		}
	}

	PatchJumpTableSlot(table, 1, 0x2000)

	if got := ReadJumpTableSlot(table, 0); got != 0x1000 {
		t.Errorf("slot 0 should be unaffected, got %#x", got)
	}
	if got := ReadJumpTableSlot(table, 1); got != 0x2000 {
		t.Errorf("slot 1: got %#x, want 0x2000", got)
	}
	if got := ReadJumpTableSlot(table, 2); got != 0x1000 {
		t.Errorf("slot 2 should be unaffected, got %#x", got)
	}
}

func TestNumSlots(t *testing.T) {
	if got := NumSlots(SlotSize * 5); got != 5 {
		t.Errorf("got %d slots, want 5", got)
	}
}
