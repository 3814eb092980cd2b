// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import "testing"

func TestWasmCodeContains(t *testing.T) {
	c := &WasmCode{instructions: make([]byte, 16), trapHandlerIndex: noTrapHandlerIndex}

	start := c.InstructionStart()
	if !c.Contains(start) {
		t.Error("start address should be contained")
	}
	if !c.Contains(start + 15) {
		t.Error("last byte should be contained")
	}
	if c.Contains(start + 16) {
		t.Error("one past the end should not be contained")
	}
}

func TestWasmCodeConstantPoolDisabled(t *testing.T) {
	c := &WasmCode{instructions: make([]byte, 16), hasConstantPool: false}
	if got := c.ConstantPool(); got != 0 {
		t.Errorf("got %#x, want 0", got)
	}
}

func TestWasmCodeConstantPoolOutOfRange(t *testing.T) {
	c := &WasmCode{instructions: make([]byte, 16), hasConstantPool: true, constantPoolOffset: 20}
	if got := c.ConstantPool(); got != 0 {
		t.Errorf("offset beyond instructions should yield 0, got %#x", got)
	}
}

func TestWasmCodeHasTrapHandlerIndex(t *testing.T) {
	c := &WasmCode{trapHandlerIndex: noTrapHandlerIndex}
	if c.HasTrapHandlerIndex() {
		t.Error("fresh code should have no trap handler index")
	}
	c.trapHandlerIndex = 3
	if !c.HasTrapHandlerIndex() {
		t.Error("assigned index should report true")
	}
	if c.TrapHandlerIndex() != 3 {
		t.Errorf("got %d, want 3", c.TrapHandlerIndex())
	}
}

func TestKindString(t *testing.T) {
	if KindFunction.String() != "function" {
		t.Errorf("got %q", KindFunction.String())
	}
	if Kind(99).String() == "" {
		t.Error("unknown kind should not return empty string")
	}
}
