// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"testing"

	"gate.computer/nativecode/internal/jumptable"
	"gate.computer/nativecode/internal/reloc"
	"gate.computer/nativecode/internal/runtimestub"
)

func newTestManager(t *testing.T) *WasmCodeManager {
	t.Helper()
	mgr, err := NewWasmCodeManager(quietConfig())
	if err != nil {
		t.Fatalf("NewWasmCodeManager: %v", err)
	}
	return mgr
}

func TestPublicationAtomicity(t *testing.T) {
	mgr := newTestManager(t)
	nm := mgr.NewNativeModule(2, 0, 64*KiB)

	lazyStub := make([]byte, 16)
	if err := nm.SetLazyBuiltin(lazyStub, nil); err != nil {
		t.Fatalf("SetLazyBuiltin: %v", err)
	}

	lazyTarget := jumptable.ReadJumpTableSlot(nm.jumpTable.instructions, 0)
	if got := jumptable.ReadJumpTableSlot(nm.jumpTable.instructions, 1); got != lazyTarget {
		t.Fatalf("both slots should start at the lazy target: %#x vs %#x", got, lazyTarget)
	}

	desc := CodeDesc{Instructions: make([]byte, 32)}
	it := reloc.NewSliceIterator(nil)
	code, err := nm.AddCode(desc, it, 0, 0, 0, 0, nil, nil, TierLiftoff)
	if err != nil {
		t.Fatalf("AddCode: %v", err)
	}

	if got := jumptable.ReadJumpTableSlot(nm.jumpTable.instructions, 0); got != code.InstructionStart() {
		t.Errorf("slot 0: got %#x, want %#x", got, code.InstructionStart())
	}
	if got := jumptable.ReadJumpTableSlot(nm.jumpTable.instructions, 1); got != lazyTarget {
		t.Errorf("slot 1 should still point at the lazy stub, got %#x want %#x", got, lazyTarget)
	}
}

func TestGetCallTargetForFunctionRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	nm := mgr.NewNativeModule(5, 2, 64*KiB)

	for i := nm.numImportedFunctions; i < nm.numFunctions; i++ {
		target := nm.GetCallTargetForFunction(i)
		got, ok := nm.GetFunctionIndexFromJumpTableSlot(target)
		if !ok {
			t.Fatalf("function %d: slot lookup failed", i)
		}
		if got != i {
			t.Errorf("function %d: round trip gave %d", i, got)
		}
	}

	if _, ok := nm.GetFunctionIndexFromJumpTableSlot(nm.jumpTable.InstructionStart() + 1); ok {
		t.Error("a mid-slot address should not resolve")
	}
}

func TestLookupBoundary(t *testing.T) {
	mgr := newTestManager(t)
	nm := mgr.NewNativeModule(2, 0, 64*KiB)

	descA := CodeDesc{Instructions: make([]byte, 32)}
	codeA, err := nm.AddCode(descA, reloc.NewSliceIterator(nil), 0, 0, 0, 0, nil, nil, TierLiftoff)
	if err != nil {
		t.Fatalf("AddCode A: %v", err)
	}
	descB := CodeDesc{Instructions: make([]byte, 32)}
	codeB, err := nm.AddCode(descB, reloc.NewSliceIterator(nil), 0, 1, 0, 0, nil, nil, TierLiftoff)
	if err != nil {
		t.Fatalf("AddCode B: %v", err)
	}

	if got := nm.Lookup(codeA.InstructionStart()); got != codeA {
		t.Errorf("Lookup(A.start): got %v, want A", got)
	}
	if got := nm.Lookup(codeA.InstructionEnd() - 1); got != codeA {
		t.Errorf("Lookup(A.end-1): got %v, want A", got)
	}
	if got := nm.Lookup(codeB.InstructionStart()); got != codeB {
		t.Errorf("Lookup(B.start): got %v, want B", got)
	}
	if got := nm.Lookup(1); got != nil {
		t.Errorf("Lookup(1): got %v, want nil", got)
	}
}

func TestSetRuntimeStubsThenStubCallRelocation(t *testing.T) {
	mgr := newTestManager(t)
	nm := mgr.NewNativeModule(1, 0, 64*KiB)

	stubs := map[runtimestub.ID][]byte{
		runtimestub.ThrowUnreachable: make([]byte, 16),
	}
	if err := nm.SetRuntimeStubs(stubs); err != nil {
		t.Fatalf("SetRuntimeStubs: %v", err)
	}
	if err := nm.SetRuntimeStubs(stubs); err == nil {
		t.Error("installing runtime stubs twice should fail")
	}

	instructions := make([]byte, 32)
	entries := []reloc.SliceEntry{
		{Entry: reloc.Entry{Mode: reloc.StubCall, PC: 4, StubID: uint32(runtimestub.ThrowUnreachable)}},
	}
	it := reloc.NewSliceIterator(entries)

	desc := CodeDesc{Instructions: instructions}
	if _, err := nm.AddCode(desc, it, 0, 0, 0, 0, nil, nil, TierLiftoff); err != nil {
		t.Fatalf("AddCode with stub-call relocation: %v", err)
	}
}

func TestDisableTrapHandlerClearsCodeTable(t *testing.T) {
	mgr := newTestManager(t)
	nm := mgr.NewNativeModule(1, 0, 64*KiB)

	desc := CodeDesc{Instructions: make([]byte, 32)}
	if _, err := nm.AddCode(desc, reloc.NewSliceIterator(nil), 0, 0, 0, 0, nil, nil, TierLiftoff); err != nil {
		t.Fatalf("AddCode: %v", err)
	}
	if nm.codeTable[0] == nil {
		t.Fatal("code table should be populated before disabling")
	}

	nm.DisableTrapHandler()

	if nm.useTrapHandler {
		t.Error("useTrapHandler should be false")
	}
	if nm.codeTable[0] != nil {
		t.Error("code table should be cleared")
	}
}

func TestModificationScopeNesting(t *testing.T) {
	mgr := newTestManager(t)
	mgr.config.WasmWriteProtectCodeMemory = true
	nm := mgr.NewNativeModule(1, 0, 64*KiB)

	outer := EnterModificationScope(nm)
	inner := EnterModificationScope(nm)
	if nm.modificationScopeDepth != 2 {
		t.Fatalf("depth: got %d, want 2", nm.modificationScopeDepth)
	}
	inner.Close()
	if nm.isExecutable {
		t.Error("module should still be writable after closing the inner scope")
	}
	outer.Close()
}
