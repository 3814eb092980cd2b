// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"gate.computer/nativecode/internal/traphandler"
)

// Kind classifies what a WasmCode blob is for.
type Kind int

const (
	KindFunction Kind = iota
	KindWasmToJsWrapper
	KindLazyStub
	KindRuntimeStub
	KindInterpreterEntry
	KindJumpTable
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindWasmToJsWrapper:
		return "wasm-to-js-wrapper"
	case KindLazyStub:
		return "lazy-stub"
	case KindRuntimeStub:
		return "runtime-stub"
	case KindInterpreterEntry:
		return "interpreter-entry"
	case KindJumpTable:
		return "jump-table"
	default:
		return "unknown-kind"
	}
}

// Tier names the compilation tier that produced a function body. Non-
// function code (stubs, jump tables) uses TierOther.
type Tier int

const (
	TierLiftoff Tier = iota
	TierTurbofan
	TierOther
)

func (t Tier) String() string {
	switch t {
	case TierLiftoff:
		return "liftoff"
	case TierTurbofan:
		return "turbofan"
	default:
		return "other"
	}
}

// noTrapHandlerIndex is the sentinel stored in WasmCode.trapHandlerIndex
// before registerTrapHandlerData runs: a negative index means "absent".
const noTrapHandlerIndex = -1

// WasmCode is the immutable descriptor of one emitted code blob living
// inside a NativeModule's arena. The instruction bytes it describes are
// owned by the module's reservation, not by the descriptor itself; a
// WasmCode never outlives the NativeModule that produced it.
type WasmCode struct {
	module *NativeModule

	instructions    []byte // sub-slice of the owning reservation
	relocInfo       []byte
	sourcePositions []byte

	hasIndex bool
	index    uint32

	kind Kind
	tier Tier

	hasConstantPool      bool
	constantPoolOffset   int
	safepointTableOffset int
	handlerTableOffset   int
	stackSlots           int

	protectedInstructions []traphandler.ProtectedInstruction
	trapHandlerIndex      int
}

// InstructionStart returns the address of the first instruction byte.
func (c *WasmCode) InstructionStart() uintptr { return addressOf(c.instructions) }

// InstructionEnd returns the address one past the last instruction byte.
func (c *WasmCode) InstructionEnd() uintptr {
	return c.InstructionStart() + uintptr(len(c.instructions))
}

// Instructions returns the instruction bytes. Callers must not retain a
// reference past the owning module's lifetime.
func (c *WasmCode) Instructions() []byte { return c.instructions }

// Contains reports whether pc falls within this code's instruction range.
func (c *WasmCode) Contains(pc uintptr) bool {
	return pc >= c.InstructionStart() && pc < c.InstructionEnd()
}

// Module returns the owning NativeModule.
func (c *WasmCode) Module() *NativeModule { return c.module }

// Kind returns the code's classification.
func (c *WasmCode) Kind() Kind { return c.kind }

// Tier returns the compilation tier, meaningful only for Kind() == KindFunction.
func (c *WasmCode) Tier() Tier { return c.tier }

// HasIndex reports whether this code carries a wasm function index.
// It is true for KindFunction code and for code that AddCodeCopy or
// AddInterpreterEntry stamped with an index.
func (c *WasmCode) HasIndex() bool { return c.hasIndex }

// Index returns the wasm function index. Valid only if HasIndex is true.
func (c *WasmCode) Index() uint32 { return c.index }

// ConstantPool returns the address of the embedded constant pool, or zero
// if the module's Config disables embedded constant pools or this code has
// none.
func (c *WasmCode) ConstantPool() uintptr {
	if !c.hasConstantPool {
		return 0
	}
	if c.constantPoolOffset >= len(c.instructions) {
		return 0
	}
	return c.InstructionStart() + uintptr(c.constantPoolOffset)
}

// SafepointTableOffset returns the byte offset of the safepoint table
// within the instruction stream.
func (c *WasmCode) SafepointTableOffset() int { return c.safepointTableOffset }

// HandlerTableOffset returns the byte offset of the handler table within
// the instruction stream.
func (c *WasmCode) HandlerTableOffset() int { return c.handlerTableOffset }

// StackSlots returns the frame's stack-slot count.
func (c *WasmCode) StackSlots() int { return c.stackSlots }

// ProtectedInstructions returns the table of PCs within this code that may
// legitimately fault, and their continuations.
func (c *WasmCode) ProtectedInstructions() []traphandler.ProtectedInstruction {
	return c.protectedInstructions
}

// HasTrapHandlerIndex reports whether registerTrapHandlerData has recorded
// a handle.
func (c *WasmCode) HasTrapHandlerIndex() bool { return c.trapHandlerIndex >= 0 }

// TrapHandlerIndex returns the registration handle. Valid only if
// HasTrapHandlerIndex is true.
func (c *WasmCode) TrapHandlerIndex() int { return c.trapHandlerIndex }

// registerTrapHandlerData registers this code's protected-instruction
// table with the global trap handler and records the returned handle. It
// is a one-time assignment: only Kind() == KindFunction code may hold a
// handle, matching the invariant in the data model.
func (c *WasmCode) registerTrapHandlerData(reg traphandlerRegistry) {
	if c.kind != KindFunction {
		return
	}
	if len(c.protectedInstructions) == 0 {
		return
	}
	handle := reg.Register(c.InstructionStart(), uintptr(len(c.instructions)), c.protectedInstructions)
	c.trapHandlerIndex = handle
}

// traphandlerRegistry is the narrow slice of traphandler.Registry this
// package depends on; declared locally so nativemodule.go can pass either
// the process-global registry or a test double.
type traphandlerRegistry interface {
	Register(base, size uintptr, table []traphandler.ProtectedInstruction) int
	Release(handle int)
}
