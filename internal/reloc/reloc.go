// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reloc describes the relocation-stream contract that the code
// manager drives but does not itself produce or parse. A compiler hands the
// manager a CodeDesc whose relocation bytes are opaque; the manager only
// ever touches them through an Iterator.
package reloc

// Mode identifies the kind of a relocation entry. Any mode outside this set
// is a fatal invariant violation: AddCode rejects it (see Valid).
type Mode int

const (
	// StubCall references a runtime stub by id (see runtimestub.ID); the
	// manager resolves the id and rewrites the call target during AddCode.
	StubCall Mode = iota
	// CodeTableEntry references another function's jump-table slot.
	CodeTableEntry
	// Call is a direct wasm-to-wasm call, relative to the code buffer.
	Call
	// JSToWasmCall is a call from a host wrapper into wasm code.
	JSToWasmCall
	// ExternalReference is an absolute address to a host-side symbol.
	ExternalReference
	// InternalReference is an absolute address within the same buffer.
	InternalReference
	// InternalReferenceEncoded is InternalReference stored in a
	// target-specific encoded form (e.g. split across two instructions).
	InternalReferenceEncoded
	// OffHeapTarget references code living outside the wasm code space
	// (e.g. a builtin baked into the host binary).
	OffHeapTarget
	// Comment carries no address; it is inert with respect to apply/delta.
	Comment
	// ConstPool marks an embedded constant-pool entry.
	ConstPool
	// VeneerPool marks an embedded branch-veneer-pool entry.
	VeneerPool
)

// applyMask is the set of modes whose embedded address must be shifted by
// the buffer's relocation delta when code is copied to its final location.
var applyMask = map[Mode]bool{
	CodeTableEntry:           true,
	Call:                     true,
	JSToWasmCall:             true,
	ExternalReference:        true,
	InternalReference:        true,
	InternalReferenceEncoded: true,
	OffHeapTarget:            true,
}

// AppliesDelta reports whether entries of this mode must be adjusted by the
// apply-delta mutator when the surrounding buffer moves.
func AppliesDelta(m Mode) bool { return applyMask[m] }

// Valid reports whether m is one of the modes a WasmCode's relocation stream
// is permitted to contain.
func Valid(m Mode) bool {
	switch m {
	case StubCall, CodeTableEntry, Call, JSToWasmCall, ExternalReference,
		InternalReference, InternalReferenceEncoded, OffHeapTarget,
		Comment, ConstPool, VeneerPool:
		return true
	default:
		return false
	}
}

// Entry is one relocation record yielded by an Iterator.
type Entry struct {
	Mode Mode
	// PC is the byte offset, within the instruction buffer, of the
	// relocated field.
	PC int
	// StubID is meaningful only when Mode == StubCall.
	StubID uint32
}

// Iterator walks a relocation blob and exposes the mutators AddCode needs.
// A compiler's relocation encoding is otherwise opaque to this module; this
// interface is the entire cut between code manager and code generator.
type Iterator interface {
	// Next advances to the next entry and reports whether one was found.
	Next() bool
	// Entry returns the entry most recently yielded by Next.
	Entry() Entry
	// SetStubCallTarget rewrites the call target of a StubCall entry to
	// the given instruction-start address.
	SetStubCallTarget(instructionStart uintptr)
	// Apply adds delta to the embedded address of an apply-delta entry.
	Apply(delta int64)
}
