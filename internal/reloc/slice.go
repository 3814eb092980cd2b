// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reloc

// SliceEntry pairs an Entry with the mutation callbacks a real compiler
// would implement against its own encoded relocation record.
type SliceEntry struct {
	Entry

	// SetStubCallTarget is invoked when the manager resolves a StubCall.
	SetStubCallTarget func(instructionStart uintptr)
	// Apply is invoked for entries whose Mode satisfies AppliesDelta.
	Apply func(delta int64)
}

// SliceIterator is a trivial Iterator over already-materialized entries.
// Compilers that build their relocation list as a Go slice rather than an
// encoded byte stream (e.g. test harnesses, or bytecode-to-native backends
// that never serialize relocations to bytes in the first place) can use it
// directly instead of writing a bespoke Iterator.
type SliceIterator struct {
	entries []SliceEntry
	pos     int
}

func NewSliceIterator(entries []SliceEntry) *SliceIterator {
	return &SliceIterator{entries: entries, pos: -1}
}

func (it *SliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

func (it *SliceIterator) Entry() Entry {
	return it.entries[it.pos].Entry
}

func (it *SliceIterator) SetStubCallTarget(instructionStart uintptr) {
	if f := it.entries[it.pos].SetStubCallTarget; f != nil {
		f(instructionStart)
	}
}

func (it *SliceIterator) Apply(delta int64) {
	if f := it.entries[it.pos].Apply; f != nil {
		f(delta)
	}
}
