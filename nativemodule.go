// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"gate.computer/nativecode/internal/errors"
	"gate.computer/nativecode/internal/jumptable"
	"gate.computer/nativecode/internal/osmem"
	"gate.computer/nativecode/internal/reloc"
	"gate.computer/nativecode/internal/runtimestub"
	"gate.computer/nativecode/internal/traphandler"
)

// reservation is one virtual-memory reservation a NativeModule owns.
type reservation struct {
	mem   []byte
	start uintptr
}

// CodeDesc is the raw material a compiler hands to NativeModule.AddCode: an
// instruction buffer plus the location of its trailing constant pool. The
// relocation blob is treated as opaque here; callers drive a reloc.Iterator
// over it instead of handing this package raw bytes to parse.
type CodeDesc struct {
	Instructions     []byte
	Relocation       []byte
	ConstantPoolSize int
}

// NativeModule owns one or more virtual-memory reservations carved into a
// function code table, a jump table, and a runtime-stub table. All mutation
// is serialized through mu; readers observe publication only after it is
// released, and the ordering enforced by AddCode (relocate, register trap
// data, publish, patch jump table, flush icache) is what makes that
// publication atomic from an indirect caller's perspective.
type NativeModule struct {
	manager *WasmCodeManager

	numFunctions         uint32
	numImportedFunctions uint32

	mu                  sync.Mutex
	ownedCodeSpace      []reservation
	freeCodeSpace       DisjointAllocationPool
	allocatedCodeSpace  DisjointAllocationPool
	ownedCode           []*WasmCode // sorted by instruction start
	codeTable           []*WasmCode // indexed by funcIndex - numImportedFunctions
	runtimeStubTable    []*WasmCode // indexed by runtimestub.ID
	runtimeStubsSet     bool
	jumpTable           *WasmCode

	committedCodeSpace     uintptr
	modificationScopeDepth int

	canRequestMoreMemory bool
	useTrapHandler       bool
	isExecutable         bool
	lazyCompileFrozen    bool
}

// Manager returns the owning WasmCodeManager.
func (nm *NativeModule) Manager() *WasmCodeManager { return nm.manager }

// NumFunctions and NumImportedFunctions report the module's function shape.
func (nm *NativeModule) NumFunctions() uint32         { return nm.numFunctions }
func (nm *NativeModule) NumImportedFunctions() uint32 { return nm.numImportedFunctions }

// CommittedCodeSpace returns the total bytes committed across all of this
// module's reservations.
func (nm *NativeModule) CommittedCodeSpace() uintptr {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.committedCodeSpace
}

// initTables allocates the code table and the jump-table code blob. It runs
// once, right after construction, before the module is published to the
// manager's lookup table, so no other goroutine can observe it half-built.
func (nm *NativeModule) initTables() {
	numWasm := nm.numFunctions - nm.numImportedFunctions
	if numWasm == 0 {
		return
	}
	nm.codeTable = make([]*WasmCode, numWasm)

	table := make([]byte, int(numWasm)*jumptable.SlotSize)
	code, err := nm.addOwnedCode(table, nil, nil, false, 0, KindJumpTable, TierOther, 0, false, 0, 0, 0, nil)
	if err != nil {
		// The reservation was just sized to fit exactly this table; failure
		// here is an invariant violation, not a recoverable condition.
		panic(errors.WrapFatal(err, "failed to allocate jump table"))
	}
	osmem.FlushICache(code.instructions)
	nm.jumpTable = code
}

// sliceAt returns the byte view of size bytes starting at addr, which must
// fall within one of this module's reservations.
func (nm *NativeModule) sliceAt(addr uintptr, size uintptr) []byte {
	for _, r := range nm.ownedCodeSpace {
		if addr >= r.start && addr+size <= r.start+uintptr(len(r.mem)) {
			off := addr - r.start
			return r.mem[off : off+size]
		}
	}
	panic(errors.NewFatal("native code address does not belong to any owned reservation"))
}

func alignUp(size uintptr, align uintptr) uintptr {
	return (size + align - 1) &^ (align - 1)
}

// allocateForCodeLocked carves size bytes from the free-space pool,
// growing the module's reservations if necessary. Callers must hold mu.
func (nm *NativeModule) allocateForCodeLocked(size uintptr) (uintptr, error) {
	size = alignUp(size, CodeAlignment)
	if size == 0 {
		size = CodeAlignment
	}

	r, ok := nm.freeCodeSpace.Allocate(size)
	if !ok {
		if !nm.canRequestMoreMemory {
			return 0, errors.NewFatal("native module out of code space")
		}
		if err := nm.growLocked(size); err != nil {
			return 0, err
		}
		r, ok = nm.freeCodeSpace.Allocate(size)
		if !ok {
			return 0, errors.NewFatal("native module out of code space after growing reservation")
		}
	}
	nm.allocatedCodeSpace.Merge(r)
	return r.Start, nil
}

// growLocked reserves a new region near the module's existing reservations
// and merges it into the free-space pool. Callers must hold mu.
func (nm *NativeModule) growLocked(minSize uintptr) error {
	growSize := osmem.RoundUpToPage(minSize)

	mem, err := osmem.Reserve(int(growSize))
	if err != nil {
		return errors.WrapFatal(err, "failed to reserve additional native module address space")
	}

	if !nm.manager.tryCommit(uintptr(len(mem))) {
		_ = osmem.Release(mem)
		return errors.NewFatal("out of committed code space quota")
	}

	if err := osmem.Commit(mem, initialPermission(nm.manager.config)); err != nil {
		_ = osmem.Release(mem)
		nm.manager.uncommit(uintptr(len(mem)))
		return errors.WrapFatal(err, "failed to set permissions on grown reservation")
	}

	start := addressOf(mem)
	nm.ownedCodeSpace = append(nm.ownedCodeSpace, reservation{mem: mem, start: start})
	nm.committedCodeSpace += uintptr(len(mem))
	nm.freeCodeSpace.Merge(AddressRange{Start: start, End: start + uintptr(len(mem))})

	nm.manager.mu.Lock()
	nm.manager.insertRangeLocked(moduleRange{start: start, end: start + uintptr(len(mem)), module: nm})
	nm.manager.mu.Unlock()

	// The new reservation is committed with initialPermission; if the
	// module is currently executable and this architecture needed a
	// read-write commit, the grown region stays read-write until the module
	// next goes from writable back to executable (SetExecutable(true) on a
	// module that is already executable changes nothing). Compiling always happens with the module
	// held writable by a NativeModuleModificationScope, so AddCode's own
	// callers are expected to grow only while writable.
	return nil
}

// addOwnedCode is the sole construction path for a WasmCode. It allocates
// space, copies the instruction bytes, and inserts the descriptor into
// ownedCode in address-sorted order.
func (nm *NativeModule) addOwnedCode(
	instructions []byte,
	relocInfo []byte,
	sourcePositions []byte,
	hasIndex bool,
	index uint32,
	kind Kind,
	tier Tier,
	constantPoolOffset int,
	hasConstantPool bool,
	stackSlots int,
	safepointOffset int,
	handlerOffset int,
	protected []traphandler.ProtectedInstruction,
) (*WasmCode, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	addr, err := nm.allocateForCodeLocked(uintptr(len(instructions)))
	if err != nil {
		return nil, err
	}

	dest := nm.sliceAt(addr, uintptr(len(instructions)))
	copy(dest, instructions)

	code := &WasmCode{
		module:                nm,
		instructions:          dest,
		relocInfo:             relocInfo,
		sourcePositions:       sourcePositions,
		hasIndex:              hasIndex,
		index:                 index,
		kind:                  kind,
		tier:                  tier,
		hasConstantPool:       hasConstantPool,
		constantPoolOffset:    constantPoolOffset,
		stackSlots:            stackSlots,
		safepointTableOffset:  safepointOffset,
		handlerTableOffset:    handlerOffset,
		protectedInstructions: protected,
		trapHandlerIndex:      noTrapHandlerIndex,
	}

	i := sort.Search(len(nm.ownedCode), func(i int) bool {
		return nm.ownedCode[i].InstructionStart() > code.InstructionStart()
	})
	nm.ownedCode = append(nm.ownedCode, nil)
	copy(nm.ownedCode[i+1:], nm.ownedCode[i:])
	nm.ownedCode[i] = code

	return code, nil
}

func (nm *NativeModule) addAnonymousCode(instructions, relocInfo []byte, kind Kind) (*WasmCode, error) {
	return nm.addOwnedCode(instructions, relocInfo, nil, false, 0, kind, TierOther, 0, false, 0, 0, 0, nil)
}

func (nm *NativeModule) setCodeLocked(funcIndex uint32, code *WasmCode) {
	nm.codeTable[funcIndex-nm.numImportedFunctions] = code
}

func (nm *NativeModule) patchJumpTableSlot(funcIndex uint32, target uintptr) {
	slot := int(funcIndex - nm.numImportedFunctions)
	jumptable.PatchJumpTableSlot(nm.jumpTable.instructions, slot, target)
	off := slot * jumptable.SlotSize
	osmem.FlushICache(nm.jumpTable.instructions[off : off+jumptable.SlotSize])
}

// AddCode is the authoritative publication path for a compiled function
// body. it drives the relocation stream produced alongside desc: stub-call
// entries are resolved against this module's runtime-stub table, and every
// entry in the apply-delta mask is shifted by the distance between the
// compiler's scratch buffer and the code's final home.
func (nm *NativeModule) AddCode(
	desc CodeDesc,
	it reloc.Iterator,
	frameSlots int,
	funcIndex uint32,
	safepointOffset int,
	handlerOffset int,
	protected []traphandler.ProtectedInstruction,
	sourcePositions []byte,
	tier Tier,
) (*WasmCode, error) {
	constantPoolOffset := len(desc.Instructions) - desc.ConstantPoolSize
	hasConstantPool := nm.manager.config.EnableEmbeddedConstantPool

	code, err := nm.addOwnedCode(
		desc.Instructions, desc.Relocation, sourcePositions,
		true, funcIndex, KindFunction, tier,
		constantPoolOffset, hasConstantPool,
		frameSlots, safepointOffset, handlerOffset, protected,
	)
	if err != nil {
		return nil, err
	}

	delta := int64(code.InstructionStart()) - int64(addressOf(desc.Instructions))
	for it.Next() {
		entry := it.Entry()
		if !reloc.Valid(entry.Mode) {
			return nil, errors.NewFatalf("relocation entry has invalid mode %d", int(entry.Mode))
		}
		switch {
		case entry.Mode == reloc.StubCall:
			nm.mu.Lock()
			stub := nm.runtimeStubTable[entry.StubID]
			nm.mu.Unlock()
			if stub == nil {
				return nil, errors.NewFatal("relocation references an unset runtime stub")
			}
			it.SetStubCallTarget(stub.InstructionStart())
		case reloc.AppliesDelta(entry.Mode):
			it.Apply(delta)
		}
	}

	if nm.useTrapHandler {
		code.registerTrapHandlerData(traphandler.Global())
		if len(code.protectedInstructions) > 0 && !code.HasTrapHandlerIndex() {
			return nil, errors.WrapFatal(traphandler.ErrRegistrationFailed, "failed to register protected instructions")
		}
	}

	nm.mu.Lock()
	nm.setCodeLocked(funcIndex, code)
	nm.mu.Unlock()

	nm.patchJumpTableSlot(funcIndex, code.InstructionStart())

	// Flush after relocation (which mutates the bytes) rather than inside
	// addOwnedCode, matching the ordering rationale in the data flow.
	osmem.FlushICache(code.instructions)

	if nm.manager.config.WasmTraceNativeHeap {
		nm.manager.log.WithFields(logrus.Fields{
			"func_index": funcIndex,
			"tier":       tier.String(),
			"bytes":      len(code.instructions),
		}).Trace("native module: published function code")
	}

	return code, nil
}

// AddCodeCopy copies already-assembled code from the surrounding runtime
// into this module's arena as anonymous code, then stamps a function
// index. It is used for wasm-to-JS wrappers and similar code that the
// compiler did not produce through AddCode.
func (nm *NativeModule) AddCodeCopy(instructions, relocInfo []byte, kind Kind, index uint32) (*WasmCode, error) {
	code, err := nm.addAnonymousCode(instructions, relocInfo, kind)
	if err != nil {
		return nil, err
	}
	code.hasIndex = true
	code.index = index
	osmem.FlushICache(code.instructions)

	if index >= nm.numImportedFunctions {
		nm.mu.Lock()
		nm.setCodeLocked(index, code)
		nm.mu.Unlock()
	}
	return code, nil
}

// AddInterpreterEntry copies an interpreter trampoline into the arena and
// points the function's jump-table slot at it.
func (nm *NativeModule) AddInterpreterEntry(instructions, relocInfo []byte, index uint32) (*WasmCode, error) {
	code, err := nm.addAnonymousCode(instructions, relocInfo, KindInterpreterEntry)
	if err != nil {
		return nil, err
	}
	code.hasIndex = true
	code.index = index

	nm.patchJumpTableSlot(index, code.InstructionStart())
	osmem.FlushICache(code.instructions)
	return code, nil
}

// SetLazyBuiltin copies the lazy-compile trampoline into the arena and
// fills every jump-table slot with a branch to it.
func (nm *NativeModule) SetLazyBuiltin(instructions, relocInfo []byte) error {
	numWasm := nm.numFunctions - nm.numImportedFunctions
	if numWasm == 0 {
		return nil
	}

	lazy, err := nm.addAnonymousCode(instructions, relocInfo, KindLazyStub)
	if err != nil {
		return err
	}
	target := lazy.InstructionStart()

	nm.mu.Lock()
	for i := uint32(0); i < numWasm; i++ {
		jumptable.EmitLazyCompileJumpSlot(nm.jumpTable.instructions, int(i), target)
	}
	table := nm.jumpTable.instructions
	nm.mu.Unlock()

	osmem.FlushICache(table)
	return nil
}

// SetRuntimeStubs copies each runtime-stub blob into the arena exactly
// once and records its descriptor in the runtime-stub table. AddCode's
// relocation resolution depends on this table; it must run before any
// AddCode call whose relocation stream references a stub.
func (nm *NativeModule) SetRuntimeStubs(stubs map[runtimestub.ID][]byte) error {
	nm.mu.Lock()
	if nm.runtimeStubsSet {
		nm.mu.Unlock()
		return errors.New("runtime stubs already installed for this module")
	}
	nm.runtimeStubsSet = true
	nm.mu.Unlock()

	for id := runtimestub.ID(0); id < runtimestub.Count; id++ {
		blob, ok := stubs[id]
		if !ok {
			continue
		}
		code, err := nm.addAnonymousCode(blob, nil, KindRuntimeStub)
		if err != nil {
			return err
		}
		nm.mu.Lock()
		nm.runtimeStubTable[id] = code
		nm.mu.Unlock()

		// Flushed after every instruction-stream mutation, including this
		// one: see the i-cache-flush-ordering design decision.
		osmem.FlushICache(code.instructions)
	}
	return nil
}

// Lookup returns the WasmCode containing pc, or nil.
func (nm *NativeModule) Lookup(pc uintptr) *WasmCode {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	i := sort.Search(len(nm.ownedCode), func(i int) bool {
		return nm.ownedCode[i].InstructionStart() > pc
	})
	if i == 0 {
		return nil
	}
	cand := nm.ownedCode[i-1]
	if cand.Contains(pc) {
		return cand
	}
	return nil
}

// GetCallTargetForFunction returns the address indirect callers should
// branch to in order to call wasm function funcIndex: the address of its
// jump-table slot.
func (nm *NativeModule) GetCallTargetForFunction(funcIndex uint32) uintptr {
	slot := int(funcIndex - nm.numImportedFunctions)
	return nm.jumpTable.InstructionStart() + uintptr(slot)*jumptable.SlotSize
}

// IsJumpTableSlot reports whether addr is the start of a jump-table slot.
func (nm *NativeModule) IsJumpTableSlot(addr uintptr) bool {
	if nm.jumpTable == nil || !nm.jumpTable.Contains(addr) {
		return false
	}
	return (addr-nm.jumpTable.InstructionStart())%jumptable.SlotSize == 0
}

// GetFunctionIndexFromJumpTableSlot inverts GetCallTargetForFunction. Its
// second return is false when addr is not a jump-table slot boundary.
func (nm *NativeModule) GetFunctionIndexFromJumpTableSlot(addr uintptr) (uint32, bool) {
	if !nm.IsJumpTableSlot(addr) {
		return 0, false
	}
	slot := (addr - nm.jumpTable.InstructionStart()) / jumptable.SlotSize
	return nm.numImportedFunctions + uint32(slot), true
}

// DisableTrapHandler is a one-way transition from trap-handler-based
// bounds checking to explicit-bounds-check code. The surrounding runtime
// is expected to recompile and re-add every function afterward. Existing
// code is deliberately left in the arena rather than reclaimed, since a
// function that is mid-execution may still return into it.
func (nm *NativeModule) DisableTrapHandler() {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.useTrapHandler = false
	for i := range nm.codeTable {
		nm.codeTable[i] = nil
	}
}

// SetExecutable idempotently transitions every reservation this module
// owns between read-write and read-execute. On architectures that permit
// a single RWX mapping and whose Config leaves write-protection disabled,
// this is a bookkeeping-only no-op: the pages never change protection.
func (nm *NativeModule) SetExecutable(executable bool) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.setExecutableLocked(executable)
}

func (nm *NativeModule) setExecutableLocked(executable bool) error {
	if nm.isExecutable == executable {
		return nil
	}

	if osmem.RWXAllowed() && !nm.manager.config.WasmWriteProtectCodeMemory {
		nm.isExecutable = executable
		return nil
	}

	perm := osmem.ReadWrite
	if executable {
		perm = osmem.ReadExecute
	}
	for _, r := range nm.ownedCodeSpace {
		if err := osmem.SetPermissions(r.mem, perm); err != nil {
			return errors.WrapFatal(err, "failed to change native module code memory permissions")
		}
	}
	nm.isExecutable = executable

	if nm.manager.config.WasmTraceNativeHeap {
		nm.manager.log.WithFields(logrus.Fields{
			"executable": executable,
			"perm":       perm.String(),
		}).Trace("native module: protection transition")
	}
	return nil
}
