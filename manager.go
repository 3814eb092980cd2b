// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"gate.computer/nativecode/internal/errors"
	"gate.computer/nativecode/internal/jumptable"
	"gate.computer/nativecode/internal/osmem"
	"gate.computer/nativecode/internal/runtimestub"
)

// moduleRange is one entry of the manager's address-to-module lookup
// table: every reservation a live module owns has exactly one entry here,
// and the union of entries' intervals is disjoint across all modules.
type moduleRange struct {
	start  uintptr
	end    uintptr
	module *NativeModule
}

// WasmCodeManager is the process-wide owner of native code address space.
// A host process creates exactly one (via NewWasmCodeManager) and shares it
// across every NativeModule it instantiates.
type WasmCodeManager struct {
	config Config
	log    *logrus.Logger

	mu     sync.Mutex
	ranges []moduleRange // sorted by start

	remainingUncommitted int64 // atomic; CAS-updated
	active               int32 // atomic
}

// NewWasmCodeManager constructs a manager with the given configuration.
func NewWasmCodeManager(cfg Config) (*WasmCodeManager, error) {
	if cfg.MaxCommitted == 0 {
		cfg.MaxCommitted = DefaultConfig().MaxCommitted
	}
	if cfg.MaxCommitted > MaxWasmCodeMemory {
		return nil, errors.Newf("max committed %d exceeds ceiling %d", cfg.MaxCommitted, MaxWasmCodeMemory)
	}
	return &WasmCodeManager{
		config:               cfg,
		log:                  cfg.logger(),
		remainingUncommitted: int64(cfg.MaxCommitted),
	}, nil
}

// Config returns the manager's configuration.
func (m *WasmCodeManager) Config() Config { return m.config }

// RemainingUncommitted returns the number of bytes still available under
// the manager's commit ceiling.
func (m *WasmCodeManager) RemainingUncommitted() uintptr {
	return uintptr(atomic.LoadInt64(&m.remainingUncommitted))
}

// Active returns the number of currently live modules.
func (m *WasmCodeManager) Active() int { return int(atomic.LoadInt32(&m.active)) }

// tryCommit attempts to debit size bytes from the uncommitted budget via a
// CAS loop; underflow is refused rather than wrapping, matching the
// recoverable out-of-committed-quota case of the error taxonomy.
func (m *WasmCodeManager) tryCommit(size uintptr) bool {
	for {
		old := atomic.LoadInt64(&m.remainingUncommitted)
		next := old - int64(size)
		if next < 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&m.remainingUncommitted, old, next) {
			return true
		}
	}
}

// uncommit credits size bytes back to the uncommitted budget, used when a
// module is freed or a reservation is released after a failed grow.
func (m *WasmCodeManager) uncommit(size uintptr) {
	atomic.AddInt64(&m.remainingUncommitted, int64(size))
}

// EstimateNativeModuleSize predicts the reservation a module with the given
// shape will need: a multiple of the raw code size estimate, plus a
// per-import fixed cost, plus the jump table.
func EstimateNativeModuleSize(numFunctions, numImportedFunctions uint32, codeSizeEstimate uintptr) uintptr {
	numDefined := uintptr(numFunctions - numImportedFunctions)
	size := codeSizeEstimate*CodeSizeMultiplier + uintptr(numImportedFunctions)*ImportSize
	size += numDefined * jumptable.SlotSize
	return osmem.RoundUpToPage(size)
}

// NewNativeModule reserves address space for a new module and registers it
// in the manager's lookup table. codeSizeEstimate is the caller's best
// guess at total compiled-code size, used only for initial reservation
// sizing; NativeModule grows its reservation on demand if the estimate was
// too small.
//
// If the manager cannot reserve address space, this is the one call site
// that treats it as unrecoverable: the error is wrapped as fatal and this
// function panics with it, since a Go library cannot unilaterally terminate
// its host process. Embedding hosts that want a recoverable path should run
// compilation on a goroutine they supervise with recover().
func (m *WasmCodeManager) NewNativeModule(numFunctions, numImportedFunctions uint32, codeSizeEstimate uintptr) *NativeModule {
	size := EstimateNativeModuleSize(numFunctions, numImportedFunctions, codeSizeEstimate)
	if size == 0 {
		size = uintptr(osmem.PageSize())
	}

	mem, err := osmem.Reserve(int(size))
	if err != nil {
		fatal := errors.WrapFatal(err, "failed to reserve native module address space")
		m.log.WithError(fatal).Error("native code manager: out of address space")
		panic(fatal)
	}

	if !m.tryCommit(uintptr(len(mem))) {
		_ = osmem.Release(mem)
		fatal := errors.NewFatal("out of committed code space quota")
		m.log.WithError(fatal).Error("native code manager: commit quota exhausted")
		panic(fatal)
	}

	if err := osmem.Commit(mem, initialPermission(m.config)); err != nil {
		_ = osmem.Release(mem)
		m.uncommit(uintptr(len(mem)))
		fatal := errors.WrapFatal(err, "failed to set initial page permissions")
		panic(fatal)
	}

	start := addressOf(mem)
	nm := &NativeModule{
		manager:              m,
		numFunctions:         numFunctions,
		numImportedFunctions: numImportedFunctions,
		canRequestMoreMemory: true,
		useTrapHandler:       true,
		isExecutable:         osmem.RWXAllowed() && !m.config.WasmWriteProtectCodeMemory,
		freeCodeSpace:        NewDisjointAllocationPool(AddressRange{start, start + uintptr(len(mem))}),
		ownedCodeSpace:       []reservation{{mem: mem, start: start}},
		committedCodeSpace:   uintptr(len(mem)),
		runtimeStubTable:     make([]*WasmCode, runtimestub.Count),
	}

	nm.initTables()

	m.mu.Lock()
	m.insertRangeLocked(moduleRange{start: start, end: start + uintptr(len(mem)), module: nm})
	m.mu.Unlock()

	active := atomic.AddInt32(&m.active, 1)

	if m.config.MemoryPressureCallback != nil {
		if m.RemainingUncommitted() < CriticalThreshold && active > 1 {
			m.config.MemoryPressureCallback(LevelCritical)
		}
	}

	if m.config.WasmTraceNativeHeap {
		m.log.WithFields(logrus.Fields{
			"reservation_bytes": len(mem),
			"num_functions":     numFunctions,
			"active_modules":    active,
		}).Trace("native code manager: new native module")
	}

	return nm
}

// initialPermission picks the permission a freshly reserved arena is
// committed with. When the architecture allows a single RWX mapping and
// the embedder has not asked for write-protected code memory, the arena
// never needs a permission transition at all; otherwise it starts
// read-write so AddCode can populate it, and SetExecutable later flips it
// to read-execute.
func initialPermission(cfg Config) osmem.Permission {
	if osmem.RWXAllowed() && !cfg.WasmWriteProtectCodeMemory {
		return osmem.ReadWriteExecute
	}
	return osmem.ReadWrite
}

func (m *WasmCodeManager) insertRangeLocked(r moduleRange) {
	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].start >= r.start })
	m.ranges = append(m.ranges, moduleRange{})
	copy(m.ranges[i+1:], m.ranges[i:])
	m.ranges[i] = r
}

// FreeNativeModule releases every reservation nm owns, credits its
// committed space back to the manager, and removes it from the lookup
// table. Callers must not use nm after this returns.
func (m *WasmCodeManager) FreeNativeModule(nm *NativeModule) {
	nm.mu.Lock()
	committed := nm.committedCodeSpace
	reservations := nm.ownedCodeSpace
	nm.ownedCodeSpace = nil
	nm.mu.Unlock()

	m.mu.Lock()
	filtered := m.ranges[:0]
	for _, r := range m.ranges {
		if r.module != nm {
			filtered = append(filtered, r)
		}
	}
	m.ranges = filtered
	m.mu.Unlock()

	for _, r := range reservations {
		if err := osmem.Release(r.mem); err != nil {
			m.log.WithError(err).Warn("native code manager: failed to release reservation")
		}
	}

	if committed > 0 {
		m.uncommit(committed)
	}
	atomic.AddInt32(&m.active, -1)
}

// LookupNativeModule returns the module owning pc, or nil.
func (m *WasmCodeManager) LookupNativeModule(pc uintptr) *NativeModule {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].start > pc })
	if i == 0 {
		return nil
	}
	cand := m.ranges[i-1]
	if pc < cand.end {
		return cand.module
	}
	return nil
}

// LookupCode returns the WasmCode containing pc, or nil.
func (m *WasmCodeManager) LookupCode(pc uintptr) *WasmCode {
	nm := m.LookupNativeModule(pc)
	if nm == nil {
		return nil
	}
	return nm.Lookup(pc)
}

// GetCodeFromStartAddress returns the WasmCode whose instruction start is
// exactly pc, for callers that already know the boundary (e.g. a symbol
// table). It returns nil if pc is not a code's exact start address.
func (m *WasmCodeManager) GetCodeFromStartAddress(pc uintptr) *WasmCode {
	code := m.LookupCode(pc)
	if code == nil || code.InstructionStart() != pc {
		return nil
	}
	return code
}
