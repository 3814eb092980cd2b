// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Program codemanagerctl exercises the native code manager end to end: it
// creates a module, publishes a handful of synthetic function bodies and a
// lazy-compile stub, then reports instruction-range, jump-table, and
// commit-accounting diagnostics. It is a smoke test for the whole pipeline, not a wasm
// compiler.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"gate.computer/nativecode"
	"gate.computer/nativecode/internal/reloc"
	"gate.computer/nativecode/internal/runtimestub"
)

func main() {
	log := logrus.New()

	var (
		verbose      = false
		numFunctions = 4
		numImports   = 1
		maxCommitted = 16
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.BoolVar(&verbose, "v", verbose, "trace every allocator and protection event")
	flag.IntVar(&numFunctions, "functions", numFunctions, "total wasm function count")
	flag.IntVar(&numImports, "imports", numImports, "imported function count")
	flag.IntVar(&maxCommitted, "max-committed-mib", maxCommitted, "manager commit ceiling, in MiB")
	flag.Parse()

	if verbose {
		log.SetLevel(logrus.TraceLevel)
	}

	if numImports > numFunctions {
		log.Fatal("imports cannot exceed total functions")
	}

	cfg := nativecode.DefaultConfig()
	cfg.Logger = log
	cfg.WasmTraceNativeHeap = verbose
	cfg.MaxCommitted = uintptr(maxCommitted) * nativecode.MiB
	cfg.MemoryPressureCallback = func(level nativecode.Level) {
		log.Warnf("memory pressure: %s", level)
	}

	mgr, err := nativecode.NewWasmCodeManager(cfg)
	if err != nil {
		log.Fatalf("configure manager: %v", err)
	}

	nm := mgr.NewNativeModule(uint32(numFunctions), uint32(numImports), 4096)
	log.Infof("reserved module: committed=%d remaining=%d active=%d",
		nm.CommittedCodeSpace(), mgr.RemainingUncommitted(), mgr.Active())

	stubs := map[runtimestub.ID][]byte{
		runtimestub.ThrowUnreachable:         syntheticStub(),
		runtimestub.ThrowMemoryOutOfBounds:   syntheticStub(),
		runtimestub.ThrowIntegerDivideByZero: syntheticStub(),
		runtimestub.StackGuard:               syntheticStub(),
	}
	if err := nm.SetRuntimeStubs(stubs); err != nil {
		log.Fatalf("install runtime stubs: %v", err)
	}

	if err := nm.SetLazyBuiltin(syntheticStub(), nil); err != nil {
		log.Fatalf("install lazy builtin: %v", err)
	}

	scope := nativecode.EnterModificationScope(nm)
	for i := uint32(numImports); i < uint32(numFunctions); i++ {
		desc := nativecode.CodeDesc{Instructions: syntheticFunctionBody(int(i))}
		entries := []reloc.SliceEntry{
			{Entry: reloc.Entry{Mode: reloc.StubCall, StubID: uint32(runtimestub.ThrowUnreachable)},
				SetStubCallTarget: func(addr uintptr) { log.Tracef("function %d: stub call resolved to %#x", i, addr) }},
		}
		code, err := nm.AddCode(desc, reloc.NewSliceIterator(entries), 4, i, 0, 0, nil, nil, nativecode.TierLiftoff)
		if err != nil {
			log.Fatalf("publish function %d: %v", i, err)
		}
		log.Infof("function %d: instructions=[%#x,%#x) jump-table-target=%#x",
			i, code.InstructionStart(), code.InstructionEnd(), nm.GetCallTargetForFunction(i))
	}
	scope.Close()

	for i := uint32(numImports); i < uint32(numFunctions); i++ {
		target := nm.GetCallTargetForFunction(i)
		got, ok := nm.GetFunctionIndexFromJumpTableSlot(target)
		if !ok || got != i {
			log.Fatalf("jump-table round trip failed for function %d: got %d, ok=%v", i, got, ok)
		}
	}

	log.Infof("final accounting: committed=%d remaining=%d",
		nm.CommittedCodeSpace(), mgr.RemainingUncommitted())

	mgr.FreeNativeModule(nm)
	log.Infof("after teardown: remaining=%d active=%d", mgr.RemainingUncommitted(), mgr.Active())
}

// syntheticStub stands in for a real compiled runtime-stub blob: this
// program never executes generated code, it only drives the manager's
// bookkeeping.
func syntheticStub() []byte { return make([]byte, 16) }

func syntheticFunctionBody(index int) []byte {
	body := make([]byte, 32)
	body[0] = byte(index)
	return body
}
