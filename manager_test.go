// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietConfig() Config {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := DefaultConfig()
	cfg.Logger = log
	return cfg
}

func TestNewWasmCodeManagerRejectsOversizedCeiling(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxCommitted = MaxWasmCodeMemory + 1
	if _, err := NewWasmCodeManager(cfg); err == nil {
		t.Fatal("expected an error for a ceiling above MaxWasmCodeMemory")
	}
}

func TestCommitAccountingRoundTrip(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxCommitted = 8 * MiB
	mgr, err := NewWasmCodeManager(cfg)
	if err != nil {
		t.Fatalf("NewWasmCodeManager: %v", err)
	}

	before := mgr.RemainingUncommitted()
	if before != cfg.MaxCommitted {
		t.Fatalf("got %d, want %d", before, cfg.MaxCommitted)
	}

	nm := mgr.NewNativeModule(4, 0, 64*KiB)
	if mgr.Active() != 1 {
		t.Fatalf("active: got %d, want 1", mgr.Active())
	}

	committed := nm.CommittedCodeSpace()
	if committed == 0 {
		t.Fatal("expected a non-zero reservation")
	}
	if got := mgr.RemainingUncommitted(); got != before-committed {
		t.Fatalf("remaining: got %d, want %d", got, before-committed)
	}

	mgr.FreeNativeModule(nm)
	if mgr.Active() != 0 {
		t.Fatalf("active after free: got %d, want 0", mgr.Active())
	}
	if got := mgr.RemainingUncommitted(); got != before {
		t.Fatalf("remaining after free: got %d, want %d", got, before)
	}
}

func TestLookupNativeModuleAcrossModules(t *testing.T) {
	cfg := quietConfig()
	mgr, err := NewWasmCodeManager(cfg)
	if err != nil {
		t.Fatalf("NewWasmCodeManager: %v", err)
	}

	a := mgr.NewNativeModule(2, 0, 64*KiB)
	b := mgr.NewNativeModule(2, 0, 64*KiB)

	if got := mgr.LookupNativeModule(a.jumpTable.InstructionStart()); got != a {
		t.Error("expected lookup to resolve to module a")
	}
	if got := mgr.LookupNativeModule(b.jumpTable.InstructionStart()); got != b {
		t.Error("expected lookup to resolve to module b")
	}
	if got := mgr.LookupNativeModule(1); got != nil {
		t.Errorf("expected no module at address 1, got %v", got)
	}

	mgr.FreeNativeModule(a)
	mgr.FreeNativeModule(b)
}

func TestGetCodeFromStartAddress(t *testing.T) {
	cfg := quietConfig()
	mgr, err := NewWasmCodeManager(cfg)
	if err != nil {
		t.Fatalf("NewWasmCodeManager: %v", err)
	}
	nm := mgr.NewNativeModule(1, 0, 64*KiB)

	start := nm.jumpTable.InstructionStart()
	if got := mgr.GetCodeFromStartAddress(start); got != nm.jumpTable {
		t.Errorf("got %v, want the jump table code", got)
	}
	if got := mgr.GetCodeFromStartAddress(start + 1); got != nil {
		t.Errorf("non-exact start should return nil, got %v", got)
	}
}

func TestEstimateNativeModuleSize(t *testing.T) {
	a := EstimateNativeModuleSize(10, 2, 1000)
	b := EstimateNativeModuleSize(10, 2, 2000)
	if b <= a {
		t.Errorf("larger code size estimate should yield a larger reservation: %d vs %d", a, b)
	}
}
