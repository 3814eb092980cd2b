// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxCommitted == 0 || cfg.MaxCommitted > MaxWasmCodeMemory {
		t.Errorf("default MaxCommitted out of range: %d", cfg.MaxCommitted)
	}
	if !cfg.EnableEmbeddedConstantPool {
		t.Error("expected embedded constant pool enabled by default")
	}
}

func TestLevelString(t *testing.T) {
	if LevelCritical.String() != "critical" {
		t.Errorf("got %q", LevelCritical.String())
	}
	if LevelModerate.String() != "moderate" {
		t.Errorf("got %q", LevelModerate.String())
	}
}
