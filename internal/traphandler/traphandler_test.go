// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package traphandler

import "testing"

func TestRegisterReleaseRoundTrip(t *testing.T) {
	reg := Global()

	table := []ProtectedInstruction{{PC: 4, LandingPC: 40}}
	h := reg.Register(0x2000, 0x100, table)
	if h < 0 {
		t.Fatal("expected non-negative handle")
	}

	got, ok := Lookup(0x2004)
	if !ok {
		t.Fatal("expected registered range to be found")
	}
	if len(got) != 1 || got[0].PC != 4 {
		t.Errorf("unexpected table: %+v", got)
	}

	if _, ok := Lookup(0x3000); ok {
		t.Error("PC outside registered range should not be found")
	}

	reg.Release(h)
	if _, ok := Lookup(0x2004); ok {
		t.Error("released range should no longer be found")
	}

	// Releasing an already-released or never-registered handle is a no-op.
	reg.Release(h)
	reg.Release(-1)
}
