// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimestub

import "testing"

func TestValid(t *testing.T) {
	if !ThrowUnreachable.Valid() {
		t.Error("ThrowUnreachable should be valid")
	}
	if !Int64ToFloat.Valid() {
		t.Error("Int64ToFloat should be valid")
	}
	if Count.Valid() {
		t.Error("Count is a sentinel, not a valid id")
	}
	if ID(-1).Valid() {
		t.Error("negative id should not be valid")
	}
}

func TestStringDoesNotPanicOutOfRange(t *testing.T) {
	if got := ID(99999).String(); got == "" {
		t.Error("String should return a placeholder for out-of-range ids")
	}
}
