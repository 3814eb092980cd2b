// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"reflect"
	"testing"
)

func TestPoolAllocFreeRoundTrip(t *testing.T) {
	p := NewDisjointAllocationPool(AddressRange{100, 200})

	got, ok := p.Allocate(30)
	if !ok || got != (AddressRange{100, 130}) {
		t.Fatalf("Allocate(30): got %v, %v", got, ok)
	}
	if want := []AddressRange{{130, 200}}; !reflect.DeepEqual(p.Ranges(), want) {
		t.Fatalf("pool after first allocate: got %v, want %v", p.Ranges(), want)
	}

	got, ok = p.Allocate(70)
	if !ok || got != (AddressRange{130, 200}) {
		t.Fatalf("Allocate(70): got %v, %v", got, ok)
	}
	if !p.Empty() {
		t.Fatalf("pool should be empty, got %v", p.Ranges())
	}

	p.Merge(AddressRange{130, 200})
	p.Merge(AddressRange{100, 130})
	if want := []AddressRange{{100, 200}}; !reflect.DeepEqual(p.Ranges(), want) {
		t.Fatalf("pool after merges: got %v, want %v", p.Ranges(), want)
	}
}

func TestPoolAdjacentMergeCoalescing(t *testing.T) {
	p := NewDisjointAllocationPool(AddressRange{20, 30})

	p.Merge(AddressRange{0, 10})
	if want := []AddressRange{{0, 10}, {20, 30}}; !reflect.DeepEqual(p.Ranges(), want) {
		t.Fatalf("after first merge: got %v, want %v", p.Ranges(), want)
	}

	p.Merge(AddressRange{10, 20})
	if want := []AddressRange{{0, 30}}; !reflect.DeepEqual(p.Ranges(), want) {
		t.Fatalf("after second merge: got %v, want %v", p.Ranges(), want)
	}
}

func TestPoolAllocateNoFit(t *testing.T) {
	p := NewDisjointAllocationPool(AddressRange{0, 10})

	_, ok := p.Allocate(11)
	if ok {
		t.Fatal("allocate larger than available range should fail")
	}
}

func TestPoolMergeInsertBeforeExisting(t *testing.T) {
	p := NewDisjointAllocationPool(AddressRange{100, 200})

	p.Merge(AddressRange{0, 50})
	if want := []AddressRange{{0, 50}, {100, 200}}; !reflect.DeepEqual(p.Ranges(), want) {
		t.Fatalf("got %v, want %v", p.Ranges(), want)
	}
}

func TestPoolMergeAppendAfterExisting(t *testing.T) {
	p := NewDisjointAllocationPool(AddressRange{0, 50})

	p.Merge(AddressRange{100, 200})
	if want := []AddressRange{{0, 50}, {100, 200}}; !reflect.DeepEqual(p.Ranges(), want) {
		t.Fatalf("got %v, want %v", p.Ranges(), want)
	}
}
