// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

// DisjointAllocationPool is an ordered, coalescing set of non-overlapping,
// non-adjacent address ranges. NativeModule uses one instance to track its
// free code space and another for its allocated code space; together they
// partition every byte of the module's reservations.
type DisjointAllocationPool struct {
	ranges []AddressRange
}

// NewDisjointAllocationPool builds a pool seeded with a single range. The
// zero value is also valid and represents an empty pool.
func NewDisjointAllocationPool(r AddressRange) DisjointAllocationPool {
	if r.Empty() {
		return DisjointAllocationPool{}
	}
	return DisjointAllocationPool{ranges: []AddressRange{r}}
}

// Ranges returns the pool's ranges in sorted order. Callers must not mutate
// the returned slice.
func (p *DisjointAllocationPool) Ranges() []AddressRange { return p.ranges }

// Empty reports whether the pool holds no ranges.
func (p *DisjointAllocationPool) Empty() bool { return len(p.ranges) == 0 }

// Merge inserts r into the pool, coalescing it with any range it is
// adjacent to. The caller guarantees r does not overlap any range already
// in the pool.
func (p *DisjointAllocationPool) Merge(r AddressRange) {
	if r.Empty() {
		return
	}

	ranges := p.ranges
	i := 0
	for i < len(ranges) && ranges[i].End < r.Start {
		i++
	}

	// After the last range: append.
	if i == len(ranges) {
		p.ranges = append(ranges, r)
		return
	}

	// Adjacent from below: lower the destination's start.
	if ranges[i].Start == r.End {
		ranges[i].Start = r.Start
		return
	}

	// Strictly before the destination: insert.
	if ranges[i].Start > r.End {
		p.ranges = insertRange(ranges, i, r)
		return
	}

	// Adjacent from above: raise the destination's end, then check whether
	// the merged range is now also adjacent to its successor and absorb it.
	ranges[i].End = r.End
	if j := i + 1; j < len(ranges) && ranges[i].End == ranges[j].Start {
		ranges[i].End = ranges[j].End
		p.ranges = append(ranges[:j], ranges[j+1:]...)
	}
}

func insertRange(ranges []AddressRange, at int, r AddressRange) []AddressRange {
	ranges = append(ranges, AddressRange{})
	copy(ranges[at+1:], ranges[at:])
	ranges[at] = r
	return ranges
}

// Allocate carves out the first range able to satisfy size with a first-fit
// scan. It returns the carved range and true, or the zero range and false
// if no range is large enough.
func (p *DisjointAllocationPool) Allocate(size uintptr) (AddressRange, bool) {
	for i := range p.ranges {
		rangeSize := p.ranges[i].Size()
		if size > rangeSize {
			continue
		}
		ret := AddressRange{Start: p.ranges[i].Start, End: p.ranges[i].Start + size}
		if size == rangeSize {
			p.ranges = append(p.ranges[:i], p.ranges[i+1:]...)
		} else {
			p.ranges[i].Start += size
		}
		return ret, true
	}
	return AddressRange{}, false
}
