// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

// AddressRange is a half-open interval [Start, End) of virtual addresses.
// The zero value is the empty range at the null address.
type AddressRange struct {
	Start uintptr
	End   uintptr
}

// Size returns End - Start.
func (r AddressRange) Size() uintptr { return r.End - r.Start }

// Empty reports whether the range contains no addresses.
func (r AddressRange) Empty() bool { return r.Start == r.End }

// Contains reports whether pc lies within [Start, End).
func (r AddressRange) Contains(pc uintptr) bool { return pc >= r.Start && pc < r.End }

// ContainsRange reports whether r fully contains other.
func (r AddressRange) ContainsRange(other AddressRange) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// OverlapsWith reports whether r and other share any address.
func (r AddressRange) OverlapsWith(other AddressRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// AdjacentTo reports whether r immediately precedes other with no gap,
// i.e. r.End == other.Start. DisjointAllocationPool treats adjacency as a
// normalization violation: adjacent ranges must be merged into one.
func (r AddressRange) AdjacentTo(other AddressRange) bool { return r.End == other.Start }
