// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jumptable

import "unsafe"

// wordPointer returns a pointer to the first byte of b, for use with
// sync/atomic's word-sized operations. Callers guarantee b is 8-byte
// aligned: slot offsets are multiples of SlotSize (16), and the jump table
// itself is allocated at the start of a page-aligned code region.
func wordPointer(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
