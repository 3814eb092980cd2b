// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import "unsafe"

// addressOf returns the address of the first byte of b, or zero for an
// empty slice. Every instruction range this module hands out is a
// sub-slice of a reservation obtained from internal/osmem, so the address
// is stable for the reservation's lifetime.
func addressOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
