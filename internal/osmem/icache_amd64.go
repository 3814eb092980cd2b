// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package osmem

// FlushICache is a no-op on amd64: the x86-64 instruction cache is coherent
// with the data cache, so writes to executable pages are visible to the
// fetch unit without an explicit flush. NativeModule still calls this at
// every publication point so the same code works unmodified on architectures
// that do need it.
func FlushICache(mem []byte) {}
