// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

package osmem

// FlushICache is a best-effort placeholder on architectures whose
// instruction cache is not automatically coherent with the data cache
// (arm64 chief among them). A correct flush there requires emitting the
// architecture's own cache-maintenance instructions (DC CVAU / IC IVAU on
// arm64) at the patched addresses, which falls under the same
// instruction-set-specific-emission non-goal as jump-table slot encoding;
// see internal/jumptable. Embedders targeting such a platform should
// install their own flush via a build-tagged override of this function.
func FlushICache(mem []byte) {}
