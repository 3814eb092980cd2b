// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nativecode manages the executable memory backing a compiled
// WebAssembly module: reserving address space, laying out function bodies
// within it, enforcing W^X protection, resolving indirect calls through a
// jump table, and answering address-to-code lookups for stack walkers and
// trap handlers.
//
// A process creates one WasmCodeManager and, per wasm module it loads, one
// NativeModule from it. Compiled function bodies are published through
// NativeModule.AddCode; the manager and its modules together guarantee
// that publication is atomic from the perspective of a concurrently
// executing indirect call site.
package nativecode
