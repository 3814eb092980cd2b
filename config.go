// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

import (
	"github.com/sirupsen/logrus"
)

const (
	KiB = 1 << 10
	MiB = 1 << 20
)

// CriticalThreshold is the uncommitted-code-space low-water mark below
// which, with more than one module live, NewNativeModule issues a critical
// memory-pressure signal on the next module creation.
const CriticalThreshold = 32 * MiB

// CodeSizeMultiplier and ImportSize feed NativeModule size estimation: a
// module's estimated footprint is roughly
// CodeSizeMultiplier*moduleCodeSize + ImportSize*numImports.
const (
	CodeSizeMultiplier = 4
	ImportSize         = 32 * 8 // 32 * pointer-size, pointer-size = 8 on every GOARCH this module targets
)

// CodeAlignment is the byte alignment every code allocation is rounded up
// to before being carved from a NativeModule's free-space pool.
const CodeAlignment = 16

// MaxWasmCodeMemory upper-bounds Config.MaxCommitted: a process-wide
// ceiling that keeps a 32-bit address space from being exhausted by code
// alone. This module targets 64-bit hosts only, so the bound here is
// generous rather than load-bearing.
const MaxWasmCodeMemory = 4 * 1024 * uintptr(MiB)

// Level is the severity of a memory-pressure signal.
type Level int

const (
	LevelModerate Level = iota
	LevelCritical
)

func (l Level) String() string {
	if l == LevelCritical {
		return "critical"
	}
	return "moderate"
}

// Config configures a WasmCodeManager. The zero value is not valid; use
// DefaultConfig to obtain sane defaults and override individual fields.
type Config struct {
	// EnableEmbeddedConstantPool gates whether WasmCode.ConstantPool ever
	// resolves to a non-zero address.
	EnableEmbeddedConstantPool bool

	// WasmWriteProtectCodeMemory enables W^X transitions in
	// NativeModule.SetExecutable. When false, arenas that can be mapped RWX
	// (amd64) stay that way permanently and SetExecutable is a no-op; on
	// architectures that cannot map RWX, pages are still transitioned
	// regardless of this flag (see internal/osmem).
	WasmWriteProtectCodeMemory bool

	// WasmTraceNativeHeap enables structured trace logging of allocator and
	// protection-lifecycle events. It is observability-only: no behavior
	// depends on it besides what gets logged.
	WasmTraceNativeHeap bool

	// MaxCommitted is the process-wide ceiling on committed code memory. It
	// must not exceed MaxWasmCodeMemory.
	MaxCommitted uintptr

	// MemoryPressureCallback, if set, is invoked synchronously from
	// NewNativeModule whenever remaining uncommitted space falls under
	// CriticalThreshold while more than one module is live.
	MemoryPressureCallback func(Level)

	// Logger receives trace and diagnostic output. If nil, a default
	// logrus.Logger writing to stderr at Info level is used.
	Logger *logrus.Logger
}

// DefaultConfig returns a Config with conservative defaults: embedded
// constant pools and write-protection enabled, tracing disabled, and a
// 1 GiB commit ceiling.
func DefaultConfig() Config {
	return Config{
		EnableEmbeddedConstantPool: true,
		WasmWriteProtectCodeMemory: true,
		WasmTraceNativeHeap:        false,
		MaxCommitted:               1024 * MiB,
		Logger:                     logrus.StandardLogger(),
	}
}

func (c *Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}
