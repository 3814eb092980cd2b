// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package osmem

// amd64 does not fault on executing writable pages, so a module that
// leaves wasmWriteProtectCodeMemory disabled can reserve memory RWX once
// and never call SetPermissions again.
const rwxAllowed = true
