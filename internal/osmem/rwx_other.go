// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

package osmem

// arm64 and every architecture this module doesn't special-case require
// pages to be committed read-write, then separately transitioned to
// read-execute before any code in them runs.
const rwxAllowed = false
