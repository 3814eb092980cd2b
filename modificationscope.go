// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nativecode

// NativeModuleModificationScope is a scoped guard implementing W^X at the
// module level. Nesting is supported: the outermost entry transitions the
// module to writable, and the outermost exit transitions it back to
// executable; inner entries and exits are no-ops. Use it as:
//
//	scope := nativecode.EnterModificationScope(nm)
//	defer scope.Close()
type NativeModuleModificationScope struct {
	nm *NativeModule
}

// EnterModificationScope increments nm's modification-scope depth and, if
// this is the outermost entry, transitions nm to writable. A failure of
// the underlying permission change is fatal: it leaves the module in an
// indeterminate protection state, so this panics with the wrapped error
// rather than returning one nesting callers would have no safe way to
// react to.
func EnterModificationScope(nm *NativeModule) *NativeModuleModificationScope {
	nm.mu.Lock()
	nm.modificationScopeDepth++
	depth := nm.modificationScopeDepth
	nm.mu.Unlock()

	if depth == 1 {
		if err := nm.SetExecutable(false); err != nil {
			panic(err)
		}
	}
	return &NativeModuleModificationScope{nm: nm}
}

// Close decrements the scope depth and, if this was the outermost scope,
// transitions the module back to executable.
func (s *NativeModuleModificationScope) Close() {
	nm := s.nm
	nm.mu.Lock()
	nm.modificationScopeDepth--
	depth := nm.modificationScopeDepth
	nm.mu.Unlock()

	if depth == 0 {
		if err := nm.SetExecutable(true); err != nil {
			panic(err)
		}
	}
}
