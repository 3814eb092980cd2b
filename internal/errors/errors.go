// Copyright (c) 2026 gate.computer authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error taxonomy used throughout the native code
// manager.
//
// Errors returned by this module implement one of two marker interfaces.
// Recoverable errors implement:
//
//	interface { NativeCodeError() string }
//
// Fatal errors additionally implement:
//
//	interface { Fatal() bool }
//
// A fatal error signals that the manager or one of its modules is left in
// an indeterminate state (failed OS permission change, failed trap-handler
// registration, underflowed commit accounting) and that the embedding host
// should not continue to use the affected module or manager.
package errors

import "fmt"

type nativeCodeError string

func New(text string) error {
	return nativeCodeError(text)
}

func Newf(format string, args ...interface{}) error {
	return nativeCodeError(fmt.Sprintf(format, args...))
}

func (e nativeCodeError) Error() string          { return string(e) }
func (e nativeCodeError) NativeCodeError() string { return string(e) }

type wrapped struct {
	text  string
	cause error
}

func Wrap(cause error, text string) error {
	return &wrapped{text, cause}
}

func Wrapf(cause error, format string, args ...interface{}) error {
	return &wrapped{fmt.Sprintf(format, args...), cause}
}

func (e *wrapped) Error() string          { return e.text + ": " + e.cause.Error() }
func (e *wrapped) NativeCodeError() string { return e.text }
func (e *wrapped) Unwrap() error          { return e.cause }

// Fatal is a recoverable-in-type-only error: it implements the standard
// error interface so it can be returned and logged like any other error,
// but its Fatal method tells the caller that the manager or module that
// produced it must not be used again.
type Fatal struct {
	text  string
	cause error
}

func NewFatal(text string) *Fatal {
	return &Fatal{text: text}
}

func NewFatalf(format string, args ...interface{}) *Fatal {
	return &Fatal{text: fmt.Sprintf(format, args...)}
}

func WrapFatal(cause error, text string) *Fatal {
	return &Fatal{text: text, cause: cause}
}

func (e *Fatal) Error() string {
	if e.cause != nil {
		return e.text + ": " + e.cause.Error()
	}
	return e.text
}

func (e *Fatal) NativeCodeError() string { return e.text }
func (e *Fatal) Fatal() bool             { return true }
func (e *Fatal) Unwrap() error           { return e.cause }

// IsFatal reports whether err (or something it wraps) is a *Fatal.
func IsFatal(err error) bool {
	for err != nil {
		if f, ok := err.(interface{ Fatal() bool }); ok && f.Fatal() {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
