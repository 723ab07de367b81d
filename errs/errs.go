// The MIT License (MIT)
//
// Copyright (c) 2013-2016 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package errs classifies the failure modes of the NatNet codec and
// connection runtime into the closed set of kinds described by the
// protocol design: Malformed, Timeout, Transport, Protocol and State.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds a NatNet client can surface.
type Kind int

const (
	// Malformed: insufficient bytes, unknown type tag, or sentinel mismatch.
	Malformed Kind = iota
	// Timeout: a typed await, discovery, or echo probe exceeded its budget.
	Timeout
	// Transport: socket open/bind/join failure.
	Transport
	// Protocol: the peer sent an unexpected type or a mismatched echo reply.
	Protocol
	// State: an operation was attempted in an invalid client state.
	State
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case State:
		return "state"
	default:
		return "unknown"
	}
}

// Error is a kinded, wrapped error. The Cause, when set, is preserved
// by github.com/pkg/errors so callers can still unwrap to the root fault.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind with no underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind, attaching cause with a stack
// trace via github.com/pkg/errors so the original fault site survives.
func Wrap(kind Kind, cause error, message string) error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Cause: errors.Wrap(cause, message)}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if v, ok := err.(*Error); ok {
			e = v
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
