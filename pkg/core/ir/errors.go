// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/pkg/errors"
)

// Error kinds returned by the IR. Use errors.Is to test for them: returned errors wrap them with context.
var (
	// ErrInvalidArgument is returned for malformed construction parameters: non-positive output
	// counts, invalid output indices, negative sizes or out-of-domain scalar parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexOutOfRange is returned when an output index exceeds the arity of a tuple shape.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrTypeMismatch is returned when a node doesn't have the concrete type or capability requested.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInferenceFailure is matched by errors returned from a failing shape function, see InferenceError.
	ErrInferenceFailure = errors.New("shape inference failure")
)

// InferenceError is returned when the shape function of a node fails (returns an error or panics).
//
// It matches ErrInferenceFailure with errors.Is, and unwraps to the error returned by the shape function.
type InferenceError struct {
	Op   OpKind
	Hash hashing.Hash
	Err  error
}

// Error implements the error interface.
func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: shape inference for %s (hash %s): %v", ErrInferenceFailure, e.Op, e.Hash, e.Err)
}

// Unwrap returns the error from the shape function.
func (e *InferenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInferenceFailure.
func (e *InferenceError) Is(target error) bool { return target == ErrInferenceFailure }

func invalidArgumentf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
