// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// CheckDims checks that the shape has the given rank and dimensions.
//
// An unknown dimension (DimUnknown), either in the shape or in dimensions, is compatible with any
// other dimension, since its actual value is only known when the graph is executed.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.IsTuple() {
		return errors.Errorf("shape %s is a tuple, it has no dimensions", s)
	}
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape %s has incompatible rank %d (wanted %d)", s, s.Rank(), len(dimensions))
	}
	for axis, wantDim := range dimensions {
		dim := s.Dimensions[axis]
		if dim != wantDim && dim != DimUnknown && wantDim != DimUnknown {
			return errors.Errorf("shape %s axis %d has dimension %d, wanted %d (dimensions wanted=%v)", s, axis, dim, wantDim, dimensions)
		}
	}
	return nil
}

// Check that the shape has the given dtype, rank and dimensions. See CheckDims for how unknown
// dimensions are handled.
func (s Shape) Check(dtype dtypes.DType, dimensions ...int) error {
	if dtype != s.DType {
		return errors.Errorf("shape %s has incompatible dtype %s (wanted %s)", s, s.DType, dtype)
	}
	return s.CheckDims(dimensions...)
}
