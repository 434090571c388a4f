// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the value type describing the output of a node in the lazy IR.
//
// A Shape is either a leaf shape -- a DType plus its dimensions -- or a tuple of shapes, used by
// nodes with more than one output. Dimensions are non-negative, except for DimUnknown, which marks
// an axis whose size is only known at execution time.
//
// Example: the result of a max-pooling node with values and indices could have the shape
// `Tuple<(Float32)[2 3 4 4], (Int64)[2 3 4 4]>`, created with
//
//	shapes.MakeTuple([]shapes.Shape{shapes.Make(dtypes.Float32, 2, 3, 4, 4), shapes.Make(dtypes.Int64, 2, 3, 4, 4)})
//
// ## Glossary
//
//   - Rank: number of axes of a leaf shape.
//   - Axis: the index of a dimension.
//   - Dimension: the size of one axis.
//   - DType: the type of the unit element, from github.com/gomlx/gopjrt/dtypes.
//   - Tuple: a shape made of other shapes, one per output of a multi-output node.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// DimUnknown marks a dimension that is dynamic: its value is not known while building the graph.
const DimUnknown = -1

// Shape represents the shape of the value produced by a node.
//
// Shapes are treated as immutable values: functions that derive a new shape from an existing one
// clone it first.
type Shape struct {
	DType       dtypes.DType
	Dimensions  []int
	TupleShapes []Shape // Shapes of the tuple elements, if this is a tuple. nil otherwise.
}

// Make returns a leaf Shape with the given dtype and dimensions.
// See MakeTuple for tuple shapes.
//
// It panics if a dimension is negative and not DimUnknown.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 && dim != DimUnknown {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// MakeTuple returns a shape representing a tuple of elements with the given shapes.
func MakeTuple(elements []Shape) Shape {
	tuple := Shape{DType: dtypes.InvalidDType, TupleShapes: make([]Shape, 0, len(elements))}
	for _, element := range elements {
		tuple.TupleShapes = append(tuple.TupleShapes, element.Clone())
	}
	return tuple
}

// Ok returns whether this is a valid Shape. A zero Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType || s.IsTuple() }

// IsTuple returns whether the shape represents a tuple.
func (s Shape) IsTuple() bool { return s.TupleShapes != nil }

// TupleSize returns the number of elements in the tuple, or 0 if it is not a tuple.
func (s Shape) TupleSize() int { return len(s.TupleShapes) }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && !s.IsTuple() && s.Rank() == 0 }

// IsDynamic returns whether any of the dimensions (including those of tuple elements) is DimUnknown.
func (s Shape) IsDynamic() bool {
	if s.IsTuple() {
		return slices.ContainsFunc(s.TupleShapes, Shape.IsDynamic)
	}
	return slices.Contains(s.Dimensions, DimUnknown)
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// String implements stringer, pretty-prints the shape. Unknown dimensions are printed as "?".
func (s Shape) String() string {
	if s.IsTuple() {
		parts := make([]string, 0, s.TupleSize())
		for _, element := range s.TupleShapes {
			parts = append(parts, element.String())
		}
		return fmt.Sprintf("Tuple<%s>", strings.Join(parts, ", "))
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	dims := make([]string, 0, s.Rank())
	for _, d := range s.Dimensions {
		if d == DimUnknown {
			dims = append(dims, "?")
		} else {
			dims = append(dims, fmt.Sprint(d))
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(dims, " "))
}

// Equal compares two shapes for structural equality: dtype, dimensions and tuple elements.
// Unknown dimensions only match unknown dimensions.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType || s.IsTuple() != s2.IsTuple() {
		return false
	}
	if s.IsTuple() {
		return slices.EqualFunc(s.TupleShapes, s2.TupleShapes, Shape.Equal)
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	if s.TupleShapes != nil {
		s2.TupleShapes = make([]Shape, 0, len(s.TupleShapes))
		for _, subShape := range s.TupleShapes {
			s2.TupleShapes = append(s2.TupleShapes, subShape.Clone())
		}
	}
	return
}

// WithDType returns a copy of the leaf shape with the dtype replaced.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}
