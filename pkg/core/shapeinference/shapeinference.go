// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from operations and validates their inputs.
//
// These are the static rules used as deferred shape functions by the concrete nodes of the lazy IR:
// every function is pure, returning either the output shape or an error describing why the inputs
// are not acceptable. They never look at values, only at shapes.
//
// Unknown dimensions (shapes.DimUnknown) are accepted anywhere a concrete dimension would be, and
// propagate to the output when the output dimension depends on them.
package shapeinference

import (
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// AdjustAxis converts a possibly negative axis (counting from the end) to a non-negative one,
// checking that it is within the rank.
func AdjustAxis(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Errorf("axis %d out of range for rank %d, it must be in [%d, %d)", axis, rank, -rank, rank)
	}
	return adjusted, nil
}

func checkLeaf(op string, name string, s shapes.Shape) error {
	if !s.Ok() {
		return errors.Errorf("%s: invalid shape %s for %s", op, s, name)
	}
	if s.IsTuple() {
		return errors.Errorf("%s: %s must be a tensor, got tuple %s", op, name, s)
	}
	return nil
}

func checkFloat(op string, name string, s shapes.Shape) error {
	if err := checkLeaf(op, name, s); err != nil {
		return err
	}
	if !s.DType.IsFloat() {
		return errors.Errorf("%s: %s must have a float (Float32, Float64, ...) data type, got %s", op, name, s)
	}
	return nil
}

// Unary returns the shape of an element-wise unary operation: the operand shape itself.
func Unary(op string, operand shapes.Shape) (shapes.Shape, error) {
	if err := checkLeaf(op, "operand", operand); err != nil {
		return shapes.Shape{}, err
	}
	return operand.Clone(), nil
}

// Binary returns the shape of an element-wise binary operation, using the usual broadcasting rules:
// dimensions are aligned to the right, and each pair must either match or one of them be 1.
//
// The data types must match.
func Binary(op string, lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	if err = checkLeaf(op, "lhs", lhs); err != nil {
		return
	}
	if err = checkLeaf(op, "rhs", rhs); err != nil {
		return
	}
	if lhs.DType != rhs.DType {
		err = errors.Errorf("%s: data types (DType) must match, got %s and %s", op, lhs, rhs)
		return
	}
	rank := max(lhs.Rank(), rhs.Rank())
	output = shapes.Shape{DType: lhs.DType, Dimensions: make([]int, rank)}
	for axis := range rank {
		lhsDim, rhsDim := 1, 1
		if ii := axis - (rank - lhs.Rank()); ii >= 0 {
			lhsDim = lhs.Dimensions[ii]
		}
		if ii := axis - (rank - rhs.Rank()); ii >= 0 {
			rhsDim = rhs.Dimensions[ii]
		}
		switch {
		case lhsDim == rhsDim:
			output.Dimensions[axis] = lhsDim
		case lhsDim == 1:
			output.Dimensions[axis] = rhsDim
		case rhsDim == 1:
			output.Dimensions[axis] = lhsDim
		case lhsDim == shapes.DimUnknown:
			output.Dimensions[axis] = rhsDim
		case rhsDim == shapes.DimUnknown:
			output.Dimensions[axis] = lhsDim
		default:
			err = errors.Errorf("%s: dimension of axis #%d doesn't match and cannot be broadcast, got shapes %s and %s",
				op, axis, lhs, rhs)
			return shapes.Shape{}, err
		}
	}
	return
}

// Split returns the tuple shape of splitting input along dim in chunks of splitSize. The last
// chunk is smaller if the dimension is not divisible by splitSize.
//
// The dimension being split must be known.
func Split(input shapes.Shape, dim, splitSize int) (shapes.Shape, error) {
	const op = "Split"
	if err := checkLeaf(op, "input", input); err != nil {
		return shapes.Shape{}, err
	}
	axis, err := AdjustAxis(dim, input.Rank())
	if err != nil {
		return shapes.Shape{}, errors.WithMessage(err, op)
	}
	if splitSize <= 0 {
		return shapes.Shape{}, errors.Errorf("%s: split size must be > 0, got %d", op, splitSize)
	}
	size := input.Dimensions[axis]
	if size == shapes.DimUnknown {
		return shapes.Shape{}, errors.Errorf("%s: cannot split unknown dimension of axis %d of %s", op, axis, input)
	}
	numChunks := max(1, (size+splitSize-1)/splitSize)
	chunks := make([]shapes.Shape, 0, numChunks)
	for ii := range numChunks {
		chunk := input.Clone()
		chunk.Dimensions[axis] = min(splitSize, size-ii*splitSize)
		chunks = append(chunks, chunk)
	}
	return shapes.MakeTuple(chunks), nil
}

// LogSoftmax returns the shape of a log-softmax along dim: the input shape.
func LogSoftmax(input shapes.Shape, dim int) (shapes.Shape, error) {
	const op = "LogSoftmax"
	if err := checkFloat(op, "input", input); err != nil {
		return shapes.Shape{}, err
	}
	if _, err := AdjustAxis(dim, max(input.Rank(), 1)); err != nil {
		return shapes.Shape{}, errors.WithMessage(err, op)
	}
	return input.Clone(), nil
}

// LogSoftmaxBackward returns the shape of the gradient of a log-softmax along dim: gradOutput and
// output must have the same shape, which is returned.
func LogSoftmaxBackward(gradOutput, output shapes.Shape, dim int) (shapes.Shape, error) {
	const op = "LogSoftmaxBackward"
	if err := checkFloat(op, "grad_output", gradOutput); err != nil {
		return shapes.Shape{}, err
	}
	if err := checkFloat(op, "output", output); err != nil {
		return shapes.Shape{}, err
	}
	if err := gradOutput.Check(output.DType, output.Dimensions...); err != nil {
		return shapes.Shape{}, errors.WithMessagef(err, "%s: grad_output must have the shape of output %s", op, output)
	}
	if _, err := AdjustAxis(dim, max(output.Rank(), 1)); err != nil {
		return shapes.Shape{}, errors.WithMessage(err, op)
	}
	return gradOutput.Clone(), nil
}
