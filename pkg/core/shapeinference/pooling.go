// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// int64Indices is the dtype of indices produced by pooling operations.
const int64Indices = dtypes.Int64

// PoolConfig holds the window configuration of an N-dimensional pooling: one entry per spatial axis.
type PoolConfig struct {
	Kernel, Stride, Padding, Dilation []int
	CeilMode                          bool
}

// Validate checks the lengths and values of the configuration for the given number of spatial axes.
func (c PoolConfig) Validate(spatialDims int) error {
	if spatialDims <= 0 {
		return errors.Errorf("pooling needs at least one spatial axis, got %d", spatialDims)
	}
	for _, param := range []struct {
		name     string
		values   []int
		minValue int
	}{
		{"kernel", c.Kernel, 1},
		{"stride", c.Stride, 1},
		{"padding", c.Padding, 0},
		{"dilation", c.Dilation, 1},
	} {
		if len(param.values) != spatialDims {
			return errors.Errorf("pooling %s must have %d values (one per spatial axis), got %v", param.name, spatialDims, param.values)
		}
		for _, v := range param.values {
			if v < param.minValue {
				return errors.Errorf("pooling %s values must be >= %d, got %v", param.name, param.minValue, param.values)
			}
		}
	}
	for ii := range spatialDims {
		if c.Padding[ii] > c.Kernel[ii]/2 {
			return errors.Errorf("pooling padding %v should be at most half of the kernel %v", c.Padding, c.Kernel)
		}
	}
	return nil
}

// poolOutputDim follows the usual pooling arithmetic, including the ceil mode adjustment that
// drops a last window starting entirely in the padding.
func poolOutputDim(input, kernel, stride, padding, dilation int, ceilMode bool) int {
	if input == shapes.DimUnknown {
		return shapes.DimUnknown
	}
	numerator := input + 2*padding - dilation*(kernel-1) - 1
	if ceilMode {
		numerator += stride - 1
	}
	if numerator < 0 {
		return 0
	}
	output := numerator/stride + 1
	if ceilMode && (output-1)*stride >= input+padding {
		output--
	}
	return output
}

// MaxPool returns the tuple shape (values, indices) of an N-dimensional max pooling over the last
// spatialDims axes of input. Input must have rank spatialDims+1 (unbatched) or spatialDims+2.
// Indices are Int64.
func MaxPool(input shapes.Shape, spatialDims int, config PoolConfig) (shapes.Shape, error) {
	const op = "MaxPool"
	if err := checkLeaf(op, "input", input); err != nil {
		return shapes.Shape{}, err
	}
	if err := config.Validate(spatialDims); err != nil {
		return shapes.Shape{}, errors.WithMessage(err, op)
	}
	if input.Rank() != spatialDims+1 && input.Rank() != spatialDims+2 {
		return shapes.Shape{}, errors.Errorf("%s: input %s must have rank %d or %d for %d spatial axes",
			op, input, spatialDims+1, spatialDims+2, spatialDims)
	}
	values := input.Clone()
	firstSpatial := input.Rank() - spatialDims
	for ii := range spatialDims {
		axis := firstSpatial + ii
		outDim := poolOutputDim(input.Dimensions[axis], config.Kernel[ii], config.Stride[ii], config.Padding[ii],
			config.Dilation[ii], config.CeilMode)
		if outDim == 0 {
			return shapes.Shape{}, errors.Errorf("%s: output would be empty on axis %d for input %s and kernel %v",
				op, axis, input, config.Kernel)
		}
		values.Dimensions[axis] = outDim
	}
	indices := values.WithDType(int64Indices)
	return shapes.MakeTuple([]shapes.Shape{values, indices}), nil
}

// MaxUnpoolBackward returns the shape of the gradient of a max-unpooling with respect to its input:
// the input shape.
//
// indices must have the dimensions of input and an integer dtype; gradOutput must match input on
// the leading (batch and channel) axes and outputSize on the trailing spatial axes.
func MaxUnpoolBackward(gradOutput, input, indices shapes.Shape, outputSize []int) (shapes.Shape, error) {
	const op = "MaxUnpoolBackward"
	if err := checkFloat(op, "grad_output", gradOutput); err != nil {
		return shapes.Shape{}, err
	}
	if err := checkFloat(op, "input", input); err != nil {
		return shapes.Shape{}, err
	}
	if err := checkLeaf(op, "indices", indices); err != nil {
		return shapes.Shape{}, err
	}
	if !indices.DType.IsInt() {
		return shapes.Shape{}, errors.Errorf("%s: indices must be integers, got %s", op, indices)
	}
	if err := indices.CheckDims(input.Dimensions...); err != nil {
		return shapes.Shape{}, errors.WithMessagef(err, "%s: indices must have the dimensions of input %s", op, input)
	}
	spatialDims := len(outputSize)
	if spatialDims == 0 || input.Rank() < spatialDims+1 {
		return shapes.Shape{}, errors.Errorf("%s: output size %v incompatible with input %s", op, outputSize, input)
	}
	leading := input.Rank() - spatialDims
	want := append(append([]int{}, input.Dimensions[:leading]...), outputSize...)
	if err := gradOutput.Check(input.DType, want...); err != nil {
		return shapes.Shape{}, errors.WithMessagef(err, "%s: grad_output must have the dtype of input %s", op, input)
	}
	return input.Clone(), nil
}
