// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"slices"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapeinference"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// PoolConfig configures the window of a pooling operation, see MaxPoolNd.
type PoolConfig = shapeinference.PoolConfig

// MaxPoolNdNode is an N-dimensional max pooling. It has 2 outputs: the pooled values (output 0)
// and the Int64 indices of the maximum of each window (output 1).
type MaxPoolNdNode struct {
	*ir.Base
	spatialDims int
	config      PoolConfig
}

var _ ir.ShapedNode = (*MaxPoolNdNode)(nil)

// normalizePoolConfig fills in the defaults: stride defaults to the kernel, padding to 0 and dilation to 1.
func normalizePoolConfig(spatialDims int, config PoolConfig) PoolConfig {
	fill := func(values []int, value int) []int {
		if len(values) > 0 {
			return slices.Clone(values)
		}
		values = make([]int, spatialDims)
		for ii := range values {
			values[ii] = value
		}
		return values
	}
	normalized := PoolConfig{
		Kernel:   slices.Clone(config.Kernel),
		Padding:  fill(config.Padding, 0),
		Dilation: fill(config.Dilation, 1),
		CeilMode: config.CeilMode,
	}
	if len(config.Stride) > 0 {
		normalized.Stride = slices.Clone(config.Stride)
	} else {
		normalized.Stride = slices.Clone(config.Kernel)
	}
	return normalized
}

// MaxPoolNd creates a max pooling over the last spatialDims axes of x, which must have rank
// spatialDims+1 or spatialDims+2 (batch and channels).
//
// Empty Stride, Padding and Dilation in config default to the kernel size, 0 and 1 respectively.
// An invalid config fails with ir.ErrInvalidArgument.
func MaxPoolNd(s *ir.Session, x ir.Output, spatialDims int, config PoolConfig) (*MaxPoolNdNode, error) {
	op := OpMaxPoolNd
	if spatialDims <= 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s needs at least one spatial axis, got %d", op, spatialDims)
	}
	config = normalizePoolConfig(spatialDims, config)
	if err := config.Validate(spatialDims); err != nil {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s: %v", op, err)
	}
	seed := hashing.CombineAll(hashing.Int(spatialDims),
		hashing.Ints(config.Kernel), hashing.Ints(config.Stride), hashing.Ints(config.Padding),
		hashing.Ints(config.Dilation), hashing.Bool(config.CeilMode))
	base, err := ir.NewBase(s, op, []ir.Output{x}, 2, seed)
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.MaxPool(operands[0], spatialDims, config)
	})
	if err != nil {
		return nil, err
	}
	return &MaxPoolNdNode{Base: base, spatialDims: spatialDims, config: config}, nil
}

// Values returns the output with the pooled values.
func (n *MaxPoolNdNode) Values() ir.Output { return ir.Output{Node: n, Index: 0} }

// Indices returns the output with the indices of the maximum values.
func (n *MaxPoolNdNode) Indices() ir.Output { return ir.Output{Node: n, Index: 1} }

// SpatialDims is the number of pooled axes.
func (n *MaxPoolNdNode) SpatialDims() int { return n.spatialDims }

// Config returns a copy of the (normalized) pooling configuration.
func (n *MaxPoolNdNode) Config() PoolConfig { return normalizePoolConfig(n.spatialDims, n.config) }

// Clone implements ir.Node.
func (n *MaxPoolNdNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 1); err != nil {
		return nil, err
	}
	return MaxPoolNd(n.Session(), operands[0], n.spatialDims, n.config)
}

// String implements ir.Node.
func (n *MaxPoolNdNode) String() string {
	return fmt.Sprintf("%s, spatial_dims=%d, kernel=%v, stride=%v, padding=%v, dilation=%v, ceil_mode=%v",
		n.Base.String(), n.spatialDims, n.config.Kernel, n.config.Stride, n.config.Padding, n.config.Dilation, n.config.CeilMode)
}

// MaxUnpoolNdBackwardNode is the gradient of a max-unpooling with respect to its input.
type MaxUnpoolNdBackwardNode struct {
	*ir.Base
	outputSize []int
}

var _ ir.ShapedNode = (*MaxUnpoolNdBackwardNode)(nil)

// MaxUnpoolNdBackward creates the gradient node. outputSize is the spatial size of the unpooled
// output, and all its entries must be > 0.
func MaxUnpoolNdBackward(s *ir.Session, gradOutput, input, indices ir.Output, outputSize []int) (*MaxUnpoolNdBackwardNode, error) {
	op := OpMaxUnpoolNdBackward
	if len(outputSize) == 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s requires an output size", op)
	}
	for _, size := range outputSize {
		if size <= 0 {
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s: output size must be positive, got %v", op, outputSize)
		}
	}
	outputSize = slices.Clone(outputSize)
	base, err := ir.NewBase(s, op, []ir.Output{gradOutput, input, indices}, 1, hashing.Ints(outputSize))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.MaxUnpoolBackward(operands[0], operands[1], operands[2], outputSize)
	})
	if err != nil {
		return nil, err
	}
	return &MaxUnpoolNdBackwardNode{Base: base, outputSize: outputSize}, nil
}

// OutputSize returns a copy of the spatial size of the unpooled output.
func (n *MaxUnpoolNdBackwardNode) OutputSize() []int { return slices.Clone(n.outputSize) }

// Clone implements ir.Node.
func (n *MaxUnpoolNdBackwardNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 3); err != nil {
		return nil, err
	}
	return MaxUnpoolNdBackward(n.Session(), operands[0], operands[1], operands[2], n.outputSize)
}

// String implements ir.Node.
func (n *MaxUnpoolNdBackwardNode) String() string {
	return fmt.Sprintf("%s, output_size=%v", n.Base.String(), n.outputSize)
}
