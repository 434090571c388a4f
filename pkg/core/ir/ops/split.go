// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapeinference"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// SplitNode splits its input along an axis in chunks of a fixed size. It has one output per chunk.
type SplitNode struct {
	*ir.Base
	dim, splitSize int
}

var _ ir.ShapedNode = (*SplitNode)(nil)

// Split creates the node. The number of outputs is ceil(size/splitSize), where size is the dimension
// of axis dim of x, which must be known when the node is built. A negative dim counts from the last axis.
func Split(s *ir.Session, x ir.Output, dim, splitSize int) (*SplitNode, error) {
	op := OpSplit
	if splitSize <= 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s: split size must be > 0, got %d", op, splitSize)
	}
	xShape, err := ir.ShapeOfOutput(x)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s needs the shape of its input", op)
	}
	if xShape.IsTuple() {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s: cannot split tuple %s", op, xShape)
	}
	axis, err := shapeinference.AdjustAxis(dim, xShape.Rank())
	if err != nil {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s: %v", op, err)
	}
	size := xShape.Dimensions[axis]
	if size == shapes.DimUnknown {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s: the number of outputs depends on the unknown dimension of axis %d of %s", op, axis, xShape)
	}
	numOutputs := max(1, (size+splitSize-1)/splitSize)
	base, err := ir.NewBase(s, op, []ir.Output{x}, numOutputs, hashing.Combine(hashing.Int(axis), hashing.Int(splitSize)))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.Split(operands[0], axis, splitSize)
	})
	if err != nil {
		return nil, err
	}
	return &SplitNode{Base: base, dim: axis, splitSize: splitSize}, nil
}

// Dim is the axis being split, always non-negative.
func (n *SplitNode) Dim() int { return n.dim }

// SplitSize is the size of each chunk, except possibly the last.
func (n *SplitNode) SplitSize() int { return n.splitSize }

// Chunks returns all the outputs.
func (n *SplitNode) Chunks() []ir.Output { return ir.AllOutputs(n) }

// Clone implements ir.Node. The new operand must split into the same number of chunks.
func (n *SplitNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 1); err != nil {
		return nil, err
	}
	clone, err := Split(n.Session(), operands[0], n.dim, n.splitSize)
	if err != nil {
		return nil, err
	}
	if clone.NumOutputs() != n.NumOutputs() {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "cloning %s with %d outputs: new operand %s would produce %d outputs",
			n.Op(), n.NumOutputs(), operands[0], clone.NumOutputs())
	}
	return clone, nil
}

// String implements ir.Node.
func (n *SplitNode) String() string {
	return fmt.Sprintf("%s, dim=%d, split_size=%d", n.Base.String(), n.dim, n.splitSize)
}
