// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapeinference"
	"github.com/gomlx/lazyir/pkg/core/shapes"
)

// LogSoftmaxNode is log(softmax(x)) along an axis.
type LogSoftmaxNode struct {
	*ir.Base
	dim int
}

var _ ir.ShapedNode = (*LogSoftmaxNode)(nil)

// LogSoftmax creates the node. dim can be negative, counting from the last axis: it is converted
// to the corresponding non-negative axis if the shape of x is known.
func LogSoftmax(s *ir.Session, x ir.Output, dim int) (*LogSoftmaxNode, error) {
	dim = canonicalDim(x, dim)
	base, err := ir.NewBase(s, OpLogSoftmax, []ir.Output{x}, 1, hashing.Int(dim))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.LogSoftmax(operands[0], dim)
	})
	if err != nil {
		return nil, err
	}
	return &LogSoftmaxNode{Base: base, dim: dim}, nil
}

// Dim is the axis along which the softmax is computed.
func (n *LogSoftmaxNode) Dim() int { return n.dim }

// Clone implements ir.Node.
func (n *LogSoftmaxNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 1); err != nil {
		return nil, err
	}
	return LogSoftmax(n.Session(), operands[0], n.dim)
}

// String implements ir.Node.
func (n *LogSoftmaxNode) String() string {
	return fmt.Sprintf("%s, dim=%d", n.Base.String(), n.dim)
}

// LogSoftmaxBackwardNode is the gradient of LogSoftmax. Its operands are the gradient of the output,
// the output of the forward LogSoftmax, and the forward input (self).
type LogSoftmaxBackwardNode struct {
	*ir.Base
	dim int
}

var _ ir.ShapedNode = (*LogSoftmaxBackwardNode)(nil)

// LogSoftmaxBackward creates the gradient node. The output has the shape of gradOutput.
func LogSoftmaxBackward(s *ir.Session, gradOutput, output ir.Output, dim int, self ir.Output) (*LogSoftmaxBackwardNode, error) {
	dim = canonicalDim(output, dim)
	base, err := ir.NewBase(s, OpLogSoftmaxBackward, []ir.Output{gradOutput, output, self}, 1, hashing.Int(dim))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.LogSoftmaxBackward(operands[0], operands[1], dim)
	})
	if err != nil {
		return nil, err
	}
	return &LogSoftmaxBackwardNode{Base: base, dim: dim}, nil
}

// Dim is the axis along which the softmax was computed.
func (n *LogSoftmaxBackwardNode) Dim() int { return n.dim }

// Clone implements ir.Node.
func (n *LogSoftmaxBackwardNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 3); err != nil {
		return nil, err
	}
	return LogSoftmaxBackward(n.Session(), operands[0], operands[1], n.dim, operands[2])
}

// String implements ir.Node.
func (n *LogSoftmaxBackwardNode) String() string {
	return fmt.Sprintf("%s, dim=%d", n.Base.String(), n.dim)
}
