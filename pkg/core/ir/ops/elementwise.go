// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapeinference"
	"github.com/gomlx/lazyir/pkg/core/shapes"
)

// ElementwiseNode is a unary or binary element-wise operation, like OpNeg or OpAdd.
type ElementwiseNode struct {
	*ir.Base
}

var _ ir.ShapedNode = (*ElementwiseNode)(nil)

func newElementwise(s *ir.Session, op ir.OpKind, operands []ir.Output) (*ElementwiseNode, error) {
	if err := ir.CheckNumOperands(op, operands, 1, 2); err != nil {
		return nil, err
	}
	base, err := ir.NewBase(s, op, operands, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(operands) == 1 {
		err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
			return shapeinference.Unary(op.String(), operands[0])
		})
	} else {
		err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
			return shapeinference.Binary(op.String(), operands[0], operands[1])
		})
	}
	if err != nil {
		return nil, err
	}
	return &ElementwiseNode{Base: base}, nil
}

// Unary creates an element-wise operation on x: the output has the shape of x.
func Unary(s *ir.Session, op ir.OpKind, x ir.Output) (*ElementwiseNode, error) {
	return newElementwise(s, op, []ir.Output{x})
}

// Binary creates an element-wise operation on lhs and rhs, broadcast together.
func Binary(s *ir.Session, op ir.OpKind, lhs, rhs ir.Output) (*ElementwiseNode, error) {
	return newElementwise(s, op, []ir.Output{lhs, rhs})
}

// Clone implements ir.Node.
func (n *ElementwiseNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, n.NumOperands()); err != nil {
		return nil, err
	}
	return newElementwise(n.Session(), n.Op(), operands)
}
