// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops implements the concrete node types of the IR.
//
// Each constructor takes the Session and the operands, validates its scalar parameters (failing with
// ir.ErrInvalidArgument), and sets the shape of the new node with SetShapeDeferred, using the rules
// in package shapeinference. So building a structurally identical node a second time (in any session
// sharing the same shape cache) doesn't run shape inference again.
//
// Every node type implements Clone by calling its constructor again with the same parameters.
package ops

import (
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapeinference"
	"github.com/gomlx/lazyir/pkg/core/shapes"
)

// Namespaces of the op kinds defined here.
const (
	NamespaceAten = "aten"
	NamespaceLazy = "lazy"
)

// Op kinds of the nodes in this package.
var (
	OpParameter = ir.NewOpKind(NamespaceLazy, "parameter")
	OpScalar    = ir.NewOpKind(NamespaceLazy, "scalar")

	OpNeg  = ir.NewOpKind(NamespaceAten, "neg")
	OpExp  = ir.NewOpKind(NamespaceAten, "exp")
	OpLog  = ir.NewOpKind(NamespaceAten, "log")
	OpTanh = ir.NewOpKind(NamespaceAten, "tanh")
	OpAdd  = ir.NewOpKind(NamespaceAten, "add")
	OpSub  = ir.NewOpKind(NamespaceAten, "sub")
	OpMul  = ir.NewOpKind(NamespaceAten, "mul")
	OpDiv  = ir.NewOpKind(NamespaceAten, "div")

	OpBinaryCrossEntropy         = ir.NewOpKind(NamespaceAten, "binary_cross_entropy")
	OpBinaryCrossEntropyBackward = ir.NewOpKind(NamespaceAten, "binary_cross_entropy_backward")
	OpMSELossBackward            = ir.NewOpKind(NamespaceAten, "mse_loss_backward")
	OpL1LossBackward             = ir.NewOpKind(NamespaceAten, "l1_loss_backward")
	OpSoftMarginLossBackward     = ir.NewOpKind(NamespaceAten, "soft_margin_loss_backward")
	OpSmoothL1LossBackward       = ir.NewOpKind(NamespaceAten, "smooth_l1_loss_backward")
	OpHuberLossBackward          = ir.NewOpKind(NamespaceAten, "huber_loss_backward")
	OpMarginRankingLoss          = ir.NewOpKind(NamespaceAten, "margin_ranking_loss")

	OpLogSoftmax         = ir.NewOpKind(NamespaceAten, "_log_softmax")
	OpLogSoftmaxBackward = ir.NewOpKind(NamespaceAten, "_log_softmax_backward_data")

	OpMaxPoolNd           = ir.NewOpKind(NamespaceAten, "max_pool_nd")
	OpMaxUnpoolNdBackward = ir.NewOpKind(NamespaceAten, "max_unpool_nd_backward")
	OpSplit               = ir.NewOpKind(NamespaceAten, "split")
)

// shapeRule computes the shape of a node from the shapes of its operands.
type shapeRule func(operands []shapes.Shape) (shapes.Shape, error)

// canonicalDim converts a negative dim to the axis it refers to, when the rank of x is known, so
// that equivalent nodes have the same hash. Scalars are treated as rank 1. Out of range values are
// returned unchanged, for shape inference to report.
func canonicalDim(x ir.Output, dim int) int {
	if dim >= 0 {
		return dim
	}
	shape, err := ir.ShapeOfOutput(x)
	if err != nil || shape.IsTuple() {
		return dim
	}
	if axis, err := shapeinference.AdjustAxis(dim, max(shape.Rank(), 1)); err == nil {
		return axis
	}
	return dim
}

// setShape sets the shape of base lazily: the operand shapes are only read, and rule only called,
// if the shape cache doesn't already hold the shape for the node hash.
func setShape(base *ir.Base, rule shapeRule) error {
	return base.SetShapeDeferred(func() (shapes.Shape, error) {
		operandShapes, err := ir.ShapesOf(base.Operands())
		if err != nil {
			return shapes.Shape{}, err
		}
		return rule(operandShapes)
	})
}
