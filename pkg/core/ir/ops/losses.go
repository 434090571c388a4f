// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapeinference"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// lossOperands appends weight to operands if it is set.
func lossOperands(weight ir.Output, operands ...ir.Output) []ir.Output {
	if weight.Node != nil {
		operands = append(operands, weight)
	}
	return operands
}

// optionalShape returns a pointer to operands[index], or nil if there is no such operand.
func optionalShape(operands []shapes.Shape, index int) *shapes.Shape {
	if index >= len(operands) {
		return nil
	}
	return &operands[index]
}

// BinaryCrossEntropyNode is the binary cross-entropy loss between input (probabilities) and target,
// with an optional weight operand.
type BinaryCrossEntropyNode struct {
	*ir.Base
	reduction ReductionMode
}

var _ ir.ShapedNode = (*BinaryCrossEntropyNode)(nil)

// BinaryCrossEntropy creates the loss node. weight is optional: leave it as the zero ir.Output to
// not use it.
func BinaryCrossEntropy(s *ir.Session, input, target, weight ir.Output, reduction ReductionMode) (*BinaryCrossEntropyNode, error) {
	return newBinaryCrossEntropy(s, lossOperands(weight, input, target), reduction)
}

func newBinaryCrossEntropy(s *ir.Session, operands []ir.Output, reduction ReductionMode) (*BinaryCrossEntropyNode, error) {
	op := OpBinaryCrossEntropy
	if err := ir.CheckNumOperands(op, operands, 2, 3); err != nil {
		return nil, err
	}
	if err := checkReduction(op, reduction); err != nil {
		return nil, err
	}
	seed := hashing.Combine(reduction.Hash(), hashing.Bool(len(operands) == 3))
	base, err := ir.NewBase(s, op, operands, 1, seed)
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.BinaryCrossEntropy(operands[0], operands[1], optionalShape(operands, 2), reduction.Reduced())
	})
	if err != nil {
		return nil, err
	}
	return &BinaryCrossEntropyNode{Base: base, reduction: reduction}, nil
}

// Reduction mode of the loss.
func (n *BinaryCrossEntropyNode) Reduction() ReductionMode { return n.reduction }

// HasWeight returns whether the weight operand is present.
func (n *BinaryCrossEntropyNode) HasWeight() bool { return n.NumOperands() == 3 }

// Clone implements ir.Node.
func (n *BinaryCrossEntropyNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, n.NumOperands()); err != nil {
		return nil, err
	}
	return newBinaryCrossEntropy(n.Session(), operands, n.reduction)
}

// String implements ir.Node.
func (n *BinaryCrossEntropyNode) String() string {
	return fmt.Sprintf("%s, reduction=%s", n.Base.String(), n.reduction)
}

// BinaryCrossEntropyBackwardNode is the gradient of the binary cross-entropy with respect to its input.
type BinaryCrossEntropyBackwardNode struct {
	*ir.Base
	reduction ReductionMode
}

var _ ir.ShapedNode = (*BinaryCrossEntropyBackwardNode)(nil)

// BinaryCrossEntropyBackward creates the gradient node. weight is optional: leave it as the zero
// ir.Output to not use it.
func BinaryCrossEntropyBackward(s *ir.Session, gradOutput, input, target, weight ir.Output, reduction ReductionMode) (*BinaryCrossEntropyBackwardNode, error) {
	return newBinaryCrossEntropyBackward(s, lossOperands(weight, gradOutput, input, target), reduction)
}

func newBinaryCrossEntropyBackward(s *ir.Session, operands []ir.Output, reduction ReductionMode) (*BinaryCrossEntropyBackwardNode, error) {
	op := OpBinaryCrossEntropyBackward
	if err := ir.CheckNumOperands(op, operands, 3, 4); err != nil {
		return nil, err
	}
	if err := checkReduction(op, reduction); err != nil {
		return nil, err
	}
	seed := hashing.Combine(reduction.Hash(), hashing.Bool(len(operands) == 4))
	base, err := ir.NewBase(s, op, operands, 1, seed)
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.BinaryCrossEntropyBackward(operands[0], operands[1], operands[2],
			optionalShape(operands, 3), reduction.Reduced())
	})
	if err != nil {
		return nil, err
	}
	return &BinaryCrossEntropyBackwardNode{Base: base, reduction: reduction}, nil
}

// Reduction mode of the loss.
func (n *BinaryCrossEntropyBackwardNode) Reduction() ReductionMode { return n.reduction }

// HasWeight returns whether the weight operand is present.
func (n *BinaryCrossEntropyBackwardNode) HasWeight() bool { return n.NumOperands() == 4 }

// Clone implements ir.Node.
func (n *BinaryCrossEntropyBackwardNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, n.NumOperands()); err != nil {
		return nil, err
	}
	return newBinaryCrossEntropyBackward(n.Session(), operands, n.reduction)
}

// String implements ir.Node.
func (n *BinaryCrossEntropyBackwardNode) String() string {
	return fmt.Sprintf("%s, reduction=%s", n.Base.String(), n.reduction)
}

// LossBackwardNode is the gradient of a parameterless point-wise loss: OpMSELossBackward,
// OpL1LossBackward or OpSoftMarginLossBackward.
type LossBackwardNode struct {
	*ir.Base
	reduction ReductionMode
}

var _ ir.ShapedNode = (*LossBackwardNode)(nil)

var parameterlessLossBackwardOps = []ir.OpKind{OpMSELossBackward, OpL1LossBackward, OpSoftMarginLossBackward}

// LossBackward creates the gradient of the loss op with respect to input. op must be one of
// OpMSELossBackward, OpL1LossBackward or OpSoftMarginLossBackward.
func LossBackward(s *ir.Session, op ir.OpKind, gradOutput, input, target ir.Output, reduction ReductionMode) (*LossBackwardNode, error) {
	if !slices.Contains(parameterlessLossBackwardOps, op) {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s is not a supported loss backward op", op)
	}
	if err := checkReduction(op, reduction); err != nil {
		return nil, err
	}
	base, err := ir.NewBase(s, op, []ir.Output{gradOutput, input, target}, 1, reduction.Hash())
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.LossBackward(op.String(), operands[0], operands[1], operands[2], reduction.Reduced())
	})
	if err != nil {
		return nil, err
	}
	return &LossBackwardNode{Base: base, reduction: reduction}, nil
}

// MSELossBackward is the gradient of the mean squared error loss.
func MSELossBackward(s *ir.Session, gradOutput, input, target ir.Output, reduction ReductionMode) (*LossBackwardNode, error) {
	return LossBackward(s, OpMSELossBackward, gradOutput, input, target, reduction)
}

// L1LossBackward is the gradient of the L1 (absolute error) loss.
func L1LossBackward(s *ir.Session, gradOutput, input, target ir.Output, reduction ReductionMode) (*LossBackwardNode, error) {
	return LossBackward(s, OpL1LossBackward, gradOutput, input, target, reduction)
}

// SoftMarginLossBackward is the gradient of the soft margin loss.
func SoftMarginLossBackward(s *ir.Session, gradOutput, input, target ir.Output, reduction ReductionMode) (*LossBackwardNode, error) {
	return LossBackward(s, OpSoftMarginLossBackward, gradOutput, input, target, reduction)
}

// Reduction mode of the loss.
func (n *LossBackwardNode) Reduction() ReductionMode { return n.reduction }

// Clone implements ir.Node.
func (n *LossBackwardNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 3); err != nil {
		return nil, err
	}
	return LossBackward(n.Session(), n.Op(), operands[0], operands[1], operands[2], n.reduction)
}

// String implements ir.Node.
func (n *LossBackwardNode) String() string {
	return fmt.Sprintf("%s, reduction=%s", n.Base.String(), n.reduction)
}

// SmoothL1LossBackwardNode is the gradient of the smooth L1 loss, which is quadratic for errors below beta.
type SmoothL1LossBackwardNode struct {
	*ir.Base
	reduction ReductionMode
	beta      float64
}

var _ ir.ShapedNode = (*SmoothL1LossBackwardNode)(nil)

// SmoothL1LossBackward creates the gradient node. beta must be finite and >= 0.
func SmoothL1LossBackward(s *ir.Session, gradOutput, input, target ir.Output, reduction ReductionMode, beta float64) (*SmoothL1LossBackwardNode, error) {
	op := OpSmoothL1LossBackward
	if err := checkReduction(op, reduction); err != nil {
		return nil, err
	}
	if math.IsNaN(beta) || math.IsInf(beta, 0) || beta < 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s does not support negative or non-finite values for beta, got %g", op, beta)
	}
	base, err := ir.NewBase(s, op, []ir.Output{gradOutput, input, target}, 1,
		hashing.Combine(reduction.Hash(), hashing.Float64(beta)))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.LossBackward(op.String(), operands[0], operands[1], operands[2], reduction.Reduced())
	})
	if err != nil {
		return nil, err
	}
	return &SmoothL1LossBackwardNode{Base: base, reduction: reduction, beta: beta}, nil
}

// Reduction mode of the loss.
func (n *SmoothL1LossBackwardNode) Reduction() ReductionMode { return n.reduction }

// Beta is the threshold below which the loss is quadratic.
func (n *SmoothL1LossBackwardNode) Beta() float64 { return n.beta }

// Clone implements ir.Node.
func (n *SmoothL1LossBackwardNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 3); err != nil {
		return nil, err
	}
	return SmoothL1LossBackward(n.Session(), operands[0], operands[1], operands[2], n.reduction, n.beta)
}

// String implements ir.Node.
func (n *SmoothL1LossBackwardNode) String() string {
	return fmt.Sprintf("%s, reduction=%s, beta=%g", n.Base.String(), n.reduction, n.beta)
}

// HuberLossBackwardNode is the gradient of the Huber loss, which is quadratic for errors below delta.
type HuberLossBackwardNode struct {
	*ir.Base
	reduction ReductionMode
	delta     float64
}

var _ ir.ShapedNode = (*HuberLossBackwardNode)(nil)

// HuberLossBackward creates the gradient node. delta must be finite and > 0.
func HuberLossBackward(s *ir.Session, gradOutput, input, target ir.Output, reduction ReductionMode, delta float64) (*HuberLossBackwardNode, error) {
	op := OpHuberLossBackward
	if err := checkReduction(op, reduction); err != nil {
		return nil, err
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta <= 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s does not support non-positive or non-finite values for delta, got %g", op, delta)
	}
	base, err := ir.NewBase(s, op, []ir.Output{gradOutput, input, target}, 1,
		hashing.Combine(reduction.Hash(), hashing.Float64(delta)))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.LossBackward(op.String(), operands[0], operands[1], operands[2], reduction.Reduced())
	})
	if err != nil {
		return nil, err
	}
	return &HuberLossBackwardNode{Base: base, reduction: reduction, delta: delta}, nil
}

// Reduction mode of the loss.
func (n *HuberLossBackwardNode) Reduction() ReductionMode { return n.reduction }

// Delta is the threshold below which the loss is quadratic.
func (n *HuberLossBackwardNode) Delta() float64 { return n.delta }

// Clone implements ir.Node.
func (n *HuberLossBackwardNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 3); err != nil {
		return nil, err
	}
	return HuberLossBackward(n.Session(), operands[0], operands[1], operands[2], n.reduction, n.delta)
}

// String implements ir.Node.
func (n *HuberLossBackwardNode) String() string {
	return fmt.Sprintf("%s, reduction=%s, delta=%g", n.Base.String(), n.reduction, n.delta)
}

// MarginRankingLossNode is max(0, -target * (input1 - input2) + margin).
type MarginRankingLossNode struct {
	*ir.Base
	reduction ReductionMode
	margin    float64
}

var _ ir.ShapedNode = (*MarginRankingLossNode)(nil)

// MarginRankingLoss creates the loss node. margin must be finite.
func MarginRankingLoss(s *ir.Session, input1, input2, target ir.Output, reduction ReductionMode, margin float64) (*MarginRankingLossNode, error) {
	op := OpMarginRankingLoss
	if err := checkReduction(op, reduction); err != nil {
		return nil, err
	}
	if math.IsNaN(margin) || math.IsInf(margin, 0) {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s requires a finite margin, got %g", op, margin)
	}
	base, err := ir.NewBase(s, op, []ir.Output{input1, input2, target}, 1,
		hashing.Combine(reduction.Hash(), hashing.Float64(margin)))
	if err != nil {
		return nil, err
	}
	err = setShape(base, func(operands []shapes.Shape) (shapes.Shape, error) {
		return shapeinference.MarginRankingLoss(operands[0], operands[1], operands[2], reduction.Reduced())
	})
	if err != nil {
		return nil, err
	}
	return &MarginRankingLossNode{Base: base, reduction: reduction, margin: margin}, nil
}

// Reduction mode of the loss.
func (n *MarginRankingLossNode) Reduction() ReductionMode { return n.reduction }

// Margin of the loss.
func (n *MarginRankingLossNode) Margin() float64 { return n.margin }

// Clone implements ir.Node.
func (n *MarginRankingLossNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 3); err != nil {
		return nil, err
	}
	return MarginRankingLoss(n.Session(), operands[0], operands[1], operands[2], n.reduction, n.margin)
}

// String implements ir.Node.
func (n *MarginRankingLossNode) String() string {
	return fmt.Sprintf("%s, reduction=%s, margin=%g", n.Base.String(), n.reduction, n.margin)
}
