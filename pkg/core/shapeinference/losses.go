// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Loss returns the shape of a point-wise loss between input and target: a scalar if the loss is
// reduced (mean or sum), otherwise the input shape.
func Loss(op string, input, target shapes.Shape, reduced bool) (shapes.Shape, error) {
	if err := checkInputTarget(op, input, target); err != nil {
		return shapes.Shape{}, err
	}
	if reduced {
		return shapes.Make(input.DType), nil
	}
	return input.Clone(), nil
}

// LossBackward returns the shape of the gradient of a point-wise loss with respect to its input:
// the input shape.
//
// gradOutput must be a scalar if the loss was reduced, otherwise it must have the shape of input.
func LossBackward(op string, gradOutput, input, target shapes.Shape, reduced bool) (shapes.Shape, error) {
	if err := checkInputTarget(op, input, target); err != nil {
		return shapes.Shape{}, err
	}
	if err := checkFloat(op, "grad_output", gradOutput); err != nil {
		return shapes.Shape{}, err
	}
	if gradOutput.DType != input.DType {
		return shapes.Shape{}, errors.Errorf("%s: grad_output %s and input %s must have the same dtype", op, gradOutput, input)
	}
	if reduced {
		if err := gradOutput.CheckDims(); err != nil {
			return shapes.Shape{}, errors.WithMessagef(err, "%s: grad_output must be a scalar for a reduced loss", op)
		}
	} else if err := gradOutput.CheckDims(input.Dimensions...); err != nil {
		return shapes.Shape{}, errors.WithMessagef(err, "%s: grad_output must have the shape of input %s for an unreduced loss", op, input)
	}
	return input.Clone(), nil
}

// BinaryCrossEntropyBackward is LossBackward with an optional weight, which must be broadcastable to the input.
func BinaryCrossEntropyBackward(gradOutput, input, target shapes.Shape, weight *shapes.Shape, reduced bool) (shapes.Shape, error) {
	const op = "BinaryCrossEntropyBackward"
	output, err := LossBackward(op, gradOutput, input, target, reduced)
	if err != nil {
		return shapes.Shape{}, err
	}
	if err = checkWeight(op, input, weight); err != nil {
		return shapes.Shape{}, err
	}
	return output, nil
}

// BinaryCrossEntropy is Loss with an optional weight, which must be broadcastable to the input.
func BinaryCrossEntropy(input, target shapes.Shape, weight *shapes.Shape, reduced bool) (shapes.Shape, error) {
	const op = "BinaryCrossEntropy"
	output, err := Loss(op, input, target, reduced)
	if err != nil {
		return shapes.Shape{}, err
	}
	if err = checkWeight(op, input, weight); err != nil {
		return shapes.Shape{}, err
	}
	return output, nil
}

// MarginRankingLoss returns the shape of the margin ranking loss of input1 and input2 given target.
// The three shapes are broadcast together; the result is a scalar if reduced.
func MarginRankingLoss(input1, input2, target shapes.Shape, reduced bool) (shapes.Shape, error) {
	const op = "MarginRankingLoss"
	if err := checkFloat(op, "input1", input1); err != nil {
		return shapes.Shape{}, err
	}
	broadcast, err := Binary(op, input1, input2)
	if err != nil {
		return shapes.Shape{}, err
	}
	broadcast, err = Binary(op, broadcast, target)
	if err != nil {
		return shapes.Shape{}, err
	}
	if reduced {
		return shapes.Make(broadcast.DType), nil
	}
	return broadcast, nil
}

func checkInputTarget(op string, input, target shapes.Shape) error {
	if err := checkFloat(op, "input", input); err != nil {
		return err
	}
	if err := checkLeaf(op, "target", target); err != nil {
		return err
	}
	if err := target.Check(input.DType, input.Dimensions...); err != nil {
		return errors.WithMessagef(err, "%s: target must have the dtype and dimensions of input %s", op, input)
	}
	return nil
}

func checkWeight(op string, input shapes.Shape, weight *shapes.Shape) error {
	if weight == nil {
		return nil
	}
	broadcast, err := Binary(op, input, *weight)
	if err != nil {
		return errors.WithMessagef(err, "%s: weight %s must be broadcastable to input %s", op, *weight, input)
	}
	if err := broadcast.CheckDims(input.Dimensions...); err != nil {
		return errors.WithMessagef(err, "%s: weight %s must be broadcastable to input %s without changing its shape", op, *weight, input)
	}
	return nil
}
