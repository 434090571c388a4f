// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// As returns node as the concrete type (or interface) T, or ErrTypeMismatch.
func As[T Node](node Node) (T, error) {
	t, ok := node.(T)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrTypeMismatch, "node %s is a %T, not a %T", opOf(node), node, zero)
	}
	return t, nil
}

// ShapeOf returns the shape of node, or ErrTypeMismatch if it doesn't carry a shape.
func ShapeOf(node Node) (shapes.Shape, error) {
	shaped, ok := node.(ShapedNode)
	if !ok {
		return shapes.Shape{}, errors.Wrapf(ErrTypeMismatch, "node %s (%T) doesn't carry a shape", opOf(node), node)
	}
	return shaped.Shape()
}

// ShapeOfOutput returns the shape of one output, or ErrTypeMismatch if its node doesn't carry a shape.
func ShapeOfOutput(o Output) (shapes.Shape, error) {
	if err := o.Validate(); err != nil {
		return shapes.Shape{}, err
	}
	shaped, ok := o.Node.(ShapedNode)
	if !ok {
		return shapes.Shape{}, errors.Wrapf(ErrTypeMismatch, "node %s (%T) doesn't carry a shape", o.Node.Op(), o.Node)
	}
	return shaped.ShapeAt(o.Index)
}

// ShapesOf returns the shapes of the given outputs.
func ShapesOf(outputs []Output) ([]shapes.Shape, error) {
	result := make([]shapes.Shape, len(outputs))
	for ii, o := range outputs {
		var err error
		result[ii], err = ShapeOfOutput(o)
		if err != nil {
			return nil, errors.WithMessagef(err, "operand #%d", ii)
		}
	}
	return result, nil
}

// SetShapeDeferred calls node.SetShapeDeferred, or returns ErrTypeMismatch if node doesn't carry a shape.
func SetShapeDeferred(node Node, fn ShapeFn) error {
	shaped, ok := node.(ShapedNode)
	if !ok {
		return errors.Wrapf(ErrTypeMismatch, "node %s (%T) doesn't carry a shape", opOf(node), node)
	}
	return shaped.SetShapeDeferred(fn)
}

func opOf(node Node) string {
	if node == nil {
		return "<nil>"
	}
	return node.Op().String()
}
