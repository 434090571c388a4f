// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// GenericShapeRule computes the shape of a Generic node from its operands.
type GenericShapeRule func(operands []Output) (shapes.Shape, error)

// Generic is a node for operations without a dedicated type: the parameters are summarized by a
// seed hash, and the shape by a GenericShapeRule.
type Generic struct {
	*Base
	seed hashing.Hash
	rule GenericShapeRule
}

var _ ShapedNode = (*Generic)(nil)

// NewGeneric creates a Generic node. If rule is not nil, the shape is set with SetShapeDeferred, so
// it is only evaluated if the session cache doesn't have it yet.
func NewGeneric(s *Session, op OpKind, operands []Output, numOutputs int, seed hashing.Hash, rule GenericShapeRule) (*Generic, error) {
	base, err := NewBase(s, op, operands, numOutputs, seed)
	if err != nil {
		return nil, err
	}
	g := &Generic{Base: base, seed: seed, rule: rule}
	if rule != nil {
		err = g.SetShapeDeferred(func() (shapes.Shape, error) { return rule(g.Operands()) })
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Seed used in the node hash.
func (g *Generic) Seed() hashing.Hash { return g.seed }

// Clone implements Node. The shape rule is re-evaluated on the new operands (unless cached).
func (g *Generic) Clone(operands []Output) (Node, error) {
	clone, err := NewGeneric(g.session, g.op, operands, g.numOutputs, g.seed, g.rule)
	if err != nil {
		return nil, errors.WithMessagef(err, "cloning %s", g.op)
	}
	return clone, nil
}
