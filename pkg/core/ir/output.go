// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/shapes"
)

// Output is an edge of the DAG: one result (selected by Index) of a Node.
//
// It is the type of the operands of a node.
type Output struct {
	Node  Node
	Index int
}

// NewOutput returns the output index of node. It fails with ErrInvalidArgument if node is nil or the
// index is not in [0, node.NumOutputs()).
func NewOutput(node Node, index int) (Output, error) {
	o := Output{Node: node, Index: index}
	if err := o.Validate(); err != nil {
		return Output{}, err
	}
	return o, nil
}

// MustNewOutput is like NewOutput, but panics on error.
func MustNewOutput(node Node, index int) Output {
	o, err := NewOutput(node, index)
	if err != nil {
		exceptions.Panicf("MustNewOutput: %+v", err)
	}
	return o
}

// AllOutputs returns all the outputs of node, in order.
func AllOutputs(node Node) []Output {
	outputs := make([]Output, node.NumOutputs())
	for ii := range outputs {
		outputs[ii] = Output{Node: node, Index: ii}
	}
	return outputs
}

// Validate returns ErrInvalidArgument if the output has no node, or its index is out of range.
func (o Output) Validate() error {
	if o.Node == nil {
		return invalidArgumentf("output with nil node")
	}
	if o.Index < 0 || o.Index >= o.Node.NumOutputs() {
		return invalidArgumentf("output index %d out of range for %s with %d outputs", o.Index, o.Node.Op(), o.Node.NumOutputs())
	}
	return nil
}

// IsValid returns whether Validate succeeds.
func (o Output) IsValid() bool { return o.Validate() == nil }

// Hash of the output: the DAG hash of its node combined with the index, so different outputs of the
// same node have different hashes.
func (o Output) Hash() hashing.Hash {
	return hashing.Combine(o.Node.Hash(), hashing.Int(o.Index))
}

// Shape of the output. It fails with ErrTypeMismatch if the node is not a ShapedNode.
func (o Output) Shape() (shapes.Shape, error) {
	return ShapeOfOutput(o)
}

// String implements fmt.Stringer.
func (o Output) String() string {
	if o.Node == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%d", o.Node.Op(), o.Index)
}
