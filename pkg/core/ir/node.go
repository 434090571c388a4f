// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir defines the lazy computation-graph intermediate representation: immutable nodes
// forming a DAG that records a trace of operations.
//
// Every node carries two hashes, computed once at construction:
//
//   - The node hash depends only on the operation (OpKind) and its scalar parameters, not on
//     its operands.
//   - The DAG hash (Node.Hash) folds the node hash with the hashes of all its operands, in order.
//     It identifies the structure of the whole sub-graph, and is the key used for caching and
//     deduplication.
//
// The shape of a node can be set eagerly, or deferred: SetShapeDeferred looks up the DAG hash in
// the shape cache of the Session, and only calls the (possibly expensive) shape function on a miss.
// So structurally identical sub-graphs pay for shape inference only once.
//
// Concrete operations (see package ops) embed *Base, add their own immutable parameters, and
// implement Clone and String.
package ir

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// ShapeFn returns the shape of a node. It is treated as an opaque, possibly expensive, synchronous call.
type ShapeFn func() (shapes.Shape, error)

// Node is a vertex of the computation DAG.
//
// Nodes are immutable after construction (except for the one-time setting of a deferred shape),
// and safe to read concurrently.
type Node interface {
	// Op performed by the node.
	Op() OpKind

	// Operands returns a copy of the ordered list of inputs of the node.
	Operands() []Output

	// Operand returns the i-th operand. It panics if i is out of range, like a slice index.
	Operand(i int) Output

	// NumOutputs is the number of results produced by the node, always >= 1.
	NumOutputs() int

	// NodeHash depends only on the op and the scalar parameters of the node.
	NodeHash() hashing.Hash

	// Hash is the DAG hash of the node: the structural identity of the sub-graph rooted at it.
	Hash() hashing.Hash

	// Metadata holds scope and source location of the creation of the node.
	Metadata() Metadata

	// String returns a short description for debugging.
	String() string

	// Clone creates a node of the same concrete type and parameters, with the given operands.
	// The node hash is preserved, and the DAG hash is computed from the new operands.
	Clone(operands []Output) (Node, error)
}

// ShapedNode is a Node that holds its output shape, possibly computed lazily.
type ShapedNode interface {
	Node

	// Shape returns the shape of the node, a tuple if the node has more than one output.
	Shape() (shapes.Shape, error)

	// ShapeAt returns the shape of one output of the node.
	ShapeAt(index int) (shapes.Shape, error)

	// SetShapeDeferred sets the shape of the node using the shape cache, see Base.SetShapeDeferred.
	SetShapeDeferred(fn ShapeFn) error
}

// Base implements everything of ShapedNode except Clone, and it is meant to be embedded (as a pointer)
// by concrete node types.
type Base struct {
	session    *Session
	op         OpKind
	operands   []Output
	numOutputs int
	nodeHash   hashing.Hash
	dagHash    hashing.Hash
	metadata   Metadata

	// shape is set at most once.
	shape atomic.Pointer[shapes.Shape]
}

// OperandHashes folds the hashes of the operands, in order, into seed.
func OperandHashes(operands []Output, seed hashing.Hash) hashing.Hash {
	h := seed
	for _, operand := range operands {
		h = hashing.Combine(h, operand.Hash())
	}
	return h
}

// NewBase creates the base of a node with the given operands, and a shape to be set later (eagerly
// with SetShape or lazily with SetShapeDeferred).
//
// seed is the hash of the scalar parameters of the concrete operation (0 if there are none).
func NewBase(s *Session, op OpKind, operands []Output, numOutputs int, seed hashing.Hash) (*Base, error) {
	if s == nil {
		return nil, invalidArgumentf("nil session creating %s", op)
	}
	if numOutputs <= 0 {
		return nil, invalidArgumentf("%s must have at least one output, got num_outputs=%d", op, numOutputs)
	}
	for ii, operand := range operands {
		if err := operand.Validate(); err != nil {
			return nil, errors.WithMessagef(err, "operand #%d of %s", ii, op)
		}
	}
	nodeHash := hashing.Combine(op.Hash(), seed)
	return &Base{
		session:    s,
		op:         op,
		operands:   slices.Clone(operands),
		numOutputs: numOutputs,
		nodeHash:   nodeHash,
		dagHash:    hashing.Combine(nodeHash, OperandHashes(operands, nodeHash)),
		metadata:   s.newMetadata(),
	}, nil
}

// NewBaseWithShape is like NewBase, with the shape set eagerly.
func NewBaseWithShape(s *Session, op OpKind, operands []Output, shape shapes.Shape, numOutputs int, seed hashing.Hash) (*Base, error) {
	b, err := NewBase(s, op, operands, numOutputs, seed)
	if err != nil {
		return nil, err
	}
	if err = b.SetShape(shape); err != nil {
		return nil, err
	}
	return b, nil
}

// NewLeafBase creates the base of a node without operands, like parameters and constants.
//
// The node hash is computed from the op, the shape and the seed, so two leaves with identical
// content have the same hash, even if created independently. The DAG hash is the node hash.
func NewLeafBase(s *Session, op OpKind, shape shapes.Shape, numOutputs int, seed hashing.Hash) (*Base, error) {
	if s == nil {
		return nil, invalidArgumentf("nil session creating %s", op)
	}
	if numOutputs <= 0 {
		return nil, invalidArgumentf("%s must have at least one output, got num_outputs=%d", op, numOutputs)
	}
	nodeHash := hashing.CombineAll(op.Hash(), hashing.String(shape.String()), seed)
	b := &Base{
		session:    s,
		op:         op,
		numOutputs: numOutputs,
		nodeHash:   nodeHash,
		dagHash:    nodeHash,
		metadata:   s.newMetadata(),
	}
	if err := b.SetShape(shape); err != nil {
		return nil, err
	}
	return b, nil
}

// Session in which the node was created.
func (b *Base) Session() *Session { return b.session }

// Op performed by the node.
func (b *Base) Op() OpKind { return b.op }

// Operands returns a copy of the inputs of the node.
func (b *Base) Operands() []Output { return slices.Clone(b.operands) }

// Operand returns the i-th operand.
func (b *Base) Operand(i int) Output { return b.operands[i] }

// NumOperands returns the number of operands.
func (b *Base) NumOperands() int { return len(b.operands) }

// NumOutputs is the number of results of the node.
func (b *Base) NumOutputs() int { return b.numOutputs }

// NodeHash depends only on the op and scalar parameters of the node.
func (b *Base) NodeHash() hashing.Hash { return b.nodeHash }

// Hash is the DAG hash of the node.
func (b *Base) Hash() hashing.Hash { return b.dagHash }

// Metadata of the creation of the node.
func (b *Base) Metadata() Metadata { return b.metadata }

// HasShape returns whether the shape has been set.
func (b *Base) HasShape() bool { return b.shape.Load() != nil }

// Shape returns the shape of the node. It fails with ErrInvalidArgument if it hasn't been set yet.
func (b *Base) Shape() (shapes.Shape, error) {
	shape := b.shape.Load()
	if shape == nil {
		return shapes.Shape{}, invalidArgumentf("shape of %s not set", b.op)
	}
	return shape.Clone(), nil
}

// ShapeAt returns the shape of the output index.
//
// If the node shape is a tuple, it returns its element index, or fails with ErrIndexOutOfRange.
// Otherwise, index must be 0, or it fails with ErrInvalidArgument.
func (b *Base) ShapeAt(index int) (shapes.Shape, error) {
	shape := b.shape.Load()
	if shape == nil {
		return shapes.Shape{}, invalidArgumentf("shape of %s not set", b.op)
	}
	if shape.IsTuple() {
		if index < 0 || index >= shape.TupleSize() {
			return shapes.Shape{}, errors.Wrapf(ErrIndexOutOfRange, "output #%d of %s with shape %s", index, b.op, shape)
		}
		return shape.TupleShapes[index].Clone(), nil
	}
	if index != 0 {
		return shapes.Shape{}, invalidArgumentf("output #%d of %s: node has a single output with shape %s", index, b.op, shape)
	}
	return shape.Clone(), nil
}

// checkShape validates shape against the number of outputs of the node.
func (b *Base) checkShape(shape shapes.Shape) error {
	if !shape.Ok() {
		return invalidArgumentf("invalid shape %s for %s", shape, b.op)
	}
	if b.numOutputs > 1 && !shape.IsTuple() {
		return invalidArgumentf("%s has %d outputs, it requires a tuple shape of that size, got %s", b.op, b.numOutputs, shape)
	}
	if shape.IsTuple() && shape.TupleSize() != b.numOutputs {
		return invalidArgumentf("%s has %d outputs, got a tuple shape of size %d: %s", b.op, b.numOutputs, shape.TupleSize(), shape)
	}
	return nil
}

// SetShape sets the shape eagerly. The shape can only be set once: setting it again with an equal
// shape is a no-op, with a different shape it fails with ErrInvalidArgument.
func (b *Base) SetShape(shape shapes.Shape) error {
	if err := b.checkShape(shape); err != nil {
		return err
	}
	shape = shape.Clone()
	if b.shape.CompareAndSwap(nil, &shape) {
		return nil
	}
	if current := b.shape.Load(); !current.Equal(shape) {
		return invalidArgumentf("shape of %s already set to %s, cannot change it to %s", b.op, current, shape)
	}
	return nil
}

// SetShapeDeferred sets the shape of the node from the session shape cache, keyed by the node Hash.
//
// On a cache hit, fn is not called. On a miss, fn is called and its result is stored both in the node
// and in the cache. Concurrent misses for the same hash call fn only once.
//
// If fn returns an error or panics, it returns an *InferenceError (matching ErrInferenceFailure) and
// nothing is cached: a later call will try again.
//
// It is a no-op if the shape is already set.
func (b *Base) SetShapeDeferred(fn ShapeFn) error {
	if b.HasShape() {
		return nil
	}
	if fn == nil {
		return invalidArgumentf("nil shape function for %s", b.op)
	}
	shape, err := b.session.cache.GetOrCompute(b.dagHash, func() (shapes.Shape, error) {
		shape, err := callShapeFn(fn)
		if err != nil {
			return shapes.Shape{}, err
		}
		if err = b.checkShape(shape); err != nil {
			return shapes.Shape{}, err
		}
		return shape, nil
	})
	if err == nil {
		// A cached entry from a colliding hash could disagree with the number of outputs.
		err = b.checkShape(shape)
	}
	if err != nil {
		return &InferenceError{Op: b.op, Hash: b.dagHash, Err: err}
	}
	b.shape.CompareAndSwap(nil, &shape)
	return nil
}

// callShapeFn calls fn converting panics to errors.
func callShapeFn(fn ShapeFn) (shape shapes.Shape, err error) {
	exception := exceptions.Try(func() { shape, err = fn() })
	if exception == nil {
		return
	}
	if e, ok := exception.(error); ok {
		return shapes.Shape{}, errors.WithMessage(e, "shape function panicked")
	}
	return shapes.Shape{}, errors.Errorf("shape function panicked: %v", exception)
}

// String renders shape, op, number of outputs if more than one, scope and creation site if known.
// Concrete nodes append their parameters to it.
func (b *Base) String() string {
	var sb strings.Builder
	if shape := b.shape.Load(); shape != nil {
		sb.WriteString(shape.String())
	} else {
		sb.WriteString("(?)")
	}
	sb.WriteString(" ")
	sb.WriteString(b.op.String())
	if b.numOutputs > 1 {
		_, _ = fmt.Fprintf(&sb, ", num_outputs=%d", b.numOutputs)
	}
	if b.metadata.Scope != "" {
		_, _ = fmt.Fprintf(&sb, ", scope=%s", b.metadata.Scope)
	}
	sb.WriteString(b.metadata.shortFrameInfo())
	return sb.String()
}

// CheckNumOperands is a helper for Clone implementations: it fails with ErrInvalidArgument if
// operands doesn't have the expected length.
func CheckNumOperands(op OpKind, operands []Output, want ...int) error {
	if slices.Contains(want, len(operands)) {
		return nil
	}
	return invalidArgumentf("%s takes %v operands, got %d", op, want, len(operands))
}
