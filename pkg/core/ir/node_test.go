// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/shapecache"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	opLeaf  = NewOpKind("test", "leaf")
	opAdd   = NewOpKind("test", "add")
	opSub   = NewOpKind("test", "sub")
	opSplit = NewOpKind("test", "split3")
)

// testNode is a minimal concrete node.
type testNode struct {
	*Base
}

func (n *testNode) Clone(operands []Output) (Node, error) {
	base, err := NewBase(n.Session(), n.Op(), operands, n.NumOutputs(), 0)
	if err != nil {
		return nil, err
	}
	return &testNode{base}, nil
}

// foreignNode implements Node but doesn't carry a shape.
type foreignNode struct{}

func (foreignNode) Op() OpKind { return NewOpKind("foreign", "node") }
func (foreignNode) Operands() []Output { return nil }
func (foreignNode) Operand(i int) Output { panic("no operands") }
func (foreignNode) NumOutputs() int { return 1 }
func (foreignNode) NodeHash() hashing.Hash { return hashing.String("foreign") }
func (foreignNode) Hash() hashing.Hash { return hashing.String("foreign") }
func (foreignNode) Metadata() Metadata { return Metadata{} }
func (foreignNode) String() string { return "foreign" }
func (n foreignNode) Clone([]Output) (Node, error) { return n, nil }

func newTestSession(t *testing.T) *Session {
	cache, err := shapecache.New(100)
	require.NoError(t, err)
	return NewSession(t.Name(), WithCache(cache))
}

func leaf(t *testing.T, s *Session, shape shapes.Shape) *testNode {
	base, err := NewLeafBase(s, opLeaf, shape, 1, 0)
	require.NoError(t, err)
	return &testNode{base}
}

func node(t *testing.T, s *Session, op OpKind, operands ...Output) *testNode {
	base, err := NewBase(s, op, operands, 1, 0)
	require.NoError(t, err)
	return &testNode{base}
}

func out(n Node) Output { return Output{Node: n} }

func TestHashes(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 4, 4))
	b := leaf(t, s, shapes.Make(dtypes.Float32, 4, 4))
	c := leaf(t, s, shapes.Make(dtypes.Float32, 4, 5))
	require.Equal(t, a.Hash(), b.Hash(), "identical leaves must have the same hash")
	require.NotEqual(t, a.Hash(), c.Hash())
	require.Equal(t, a.NodeHash(), a.Hash())

	// Equal construction gives equal hashes.
	add1 := node(t, s, opAdd, out(a), out(c))
	add2 := node(t, s, opAdd, out(b), out(c))
	require.Equal(t, add1.Hash(), add2.Hash())
	require.Equal(t, add1.NodeHash(), add2.NodeHash())

	// Order sensitive.
	add3 := node(t, s, opAdd, out(c), out(a))
	require.NotEqual(t, add1.Hash(), add3.Hash())
	require.Equal(t, add1.NodeHash(), add3.NodeHash())

	// Different op.
	sub := node(t, s, opSub, out(a), out(c))
	require.NotEqual(t, add1.Hash(), sub.Hash())

	// Seed.
	base, err := NewBase(s, opAdd, []Output{out(a), out(c)}, 1, hashing.Int(7))
	require.NoError(t, err)
	require.NotEqual(t, add1.NodeHash(), base.NodeHash())
	require.NotEqual(t, add1.Hash(), base.Hash())

	// Hashes are independent of the session.
	s2 := newTestSession(t).WithScope("other")
	a2 := leaf(t, s2, shapes.Make(dtypes.Float32, 4, 4))
	require.Equal(t, a.Hash(), a2.Hash())

	// DAG hash formula.
	want := hashing.Combine(add1.NodeHash(), hashing.CombineAll(add1.NodeHash(), out(a).Hash(), out(c).Hash()))
	require.Equal(t, want, add1.Hash())
	require.Equal(t, hashing.Combine(opAdd.Hash(), 0), add1.NodeHash())
}

func TestNewBaseErrors(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 2))

	_, err := NewBase(nil, opAdd, nil, 1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewBase(s, opAdd, nil, 0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewBase(s, opAdd, []Output{{}}, 1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewBase(s, opAdd, []Output{{Node: a, Index: 1}}, 1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewLeafBase(s, opLeaf, shapes.Make(dtypes.Float32), -1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Multi-output node with a non-tuple shape.
	_, err = NewBaseWithShape(s, opSplit, []Output{out(a)}, shapes.Make(dtypes.Float32, 2), 3, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Single output node with a tuple shape of a different size.
	pair := shapes.MakeTuple([]shapes.Shape{shapes.Make(dtypes.Float32, 1), shapes.Make(dtypes.Int64, 1)})
	_, err = NewBaseWithShape(s, opAdd, []Output{out(a)}, pair, 1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	single, err := NewBase(s, opAdd, []Output{out(a)}, 1, 0)
	require.NoError(t, err)
	require.ErrorIs(t, single.SetShape(pair), ErrInvalidArgument)
	require.False(t, single.HasShape())

	// A tuple of size 1 is fine for a single output node, and only index 0 is valid.
	one := shapes.MakeTuple([]shapes.Shape{shapes.Make(dtypes.Float32, 2)})
	oneTuple, err := NewBaseWithShape(s, opAdd, []Output{out(a)}, one, 1, 0)
	require.NoError(t, err)
	_, err = oneTuple.ShapeAt(0)
	require.NoError(t, err)
	_, err = oneTuple.ShapeAt(1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestOutput(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 2))
	_, err := NewOutput(a, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewOutput(nil, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Panics(t, func() { MustNewOutput(a, -1) })

	o := MustNewOutput(a, 0)
	require.True(t, o.IsValid())
	require.Equal(t, "test::leaf:0", o.String())
	shape, err := o.Shape()
	require.NoError(t, err)
	require.True(t, shapes.Make(dtypes.Float32, 2).Equal(shape))

	split, err := NewBase(s, opSplit, []Output{o}, 3, 0)
	require.NoError(t, err)
	outputs := AllOutputs(&testNode{split})
	require.Len(t, outputs, 3)
	seen := make(map[hashing.Hash]bool)
	for _, output := range outputs {
		seen[output.Hash()] = true
	}
	require.Len(t, seen, 3, "outputs of the same node must have different hashes")
}

func TestShapeAccess(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 3))
	n := node(t, s, opAdd, out(a), out(a))
	_, err := n.Shape()
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.False(t, n.HasShape())
	require.True(t, strings.HasPrefix(n.String(), "(?) test::add"), n.String())

	require.NoError(t, n.SetShape(shapes.Make(dtypes.Float32, 3)))
	require.NoError(t, n.SetShape(shapes.Make(dtypes.Float32, 3)), "setting an equal shape is a no-op")
	require.ErrorIs(t, n.SetShape(shapes.Make(dtypes.Int32, 3)), ErrInvalidArgument)

	shape, err := n.ShapeAt(0)
	require.NoError(t, err)
	require.True(t, shapes.Make(dtypes.Float32, 3).Equal(shape))
	_, err = n.ShapeAt(1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, "(Float32)[3] test::add", n.String())

	// Tuple shapes.
	tuple := shapes.MakeTuple([]shapes.Shape{
		shapes.Make(dtypes.Float32, 1), shapes.Make(dtypes.Float32, 1), shapes.Make(dtypes.Float32, 2)})
	base, err := NewBaseWithShape(s, opSplit, []Output{out(a)}, tuple, 3, 0)
	require.NoError(t, err)
	shape, err = base.ShapeAt(2)
	require.NoError(t, err)
	require.True(t, shapes.Make(dtypes.Float32, 2).Equal(shape))
	_, err = base.ShapeAt(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = base.ShapeAt(-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.Contains(t, base.String(), "num_outputs=3")
}

func TestSetShapeDeferred(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 4, 4))
	b := node(t, s, opAdd, out(a), out(a))

	var calls atomic.Int32
	fn := func() (shapes.Shape, error) {
		calls.Add(1)
		return shapes.Make(dtypes.Float32, 4, 4), nil
	}
	require.NoError(t, b.SetShapeDeferred(fn))
	require.NoError(t, b.SetShapeDeferred(fn))
	require.Equal(t, int32(1), calls.Load())
	shape := must.M1(b.Shape())
	require.True(t, shapes.Make(dtypes.Float32, 4, 4).Equal(shape))
	require.True(t, s.Cache().Contains(b.Hash()))

	// A structurally identical node reuses the cached shape, without calling fn.
	b2 := node(t, s, opAdd, out(leaf(t, s, shapes.Make(dtypes.Float32, 4, 4))), out(a))
	require.Equal(t, b.Hash(), b2.Hash())
	require.NoError(t, b2.SetShapeDeferred(fn))
	require.Equal(t, int32(1), calls.Load())
	require.True(t, shape.Equal(must.M1(b2.Shape())))

	// The same node built in another scope also reuses it.
	b3 := node(t, s.WithScope("layer"), opAdd, out(a), out(a))
	require.NoError(t, SetShapeDeferred(b3, fn))
	require.Equal(t, int32(1), calls.Load())

	require.ErrorIs(t, node(t, s, opSub, out(a)).SetShapeDeferred(nil), ErrInvalidArgument)
}

func TestSetShapeDeferredFailure(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 2))
	b := node(t, s, opAdd, out(a), out(a))

	errShape := errors.New("incompatible operands")
	err := b.SetShapeDeferred(func() (shapes.Shape, error) { return shapes.Shape{}, errShape })
	require.ErrorIs(t, err, ErrInferenceFailure)
	require.ErrorIs(t, err, errShape)
	var inferenceErr *InferenceError
	require.True(t, errors.As(err, &inferenceErr))
	require.Equal(t, opAdd, inferenceErr.Op)
	require.Equal(t, b.Hash(), inferenceErr.Hash)
	require.False(t, b.HasShape())
	require.False(t, s.Cache().Contains(b.Hash()), "failures must not be cached")

	// Panics are converted to errors.
	err = b.SetShapeDeferred(func() (shapes.Shape, error) { panic("boom") })
	require.ErrorIs(t, err, ErrInferenceFailure)
	require.Contains(t, err.Error(), "boom")

	// Wrong arity.
	split, err := NewBase(s, opSplit, []Output{out(a)}, 3, 0)
	require.NoError(t, err)
	err = split.SetShapeDeferred(func() (shapes.Shape, error) { return shapes.Make(dtypes.Float32, 2), nil })
	require.ErrorIs(t, err, ErrInferenceFailure)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Tuple shape on a single output node.
	pair := shapes.MakeTuple([]shapes.Shape{shapes.Make(dtypes.Float32, 1), shapes.Make(dtypes.Int64, 1)})
	sub := node(t, s, opSub, out(a), out(a))
	err = sub.SetShapeDeferred(func() (shapes.Shape, error) { return pair, nil })
	require.ErrorIs(t, err, ErrInferenceFailure)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.False(t, sub.HasShape())
	require.False(t, s.Cache().Contains(sub.Hash()))

	// A later successful call works: the cache wasn't poisoned.
	require.NoError(t, b.SetShapeDeferred(func() (shapes.Shape, error) { return shapes.Make(dtypes.Float32, 2), nil }))
	require.True(t, b.HasShape())
}

func TestClone(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 2))
	c := leaf(t, s, shapes.Make(dtypes.Float32, 3))
	n := node(t, s, opAdd, out(a), out(a))

	clone, err := n.Clone(n.Operands())
	require.NoError(t, err)
	require.Equal(t, n.Hash(), clone.Hash())
	require.Equal(t, n.NodeHash(), clone.NodeHash())

	clone, err = n.Clone([]Output{out(a), out(c)})
	require.NoError(t, err)
	require.NotEqual(t, n.Hash(), clone.Hash())
	require.Equal(t, n.NodeHash(), clone.NodeHash())
	require.Equal(t, c, clone.Operand(1).Node)
	require.Equal(t, node(t, s, opAdd, out(a), out(c)).Hash(), clone.Hash())
	require.Equal(t, n.NumOutputs(), clone.NumOutputs())

	// Operands returns a copy.
	operands := n.Operands()
	operands[0] = out(c)
	require.Equal(t, a, n.Operand(0).Node)
}

func TestCapabilities(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 2))
	var foreign Node = foreignNode{}

	_, err := ShapeOf(foreign)
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = ShapeOfOutput(out(foreign))
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = out(foreign).Shape()
	require.ErrorIs(t, err, ErrTypeMismatch)
	err = SetShapeDeferred(foreign, func() (shapes.Shape, error) { return shapes.Make(dtypes.Float32), nil })
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = As[*testNode](foreign)
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = As[*Generic](a)
	require.ErrorIs(t, err, ErrTypeMismatch)

	got, err := As[*testNode](a)
	require.NoError(t, err)
	require.Equal(t, a, got)
	shape, err := ShapeOf(a)
	require.NoError(t, err)
	require.True(t, shapes.Make(dtypes.Float32, 2).Equal(shape))

	// Operands may be foreign nodes: the hash only needs Hash().
	n := node(t, s, opAdd, out(a), out(foreign))
	_, err = ShapesOf(n.Operands())
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestGeneric(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32, 2, 3))
	c := leaf(t, s, shapes.Make(dtypes.Float32, 5, 3))
	var calls int
	firstDim := func(operands []Output) (shapes.Shape, error) {
		calls++
		shape, err := ShapeOfOutput(operands[0])
		if err != nil {
			return shapes.Shape{}, err
		}
		return shapes.Make(shape.DType, shape.Dimensions[0]), nil
	}
	opFirst := NewOpKind("test", "first_dim")
	g, err := NewGeneric(s, opFirst, []Output{out(a)}, 1, hashing.Int(1), firstDim)
	require.NoError(t, err)
	require.True(t, shapes.Make(dtypes.Float32, 2).Equal(must.M1(g.Shape())))
	require.Equal(t, 1, calls)

	clone, err := g.Clone([]Output{out(c)})
	require.NoError(t, err)
	require.Equal(t, g.NodeHash(), clone.NodeHash())
	require.True(t, shapes.Make(dtypes.Float32, 5).Equal(must.M1(ShapeOf(clone))))
	require.Equal(t, 2, calls)

	// Same structure: cache hit.
	_, err = g.Clone(g.Operands())
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	// Rule failure.
	_, err = NewGeneric(s, opFirst, []Output{out(foreignNode{})}, 1, 0, firstDim)
	require.ErrorIs(t, err, ErrInferenceFailure)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestConcurrentBuild(t *testing.T) {
	s := newTestSession(t)
	var calls atomic.Int32
	const numWorkers = 16
	hashes := make([]hashing.Hash, numWorkers)
	var g errgroup.Group
	for worker := range numWorkers {
		g.Go(func() error {
			ws := s.WithScope(fmt.Sprintf("worker_%d", worker))
			a, err := NewLeafBase(ws, opLeaf, shapes.Make(dtypes.Float32, 8), 1, 0)
			if err != nil {
				return err
			}
			n, err := NewBase(ws, opAdd, []Output{out(&testNode{a}), out(&testNode{a})}, 1, 0)
			if err != nil {
				return err
			}
			hashes[worker] = n.Hash()
			return n.SetShapeDeferred(func() (shapes.Shape, error) {
				calls.Add(1)
				return shapes.Make(dtypes.Float32, 8), nil
			})
		})
	}
	require.NoError(t, g.Wait())
	for _, h := range hashes {
		require.Equal(t, hashes[0], h)
	}
	// Singleflight + cache: the shape function runs once, unless a computation finished
	// between a miss and the next lookup, which the cache re-checks.
	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrentSetShapeDeferredSameNode(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Int32, 2))
	n := node(t, s, opAdd, out(a), out(a))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, n.SetShapeDeferred(func() (shapes.Shape, error) { return shapes.Make(dtypes.Int32, 2), nil }))
		}()
	}
	wg.Wait()
	require.True(t, shapes.Make(dtypes.Int32, 2).Equal(must.M1(n.Shape())))
}

func TestMetadata(t *testing.T) {
	s := newTestSession(t)
	a := leaf(t, s, shapes.Make(dtypes.Float32))
	require.Empty(t, a.Metadata().Frames)
	require.Empty(t, a.Metadata().Scope)

	traced := NewSession("traced", WithCache(s.Cache()), WithTraced(true)).WithScope("model").WithScope("dense")
	require.True(t, traced.Traced())
	require.Equal(t, "model/dense", traced.Scope())
	n := node(t, traced, opAdd, out(a), out(a))
	md := n.Metadata()
	require.Equal(t, "model/dense", md.Scope)
	require.NotEmpty(t, md.Frames)
	require.LessOrEqual(t, len(md.Frames), MaxFrames)
	require.Contains(t, md.Frames[0].Function, "ir.node")
	require.True(t, strings.HasSuffix(md.Frames[0].File, "node_test.go"))
	require.Contains(t, n.String(), "scope=model/dense")
	require.Contains(t, n.String(), "location=ir.node@node_test.go:")
}
