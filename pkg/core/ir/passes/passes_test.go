// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/ir/ops"
	"github.com/gomlx/lazyir/pkg/core/shapecache"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *ir.Session {
	return ir.NewSession(t.Name(), ir.WithCache(must.M1(shapecache.New(1000))))
}

func param(s *ir.Session, name string, dims ...int) ir.Output {
	return ir.Output{Node: must.M1(ops.Parameter(s, name, shapes.Make(dtypes.Float32, dims...)))}
}

func binary(s *ir.Session, op ir.OpKind, lhs, rhs ir.Output) ir.Output {
	return ir.Output{Node: must.M1(ops.Binary(s, op, lhs, rhs))}
}

func unary(s *ir.Session, op ir.OpKind, x ir.Output) ir.Output {
	return ir.Output{Node: must.M1(ops.Unary(s, op, x))}
}

func TestPostOrder(t *testing.T) {
	s := newTestSession(t)
	x := param(s, "x", 3)
	y := param(s, "y", 3)
	add := binary(s, ops.OpAdd, x, y)
	mul := binary(s, ops.OpMul, add, x)
	neg := unary(s, ops.OpNeg, mul)

	order := PostOrder([]ir.Output{neg, add, {}})
	require.Len(t, order, 5)
	position := func(n ir.Node) int { return slices.Index(order, n) }
	for _, node := range order {
		for _, operand := range node.Operands() {
			require.Less(t, position(operand.Node), position(node), "%s must come before %s", operand.Node, node)
		}
	}
	require.Equal(t, neg.Node, order[len(order)-1])
	require.Empty(t, PostOrder(nil))
}

func TestCSE(t *testing.T) {
	s := newTestSession(t)
	x1 := param(s, "x", 4)
	x2 := param(s, "x", 4) // Same parameter, different node.
	b1 := binary(s, ops.OpAdd, x1, x1)
	b2 := binary(s, ops.OpAdd, x2, x2)
	root := binary(s, ops.OpMul, b1, b2)
	other := binary(s, ops.OpSub, b2, x1)

	newRoots, stats, err := CSE([]ir.Output{root, other})
	require.NoError(t, err)
	require.Equal(t, 6, stats.Visited)
	require.Equal(t, 2, stats.Merged)
	require.Equal(t, 0, stats.Collisions)
	require.Equal(t, root.Hash(), newRoots[0].Hash())
	require.Equal(t, other.Hash(), newRoots[1].Hash())

	newRoot := newRoots[0].Node
	require.NotSame(t, root.Node, newRoot)
	require.Equal(t, newRoot.Operand(0), newRoot.Operand(1), "both operands must be the same node after CSE")
	require.Equal(t, b1, newRoot.Operand(0))
	require.Equal(t, b1, newRoots[1].Node.Operand(0))
	require.Equal(t, x1, newRoots[1].Node.Operand(1))
	require.Len(t, PostOrder(newRoots), 4)
	shape, err := newRoots[0].Shape()
	require.NoError(t, err)
	require.True(t, shapes.Make(dtypes.Float32, 4).Equal(shape))

	// Nothing to do the second time.
	again, stats, err := CSE(newRoots)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Merged)
	require.Equal(t, 0, stats.Cloned)
	require.Equal(t, newRoots, again)
}

func TestCSEMultiOutput(t *testing.T) {
	s := newTestSession(t)
	x := param(s, "x", 6, 2)
	split1 := must.M1(ops.Split(s, x, 0, 3))
	split2 := must.M1(ops.Split(s, x, 0, 3))
	// Different outputs of the same node must not be merged.
	a := binary(s, ops.OpAdd, split1.Chunks()[0], split2.Chunks()[1])
	b := binary(s, ops.OpAdd, split2.Chunks()[0], split1.Chunks()[1])
	newRoots, stats, err := CSE([]ir.Output{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Merged) // split2 and b.
	require.Same(t, newRoots[0].Node, newRoots[1].Node)
	add := newRoots[0].Node
	require.Equal(t, ir.Output{Node: split1, Index: 0}, add.Operand(0))
	require.Equal(t, ir.Output{Node: split1, Index: 1}, add.Operand(1))
}

// collidingNode is a node with a chosen hash, to simulate hash collisions.
type collidingNode struct {
	name string
	hash hashing.Hash
}

func (n *collidingNode) Op() ir.OpKind { return ir.NewOpKind("test", n.name) }
func (n *collidingNode) Operands() []ir.Output { return nil }
func (n *collidingNode) Operand(int) ir.Output { panic("no operands") }
func (n *collidingNode) NumOutputs() int { return 1 }
func (n *collidingNode) NodeHash() hashing.Hash { return n.hash }
func (n *collidingNode) Hash() hashing.Hash { return n.hash }
func (n *collidingNode) Metadata() ir.Metadata { return ir.Metadata{} }
func (n *collidingNode) String() string { return n.name }
func (n *collidingNode) Clone([]ir.Output) (ir.Node, error) { return n, nil }

func TestCSECollision(t *testing.T) {
	a := &collidingNode{name: "a", hash: 42}
	b := &collidingNode{name: "b", hash: 42}
	newRoots, stats, err := CSE([]ir.Output{{Node: a}, {Node: b}})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Collisions)
	require.Equal(t, 0, stats.Merged)
	require.Same(t, a, newRoots[0].Node)
	require.Same(t, b, newRoots[1].Node)

	// A node matching the second candidate of its bucket is merged, and is not a collision.
	b2 := &collidingNode{name: "b", hash: 42}
	newRoots, stats, err = CSE([]ir.Output{{Node: a}, {Node: b}, {Node: b2}})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Collisions)
	require.Equal(t, 1, stats.Merged)
	require.Same(t, b, newRoots[2].Node)
}

func TestSubstitute(t *testing.T) {
	s := newTestSession(t)
	x := param(s, "x", 3)
	w := param(s, "w", 3)
	y := param(s, "y", 3)
	add := binary(s, ops.OpAdd, x, y)
	root := unary(s, ops.OpNeg, add)

	newRoots, err := Substitute([]ir.Output{root, x, y}, x, w)
	require.NoError(t, err)
	require.Equal(t, unary(s, ops.OpNeg, binary(s, ops.OpAdd, w, y)).Hash(), newRoots[0].Hash())
	require.Equal(t, w, newRoots[1])
	require.Equal(t, y, newRoots[2], "unaffected nodes are kept")
	require.Equal(t, x, add.Node.Operand(0), "the original graph is not modified")

	// Substituting a value by an expression of itself.
	expX := unary(s, ops.OpExp, x)
	newRoots, err = Substitute([]ir.Output{root}, x, expX)
	require.NoError(t, err)
	newAdd := newRoots[0].Node.Operand(0).Node
	require.Equal(t, expX, newAdd.Operand(0))
	require.Equal(t, x, expX.Node.Operand(0))

	// Shapes must match.
	_, err = Substitute([]ir.Output{root}, x, param(s, "z", 4))
	require.ErrorIs(t, err, ir.ErrInvalidArgument)
	_, err = Substitute([]ir.Output{root}, x, ir.Output{})
	require.ErrorIs(t, err, ir.ErrInvalidArgument)
}
