// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"slices"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stats reports what a pass did.
type Stats struct {
	// Visited is the number of distinct nodes reachable from the roots.
	Visited int

	// Merged is the number of nodes replaced by an equivalent node.
	Merged int

	// Cloned is the number of nodes rebuilt because some operand changed.
	Cloned int

	// Collisions counts nodes that share their hash with previously seen nodes, none of which
	// turned out to be equivalent.
	Collisions int
}

// CSE (common subexpression elimination) returns roots rewritten such that equivalent nodes
// (same structure) are represented by a single node.
//
// Candidates are found by their Hash, and then confirmed by comparing op, number of outputs,
// node hash, shape (if known) and operands, which at that point are already deduplicated.
// Nodes whose operands were replaced are rebuilt with Clone.
func CSE(roots []ir.Output) ([]ir.Output, Stats, error) {
	var stats Stats
	order := PostOrder(roots)
	stats.Visited = len(order)
	replacements := make(map[ir.Node]ir.Node, len(order))
	candidates := make(map[hashing.Hash][]ir.Node, len(order))
	for _, node := range order {
		canonical, changed, err := rebuild(node, func(o ir.Output) ir.Output { return remap(o, replacements) })
		if err != nil {
			return nil, stats, errors.WithMessagef(err, "CSE failed rebuilding %s", node.Op())
		}
		if changed {
			stats.Cloned++
		}
		hash := canonical.Hash()
		var equivalent ir.Node
		for _, candidate := range candidates[hash] {
			if sameNode(candidate, canonical) {
				equivalent = candidate
				break
			}
		}
		if equivalent == nil && len(candidates[hash]) > 0 {
			stats.Collisions++
			klog.Warningf("CSE: hash collision (%s) between %s and %d other node(s), e.g. %s",
				hash, canonical, len(candidates[hash]), candidates[hash][0])
		}
		if equivalent != nil {
			klog.V(2).Infof("CSE: merging %s into %s", node, equivalent)
			stats.Merged++
			replacements[node] = equivalent
			continue
		}
		candidates[hash] = append(candidates[hash], canonical)
		if changed {
			replacements[node] = canonical
		}
	}
	newRoots := make([]ir.Output, len(roots))
	for ii, root := range roots {
		newRoots[ii] = remap(root, replacements)
	}
	klog.V(1).Infof("CSE: visited %d nodes, merged %d, cloned %d", stats.Visited, stats.Merged, stats.Cloned)
	return newRoots, stats, nil
}

// sameNode compares everything but the hashes of two nodes.
func sameNode(a, b ir.Node) bool {
	if a.Op() != b.Op() || a.NumOutputs() != b.NumOutputs() || a.NodeHash() != b.NodeHash() {
		return false
	}
	if !slices.Equal(a.Operands(), b.Operands()) {
		return false
	}
	shapeA, errA := ir.ShapeOf(a)
	shapeB, errB := ir.ShapeOf(b)
	if errA == nil && errB == nil {
		return shapeA.Equal(shapeB)
	}
	return true
}
