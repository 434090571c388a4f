// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes implements transformations over graphs of ir nodes.
//
// Nodes are immutable, so passes never modify a graph: they return new roots, sharing every
// node that didn't need to change, and rebuild the others with Node.Clone.
//
// Passes use nodes as map keys, so the concrete node types must be comparable (typically pointers).
package passes

import (
	"github.com/gomlx/lazyir/pkg/core/ir"
)

// PostOrder returns all nodes reachable from roots, each once, with every node after all its operands.
//
// Roots with a nil node are ignored.
func PostOrder(roots []ir.Output) []ir.Node {
	type frame struct {
		node     ir.Node
		operands []ir.Output
		next     int
	}
	visited := make(map[ir.Node]bool)
	var order []ir.Node
	var stack []frame
	push := func(node ir.Node) {
		visited[node] = true
		stack = append(stack, frame{node: node, operands: node.Operands()})
	}
	for _, root := range roots {
		if root.Node == nil || visited[root.Node] {
			continue
		}
		push(root.Node)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.operands) {
				operand := top.operands[top.next]
				top.next++
				if operand.Node != nil && !visited[operand.Node] {
					push(operand.Node)
				}
				continue
			}
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}

// remap returns output with its node replaced according to replacements.
func remap(output ir.Output, replacements map[ir.Node]ir.Node) ir.Output {
	if replacement, found := replacements[output.Node]; found {
		return ir.Output{Node: replacement, Index: output.Index}
	}
	return output
}

// rebuild clones node if any of its operands changed, according to mapOperand.
// It returns the node itself if nothing changed.
func rebuild(node ir.Node, mapOperand func(ir.Output) ir.Output) (rebuilt ir.Node, changed bool, err error) {
	operands := node.Operands()
	for ii, operand := range operands {
		mapped := mapOperand(operand)
		if mapped != operand {
			operands[ii] = mapped
			changed = true
		}
	}
	if !changed {
		return node, false, nil
	}
	rebuilt, err = node.Clone(operands)
	if err != nil {
		return nil, false, err
	}
	return rebuilt, true, nil
}
