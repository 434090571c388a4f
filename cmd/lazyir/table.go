// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/ir/passes"
	"github.com/gomlx/lazyir/pkg/core/shapecache"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			}
			return s.Align(alignment)
		})
}

// printNodes lists the nodes of the trace, in post-order.
func printNodes(t *trace) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Nodes of %s (batch size %d)", t.session.Scope(), t.batchSize)))
	table := newPlainTable(lipgloss.Right).
		Headers("#", "Op", "Shape", "Operands", "Scope", "Hash")
	nodes := passes.PostOrder(t.roots)
	ids := make(map[ir.Node]int, len(nodes))
	for ii, node := range nodes {
		ids[node] = ii
		shape := "?"
		if s, err := ir.ShapeOf(node); err == nil {
			shape = s.String()
		}
		operands := make([]string, 0, len(node.Operands()))
		for _, operand := range node.Operands() {
			operands = append(operands, fmt.Sprintf("#%d:%d", ids[operand.Node], operand.Index))
		}
		table.Row(fmt.Sprint(ii), node.Op().String(), shape, strings.Join(operands, " "),
			node.Metadata().Scope, node.Hash().String())
	}
	fmt.Println(table.Render())
}

// printSummary reports the work done and the shape cache statistics.
func printSummary(session *ir.Session, numTraces int, elapsed time.Duration, cacheStats shapecache.Stats, cseStats passes.Stats) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("session", session.ID().String())
	table.Row("traces", humanize.Comma(int64(numTraces)))
	table.Row("build time", elapsed.String())
	table.Row("cache capacity", humanize.Comma(int64(cacheStats.Capacity)))
	table.Row("cache entries", humanize.Comma(int64(cacheStats.Len)))
	table.Row("cache hits", humanize.Comma(cacheStats.Hits))
	table.Row("cache misses", humanize.Comma(cacheStats.Misses))
	table.Row("shape computations", humanize.Comma(cacheStats.Computations))
	table.Row("cache evictions", humanize.Comma(cacheStats.Evictions))
	if lookups := cacheStats.Hits + cacheStats.Misses; lookups > 0 {
		table.Row("hit rate", fmt.Sprintf("%.1f%%", 100*float64(cacheStats.Hits)/float64(lookups)))
	}
	if cseStats.Visited > 0 {
		table.Row("CSE visited nodes", humanize.Comma(int64(cseStats.Visited)))
		table.Row("CSE merged nodes", humanize.Comma(int64(cseStats.Merged)))
		table.Row("CSE cloned nodes", humanize.Comma(int64(cseStats.Cloned)))
		table.Row("CSE hash collisions", humanize.Comma(int64(cseStats.Collisions)))
	}
	fmt.Println(table.Render())
}
