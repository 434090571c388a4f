// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/pkg/errors"
)

// Substitute returns roots rewritten with every use of from replaced by to.
//
// Users of from (direct or indirect) are rebuilt with Clone; the nodes that to depends on are left
// untouched, so substituting a value by an expression of itself is valid. If the shapes of from
// and to are both known, they must be equal, otherwise it fails with ir.ErrInvalidArgument.
func Substitute(roots []ir.Output, from, to ir.Output) ([]ir.Output, error) {
	if err := from.Validate(); err != nil {
		return nil, errors.WithMessage(err, "Substitute from")
	}
	if err := to.Validate(); err != nil {
		return nil, errors.WithMessage(err, "Substitute to")
	}
	fromShape, errFrom := ir.ShapeOfOutput(from)
	toShape, errTo := ir.ShapeOfOutput(to)
	if errFrom == nil && errTo == nil && !fromShape.Equal(toShape) {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "cannot substitute %s with shape %s by %s with shape %s",
			from, fromShape, to, toShape)
	}

	frozen := make(map[ir.Node]bool)
	for _, node := range PostOrder([]ir.Output{to}) {
		frozen[node] = true
	}
	replacements := make(map[ir.Node]ir.Node)
	mapOutput := func(o ir.Output) ir.Output {
		if o == from {
			return to
		}
		return remap(o, replacements)
	}
	for _, node := range PostOrder(roots) {
		if frozen[node] {
			continue
		}
		rebuilt, changed, err := rebuild(node, mapOutput)
		if err != nil {
			return nil, errors.WithMessagef(err, "Substitute failed rebuilding %s", node.Op())
		}
		if changed {
			replacements[node] = rebuilt
		}
	}
	newRoots := make([]ir.Output, len(roots))
	for ii, root := range roots {
		newRoots[ii] = mapOutput(root)
	}
	return newRoots, nil
}
