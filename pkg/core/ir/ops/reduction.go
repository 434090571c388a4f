// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"strings"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/pkg/errors"
)

// ReductionMode of a loss: whether the per-element losses are returned as is, averaged or summed.
type ReductionMode int

//go:generate go tool enumer -type=ReductionMode -trimprefix=Reduction -transform=snake -output=gen_reductionmode_enumer.go reduction.go

const (
	ReductionNone ReductionMode = iota
	ReductionMean
	ReductionSum
)

// Reduced returns whether the loss is reduced to a scalar.
func (r ReductionMode) Reduced() bool { return r != ReductionNone }

// Hash of the reduction mode, used as part of the node hash.
func (r ReductionMode) Hash() hashing.Hash { return hashing.Int(int(r)) }

// ParseReductionMode parses "none", "mean" or "sum" (case-insensitive).
func ParseReductionMode(name string) (ReductionMode, error) {
	mode, err := ReductionModeString(strings.TrimSpace(name))
	if err != nil {
		return ReductionNone, errors.Wrapf(ir.ErrInvalidArgument, "unknown reduction mode %q, valid values are %q", name, ReductionModeStrings())
	}
	return mode, nil
}

func checkReduction(op ir.OpKind, r ReductionMode) error {
	if !r.IsAReductionMode() {
		return errors.Wrapf(ir.ErrInvalidArgument, "%s: invalid reduction mode %d", op, int(r))
	}
	return nil
}
