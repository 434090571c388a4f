// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/gomlx/lazyir/pkg/core/shapecache"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	s := NewSession("trace")
	require.Equal(t, "trace", s.Name())
	require.Same(t, shapecache.Default(), s.Cache())
	require.False(t, s.Traced())
	require.Equal(t, "", s.Scope())

	inner := s.WithScope("a").WithScope("b")
	require.Equal(t, "a/b", inner.Scope())
	require.Equal(t, "", s.Scope(), "WithScope must not change the original session")
	require.Equal(t, s.ID(), inner.ID())
	require.Same(t, s.Cache(), inner.Cache())
	require.Contains(t, inner.String(), `scope="a/b"`)

	other := NewSession("trace")
	require.NotEqual(t, s.ID(), other.ID())
}

func TestOpKind(t *testing.T) {
	op, err := ParseOpKind("aten::mse_loss_backward")
	require.NoError(t, err)
	require.Equal(t, NewOpKind("aten", "mse_loss_backward"), op)
	require.Equal(t, "aten::mse_loss_backward", op.String())
	require.Equal(t, op.Hash(), NewOpKind("aten", "mse_loss_backward").Hash())
	require.NotEqual(t, op.Hash(), NewOpKind("lazy", "mse_loss_backward").Hash())
	require.NotEqual(t, NewOpKind("ab", "c").Hash(), NewOpKind("a", "bc").Hash())

	for _, bad := range []string{"", "aten", "::x", "aten::", "a::b::c"} {
		_, err = ParseOpKind(bad)
		require.ErrorIs(t, err, ErrInvalidArgument, "ParseOpKind(%q)", bad)
	}
}
