// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hashing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	a, b := String("a"), String("b")
	require.Equal(t, Combine(a, b), Combine(a, b), "Combine must be deterministic")
	require.NotEqual(t, Combine(a, b), Combine(b, a), "Combine must be order-sensitive")
	require.NotEqual(t, Combine(a, a), a)
	require.Equal(t, Combine(Combine(a, b), a), CombineAll(a, b, a))
	require.Equal(t, a, CombineAll(a))
}

func TestScalars(t *testing.T) {
	assert.Equal(t, Int(int32(7)), Int(int64(7)))
	assert.NotEqual(t, Int(7), Int(8))
	assert.Equal(t, Float64(math.NaN()), Float64(-math.NaN()))
	assert.Equal(t, Float64(0), Float64(math.Copysign(0, -1)))
	assert.NotEqual(t, Float64(1), Float64(1.0000001))
	assert.NotEqual(t, Bool(true), Bool(false))
	assert.NotEqual(t, Ints([]int{1, 2}), Ints([]int{1, 2, 0}))
	assert.NotEqual(t, Ints([]int{1, 2}), Ints([]int{2, 1}))
	assert.Equal(t, Ints([]int64{3, 4}), Ints([]int{3, 4}))
	assert.Len(t, String("x").String(), 16)
}
