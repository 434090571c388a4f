// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hashing defines the 64-bit hash used to identify operations and (sub-)graphs, and the
// primitives to build it from scalars, strings and other hashes.
//
// All functions are pure and deterministic across processes: they don't depend on map iteration
// order or memory addresses. Combine is order-sensitive, so folding the same hashes in a
// different order yields (with high probability) a different result.
package hashing

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// Hash is a well-mixed 64-bit hash. It is not cryptographically strong.
type Hash uint64

// String implements fmt.Stringer, with the hash as 16 hexadecimal digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Combine mixes two hashes into one. It is order-sensitive: Combine(a, b) != Combine(b, a) in general.
func Combine(a, b Hash) Hash {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b))
	return Hash(xxhash.Sum64(buf[:]))
}

// CombineAll folds hashes into seed, from left to right.
func CombineAll(seed Hash, hashes ...Hash) Hash {
	h := seed
	for _, other := range hashes {
		h = Combine(h, other)
	}
	return h
}

// String hashes the contents of s.
func String(s string) Hash {
	return Hash(xxhash.Sum64String(s))
}

// Int hashes an integer value. Values that are equal as int64 hash the same, regardless of T.
func Int[T constraints.Integer](value T) Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(value)))
	return Hash(xxhash.Sum64(buf[:]))
}

// Ints hashes a sequence of integers. The length is included, so a prefix of a sequence hashes differently
// from the sequence.
func Ints[T constraints.Integer](values []T) Hash {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(values)))
	_, _ = d.Write(buf[:])
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	return Hash(d.Sum64())
}

// Float64 hashes a float value. All NaNs hash the same, and so do 0 and -0.
func Float64(value float64) Hash {
	switch {
	case math.IsNaN(value):
		value = math.NaN()
	case value == 0:
		value = 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
	return Hash(xxhash.Sum64(buf[:]))
}

// Bool hashes a boolean.
func Bool(value bool) Hash {
	if value {
		return Int(1)
	}
	return Int(0)
}
