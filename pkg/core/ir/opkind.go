// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"strings"

	"github.com/gomlx/lazyir/pkg/core/hashing"
)

// OpKind identifies an operation by namespace (e.g. "aten", "lazy") and name.
//
// It is a comparable value: two OpKind are the same operation iff they are equal with ==.
type OpKind struct {
	Namespace, Name string
}

// OpKindSeparator separates the namespace from the name in the qualified form of an OpKind.
const OpKindSeparator = "::"

// NewOpKind returns the OpKind for the given namespace and name.
func NewOpKind(namespace, name string) OpKind {
	return OpKind{Namespace: namespace, Name: name}
}

// ParseOpKind parses a qualified name of the form "namespace::name".
func ParseOpKind(qualified string) (OpKind, error) {
	namespace, name, found := strings.Cut(qualified, OpKindSeparator)
	if !found || namespace == "" || name == "" || strings.Contains(name, OpKindSeparator) {
		return OpKind{}, invalidArgumentf("malformed op kind %q, expected \"namespace%sname\"", qualified, OpKindSeparator)
	}
	return NewOpKind(namespace, name), nil
}

// Hash of the op kind, a pure function of namespace and name.
//
// Namespace and name are hashed separately, so moving characters between them changes the hash.
func (k OpKind) Hash() hashing.Hash {
	return hashing.Combine(hashing.String(k.Namespace), hashing.String(k.Name))
}

// String returns the qualified name "namespace::name".
func (k OpKind) String() string {
	return k.Namespace + OpKindSeparator + k.Name
}
