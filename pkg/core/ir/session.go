// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/lazyir/pkg/core/shapecache"
	"github.com/google/uuid"
)

// ScopeSeparator separates the parts of a nested scope name.
const ScopeSeparator = "/"

// Session is the context in which nodes of a trace are created.
//
// It holds the shape cache used for deferred shape inference, the current scope recorded in the
// metadata of new nodes, and whether the creation site of nodes should be recorded.
//
// A Session is immutable: WithScope returns a new Session sharing the same cache. So it can be
// used concurrently by any number of goroutines building nodes.
type Session struct {
	id     uuid.UUID
	name   string
	cache  *shapecache.Cache
	scope  string
	traced bool
}

// SessionOption configures a new Session, see NewSession.
type SessionOption func(s *Session)

// WithCache sets the shape cache of the session. By default, shapecache.Default() is used.
func WithCache(cache *shapecache.Cache) SessionOption {
	return func(s *Session) { s.cache = cache }
}

// WithTraced sets whether the source location of the creation of nodes is recorded in their Metadata.
// It is off by default, since capturing the stack has a cost.
func WithTraced(traced bool) SessionOption {
	return func(s *Session) { s.traced = traced }
}

// NewSession creates a new Session with the given name, typically one per trace or compilation.
func NewSession(name string, options ...SessionOption) *Session {
	s := &Session{id: uuid.New(), name: name}
	for _, option := range options {
		option(s)
	}
	if s.cache == nil {
		s.cache = shapecache.Default()
	}
	return s
}

// ID uniquely identifies the session (and the sessions derived from it with WithScope).
func (s *Session) ID() uuid.UUID { return s.id }

// Name given to the session at creation.
func (s *Session) Name() string { return s.name }

// Cache used to memoize shapes of nodes created in this session.
func (s *Session) Cache() *shapecache.Cache { return s.cache }

// Scope recorded in the metadata of nodes created with this session. The root scope is "".
func (s *Session) Scope() string { return s.scope }

// Traced returns whether the creation site of nodes is recorded.
func (s *Session) Traced() bool { return s.traced }

// WithScope returns a session whose nodes are created in the sub-scope name of the current scope.
func (s *Session) WithScope(name string) *Session {
	derived := *s
	if s.scope == "" {
		derived.scope = name
	} else {
		derived.scope = s.scope + ScopeSeparator + name
	}
	return &derived
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	if s.scope == "" {
		return fmt.Sprintf("Session(%q, %s)", s.name, s.id)
	}
	return fmt.Sprintf("Session(%q, %s, scope=%q)", s.name, s.id, s.scope)
}

func (s *Session) newMetadata() Metadata {
	m := Metadata{Scope: s.scope}
	if s.traced {
		m.Frames = captureFrames()
	}
	return m
}
