// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapecache implements the bounded cache of inferred shapes, keyed by the DAG hash of
// the node that produced them.
//
// Since every producer of a given hash computes the same shape, a cached entry can be reused by
// any structurally identical (sub-)graph, across traces and goroutines. Eviction only ever causes
// a shape to be recomputed, never a wrong shape to be returned.
//
// All methods are safe for concurrent use.
package shapecache

import (
	"strconv"
	"sync/atomic"

	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// Cache maps hashes to previously computed shapes, evicting the least-recently used entry when full.
type Cache struct {
	capacity int
	entries  *lru.Cache[hashing.Hash, shapes.Shape]

	// inflight collapses concurrent computations of the same key into one.
	inflight singleflight.Group

	hits, misses, computations, evictions atomic.Int64
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits, Misses, Computations, Evictions int64
	Len, Capacity                         int
}

// New creates a Cache holding at most capacity shapes.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("shapecache.New(%d): capacity must be > 0", capacity)
	}
	c := &Cache{capacity: capacity}
	var err error
	c.entries, err = lru.NewWithEvict(capacity, func(key hashing.Hash, _ shapes.Shape) {
		c.evictions.Add(1)
		klog.V(3).Infof("shapecache: evicted %s", key)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "shapecache.New(%d)", capacity)
	}
	return c, nil
}

// Capacity is the maximum number of entries held.
func (c *Cache) Capacity() int { return c.capacity }

// Len returns the current number of entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Get returns the shape stored for key, and whether it was found.
func (c *Cache) Get(key hashing.Hash) (shapes.Shape, bool) {
	shape, found := c.entries.Get(key)
	if !found {
		c.misses.Add(1)
		return shapes.Shape{}, false
	}
	c.hits.Add(1)
	return shape.Clone(), true
}

// Contains reports whether key is cached, without updating its recency or the counters.
func (c *Cache) Contains(key hashing.Hash) bool {
	return c.entries.Contains(key)
}

// Add stores shape under key and returns the stored shape.
//
// If key is already present the existing entry is kept and returned: the first writer wins, so
// concurrent producers of the same key all end up with the same value.
func (c *Cache) Add(key hashing.Hash, shape shapes.Shape) shapes.Shape {
	stored := shape.Clone()
	previous, found, _ := c.entries.PeekOrAdd(key, stored)
	if found {
		return previous.Clone()
	}
	return stored.Clone()
}

// GetOrCompute returns the shape cached for key, or calls compute to create it and caches the result.
//
// Concurrent calls for the same missing key share a single call to compute. Errors returned by
// compute are passed through to every caller waiting on that computation and are not cached:
// a later call will invoke compute again.
func (c *Cache) GetOrCompute(key hashing.Hash, compute func() (shapes.Shape, error)) (shapes.Shape, error) {
	if shape, found := c.Get(key); found {
		return shape, nil
	}
	value, err, _ := c.inflight.Do(strconv.FormatUint(uint64(key), 16), func() (any, error) {
		// Another goroutine may have finished the computation between our Get and Do.
		if shape, found := c.entries.Peek(key); found {
			return shape, nil
		}
		c.computations.Add(1)
		shape, err := compute()
		if err != nil {
			klog.V(2).Infof("shapecache: computation for %s failed: %v", key, err)
			return nil, err
		}
		klog.V(2).Infof("shapecache: computed %s -> %s", key, shape)
		return c.Add(key, shape), nil
	})
	if err != nil {
		return shapes.Shape{}, err
	}
	return value.(shapes.Shape).Clone(), nil
}

// Purge removes all entries. Purged entries are counted as evictions.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Evictions:    c.evictions.Load(),
		Len:          c.Len(),
		Capacity:     c.capacity,
	}
}
