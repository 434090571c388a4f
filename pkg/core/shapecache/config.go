// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapecache

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CapacityEnv is the environment variable that overrides the capacity of the Default cache.
const CapacityEnv = "LAZYIR_SHAPE_CACHE_SIZE"

// DefaultCapacity is the capacity used when CapacityEnv is not set.
const DefaultCapacity = 4096

// CapacityFromEnv returns the capacity configured in CapacityEnv, or DefaultCapacity if it is not set.
// It returns an error if the value is not a positive integer.
func CapacityFromEnv() (int, error) {
	value, found := os.LookupEnv(CapacityEnv)
	if !found || strings.TrimSpace(value) == "" {
		return DefaultCapacity, nil
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return DefaultCapacity, errors.Wrapf(err, "invalid $%s=%q", CapacityEnv, value)
	}
	if capacity <= 0 {
		return DefaultCapacity, errors.Errorf("invalid $%s=%q: capacity must be > 0", CapacityEnv, value)
	}
	return capacity, nil
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide cache, created on first use with the capacity from CapacityFromEnv.
//
// A malformed CapacityEnv is logged and DefaultCapacity is used instead.
// Prefer creating a Cache explicitly with New and passing it along, when the lifetime of the
// cache can be tied to a trace or compilation session.
func Default() *Cache {
	defaultOnce.Do(func() {
		capacity, err := CapacityFromEnv()
		if err != nil {
			klog.Warningf("shapecache: %v, using default capacity %d", err, DefaultCapacity)
		}
		defaultCache, err = New(capacity)
		if err != nil {
			// Only reachable with an invalid capacity, which CapacityFromEnv never returns.
			klog.Fatalf("shapecache: failed to create default cache: %+v", err)
		}
		klog.V(1).Infof("shapecache: created default cache with capacity %d", capacity)
	})
	return defaultCache
}
