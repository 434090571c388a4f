// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// lazyir concurrently records a number of demo traces sharing one shape cache, deduplicates
// each trace with CSE, and reports the recorded nodes and the cache statistics.
//
// Usage:
//
//	lazyir -traces=64 -workers=8 -batch_sizes=1,8,32 -nodes
//
// The shape cache capacity is taken from -cache_size, or from $LAZYIR_SHAPE_CACHE_SIZE if not set.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/ir/passes"
	"github.com/gomlx/lazyir/pkg/core/shapecache"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagCacheSize = flag.Int("cache_size", 0,
		fmt.Sprintf("Capacity of the shape cache. If 0, it is read from $%s (default %d).",
			shapecache.CapacityEnv, shapecache.DefaultCapacity))
	flagTraces     = flag.Int("traces", 32, "Number of traces to build.")
	flagWorkers    = flag.Int("workers", runtime.NumCPU(), "Number of traces built concurrently.")
	flagBatchSizes = flag.String("batch_sizes", "1,8,32", "Comma-separated batch sizes used by the traces, in round-robin.")
	flagTraced     = flag.Bool("traced", false, "Record the source location where each node is created.")
	flagCSE        = flag.Bool("cse", true, "Run common subexpression elimination on each trace.")
	flagNodes      = flag.Bool("nodes", false, "List the nodes of the first trace.")
	flagColor      = flag.Bool("color", true, "Use colors in the output, if the terminal supports it.")
	flagProgress   = flag.Bool("progress", true, "Display a progress bar while building traces.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if !*flagColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	batchSizes, err := parseBatchSizes(*flagBatchSizes)
	if err != nil {
		klog.Exitf("Invalid -batch_sizes: %+v", err)
	}
	if *flagTraces <= 0 || *flagWorkers <= 0 {
		klog.Exitf("-traces and -workers must be positive, got %d and %d", *flagTraces, *flagWorkers)
	}

	capacity := *flagCacheSize
	if capacity <= 0 {
		capacity = must.M1(shapecache.CapacityFromEnv())
	}
	cache := must.M1(shapecache.New(capacity))
	session := ir.NewSession("lazyir", ir.WithCache(cache), ir.WithTraced(*flagTraced))
	klog.V(1).Infof("Building %d traces with %d workers in %s", *flagTraces, *flagWorkers, session)

	start := time.Now()
	traces, err := buildTraces(session, *flagTraces, *flagWorkers, batchSizes, *flagProgress)
	if err != nil {
		klog.Exitf("Failed to build traces: %+v", err)
	}
	elapsed := time.Since(start)

	var cseStats passes.Stats
	if *flagCSE {
		for _, t := range traces {
			var stats passes.Stats
			t.roots, stats, err = passes.CSE(t.roots)
			if err != nil {
				klog.Exitf("CSE failed on %s: %+v", t.session.Scope(), err)
			}
			cseStats.Visited += stats.Visited
			cseStats.Merged += stats.Merged
			cseStats.Cloned += stats.Cloned
			cseStats.Collisions += stats.Collisions
		}
	}

	if *flagNodes {
		printNodes(traces[0])
	}
	printSummary(session, len(traces), elapsed, cache.Stats(), cseStats)
}

// parseBatchSizes parses a comma-separated list of positive integers.
func parseBatchSizes(value string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		size, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing batch size %q", part)
		}
		if size <= 0 {
			return nil, errors.Errorf("batch size must be positive, got %d", size)
		}
		sizes = append(sizes, size)
	}
	if len(sizes) == 0 {
		return nil, errors.New("no batch sizes given")
	}
	return sizes, nil
}

// buildTraces builds numTraces traces concurrently, all with sessions derived from session, and so
// sharing its shape cache.
func buildTraces(session *ir.Session, numTraces, numWorkers int, batchSizes []int, showProgress bool) ([]*trace, error) {
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(numTraces,
			progressbar.OptionSetDescription("Building traces"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	}
	traces := make([]*trace, numTraces)
	var g errgroup.Group
	g.SetLimit(numWorkers)
	for ii := range numTraces {
		g.Go(func() error {
			s := session.WithScope(fmt.Sprintf("trace_%03d", ii))
			t, err := buildTrace(s, batchSizes[ii%len(batchSizes)])
			if err != nil {
				return errors.WithMessagef(err, "building trace #%d", ii)
			}
			traces[ii] = t
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}
	return traces, nil
}
