// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/ir/ops"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// trace holds the roots of one demo trace.
type trace struct {
	session   *ir.Session
	batchSize int
	roots     []ir.Output
}

// out returns the first output of a node, or the error.
func out[T ir.Node](node T, err error) (ir.Output, error) {
	if err != nil {
		return ir.Output{}, err
	}
	return ir.Output{Node: node}, nil
}

// buildTrace records a small image classifier with its loss and some of its gradients.
//
// Some sub-expressions are deliberately built twice (in different scopes), for CSE to merge.
func buildTrace(s *ir.Session, batchSize int) (*trace, error) {
	const imageSize = 8
	imageShape := shapes.Make(dtypes.Float32, batchSize, 1, imageSize, imageSize)
	pooledShape := shapes.Make(dtypes.Float32, batchSize, 1, imageSize/2, imageSize/2)

	images, err := out(ops.Parameter(s, "images", imageShape))
	if err != nil {
		return nil, err
	}
	labels, err := out(ops.Parameter(s, "labels", pooledShape))
	if err != nil {
		return nil, err
	}

	// Features.
	features := s.WithScope("features")
	pool, err := ops.MaxPoolNd(features, images, 2, ops.PoolConfig{Kernel: []int{2, 2}})
	if err != nil {
		return nil, err
	}
	scale, err := out(ops.Scalar(features, 0.5, dtypes.Float32))
	if err != nil {
		return nil, err
	}
	scaled, err := out(ops.Binary(features, ops.OpMul, pool.Values(), scale))
	if err != nil {
		return nil, err
	}
	activations, err := out(ops.Unary(features, ops.OpTanh, scaled))
	if err != nil {
		return nil, err
	}

	// Two heads computing the same log-probabilities.
	var heads [2]ir.Output
	for ii, name := range []string{"head_a", "head_b"} {
		heads[ii], err = out(ops.LogSoftmax(s.WithScope(name), activations, -1))
		if err != nil {
			return nil, err
		}
	}
	probabilities, err := out(ops.Unary(s, ops.OpExp, heads[0]))
	if err != nil {
		return nil, err
	}

	// Losses.
	losses := s.WithScope("loss")
	loss, err := out(ops.BinaryCrossEntropy(losses, probabilities, labels, ir.Output{}, ops.ReductionMean))
	if err != nil {
		return nil, err
	}
	split, err := ops.Split(losses, heads[1], -1, imageSize/4)
	if err != nil {
		return nil, err
	}
	chunks := split.Chunks()
	if len(chunks) < 2 {
		return nil, errors.Errorf("expected at least 2 chunks, got %d", len(chunks))
	}
	rankingTarget, err := out(ops.Parameter(s, "ranking_target", shapes.Make(dtypes.Float32, batchSize, 1, imageSize/2, imageSize/4)))
	if err != nil {
		return nil, err
	}
	ranking, err := out(ops.MarginRankingLoss(losses, chunks[0], chunks[1], rankingTarget, ops.ReductionSum, 0.1))
	if err != nil {
		return nil, err
	}

	// Gradients.
	grads := s.WithScope("gradients")
	lossGrad, err := out(ops.Parameter(s, "loss_grad", shapes.Make(dtypes.Float32)))
	if err != nil {
		return nil, err
	}
	probabilitiesGrad, err := out(ops.BinaryCrossEntropyBackward(grads, lossGrad, probabilities, labels, ir.Output{}, ops.ReductionMean))
	if err != nil {
		return nil, err
	}
	headGrad, err := out(ops.Binary(grads, ops.OpMul, probabilitiesGrad, probabilities))
	if err != nil {
		return nil, err
	}
	activationsGrad, err := out(ops.LogSoftmaxBackward(grads, headGrad, heads[1], -1, activations))
	if err != nil {
		return nil, err
	}
	upstreamGrad, err := out(ops.Parameter(s, "upstream_grad", imageShape))
	if err != nil {
		return nil, err
	}
	unpoolGrad, err := out(ops.MaxUnpoolNdBackward(grads, upstreamGrad, pool.Values(), pool.Indices(), []int{imageSize, imageSize}))
	if err != nil {
		return nil, err
	}
	pooledGrad, err := out(ops.Binary(grads, ops.OpAdd, activationsGrad, unpoolGrad))
	if err != nil {
		return nil, err
	}
	return &trace{
		session:   s,
		batchSize: batchSize,
		roots:     []ir.Output{loss, ranking, pooledGrad},
	}, nil
}
