// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Evaluate builds the positive and negative cover maps concurrently — the
// two generators own independent RTree instances, so this does not touch
// the "no concurrent mutation of a running clustering" rule, which binds
// a single clustering/index/lattice instance, not two unrelated ones —
// then folds them into a running confusion matrix keyed by step K.
func (e *IncrementalSampleBasedEvaluator) Evaluate(ctx context.Context, intents []IntentInfo) (map[int]SampleBasedResult, error) {
	var pCoverMap, nCoverMap map[int][]int
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		pCoverMap = e.pGen.GetCoverMap(intents)
		return nil
	})
	g.Go(func() error {
		nCoverMap = e.nGen.GetCoverMap(intents)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := make(map[int]SampleBasedResult, len(intents))
	var tp, fp, tn, fn float64
	for _, f := range e.NFlows {
		tn += e.Feature.Labeling.Cardinality(f)
	}
	for _, f := range e.PFlows {
		fn += e.Feature.Labeling.Cardinality(f)
	}

	for _, info := range intents {
		var pNew, nNew float64
		for _, f := range pCoverMap[info.K] {
			pNew += e.Feature.Labeling.Cardinality(e.PFlows[f])
		}
		for _, f := range nCoverMap[info.K] {
			nNew += e.Feature.Labeling.Cardinality(e.NFlows[f])
		}
		tp += pNew
		fp += nNew
		tn -= nNew
		fn -= pNew
		res[info.K] = SampleBasedResult{TP: tp, FP: fp, TN: tn, FN: fn}
	}
	return res, nil
}
