// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package forest

import (
	"context"
	"io"
	"math/rand"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/tipscore/common/encoding"
	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/common/parallel"
	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	headerRandomForest  = "random_forest"
	versionRandomForest = 1

	DefaultNEstimators = 100
	DefaultMaxDepth    = 10
)

func init() {
	model.Register(headerRandomForest, versionRandomForest, func() model.Classifier {
		return NewRandomForest(nil)
	})
}

// RandomForest averages the positive-class probabilities of decision trees
// fitted on bootstrap samples.
type RandomForest struct {
	model.BaseModel
	Trees     []*DecisionTree
	NFeatures int
	// OOBScore is the out-of-bag score of the last fit, nil unless OOBScore
	// and Bootstrap are set. It is not serialized.
	OOBScore *model.Score

	nEstimators int
	bootstrap   bool
	oobScore    bool
}

func NewRandomForest(params model.Params) *RandomForest {
	rf := new(RandomForest)
	rf.SetParams(params)
	return rf
}

func (rf *RandomForest) SetParams(params model.Params) {
	rf.BaseModel.SetParams(params)
	rf.nEstimators = max(rf.Params.GetInt(model.NEstimators, DefaultNEstimators), 1)
	rf.bootstrap = rf.Params.GetBool(model.Bootstrap, true)
	rf.oobScore = rf.Params.GetBool(model.OOBScore, false)
}

func (rf *RandomForest) Clear() {
	rf.Trees = nil
	rf.NFeatures = 0
	rf.OOBScore = nil
}

func (rf *RandomForest) IsFitted() bool {
	return len(rf.Trees) > 0
}

// treeParams returns the hyper-parameters passed to every tree.
func (rf *RandomForest) treeParams(seed int64) model.Params {
	return model.Params{
		model.MaxDepth:        rf.Params.GetInt(model.MaxDepth, DefaultMaxDepth),
		model.MinSamplesSplit: rf.Params.GetInt(model.MinSamplesSplit, 2),
		model.MinSamplesLeaf:  rf.Params.GetInt(model.MinSamplesLeaf, 1),
		model.MaxFeatures:     rf.Params.GetInt(model.MaxFeatures, 0),
		model.RandomState:     seed,
	}
}

func (rf *RandomForest) Fit(ctx context.Context, X mat.Matrix, y []int, config *model.FitConfig) error {
	config = config.LoadDefaultIfNil()
	if err := checkTrainSet(X, y); err != nil {
		return errors.Trace(err)
	}
	rows, nFeatures := X.Dims()
	log.Logger().Info("fit random forest",
		zap.Int("n_rows", rows),
		zap.Int("n_features", nFeatures),
		zap.Int("n_estimators", rf.nEstimators),
		zap.Int("n_jobs", config.Jobs),
		zap.Int64("random_state", rf.GetRandomState()),
		zap.String("params", rf.Params.ToString()))
	cols := columns(X)
	// draw seeds up front so the forest does not depend on scheduling
	rng := rf.GetRandomGenerator()
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	trees := make([]*DecisionTree, rf.nEstimators)
	var inBags []*bitset.BitSet
	if rf.oobScore && rf.bootstrap {
		inBags = make([]*bitset.BitSet, rf.nEstimators)
	}
	completed := atomic.NewInt32(0)
	err := parallel.Parallel(ctx, rf.nEstimators, config.Jobs, func(_, jobId int) error {
		tree := NewDecisionTree(rf.treeParams(seeds[jobId]))
		treeRng := rand.New(rand.NewSource(seeds[jobId]))
		samples := make([]int, rows)
		for i := range samples {
			if rf.bootstrap {
				samples[i] = treeRng.Intn(rows)
			} else {
				samples[i] = i
			}
		}
		if inBags != nil {
			inBag := bitset.New(uint(rows))
			for _, sample := range samples {
				inBag.Set(uint(sample))
			}
			inBags[jobId] = inBag
		}
		tree.fit(cols, y, samples, treeRng)
		trees[jobId] = tree
		if n := completed.Inc(); config.Verbose > 0 && int(n)%config.Verbose == 0 {
			log.Logger().Debug("fit random forest",
				zap.Int32("n_trees", n),
				zap.Int("n_estimators", rf.nEstimators))
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	rf.Trees = trees
	rf.NFeatures = nFeatures
	rf.OOBScore = nil
	if inBags != nil {
		rf.OOBScore = rf.outOfBag(X, y, inBags, config.Jobs)
	}
	return nil
}

// outOfBag predicts every sample with the trees whose bootstrap sample does
// not contain it. Samples drawn by every tree are skipped.
func (rf *RandomForest) outOfBag(X mat.Matrix, y []int, inBags []*bitset.BitSet, jobs int) *model.Score {
	// -1 marks samples without out-of-bag trees
	predictions := make([]int, len(y))
	parallel.ForEach(lo.Range(len(y)), jobs, func(_, i int) {
		sum, count := 0.0, 0
		for t, tree := range rf.Trees {
			if !inBags[t].Test(uint(i)) {
				sum += tree.predictRow(X, i)
				count++
			}
		}
		switch {
		case count == 0:
			predictions[i] = -1
		case sum/float64(count) > 0.5:
			predictions[i] = 1
		}
	})
	var labels, covered []int
	for i, prediction := range predictions {
		if prediction >= 0 {
			labels = append(labels, y[i])
			covered = append(covered, prediction)
		}
	}
	if len(labels) == 0 {
		log.Logger().Warn("no out-of-bag samples", zap.Int("n_estimators", rf.nEstimators))
		return nil
	}
	score := model.NewScore(labels, covered)
	log.Logger().Info("out-of-bag score", append(score.ZapFields(), zap.Int("n_samples", len(labels)))...)
	return &score
}

func (rf *RandomForest) Predict(X mat.Matrix) ([]int, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, errors.Trace(err)
	}
	predictions := make([]int, len(probas))
	for i, p := range probas {
		if p > 0.5 {
			predictions[i] = 1
		}
	}
	return predictions, nil
}

// PredictProba returns the mean positive-class probability over all trees.
func (rf *RandomForest) PredictProba(X mat.Matrix) ([]float64, error) {
	if !rf.IsFitted() {
		return nil, errors.NotValidf("predict with unfitted random forest")
	}
	rows, cols := X.Dims()
	if cols != rf.NFeatures {
		return nil, errors.NotValidf("shape: %d features but the forest was fitted on %d", cols, rf.NFeatures)
	}
	probas := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for _, tree := range rf.Trees {
			sum += tree.predictRow(X, i)
		}
		probas[i] = sum / float64(len(rf.Trees))
	}
	return probas, nil
}

func (rf *RandomForest) Marshal(w io.Writer) error {
	if err := writeParams(w, rf.Params); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, rf.NFeatures); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteUint32(w, uint32(len(rf.Trees))); err != nil {
		return errors.Trace(err)
	}
	for _, tree := range rf.Trees {
		if err := tree.Marshal(w); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (rf *RandomForest) Unmarshal(r io.Reader) error {
	params, err := readParams(r)
	if err != nil {
		return errors.Trace(err)
	}
	rf.SetParams(params)
	if err = encoding.ReadGob(r, &rf.NFeatures); err != nil {
		return errors.Trace(err)
	}
	n, err := encoding.ReadUint32(r)
	if err != nil {
		return errors.Trace(err)
	}
	rf.Trees = nil
	for i := uint32(0); i < n; i++ {
		tree := NewDecisionTree(nil)
		if err = tree.Unmarshal(r); err != nil {
			return errors.Annotatef(err, "tree %d", i)
		}
		if tree.NFeatures != rf.NFeatures {
			return errors.NotValidf("tree %d with %d features", i, tree.NFeatures)
		}
		rf.Trees = append(rf.Trees, tree)
	}
	return nil
}
