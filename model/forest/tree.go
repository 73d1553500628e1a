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
	"math"
	"math/rand"
	"sort"

	"github.com/gorse-io/tipscore/common/encoding"
	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	headerDecisionTree  = "decision_tree"
	versionDecisionTree = 1
)

func init() {
	model.Register(headerDecisionTree, versionDecisionTree, func() model.Classifier {
		return NewDecisionTree(nil)
	})
}

// Node is a node of a fitted tree. Internal nodes send rows with
// x[Feature] <= Threshold to Left and the rest to Right. Leaves hold the
// fraction of positive training samples they received.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Proba     float64
	Samples   int
}

// DecisionTree is a binary CART classifier using Gini impurity.
type DecisionTree struct {
	model.BaseModel
	Nodes     []Node
	NFeatures int

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

func NewDecisionTree(params model.Params) *DecisionTree {
	tree := new(DecisionTree)
	tree.SetParams(params)
	return tree
}

func (tree *DecisionTree) SetParams(params model.Params) {
	tree.BaseModel.SetParams(params)
	tree.maxDepth = tree.Params.GetInt(model.MaxDepth, 0)
	tree.minSamplesSplit = max(tree.Params.GetInt(model.MinSamplesSplit, 2), 2)
	tree.minSamplesLeaf = max(tree.Params.GetInt(model.MinSamplesLeaf, 1), 1)
	tree.maxFeatures = tree.Params.GetInt(model.MaxFeatures, 0)
}

func (tree *DecisionTree) Clear() {
	tree.Nodes = nil
	tree.NFeatures = 0
}

func (tree *DecisionTree) IsFitted() bool {
	return len(tree.Nodes) > 0
}

// Depth returns the length of the longest path from the root to a leaf.
func (tree *DecisionTree) Depth() int {
	if !tree.IsFitted() {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		if tree.Nodes[i].Leaf {
			return 0
		}
		return 1 + max(depth(tree.Nodes[i].Left), depth(tree.Nodes[i].Right))
	}
	return depth(0)
}

func (tree *DecisionTree) Fit(ctx context.Context, X mat.Matrix, y []int, _ *model.FitConfig) error {
	if err := checkTrainSet(X, y); err != nil {
		return errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	samples := make([]int, len(y))
	for i := range samples {
		samples[i] = i
	}
	tree.fit(columns(X), y, samples, tree.GetRandomGenerator())
	return nil
}

// fit grows the tree on the given samples. Repeated sample indices count as
// repeated rows.
func (tree *DecisionTree) fit(cols [][]float64, y []int, samples []int, rng *rand.Rand) {
	tree.Clear()
	tree.NFeatures = len(cols)
	maxFeatures := tree.maxFeatures
	if maxFeatures <= 0 || maxFeatures > len(cols) {
		maxFeatures = max(int(math.Sqrt(float64(len(cols)))), 1)
	}
	b := &builder{
		tree:        tree,
		cols:        cols,
		y:           y,
		rng:         rng,
		maxFeatures: maxFeatures,
		buf:         make([]valueLabel, len(samples)),
	}
	b.build(samples, 0)
}

func (tree *DecisionTree) Predict(X mat.Matrix) ([]int, error) {
	probas, err := tree.PredictProba(X)
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

// PredictProba returns the probability of the positive class for each row.
func (tree *DecisionTree) PredictProba(X mat.Matrix) ([]float64, error) {
	if !tree.IsFitted() {
		return nil, errors.NotValidf("predict with unfitted decision tree")
	}
	rows, cols := X.Dims()
	if cols != tree.NFeatures {
		return nil, errors.NotValidf("shape: %d features but the tree was fitted on %d", cols, tree.NFeatures)
	}
	probas := make([]float64, rows)
	for i := 0; i < rows; i++ {
		probas[i] = tree.predictRow(X, i)
	}
	return probas, nil
}

func (tree *DecisionTree) predictRow(X mat.Matrix, row int) float64 {
	i := 0
	for !tree.Nodes[i].Leaf {
		node := tree.Nodes[i]
		if value(X.At(row, node.Feature)) <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return tree.Nodes[i].Proba
}

func (tree *DecisionTree) Marshal(w io.Writer) error {
	if err := writeParams(w, tree.Params); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, tree.NFeatures); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteGob(w, tree.Nodes)
}

func (tree *DecisionTree) Unmarshal(r io.Reader) error {
	params, err := readParams(r)
	if err != nil {
		return errors.Trace(err)
	}
	tree.SetParams(params)
	if err := encoding.ReadGob(r, &tree.NFeatures); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &tree.Nodes); err != nil {
		return errors.Trace(err)
	}
	return tree.validate()
}

// validate rejects node tables that would send prediction out of range or
// into a cycle.
func (tree *DecisionTree) validate() error {
	if len(tree.Nodes) == 0 {
		return errors.NotValidf("decision tree without nodes")
	}
	for i, node := range tree.Nodes {
		if node.Leaf {
			continue
		}
		if node.Left <= i || node.Right <= i || node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
			return errors.NotValidf("decision tree node %d", i)
		}
		if node.Feature < 0 || node.Feature >= tree.NFeatures {
			return errors.NotValidf("decision tree node %d feature %d", i, node.Feature)
		}
	}
	return nil
}

type valueLabel struct {
	value float64
	label int
}

type builder struct {
	tree        *DecisionTree
	cols        [][]float64
	y           []int
	rng         *rand.Rand
	maxFeatures int
	buf         []valueLabel
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(samples []int, depth int) int {
	n := len(samples)
	pos := 0
	for _, i := range samples {
		pos += b.y[i]
	}
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Leaf:    true,
		Proba:   float64(pos) / float64(n),
		Samples: n,
	})
	if pos == 0 || pos == n ||
		(b.tree.maxDepth > 0 && depth >= b.tree.maxDepth) ||
		n < b.tree.minSamplesSplit ||
		n < 2*b.tree.minSamplesLeaf {
		return id
	}
	best, ok := b.bestSplit(samples, pos)
	if !ok {
		return id
	}
	// partition samples in place: left side first
	mid := 0
	for i, s := range samples {
		if b.cols[best.feature][s] <= best.threshold {
			samples[mid], samples[i] = samples[i], samples[mid]
			mid++
		}
	}
	left := b.build(samples[:mid], depth+1)
	right := b.build(samples[mid:], depth+1)
	b.tree.Nodes[id] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
		Proba:     float64(pos) / float64(n),
		Samples:   n,
	}
	return id
}

// bestSplit draws features at random and keeps drawing past maxFeatures until
// a valid split is found.
func (b *builder) bestSplit(samples []int, pos int) (split, bool) {
	n := len(samples)
	parent := gini(pos, n)
	var best split
	found := false
	visited := 0
	for _, f := range b.rng.Perm(len(b.cols)) {
		if visited >= b.maxFeatures && found {
			break
		}
		pairs := b.buf[:n]
		for i, s := range samples {
			pairs[i] = valueLabel{value: b.cols[f][s], label: b.y[s]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })
		if pairs[0].value == pairs[n-1].value {
			// constant feature
			continue
		}
		visited++
		leftN, leftPos := 0, 0
		for i := 0; i < n-1; i++ {
			leftN++
			leftPos += pairs[i].label
			if pairs[i].value == pairs[i+1].value {
				continue
			}
			rightN := n - leftN
			if leftN < b.tree.minSamplesLeaf || rightN < b.tree.minSamplesLeaf {
				continue
			}
			impurity := (float64(leftN)*gini(leftPos, leftN) + float64(rightN)*gini(pos-leftPos, rightN)) / float64(n)
			gain := parent - impurity
			if gain > 1e-12 && gain > best.gain {
				threshold := pairs[i].value + (pairs[i+1].value-pairs[i].value)/2
				if threshold >= pairs[i+1].value {
					threshold = pairs[i].value
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

// value maps missing values below every observed value.
func value(x float64) float64 {
	if math.IsNaN(x) {
		return -math.MaxFloat64
	}
	return x
}

// columns copies X into column-major order.
func columns(X mat.Matrix) [][]float64 {
	rows, cols := X.Dims()
	out := make([][]float64, cols)
	for j := range out {
		out[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			out[j][i] = value(X.At(i, j))
		}
	}
	return out
}

func writeParams(w io.Writer, params model.Params) error {
	if params == nil {
		params = model.Params{}
	}
	return encoding.WriteGob(w, params)
}

func readParams(r io.Reader) (model.Params, error) {
	var params model.Params
	err := encoding.ReadGob(r, &params)
	return params, err
}

func checkTrainSet(X mat.Matrix, y []int) error {
	if err := model.CheckShape(X, y); err != nil {
		return errors.Trace(err)
	}
	if len(y) == 0 {
		return errors.NotValidf("empty training set")
	}
	if _, cols := X.Dims(); cols == 0 {
		return errors.NotValidf("shape: training set without features")
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return errors.NotValidf("label %d at row %d", label, i)
		}
	}
	return nil
}
