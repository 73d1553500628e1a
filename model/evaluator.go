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

package model

import (
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

type Score struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
	Support   int
}

func (score Score) ZapFields() []zap.Field {
	return []zap.Field{
		zap.Float64("Precision", score.Precision),
		zap.Float64("Recall", score.Recall),
		zap.Float64("F1", score.F1),
		zap.Float64("Accuracy", score.Accuracy),
		zap.Int("Support", score.Support),
	}
}

// BetterThan compares F1 scores.
func (score Score) BetterThan(s Score) bool {
	return score.F1 > s.F1
}

// Evaluate predicts on X and scores the predictions against y.
func Evaluate(m Classifier, X mat.Matrix, y []int) (Score, error) {
	if err := CheckLabels(X, y); err != nil {
		return Score{}, errors.Trace(err)
	}
	predictions, err := m.Predict(X)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return NewScore(y, predictions), nil
}

// CheckLabels returns an error unless X has one row per label, the input is
// not empty and every label is 0 or 1.
func CheckLabels(X mat.Matrix, y []int) error {
	if err := CheckShape(X, y); err != nil {
		return errors.Trace(err)
	}
	if len(y) == 0 {
		return errors.NotValidf("empty evaluation set")
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return errors.NotValidf("label %d at row %d", label, i)
		}
	}
	return nil
}

// NewScore computes all metrics of predictions against labels.
func NewScore(labels, predictions []int) Score {
	return Score{
		Precision: Precision(labels, predictions),
		Recall:    Recall(labels, predictions),
		F1:        F1(labels, predictions),
		Accuracy:  Accuracy(labels, predictions),
		Support:   support(labels),
	}
}

func confusion(labels, predictions []int) (tp, fp, fn, tn int) {
	for i := range labels {
		switch {
		case labels[i] == 1 && predictions[i] == 1:
			tp++
		case labels[i] != 1 && predictions[i] == 1:
			fp++
		case labels[i] == 1:
			fn++
		default:
			tn++
		}
	}
	return
}

func support(labels []int) int {
	n := 0
	for _, label := range labels {
		if label == 1 {
			n++
		}
	}
	return n
}

// Precision is 0 when nothing is predicted positive.
func Precision(labels, predictions []int) float64 {
	tp, fp, _, _ := confusion(labels, predictions)
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

// Recall is 0 when there are no positive labels.
func Recall(labels, predictions []int) float64 {
	tp, _, fn, _ := confusion(labels, predictions)
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

// F1 is the harmonic mean of precision and recall over the positive class.
func F1(labels, predictions []int) float64 {
	precision := Precision(labels, predictions)
	recall := Recall(labels, predictions)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func Accuracy(labels, predictions []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	tp, _, _, tn := confusion(labels, predictions)
	return float64(tp+tn) / float64(len(labels))
}
