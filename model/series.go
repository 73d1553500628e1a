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
	"github.com/samber/lo"
)

// ScoreSeries maps period labels to scores in insertion order.
type ScoreSeries struct {
	periods []string
	scores  map[string]float64
}

func NewScoreSeries() *ScoreSeries {
	return &ScoreSeries{scores: make(map[string]float64)}
}

// Set stores the score of a period. Setting an existing period keeps its
// original position.
func (s *ScoreSeries) Set(period string, score float64) {
	if _, exist := s.scores[period]; !exist {
		s.periods = append(s.periods, period)
	}
	s.scores[period] = score
}

func (s *ScoreSeries) Get(period string) (float64, bool) {
	score, exist := s.scores[period]
	return score, exist
}

func (s *ScoreSeries) Len() int {
	return len(s.periods)
}

func (s *ScoreSeries) Periods() []string {
	return append([]string(nil), s.periods...)
}

func (s *ScoreSeries) Scores() []float64 {
	return lo.Map(s.periods, func(period string, _ int) float64 {
		return s.scores[period]
	})
}

func (s *ScoreSeries) Entries() []lo.Entry[string, float64] {
	return lo.Map(s.periods, func(period string, _ int) lo.Entry[string, float64] {
		return lo.Entry[string, float64]{Key: period, Value: s.scores[period]}
	})
}
