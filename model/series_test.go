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
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestScoreSeries(t *testing.T) {
	s := NewScoreSeries()
	assert.Zero(t, s.Len())
	s.Set("2022-02", 0.71)
	s.Set("2022-03", 0.69)
	s.Set("2022-04", 0.68)
	// re-setting keeps the position
	s.Set("2022-02", 0.72)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"2022-02", "2022-03", "2022-04"}, s.Periods())
	assert.Equal(t, []float64{0.72, 0.69, 0.68}, s.Scores())
	score, exist := s.Get("2022-03")
	assert.True(t, exist)
	assert.Equal(t, 0.69, score)
	_, exist = s.Get("2022-05")
	assert.False(t, exist)
	assert.Equal(t, lo.Entry[string, float64]{Key: "2022-04", Value: 0.68}, s.Entries()[2])
}
