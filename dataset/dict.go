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

package dataset

import (
	"sort"

	"github.com/samber/lo"
)

// FreqDict assigns dense ids to categories in order of first appearance and
// counts the occurrences of each category.
type FreqDict struct {
	ids        map[string]int
	categories []string
	counts     []int
}

func NewFreqDict() *FreqDict {
	return &FreqDict{ids: make(map[string]int)}
}

// Count returns the number of distinct categories.
func (d *FreqDict) Count() int {
	return len(d.categories)
}

// Id returns the id of a category, adding it if it is new.
func (d *FreqDict) Id(category string) int {
	id, exist := d.ids[category]
	if !exist {
		id = len(d.categories)
		d.ids[category] = id
		d.categories = append(d.categories, category)
		d.counts = append(d.counts, 0)
	}
	d.counts[id]++
	return id
}

// Top returns at most n categories with their counts, most frequent first.
// Ties keep id order.
func (d *FreqDict) Top(n int) []lo.Entry[string, int] {
	entries := make([]lo.Entry[string, int], len(d.categories))
	for id, category := range d.categories {
		entries[id] = lo.Entry[string, int]{Key: category, Value: d.counts[id]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if n < len(entries) {
		entries = entries[:max(n, 0)]
	}
	return entries
}
