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
	"math"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	table, err := NewTableFromSeries(
		series.New([]int{0, 1, 2, 3}, series.Int, "trip_id"),
		series.New([]float64{10, 900, math.NaN(), 5}, series.Float, FareAmountColumn),
		series.New([]interface{}{"N", "Y", nil, "N"}, series.String, "store_and_fwd_flag"),
		series.New([]bool{true, true, false, false}, series.Bool, "airport"),
	)
	require.NoError(t, err)

	filtered, err := Filter(table, "fare_amount < 500")
	require.NoError(t, err)
	ids, err := filtered.Int("trip_id")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, ids)
	assert.Equal(t, 4, table.Nrow())

	filtered, err = Filter(table, `store_and_fwd_flag != "Y" && airport`)
	require.NoError(t, err)
	ids, err = filtered.Int("trip_id")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ids)

	filtered, err = Filter(table, `store_and_fwd_flag == ""`)
	require.NoError(t, err)
	ids, err = filtered.Int("trip_id")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids)

	filtered, err = Filter(table, "trip_id > 10")
	require.NoError(t, err)
	assert.Equal(t, 0, filtered.Nrow())

	filtered, err = Filter(table, " ")
	require.NoError(t, err)
	assert.Same(t, table, filtered)
}

func TestFilterInvalid(t *testing.T) {
	table := newTripTable(t, []float64{10}, []float64{1})
	_, err := Filter(table, "fare_amount +")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Filter(table, "fare_amount * 2")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Filter(table, "distance > 1")
	assert.True(t, errors.Is(err, errors.NotValid))
}
