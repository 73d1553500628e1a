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
	"context"
	"math"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/gorse-io/tipscore/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func loadSampleTrips(t *testing.T) *Table {
	path := writeTrips(t, "trips.parquet", sampleTrips())
	table, err := LoadDataset(context.Background(), path, blob.Options{})
	require.NoError(t, err)
	return table
}

func TestAddTripFeatures(t *testing.T) {
	table, err := AddTripFeatures(loadSampleTrips(t))
	require.NoError(t, err)
	assert.Equal(t, 4, table.Nrow())

	weekdays, err := table.Float(PickupWeekdayColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5, 6, 0}, weekdays)
	hours, err := table.Float(PickupHourColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 20, 23, 18}, hours)
	minutes, err := table.Float(PickupMinuteColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 15, 59, 5}, minutes)
	workHours, err := table.Float(WorkHoursColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 1}, workHours)
	tripTimes, err := table.Float(TripTimeColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{600, 0, 1200, 1200}, tripTimes)
	speeds, err := table.Float(TripSpeedColumn)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, speeds[0], 1e-12)
	assert.True(t, math.IsNaN(speeds[1]))
	assert.InDelta(t, 8.0/1200, speeds[2], 1e-12)
	assert.InDelta(t, 4.8/1200, speeds[3], 1e-12)
}

func TestAddTripFeaturesMissingTimestamp(t *testing.T) {
	table, err := NewTableFromSeries(
		series.New([]interface{}{"2022-02-01T08:30:00Z", nil}, series.String, PickupDatetimeColumn),
		series.New([]interface{}{nil, "2022-02-01T08:40:00Z"}, series.String, DropoffDatetimeColumn),
		series.New([]float64{1, 2}, series.Float, TripDistanceColumn),
	)
	require.NoError(t, err)
	table, err = AddTripFeatures(table)
	require.NoError(t, err)
	hours, err := table.Float(PickupHourColumn)
	require.NoError(t, err)
	assert.Equal(t, 8.0, hours[0])
	assert.True(t, math.IsNaN(hours[1]))
	tripTimes, err := table.Float(TripTimeColumn)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(tripTimes[0]))
	assert.True(t, math.IsNaN(tripTimes[1]))

	X, err := Features(table, []string{PickupHourColumn, TripTimeColumn, TripSpeedColumn})
	require.NoError(t, err)
	assert.Equal(t, []float64{8, MissingValue, MissingValue}, X.RawRowView(0))
	assert.Equal(t, []float64{MissingValue, MissingValue, MissingValue}, X.RawRowView(1))
}

func TestAddTripFeaturesTimestampLayouts(t *testing.T) {
	table, err := NewTableFromSeries(
		series.New([]string{"2022-02-01 08:30:00", "02/05/2022 20:15", "not a time"}, series.String, PickupDatetimeColumn),
		series.New([]string{"2022-02-01 08:40:00", "2022-02-05T20:25:00Z", "2022-02-05T20:25:00Z"}, series.String, DropoffDatetimeColumn),
		series.New([]float64{3, 1, 1}, series.Float, TripDistanceColumn),
	)
	require.NoError(t, err)
	table, err = AddTripFeatures(table)
	require.NoError(t, err)
	hours, err := table.Float(PickupHourColumn)
	require.NoError(t, err)
	assert.Equal(t, 8.0, hours[0])
	assert.Equal(t, 20.0, hours[1])
	assert.True(t, math.IsNaN(hours[2]))
	tripTimes, err := table.Float(TripTimeColumn)
	require.NoError(t, err)
	assert.Equal(t, 600.0, tripTimes[0])
	assert.Equal(t, 600.0, tripTimes[1])
	assert.True(t, math.IsNaN(tripTimes[2]))
}

func TestAddTripFeaturesSchemaError(t *testing.T) {
	table, err := NewTableFromSeries(series.New([]float64{1}, series.Float, TripDistanceColumn))
	require.NoError(t, err)
	_, err = AddTripFeatures(table)
	assert.True(t, errors.Is(err, errors.NotFound))

	table, err = NewTableFromSeries(
		series.New([]int{1}, series.Int, PickupDatetimeColumn),
		series.New([]int{2}, series.Int, DropoffDatetimeColumn),
		series.New([]float64{1}, series.Float, TripDistanceColumn),
	)
	require.NoError(t, err)
	_, err = AddTripFeatures(table)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestEncoderNaNCategory(t *testing.T) {
	table, err := NewTableFromSeries(series.New([]string{"NaN", "N", "Y"}, series.String, "store_and_fwd_flag"))
	require.NoError(t, err)
	X, err := Features(table, []string{"store_and_fwd_flag"})
	require.NoError(t, err)
	assert.Equal(t, []float64{MissingValue, 0, 1}, X.RawMatrix().Data)
}

func TestEncoder(t *testing.T) {
	table := loadSampleTrips(t)
	encoder := NewEncoder()
	X, err := encoder.Features(table, []string{"passenger_count", "store_and_fwd_flag", TripDistanceColumn, "VendorID"})
	require.NoError(t, err)
	rows, cols := X.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, []float64{2, 0, 3, 1}, X.RawRowView(0))
	assert.Equal(t, []float64{MissingValue, MissingValue, 0, 2}, X.RawRowView(1))
	assert.Equal(t, []float64{1, 1, 8, 2}, X.RawRowView(2))
	assert.Equal(t, []float64{1, 0, 4.8, 1}, X.RawRowView(3))

	dict := encoder.dict("store_and_fwd_flag")
	require.NotNil(t, dict)
	assert.Equal(t, 2, dict.Count())
	assert.Nil(t, encoder.dict("passenger_count"))

	fields := encoder.ZapFields()
	require.Len(t, fields, 1)
	enc := zapcore.NewMapObjectEncoder()
	fields[0].AddTo(enc)
	assert.Equal(t, map[string]interface{}{
		"n_categories": 2,
		"top":          "N",
		"top_count":    2,
	}, enc.Fields["store_and_fwd_flag"])

	// ids are shared across tables
	other, err := NewTableFromSeries(series.New([]string{"Y", "R", "N"}, series.String, "store_and_fwd_flag"))
	require.NoError(t, err)
	X, err = encoder.Features(other, []string{"store_and_fwd_flag"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0}, X.RawMatrix().Data)
}

func TestFeaturesError(t *testing.T) {
	table := loadSampleTrips(t)
	_, err := Features(table, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Features(table, []string{"PULocationID"})
	assert.True(t, errors.Is(err, errors.NotFound))

	empty, err := NewTableFromSeries(series.New([]float64{}, series.Float, TripDistanceColumn))
	require.NoError(t, err)
	_, err = Features(empty, []string{TripDistanceColumn})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLabels(t *testing.T) {
	table, err := NewTableFromSeries(series.New([]int{0, 1, 1}, series.Int, "label"))
	require.NoError(t, err)
	labels, err := Labels(table, "label")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, labels)
	_, err = Labels(table, "")
	assert.True(t, errors.Is(err, errors.NotFound))
}
