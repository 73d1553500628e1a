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
	"sort"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	PickupDatetimeColumn  = "tpep_pickup_datetime"
	DropoffDatetimeColumn = "tpep_dropoff_datetime"
	TripDistanceColumn    = "trip_distance"

	PickupWeekdayColumn = "pickup_weekday"
	PickupHourColumn    = "pickup_hour"
	WorkHoursColumn     = "work_hours"
	PickupMinuteColumn  = "pickup_minute"
	TripTimeColumn      = "trip_time"
	TripSpeedColumn     = "trip_speed"

	// MissingValue replaces missing features.
	MissingValue = -1
)

// AddTripFeatures derives time and speed features from pickup and dropoff
// timestamps and the trip distance:
//
//   - pickup_weekday: day of week, Monday is 0
//   - pickup_hour, pickup_minute: time of day of the pickup
//   - work_hours: 1 for pickups from Monday to Friday between 8:00 and 18:59
//   - trip_time: duration in seconds
//   - trip_speed: miles per second, NaN unless trip_time is positive
func AddTripFeatures(table *Table) (*Table, error) {
	pickups, err := table.times(PickupDatetimeColumn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dropoffs, err := table.times(DropoffDatetimeColumn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	distances, err := table.numeric(TripDistanceColumn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	distance := distances.Float()
	n := table.Nrow()
	weekdays := make([]float64, n)
	hours := make([]float64, n)
	workHours := make([]float64, n)
	minutes := make([]float64, n)
	tripTimes := make([]float64, n)
	tripSpeeds := make([]float64, n)
	for i := 0; i < n; i++ {
		pickup, dropoff := pickups[i], dropoffs[i]
		if pickup.IsZero() {
			weekdays[i], hours[i], workHours[i], minutes[i] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		} else {
			weekday := (int(pickup.Weekday()) + 6) % 7
			weekdays[i] = float64(weekday)
			hours[i] = float64(pickup.Hour())
			minutes[i] = float64(pickup.Minute())
			if weekday <= 4 && pickup.Hour() >= 8 && pickup.Hour() <= 18 {
				workHours[i] = 1
			}
		}
		if pickup.IsZero() || dropoff.IsZero() {
			tripTimes[i] = math.NaN()
		} else {
			tripTimes[i] = dropoff.Sub(pickup).Seconds()
		}
		if tripTimes[i] > 0 {
			tripSpeeds[i] = distance[i] / tripTimes[i]
		} else {
			tripSpeeds[i] = math.NaN()
		}
	}
	return table.mutate(
		series.New(weekdays, series.Float, PickupWeekdayColumn),
		series.New(hours, series.Float, PickupHourColumn),
		series.New(workHours, series.Float, WorkHoursColumn),
		series.New(minutes, series.Float, PickupMinuteColumn),
		series.New(tripTimes, series.Float, TripTimeColumn),
		series.New(tripSpeeds, series.Float, TripSpeedColumn),
	)
}

// times parses a timestamp column. Missing or malformed values are zero.
func (t *Table) times(name string) ([]time.Time, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if col.Type() != series.String {
		return nil, errors.NotValidf("column %q of type %s", name, col.Type())
	}
	records := col.Records()
	isNaN := col.IsNaN()
	times := make([]time.Time, len(records))
	for i, record := range records {
		if isNaN[i] {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339Nano, record); err == nil {
			times[i] = parsed
		} else if parsed, err = dateparse.ParseIn(record, time.UTC); err == nil {
			times[i] = parsed
		}
	}
	return times, nil
}

// Encoder turns table columns into feature vectors. String columns are
// encoded as ids of a FreqDict shared by every table the encoder sees, so
// the same Encoder must be used for training and evaluation tables.
type Encoder struct {
	mu    sync.Mutex
	dicts map[string]*FreqDict
}

func NewEncoder() *Encoder {
	return &Encoder{dicts: make(map[string]*FreqDict)}
}

// dict returns the dictionary of a string column, nil if the column has not
// been encoded.
func (e *Encoder) dict(name string) *FreqDict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts[name]
}

// ZapFields describes the categories of every encoded string column.
func (e *Encoder) ZapFields() []zap.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := lo.Keys(e.dicts)
	sort.Strings(names)
	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		dict := e.dicts[name]
		columnFields := []zap.Field{zap.Int("n_categories", dict.Count())}
		if top := dict.Top(1); len(top) > 0 {
			columnFields = append(columnFields, zap.String("top", top[0].Key), zap.Int("top_count", top[0].Value))
		}
		fields = append(fields, zap.Dict(name, columnFields...))
	}
	return fields
}

// Features builds a matrix with one row per table row and one column per
// feature. Missing values become -1. The data frame reads the string "NaN"
// as a missing value, so a "NaN" category is encoded as -1 as well.
func (e *Encoder) Features(table *Table, columns []string) (*mat.Dense, error) {
	if len(columns) == 0 {
		return nil, errors.NotValidf("empty feature list")
	}
	if table.Nrow() == 0 {
		return nil, errors.NotValidf("shape: table without rows")
	}
	X := mat.NewDense(table.Nrow(), len(columns), nil)
	for j, name := range columns {
		values, err := e.column(table, name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for i, v := range values {
			if math.IsNaN(v) {
				v = MissingValue
			}
			X.Set(i, j, v)
		}
	}
	return X, nil
}

func (e *Encoder) column(table *Table, name string) ([]float64, error) {
	col, err := table.Column(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if col.Type() != series.String {
		return col.Float(), nil
	}
	records := col.Records()
	isNaN := col.IsNaN()
	values := make([]float64, len(records))
	e.mu.Lock()
	defer e.mu.Unlock()
	dict, exist := e.dicts[name]
	if !exist {
		dict = NewFreqDict()
		e.dicts[name] = dict
	}
	for i, record := range records {
		if isNaN[i] {
			values[i] = math.NaN()
		} else {
			values[i] = float64(dict.Id(record))
		}
	}
	return values, nil
}

// Features builds a feature matrix with a fresh Encoder.
func Features(table *Table, columns []string) (*mat.Dense, error) {
	return NewEncoder().Features(table, columns)
}

// Labels returns the target column as integers.
func Labels(table *Table, targetCol string) ([]int, error) {
	if targetCol == "" {
		targetCol = DefaultTargetColumn
	}
	labels, err := table.Int(targetCol)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return labels, nil
}
