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
	"io"
	"math"
	"time"

	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

const (
	rowBatchSize = 1024
	// julian day of 1970-01-01
	julianUnixEpoch = 2440588
	dateLayout      = "2006-01-02"
)

type columnKind int

const (
	kindBool columnKind = iota
	kindInt
	kindFloat
	kindString
)

// column accumulates the values of one Parquet leaf column.
type column struct {
	name    string
	kind    columnKind
	convert func(parquet.Value) string
	bools   []bool
	ints    []int
	floats  []float64
	strings []string
	nulls   []bool
	hasNull bool
}

func newColumn(field parquet.Field, capacity int) (*column, error) {
	if !field.Leaf() || field.Repeated() {
		return nil, errors.NotSupportedf("nested or repeated column %q", field.Name())
	}
	c := &column{name: field.Name(), nulls: make([]bool, 0, capacity)}
	typ := field.Type()
	logical := typ.LogicalType()
	switch typ.Kind() {
	case parquet.Boolean:
		c.kind = kindBool
	case parquet.Int32, parquet.Int64:
		switch {
		case logical != nil && logical.Timestamp != nil:
			c.kind = kindString
			c.convert = timestampConverter(logical.Timestamp.Unit)
		case logical != nil && logical.Date != nil:
			c.kind = kindString
			c.convert = func(v parquet.Value) string {
				return time.Unix(int64(v.Int32())*86400, 0).UTC().Format(dateLayout)
			}
		default:
			c.kind = kindInt
		}
	case parquet.Int96:
		c.kind = kindString
		c.convert = func(v parquet.Value) string {
			t := v.Int96()
			nanos := int64(t[1])<<32 | int64(t[0])
			days := int64(t[2]) - julianUnixEpoch
			return time.Unix(days*86400, nanos).UTC().Format(time.RFC3339Nano)
		}
	case parquet.Float, parquet.Double:
		c.kind = kindFloat
	case parquet.ByteArray, parquet.FixedLenByteArray:
		c.kind = kindString
		c.convert = func(v parquet.Value) string {
			return string(v.ByteArray())
		}
	default:
		return nil, errors.NotSupportedf("column %q of type %v", field.Name(), typ)
	}
	return c, nil
}

func timestampConverter(unit format.TimeUnit) func(parquet.Value) string {
	return func(v parquet.Value) string {
		var t time.Time
		switch {
		case unit.Millis != nil:
			t = time.UnixMilli(v.Int64())
		case unit.Micros != nil:
			t = time.UnixMicro(v.Int64())
		default:
			t = time.Unix(0, v.Int64())
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
}

func (c *column) append(v parquet.Value) {
	null := v.IsNull()
	c.nulls = append(c.nulls, null)
	c.hasNull = c.hasNull || null
	switch c.kind {
	case kindBool:
		c.bools = append(c.bools, !null && v.Boolean())
	case kindInt:
		var i int
		if !null {
			if v.Kind() == parquet.Int32 {
				i = int(v.Int32())
			} else {
				i = int(v.Int64())
			}
		}
		c.ints = append(c.ints, i)
	case kindFloat:
		f := math.NaN()
		if !null {
			if v.Kind() == parquet.Float {
				f = float64(v.Float())
			} else {
				f = v.Double()
			}
		}
		c.floats = append(c.floats, f)
	case kindString:
		var s string
		if !null {
			s = c.convert(v)
		}
		c.strings = append(c.strings, s)
	}
}

// series converts the column. Integer columns with missing values become
// float columns holding NaN. Other columns keep their type and mark missing
// values as NaN elements.
func (c *column) series() series.Series {
	switch c.kind {
	case kindBool:
		if c.hasNull {
			return series.New(c.withNulls(func(i int) interface{} { return c.bools[i] }), series.Bool, c.name)
		}
		return series.New(c.bools, series.Bool, c.name)
	case kindInt:
		if c.hasNull {
			floats := make([]float64, len(c.ints))
			for i, v := range c.ints {
				if c.nulls[i] {
					floats[i] = math.NaN()
				} else {
					floats[i] = float64(v)
				}
			}
			return series.New(floats, series.Float, c.name)
		}
		return series.New(c.ints, series.Int, c.name)
	case kindFloat:
		return series.New(c.floats, series.Float, c.name)
	default:
		if c.hasNull {
			return series.New(c.withNulls(func(i int) interface{} { return c.strings[i] }), series.String, c.name)
		}
		return series.New(c.strings, series.String, c.name)
	}
}

func (c *column) withNulls(value func(i int) interface{}) []interface{} {
	values := make([]interface{}, len(c.nulls))
	for i, null := range c.nulls {
		if !null {
			values[i] = value(i)
		}
	}
	return values
}

// ReadParquet decodes a flat Parquet file into a table with columns in file
// order.
func ReadParquet(r io.ReaderAt, size int64) (*Table, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errors.NewNotValid(err, "parquet file")
	}
	fields := file.Schema().Fields()
	if len(fields) == 0 {
		return nil, errors.NotValidf("parquet file without columns")
	}
	columns := make([]*column, len(fields))
	for i, field := range fields {
		if columns[i], err = newColumn(field, int(file.NumRows())); err != nil {
			return nil, errors.Trace(err)
		}
	}
	rows := make([]parquet.Row, rowBatchSize)
	for _, rowGroup := range file.RowGroups() {
		if err = readRowGroup(rowGroup, rows, columns); err != nil {
			return nil, errors.Trace(err)
		}
	}
	cols := make([]series.Series, len(columns))
	for i, c := range columns {
		if len(c.nulls) != int(file.NumRows()) {
			return nil, errors.NotValidf("parquet column %q with %d values in %d rows", c.name, len(c.nulls), file.NumRows())
		}
		cols[i] = c.series()
	}
	return NewTableFromSeries(cols...)
}

func readRowGroup(rowGroup parquet.RowGroup, rows []parquet.Row, columns []*column) error {
	reader := rowGroup.Rows()
	defer reader.Close()
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			for _, v := range row {
				if i := v.Column(); i >= 0 && i < len(columns) {
					columns[i].append(v)
				}
			}
		}
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.NewNotValid(err, "parquet row group")
		}
	}
}
