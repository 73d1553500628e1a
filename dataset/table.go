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
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Table is an in-memory table of trip records. Operations never modify a
// table in place.
type Table struct {
	df dataframe.DataFrame
}

// NewTable wraps a data frame.
func NewTable(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, errors.Trace(df.Err)
	}
	return &Table{df: df}, nil
}

// NewTableFromSeries builds a table from columns of equal length.
func NewTableFromSeries(columns ...series.Series) (*Table, error) {
	return NewTable(dataframe.New(columns...))
}

func (t *Table) DataFrame() dataframe.DataFrame {
	return t.df
}

func (t *Table) Nrow() int {
	return t.df.Nrow()
}

func (t *Table) Ncol() int {
	return t.df.Ncol()
}

// Names returns column names in file order.
func (t *Table) Names() []string {
	return t.df.Names()
}

func (t *Table) Types() []series.Type {
	return t.df.Types()
}

func (t *Table) HasColumn(name string) bool {
	return lo.Contains(t.df.Names(), name)
}

// Column returns a column by name.
func (t *Table) Column(name string) (series.Series, error) {
	if !t.HasColumn(name) {
		return series.Series{}, errors.NotFoundf("column %q", name)
	}
	return t.df.Col(name), nil
}

// Float returns a column as floats. Missing values are NaN.
func (t *Table) Float(name string) ([]float64, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return col.Float(), nil
}

// Int returns a column as integers. Missing values are an error.
func (t *Table) Int(name string) ([]int, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	values, err := col.Int()
	if err != nil {
		return nil, errors.NewNotValid(err, "column "+name)
	}
	return values, nil
}

// String returns a column as strings. Missing values are "NaN".
func (t *Table) String(name string) ([]string, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return col.Records(), nil
}

// numeric returns a numeric column or an error naming the column.
func (t *Table) numeric(name string) (series.Series, error) {
	col, err := t.Column(name)
	if err != nil {
		return series.Series{}, errors.Trace(err)
	}
	if col.Type() != series.Float && col.Type() != series.Int {
		return series.Series{}, errors.NotValidf("column %q of type %s", name, col.Type())
	}
	return col, nil
}

// mutate adds or replaces columns.
func (t *Table) mutate(columns ...series.Series) (*Table, error) {
	df := t.df
	for _, col := range columns {
		df = df.Mutate(col)
		if df.Err != nil {
			return nil, errors.Annotatef(df.Err, "column %q", col.Name)
		}
	}
	return &Table{df: df}, nil
}
