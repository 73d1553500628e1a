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
	"strings"

	"github.com/expr-lang/expr"
	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
)

// Filter keeps the rows for which a boolean expression holds. Columns are
// variables of the expression: numeric columns are float64 with NaN for
// missing values, string columns are strings with "" for missing values and
// boolean columns are bool with false for missing values. For example:
//
//	fare_amount < 500 && payment_type == 1
//
// An empty expression keeps every row.
func Filter(table *Table, expression string) (*Table, error) {
	if strings.TrimSpace(expression) == "" {
		return table, nil
	}
	names := table.Names()
	columns := make([]func(int) any, len(names))
	env := make(map[string]any, len(names))
	for j, name := range names {
		col := table.df.Col(name)
		switch col.Type() {
		case series.Float, series.Int:
			values := col.Float()
			columns[j] = func(i int) any { return values[i] }
			env[name] = float64(0)
		case series.Bool:
			columns[j] = func(i int) any {
				elem := col.Elem(i)
				if elem.IsNA() {
					return false
				}
				b, _ := elem.Bool()
				return b
			}
			env[name] = false
		default:
			columns[j] = func(i int) any {
				elem := col.Elem(i)
				if elem.IsNA() {
					return ""
				}
				return elem.String()
			}
			env[name] = ""
		}
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, errors.NewNotValid(err, "filter "+expression)
	}
	keep := make([]bool, table.Nrow())
	for i := range keep {
		for j, name := range names {
			env[name] = columns[j](i)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return nil, errors.Annotatef(err, "filter row %d", i)
		}
		keep[i] = result.(bool)
	}
	return NewTable(table.df.Subset(keep))
}
