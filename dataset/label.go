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
)

const (
	FareAmountColumn  = "fare_amount"
	TipAmountColumn   = "tip_amount"
	TipFractionColumn = "tip_fraction"

	DefaultTargetColumn = "high_tip"
	DefaultTipThreshold = 0.2
)

type targetOptions struct {
	threshold float64
}

type TargetOption func(*targetOptions)

// WithTipThreshold sets the tip fraction above which a trip is labeled 1.
func WithTipThreshold(threshold float64) TargetOption {
	return func(o *targetOptions) { o.threshold = threshold }
}

// AddTarget drops trips without a positive fare, then adds the tip_fraction
// column and a 0/1 target column which is 1 if and only if tip_fraction is
// above the threshold. Row order is preserved. An empty targetCol means
// high_tip. Applying AddTarget to its own output returns an equal table.
func AddTarget(table *Table, targetCol string, opts ...TargetOption) (*Table, error) {
	options := targetOptions{threshold: DefaultTipThreshold}
	for _, opt := range opts {
		opt(&options)
	}
	if targetCol == "" {
		targetCol = DefaultTargetColumn
	}
	if targetCol == FareAmountColumn || targetCol == TipAmountColumn || targetCol == TipFractionColumn {
		return nil, errors.NotValidf("target column %q", targetCol)
	}
	if _, err := table.numeric(FareAmountColumn); err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := table.numeric(TipAmountColumn); err != nil {
		return nil, errors.Trace(err)
	}
	// missing fares compare false and are dropped as well
	filtered := table.df.Filter(dataframe.F{
		Colname:    FareAmountColumn,
		Comparator: series.Greater,
		Comparando: 0,
	})
	if filtered.Err != nil {
		return nil, errors.Annotatef(filtered.Err, "filter %s", FareAmountColumn)
	}
	labeled := &Table{df: filtered}
	fares := filtered.Col(FareAmountColumn).Float()
	tips := filtered.Col(TipAmountColumn).Float()
	fractions := make([]float64, len(fares))
	targets := make([]int, len(fares))
	for i := range fares {
		fractions[i] = tips[i] / fares[i]
		if fractions[i] > options.threshold {
			targets[i] = 1
		}
	}
	return labeled.mutate(
		series.New(fractions, series.Float, TipFractionColumn),
		series.New(targets, series.Int, targetCol),
	)
}
