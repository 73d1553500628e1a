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

package pipeline

import (
	"time"

	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelRunID  = "run_id"
	LabelPeriod = "period"
	LabelMetric = "metric"
)

// Metrics of a run. They are kept in a registry of their own and written to
// a file for the node exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	TrainSeconds         prometheus.Gauge
	TrainRows            prometheus.Gauge
	EvaluateSeconds      prometheus.Gauge
	PeriodScoreVec       *prometheus.GaugeVec
	PeriodRowsVec        *prometheus.GaugeVec
	LastSuccessTimestamp prometheus.Gauge
}

func NewMetrics(runID string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{LabelRunID: runID}
	return &Metrics{
		registry: registry,
		TrainSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tipscore",
			Subsystem:   "pipeline",
			Name:        "train_seconds",
			ConstLabels: labels,
		}),
		TrainRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tipscore",
			Subsystem:   "pipeline",
			Name:        "train_rows",
			ConstLabels: labels,
		}),
		EvaluateSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tipscore",
			Subsystem:   "pipeline",
			Name:        "evaluate_seconds",
			ConstLabels: labels,
		}),
		PeriodScoreVec: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "tipscore",
			Subsystem:   "pipeline",
			Name:        "period_score",
			ConstLabels: labels,
		}, []string{LabelPeriod, LabelMetric}),
		PeriodRowsVec: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "tipscore",
			Subsystem:   "pipeline",
			Name:        "period_rows",
			ConstLabels: labels,
		}, []string{LabelPeriod}),
		LastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tipscore",
			Subsystem:   "pipeline",
			Name:        "last_success_timestamp_seconds",
			ConstLabels: labels,
		}),
	}
}

// ObservePeriod records the score of a period.
func (m *Metrics) ObservePeriod(period string, score model.Score, rows int) {
	m.PeriodScoreVec.WithLabelValues(period, "precision").Set(score.Precision)
	m.PeriodScoreVec.WithLabelValues(period, "recall").Set(score.Recall)
	m.PeriodScoreVec.WithLabelValues(period, "f1").Set(score.F1)
	m.PeriodScoreVec.WithLabelValues(period, "accuracy").Set(score.Accuracy)
	m.PeriodRowsVec.WithLabelValues(period).Set(float64(rows))
}

// WriteTextfile marks the run successful and writes all metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	m.LastSuccessTimestamp.Set(float64(time.Now().Unix()))
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Annotatef(err, "write metrics %s", path)
	}
	return nil
}
