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
	"context"
	"path"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/common/parallel"
	"github.com/gorse-io/tipscore/config"
	"github.com/gorse-io/tipscore/dataset"
	"github.com/gorse-io/tipscore/model"
	"github.com/gorse-io/tipscore/plot"
	"github.com/gorse-io/tipscore/storage/blob"
	"github.com/gorse-io/tipscore/storage/history"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// tripFeatures are derived by dataset.AddTripFeatures.
var tripFeatures = []string{
	dataset.PickupWeekdayColumn,
	dataset.PickupHourColumn,
	dataset.WorkHoursColumn,
	dataset.PickupMinuteColumn,
	dataset.TripTimeColumn,
	dataset.TripSpeedColumn,
}

// PeriodResult is the evaluation of one dataset.
type PeriodResult struct {
	Period   string
	Location string
	Rows     int
	Score    model.Score
	// Degraded is set when the previous period scored better.
	Degraded bool
}

// Report summarizes a run.
type Report struct {
	RunID      uuid.UUID
	ModelRunID uuid.UUID // run which trained the model
	ModelPath  string
	TrainRows  int
	TrainScore model.Score
	Periods    []PeriodResult
	Scores     *model.ScoreSeries
}

// Runner trains a model on one dataset and tracks its F1 score over later
// datasets.
type Runner struct {
	Config  *config.Config
	History history.Database // optional
	Tracer  trace.Tracer
	// Jobs is the number of datasets evaluated concurrently.
	Jobs int
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		Config: cfg,
		Tracer: otel.Tracer("github.com/gorse-io/tipscore/pipeline"),
		Jobs:   1,
	}
}

// Run trains a model on trainLocation, then evaluates the stored model on
// each evaluation location. A location ending with a slash stands for all
// Parquet files under it. Scores are recorded in the history store, the
// metrics textfile and the plot when they are configured.
func (r *Runner) Run(ctx context.Context, trainLocation string, evalLocations []string) (*Report, error) {
	ctx, span := r.Tracer.Start(ctx, "Run", trace.WithAttributes(attribute.String("train_location", log.RedactURL(trainLocation))))
	defer span.End()
	report, err := r.run(ctx, trainLocation, evalLocations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return report, nil
}

func (r *Runner) run(ctx context.Context, trainLocation string, evalLocations []string) (*Report, error) {
	locations, err := r.expand(ctx, evalLocations)
	if err != nil {
		return nil, errors.Trace(err)
	}
	report, encoder, metrics, err := r.train(ctx, trainLocation)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = r.evaluate(ctx, report, encoder, locations, metrics); err != nil {
		return nil, errors.Trace(err)
	}
	if err = r.finish(ctx, report, metrics); err != nil {
		return nil, errors.Trace(err)
	}
	return report, nil
}

// Train fits a model on trainLocation and stores it.
func (r *Runner) Train(ctx context.Context, trainLocation string) (*Report, error) {
	ctx, span := r.Tracer.Start(ctx, "Train", trace.WithAttributes(attribute.String("train_location", log.RedactURL(trainLocation))))
	defer span.End()
	report, _, metrics, err := r.train(ctx, trainLocation)
	if err == nil && r.Config.Metrics.Textfile != "" {
		err = metrics.WriteTextfile(r.Config.Metrics.Textfile)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Trace(err)
	}
	return report, nil
}

func (r *Runner) train(ctx context.Context, trainLocation string) (*Report, *dataset.Encoder, *Metrics, error) {
	report := &Report{RunID: uuid.New(), ModelPath: r.Config.Model.Path}
	report.ModelRunID = report.RunID
	metrics := NewMetrics(report.RunID.String())
	log.Logger().Info("start run",
		zap.String("run_id", report.RunID.String()),
		zap.String("train_location", log.RedactURL(trainLocation)))
	encoder := dataset.NewEncoder()
	X, y, err := r.prepare(ctx, trainLocation, encoder)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	report.TrainRows = len(y)
	log.Logger().Debug("encode categories", encoder.ZapFields()...)
	trainCtx, span := r.Tracer.Start(ctx, "Fit")
	m, elapsed, err := trainModel(trainCtx, X, y, r.Config.Model.Path, r.Config, report.RunID)
	span.End()
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	metrics.TrainSeconds.Set(elapsed.Seconds())
	metrics.TrainRows.Set(float64(report.TrainRows))
	if report.TrainScore, err = model.Evaluate(m, X, y); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	log.Logger().Info("train score", report.TrainScore.ZapFields()...)
	return report, encoder, metrics, nil
}

// Evaluate scores the stored model on each evaluation location.
func (r *Runner) Evaluate(ctx context.Context, evalLocations []string) (*Report, error) {
	ctx, span := r.Tracer.Start(ctx, "Evaluate")
	defer span.End()
	report := &Report{RunID: uuid.New(), ModelPath: r.Config.Model.Path}
	metrics := NewMetrics(report.RunID.String())
	locations, err := r.expand(ctx, evalLocations)
	if err == nil {
		err = r.evaluate(ctx, report, dataset.NewEncoder(), locations, metrics)
	}
	if err == nil {
		err = r.finish(ctx, report, metrics)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Trace(err)
	}
	return report, nil
}

func (r *Runner) expand(ctx context.Context, evalLocations []string) ([]string, error) {
	var locations []string
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, location := range evalLocations {
		expanded, err := blob.Expand(ctx, location, r.blobOptions())
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, loc := range expanded {
			if !seen.Add(loc) {
				log.Logger().Warn("skip repeated evaluation dataset", log.Location(loc))
				continue
			}
			locations = append(locations, loc)
		}
	}
	if len(locations) == 0 {
		return nil, errors.NotValidf("no evaluation datasets in %v", evalLocations)
	}
	return locations, nil
}

func (r *Runner) evaluate(ctx context.Context, report *Report, encoder *dataset.Encoder, locations []string, metrics *Metrics) error {
	m, header, err := ReadModel(ctx, r.Config.Model.Path, r.blobOptions())
	if err != nil {
		return errors.Trace(err)
	}
	report.ModelRunID = header.RunID
	start := time.Now()
	results := make([]PeriodResult, len(locations))
	jobs := max(r.Jobs, 1)
	if err = parallel.Parallel(ctx, len(locations), jobs, func(_, i int) error {
		evalCtx, span := r.Tracer.Start(ctx, "EvaluatePeriod", trace.WithAttributes(attribute.String("location", log.RedactURL(locations[i]))))
		defer span.End()
		X, y, err := r.prepare(evalCtx, locations[i], encoder)
		if err != nil {
			return errors.Trace(err)
		}
		score, err := model.Evaluate(m, X, y)
		if err != nil {
			return errors.Annotatef(err, "evaluate %s", log.RedactURL(locations[i]))
		}
		results[i] = PeriodResult{
			Period:   dataset.Period(locations[i]),
			Location: locations[i],
			Rows:     len(y),
			Score:    score,
		}
		span.SetAttributes(attribute.Float64("f1", score.F1))
		log.Logger().Info("evaluate period", append([]zap.Field{
			zap.String("period", results[i].Period),
			zap.Int("n_rows", len(y)),
		}, score.ZapFields()...)...)
		return nil
	}); err != nil {
		return errors.Trace(err)
	}
	metrics.EvaluateSeconds.Set(time.Since(start).Seconds())

	report.Periods = results
	report.Scores = model.NewScoreSeries()
	for i := range results {
		result := &results[i]
		if _, exist := report.Scores.Get(result.Period); exist {
			log.Logger().Warn("duplicate period", zap.String("period", result.Period),
				log.Location(result.Location))
		}
		if i > 0 && results[i-1].Score.BetterThan(result.Score) {
			result.Degraded = true
			log.Logger().Info("score degraded",
				zap.String("period", result.Period),
				zap.String("previous_period", results[i-1].Period),
				zap.Float64("f1", result.Score.F1),
				zap.Float64("previous_f1", results[i-1].Score.F1))
		}
		report.Scores.Set(result.Period, result.Score.F1)
		metrics.ObservePeriod(result.Period, result.Score, result.Rows)
	}
	return nil
}

// finish records the scores of a run.
func (r *Runner) finish(ctx context.Context, report *Report, metrics *Metrics) error {
	if r.History != nil {
		records := lo.Map(report.Periods, func(result PeriodResult, _ int) history.ScoreRecord {
			return history.NewScoreRecord(report.RunID.String(), result.Period, result.Location,
				report.ModelPath, result.Score, result.Rows)
		})
		if err := r.History.Insert(ctx, records); err != nil {
			return errors.Annotate(err, "record scores")
		}
	}
	if r.Config.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(r.Config.Metrics.Textfile); err != nil {
			return errors.Trace(err)
		}
	}
	if r.Config.Plot.Path != "" {
		if err := SavePlot(ctx, report.Scores, r.Config.Plot, r.blobOptions()); err != nil {
			return errors.Trace(err)
		}
	}
	log.Logger().Info("complete run",
		zap.String("run_id", report.RunID.String()),
		zap.Strings("periods", report.Scores.Periods()),
		zap.Float64s("f1", report.Scores.Scores()))
	return nil
}

// prepare loads a dataset and turns it into features and labels.
func (r *Runner) prepare(ctx context.Context, location string, encoder *dataset.Encoder) (*mat.Dense, []int, error) {
	ctx, span := r.Tracer.Start(ctx, "Prepare", trace.WithAttributes(attribute.String("location", log.RedactURL(location))))
	defer span.End()
	table, err := dataset.LoadDataset(ctx, location, r.blobOptions())
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	cfg := r.Config.Dataset
	if table, err = dataset.AddTarget(table, cfg.TargetColumn, dataset.WithTipThreshold(cfg.TipThreshold)); err != nil {
		return nil, nil, errors.Annotatef(err, "label %s", log.RedactURL(location))
	}
	if lo.Some(cfg.Features, tripFeatures) {
		if table, err = dataset.AddTripFeatures(table); err != nil {
			return nil, nil, errors.Annotatef(err, "extract features from %s", log.RedactURL(location))
		}
	}
	if cfg.Filter != "" {
		n := table.Nrow()
		if table, err = dataset.Filter(table, cfg.Filter); err != nil {
			return nil, nil, errors.Annotatef(err, "filter %s", log.RedactURL(location))
		}
		log.Logger().Debug("filter trips", log.Location(location),
			zap.Int("n_rows", table.Nrow()), zap.Int("n_dropped", n-table.Nrow()))
	}
	X, err := encoder.Features(table, cfg.Features)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "extract features from %s", log.RedactURL(location))
	}
	y, err := dataset.Labels(table, cfg.TargetColumn)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	span.SetAttributes(attribute.Int("n_rows", len(y)))
	return X, y, nil
}

func (r *Runner) blobOptions() blob.Options {
	return blob.Options{
		Storage:  r.Config.Storage,
		Progress: r.Config.Dataset.DownloadProgress,
	}
}

// SavePlot draws the score series to a local file or a remote location.
func SavePlot(ctx context.Context, scores *model.ScoreSeries, cfg config.PlotConfig, opts blob.Options) error {
	plotOptions := plot.NewOptions(cfg)
	loc, err := blob.ParseLocation(cfg.Path)
	if err != nil {
		return errors.Trace(err)
	}
	if loc.IsLocal() {
		plotOptions.Path = loc.Name
		return errors.Trace(plot.PlotF1Scores(scores, plotOptions))
	}
	plotOptions.Format = strings.TrimPrefix(path.Ext(loc.Base()), ".")
	w, err := blob.Create(ctx, cfg.Path, opts)
	if err != nil {
		return errors.Trace(err)
	}
	plotOptions.Writer = w
	if err = plot.PlotF1Scores(scores, plotOptions); err != nil {
		abort(w, err)
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}
