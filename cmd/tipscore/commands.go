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

package main

import (
	"fmt"

	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/pipeline"
	"github.com/gorse-io/tipscore/storage/blob"
	"github.com/gorse-io/tipscore/storage/history"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train <dataset>",
	Short: "Train a random forest on a dataset and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, closeHistory, err := newRunner(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer closeHistory()
		report, err := runner.Train(cmd.Context(), args[0])
		if err != nil {
			return errors.Trace(err)
		}
		return printReport(report)
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate <dataset>...",
	Short: "Evaluate the stored model on datasets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, closeHistory, err := newRunner(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer closeHistory()
		report, err := runner.Evaluate(cmd.Context(), args)
		if err != nil {
			return errors.Trace(err)
		}
		return printReport(report)
	},
}

var runCommand = &cobra.Command{
	Use:   "run <train dataset> <dataset>...",
	Short: "Train on the first dataset, then evaluate on the others and plot F1 scores",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, closeHistory, err := newRunner(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer closeHistory()
		report, err := runner.Run(cmd.Context(), args[0], args[1:])
		if err != nil {
			return errors.Trace(err)
		}
		return printReport(report)
	},
}

var plotCommand = &cobra.Command{
	Use:   "plot",
	Short: "Plot F1 scores of a recorded run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if conf.History.Store == "" {
			return errors.NotValidf("plot without history store")
		}
		var db history.Database
		closeHistory, err := openHistory(func(d history.Database) { db = d })
		if err != nil {
			return errors.Trace(err)
		}
		defer closeHistory()
		runID, _ := cmd.Flags().GetString("run")
		if runID == "" {
			runs, err := db.Runs(cmd.Context())
			if err != nil {
				return errors.Trace(err)
			}
			if len(runs) == 0 {
				return errors.NotFoundf("recorded runs")
			}
			runID = runs[len(runs)-1].RunID
		}
		if conf.Plot.Path == "" {
			return errors.NotValidf("empty plot path")
		}
		records, err := db.List(cmd.Context(), runID)
		if err != nil {
			return errors.Trace(err)
		}
		if err = pipeline.SavePlot(cmd.Context(), history.Series(records), conf.Plot, blob.Options{Storage: conf.Storage}); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("plot run", zap.String("run_id", runID), zap.String("path", log.RedactURL(conf.Plot.Path)))
		return nil
	},
}

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if conf.History.Store == "" {
			return errors.NotValidf("runs without history store")
		}
		var db history.Database
		closeHistory, err := openHistory(func(d history.Database) { db = d })
		if err != nil {
			return errors.Trace(err)
		}
		defer closeHistory()
		runs, err := db.Runs(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(stdout)
		table.Header("Run", "Periods", "Mean F1")
		if err = table.Bulk(lo.Map(runs, func(run history.Run, _ int) []string {
			return []string{run.RunID, fmt.Sprint(run.Periods), fmt.Sprintf("%.4f", run.MeanF1)}
		})); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

func init() {
	plotCommand.Flags().String("run", "", "run id (default the latest run)")
	rootCommand.AddCommand(trainCommand, evaluateCommand, runCommand, plotCommand, runsCommand)
}
