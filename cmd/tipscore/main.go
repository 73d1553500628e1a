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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/gorse-io/tipscore/cmd/version"
	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/config"
	"github.com/gorse-io/tipscore/pipeline"
	"github.com/gorse-io/tipscore/storage/history"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	conf            *config.Config
	shutdownTracing func(context.Context) error
	stdout          io.Writer = os.Stdout
)

var rootCommand = &cobra.Command{
	Use:   "tipscore",
	Short: "Train a taxi tip classifier and track its F1 score month by month.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)

		// load config
		configPath, _ := cmd.Flags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		var err error
		if conf, err = config.LoadConfig(configPath); err != nil {
			return errors.Trace(err)
		}
		if err = overrideConfig(cmd); err != nil {
			return errors.Trace(err)
		}

		// setup tracing
		tp, shutdown, err := conf.Tracing.NewTracerProvider(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		otel.SetTracerProvider(tp)
		otel.SetErrorHandler(log.GetErrorHandler())
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Logger().Warn("failed to shutdown tracer provider", zap.Error(err))
			}
		}
		_ = log.Logger().Sync()
	},
	SilenceUsage: true,
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show the version of tipscore",
	// no config needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(stdout, version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().String("model", "", "model artifact path (overrides model.path)")
	rootCommand.PersistentFlags().String("plot", "", "plot output path (overrides plot.path)")
	rootCommand.PersistentFlags().String("history", "", "score history store (overrides history.store)")
	rootCommand.PersistentFlags().Int("jobs", 1, "number of datasets evaluated concurrently")
	rootCommand.AddCommand(versionCommand)
}

// overrideConfig applies command line flags on top of the configuration.
func overrideConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("model") {
		conf.Model.Path, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("plot") {
		conf.Plot.Path, _ = cmd.Flags().GetString("plot")
	}
	if cmd.Flags().Changed("history") {
		conf.History.Store, _ = cmd.Flags().GetString("history")
	}
	return errors.Trace(conf.Validate())
}

// newRunner creates a runner with the history store if one is configured.
// The returned function closes the store.
func newRunner(cmd *cobra.Command) (*pipeline.Runner, func(), error) {
	runner := pipeline.NewRunner(conf)
	runner.Jobs, _ = cmd.Flags().GetInt("jobs")
	closeHistory, err := openHistory(func(db history.Database) { runner.History = db })
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return runner, closeHistory, nil
}

func openHistory(set func(history.Database)) (func(), error) {
	if conf.History.Store == "" {
		return func() {}, nil
	}
	db, err := history.Open(conf.History.Store, conf.History.TablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = db.Init(); err != nil {
		_ = db.Close()
		return nil, errors.Trace(err)
	}
	set(db)
	return func() {
		if err := db.Close(); err != nil {
			log.Logger().Warn("failed to close history store", zap.Error(err))
		}
	}, nil
}

func printReport(report *pipeline.Report) error {
	fmt.Fprintf(stdout, "run: %s\nmodel: %s (run %s)\n", report.RunID, log.RedactURL(report.ModelPath), report.ModelRunID)
	if report.TrainRows > 0 {
		fmt.Fprintf(stdout, "train: %d rows, F1 %.4f\n", report.TrainRows, report.TrainScore.F1)
	}
	if len(report.Periods) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(stdout)
	table.Header("Period", "Rows", "Precision", "Recall", "F1", "Accuracy")
	for _, result := range report.Periods {
		if err := table.Append([]string{
			result.Period,
			fmt.Sprint(result.Rows),
			fmt.Sprintf("%.4f", result.Score.Precision),
			fmt.Sprintf("%.4f", result.Score.Recall),
			fmt.Sprintf("%.4f", result.Score.F1),
			fmt.Sprintf("%.4f", result.Score.Accuracy),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
