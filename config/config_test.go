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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

const configTemplate = `
[dataset]
target_column = "generous"
tip_threshold = 0.25
features = ["trip_distance", "passenger_count"]

[model]
path = "artifacts/forest.bin"
n_estimators = 20
max_depth = 5
fit_jobs = 2
random_state = 42

[plot]
path = "out/f1.svg"
title = "F1 by month"

[storage.s3]
endpoint = "localhost:9000"
access_key_id = "minioadmin"
secret_access_key = "minioadmin"
use_ssl = false

[history]
store = "sqlite:///tmp/history.db"

[tracing]
enable_tracing = true
exporter = "zipkin"
collector_endpoint = "http://localhost:9411/api/v2/spans"
sampler = "ratio"
ratio = 0.5
`

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, configTemplate))
	assert.NoError(t, err)
	// [dataset]
	assert.Equal(t, "generous", config.Dataset.TargetColumn)
	assert.Equal(t, 0.25, config.Dataset.TipThreshold)
	assert.Equal(t, []string{"trip_distance", "passenger_count"}, config.Dataset.Features)
	// [model]
	assert.Equal(t, "artifacts/forest.bin", config.Model.Path)
	assert.Equal(t, 20, config.Model.NEstimators)
	assert.Equal(t, 5, config.Model.MaxDepth)
	assert.Equal(t, 2, config.Model.MinSamplesSplit)
	assert.Equal(t, 2, config.Model.FitJobs)
	assert.Equal(t, int64(42), config.Model.RandomState)
	assert.True(t, config.Model.Bootstrap)
	// [plot]
	assert.Equal(t, "out/f1.svg", config.Plot.Path)
	assert.Equal(t, "F1 by month", config.Plot.Title)
	assert.Equal(t, "Month", config.Plot.XLabel)
	assert.Equal(t, 8.0, config.Plot.Width)
	// [storage]
	assert.Equal(t, "localhost:9000", config.Storage.S3.Endpoint)
	assert.False(t, config.Storage.S3.UseSSL)
	// [history]
	assert.Equal(t, "sqlite:///tmp/history.db", config.History.Store)
	// [tracing]
	assert.True(t, config.Tracing.EnableTracing)
	assert.Equal(t, "zipkin", config.Tracing.Exporter)
	assert.Equal(t, 0.5, config.Tracing.Ratio)
}

func TestSetDefault(t *testing.T) {
	config, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
	assert.Equal(t, DefaultModelPath, config.Model.Path)
	assert.Equal(t, 100, config.Model.NEstimators)
	assert.Equal(t, 10, config.Model.MaxDepth)
	assert.Equal(t, "high_tip", config.Dataset.TargetColumn)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("TIPSCORE_MODEL_PATH", "/srv/models/forest.bin")
	t.Setenv("TIPSCORE_DATASET_FEATURES", "trip_distance,trip_time")
	t.Setenv("TIPSCORE_S3_ACCESS_KEY_ID", "<access_key_id>")
	t.Setenv("TIPSCORE_HISTORY_STORE", "sqlite://history.db")

	config, err := LoadConfig(writeConfig(t, configTemplate))
	assert.NoError(t, err)
	assert.Equal(t, "/srv/models/forest.bin", config.Model.Path)
	assert.Equal(t, []string{"trip_distance", "trip_time"}, config.Dataset.Features)
	assert.Equal(t, "<access_key_id>", config.Storage.S3.AccessKeyID)
	assert.Equal(t, "sqlite://history.db", config.History.Store)
	// check values from file are kept
	assert.Equal(t, 20, config.Model.NEstimators)
}

func TestValidate(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[model]\nn_estimators = 0\n"))
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.ErrorContains(t, err, "NEstimators")

	_, err = LoadConfig(writeConfig(t, "[tracing]\nexporter = \"jaeger\"\n"))
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	// an empty plot path disables plotting
	config := GetDefaultConfig()
	config.Plot.Path = ""
	assert.NoError(t, config.Validate())
}

func TestModelParams(t *testing.T) {
	config := GetDefaultConfig()
	params := config.Model.GetParams()
	assert.Equal(t, 100, params.GetInt(model.NEstimators, 0))
	assert.Equal(t, 10, params.GetInt(model.MaxDepth, 0))
	assert.True(t, params.GetBool(model.Bootstrap, false))
	assert.False(t, params.GetBool(model.OOBScore, true))
	assert.Equal(t, config.Model.FitJobs, config.Model.GetFitConfig().Jobs)
	assert.Equal(t, 10, config.Model.GetFitConfig().Verbose)
	config.Model.FitVerbose = 0
	assert.Equal(t, 0, config.Model.GetFitConfig().Verbose)
}

func TestNewTracerProvider(t *testing.T) {
	// disabled
	tracing := GetDefaultConfig().Tracing
	provider, shutdown, err := tracing.NewTracerProvider(context.Background())
	assert.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, provider)
	assert.NoError(t, shutdown(context.Background()))
	// zipkin
	tracing.EnableTracing = true
	tracing.Exporter = "zipkin"
	tracing.CollectorEndpoint = "http://localhost:9411/api/v2/spans"
	provider, shutdown, err = tracing.NewTracerProvider(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NoError(t, shutdown(context.Background()))
	// unknown sampler
	tracing.Sampler = "sometimes"
	_, _, err = tracing.NewTracerProvider(context.Background())
	assert.True(t, errors.Is(err, errors.NotSupported))
}
