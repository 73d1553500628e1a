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
	"runtime"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	DefaultModelPath    = "models/random_forest_model.joblib"
	DefaultTargetColumn = "high_tip"
	DefaultTipThreshold = 0.2
)

// DefaultFeatures are the columns the monthly runner feeds to the classifier.
var DefaultFeatures = []string{
	"pickup_weekday",
	"pickup_hour",
	"work_hours",
	"pickup_minute",
	"passenger_count",
	"trip_distance",
	"trip_time",
	"trip_speed",
	"PULocationID",
	"DOLocationID",
	"RatecodeID",
}

// Config is the configuration for the pipeline.
type Config struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Model   ModelConfig   `mapstructure:"model"`
	Plot    PlotConfig    `mapstructure:"plot"`
	Storage StorageConfig `mapstructure:"storage"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type DatasetConfig struct {
	TargetColumn     string   `mapstructure:"target_column" validate:"required"`
	TipThreshold     float64  `mapstructure:"tip_threshold" validate:"gte=0"`
	Features         []string `mapstructure:"features" validate:"min=1,dive,required"`
	DownloadProgress bool     `mapstructure:"download_progress"`
	Filter           string   `mapstructure:"filter"`
}

type ModelConfig struct {
	Path            string `mapstructure:"path" validate:"required"`
	NEstimators     int    `mapstructure:"n_estimators" validate:"gt=0"`
	MaxDepth        int    `mapstructure:"max_depth" validate:"gte=0"`
	MinSamplesSplit int    `mapstructure:"min_samples_split" validate:"gte=2"`
	MinSamplesLeaf  int    `mapstructure:"min_samples_leaf" validate:"gte=1"`
	MaxFeatures     int    `mapstructure:"max_features" validate:"gte=0"` // 0 means sqrt(n_features)
	Bootstrap       bool   `mapstructure:"bootstrap"`
	OOBScore        bool   `mapstructure:"oob_score"`
	RandomState     int64  `mapstructure:"random_state"`
	FitJobs         int    `mapstructure:"fit_jobs" validate:"gt=0"`
	FitVerbose      int    `mapstructure:"fit_verbose" validate:"gte=0"` // log progress every n trees, 0 disables
}

func (c *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NEstimators:     c.NEstimators,
		model.MaxDepth:        c.MaxDepth,
		model.MinSamplesSplit: c.MinSamplesSplit,
		model.MinSamplesLeaf:  c.MinSamplesLeaf,
		model.MaxFeatures:     c.MaxFeatures,
		model.Bootstrap:       c.Bootstrap,
		model.OOBScore:        c.OOBScore,
		model.RandomState:     c.RandomState,
	}
}

func (c *ModelConfig) GetFitConfig() *model.FitConfig {
	return model.NewFitConfig().SetJobs(c.FitJobs).SetVerbose(c.FitVerbose)
}

type PlotConfig struct {
	Path   string  `mapstructure:"path"` // empty disables plotting
	Title  string  `mapstructure:"title"`
	XLabel string  `mapstructure:"x_label"`
	YLabel string  `mapstructure:"y_label"`
	Width  float64 `mapstructure:"width" validate:"gt=0"`  // inches
	Height float64 `mapstructure:"height" validate:"gt=0"` // inches
}

type StorageConfig struct {
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Endpoint         string `mapstructure:"endpoint"`
}

type HistoryConfig struct {
	Store       string `mapstructure:"store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			TargetColumn: DefaultTargetColumn,
			TipThreshold: DefaultTipThreshold,
			Features:     append([]string(nil), DefaultFeatures...),
		},
		Model: ModelConfig{
			Path:            DefaultModelPath,
			NEstimators:     100,
			MaxDepth:        10,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Bootstrap:       true,
			FitJobs:         runtime.NumCPU(),
			FitVerbose:      10,
		},
		Plot: PlotConfig{
			Path:   "f1_scores.png",
			Title:  "Monthly F1-score",
			XLabel: "Month",
			YLabel: "F1-score",
			Width:  8,
			Height: 4,
		},
		Storage: StorageConfig{
			S3: S3Config{UseSSL: true},
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	v.SetDefault("dataset.target_column", defaultConfig.Dataset.TargetColumn)
	v.SetDefault("dataset.tip_threshold", defaultConfig.Dataset.TipThreshold)
	v.SetDefault("dataset.features", defaultConfig.Dataset.Features)
	v.SetDefault("dataset.download_progress", defaultConfig.Dataset.DownloadProgress)
	v.SetDefault("dataset.filter", defaultConfig.Dataset.Filter)
	// [model]
	v.SetDefault("model.path", defaultConfig.Model.Path)
	v.SetDefault("model.n_estimators", defaultConfig.Model.NEstimators)
	v.SetDefault("model.max_depth", defaultConfig.Model.MaxDepth)
	v.SetDefault("model.min_samples_split", defaultConfig.Model.MinSamplesSplit)
	v.SetDefault("model.min_samples_leaf", defaultConfig.Model.MinSamplesLeaf)
	v.SetDefault("model.max_features", defaultConfig.Model.MaxFeatures)
	v.SetDefault("model.bootstrap", defaultConfig.Model.Bootstrap)
	v.SetDefault("model.oob_score", defaultConfig.Model.OOBScore)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.fit_jobs", defaultConfig.Model.FitJobs)
	v.SetDefault("model.fit_verbose", defaultConfig.Model.FitVerbose)
	// [plot]
	v.SetDefault("plot.path", defaultConfig.Plot.Path)
	v.SetDefault("plot.title", defaultConfig.Plot.Title)
	v.SetDefault("plot.x_label", defaultConfig.Plot.XLabel)
	v.SetDefault("plot.y_label", defaultConfig.Plot.YLabel)
	v.SetDefault("plot.width", defaultConfig.Plot.Width)
	v.SetDefault("plot.height", defaultConfig.Plot.Height)
	// [storage]
	v.SetDefault("storage.s3.use_ssl", defaultConfig.Storage.S3.UseSSL)
	// [tracing]
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"dataset.target_column", "TIPSCORE_DATASET_TARGET_COLUMN"},
	{"dataset.features", "TIPSCORE_DATASET_FEATURES"},
	{"model.path", "TIPSCORE_MODEL_PATH"},
	{"model.fit_jobs", "TIPSCORE_MODEL_FIT_JOBS"},
	{"model.random_state", "TIPSCORE_MODEL_RANDOM_STATE"},
	{"plot.path", "TIPSCORE_PLOT_PATH"},
	{"storage.s3.endpoint", "TIPSCORE_S3_ENDPOINT"},
	{"storage.s3.access_key_id", "TIPSCORE_S3_ACCESS_KEY_ID"},
	{"storage.s3.secret_access_key", "TIPSCORE_S3_SECRET_ACCESS_KEY"},
	{"storage.gcs.credentials_file", "TIPSCORE_GCS_CREDENTIALS_FILE"},
	{"storage.azure.account_name", "TIPSCORE_AZURE_ACCOUNT_NAME"},
	{"storage.azure.account_key", "TIPSCORE_AZURE_ACCOUNT_KEY"},
	{"storage.azure.connection_string", "TIPSCORE_AZURE_CONNECTION_STRING"},
	{"history.store", "TIPSCORE_HISTORY_STORE"},
	{"metrics.textfile", "TIPSCORE_METRICS_TEXTFILE"},
	{"tracing.collector_endpoint", "TIPSCORE_TRACING_COLLECTOR_ENDPOINT"},
}

// LoadConfig loads configuration from a TOML, YAML or JSON file. An empty path
// yields the defaults. Environment variables override both.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

func (config *Config) Validate() error {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.Trace(err)
	}
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, e := range validationErrors {
				messages = append(messages, e.Translate(trans))
			}
			return errors.NotValidf("config: %s", strings.Join(messages, "; "))
		}
		return errors.Trace(err)
	}
	return nil
}
