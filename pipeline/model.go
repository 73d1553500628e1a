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
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/config"
	"github.com/gorse-io/tipscore/model"
	"github.com/gorse-io/tipscore/model/forest"
	"github.com/gorse-io/tipscore/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// TrainModel fits a random forest on X and y, then writes it to modelPath,
// replacing any existing artifact. The directory of a local modelPath must
// exist. A nil cfg means the default configuration.
func TrainModel(ctx context.Context, X mat.Matrix, y []int, modelPath string, cfg *config.Config) (model.Classifier, error) {
	m, _, err := trainModel(ctx, X, y, modelPath, cfg, uuid.New())
	return m, err
}

func trainModel(ctx context.Context, X mat.Matrix, y []int, modelPath string, cfg *config.Config, runID uuid.UUID) (model.Classifier, time.Duration, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	if err := model.CheckShape(X, y); err != nil {
		return nil, 0, errors.Trace(err)
	}
	// fail before fitting if the artifact could not be written
	loc, err := blob.ParseLocation(modelPath)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	if loc.IsLocal() {
		if _, err = os.Stat(filepath.Dir(loc.Name)); err != nil {
			return nil, 0, errors.Annotatef(err, "model directory of %s", modelPath)
		}
	}

	rf := forest.NewRandomForest(cfg.Model.GetParams())
	start := time.Now()
	if err = rf.Fit(ctx, X, y, cfg.Model.GetFitConfig()); err != nil {
		return nil, 0, errors.Trace(err)
	}
	elapsed := time.Since(start)
	log.Logger().Info("fit random forest complete", zap.Duration("elapsed", elapsed))

	if err = SaveModel(ctx, modelPath, rf, runID, blob.Options{Storage: cfg.Storage}); err != nil {
		return nil, 0, errors.Trace(err)
	}
	return rf, elapsed, nil
}

// SaveModel writes a model artifact. The artifact becomes visible when it has
// been written completely.
func SaveModel(ctx context.Context, modelPath string, m model.Classifier, runID uuid.UUID, opts blob.Options) error {
	w, err := blob.Create(ctx, modelPath, opts)
	if err != nil {
		return errors.Trace(err)
	}
	if err = model.MarshalModel(w, m, runID); err != nil {
		abort(w, err)
		return errors.Annotatef(err, "write model %s", log.RedactURL(modelPath))
	}
	if err = w.Close(); err != nil {
		return errors.Annotatef(err, "write model %s", log.RedactURL(modelPath))
	}
	log.Logger().Info("save model", zap.String("path", log.RedactURL(modelPath)), zap.String("run_id", runID.String()))
	return nil
}

// abort discards a partially written object.
func abort(w io.WriteCloser, err error) {
	if closer, ok := w.(interface{ CloseWithError(error) error }); ok {
		_ = closer.CloseWithError(err)
	} else {
		_ = w.Close()
	}
}

// LoadModel reads a model artifact written by TrainModel. Remote stores
// that need credentials take them from opts.
func LoadModel(ctx context.Context, modelPath string, opts ...blob.Options) (model.Classifier, error) {
	var storeOptions blob.Options
	if len(opts) > 0 {
		storeOptions = opts[0]
	}
	m, _, err := ReadModel(ctx, modelPath, storeOptions)
	return m, err
}

// ReadModel reads a model artifact and its header.
func ReadModel(ctx context.Context, modelPath string, opts blob.Options) (model.Classifier, *model.Header, error) {
	r, err := blob.Open(ctx, modelPath, opts)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	defer r.Close()
	m, header, err := model.UnmarshalModel(r)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "load model %s", log.RedactURL(modelPath))
	}
	log.Logger().Info("load model",
		zap.String("path", log.RedactURL(modelPath)),
		zap.String("name", header.Name),
		zap.String("run_id", header.RunID.String()))
	return m, header, nil
}

// EvaluateModel returns the F1 score of the positive class.
func EvaluateModel(m model.Classifier, X mat.Matrix, y []int) (float64, error) {
	score, err := model.Evaluate(m, X, y)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return score.F1, nil
}
