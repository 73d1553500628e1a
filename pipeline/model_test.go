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
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/gorse-io/tipscore/common/encoding"
	"github.com/gorse-io/tipscore/config"
	"github.com/gorse-io/tipscore/model"
	"github.com/gorse-io/tipscore/model/forest"
	"github.com/gorse-io/tipscore/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Model.NEstimators = 10
	cfg.Model.MaxDepth = 6
	cfg.Model.FitJobs = 2
	cfg.Model.RandomState = 42
	return cfg
}

// separable returns samples labeled by the sign of the first feature with a
// margin around zero. The second feature is noise.
func separable(n int, seed int64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		x := rng.Float64()*2 - 1
		if x > 0 {
			x += 0.1
			y[i] = 1
		} else {
			x -= 0.1
		}
		X.Set(i, 0, x)
		X.Set(i, 1, rng.Float64())
	}
	return X, y
}

func TestTrainModel(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "random_forest_model.joblib")
	X, y := separable(300, 0)
	m, err := TrainModel(ctx, X, y, path, testConfig())
	require.NoError(t, err)
	assert.IsType(t, &forest.RandomForest{}, m)
	assert.FileExists(t, path)

	testX, testY := separable(200, 1)
	f1, err := EvaluateModel(m, testX, testY)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f1, 0.95)
	assert.LessOrEqual(t, f1, 1.0)

	// evaluating the stored model gives the same score
	loaded, err := LoadModel(ctx, path)
	require.NoError(t, err)
	loadedF1, err := EvaluateModel(loaded, testX, testY)
	require.NoError(t, err)
	assert.Equal(t, f1, loadedF1)
	expected, err := m.Predict(testX)
	require.NoError(t, err)
	actual, err := loaded.Predict(testX)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestLoadModelWithOptions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "random_forest_model.joblib")
	X, y := separable(100, 2)
	m, err := TrainModel(ctx, X, y, path, testConfig())
	require.NoError(t, err)
	artifact, err := os.ReadFile(path)
	require.NoError(t, err)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(artifact)
	}))
	defer server.Close()
	location := server.URL + "/models/random_forest_model.joblib"

	// the default client does not trust the test certificate
	_, err = LoadModel(ctx, location)
	assert.Error(t, err)

	loaded, err := LoadModel(ctx, location, blob.Options{Client: server.Client()})
	require.NoError(t, err)
	expected, err := m.Predict(X)
	require.NoError(t, err)
	actual, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestTrainModelOverwrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.joblib")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	X, y := separable(100, 0)
	first := uuid.New()
	_, _, err := trainModel(ctx, X, y, path, testConfig(), first)
	require.NoError(t, err)
	second := uuid.New()
	_, _, err = trainModel(ctx, X, y, path, testConfig(), second)
	require.NoError(t, err)
	_, header, err := ReadModel(ctx, path, blob.Options{})
	require.NoError(t, err)
	assert.Equal(t, second, header.RunID)
	assert.Equal(t, "random_forest", header.Name)
	// only the artifact is left in the directory
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTrainModelDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.joblib")
	X, y := separable(50, 0)
	m, err := TrainModel(context.Background(), X, y, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, len(m.(*forest.RandomForest).Trees))
	assert.Equal(t, 10, m.GetParams().GetInt(model.MaxDepth, 0))
}

func TestTrainModelMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	X, y := separable(50, 0)
	_, err := TrainModel(context.Background(), X, y, filepath.Join(dir, "model.joblib"), testConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, dir)
}

func TestTrainModelShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.joblib")
	X, y := separable(50, 0)
	_, err := TrainModel(context.Background(), X, y[:49], path, testConfig())
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.NoFileExists(t, path)
}

func TestTrainModelCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.joblib")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	X, y := separable(50, 0)
	_, err := TrainModel(ctx, X, y, path, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestLoadModelMissing(t *testing.T) {
	_, err := LoadModel(context.Background(), filepath.Join(t.TempDir(), "model.joblib"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadModelCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.joblib")
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o644))
	_, err := LoadModel(context.Background(), path)
	assert.True(t, errors.Is(err, errors.NotValid))

	// truncated artifact
	X, y := separable(50, 0)
	_, err = TrainModel(context.Background(), X, y, path, testConfig())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))
	_, err = LoadModel(context.Background(), path)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLoadModelIncompatible(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("TIPSCORE")
	require.NoError(t, encoding.WriteString(&buf, "random_forest"))
	require.NoError(t, encoding.WriteUint32(&buf, 99))
	runID := uuid.New()
	require.NoError(t, encoding.WriteBytes(&buf, runID[:]))
	path := filepath.Join(t.TempDir(), "model.joblib")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	_, err := LoadModel(context.Background(), path)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestEvaluateModel(t *testing.T) {
	X, y := separable(100, 0)
	m := forest.NewRandomForest(testConfig().Model.GetParams())
	require.NoError(t, m.Fit(context.Background(), X, y, nil))

	_, err := EvaluateModel(m, X, y[:99])
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = EvaluateModel(m, &mat.Dense{}, []int{})
	assert.True(t, errors.Is(err, errors.NotValid))
	labels := append([]int(nil), y...)
	labels[0] = 2
	_, err = EvaluateModel(m, X, labels)
	assert.True(t, errors.Is(err, errors.NotValid))

	// no positive label and no positive prediction
	negX := mat.NewDense(2, 2, []float64{-0.9, 0.5, -0.8, 0.5})
	f1, err := EvaluateModel(m, negX, []int{0, 0})
	require.NoError(t, err)
	assert.Zero(t, f1)
}
