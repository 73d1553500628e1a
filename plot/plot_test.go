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

package plot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/tipscore/config"
	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

func monthlyScores() *model.ScoreSeries {
	scores := model.NewScoreSeries()
	scores.Set("2022-02", 0.71)
	scores.Set("2022-03", 0.68)
	scores.Set("2022-04", 0.74)
	return scores
}

func TestNewOptions(t *testing.T) {
	opts := NewOptions(config.GetDefaultConfig().Plot)
	assert.Equal(t, "f1_scores.png", opts.Path)
	assert.Equal(t, "Monthly F1-score", opts.Title)
	assert.Equal(t, 8*vg.Inch, opts.Width)
	assert.Equal(t, 4*vg.Inch, opts.Height)
}

func TestNewF1Plot(t *testing.T) {
	p, err := NewF1Plot(monthlyScores(), Options{Title: "F1", XLabel: "Month", YLabel: "F1-score"})
	require.NoError(t, err)
	assert.Equal(t, "F1", p.Title.Text)
	assert.Equal(t, "Month", p.X.Label.Text)
	assert.Equal(t, "F1-score", p.Y.Label.Text)
	ticks := p.X.Tick.Marker.Ticks(p.X.Min, p.X.Max)
	labels := lo.FilterMap(ticks, func(tick gonumplot.Tick, _ int) (string, bool) {
		return tick.Label, tick.Label != ""
	})
	assert.Equal(t, []string{"2022-02", "2022-03", "2022-04"}, labels)
}

func TestPlotF1Scores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f1_scores.png")
	opts := NewOptions(config.GetDefaultConfig().Plot)
	opts.Path = path
	require.NoError(t, PlotF1Scores(monthlyScores(), opts))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlotF1ScoresWriter(t *testing.T) {
	var buf bytes.Buffer
	err := PlotF1Scores(monthlyScores(), Options{Writer: &buf, Format: "svg", Title: "Monthly F1-score"})
	require.NoError(t, err)
	svg := buf.String()
	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, "Monthly F1-score")
	assert.Contains(t, svg, "2022-03")

	buf.Reset()
	require.NoError(t, PlotF1Scores(monthlyScores(), Options{Writer: &buf}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestPlotSinglePeriod(t *testing.T) {
	scores := model.NewScoreSeries()
	scores.Set("2022-02", 0)
	var buf bytes.Buffer
	assert.NoError(t, PlotF1Scores(scores, Options{Writer: &buf, Format: "pdf"}))
	assert.NotZero(t, buf.Len())
}

func TestPlotF1ScoresInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f1_scores.png")
	err := PlotF1Scores(model.NewScoreSeries(), Options{Path: path})
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.NoFileExists(t, path)
	err = PlotF1Scores(nil, Options{Path: path})
	assert.True(t, errors.Is(err, errors.NotValid))

	for _, score := range []float64{1.5, -0.1, math.NaN()} {
		scores := model.NewScoreSeries()
		scores.Set("2022-02", score)
		err = PlotF1Scores(scores, Options{Path: path})
		assert.True(t, errors.Is(err, errors.NotValid), score)
	}

	err = PlotF1Scores(monthlyScores(), Options{Path: filepath.Join(t.TempDir(), "f1_scores.gif")})
	assert.True(t, errors.Is(err, errors.NotSupported))
	err = PlotF1Scores(monthlyScores(), Options{})
	assert.True(t, errors.Is(err, errors.NotValid))
	err = PlotF1Scores(monthlyScores(), Options{Path: filepath.Join(t.TempDir(), "missing", "f1.png")})
	assert.Error(t, err)
}
