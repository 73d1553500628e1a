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
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/config"
	"github.com/gorse-io/tipscore/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Formats supported by PlotF1Scores.
var Formats = []string{"png", "svg", "pdf", "jpg", "jpeg", "eps", "tif", "tiff"}

// Options describe the chart and where it goes. The chart is written to
// Writer in Format if Writer is set, otherwise to the file at Path in the
// format named by its extension.
type Options struct {
	Path   string
	Writer io.Writer
	Format string
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

// NewOptions converts the plot configuration.
func NewOptions(cfg config.PlotConfig) Options {
	return Options{
		Path:   cfg.Path,
		Title:  cfg.Title,
		XLabel: cfg.XLabel,
		YLabel: cfg.YLabel,
		Width:  vg.Length(cfg.Width) * vg.Inch,
		Height: vg.Length(cfg.Height) * vg.Inch,
	}
}

func (opts *Options) format() (string, error) {
	format := opts.Format
	if opts.Writer == nil {
		if opts.Path == "" {
			return "", errors.NotValidf("plot without path or writer")
		}
		format = strings.TrimPrefix(filepath.Ext(opts.Path), ".")
	} else if format == "" {
		format = "png"
	}
	format = strings.ToLower(format)
	if !lo.Contains(Formats, format) {
		return "", errors.NotSupportedf("plot format %q", format)
	}
	return format, nil
}

// NewF1Plot draws a line chart with one marked point per period in insertion
// order. Scores must be in [0,1].
func NewF1Plot(scores *model.ScoreSeries, opts Options) (*gonumplot.Plot, error) {
	if scores == nil || scores.Len() == 0 {
		return nil, errors.NotValidf("empty score series")
	}
	pts := make(plotter.XYs, scores.Len())
	for i, entry := range scores.Entries() {
		if !(entry.Value >= 0 && entry.Value <= 1) {
			return nil, errors.NotValidf("score series: F1 %v of %s", entry.Value, entry.Key)
		}
		pts[i].X = float64(i)
		pts[i].Y = entry.Value
	}

	p := gonumplot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	line.Color = color.RGBA{B: 255, A: 255}
	points.Shape = draw.CircleGlyph{}
	points.Color = color.RGBA{B: 255, A: 255}
	p.Add(line, points)
	p.NominalX(scores.Periods()...)
	// keep the first and last markers inside the canvas
	p.X.Min = -0.5
	p.X.Max = float64(scores.Len()) - 0.5
	return p, nil
}

// PlotF1Scores renders the F1 score of each period as a line chart.
func PlotF1Scores(scores *model.ScoreSeries, opts Options) error {
	format, err := opts.format()
	if err != nil {
		return errors.Trace(err)
	}
	p, err := NewF1Plot(scores, opts)
	if err != nil {
		return errors.Trace(err)
	}
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 8 * vg.Inch
	}
	if height <= 0 {
		height = 4 * vg.Inch
	}
	if opts.Writer != nil {
		writerTo, err := p.WriterTo(width, height, format)
		if err != nil {
			return errors.Trace(err)
		}
		if _, err = writerTo.WriteTo(opts.Writer); err != nil {
			return errors.Annotate(err, "write plot")
		}
		return nil
	}
	if err = p.Save(width, height, opts.Path); err != nil {
		return errors.Annotatef(err, "save plot %s", opts.Path)
	}
	log.Logger().Info("save plot", zap.String("path", opts.Path), zap.Int("n_periods", scores.Len()))
	return nil
}
