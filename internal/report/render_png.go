package report

import (
	"bytes"
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PNGRenderer rasterizes charts with gonum/plot.
type PNGRenderer struct {
	Width  vg.Length // default 10in
	Height vg.Length // default 6in
}

func dayX(t time.Time) float64 { return float64(t.Unix()) / 86400 }

func (r PNGRenderer) Render(spec ChartSpec) (Artifact, error) {
	if len(spec.Series) == 0 {
		return Artifact{}, ErrNoData
	}
	w, h := r.Width, r.Height
	if w <= 0 {
		w = 10 * vg.Inch
	}
	if h <= 0 {
		h = 6 * vg.Inch
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Rank"
	p.Y.Min = float64(spec.YMin)
	p.Y.Max = float64(spec.YMax)
	p.X.Min = dayX(spec.Start) - 0.5
	p.X.Max = dayX(spec.End) + 0.5
	p.Legend.Top = true

	yt := make([]plot.Tick, 0, len(spec.YTicks))
	for _, t := range spec.YTicks {
		yt = append(yt, plot.Tick{Value: float64(t.Value), Label: t.Label})
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yt)

	xt := make([]plot.Tick, 0, len(spec.XTicks))
	for _, t := range spec.XTicks {
		xt = append(xt, plot.Tick{Value: dayX(t.Date), Label: t.Label})
	}
	p.X.Tick.Marker = plot.ConstantTicks(xt)
	p.X.Tick.Label.Rotation = 0.785 // 45°
	p.X.Tick.Label.XAlign = draw.XRight

	p.Add(plotter.NewGrid())

	for i, s := range spec.Series {
		xys := make(plotter.XYs, len(s.Points))
		labels := make([]string, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = dayX(pt.Date)
			xys[j].Y = float64(pt.Ordinal)
			labels[j] = pt.Label
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return Artifact{}, fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		c := plotutil.Color(i)
		line.LineStyle.Color = c
		line.LineStyle.Width = vg.Points(2)
		points.GlyphStyle.Color = c
		points.GlyphStyle.Shape = draw.CircleGlyph{}

		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return Artifact{}, fmt.Errorf("report: series %q labels: %w", s.Name, err)
		}
		lbl.Offset = vg.Point{X: vg.Points(-8), Y: vg.Points(6)}

		p.Add(line, points, lbl)
		p.Legend.Add(s.Name, line, points)
	}

	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return Artifact{}, fmt.Errorf("report: png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return Artifact{}, fmt.Errorf("report: png encode: %w", err)
	}
	return Artifact{
		Kind:     ArtifactImage,
		Filename: artifactName(spec, "png"),
		MIME:     "image/png",
		Data:     buf.Bytes(),
	}, nil
}
