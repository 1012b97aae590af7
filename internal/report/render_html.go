package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HTMLRenderer renders an interactive go-echarts page, delivered as a
// document.
type HTMLRenderer struct{}

func (HTMLRenderer) Render(spec ChartSpec) (Artifact, error) {
	if len(spec.Series) == 0 {
		return Artifact{}, ErrNoData
	}

	// Category axis over every day in range; days without a sample render as
	// gaps.
	var days []time.Time
	for d := spec.Start; !d.After(spec.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	labels := make([]string, len(days))
	for i, d := range days {
		labels[i] = d.Format("2006-01-02")
	}

	tickLabels := make(map[int]string, len(spec.YTicks))
	for _, t := range spec.YTicks {
		tickLabels[t.Value] = t.Label
	}
	lut, err := json.Marshal(tickLabels)
	if err != nil {
		return Artifact{}, fmt.Errorf("report: tick labels: %w", err)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: spec.Title, Subtitle: string(spec.Mode)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Rank",
			Min:       spec.YMin,
			Max:       spec.YMax,
			AxisLabel: &opts.AxisLabel{Formatter: opts.FuncOpts(fmt.Sprintf("function (v) { return (%s)[v] || ''; }", lut))},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
	)
	line.SetXAxis(labels)

	for _, s := range spec.Series {
		byDay := make(map[time.Time]Point, len(s.Points))
		for _, p := range s.Points {
			byDay[p.Date] = p
		}
		data := make([]opts.LineData, len(days))
		for i, d := range days {
			if p, ok := byDay[d]; ok {
				data[i] = opts.LineData{Value: p.Ordinal, Name: p.Label}
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(s.Name, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}"}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return Artifact{}, fmt.Errorf("report: html render: %w", err)
	}
	return Artifact{
		Kind:     ArtifactDocument,
		Filename: artifactName(spec, "html"),
		MIME:     "text/html",
		Data:     buf.Bytes(),
	}, nil
}
