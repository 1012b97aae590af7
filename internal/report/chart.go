package report

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rankbot/internal/rank"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("report: no data to chart")

// Mode is the X-axis granularity. It only changes tick spacing and label
// format, never which points are plotted.
type Mode string

const (
	ModeDaily   Mode = "daily"
	ModeWeekly  Mode = "weekly"
	ModeMonthly Mode = "monthly"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeDaily, nil
	case ModeDaily, ModeWeekly, ModeMonthly:
		return m, nil
	default:
		return "", fmt.Errorf("report: unknown chart mode %q (use daily, weekly or monthly)", s)
	}
}

// Point is one plotted sample.
type Point struct {
	Date    time.Time
	Ordinal int
	Label   string // raw LP, e.g. "72LP"
}

// Series is one named line.
type Series struct {
	Name   string
	Points []Point
}

// SeriesFromSnapshots converts a user's snapshots into a chart series.
func SeriesFromSnapshots(name string, snaps []rank.Snapshot) Series {
	s := Series{Name: name, Points: make([]Point, 0, len(snaps))}
	for _, sn := range snaps {
		s.Points = append(s.Points, Point{
			Date:    rank.Day(sn.Date),
			Ordinal: sn.Ordinal(),
			Label:   strconv.Itoa(sn.LP) + "LP",
		})
	}
	return s
}

type YTick struct {
	Value int
	Label string
}

type XTick struct {
	Date  time.Time
	Label string
}

// ChartSpec is a renderer-independent description of a rank chart.
type ChartSpec struct {
	Title  string
	Mode   Mode
	Series []Series
	YMin   int
	YMax   int
	YTicks []YTick
	XTicks []XTick
	Start  time.Time
	End    time.Time
}

const yTickStep = 100

// BuildChart prepares a chart over one or more series. Each series is sorted
// by date; a series spanning more than one calendar year loses its points
// before January 1 of its latest year. Y ticks are placed every 100 ordinal
// units across the observed range and labeled with rank.Decode.
func BuildChart(title string, mode Mode, series ...Series) (ChartSpec, error) {
	if mode == "" {
		mode = ModeDaily
	}
	spec := ChartSpec{Title: title, Mode: mode}

	first := true
	var lo, hi int
	for _, s := range series {
		pts := truncateToLatestYear(sortedPoints(s.Points))
		if len(pts) == 0 {
			continue
		}
		spec.Series = append(spec.Series, Series{Name: s.Name, Points: pts})
		for _, p := range pts {
			if first {
				lo, hi = p.Ordinal, p.Ordinal
				spec.Start, spec.End = p.Date, p.Date
				first = false
				continue
			}
			lo = min(lo, p.Ordinal)
			hi = max(hi, p.Ordinal)
			if p.Date.Before(spec.Start) {
				spec.Start = p.Date
			}
			if p.Date.After(spec.End) {
				spec.End = p.Date
			}
		}
	}
	if first {
		return ChartSpec{}, ErrNoData
	}

	spec.YMin = floorTo(lo, yTickStep)
	spec.YMax = ceilTo(hi, yTickStep)
	if spec.YMax == spec.YMin {
		spec.YMax += yTickStep
	}
	for v := spec.YMin; v <= spec.YMax; v += yTickStep {
		spec.YTicks = append(spec.YTicks, YTick{Value: v, Label: rank.Decode(v)})
	}
	spec.XTicks = xTicks(mode, spec.Start, spec.End)
	return spec, nil
}

func sortedPoints(in []Point) []Point {
	out := make([]Point, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// truncateToLatestYear expects points sorted by date.
func truncateToLatestYear(pts []Point) []Point {
	if len(pts) == 0 {
		return pts
	}
	latest := pts[len(pts)-1].Date.Year()
	if pts[0].Date.Year() == latest {
		return pts
	}
	cut := time.Date(latest, time.January, 1, 0, 0, 0, 0, time.UTC)
	i := sort.Search(len(pts), func(i int) bool { return !pts[i].Date.Before(cut) })
	return pts[i:]
}

func xTicks(mode Mode, start, end time.Time) []XTick {
	var out []XTick
	switch mode {
	case ModeWeekly:
		d := start
		for d.Weekday() != time.Monday {
			d = d.AddDate(0, 0, 1)
		}
		for ; !d.After(end); d = d.AddDate(0, 0, 7) {
			out = append(out, XTick{Date: d, Label: d.Format("01/02")})
		}
		if len(out) == 0 {
			out = append(out, XTick{Date: start, Label: start.Format("01/02")})
		}
	case ModeMonthly:
		d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		if d.Before(start) {
			d = d.AddDate(0, 1, 0)
		}
		for ; !d.After(end); d = d.AddDate(0, 1, 0) {
			out = append(out, XTick{Date: d, Label: d.Format("2006/01")})
		}
		if len(out) == 0 {
			out = append(out, XTick{Date: start, Label: start.Format("2006/01")})
		}
	default:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, XTick{Date: d, Label: d.Format("01/02")})
		}
	}
	return out
}

func floorTo(v, step int) int {
	q := v / step
	if v < 0 && v%step != 0 {
		q--
	}
	return q * step
}

func ceilTo(v, step int) int {
	f := floorTo(v, step)
	if f == v {
		return v
	}
	return f + step
}
