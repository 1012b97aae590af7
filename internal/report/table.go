// Package report turns stored rank snapshots into the artifacts delivered to
// chat: the pivoted diff table and rank charts.
package report

import (
	"strings"
	"time"

	"rankbot/internal/rank"
)

const (
	NoDataText          = "no data in range"
	NoChangeInPeriod    = "no change in period"
	headerName          = "Name"
	headerDailyDiff     = "Daily diff"
	headerPeriodDiff    = "Period diff"
	headerDailyRecord   = "Daily record"
	headerPeriodRecord  = "Period record"
	headerDateLayout    = "01/02"
	derivedColumnsCount = 4
)

// Window is a closed range of calendar dates.
type Window struct {
	From time.Time
	To   time.Time
}

// LastDays returns the window [today-days, today].
func LastDays(today time.Time, days int) Window {
	to := rank.Day(today)
	return Window{From: to.AddDate(0, 0, -days), To: to}
}

func (w Window) Contains(d time.Time) bool {
	d = rank.Day(d)
	return !d.Before(rank.Day(w.From)) && !d.After(rank.Day(w.To))
}

// Days lists every calendar date in the window, ascending.
func (w Window) Days() []time.Time {
	from, to := rank.Day(w.From), rank.Day(w.To)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Lookup returns the snapshot of a user on a date, or nil.
type Lookup func(userID int64, date time.Time) *rank.Snapshot

// Index is an in-memory (user, date) lookup over a slice of snapshots.
type Index struct {
	m map[int64]map[time.Time]rank.Snapshot
}

func NewIndex(snaps []rank.Snapshot) *Index {
	ix := &Index{m: map[int64]map[time.Time]rank.Snapshot{}}
	for _, s := range snaps {
		byDate := ix.m[s.UserID]
		if byDate == nil {
			byDate = map[time.Time]rank.Snapshot{}
			ix.m[s.UserID] = byDate
		}
		byDate[rank.Day(s.Date)] = s
	}
	return ix
}

// Get implements Lookup.
func (ix *Index) Get(userID int64, date time.Time) *rank.Snapshot {
	s, ok := ix.m[userID][rank.Day(date)]
	if !ok {
		return nil
	}
	return &s
}

// Table is a pivoted roster × date grid plus derived diff/record columns.
// Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
	Anchor time.Time
	Dates  []time.Time
}

func (t Table) Empty() bool { return len(t.Dates) == 0 }

// BuildTable pivots the roster's snapshots inside w. Columns are: name, one
// per date that has data for anyone, then daily diff, period diff, daily
// record and period record. The anchor is the latest date with data.
func BuildTable(roster []rank.Account, w Window, lookup Lookup) Table {
	var dates []time.Time
	for _, d := range w.Days() {
		for _, a := range roster {
			if lookup(a.ID, d) != nil {
				dates = append(dates, d)
				break
			}
		}
	}
	if len(dates) == 0 {
		return Table{}
	}

	anchor := dates[len(dates)-1]
	prevDay := anchor.AddDate(0, 0, -1)
	first := dates[0]

	header := make([]string, 0, 1+len(dates)+derivedColumnsCount)
	header = append(header, headerName)
	for _, d := range dates {
		header = append(header, d.Format(headerDateLayout))
	}
	header = append(header, headerDailyDiff, headerPeriodDiff, headerDailyRecord, headerPeriodRecord)

	rows := make([][]string, 0, len(roster))
	for _, a := range roster {
		row := make([]string, 0, len(header))
		row = append(row, a.Name())
		for _, d := range dates {
			if s := lookup(a.ID, d); s != nil {
				row = append(row, rank.Short(*s))
			} else {
				row = append(row, rank.TextMissing)
			}
		}

		cur := lookup(a.ID, anchor)
		prev := lookup(a.ID, prevDay)
		daily := rank.Diff(prev, cur).Text()
		dailyRec := rank.Record(prev, cur).String()

		period, periodRec := daily, dailyRec
		if len(dates) >= 2 {
			start := lookup(a.ID, first)
			if start != nil && cur != nil && start.SameState(*cur) {
				period, periodRec = NoChangeInPeriod, NoChangeInPeriod
			} else {
				period = rank.Diff(start, cur).Text()
				periodRec = rank.Record(start, cur).String()
			}
		}

		row = append(row, daily, period, dailyRec, periodRec)
		rows = append(rows, row)
	}

	return Table{Header: header, Rows: rows, Anchor: anchor, Dates: dates}
}

// String renders the table as width-aligned pipe-delimited text, or
// NoDataText when there is nothing to show.
func (t Table) String() string {
	if t.Empty() {
		return NoDataText
	}
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = DisplayWidth(h)
	}
	for _, r := range t.Rows {
		for i, c := range r {
			if w := DisplayWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("| ")
		for i, c := range cells {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(PadRight(c, widths[i]))
		}
		b.WriteString(" |")
	}

	writeRow(t.Header)
	b.WriteString("\n|-")
	for i, w := range widths {
		if i > 0 {
			b.WriteString("-|-")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("-|")
	for _, r := range t.Rows {
		b.WriteByte('\n')
		writeRow(r)
	}
	return b.String()
}
