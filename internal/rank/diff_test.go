package rank

import (
	"testing"
	"time"
)

func snap(tier Tier, div Division, lp, wins, losses int) *Snapshot {
	return &Snapshot{
		UserID:   1,
		Date:     time.Date(2025, 2, 6, 0, 0, 0, 0, time.UTC),
		Tier:     tier,
		Division: div,
		LP:       lp,
		Wins:     wins,
		Losses:   losses,
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		from, to *Snapshot
		kind     DeltaKind
		text     string
	}{
		{name: "no history", from: nil, to: snap(Gold, DivII, 10, 0, 0), kind: DeltaNoHistory, text: "no history"},
		{name: "missing", from: snap(Gold, DivII, 10, 0, 0), to: nil, kind: DeltaMissing, text: "-"},
		{name: "both missing", kind: DeltaMissing, text: "-"},
		{name: "no change", from: snap(Platinum, DivIII, 72, 1, 1), to: snap(Platinum, DivIII, 72, 2, 2), kind: DeltaNoChange, text: "no change, ±0 LP"},
		{name: "lp up", from: snap(Platinum, DivIII, 60, 0, 0), to: snap(Platinum, DivIII, 72, 0, 0), kind: DeltaLP, text: "+12 LP"},
		{name: "lp down", from: snap(Platinum, DivIII, 80, 0, 0), to: snap(Platinum, DivIII, 72, 0, 0), kind: DeltaLP, text: "-8 LP"},
		{name: "promotion", from: snap(Diamond, DivII, 80, 0, 0), to: snap(Diamond, DivI, 36, 0, 0), kind: DeltaTransition, text: "DII⇒DI, +56 LP"},
		{name: "demotion across tier", from: snap(Gold, DivIV, 10, 0, 0), to: snap(Silver, DivI, 75, 0, 0), kind: DeltaTransition, text: "GIV⇒SI, -35 LP"},
		{name: "into apex", from: snap(Diamond, DivI, 90, 0, 0), to: snap(Master, NoDivision, 0, 0, 0), kind: DeltaTransition, text: "DI⇒M, +10 LP"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.from, tt.to)
			if d.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", d.Kind, tt.kind)
			}
			if got := d.Text(); got != tt.text {
				t.Fatalf("Text = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestDiffSelfIsNoChange(t *testing.T) {
	t.Parallel()
	for tier := Iron; tier <= Challenger; tier++ {
		div := DivII
		if tier.Apex() {
			div = NoDivision
		}
		s := snap(tier, div, 42, 10, 10)
		d := Diff(s, s)
		if d.Kind != DeltaNoChange || d.LP != 0 {
			t.Fatalf("Diff(s, s) for %s = %+v", tier, d)
		}
		if d.Text() == TextNoHistory {
			t.Fatal("no change must never render as no history")
		}
	}
}

func TestDeltaFormatLabel(t *testing.T) {
	t.Parallel()
	d := Diff(snap(Gold, DivII, 10, 0, 0), snap(Gold, DivII, 22, 0, 0))
	if got := d.Format("vs prev day"); got != "vs prev day: +12 LP" {
		t.Fatalf("Format = %q", got)
	}
	if got := d.Format(""); got != "+12 LP" {
		t.Fatalf("Format(\"\") = %q", got)
	}
	if got := Diff(snap(Gold, DivII, 10, 0, 0), nil).Format("vs prev day"); got != "-" {
		t.Fatalf("missing delta must stay bare, got %q", got)
	}
}
