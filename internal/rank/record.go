package rank

import (
	"fmt"
	"math"
)

// RecordKind classifies the outcome of comparing win/loss counters.
type RecordKind int

const (
	RecordMissing RecordKind = iota // no "to" snapshot
	RecordNew                       // "to" exists, "from" does not
	RecordNoGames                   // no games played in between
	RecordPlayed
)

const (
	TextNew     = "new"
	TextNoGames = "no games"
)

// WinLoss is the win/loss delta between two snapshots.
//
// Counters are assumed to be non-decreasing. When the provider resets them
// (season rollover) the deltas go negative; they are kept as-is and reported
// through Anomalous instead of being clamped.
type WinLoss struct {
	Kind  RecordKind
	Games int
	Won   int
	Lost  int
}

// Record compares the win/loss counters of two snapshots. Either may be nil.
func Record(from, to *Snapshot) WinLoss {
	if to == nil {
		return WinLoss{Kind: RecordMissing}
	}
	if from == nil {
		return WinLoss{Kind: RecordNew}
	}
	w := WinLoss{
		Won:  to.Wins - from.Wins,
		Lost: to.Losses - from.Losses,
	}
	w.Games = w.Won + w.Lost
	if w.Games <= 0 {
		w.Kind = RecordNoGames
	} else {
		w.Kind = RecordPlayed
	}
	return w
}

// Anomalous reports a decreasing counter.
func (w WinLoss) Anomalous() bool { return w.Won < 0 || w.Lost < 0 }

// WinRate is the rounded win percentage, 0 when no games were played.
func (w WinLoss) WinRate() int {
	if w.Games <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(w.Won) / float64(w.Games)))
}

func (w WinLoss) String() string {
	switch w.Kind {
	case RecordMissing:
		return TextMissing
	case RecordNew:
		return TextNew
	case RecordNoGames:
		return TextNoGames
	default:
		return fmt.Sprintf("%d games, %d won (%d%%)", w.Games, w.Won, w.WinRate())
	}
}
