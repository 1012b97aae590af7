package rank

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider outcomes that count as a failed fetch without being faults.
var (
	ErrAccountNotFound = errors.New("rank: account not found")
	ErrUnranked        = errors.New("rank: account has no solo-queue rank")
)

// DateLayout is the storage and wire format of a snapshot date.
const DateLayout = "2006-01-02"

// Snapshot is one account's rank and win/loss counters on one calendar date.
// At most one snapshot exists per (UserID, Date).
type Snapshot struct {
	UserID    int64
	DisplayID string
	Date      time.Time
	Tier      Tier
	Division  Division
	LP        int
	Wins      int
	Losses    int
}

// Ordinal returns the comparable integer encoding of the snapshot's rank.
func (s Snapshot) Ordinal() int { return Encode(s.Tier, s.Division, s.LP) }

// SameRank reports whether both snapshots hold the same tier, division and LP.
func (s Snapshot) SameRank(o Snapshot) bool {
	return s.Tier == o.Tier && s.Division == o.Division && s.LP == o.LP
}

// SameState additionally compares the win/loss counters.
func (s Snapshot) SameState(o Snapshot) bool {
	return s.SameRank(o) && s.Wins == o.Wins && s.Losses == o.Losses
}

// Validate checks the invariants a stored snapshot must hold.
func (s Snapshot) Validate() error {
	switch {
	case !s.Tier.Valid():
		return fmt.Errorf("rank: invalid tier %d", s.Tier)
	case s.Tier.Apex() && s.Division != NoDivision:
		return fmt.Errorf("rank: apex tier %s cannot carry a division", s.Tier)
	case !s.Tier.Apex() && !s.Division.Valid():
		return fmt.Errorf("rank: tier %s requires a division", s.Tier)
	case s.LP < 0 || s.Wins < 0 || s.Losses < 0:
		return fmt.Errorf("rank: negative counters (lp=%d wins=%d losses=%d)", s.LP, s.Wins, s.Losses)
	case s.Date.IsZero():
		return fmt.Errorf("rank: snapshot date is required")
	}
	return nil
}

// Day truncates t to its calendar date in t's own location and returns
// midnight UTC of that date, so dates compare with == and Equal.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("rank: invalid date %q: %w", s, err)
	}
	return t, nil
}

// Account is one tracked game account on the roster.
type Account struct {
	ID        int64
	DisplayID string // Riot id, "GameName#TAG"
	// InternalID is the provider's summoner id, used for history backfill.
	InternalID string
	AddedBy    int64
	CreatedAt  time.Time
}

// Name is the game-name part of the display id.
func (a Account) Name() string { return GameName(a.DisplayID) }

// GameName strips the "#TAG" suffix of a Riot id.
func GameName(displayID string) string {
	if i := strings.IndexByte(displayID, '#'); i >= 0 {
		return displayID[:i]
	}
	return displayID
}

// SplitRiotID splits "GameName#TAG" into its parts.
func SplitRiotID(id string) (name, tag string, err error) {
	id = strings.TrimSpace(id)
	i := strings.LastIndexByte(id, '#')
	if i <= 0 || i == len(id)-1 {
		return "", "", fmt.Errorf("rank: riot id %q must look like GameName#TAG", id)
	}
	return id[:i], id[i+1:], nil
}
