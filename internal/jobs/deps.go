// Package jobs holds the collection and report jobs the scheduler runs and
// the ad-hoc operations built from the same pieces.
package jobs

import (
	"context"
	"time"

	"rankbot/internal/rank"
)

// Event types published on the bus.
const (
	EventCollectFinished = "collect.finished"
	EventReportSent      = "report.sent"
	EventFetchFailed     = "collect.fetch_failed"
)

// RosterSource lists the tracked accounts.
type RosterSource interface {
	ListRoster(ctx context.Context) ([]rank.Account, error)
}

// SnapshotStore persists and reads daily snapshots.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, s rank.Snapshot) error
	InsertSnapshotIfAbsent(ctx context.Context, s rank.Snapshot) (bool, error)
	QuerySnapshots(ctx context.Context, userID int64, from, to time.Time) ([]rank.Snapshot, error)
	QueryAllSnapshots(ctx context.Context, from, to time.Time) ([]rank.Snapshot, error)
}

// RankProvider fetches ranks from the outside world. Unknown accounts yield
// rank.ErrAccountNotFound, accounts without a solo-queue rank
// rank.ErrUnranked.
type RankProvider interface {
	FetchCurrentRank(ctx context.Context, displayID string) (rank.Snapshot, error)
	FetchHistory(ctx context.Context, internalID string) ([]rank.Snapshot, error)
}

// Clock yields the current calendar date in the configured zone.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// Today returns today's date as a rank.Day value.
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return rank.Day(now().In(loc))
}
