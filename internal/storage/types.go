package storage

import (
	"context"
	"errors"
	"time"

	"rankbot/internal/rank"
	"rankbot/internal/schedule"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrExists   = errors.New("storage: already exists")
	ErrDisabled = errors.New("storage disabled")
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "memory": in-process maps, lost on exit
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

// Store is the persistence API used by jobs, commands and the schedule
// registry.
type Store interface {
	AddAccount(ctx context.Context, a rank.Account) (rank.Account, error)
	GetAccount(ctx context.Context, displayID string) (rank.Account, error)
	DeleteAccount(ctx context.Context, displayID string) error
	ListRoster(ctx context.Context) ([]rank.Account, error)

	// UpsertSnapshot writes s, overwriting any snapshot of the same user and date.
	UpsertSnapshot(ctx context.Context, s rank.Snapshot) error
	// InsertSnapshotIfAbsent writes s only when the date is free. It reports
	// whether a row was written.
	InsertSnapshotIfAbsent(ctx context.Context, s rank.Snapshot) (bool, error)
	// QuerySnapshots returns a user's snapshots in [from, to], date ascending.
	QuerySnapshots(ctx context.Context, userID int64, from, to time.Time) ([]rank.Snapshot, error)
	// QueryAllSnapshots returns every snapshot in [from, to], ordered by date then user.
	QueryAllSnapshots(ctx context.Context, from, to time.Time) ([]rank.Snapshot, error)

	schedule.Store

	Close() error
}

func scheduleNotFound() error {
	return errors.Join(ErrNotFound, schedule.ErrNotFound)
}
