package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rankbot/internal/rank"
	"rankbot/internal/schedule"
	logx "rankbot/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "rank.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"sqlite": sq, "memory": NewMemory()}
}

func d(m time.Month, day int) time.Time { return time.Date(2025, m, day, 0, 0, 0, 0, time.UTC) }

func TestStore_Roster(t *testing.T) {
	t.Parallel()
	for name, st := range openDrivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := st.AddAccount(ctx, rank.Account{DisplayID: "Hide on bush#KR1", InternalID: "abc", AddedBy: 7})
			if err != nil {
				t.Fatalf("AddAccount: %v", err)
			}
			if a.ID == 0 {
				t.Fatalf("account id not assigned")
			}
			if _, err := st.AddAccount(ctx, rank.Account{DisplayID: "hide on bush#kr1"}); !errors.Is(err, ErrExists) {
				t.Fatalf("duplicate err=%v want ErrExists", err)
			}
			b, err := st.AddAccount(ctx, rank.Account{DisplayID: "Second#JP1"})
			if err != nil {
				t.Fatalf("AddAccount: %v", err)
			}

			got, err := st.GetAccount(ctx, "HIDE ON BUSH#KR1")
			if err != nil || got.ID != a.ID || got.InternalID != "abc" || got.AddedBy != 7 {
				t.Fatalf("GetAccount=%+v,%v", got, err)
			}

			roster, err := st.ListRoster(ctx)
			if err != nil || len(roster) != 2 || roster[0].ID != a.ID || roster[1].ID != b.ID {
				t.Fatalf("ListRoster=%+v,%v", roster, err)
			}

			if err := st.DeleteAccount(ctx, "Second#JP1"); err != nil {
				t.Fatalf("DeleteAccount: %v", err)
			}
			if err := st.DeleteAccount(ctx, "Second#JP1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete err=%v", err)
			}
			if _, err := st.GetAccount(ctx, "nobody#X"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetAccount missing err=%v", err)
			}
		})
	}
}

func TestStore_SnapshotUpsertAndQuery(t *testing.T) {
	t.Parallel()
	for name, st := range openDrivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := st.AddAccount(ctx, rank.Account{DisplayID: "Alpha#EUW"})
			b, _ := st.AddAccount(ctx, rank.Account{DisplayID: "Bravo#EUW"})

			put := func(sn rank.Snapshot) {
				t.Helper()
				if err := st.UpsertSnapshot(ctx, sn); err != nil {
					t.Fatalf("UpsertSnapshot: %v", err)
				}
			}
			put(rank.Snapshot{UserID: a.ID, Date: d(2, 5), Tier: rank.Platinum, Division: rank.DivIII, LP: 72, Wins: 100, Losses: 50})
			put(rank.Snapshot{UserID: a.ID, Date: d(2, 6), Tier: rank.Platinum, Division: rank.DivIII, LP: 10, Wins: 101, Losses: 50})
			put(rank.Snapshot{UserID: b.ID, Date: d(2, 6), Tier: rank.Master, LP: 120, Wins: 300, Losses: 250})
			// Re-fetch of the same date overwrites.
			put(rank.Snapshot{UserID: a.ID, Date: d(2, 6), Tier: rank.Platinum, Division: rank.DivIII, LP: 72, Wins: 103, Losses: 51})

			mine, err := st.QuerySnapshots(ctx, a.ID, d(2, 1), d(2, 6))
			if err != nil {
				t.Fatalf("QuerySnapshots: %v", err)
			}
			if len(mine) != 2 || !mine[0].Date.Equal(d(2, 5)) || mine[1].Wins != 103 || mine[1].DisplayID != "Alpha#EUW" {
				t.Fatalf("QuerySnapshots=%+v", mine)
			}

			all, err := st.QueryAllSnapshots(ctx, d(2, 6), d(2, 6))
			if err != nil {
				t.Fatalf("QueryAllSnapshots: %v", err)
			}
			if len(all) != 2 || all[0].UserID != a.ID || all[1].Tier != rank.Master || all[1].Division != rank.NoDivision {
				t.Fatalf("QueryAllSnapshots=%+v", all)
			}

			ok, err := st.InsertSnapshotIfAbsent(ctx, rank.Snapshot{UserID: a.ID, Date: d(2, 6), Tier: rank.Iron, Division: rank.DivIV})
			if err != nil || ok {
				t.Fatalf("InsertSnapshotIfAbsent on taken date=%v,%v", ok, err)
			}
			ok, err = st.InsertSnapshotIfAbsent(ctx, rank.Snapshot{UserID: a.ID, Date: d(1, 20), Tier: rank.Gold, Division: rank.DivI, LP: 50})
			if err != nil || !ok {
				t.Fatalf("InsertSnapshotIfAbsent on free date=%v,%v", ok, err)
			}

			if err := st.UpsertSnapshot(ctx, rank.Snapshot{UserID: a.ID, Date: d(2, 7), Tier: rank.Master, Division: rank.DivI}); err == nil {
				t.Fatalf("apex with division accepted")
			}

			if err := st.DeleteAccount(ctx, "Alpha#EUW"); err != nil {
				t.Fatalf("DeleteAccount: %v", err)
			}
			left, _ := st.QueryAllSnapshots(ctx, d(1, 1), d(12, 31))
			if len(left) != 1 || left[0].UserID != b.ID {
				t.Fatalf("snapshots after account delete=%+v", left)
			}
		})
	}
}

func TestStore_Schedules(t *testing.T) {
	t.Parallel()
	for name, st := range openDrivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			def, err := st.CreateSchedule(ctx, schedule.Definition{
				At: schedule.TimeOfDay{Hour: 21, Minute: 30}, ChannelID: -100200, OwnerID: 9,
				LookbackDays: 7, Output: schedule.OutputGraph, Status: schedule.StatusEnabled,
			})
			if err != nil || def.ID == 0 {
				t.Fatalf("CreateSchedule=%+v,%v", def, err)
			}

			def.At = schedule.TimeOfDay{Hour: 8}
			def.LookbackDays = 3
			if err := st.UpdateSchedule(ctx, def); err != nil {
				t.Fatalf("UpdateSchedule: %v", err)
			}
			if err := st.SetScheduleStatus(ctx, def.ID, schedule.StatusDisabled); err != nil {
				t.Fatalf("SetScheduleStatus: %v", err)
			}

			got, err := st.GetSchedule(ctx, def.ID)
			if err != nil {
				t.Fatalf("GetSchedule: %v", err)
			}
			if got.At != (schedule.TimeOfDay{Hour: 8}) || got.LookbackDays != 3 || got.Status != schedule.StatusDisabled ||
				got.Output != schedule.OutputGraph || got.ChannelID != -100200 || got.OwnerID != 9 {
				t.Fatalf("GetSchedule=%+v", got)
			}

			list, err := st.ListSchedules(ctx)
			if err != nil || len(list) != 1 {
				t.Fatalf("ListSchedules=%+v,%v", list, err)
			}

			if err := st.DeleteSchedule(ctx, def.ID); err != nil {
				t.Fatalf("DeleteSchedule: %v", err)
			}
			_, err = st.GetSchedule(ctx, def.ID)
			if !errors.Is(err, schedule.ErrNotFound) || !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetSchedule after delete err=%v", err)
			}
			if err := st.SetScheduleStatus(ctx, 999, schedule.StatusEnabled); !errors.Is(err, schedule.ErrNotFound) {
				t.Fatalf("SetScheduleStatus missing err=%v", err)
			}
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Open(context.Background(), Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatalf("expected missing path error")
	}
}
