package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rankbot/internal/rank"
	"rankbot/internal/schedule"
)

type snapKey struct {
	user int64
	date time.Time
}

// memoryStore keeps everything in maps guarded by one mutex.
type memoryStore struct {
	mu sync.Mutex

	accSeq   int64
	accounts map[int64]rank.Account

	snaps map[snapKey]rank.Snapshot

	schedSeq  int64
	schedules map[int64]schedule.Definition
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		accounts:  map[int64]rank.Account{},
		snaps:     map[snapKey]rank.Snapshot{},
		schedules: map[int64]schedule.Definition{},
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) findLocked(displayID string) (rank.Account, bool) {
	for _, a := range m.accounts {
		if strings.EqualFold(a.DisplayID, displayID) {
			return a, true
		}
	}
	return rank.Account{}, false
}

func (m *memoryStore) AddAccount(_ context.Context, a rank.Account) (rank.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findLocked(a.DisplayID); ok {
		return rank.Account{}, fmt.Errorf("account %s: %w", a.DisplayID, ErrExists)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.accSeq++
	a.ID = m.accSeq
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAccount(_ context.Context, displayID string) (rank.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.findLocked(displayID)
	if !ok {
		return rank.Account{}, fmt.Errorf("account %s: %w", displayID, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) DeleteAccount(_ context.Context, displayID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.findLocked(displayID)
	if !ok {
		return fmt.Errorf("account %s: %w", displayID, ErrNotFound)
	}
	delete(m.accounts, a.ID)
	for k := range m.snaps {
		if k.user == a.ID {
			delete(m.snaps, k)
		}
	}
	return nil
}

func (m *memoryStore) ListRoster(context.Context) ([]rank.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rank.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) putLocked(sn rank.Snapshot, overwrite bool) (bool, error) {
	if err := sn.Validate(); err != nil {
		return false, err
	}
	a, ok := m.accounts[sn.UserID]
	if !ok {
		return false, fmt.Errorf("snapshot user %d: %w", sn.UserID, ErrNotFound)
	}
	sn.Date = rank.Day(sn.Date)
	sn.DisplayID = a.DisplayID
	k := snapKey{user: sn.UserID, date: sn.Date}
	if _, exists := m.snaps[k]; exists && !overwrite {
		return false, nil
	}
	m.snaps[k] = sn
	return true, nil
}

func (m *memoryStore) UpsertSnapshot(_ context.Context, sn rank.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.putLocked(sn, true)
	return err
}

func (m *memoryStore) InsertSnapshotIfAbsent(_ context.Context, sn rank.Snapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(sn, false)
}

func (m *memoryStore) query(match func(rank.Snapshot) bool) []rank.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rank.Snapshot
	for _, sn := range m.snaps {
		if match(sn) {
			out = append(out, sn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(rank.Day(from)) && !d.After(rank.Day(to))
}

func (m *memoryStore) QuerySnapshots(_ context.Context, userID int64, from, to time.Time) ([]rank.Snapshot, error) {
	return m.query(func(s rank.Snapshot) bool { return s.UserID == userID && inRange(s.Date, from, to) }), nil
}

func (m *memoryStore) QueryAllSnapshots(_ context.Context, from, to time.Time) ([]rank.Snapshot, error) {
	return m.query(func(s rank.Snapshot) bool { return inRange(s.Date, from, to) }), nil
}

func (m *memoryStore) CreateSchedule(_ context.Context, d schedule.Definition) (schedule.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedSeq++
	now := time.Now().UTC()
	d.ID, d.CreatedAt, d.UpdatedAt = m.schedSeq, now, now
	m.schedules[d.ID] = d
	return d, nil
}

func (m *memoryStore) UpdateSchedule(_ context.Context, d schedule.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.schedules[d.ID]
	if !ok {
		return fmt.Errorf("update schedule: %w", scheduleNotFound())
	}
	cur.At, cur.ChannelID, cur.LookbackDays, cur.Output = d.At, d.ChannelID, d.LookbackDays, d.Output
	cur.UpdatedAt = time.Now().UTC()
	m.schedules[d.ID] = cur
	return nil
}

func (m *memoryStore) DeleteSchedule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return fmt.Errorf("delete schedule: %w", scheduleNotFound())
	}
	delete(m.schedules, id)
	return nil
}

func (m *memoryStore) SetScheduleStatus(_ context.Context, id int64, st schedule.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.schedules[id]
	if !ok {
		return fmt.Errorf("set schedule status: %w", scheduleNotFound())
	}
	d.Status = st
	d.UpdatedAt = time.Now().UTC()
	m.schedules[id] = d
	return nil
}

func (m *memoryStore) GetSchedule(_ context.Context, id int64) (schedule.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.schedules[id]
	if !ok {
		return schedule.Definition{}, fmt.Errorf("schedule %d: %w", id, scheduleNotFound())
	}
	return d, nil
}

func (m *memoryStore) ListSchedules(context.Context) ([]schedule.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schedule.Definition, 0, len(m.schedules))
	for _, d := range m.schedules {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
