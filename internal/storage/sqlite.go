package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"rankbot/internal/rank"
	"rankbot/internal/schedule"
	logx "rankbot/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const stampLayout = time.RFC3339Nano

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	log = log.With(logx.String("comp", "storage"), logx.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: pragmas stick and writers never contend.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := optimizeSQLite(ctx, db, cfg.BusyTimeout, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("database ready")
	return &sqliteStore{db: db, log: log}, nil
}

func optimizeSQLite(ctx context.Context, db *sql.DB, busy time.Duration, log logx.Logger) error {
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", fmt.Sprint(busy.Milliseconds())},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set PRAGMA %s: %w", p.name, err)
		}
		log.Debug("sqlite pragma set", logx.String("pragma", p.name), logx.String("value", p.value))
	}
	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, log logx.Logger) error {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run goose migrations: %w", err)
	}
	for _, r := range results {
		log.Info("migration applied", logx.Int64("version", r.Source.Version), logx.Duration("took", r.Duration))
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- roster ----

func (s *sqliteStore) AddAccount(ctx context.Context, a rank.Account) (rank.Account, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts(display_id, internal_id, added_by, created_at) VALUES(?,?,?,?)
		 ON CONFLICT(display_id) DO NOTHING`,
		a.DisplayID, a.InternalID, a.AddedBy, a.CreatedAt.UTC().Format(stampLayout),
	)
	if err != nil {
		return rank.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rank.Account{}, fmt.Errorf("account %s: %w", a.DisplayID, ErrExists)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return rank.Account{}, err
	}
	a.ID = id
	return a, nil
}

const accountCols = `id, display_id, internal_id, added_by, created_at`

func scanAccount(sc interface{ Scan(...any) error }) (rank.Account, error) {
	var (
		a       rank.Account
		created string
	)
	if err := sc.Scan(&a.ID, &a.DisplayID, &a.InternalID, &a.AddedBy, &created); err != nil {
		return rank.Account{}, err
	}
	a.CreatedAt, _ = time.Parse(stampLayout, created)
	return a, nil
}

func (s *sqliteStore) GetAccount(ctx context.Context, displayID string) (rank.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE display_id = ?`, displayID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rank.Account{}, fmt.Errorf("account %s: %w", displayID, ErrNotFound)
	}
	return a, err
}

func (s *sqliteStore) DeleteAccount(ctx context.Context, displayID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE display_id = ?`, displayID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", displayID, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) ListRoster(ctx context.Context) ([]rank.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()
	var out []rank.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- snapshots ----

func snapshotArgs(sn rank.Snapshot) []any {
	return []any{
		sn.UserID, rank.Day(sn.Date).Format(rank.DateLayout), sn.Tier.String(), sn.Division.String(),
		sn.LP, sn.Wins, sn.Losses, time.Now().UTC().Format(stampLayout),
	}
}

func (s *sqliteStore) UpsertSnapshot(ctx context.Context, sn rank.Snapshot) error {
	if err := sn.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(user_id, date, tier, division, lp, wins, losses, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(user_id, date) DO UPDATE SET
		   tier=excluded.tier, division=excluded.division, lp=excluded.lp,
		   wins=excluded.wins, losses=excluded.losses, updated_at=excluded.updated_at`,
		snapshotArgs(sn)...,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (s *sqliteStore) InsertSnapshotIfAbsent(ctx context.Context, sn rank.Snapshot) (bool, error) {
	if err := sn.Validate(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(user_id, date, tier, division, lp, wins, losses, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(user_id, date) DO NOTHING`,
		snapshotArgs(sn)...,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

const snapshotSelect = `SELECT s.user_id, a.display_id, s.date, s.tier, s.division, s.lp, s.wins, s.losses
	FROM snapshots s JOIN accounts a ON a.id = s.user_id`

func (s *sqliteStore) QuerySnapshots(ctx context.Context, userID int64, from, to time.Time) ([]rank.Snapshot, error) {
	return s.querySnapshots(ctx,
		snapshotSelect+` WHERE s.user_id = ? AND s.date BETWEEN ? AND ? ORDER BY s.date`,
		userID, rank.Day(from).Format(rank.DateLayout), rank.Day(to).Format(rank.DateLayout))
}

func (s *sqliteStore) QueryAllSnapshots(ctx context.Context, from, to time.Time) ([]rank.Snapshot, error) {
	return s.querySnapshots(ctx,
		snapshotSelect+` WHERE s.date BETWEEN ? AND ? ORDER BY s.date, s.user_id`,
		rank.Day(from).Format(rank.DateLayout), rank.Day(to).Format(rank.DateLayout))
}

func (s *sqliteStore) querySnapshots(ctx context.Context, q string, args ...any) ([]rank.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []rank.Snapshot
	for rows.Next() {
		var (
			sn             rank.Snapshot
			date, tier, dv string
		)
		if err := rows.Scan(&sn.UserID, &sn.DisplayID, &date, &tier, &dv, &sn.LP, &sn.Wins, &sn.Losses); err != nil {
			return nil, err
		}
		if sn.Date, err = rank.ParseDay(date); err != nil {
			return nil, err
		}
		if sn.Tier, err = rank.ParseTier(tier); err != nil {
			return nil, err
		}
		if sn.Division, err = rank.ParseDivision(dv); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// ---- schedules ----

func (s *sqliteStore) CreateSchedule(ctx context.Context, d schedule.Definition) (schedule.Definition, error) {
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(at, channel_id, owner_id, lookback_days, output, status, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		d.At.String(), d.ChannelID, d.OwnerID, d.LookbackDays, string(d.Output), string(d.Status),
		now.Format(stampLayout), now.Format(stampLayout),
	)
	if err != nil {
		return schedule.Definition{}, fmt.Errorf("insert schedule: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return schedule.Definition{}, err
	}
	return d, nil
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, d schedule.Definition) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET at=?, channel_id=?, lookback_days=?, output=?, updated_at=? WHERE id=?`,
		d.At.String(), d.ChannelID, d.LookbackDays, string(d.Output), time.Now().UTC().Format(stampLayout), d.ID,
	)
	return s.expectOne(res, err, "update schedule")
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id=?`, id)
	return s.expectOne(res, err, "delete schedule")
}

func (s *sqliteStore) SetScheduleStatus(ctx context.Context, id int64, st schedule.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET status=?, updated_at=? WHERE id=?`,
		string(st), time.Now().UTC().Format(stampLayout), id,
	)
	return s.expectOne(res, err, "set schedule status")
}

func (s *sqliteStore) expectOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, scheduleNotFound())
	}
	return nil
}

const scheduleCols = `id, at, channel_id, owner_id, lookback_days, output, status, created_at, updated_at`

func scanSchedule(sc interface{ Scan(...any) error }) (schedule.Definition, error) {
	var (
		d                         schedule.Definition
		at, out, st, created, upd string
	)
	if err := sc.Scan(&d.ID, &at, &d.ChannelID, &d.OwnerID, &d.LookbackDays, &out, &st, &created, &upd); err != nil {
		return schedule.Definition{}, err
	}
	tod, err := schedule.ParseTimeOfDay(at)
	if err != nil {
		return schedule.Definition{}, fmt.Errorf("schedule %d: %w", d.ID, err)
	}
	d.At = tod
	d.Output = schedule.OutputKind(out)
	d.Status = schedule.Status(st)
	d.CreatedAt, _ = time.Parse(stampLayout, created)
	d.UpdatedAt, _ = time.Parse(stampLayout, upd)
	return d, nil
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id int64) (schedule.Definition, error) {
	d, err := scanSchedule(s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Definition{}, fmt.Errorf("schedule %d: %w", id, scheduleNotFound())
	}
	return d, err
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]schedule.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleCols+` FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	var out []schedule.Definition
	for rows.Next() {
		d, err := scanSchedule(rows)
		if err != nil {
			// Keep the rest usable; a corrupt row is reported and skipped.
			s.log.Warn("skip unreadable schedule row", logx.Err(err))
			continue
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
