package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"rankbot/internal/eventbus"
	"rankbot/internal/rank"
	logx "rankbot/pkg/logx"
)

const (
	// DefaultDaysAgo is the scheduled collection's target: yesterday.
	DefaultDaysAgo = 1
	// MaxDaysAgo bounds ad-hoc collections.
	MaxDaysAgo = 7
	// DefaultFetchDelay spaces consecutive provider calls.
	DefaultFetchDelay = 2 * time.Second
)

// Result summarizes one collection run. Total == Success + Failed.
type Result struct {
	RunID   string        `json:"run_id"`
	Date    time.Time     `json:"date"`
	Total   int           `json:"total"`
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Took    time.Duration `json:"took"`
}

// Summary is the operator-facing text of a result.
func (r Result) Summary() string {
	return fmt.Sprintf("collection for %s finished in %s\n- accounts: %d\n- success: %d\n- failed/skipped: %d",
		r.Date.Format(rank.DateLayout), r.Took.Round(100*time.Millisecond), r.Total, r.Success, r.Failed)
}

type CollectorOptions struct {
	Roster   RosterSource
	Store    SnapshotStore
	Provider RankProvider
	Clock    Clock
	// Delay is the pause after one fetch ends and before the next starts;
	// negative disables it.
	Delay time.Duration
	Bus   eventbus.Bus
	Log   logx.Logger
}

// Collector fetches every roster entry sequentially and stores one snapshot
// per account for the target date.
type Collector struct {
	roster   RosterSource
	store    SnapshotStore
	provider RankProvider
	clock    Clock
	delay    atomic.Int64 // time.Duration
	bus      eventbus.Bus
	log      logx.Logger
}

func NewCollector(opt CollectorOptions) *Collector {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.Delay == 0 {
		opt.Delay = DefaultFetchDelay
	}
	c := &Collector{
		roster:   opt.Roster,
		store:    opt.Store,
		provider: opt.Provider,
		clock:    opt.Clock,
		bus:      opt.Bus,
		log:      opt.Log.With(logx.String("comp", "collect")),
	}
	c.SetDelay(opt.Delay)
	return c
}

// SetDelay changes the inter-fetch delay for subsequent runs; d <= 0
// disables it.
func (c *Collector) SetDelay(d time.Duration) { c.delay.Store(int64(max(d, 0))) }

func (c *Collector) Delay() time.Duration { return time.Duration(c.delay.Load()) }

// ValidateDaysAgo checks an ad-hoc target offset.
func ValidateDaysAgo(daysAgo int) error {
	if daysAgo < 0 || daysAgo > MaxDaysAgo {
		return fmt.Errorf("days_ago must be between 0 and %d", MaxDaysAgo)
	}
	return nil
}

// Run is the scheduled entry point: collect for yesterday.
func (c *Collector) Run(ctx context.Context) error {
	_, err := c.Collect(ctx, DefaultDaysAgo)
	return err
}

// Collect fetches the current rank of every account and stores it under
// today - daysAgo, replacing any snapshot already stored for that date.
// Per-account failures are counted and logged; only a roster read failure
// or cancellation aborts the run.
func (c *Collector) Collect(ctx context.Context, daysAgo int) (Result, error) {
	if err := ValidateDaysAgo(daysAgo); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res := Result{
		RunID: gonanoid.Must(12),
		Date:  c.clock.Today().AddDate(0, 0, -daysAgo),
	}
	log := c.log.With(logx.String("run_id", res.RunID), logx.String("date", res.Date.Format(rank.DateLayout)))

	roster, err := c.roster.ListRoster(ctx)
	if err != nil {
		return res, fmt.Errorf("collect: list roster: %w", err)
	}
	res.Total = len(roster)
	delay := c.Delay()
	log.Info("collection started", logx.Int("accounts", res.Total), logx.Duration("delay", delay))

	for i, acct := range roster {
		if err := c.pause(ctx, i, delay); err != nil {
			res.Failed += res.Total - res.Success - res.Failed
			res.Took = time.Since(start)
			return res, fmt.Errorf("collect: %w", err)
		}
		if err := c.collectOne(ctx, acct, res.Date); err != nil {
			res.Failed++
			lvl := log.Error
			if errors.Is(err, rank.ErrAccountNotFound) || errors.Is(err, rank.ErrUnranked) {
				lvl = log.Warn
			}
			lvl("fetch failed", logx.String("account", acct.DisplayID), logx.Err(err))
			c.publish(EventFetchFailed, map[string]any{"account": acct.DisplayID, "error": err.Error()})
			continue
		}
		res.Success++
	}

	res.Took = time.Since(start)
	log.Info("collection finished",
		logx.Int("total", res.Total), logx.Int("success", res.Success), logx.Int("failed", res.Failed),
		logx.Duration("took", res.Took))
	c.publish(EventCollectFinished, res)
	return res, nil
}

// pause waits delay between the end of one fetch and the start of the next.
func (c *Collector) pause(ctx context.Context, i int, delay time.Duration) error {
	if i == 0 || delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Collector) collectOne(ctx context.Context, acct rank.Account, date time.Time) error {
	snap, err := c.provider.FetchCurrentRank(ctx, acct.DisplayID)
	if err != nil {
		return err
	}
	snap.UserID = acct.ID
	snap.DisplayID = acct.DisplayID
	snap.Date = date
	if err := c.store.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (c *Collector) publish(typ string, data any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
