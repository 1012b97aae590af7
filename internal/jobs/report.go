package jobs

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rankbot/internal/eventbus"
	"rankbot/internal/rank"
	"rankbot/internal/report"
	"rankbot/internal/schedule"
	kit "rankbot/internal/transport"
	logx "rankbot/pkg/logx"
)

const (
	// NoAccountsText is sent instead of a report when the roster is empty.
	NoAccountsText = "no accounts registered yet, add one with /user add"
	// DefaultChunkLimit keeps one <pre> block under Telegram's message limit.
	DefaultChunkLimit = 3900

	preOpen  = "<pre>"
	preClose = "</pre>"
)

type ReporterOptions struct {
	Roster   RosterSource
	Store    SnapshotStore
	Sender   kit.Adapter
	Renderer report.Renderer
	Clock    Clock
	// ChunkLimit bounds each text message, markup included.
	ChunkLimit int
	Bus        eventbus.Bus
	Log        logx.Logger
}

// Reporter builds tables and charts from stored snapshots and delivers them.
type Reporter struct {
	roster     RosterSource
	store      SnapshotStore
	sender     kit.Adapter
	clock      Clock
	chunkLimit int
	bus        eventbus.Bus
	log        logx.Logger

	mu       sync.RWMutex
	renderer report.Renderer
}

func NewReporter(opt ReporterOptions) *Reporter {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.ChunkLimit <= len(preOpen)+len(preClose) {
		opt.ChunkLimit = DefaultChunkLimit
	}
	if opt.Renderer == nil {
		opt.Renderer = report.PNGRenderer{}
	}
	return &Reporter{
		roster:     opt.Roster,
		store:      opt.Store,
		sender:     opt.Sender,
		renderer:   opt.Renderer,
		clock:      opt.Clock,
		chunkLimit: opt.ChunkLimit,
		bus:        opt.Bus,
		log:        opt.Log.With(logx.String("comp", "report")),
	}
}

// SetRenderer swaps the chart renderer used by later runs.
func (r *Reporter) SetRenderer(rd report.Renderer) {
	if rd == nil {
		return
	}
	r.mu.Lock()
	r.renderer = rd
	r.mu.Unlock()
}

// Run is the scheduled entry point bound to a report definition.
func (r *Reporter) Run(ctx context.Context, req schedule.ReportRequest) error {
	log := r.log.With(logx.Int64("schedule_id", req.ScheduleID), logx.Int64("channel_id", req.ChannelID))
	err := r.Send(ctx, kit.ChatTarget{ChatID: req.ChannelID}, req.LookbackDays, req.Output)
	if err != nil {
		log.Error("scheduled report failed", logx.Err(err))
		return err
	}
	log.Info("scheduled report sent", logx.Int("days", req.LookbackDays), logx.String("output", string(req.Output)))
	return nil
}

// Send builds a report over [today-days, today] and delivers it to to.
func (r *Reporter) Send(ctx context.Context, to kit.ChatTarget, days int, output schedule.OutputKind) error {
	if days < 0 || days > schedule.MaxLookbackDays {
		return fmt.Errorf("report: lookback must be between 0 and %d days", schedule.MaxLookbackDays)
	}
	w := report.LastDays(r.clock.Today(), days)

	var (
		roster []rank.Account
		snaps  []rank.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if roster, err = r.roster.ListRoster(gctx); err != nil {
			return fmt.Errorf("report: list roster: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		// One extra day so the first date's daily diff has a predecessor.
		if snaps, err = r.store.QueryAllSnapshots(gctx, w.From.AddDate(0, 0, -1), w.To); err != nil {
			return fmt.Errorf("report: query snapshots: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if len(roster) == 0 {
		_, err := r.sender.SendText(ctx, to, NoAccountsText, nil)
		return err
	}

	var err error
	switch output {
	case schedule.OutputGraph:
		err = r.sendChart(ctx, to, roster, w, snaps)
	default:
		err = r.sendTable(ctx, to, roster, w, snaps)
	}
	if err == nil && r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: EventReportSent, Data: map[string]any{
			"chat_id": to.ChatID, "days": days, "output": string(output),
		}})
	}
	return err
}

// Table builds the diff table without sending it.
func (r *Reporter) Table(roster []rank.Account, w report.Window, snaps []rank.Snapshot) report.Table {
	ix := report.NewIndex(snaps)
	t := report.BuildTable(roster, w, ix.Get)
	if !t.Empty() {
		r.logAnomalies(roster, t.Anchor, ix)
	}
	return t
}

func (r *Reporter) sendTable(ctx context.Context, to kit.ChatTarget, roster []rank.Account, w report.Window, snaps []rank.Snapshot) error {
	t := r.Table(roster, w, snaps)
	for _, chunk := range report.SplitLines(t.String(), r.chunkLimit-len(preOpen)-len(preClose)) {
		if _, err := r.sender.SendText(ctx, to, preOpen+html.EscapeString(chunk)+preClose, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}); err != nil {
			return fmt.Errorf("report: send table: %w", err)
		}
	}
	return nil
}

// logAnomalies reports accounts whose win/loss counters went backwards
// between the anchor date and the day before.
func (r *Reporter) logAnomalies(roster []rank.Account, anchor time.Time, ix *report.Index) {
	for _, a := range roster {
		rec := rank.Record(ix.Get(a.ID, anchor.AddDate(0, 0, -1)), ix.Get(a.ID, anchor))
		if rec.Anomalous() {
			r.log.Warn("win/loss counters decreased",
				logx.String("account", a.DisplayID), logx.Int("won", rec.Won), logx.Int("lost", rec.Lost),
				logx.String("date", anchor.Format(rank.DateLayout)))
		}
	}
}

// ModeForDays picks the X-axis granularity for a lookback length.
func ModeForDays(days int) report.Mode {
	switch {
	case days <= 31:
		return report.ModeDaily
	case days <= 120:
		return report.ModeWeekly
	default:
		return report.ModeMonthly
	}
}

func (r *Reporter) sendChart(ctx context.Context, to kit.ChatTarget, roster []rank.Account, w report.Window, snaps []rank.Snapshot) error {
	byUser := map[int64][]rank.Snapshot{}
	for _, s := range snaps {
		if w.Contains(s.Date) {
			byUser[s.UserID] = append(byUser[s.UserID], s)
		}
	}
	series := make([]report.Series, 0, len(roster))
	for _, a := range roster {
		series = append(series, report.SeriesFromSnapshots(a.Name(), byUser[a.ID]))
	}
	days := len(w.Days()) - 1
	title := fmt.Sprintf("Rank history, last %d days", days)
	return r.deliverChart(ctx, to, title, title, ModeForDays(days), series...)
}

// UserChart sends the full stored history of one account.
func (r *Reporter) UserChart(ctx context.Context, to kit.ChatTarget, acct rank.Account, mode report.Mode) error {
	snaps, err := r.store.QuerySnapshots(ctx, acct.ID, time.Time{}, r.clock.Today())
	if err != nil {
		return fmt.Errorf("report: query snapshots: %w", err)
	}
	return r.deliverChart(ctx, to, acct.DisplayID, userCaption(acct.DisplayID, snaps), mode, report.SeriesFromSnapshots(acct.Name(), snaps))
}

// userCaption summarizes the latest snapshot against the previous day and
// the first stored day. snaps is ascending by date.
func userCaption(title string, snaps []rank.Snapshot) string {
	if len(snaps) == 0 {
		return title
	}
	last := snaps[len(snaps)-1]
	var prev, first *rank.Snapshot
	if n := len(snaps); n > 1 {
		if p := snaps[n-2]; p.Date.Equal(last.Date.AddDate(0, 0, -1)) {
			prev = &p
		}
		first = &snaps[0]
	}
	return strings.Join([]string{
		title,
		rank.Long(last),
		rank.Diff(prev, &last).Format("vs prev day"),
		rank.Diff(first, &last).Format("vs first"),
	}, "\n")
}

func (r *Reporter) deliverChart(ctx context.Context, to kit.ChatTarget, title, caption string, mode report.Mode, series ...report.Series) error {
	spec, err := report.BuildChart(title, mode, series...)
	if errors.Is(err, report.ErrNoData) {
		_, err = r.sender.SendText(ctx, to, report.NoDataText, nil)
		return err
	}
	if err != nil {
		return err
	}
	r.mu.RLock()
	rd := r.renderer
	r.mu.RUnlock()
	art, err := rd.Render(spec)
	if err != nil {
		return fmt.Errorf("report: render chart: %w", err)
	}
	f := kit.File{Name: art.Filename, MIME: art.MIME, Data: art.Data, Caption: caption}
	if art.Kind == report.ArtifactDocument {
		_, err = r.sender.SendDocument(ctx, to, f)
	} else {
		_, err = r.sender.SendImage(ctx, to, f)
	}
	if err != nil {
		return fmt.Errorf("report: send chart: %w", err)
	}
	return nil
}
