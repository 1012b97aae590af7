// Package commands implements the operator chat commands on top of the
// router: roster management, schedule management, ad-hoc runs and charts.
package commands

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"rankbot/internal/jobs"
	"rankbot/internal/provider/opgg"
	"rankbot/internal/rank"
	"rankbot/internal/report"
	"rankbot/internal/schedule"
	kit "rankbot/internal/transport"
	"rankbot/internal/transport/telegram/router"
	logx "rankbot/pkg/logx"
)

type AccountStore interface {
	AddAccount(ctx context.Context, a rank.Account) (rank.Account, error)
	GetAccount(ctx context.Context, displayID string) (rank.Account, error)
	DeleteAccount(ctx context.Context, displayID string) error
	ListRoster(ctx context.Context) ([]rank.Account, error)
}

// AccountResolver confirms a Riot id exists and returns the provider's id.
type AccountResolver interface {
	Lookup(ctx context.Context, displayID string) (opgg.Summoner, error)
}

// Schedules is the part of *schedule.Registry the commands use.
type Schedules interface {
	List(ctx context.Context) ([]schedule.Definition, error)
	Get(ctx context.Context, id int64) (schedule.Definition, error)
	Armed() []schedule.Armed
	Create(ctx context.Context, owner int64, in schedule.Input) (schedule.Definition, error)
	Update(ctx context.Context, id int64, in schedule.Input) (schedule.Definition, error)
	Delete(ctx context.Context, id int64) error
	Enable(ctx context.Context, id int64) error
	Disable(ctx context.Context, id int64) error
}

type Collector interface {
	Collect(ctx context.Context, daysAgo int) (jobs.Result, error)
	Backfill(ctx context.Context, acct rank.Account) (jobs.BackfillResult, error)
}

type Reporter interface {
	Send(ctx context.Context, to kit.ChatTarget, days int, output schedule.OutputKind) error
	UserChart(ctx context.Context, to kit.ChatTarget, acct rank.Account, mode report.Mode) error
}

type Deps struct {
	Accounts  AccountStore
	Resolver  AccountResolver
	Schedules Schedules
	Collector Collector
	Reporter  Reporter
	// Jobs serializes ad-hoc collections with the scheduled ones.
	Jobs     schedule.Enqueuer
	Location *time.Location
	Started  time.Time
	Log      logx.Logger
}

type handlers struct {
	Deps
}

// Build returns the full command set.
func Build(d Deps) []router.Command {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	h := &handlers{Deps: d}

	var cmds []router.Command
	cmds = append(cmds, router.Command{
		Route:       "ping",
		Description: "check the bot is alive",
		Usage:       "/ping",
		Handle:      h.ping,
	})
	cmds = append(cmds, h.userCommands()...)
	cmds = append(cmds, h.scheduleCommands()...)
	cmds = append(cmds, h.adhocCommands()...)
	return cmds
}

func (h *handlers) ping(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, "pong (up "+time.Since(h.Started).Round(time.Second).String()+")")
}

// pre wraps monospace text for HTML parse mode.
func pre(s string) string { return "<pre>" + html.EscapeString(s) + "</pre>" }

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Format.Footer = text.FormatDefault
	return tw
}

func parseID(args []string, usage string) (int64, error) {
	if len(args) < 1 {
		return 0, router.Usagef("usage: %s", usage)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, router.Usagef("%q is not a schedule id\nusage: %s", args[0], usage)
	}
	return id, nil
}

func optionalInt(args []string, i, def int, name string) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, router.Usagef("%s must be a number, got %q", name, args[i])
	}
	return n, nil
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
