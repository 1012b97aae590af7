package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"rankbot/internal/jobs"
	"rankbot/internal/report"
	"rankbot/internal/schedule"
	"rankbot/internal/storage"
	"rankbot/internal/transport/telegram/router"
	logx "rankbot/pkg/logx"
)

const defaultReportDays = 7

func (h *handlers) adhocCommands() []router.Command {
	return []router.Command{
		{
			Route:       "test fetch",
			Description: "collect ranks now",
			Usage:       "/test fetch [days_ago 0-7]",
			Access:      router.AccessOwnerOnly,
			Handle:      h.testFetch,
		},
		{
			Route:       "test report",
			Description: "post a report to this chat now",
			Usage:       "/test report [days] [table|graph]",
			Timeout:     2 * time.Minute,
			Handle:      h.testReport,
		},
		{
			Route:       "graph",
			Description: "chart one account's rank history",
			Usage:       "/graph <GameName#TAG> [daily|weekly|monthly]",
			Timeout:     2 * time.Minute,
			Handle:      h.graph,
		},
	}
}

// testFetch hands the collection to the job dispatcher so it never overlaps
// a scheduled run, then replies from the job once it completes.
func (h *handlers) testFetch(ctx context.Context, req *router.Request) error {
	daysAgo, err := optionalInt(req.Args, 0, jobs.DefaultDaysAgo, "days_ago")
	if err != nil {
		return err
	}
	if err := jobs.ValidateDaysAgo(daysAgo); err != nil {
		return router.Usagef("%v", err)
	}

	run := func(jctx context.Context) error {
		res, err := h.Collector.Collect(jctx, daysAgo)
		text := "fetch done: " + res.Summary()
		if err != nil {
			text = "fetch stopped: " + err.Error() + "\n" + res.Summary()
		}
		// The command context may be gone by now.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(jctx), 30*time.Second)
		defer cancel()
		if rerr := req.Reply(rctx, text); rerr != nil {
			req.Logger.Warn("fetch result reply failed", logx.Err(rerr))
		}
		return err
	}

	if h.Jobs == nil {
		return run(ctx)
	}
	if !h.Jobs.Enqueue(schedule.Job{Name: schedule.CollectJobName, Run: run}) {
		return router.Usagef("a collection is already queued or running, try again later")
	}
	return req.Reply(ctx, "fetch queued for "+plural(daysAgo, "day")+" ago")
}

func (h *handlers) testReport(ctx context.Context, req *router.Request) error {
	days := defaultReportDays
	output := schedule.OutputTable
	for _, a := range req.Args {
		if k, err := schedule.ParseOutputKind(a); err == nil {
			output = k
			continue
		}
		n, err := optionalInt([]string{a}, 0, days, "days")
		if err != nil {
			return err
		}
		days = n
	}
	if days < 1 || days > schedule.MaxLookbackDays {
		return router.Usagef("days must be between 1 and %d", schedule.MaxLookbackDays)
	}
	return h.Reporter.Send(ctx, req.Chat, days, output)
}

func (h *handlers) graph(ctx context.Context, req *router.Request) error {
	const usage = "/graph <GameName#TAG> [daily|weekly|monthly]"
	args := req.Args
	mode := report.ModeDaily
	if n := len(args); n > 1 {
		if m, err := report.ParseMode(args[n-1]); err == nil && !strings.Contains(args[n-1], "#") {
			mode = m
			args = args[:n-1]
		}
	}
	id, err := riotIDArg(args, usage)
	if err != nil {
		return err
	}
	acct, err := h.Accounts.GetAccount(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return router.Usagef("%s is not tracked", id)
	}
	if err != nil {
		return err
	}
	return h.Reporter.UserChart(ctx, req.Chat, acct, mode)
}
