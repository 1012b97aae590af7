package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"rankbot/internal/schedule"
	"rankbot/internal/storage"
	"rankbot/internal/transport/telegram/router"
)

const scheduleInputUsage = "HH:MM[:SS] here|<channel-id> <days> [table|graph]"

const scheduleHelp = `Report schedules post a rank report every day at a fixed time.

/schedule add ` + scheduleInputUsage + `
  e.g. /schedule add 09:00 here 7
       /schedule add 21:30 -1001234567890 30 graph
/schedule edit <id> ` + scheduleInputUsage + `
/schedule del <id>
/schedule enable <id> | /schedule disable <id>
/schedule show

days is the lookback window (1-365). "here" posts to this chat.`

func (h *handlers) scheduleCommands() []router.Command {
	return []router.Command{
		{Route: "schedule show", Aliases: []string{"schedules"}, Description: "list report schedules and next fire times", Usage: "/schedule show", Handle: h.scheduleShow},
		{Route: "schedule help", Description: "explain the schedule input format", Usage: "/schedule help", Handle: h.scheduleHelp},
		{Route: "schedule add", Description: "create a daily report", Usage: "/schedule add " + scheduleInputUsage, Access: router.AccessOwnerOnly, Handle: h.scheduleAdd},
		{Route: "schedule edit", Description: "replace a schedule's time, channel, days and output", Usage: "/schedule edit <id> " + scheduleInputUsage, Access: router.AccessOwnerOnly, Handle: h.scheduleEdit},
		{Route: "schedule del", Description: "delete a schedule", Usage: "/schedule del <id>", Access: router.AccessOwnerOnly, Handle: h.scheduleDel},
		{Route: "schedule enable", Description: "resume a schedule", Usage: "/schedule enable <id>", Access: router.AccessOwnerOnly, Handle: h.scheduleEnable},
		{Route: "schedule disable", Description: "pause a schedule", Usage: "/schedule disable <id>", Access: router.AccessOwnerOnly, Handle: h.scheduleDisable},
	}
}

// scheduleErr maps registry errors onto operator-facing messages.
func scheduleErr(err error, id int64) error {
	var ve *schedule.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ve):
		return router.Usagef("invalid %s: %s", ve.Field, ve.Reason)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, schedule.ErrNotFound):
		return router.Usagef("schedule #%d does not exist", id)
	}
	return err
}

func (h *handlers) scheduleShow(ctx context.Context, req *router.Request) error {
	defs, err := h.Schedules.List(ctx)
	if err != nil {
		return err
	}
	next := map[string]time.Time{}
	for _, a := range h.Schedules.Armed() {
		next[a.Name] = a.Next
	}

	var b strings.Builder
	if t, ok := next[schedule.CollectJobName]; ok {
		fmt.Fprintf(&b, "collection: %s (%s)\n\n", formatTime(t, h.Location), humanize.Time(t))
	}
	if len(defs) == 0 {
		b.WriteString("no report schedules, add one with /schedule add")
		return req.Reply(ctx, b.String())
	}

	tw := newTable()
	tw.AppendHeader([]any{"ID", "At", "Channel", "Days", "Output", "Status", "Next"})
	enabled := 0
	for _, d := range defs {
		nf := "-"
		if t, ok := next[schedule.ReportJobName(d.ID)]; ok && d.Enabled() {
			nf = humanize.Time(t)
		}
		if d.Enabled() {
			enabled++
		}
		tw.AppendRow([]any{d.ID, d.At.String(), d.ChannelID, d.LookbackDays, string(d.Output), strings.ToLower(string(d.Status)), nf})
	}
	tw.AppendFooter([]any{"", "", "", "", "", fmt.Sprintf("%d/%d on", enabled, len(defs)), ""})
	return req.ReplyHTML(ctx, pre(b.String()+tw.Render()))
}

func (h *handlers) scheduleHelp(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, scheduleHelp)
}

func (h *handlers) scheduleAdd(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return router.Usagef("usage: /schedule add %s", scheduleInputUsage)
	}
	in, err := schedule.ParseDefinitionInput(strings.Join(req.Args, " "), req.Chat.ChatID)
	if err != nil {
		return scheduleErr(err, 0)
	}
	d, err := h.Schedules.Create(ctx, req.FromID, in)
	if err := scheduleErr(err, 0); err != nil {
		return err
	}
	return req.Reply(ctx, "created "+describe(d))
}

func (h *handlers) scheduleEdit(ctx context.Context, req *router.Request) error {
	const usage = "/schedule edit <id> " + scheduleInputUsage
	id, err := parseID(req.Args, usage)
	if err != nil {
		return err
	}
	if len(req.Args) < 2 {
		return router.Usagef("usage: %s", usage)
	}
	in, err := schedule.ParseDefinitionInput(strings.Join(req.Args[1:], " "), req.Chat.ChatID)
	if err != nil {
		return scheduleErr(err, id)
	}
	d, err := h.Schedules.Update(ctx, id, in)
	if err := scheduleErr(err, id); err != nil {
		return err
	}
	return req.Reply(ctx, "updated "+describe(d))
}

func (h *handlers) scheduleDel(ctx context.Context, req *router.Request) error {
	id, err := parseID(req.Args, "/schedule del <id>")
	if err != nil {
		return err
	}
	if err := scheduleErr(h.Schedules.Delete(ctx, id), id); err != nil {
		return err
	}
	return req.Reply(ctx, "deleted schedule #"+strconv.FormatInt(id, 10))
}

func (h *handlers) scheduleEnable(ctx context.Context, req *router.Request) error {
	return h.setStatus(ctx, req, "enable", h.Schedules.Enable)
}

func (h *handlers) scheduleDisable(ctx context.Context, req *router.Request) error {
	return h.setStatus(ctx, req, "disable", h.Schedules.Disable)
}

func (h *handlers) setStatus(ctx context.Context, req *router.Request, verb string, fn func(context.Context, int64) error) error {
	id, err := parseID(req.Args, "/schedule "+verb+" <id>")
	if err != nil {
		return err
	}
	if err := scheduleErr(fn(ctx, id), id); err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("schedule #%d %sd", id, verb))
}

func describe(d schedule.Definition) string {
	return fmt.Sprintf("schedule #%d: %s daily to %d, last %s as %s",
		d.ID, d.At, d.ChannelID, plural(d.LookbackDays, "day"), d.Output)
}
