package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"rankbot/internal/provider/opgg"
	"rankbot/internal/rank"
	"rankbot/internal/storage"
	"rankbot/internal/transport/telegram/router"
	logx "rankbot/pkg/logx"
)

func (h *handlers) userCommands() []router.Command {
	return []router.Command{
		{
			Route:       "user add",
			Description: "track an account",
			Usage:       "/user add <GameName#TAG | op.gg profile url>",
			Access:      router.AccessOwnerOnly,
			Handle:      h.userAdd,
		},
		{
			Route:       "user del",
			Aliases:     []string{"user_rm"},
			Description: "stop tracking an account and drop its history",
			Usage:       "/user del <GameName#TAG>",
			Access:      router.AccessOwnerOnly,
			Handle:      h.userDel,
		},
		{
			Route:       "user list",
			Description: "list tracked accounts",
			Usage:       "/user list",
			Handle:      h.userList,
		},
		{
			Route:       "user backfill",
			Description: "import an account's rank history from the provider",
			Usage:       "/user backfill <GameName#TAG>",
			Access:      router.AccessOwnerOnly,
			Handle:      h.userBackfill,
		},
	}
}

// riotIDArg accepts "Name#TAG" (possibly split over several tokens) or an
// op.gg profile url.
func riotIDArg(args []string, usage string) (string, error) {
	raw := strings.TrimSpace(strings.Join(args, " "))
	if raw == "" {
		return "", router.Usagef("usage: %s", usage)
	}
	if opgg.IsProfileURL(raw) {
		id, _, err := opgg.ParseProfileURL(raw)
		if err != nil {
			return "", router.Usagef("could not read that op.gg url: %v", err)
		}
		return id, nil
	}
	if _, _, err := rank.SplitRiotID(raw); err != nil {
		return "", router.Usagef("%q is not a Riot id, expected GameName#TAG or an op.gg url", raw)
	}
	return raw, nil
}

func (h *handlers) userAdd(ctx context.Context, req *router.Request) error {
	id, err := riotIDArg(req.Args, "/user add <GameName#TAG | op.gg profile url>")
	if err != nil {
		return err
	}
	s, err := h.Resolver.Lookup(ctx, id)
	if errors.Is(err, rank.ErrAccountNotFound) {
		return router.Usagef("account %s was not found", id)
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", id, err)
	}

	acct, err := h.Accounts.AddAccount(ctx, rank.Account{
		DisplayID:  s.DisplayID(),
		InternalID: s.InternalID,
		AddedBy:    req.FromID,
	})
	if errors.Is(err, storage.ErrExists) {
		return router.Usagef("%s is already tracked", s.DisplayID())
	}
	if err != nil {
		return err
	}
	req.Logger.Info("account added", logx.String("account", acct.DisplayID), logx.String("internal_id", acct.InternalID))
	return req.Reply(ctx, "now tracking "+acct.DisplayID+"\nimport past ranks with /user backfill "+acct.DisplayID)
}

func (h *handlers) userDel(ctx context.Context, req *router.Request) error {
	id, err := riotIDArg(req.Args, "/user del <GameName#TAG>")
	if err != nil {
		return err
	}
	if err := h.Accounts.DeleteAccount(ctx, id); errors.Is(err, storage.ErrNotFound) {
		return router.Usagef("%s is not tracked", id)
	} else if err != nil {
		return err
	}
	return req.Reply(ctx, "stopped tracking "+id)
}

func (h *handlers) userList(ctx context.Context, req *router.Request) error {
	roster, err := h.Accounts.ListRoster(ctx)
	if err != nil {
		return err
	}
	if len(roster) == 0 {
		return req.Reply(ctx, "no accounts tracked yet, add one with /user add")
	}
	tw := newTable()
	tw.AppendHeader([]any{"#", "Account", "Added"})
	for i, a := range roster {
		tw.AppendRow([]any{i + 1, a.DisplayID, humanize.Time(a.CreatedAt)})
	}
	tw.AppendFooter([]any{"", plural(len(roster), "account"), ""})
	return req.ReplyHTML(ctx, pre(tw.Render()))
}

func (h *handlers) userBackfill(ctx context.Context, req *router.Request) error {
	id, err := riotIDArg(req.Args, "/user backfill <GameName#TAG>")
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
	res, err := h.Collector.Backfill(ctx, acct)
	if err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("%s: %s from history, %s stored", acct.DisplayID,
		plural(res.Fetched, "record"), plural(res.Inserted, "new date")))
}
