package jobs

import (
	"context"
	"fmt"

	"rankbot/internal/rank"
	logx "rankbot/pkg/logx"
)

// BackfillResult counts one history import.
type BackfillResult struct {
	Fetched  int
	Inserted int
}

// Backfill imports the provider's tier history of acct. Imported snapshots
// carry zero win/loss counters and never replace a stored date.
func (c *Collector) Backfill(ctx context.Context, acct rank.Account) (BackfillResult, error) {
	if acct.InternalID == "" {
		return BackfillResult{}, fmt.Errorf("backfill %s: no provider id stored for this account", acct.DisplayID)
	}
	hist, err := c.provider.FetchHistory(ctx, acct.InternalID)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("backfill %s: %w", acct.DisplayID, err)
	}

	today := c.clock.Today()
	res := BackfillResult{Fetched: len(hist)}
	for _, s := range hist {
		if s.Date.After(today) {
			continue
		}
		s.UserID, s.DisplayID = acct.ID, acct.DisplayID
		s.Wins, s.Losses = 0, 0
		ok, err := c.store.InsertSnapshotIfAbsent(ctx, s)
		if err != nil {
			return res, fmt.Errorf("backfill %s: %w", acct.DisplayID, err)
		}
		if ok {
			res.Inserted++
		}
	}
	c.log.Info("history backfilled", logx.String("account", acct.DisplayID),
		logx.Int("fetched", res.Fetched), logx.Int("inserted", res.Inserted))
	return res, nil
}
