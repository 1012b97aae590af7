package opgg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"rankbot/internal/rank"
)

type autocompleteResponse struct {
	Data []struct {
		SummonerID string `json:"summoner_id"`
		GameName   string `json:"game_name"`
		Tagline    string `json:"tagline"`
	} `json:"data"`
}

type leagueStat struct {
	QueueInfo struct {
		GameType string `json:"game_type"`
	} `json:"queue_info"`
	TierInfo tierInfo `json:"tier_info"`
	Win      int      `json:"win"`
	Lose     int      `json:"lose"`
}

type summaryResponse struct {
	Data struct {
		LeagueStats []leagueStat `json:"league_stats"`
		Summoner    *struct {
			LeagueStats []leagueStat `json:"league_stats"`
		} `json:"summoner"`
	} `json:"data"`
}

type tierHistoryResponse struct {
	Data []struct {
		TierInfo  tierInfo `json:"tier_info"`
		CreatedAt string   `json:"created_at"`
	} `json:"data"`
}

type tierInfo struct {
	Tier     *string      `json:"tier"`
	Division flexDivision `json:"division"`
	LP       int          `json:"lp"`
}

func (ti tierInfo) snapshot() (rank.Snapshot, error) {
	if ti.Tier == nil || *ti.Tier == "" || *ti.Tier == "UNRANKED" {
		return rank.Snapshot{}, ErrUnranked
	}
	t, err := rank.ParseTier(*ti.Tier)
	if err != nil {
		return rank.Snapshot{}, err
	}
	d := rank.NoDivision
	if !t.Apex() {
		if d, err = rank.ParseDivision(string(ti.Division)); err != nil {
			return rank.Snapshot{}, err
		}
		if d == rank.NoDivision {
			return rank.Snapshot{}, fmt.Errorf("opgg: tier %s without division", t)
		}
	}
	return rank.Snapshot{Tier: t, Division: d, LP: ti.LP}, nil
}

// flexDivision accepts a division as JSON number, string or null.
type flexDivision string

func (f *flexDivision) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexDivision(s)
	default:
		n, err := strconv.Atoi(string(b))
		if err != nil {
			return fmt.Errorf("opgg: division %s: %w", b, err)
		}
		*f = flexDivision(strconv.Itoa(n))
	}
	return nil
}
