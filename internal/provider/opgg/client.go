// Package opgg fetches League of Legends solo-queue ranks from op.gg's web API.
package opgg

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"rankbot/internal/rank"
	logx "rankbot/pkg/logx"
)

const (
	DefaultBaseURL   = "https://lol-web-api.op.gg/api/v1.0/internal/bypass"
	DefaultRegion    = "jp"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	soloQueue = "SOLORANKED"
)

var (
	ErrNotFound = rank.ErrAccountNotFound
	ErrUnranked = rank.ErrUnranked
)

// StatusError is a non-200 reply.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("opgg: %s: HTTP %d", e.URL, e.Code) }

type Config struct {
	BaseURL   string
	Region    string
	UserAgent string
	Timeout   time.Duration // per request read/write timeout; default 10s
	// Location turns history timestamps into calendar dates.
	Location *time.Location
	// Dial overrides the connection dialer (tests).
	Dial func(addr string) (net.Conn, error)
}

type Client struct {
	baseURL   string
	region    string
	userAgent string
	loc       *time.Location
	client    *fasthttp.Client
	log       logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		region:    strings.ToLower(cfg.Region),
		userAgent: cfg.UserAgent,
		loc:       cfg.Location,
		log:       log.With(logx.String("comp", "opgg")),
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
			Dial:                cfg.Dial,
		},
	}
}

// Summoner identifies one account on op.gg.
type Summoner struct {
	InternalID string
	GameName   string
	Tagline    string
}

// DisplayID is the canonical Riot id.
func (s Summoner) DisplayID() string { return s.GameName + "#" + strings.ToUpper(s.Tagline) }

// Lookup resolves a Riot id to op.gg's summoner id.
func (c *Client) Lookup(ctx context.Context, displayID string) (Summoner, error) {
	name, tag, err := rank.SplitRiotID(displayID)
	if err != nil {
		return Summoner{}, err
	}
	q := url.Values{}
	q.Set("gameName", name)
	q.Set("tagline", tag)
	u := fmt.Sprintf("%s/summoners/v2/%s/autocomplete?%s", c.baseURL, c.region, q.Encode())

	res, err := doRequest[autocompleteResponse](ctx, c, u)
	if err != nil {
		return Summoner{}, err
	}
	for _, s := range res.Data {
		if strings.EqualFold(s.GameName, name) && strings.EqualFold(s.Tagline, tag) && s.SummonerID != "" {
			return Summoner{InternalID: s.SummonerID, GameName: s.GameName, Tagline: s.Tagline}, nil
		}
	}
	return Summoner{}, fmt.Errorf("%s: %w", displayID, ErrNotFound)
}

// FetchCurrentRank returns today's solo-queue rank of displayID. The
// returned snapshot carries no user id or date.
func (c *Client) FetchCurrentRank(ctx context.Context, displayID string) (rank.Snapshot, error) {
	s, err := c.Lookup(ctx, displayID)
	if err != nil {
		return rank.Snapshot{}, err
	}
	u := fmt.Sprintf("%s/summoners/%s/%s/summary", c.baseURL, c.region, url.PathEscape(s.InternalID))
	res, err := doRequest[summaryResponse](ctx, c, u)
	if err != nil {
		return rank.Snapshot{}, err
	}
	stats := res.Data.LeagueStats
	if len(stats) == 0 && res.Data.Summoner != nil {
		stats = res.Data.Summoner.LeagueStats
	}
	for _, st := range stats {
		if st.QueueInfo.GameType != soloQueue {
			continue
		}
		snap, err := st.TierInfo.snapshot()
		if err != nil {
			return rank.Snapshot{}, fmt.Errorf("%s: %w", displayID, err)
		}
		snap.DisplayID = s.DisplayID()
		snap.Wins, snap.Losses = st.Win, st.Lose
		return snap, nil
	}
	return rank.Snapshot{}, fmt.Errorf("%s: %w", displayID, ErrUnranked)
}

// FetchHistory returns op.gg's tier history for a summoner id as dated
// snapshots with zero win/loss counters. Entries that cannot be parsed are
// skipped; the last entry of a date wins.
func (c *Client) FetchHistory(ctx context.Context, internalID string) ([]rank.Snapshot, error) {
	if strings.TrimSpace(internalID) == "" {
		return nil, fmt.Errorf("opgg: summoner id required")
	}
	u := fmt.Sprintf("%s/summoners/%s/%s/tier-history", c.baseURL, c.region, url.PathEscape(internalID))
	res, err := doRequest[tierHistoryResponse](ctx, c, u)
	if err != nil {
		return nil, err
	}

	// The latest entry of a day wins whatever order the API returns.
	type dated struct {
		at   time.Time
		snap rank.Snapshot
	}
	byDay := map[time.Time]int{}
	var entries []dated
	skipped := 0
	for _, e := range res.Data {
		at, err := time.Parse(time.RFC3339, e.CreatedAt)
		if err != nil {
			skipped++
			continue
		}
		snap, err := e.TierInfo.snapshot()
		if err != nil {
			skipped++
			continue
		}
		snap.Date = rank.Day(at.In(c.loc))
		if i, ok := byDay[snap.Date]; ok {
			if !at.Before(entries[i].at) {
				entries[i] = dated{at: at, snap: snap}
			}
			continue
		}
		byDay[snap.Date] = len(entries)
		entries = append(entries, dated{at: at, snap: snap})
	}
	if skipped > 0 {
		c.log.Debug("tier history entries skipped", logx.String("summoner_id", internalID), logx.Int("skipped", skipped))
	}

	out := make([]rank.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snap)
	}
	slices.SortFunc(out, func(a, b rank.Snapshot) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func doRequest[T any](ctx context.Context, c *Client, u string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("opgg: request %s: %w", u, err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", u, ErrNotFound)
	case code != fasthttp.StatusOK:
		return nil, &StatusError{Code: code, URL: u}
	}

	var out T
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("opgg: decode %s: %w", u, err)
	}
	return &out, nil
}
