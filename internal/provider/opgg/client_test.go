package opgg

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"rankbot/internal/rank"
	logx "rankbot/pkg/logx"
)

func newTestClient(t *testing.T, h fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return New(Config{
		BaseURL:  "http://opgg.test/api",
		Location: time.UTC,
		Dial:     func(string) (net.Conn, error) { return ln.Dial() },
	}, logx.Nop())
}

const autocompleteBody = `{"data":[
 {"summoner_id":"other","game_name":"Hide on bush","tagline":"KR2"},
 {"summoner_id":"s-123","game_name":"Hide on bush","tagline":"kr1"}]}`

func TestFetchCurrentRank(t *testing.T) {
	t.Parallel()
	var ua, query string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case strings.HasSuffix(path, "/summoners/v2/jp/autocomplete"):
			ua = string(ctx.Request.Header.UserAgent())
			query = string(ctx.QueryArgs().Peek("gameName")) + "|" + string(ctx.QueryArgs().Peek("tagline"))
			ctx.SetBodyString(autocompleteBody)
		case strings.HasSuffix(path, "/summoners/jp/s-123/summary"):
			ctx.SetBodyString(`{"data":{"summoner":{"league_stats":[
			 {"queue_info":{"game_type":"FLEXRANKED"},"tier_info":{"tier":"GOLD","division":1,"lp":5},"win":1,"lose":1},
			 {"queue_info":{"game_type":"SOLORANKED"},"tier_info":{"tier":"PLATINUM","division":3,"lp":72},"win":100,"lose":50}]}}}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	got, err := c.FetchCurrentRank(context.Background(), "Hide on bush#KR1")
	if err != nil {
		t.Fatalf("FetchCurrentRank: %v", err)
	}
	want := rank.Snapshot{DisplayID: "Hide on bush#KR1", Tier: rank.Platinum, Division: rank.DivIII, LP: 72, Wins: 100, Losses: 50}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if ua != DefaultUserAgent {
		t.Fatalf("user agent=%q", ua)
	}
	if query != "Hide on bush|KR1" {
		t.Fatalf("query=%q", query)
	}
}

func TestFetchCurrentRank_Failures(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case strings.HasSuffix(path, "/autocomplete"):
			if string(ctx.QueryArgs().Peek("gameName")) == "Broken" {
				ctx.SetStatusCode(fasthttp.StatusBadGateway)
				return
			}
			ctx.SetBodyString(`{"data":[{"summoner_id":"u1","game_name":"Unranked","tagline":"JP1"}]}`)
		case strings.HasSuffix(path, "/u1/summary"):
			ctx.SetBodyString(`{"data":{"league_stats":[{"queue_info":{"game_type":"SOLORANKED"},"tier_info":{"tier":null,"division":null,"lp":null},"win":0,"lose":0}]}}`)
		}
	})

	cases := []struct {
		id   string
		want error
	}{
		{"Nobody#JP1", ErrNotFound},
		{"Unranked#JP1", ErrUnranked},
	}
	for _, tc := range cases {
		if _, err := c.FetchCurrentRank(context.Background(), tc.id); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.id, err, tc.want)
		}
	}

	_, err := c.FetchCurrentRank(context.Background(), "Broken#JP1")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != fasthttp.StatusBadGateway {
		t.Fatalf("err=%v want StatusError 502", err)
	}

	if _, err := c.FetchCurrentRank(context.Background(), "no-tag"); err == nil {
		t.Fatalf("expected riot id error")
	}
}

func TestFetchHistory(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if !strings.HasSuffix(string(ctx.Path()), "/summoners/jp/s-123/tier-history") {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetBodyString(`{"data":[
		 {"tier_info":{"tier":"GOLD","division":"2","lp":10},"created_at":"2025-02-01T10:00:00+09:00"},
		 {"tier_info":{"tier":"GOLD","division":1,"lp":90},"created_at":"2025-02-01T20:00:00+00:00"},
		 {"tier_info":{"tier":"MASTER","division":null,"lp":15},"created_at":"2025-02-03T01:00:00Z"},
		 {"tier_info":{"tier":"GOLD","division":2,"lp":1},"created_at":"not a date"}]}`)
	})

	got, err := c.FetchHistory(context.Background(), "s-123")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	want := []rank.Snapshot{
		{Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Tier: rank.Gold, Division: rank.DivI, LP: 90},
		{Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), Tier: rank.Master, LP: 15},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries: %+v", len(got), got)
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || !got[i].SameRank(want[i]) {
			t.Fatalf("entry %d=%+v want %+v", i, got[i], want[i])
		}
	}

	if _, err := c.FetchHistory(context.Background(), " "); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestFetchHistory_OutOfOrder(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"data":[
		 {"tier_info":{"tier":"PLATINUM","division":4,"lp":20},"created_at":"2025-02-05T12:00:00Z"},
		 {"tier_info":{"tier":"GOLD","division":1,"lp":70},"created_at":"2025-02-02T23:00:00Z"},
		 {"tier_info":{"tier":"GOLD","division":2,"lp":40},"created_at":"2025-02-02T08:00:00Z"},
		 {"tier_info":{"tier":"SILVER","division":1,"lp":5},"created_at":"2025-01-30T08:00:00Z"}]}`)
	})

	got, err := c.FetchHistory(context.Background(), "s-123")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	want := []rank.Snapshot{
		{Date: time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC), Tier: rank.Silver, Division: rank.DivI, LP: 5},
		{Date: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), Tier: rank.Gold, Division: rank.DivI, LP: 70},
		{Date: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), Tier: rank.Platinum, Division: rank.DivIV, LP: 20},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries: %+v", len(got), got)
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || !got[i].SameRank(want[i]) {
			t.Fatalf("entry %d=%+v want %+v", i, got[i], want[i])
		}
	}
}

func TestParseProfileURL(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, id, region string
		ok             bool
	}{
		{"https://www.op.gg/summoners/jp/Name-Tag", "Name#Tag", "jp", true},
		{"https://op.gg/lol/summoners/kr/Hide%20on%20bush-KR1", "Hide on bush#KR1", "kr", true},
		{"https://www.op.gg/summoners/euw/my-name-EUW", "my-name#EUW", "euw", true},
		{"https://www.op.gg/summoners/jp/NoTag", "", "", false},
		{"https://example.com/summoners/jp/Name-Tag", "", "", false},
		{"https://www.op.gg/champions", "", "", false},
	}
	for _, tc := range cases {
		id, region, err := ParseProfileURL(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: err=%v", tc.in, err)
		}
		if id != tc.id || region != tc.region {
			t.Fatalf("%s: got %q/%q want %q/%q", tc.in, id, region, tc.id, tc.region)
		}
	}
	if !IsProfileURL("see https://op.gg/summoners/jp/a-b") || IsProfileURL("Name#Tag") {
		t.Fatalf("IsProfileURL mismatch")
	}
}
