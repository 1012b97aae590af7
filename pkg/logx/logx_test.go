package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	kit "rankbot/internal/transport"
	"rankbot/internal/transport/fake"
)

func TestLogger_ZeroValueDiscards(t *testing.T) {
	t.Parallel()

	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero Logger should report IsZero")
	}
	l.Info("dropped", String("k", "v"))
	if Nop().IsZero() {
		t.Fatalf("Nop() should not be the zero value")
	}
}

func TestService_ApplySwapsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	svc, log := newService(Config{Level: "info", Console: true}, nil, &buf)
	defer svc.Close()

	log = log.With(String("comp", "test"))
	log.Debug("hidden")
	log.Info("shown", Int("n", 3), Err(errors.New("bad")))
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("info level output = %q", out)
	}
	if out := buf.String(); !strings.Contains(out, "comp=") || !strings.Contains(out, "n=") {
		t.Fatalf("fields missing from %q", out)
	}

	buf.Reset()
	svc.Apply(Config{Level: "debug", Console: true})
	log.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("derived logger did not follow Apply: %q", buf.String())
	}
}

func TestChatSink_FiltersAndFormats(t *testing.T) {
	t.Parallel()

	ad := &fake.Adapter{}
	var buf bytes.Buffer
	svc, log := newService(Config{Level: "debug", Console: true}, ad, &buf)
	defer svc.Close()

	svc.SetTelegramTarget(-100, 7)
	svc.Apply(Config{Level: "debug", Console: true, Telegram: TelegramConfig{Enabled: true, MinLevel: "warn", RatePerSec: 50}})

	log.Info("below threshold")
	log.Warn("fetch <failed>", String("account", "Faker#KR1"))

	deadline := time.Now().Add(2 * time.Second)
	for len(ad.Sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sent := ad.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d chat messages, want 1", len(sent))
	}
	got := sent[0]
	if got.To != (kit.ChatTarget{ChatID: -100, ThreadID: 7}) {
		t.Fatalf("target = %+v", got.To)
	}
	for _, want := range []string{"<b>WARN</b>", "fetch &lt;failed&gt;", "<code>account</code>=Faker#KR1"} {
		if !strings.Contains(got.Text, want) {
			t.Fatalf("chat text %q missing %q", got.Text, want)
		}
	}
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain text", "not json <x>", []string{"not json &lt;x&gt;"}},
		{"sorted keys", `{"level":"error","message":"m","b":1,"a":"x","time":"t"}`, []string{"<b>ERROR</b> m\n<code>a</code>=x\n<code>b</code>=1"}},
		{"stack last", `{"level":"error","message":"p","stack":"frame"}`, []string{"<pre>frame</pre>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatChatLine([]byte(tt.in))
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("formatChatLine(%s) = %q, want it to contain %q", tt.in, got, w)
				}
			}
			if strings.Contains(got, "time") {
				t.Fatalf("timestamp leaked into %q", got)
			}
		})
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("é", 10) // 20 bytes
	got := truncate(s, 8)
	if !strings.HasSuffix(got, "...") || len(got) > 8 {
		t.Fatalf("truncate = %q", got)
	}
	if strings.ContainsRune(got, '�') {
		t.Fatalf("truncate split a rune: %q", got)
	}
}
