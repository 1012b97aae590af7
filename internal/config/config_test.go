package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rankbot/internal/schedule"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  group_log: "-1001"
logging:
  level: info
  console: true
  telegram:
    enabled: true
    min_level: warn
storage:
  driver: sqlite
  path: ./data/rankbot.db
scheduler:
  timezone: Asia/Tokyo
  collect:
    at: "01:30"
    delay: 2s
report:
  chart_format: html
metrics:
  enabled: true
  addr: 127.0.0.1:9464
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_YAML(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	t.Setenv(EnvTelegramToken, "")
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || !slices.Equal(cfg.Telegram.OwnerUserIDs, []int64{42}) {
		t.Fatalf("telegram=%+v", cfg.Telegram)
	}
	at, err := cfg.CollectAt()
	if err != nil || at != (schedule.TimeOfDay{Hour: 1, Minute: 30}) {
		t.Fatalf("collect at=%v err=%v", at, err)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Tokyo" {
		t.Fatalf("location=%v err=%v", loc, err)
	}
	if id, _ := cfg.GroupLogChatID(); id != -1001 {
		t.Fatalf("group log=%d", id)
	}
	if m.Get() != cfg {
		t.Fatalf("Load did not commit")
	}
}

func TestLoad_EnvToken(t *testing.T) {
	body := strings.Replace(sampleYAML, `token: "123:abc"`, `token: ""`, 1)
	m := NewConfigManager(writeFile(t, "config.yml", body))

	t.Setenv(EnvTelegramToken, "")
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Fatalf("err=%v want missing token", err)
	}

	env := writeFile(t, ".env", EnvTelegramToken+"=999:zzz\n")
	os.Unsetenv(EnvTelegramToken)
	if err := LoadEnv(env, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv(EnvTelegramToken) })
	cfg, err := m.Load()
	if err != nil || cfg.Telegram.Token != "999:zzz" {
		t.Fatalf("token=%q err=%v", cfg.Telegram.Token, err)
	}
}

func TestParse_Strict(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"unknown key":   `{"telegram":{"token":"x"},"plugins":{}}`,
		"trailing data": `{"telegram":{"token":"x"}} {}`,
	}
	for name, body := range cases {
		if _, err := NewConfigManager(writeFile(t, "c.json", body)).Parse(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			Storage:  StorageConfig{Driver: "memory"},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("minimal config: %v", err)
	}

	cases := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "scheduler.timezone"},
		{"collect at", func(c *Config) { c.Scheduler.Collect.At = "25:00" }, "scheduler.collect.at"},
		{"delay", func(c *Config) { c.Scheduler.Collect.Delay = "soon" }, "scheduler.collect.delay"},
		{"driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"sqlite path", func(c *Config) { c.Storage = StorageConfig{Driver: "sqlite"} }, "storage.path"},
		{"chart", func(c *Config) { c.Report.ChartFormat = "svg" }, "report.chart_format"},
		{"group log", func(c *Config) { c.Telegram.GroupLog = "logs" }, "telegram.group_log"},
		{"log chat", func(c *Config) { c.Logging.Telegram.Enabled = true }, "telegram.group_log"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tc.mod(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("err=%v want mention of %s", err, tc.field)
			}
		})
	}
}

func TestChanged(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "secret", OwnerUserIDs: []int64{1}}}
	b := *a
	b.Telegram.OwnerUserIDs = []int64{1, 2}
	b.Scheduler.Collect.At = "02:00"
	b.Metrics.Token = "hidden"

	changed, attrs := Changed(a, &b)
	if want := []string{SectionMetrics, SectionScheduler, SectionTelegram}; !slices.Equal(changed, want) {
		t.Fatalf("changed=%v want %v", changed, want)
	}
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	ev := zl.Info()
	for _, f := range attrs {
		f(ev)
	}
	ev.Send()
	if strings.Contains(buf.String(), "secret") || strings.Contains(buf.String(), "hidden") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
	if got := RestartRequired(changed); !slices.Equal(got, []string{SectionTelegram}) {
		t.Fatalf("restart=%v", got)
	}
	if c, _ := Changed(a, a); len(c) != 0 {
		t.Fatalf("identical configs changed=%v", c)
	}
}

func TestWatch_PublishesValidReload(t *testing.T) {
	t.Setenv(EnvTelegramToken, "")
	path := writeFile(t, "config.json", `{"telegram":{"token":"a"},"storage":{"driver":"memory"}}`)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(200 * time.Millisecond)

	// Invalid content is rejected and never published.
	_ = os.WriteFile(path, []byte(`{"telegram":{"token":""},"storage":{"driver":"memory"}}`), 0o600)
	time.Sleep(600 * time.Millisecond)
	_ = os.WriteFile(path, []byte(`{"telegram":{"token":"b"},"storage":{"driver":"memory"}}`), 0o600)

	select {
	case cfg := <-ch:
		if cfg.Telegram.Token != "b" {
			t.Fatalf("published token=%q", cfg.Telegram.Token)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reload published")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 5 * time.Second, false},
		{"0s", 5 * time.Second, false},
		{" 90s ", 90 * time.Second, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x.timeout", tt.raw, 5*time.Second)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, %v", tt.raw, got, err)
		}
		if err != nil && !strings.Contains(err.Error(), "x.timeout") {
			t.Fatalf("error %q does not name the key", err)
		}
	}
}

func TestParse_EmptyYAML(t *testing.T) {
	t.Parallel()
	cfg, err := NewConfigManager(writeFile(t, "c.yaml", "# nothing yet\n")).Parse()
	if err != nil || cfg == nil {
		t.Fatalf("Parse() = %v, %v", cfg, err)
	}
}
