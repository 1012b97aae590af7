package app

import (
	"testing"
	"time"

	"rankbot/internal/config"
	"rankbot/internal/jobs"
)

func TestCollectDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw       string
		want      time.Duration
		collector time.Duration
	}{
		{"", jobs.DefaultFetchDelay, jobs.DefaultFetchDelay},
		{"500ms", 500 * time.Millisecond, 500 * time.Millisecond},
		{"0s", 0, -1},
	}
	for _, tt := range tests {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{Collect: config.CollectConfig{Delay: tt.raw}}}
		got, err := collectDelay(cfg)
		if err != nil || got != tt.want {
			t.Fatalf("collectDelay(%q) = %v, %v; want %v", tt.raw, got, err, tt.want)
		}
		if d := disabledIfZero(got); d != tt.collector {
			t.Fatalf("disabledIfZero(%v) = %v, want %v", got, d, tt.collector)
		}
	}
}

func TestMapStorageAndMetrics(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: " SQLite ", Path: " ./data/r.db "},
		Metrics: config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0", WriteTimeout: "0s"},
	}

	sc, err := mapStorage(cfg)
	if err != nil {
		t.Fatalf("mapStorage: %v", err)
	}
	if sc.Driver != "sqlite" || sc.Path != "./data/r.db" || sc.BusyTimeout != 5*time.Second {
		t.Fatalf("storage config = %+v", sc)
	}

	mc, err := mapMetrics(cfg)
	if err != nil {
		t.Fatalf("mapMetrics: %v", err)
	}
	if !mc.Enabled || mc.ReadTimeout != 10*time.Second || mc.WriteTimeout != 0 {
		t.Fatalf("metrics config = %+v", mc)
	}

	cfg.Metrics.ReadTimeout = "fast"
	if _, err := mapMetrics(cfg); err == nil {
		t.Fatalf("mapMetrics accepted an invalid duration")
	}
}

func TestMapLogging(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Logging: config.LoggingConfig{
		Level:    "debug",
		Console:  true,
		Telegram: config.LoggingTelegram{Enabled: true, ThreadID: 4, MinLevel: "error", RatePerSec: 2},
	}}
	lc := mapLogging(cfg)
	if lc.Level != "debug" || !lc.Console || !lc.Telegram.Enabled || lc.Telegram.ThreadID != 4 || lc.Telegram.RatePerSec != 2 {
		t.Fatalf("logging config = %+v", lc)
	}
}
