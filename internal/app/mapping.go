package app

import (
	"strings"
	"time"

	"rankbot/internal/config"
	"rankbot/internal/jobs"
	"rankbot/internal/observability/metrics"
	"rankbot/internal/provider/opgg"
	"rankbot/internal/storage"
	logx "rankbot/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapProvider(cfg *config.Config, loc *time.Location) (opgg.Config, error) {
	timeout, err := config.ParseDurationField("provider.timeout", cfg.Provider.Timeout)
	if err != nil {
		return opgg.Config{}, err
	}
	return opgg.Config{
		BaseURL:   cfg.Provider.BaseURL,
		Region:    cfg.Provider.Region,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   timeout,
		Location:  loc,
	}, nil
}

// collectDelay maps scheduler.collect.delay; "0s" disables the pause.
func collectDelay(cfg *config.Config) (time.Duration, error) {
	raw := strings.TrimSpace(cfg.Scheduler.Collect.Delay)
	if raw == "" {
		return jobs.DefaultFetchDelay, nil
	}
	return config.ParseDurationField("scheduler.collect.delay", raw)
}

func mapMetrics(cfg *config.Config) (metrics.Config, error) {
	rt, err := config.ParseDurationOrDefault("metrics.read_timeout", cfg.Metrics.ReadTimeout, 10*time.Second)
	if err != nil {
		return metrics.Config{}, err
	}
	// 0 keeps /debug/pprof/profile usable.
	wt, err := config.ParseDurationField("metrics.write_timeout", cfg.Metrics.WriteTimeout)
	if err != nil {
		return metrics.Config{}, err
	}
	return metrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		Addr:          cfg.Metrics.Addr,
		Token:         cfg.Metrics.Token,
		AllowInsecure: cfg.Metrics.AllowInsecure,
		Pprof:         cfg.Metrics.Pprof,
		ReadTimeout:   rt,
		WriteTimeout:  wt,
	}, nil
}
