package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rankbot/internal/report"
	"rankbot/internal/schedule"
	"rankbot/internal/storage"
)

// Location resolves scheduler.timezone; empty means the host zone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// CollectAt parses scheduler.collect.at, defaulting to 01:00.
func (c *Config) CollectAt() (schedule.TimeOfDay, error) {
	raw := strings.TrimSpace(c.Scheduler.Collect.At)
	if raw == "" {
		return schedule.DefaultCollectAt, nil
	}
	at, err := schedule.ParseTimeOfDay(raw)
	if err != nil {
		return schedule.TimeOfDay{}, fmt.Errorf("scheduler.collect.at: %w", err)
	}
	return at, nil
}

// GroupLogChatID parses telegram.group_log; 0 when unset.
func (c *Config) GroupLogChatID() (int64, error) {
	raw := strings.TrimSpace(c.Telegram.GroupLog)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.group_log: %q is not a chat id", raw)
	}
	return id, nil
}

// Validate checks every field that can be checked without side effects and
// reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add(errors.New("telegram.token is empty (set it or TELEGRAM_TOKEN)"))
	}
	_, err := c.GroupLogChatID()
	add(err)
	_, err = ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout)
	add(err)

	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		add(errors.New("logging.file.path is required when logging.file.enabled"))
	}
	if c.Logging.Telegram.Enabled && strings.TrimSpace(c.Telegram.GroupLog) == "" {
		add(errors.New("logging.telegram.enabled needs telegram.group_log"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", storage.DriverSQLite, "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add(errors.New("storage.path is required for sqlite"))
		}
	case storage.DriverMemory:
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	_, err = ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	add(err)

	_, err = ParseDurationField("provider.timeout", c.Provider.Timeout)
	add(err)

	_, err = c.Location()
	add(err)
	_, err = c.CollectAt()
	add(err)
	_, err = ParseDurationField("scheduler.collect.delay", c.Scheduler.Collect.Delay)
	add(err)
	_, err = ParseDurationField("scheduler.job_timeout", c.Scheduler.JobTimeout)
	add(err)
	if c.Scheduler.QueueSize < 0 {
		add(errors.New("scheduler.queue_size must be >= 0"))
	}

	if _, err := report.NewRenderer(c.Report.ChartFormat); err != nil {
		add(fmt.Errorf("report.chart_format: %w", err))
	}
	if c.Report.ChunkLimit < 0 {
		add(errors.New("report.chunk_limit must be >= 0"))
	}

	_, err = ParseDurationField("metrics.read_timeout", c.Metrics.ReadTimeout)
	add(err)
	_, err = ParseDurationField("metrics.write_timeout", c.Metrics.WriteTimeout)
	add(err)

	return errors.Join(errs...)
}
