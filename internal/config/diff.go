package config

import (
	"slices"
	"strings"

	logx "rankbot/pkg/logx"
)

// Section names reported by Changed.
const (
	SectionTelegram  = "telegram"
	SectionLogging   = "logging"
	SectionStorage   = "storage"
	SectionProvider  = "provider"
	SectionScheduler = "scheduler"
	SectionReport    = "report"
	SectionMetrics   = "metrics"
)

// Changed lists the sections that differ, sorted, plus log fields that
// never carry secrets.
func Changed(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout || ot.GroupLog != nt.GroupLog ||
		!slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		changed = append(changed, SectionTelegram)
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, SectionLogging)
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, SectionStorage)
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Provider != newCfg.Provider {
		changed = append(changed, SectionProvider)
		attrs = append(attrs, logx.String("provider.region", newCfg.Provider.Region))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, SectionScheduler)
		attrs = append(attrs,
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.collect.at", newCfg.Scheduler.Collect.At),
			logx.String("scheduler.collect.delay", newCfg.Scheduler.Collect.Delay),
		)
	}
	if oldCfg.Report != newCfg.Report {
		changed = append(changed, SectionReport)
		attrs = append(attrs, logx.String("report.chart_format", newCfg.Report.ChartFormat))
	}
	om, nm := oldCfg.Metrics, newCfg.Metrics
	if om != nm {
		changed = append(changed, SectionMetrics)
		attrs = append(attrs,
			logx.Bool("metrics.enabled", nm.Enabled),
			logx.String("metrics.addr", nm.Addr),
			logx.Bool("metrics.token_set", nm.Token != ""),
			logx.Bool("metrics.pprof", nm.Pprof),
		)
	}
	slices.Sort(changed)
	return changed, attrs
}

// RestartRequired reports sections that only take effect on restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case SectionStorage, SectionProvider, SectionTelegram:
			out = append(out, s)
		}
	}
	return out
}
