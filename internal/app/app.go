// Package app wires configuration, storage, the provider client, jobs, the
// schedule registry, the chat transport and observability into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"rankbot/internal/commands"
	"rankbot/internal/config"
	"rankbot/internal/eventbus"
	"rankbot/internal/jobs"
	"rankbot/internal/observability/metrics"
	"rankbot/internal/provider/opgg"
	"rankbot/internal/report"
	rtsup "rankbot/internal/runtime/supervisor"
	"rankbot/internal/schedule"
	"rankbot/internal/storage"
	kit "rankbot/internal/transport"
	telegram "rankbot/internal/transport/telegram/adapter"
	"rankbot/internal/transport/telegram/router"
	logx "rankbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	loc   *time.Location

	adapter  kit.Adapter
	tg       *telegram.Adapter
	provider *opgg.Client

	collector  *jobs.Collector
	reporter   *jobs.Reporter
	dispatcher *schedule.Dispatcher
	trigger    *schedule.CronTrigger
	registry   *schedule.Registry

	cmdm    *router.CommandManager
	rec     *metrics.Recorder
	metrics *metrics.Service

	started time.Time
	updates chan kit.Update
}

// New loads cfgPath and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	loc, _ := cfg.Location()
	collectAt, _ := cfg.CollectAt()

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout},
		logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// The chat sink needs its target before it is enabled, or Apply warns.
	logCfg := mapLogging(cfg)
	enableChat := logCfg.Telegram.Enabled
	logCfg.Telegram.Enabled = false
	logs, log := logx.New(logCfg, ad)
	if chatID, _ := cfg.GroupLogChatID(); chatID != 0 {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logCfg.Telegram.Enabled = enableChat
	logs.Apply(logCfg)

	sc, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	pc, err := mapProvider(cfg, loc)
	if err != nil {
		return nil, err
	}
	provider := opgg.New(pc, log.With(logx.String("comp", "opgg")))

	delay, err := collectDelay(cfg)
	if err != nil {
		return nil, err
	}
	renderer, err := report.NewRenderer(cfg.Report.ChartFormat)
	if err != nil {
		return nil, err
	}
	jobTimeout, err := config.ParseDurationField("scheduler.job_timeout", cfg.Scheduler.JobTimeout)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	clock := jobs.Clock{Now: time.Now, Location: loc}
	collector := jobs.NewCollector(jobs.CollectorOptions{
		Roster: store, Store: store, Provider: provider, Clock: clock,
		Delay: disabledIfZero(delay), Bus: bus, Log: log,
	})
	reporter := jobs.NewReporter(jobs.ReporterOptions{
		Roster: store, Store: store, Sender: ad, Renderer: renderer, Clock: clock,
		ChunkLimit: cfg.Report.ChunkLimit, Bus: bus, Log: log,
	})
	dispatcher := schedule.NewDispatcher(schedule.DispatcherOptions{
		Log:       log.With(logx.String("comp", "dispatcher")),
		Bus:       bus,
		QueueSize: cfg.Scheduler.QueueSize,
		Timeout:   jobTimeout,
	})
	trigger := schedule.NewCronTrigger(loc, log.With(logx.String("comp", "trigger")))
	registry := schedule.NewRegistry(schedule.RegistryOptions{
		Store:     store,
		Trigger:   trigger,
		Enqueuer:  dispatcher,
		CollectAt: collectAt,
		Collect:   collector.Run,
		Report:    reporter.Run,
		Log:       log.With(logx.String("comp", "schedule")),
	})

	mc, err := mapMetrics(cfg)
	if err != nil {
		return nil, err
	}
	rec := metrics.NewRecorder()
	rec.WatchBus(bus)

	a := &App{
		cfgm:       cfgm,
		log:        log.With(logx.String("comp", "app")),
		logs:       logs,
		bus:        bus,
		store:      store,
		loc:        loc,
		adapter:    ad,
		tg:         ad,
		provider:   provider,
		collector:  collector,
		reporter:   reporter,
		dispatcher: dispatcher,
		trigger:    trigger,
		registry:   registry,
		rec:        rec,
		cmdm: router.NewCommandManager(log.With(logx.String("comp", "commands")), ad,
			cfg.Telegram.OwnerUserIDs, router.Options{}),
		updates: make(chan kit.Update, 256),
	}
	a.metrics = metrics.NewService(mc, rec, a.health, log.With(logx.String("comp", "metrics")))
	return a, nil
}

func disabledIfZero(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// Done is closed when the app supervisor stops.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) health(context.Context) error {
	if a.sup == nil {
		return errors.New("not started")
	}
	if err := a.sup.Context().Err(); err != nil {
		return fmt.Errorf("stopping: %w", err)
	}
	if len(a.trigger.Armed()) == 0 {
		return errors.New("no triggers armed")
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := mapMetrics(cfg)
		return err
	})

	if err := a.registry.Reload(run); err != nil {
		return fmt.Errorf("schedule: initial load: %w", err)
	}
	a.sup.Go("dispatcher", a.dispatcher.Run)
	a.trigger.Start()

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.cmdm.SetRegistry(run, commands.Build(commands.Deps{
		Accounts:  a.store,
		Resolver:  a.provider,
		Schedules: a.registry,
		Collector: a.collector,
		Reporter:  a.reporter,
		Jobs:      a.dispatcher,
		Location:  a.loc,
		Started:   a.started,
		Log:       a.log.With(logx.String("comp", "commands")),
	}))
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	a.rec.WatchTasks("app", a.sup.Snapshot)
	a.rec.WatchTasks("telegram", func() []rtsup.TaskStats { return a.tg.Supervisor().Snapshot() })
	a.rec.WatchTasks("commands", func() []rtsup.TaskStats { return a.cmdm.Supervisor().Snapshot() })
	a.rec.WatchTasks("metrics", func() []rtsup.TaskStats { return a.metrics.Supervisor().Snapshot() })
	a.sup.Go("metrics.recorder", func(c context.Context) error {
		return a.rec.Run(c, a.bus, a.log)
	})
	a.metrics.Start(run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		applied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, applied, next)
				applied = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	next := a.trigger.Armed()
	a.log.Info("app started",
		logx.String("tz", a.loc.String()),
		logx.Int("triggers", len(next)),
	)
	return nil
}

// applyConfig applies the sections that can change live and warns about the
// rest.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.Changed(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	if slices.Contains(sections, config.SectionLogging) || slices.Contains(sections, config.SectionTelegram) {
		chatID, _ := next.GroupLogChatID()
		a.logs.SetTelegramTarget(chatID, next.Logging.Telegram.ThreadID)
		a.logs.Apply(mapLogging(next))
	}
	a.cmdm.SetOwners(next.Telegram.OwnerUserIDs)

	if slices.Contains(sections, config.SectionScheduler) {
		if at, err := next.CollectAt(); err == nil {
			if err := a.registry.SetCollectAt(ctx, at); err != nil {
				a.log.Warn("collect time not applied", logx.Err(err))
			}
		}
		if d, err := collectDelay(next); err == nil {
			a.collector.SetDelay(d)
		}
		if prev.Scheduler.Timezone != next.Scheduler.Timezone ||
			prev.Scheduler.QueueSize != next.Scheduler.QueueSize ||
			prev.Scheduler.JobTimeout != next.Scheduler.JobTimeout {
			a.log.Warn("scheduler timezone, queue_size and job_timeout need a restart")
		}
	}
	if slices.Contains(sections, config.SectionReport) {
		if rd, err := report.NewRenderer(next.Report.ChartFormat); err == nil {
			a.reporter.SetRenderer(rd)
		}
		if prev.Report.ChunkLimit != next.Report.ChunkLimit {
			a.log.Warn("report.chunk_limit needs a restart")
		}
	}
	if slices.Contains(sections, config.SectionMetrics) {
		if mc, err := mapMetrics(next); err == nil {
			a.metrics.Reconfigure(ctx, mc)
		}
	}
	var restart []string
	for _, sec := range config.RestartRequired(sections) {
		// Owners and group_log are applied above.
		if sec == config.SectionTelegram && prev.Telegram.Token == next.Telegram.Token &&
			prev.Telegram.PollTimeout == next.Telegram.PollTimeout {
			continue
		}
		restart = append(restart, sec)
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for some sections", logx.String("sections", strings.Join(restart, ",")))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
}

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Triggers first so nothing new is enqueued.
	a.step(ctx, "trigger", 2*time.Second, func(c context.Context) error { a.trigger.Stop(c); return nil })
	a.sup.Cancel()
	a.step(ctx, "metrics", time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 5*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
