// Package metrics turns bus events into Prometheus series and serves them,
// together with a liveness probe, on an optional HTTP listener.
package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rankbot/internal/eventbus"
	"rankbot/internal/jobs"
	"rankbot/internal/schedule"
	logx "rankbot/pkg/logx"
)

const namespace = "rankbot"

// Recorder owns a private registry so tests can create as many as they like.
type Recorder struct {
	reg *prometheus.Registry

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobWait     *prometheus.HistogramVec
	jobSkipped  *prometheus.CounterVec
	accounts    *prometheus.CounterVec
	lastCollect prometheus.Gauge
	reports     *prometheus.CounterVec
	tasks       *taskCollector
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_runs_total",
			Help: "Dispatcher job executions by job kind and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_duration_seconds",
			Help:    "Time spent running a job.",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		jobWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_queue_delay_seconds",
			Help:    "Time a job waited in the dispatcher queue.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		jobSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_skipped_total",
			Help: "Jobs not enqueued because one was already pending or the queue was full.",
		}, []string{"job", "reason"}),
		accounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "collect_accounts_total",
			Help: "Accounts processed by collection runs.",
		}, []string{"result"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "collect_last_finished_timestamp_seconds",
			Help: "Unix time the last collection run finished.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reports_sent_total",
			Help: "Reports delivered, by output kind.",
		}, []string{"output"}),
		tasks: newTaskCollector(),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.jobRuns, r.jobDuration, r.jobWait, r.jobSkipped, r.accounts, r.lastCollect, r.reports, r.tasks,
	)
	return r
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// jobKind folds "report:<id>" into "report" to keep label cardinality flat.
func jobKind(name string) string {
	if k, _, ok := strings.Cut(name, ":"); ok {
		return k
	}
	return name
}

// Observe records one event. Unknown types are ignored.
func (r *Recorder) Observe(e eventbus.Event) {
	switch e.Type {
	case schedule.EventJobStarted:
		if ev, ok := e.Data.(schedule.JobEvent); ok {
			r.jobWait.WithLabelValues(jobKind(ev.Name)).Observe(ev.QueueDelay.Seconds())
		}
	case schedule.EventJobFinished:
		if ev, ok := e.Data.(schedule.JobEvent); ok {
			res := "ok"
			if ev.Error != "" {
				res = "error"
			}
			r.jobRuns.WithLabelValues(jobKind(ev.Name), res).Inc()
			r.jobDuration.WithLabelValues(jobKind(ev.Name)).Observe(ev.Duration.Seconds())
		}
	case schedule.EventJobSkipped:
		if ev, ok := e.Data.(schedule.JobEvent); ok {
			r.jobSkipped.WithLabelValues(jobKind(ev.Name), ev.Reason).Inc()
		}
	case jobs.EventCollectFinished:
		if res, ok := e.Data.(jobs.Result); ok {
			r.accounts.WithLabelValues("success").Add(float64(res.Success))
			r.accounts.WithLabelValues("failed").Add(float64(res.Failed))
			if !e.Time.IsZero() {
				r.lastCollect.Set(float64(e.Time.Unix()))
			}
		}
	case jobs.EventReportSent:
		out := "table"
		if m, ok := e.Data.(map[string]any); ok {
			if s, ok := m["output"].(string); ok && s != "" {
				out = s
			}
		}
		r.reports.WithLabelValues(out).Inc()
	}
}

// WatchBus exports the bus drop counter. Call once per bus.
func (r *Recorder) WatchBus(bus eventbus.Bus) {
	r.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: "events_dropped_total",
		Help: "Bus events missed by subscribers with a full buffer.",
	}, func() float64 { return float64(bus.Dropped()) }))
}

// Run feeds bus events into the recorder until ctx is done.
func (r *Recorder) Run(ctx context.Context, bus eventbus.Bus, log logx.Logger) error {
	ch, unsub := bus.Subscribe(256,
		schedule.EventJobStarted, schedule.EventJobFinished, schedule.EventJobSkipped,
		jobs.EventCollectFinished, jobs.EventReportSent,
	)
	defer unsub()
	log.Debug("metrics recorder subscribed")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			r.Observe(e)
		}
	}
}
