package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	rtsup "rankbot/internal/runtime/supervisor"
)

// TaskSource yields supervisor task statistics at scrape time.
type TaskSource func() []rtsup.TaskStats

type taskCollector struct {
	mu      sync.RWMutex
	sources map[string]TaskSource

	active   *prometheus.Desc
	restarts *prometheus.Desc
	panics   *prometheus.Desc
}

func newTaskCollector() *taskCollector {
	labels := []string{"scope", "task"}
	return &taskCollector{
		sources: map[string]TaskSource{},
		active: prometheus.NewDesc(prometheus.BuildFQName(namespace, "task", "active"),
			"Goroutines currently running per supervised task.", labels, nil),
		restarts: prometheus.NewDesc(prometheus.BuildFQName(namespace, "task", "restarts_total"),
			"Restarts of supervised tasks.", labels, nil),
		panics: prometheus.NewDesc(prometheus.BuildFQName(namespace, "task", "panics_total"),
			"Recovered panics in supervised tasks.", labels, nil),
	}
}

func (c *taskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.restarts
	ch <- c.panics
}

func (c *taskCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for scope, src := range c.sources {
		for _, t := range src() {
			ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(t.Active), scope, t.Name)
			ch <- prometheus.MustNewConstMetric(c.restarts, prometheus.CounterValue, float64(t.Restarts), scope, t.Name)
			ch <- prometheus.MustNewConstMetric(c.panics, prometheus.CounterValue, float64(t.Panics), scope, t.Name)
		}
	}
}

// WatchTasks exports the tasks of a supervisor under scope. A nil source
// removes the scope.
func (r *Recorder) WatchTasks(scope string, src TaskSource) {
	r.tasks.mu.Lock()
	defer r.tasks.mu.Unlock()
	if src == nil {
		delete(r.tasks.sources, scope)
		return
	}
	r.tasks.sources[scope] = src
}
