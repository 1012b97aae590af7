package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"rankbot/internal/eventbus"
	logx "rankbot/pkg/logx"
)

const (
	EventJobStarted  = "job.started"
	EventJobFinished = "job.finished"
	EventJobSkipped  = "job.skipped"

	defaultQueueSize = 64
)

// Job is one unit of work executed by the Dispatcher. Jobs sharing a Name
// never overlap and never queue twice.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// JobEvent is published on the bus for job lifecycle changes.
type JobEvent struct {
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

type queuedJob struct {
	job        Job
	enqueuedAt time.Time
}

// Dispatcher runs enqueued jobs one at a time on a single runner goroutine.
type Dispatcher struct {
	log     logx.Logger
	bus     eventbus.Bus
	timeout time.Duration

	queue chan queuedJob

	mu      sync.Mutex
	pending map[string]struct{} // queued or running
}

type DispatcherOptions struct {
	Log       logx.Logger
	Bus       eventbus.Bus
	QueueSize int
	// Timeout bounds a single report job; 0 means none. Collection is exempt.
	Timeout time.Duration
}

func NewDispatcher(opt DispatcherOptions) *Dispatcher {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = defaultQueueSize
	}
	return &Dispatcher{
		log:     opt.Log,
		bus:     opt.Bus,
		timeout: opt.Timeout,
		queue:   make(chan queuedJob, opt.QueueSize),
		pending: map[string]struct{}{},
	}
}

// Enqueue schedules job for execution. It reports false when a job with the
// same name is already queued or running, or the queue is full.
func (d *Dispatcher) Enqueue(job Job) bool {
	if job.Run == nil {
		return false
	}
	d.mu.Lock()
	if _, busy := d.pending[job.Name]; busy {
		d.mu.Unlock()
		d.log.Info("job skipped; already queued or running", logx.String("job", job.Name))
		d.publish(EventJobSkipped, JobEvent{Name: job.Name, Reason: "pending"})
		return false
	}
	d.pending[job.Name] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- queuedJob{job: job, enqueuedAt: time.Now()}:
		return true
	default:
		d.release(job.Name)
		d.log.Warn("job dropped; queue full", logx.String("job", job.Name), logx.Int("cap", cap(d.queue)))
		d.publish(EventJobSkipped, JobEvent{Name: job.Name, Reason: "queue_full"})
		return false
	}
}

// Pending reports whether a job with this name is queued or running.
func (d *Dispatcher) Pending(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[name]
	return ok
}

func (d *Dispatcher) release(name string) {
	d.mu.Lock()
	delete(d.pending, name)
	d.mu.Unlock()
}

// Run is the runner loop. It returns when ctx is done. A job in flight runs
// under ctx, so shutdown cancels it.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher started", logx.Int("queue_cap", cap(d.queue)))
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return nil
		case qj := <-d.queue:
			d.execOne(ctx, qj)
		}
	}
}

func (d *Dispatcher) execOne(parent context.Context, qj queuedJob) {
	defer d.release(qj.job.Name)

	start := time.Now()
	delay := start.Sub(qj.enqueuedAt)
	log := d.log.With(logx.String("job", qj.job.Name))
	log.Debug("job started", logx.Duration("queue_delay", delay))
	d.publish(EventJobStarted, JobEvent{Name: qj.job.Name, Started: start, QueueDelay: delay})

	// Mutations of the schedule never cancel an in-flight job; only shutdown
	// does. The timeout does not apply to collection, which only stops early
	// on shutdown.
	ctx := parent
	cancel := func() {}
	if d.timeout > 0 && qj.job.Name != CollectJobName {
		ctx, cancel = context.WithTimeout(parent, d.timeout)
	}
	err := safeRun(ctx, qj.job.Run)
	cancel()

	took := time.Since(start)
	ev := JobEvent{Name: qj.job.Name, Started: start, QueueDelay: delay, Duration: took}
	if err != nil {
		ev.Error = err.Error()
		log.Error("job failed", logx.Duration("took", took), logx.Err(err))
	} else {
		log.Info("job finished", logx.Duration("took", took))
	}
	d.publish(EventJobFinished, ev)
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) publish(typ string, ev JobEvent) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
