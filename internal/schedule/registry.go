package schedule

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	logx "rankbot/pkg/logx"
)

// CollectJobName names the fixed daily collection trigger and job.
const CollectJobName = "collect"

// DefaultCollectAt is the collection time when none is configured.
var DefaultCollectAt = TimeOfDay{Hour: 1}

// ReportJobName is the trigger/job name of a report definition.
func ReportJobName(id int64) string { return "report:" + strconv.FormatInt(id, 10) }

// Store persists report definitions.
type Store interface {
	CreateSchedule(ctx context.Context, d Definition) (Definition, error)
	UpdateSchedule(ctx context.Context, d Definition) error
	DeleteSchedule(ctx context.Context, id int64) error
	SetScheduleStatus(ctx context.Context, id int64, status Status) error
	GetSchedule(ctx context.Context, id int64) (Definition, error)
	ListSchedules(ctx context.Context) ([]Definition, error)
}

// Enqueuer accepts jobs from trigger fires. *Dispatcher implements it.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// ReportRequest is what a report trigger binds at reload time.
type ReportRequest struct {
	ScheduleID   int64
	ChannelID    int64
	LookbackDays int
	Output       OutputKind
}

type RegistryOptions struct {
	Store     Store
	Trigger   Trigger
	Enqueuer  Enqueuer
	CollectAt TimeOfDay
	Collect   func(ctx context.Context) error
	Report    func(ctx context.Context, req ReportRequest) error
	Log       logx.Logger
}

// Registry owns the set of armed triggers. Every mutation persists, then
// rebuilds all triggers from the store before returning; one mutex
// serializes both steps.
type Registry struct {
	mu        sync.Mutex
	store     Store
	trig      Trigger
	enq       Enqueuer
	collectAt TimeOfDay
	collect   func(ctx context.Context) error
	report    func(ctx context.Context, req ReportRequest) error
	log       logx.Logger
}

func NewRegistry(opt RegistryOptions) *Registry {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.CollectAt == (TimeOfDay{}) {
		opt.CollectAt = DefaultCollectAt
	}
	return &Registry{
		store:     opt.Store,
		trig:      opt.Trigger,
		enq:       opt.Enqueuer,
		collectAt: opt.CollectAt,
		collect:   opt.Collect,
		report:    opt.Report,
		log:       opt.Log,
	}
}

// Reload disarms everything, then arms the collection trigger and one
// trigger per enabled definition.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(ctx)
}

// SetCollectAt changes the collection time and reloads.
func (r *Registry) SetCollectAt(ctx context.Context, at TimeOfDay) error {
	if !at.Valid() {
		return &ValidationError{Field: "collect.at", Reason: at.String() + " is out of range"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collectAt == at {
		return nil
	}
	r.collectAt = at
	return r.reloadLocked(ctx)
}

func (r *Registry) reloadLocked(ctx context.Context) error {
	defs, err := r.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("schedule: list for reload: %w", err)
	}

	r.trig.DisarmAll()
	if err := r.trig.Arm(CollectJobName, r.collectAt, r.fire(CollectJobName, r.collect)); err != nil {
		return fmt.Errorf("schedule: arm %s: %w", CollectJobName, err)
	}

	armed := 0
	for _, d := range defs {
		if !d.Enabled() {
			continue
		}
		req := ReportRequest{ScheduleID: d.ID, ChannelID: d.ChannelID, LookbackDays: d.LookbackDays, Output: d.Output}
		report := r.report
		run := func(ctx context.Context) error { return report(ctx, req) }
		name := ReportJobName(d.ID)
		if err := r.trig.Arm(name, d.At, r.fire(name, run)); err != nil {
			// One bad row must not take the others down.
			r.log.Error("arm report trigger failed", logx.Int64("schedule_id", d.ID), logx.Err(err))
			continue
		}
		armed++
	}
	r.log.Info("schedules reloaded",
		logx.String("collect_at", r.collectAt.String()),
		logx.Int("definitions", len(defs)),
		logx.Int("reports_armed", armed),
	)
	return nil
}

func (r *Registry) fire(name string, run func(ctx context.Context) error) func() {
	return func() {
		if run == nil {
			return
		}
		r.enq.Enqueue(Job{Name: name, Run: run})
	}
}

// List returns all definitions.
func (r *Registry) List(ctx context.Context) ([]Definition, error) {
	return r.store.ListSchedules(ctx)
}

func (r *Registry) Get(ctx context.Context, id int64) (Definition, error) {
	return r.store.GetSchedule(ctx, id)
}

// Armed exposes the trigger's current view.
func (r *Registry) Armed() []Armed { return r.trig.Armed() }

// Create persists an enabled definition and reloads.
func (r *Registry) Create(ctx context.Context, owner int64, in Input) (Definition, error) {
	d := in.Apply(Definition{OwnerID: owner, Status: StatusEnabled})
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	created, err := r.store.CreateSchedule(ctx, d)
	if err != nil {
		return Definition{}, fmt.Errorf("schedule: create: %w", err)
	}
	if err := r.reloadLocked(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// Update replaces the time, channel, lookback and output of id.
func (r *Registry) Update(ctx context.Context, id int64, in Input) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, err := r.store.GetSchedule(ctx, id)
	if err != nil {
		return Definition{}, err
	}
	d := in.Apply(cur)
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	if err := r.store.UpdateSchedule(ctx, d); err != nil {
		return Definition{}, fmt.Errorf("schedule: update %d: %w", id, err)
	}
	if err := r.reloadLocked(ctx); err != nil {
		return d, err
	}
	return d, nil
}

func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.store.GetSchedule(ctx, id); err != nil {
		return err
	}
	if err := r.store.DeleteSchedule(ctx, id); err != nil {
		return fmt.Errorf("schedule: delete %d: %w", id, err)
	}
	return r.reloadLocked(ctx)
}

func (r *Registry) Enable(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusEnabled)
}

func (r *Registry) Disable(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusDisabled)
}

func (r *Registry) setStatus(ctx context.Context, id int64, st Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.store.GetSchedule(ctx, id); err != nil {
		return err
	}
	if err := r.store.SetScheduleStatus(ctx, id, st); err != nil {
		return fmt.Errorf("schedule: set status %d: %w", id, err)
	}
	return r.reloadLocked(ctx)
}
