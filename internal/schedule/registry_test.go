package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

type memStore struct {
	mu   sync.Mutex
	seq  int64
	defs map[int64]Definition
	fail error
}

func newMemStore() *memStore { return &memStore{defs: map[int64]Definition{}} }

func (s *memStore) CreateSchedule(_ context.Context, d Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return Definition{}, s.fail
	}
	s.seq++
	d.ID = s.seq
	s.defs[d.ID] = d
	return d, nil
}

func (s *memStore) UpdateSchedule(_ context.Context, d Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[d.ID]; !ok {
		return ErrNotFound
	}
	s.defs[d.ID] = d
	return nil
}

func (s *memStore) DeleteSchedule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, id)
	return nil
}

func (s *memStore) SetScheduleStatus(_ context.Context, id int64, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = st
	s.defs[id] = d
	return nil
}

func (s *memStore) GetSchedule(_ context.Context, id int64) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return d, nil
}

func (s *memStore) ListSchedules(context.Context) ([]Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeTrigger records armed callbacks so tests can fire them by name.
type fakeTrigger struct {
	mu    sync.Mutex
	armed map[string]TimeOfDay
	fns   map[string]func()
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{armed: map[string]TimeOfDay{}, fns: map[string]func(){}}
}

func (f *fakeTrigger) Arm(name string, at TimeOfDay, fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[name] = at
	f.fns[name] = fn
	return nil
}

func (f *fakeTrigger) DisarmAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = map[string]TimeOfDay{}
	f.fns = map[string]func(){}
}

func (f *fakeTrigger) Armed() []Armed {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Armed, 0, len(f.armed))
	for n, at := range f.armed {
		out = append(out, Armed{Name: n, At: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeTrigger) fire(name string) bool {
	f.mu.Lock()
	fn := f.fns[name]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []Job
}

func (e *recordingEnqueuer) Enqueue(j Job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, j)
	return true
}

func newTestRegistry(store Store, trig Trigger, enq Enqueuer, reports *[]ReportRequest) *Registry {
	return NewRegistry(RegistryOptions{
		Store:    store,
		Trigger:  trig,
		Enqueuer: enq,
		Collect:  func(context.Context) error { return nil },
		Report: func(_ context.Context, req ReportRequest) error {
			*reports = append(*reports, req)
			return nil
		},
	})
}

func TestRegistry_EnableDisableArmedCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newMemStore()
	trig := newFakeTrigger()
	var reports []ReportRequest
	reg := newTestRegistry(store, trig, &recordingEnqueuer{}, &reports)

	if err := reg.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n := len(trig.Armed()); n != 1 {
		t.Fatalf("armed after empty reload=%d want 1", n)
	}

	d, err := reg.Create(ctx, 42, Input{At: TimeOfDay{Hour: 21}, ChannelID: 7, LookbackDays: 7, Output: OutputTable})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	armed := trig.Armed()
	if len(armed) != 2 {
		t.Fatalf("armed after create=%d want 2: %+v", len(armed), armed)
	}
	if armed[0].Name != CollectJobName || armed[0].At != DefaultCollectAt {
		t.Fatalf("collect trigger=%+v", armed[0])
	}
	if armed[1].Name != ReportJobName(d.ID) {
		t.Fatalf("report trigger=%+v", armed[1])
	}

	if err := reg.Disable(ctx, d.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	armed = trig.Armed()
	if len(armed) != 1 || armed[0].Name != CollectJobName {
		t.Fatalf("armed after disable=%+v want collect only", armed)
	}

	if err := reg.Enable(ctx, d.ID); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if n := len(trig.Armed()); n != 2 {
		t.Fatalf("armed after enable=%d want 2", n)
	}

	if err := reg.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := len(trig.Armed()); n != 1 {
		t.Fatalf("armed after delete=%d want 1", n)
	}
}

func TestRegistry_FireBindsDefinition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newMemStore()
	trig := newFakeTrigger()
	enq := &recordingEnqueuer{}
	var reports []ReportRequest
	reg := newTestRegistry(store, trig, enq, &reports)

	d, err := reg.Create(ctx, 1, Input{At: TimeOfDay{Hour: 9, Minute: 30}, ChannelID: 55, LookbackDays: 3, Output: OutputGraph})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !trig.fire(ReportJobName(d.ID)) {
		t.Fatalf("report trigger not armed")
	}
	if len(enq.jobs) != 1 || enq.jobs[0].Name != ReportJobName(d.ID) {
		t.Fatalf("enqueued=%+v", enq.jobs)
	}
	if err := enq.jobs[0].Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := ReportRequest{ScheduleID: d.ID, ChannelID: 55, LookbackDays: 3, Output: OutputGraph}
	if len(reports) != 1 || reports[0] != want {
		t.Fatalf("reports=%+v want %+v", reports, want)
	}
}

func TestRegistry_UpdateRearmsAtNewTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	trig := newFakeTrigger()
	var reports []ReportRequest
	reg := newTestRegistry(newMemStore(), trig, &recordingEnqueuer{}, &reports)

	d, err := reg.Create(ctx, 1, Input{At: TimeOfDay{Hour: 21}, ChannelID: 5, LookbackDays: 7, Output: OutputTable})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Update(ctx, d.ID, Input{At: TimeOfDay{Hour: 22, Minute: 15}, ChannelID: 5, LookbackDays: 14, Output: OutputTable}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, a := range trig.Armed() {
		if a.Name == ReportJobName(d.ID) && a.At != (TimeOfDay{Hour: 22, Minute: 15}) {
			t.Fatalf("report armed at %v", a.At)
		}
	}
	got, _ := reg.Get(ctx, d.ID)
	if got.LookbackDays != 14 || got.OwnerID != 1 || got.Status != StatusEnabled {
		t.Fatalf("updated definition=%+v", got)
	}
}

func TestRegistry_RejectsBeforeMutation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newMemStore()
	trig := newFakeTrigger()
	var reports []ReportRequest
	reg := newTestRegistry(store, trig, &recordingEnqueuer{}, &reports)

	_, err := reg.Create(ctx, 1, Input{At: TimeOfDay{Hour: 21}, ChannelID: 5, LookbackDays: 0, Output: OutputTable})
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("err=%v want ErrInvalidDefinition", err)
	}
	if defs, _ := store.ListSchedules(ctx); len(defs) != 0 {
		t.Fatalf("invalid definition was persisted: %+v", defs)
	}
	if n := len(trig.Armed()); n != 0 {
		t.Fatalf("registry reloaded on rejected input: %d armed", n)
	}

	if err := reg.Disable(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Disable missing err=%v", err)
	}
}

func TestRegistry_SetCollectAt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	trig := newFakeTrigger()
	var reports []ReportRequest
	reg := newTestRegistry(newMemStore(), trig, &recordingEnqueuer{}, &reports)
	if err := reg.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	at := TimeOfDay{Hour: 2, Minute: 30}
	if err := reg.SetCollectAt(ctx, at); err != nil {
		t.Fatalf("SetCollectAt: %v", err)
	}
	armed := trig.Armed()
	if len(armed) != 1 || armed[0].At != at {
		t.Fatalf("armed=%+v", armed)
	}
}
