package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rankbot/internal/eventbus"
)

func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatcher_SkipsWhilePending(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherOptions{})
	startDispatcher(t, d)

	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	job := Job{Name: "collect", Run: func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	}}

	if !d.Enqueue(job) {
		t.Fatalf("first enqueue rejected")
	}
	<-started
	if d.Enqueue(job) {
		t.Fatalf("second enqueue accepted while running")
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for d.Pending("collect") {
		if time.Now().After(deadline) {
			t.Fatalf("job never released")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !d.Enqueue(job) {
		t.Fatalf("enqueue after completion rejected")
	}
	for d.Pending("collect") {
		if time.Now().After(deadline) {
			t.Fatalf("second run never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs=%d want 2", got)
	}
}

func TestDispatcher_RunsSequentially(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherOptions{})
	startDispatcher(t, d)

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		order   []string
		wg      sync.WaitGroup
	)
	mk := func(name string) Job {
		return Job{Name: name, Run: func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			order = append(order, name)
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil
		}}
	}
	names := []string{"report:1", "report:2", "report:3"}
	wg.Add(len(names))
	for _, n := range names {
		if !d.Enqueue(mk(n)) {
			t.Fatalf("enqueue %s rejected", n)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxSeen != 1 {
		t.Fatalf("max concurrent=%d want 1", maxSeen)
	}
	for i, n := range names {
		if order[i] != n {
			t.Fatalf("order=%v want FIFO %v", order, names)
		}
	}
}

func TestDispatcher_RecoversPanicAndPublishes(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	d := NewDispatcher(DispatcherOptions{Bus: bus})
	startDispatcher(t, d)

	d.Enqueue(Job{Name: "boom", Run: func(context.Context) error { panic("kaboom") }})
	d.Enqueue(Job{Name: "fail", Run: func(context.Context) error { return errors.New("nope") }})

	finished := map[string]JobEvent{}
	timeout := time.After(2 * time.Second)
	for len(finished) < 2 {
		select {
		case ev := <-events:
			if ev.Type == EventJobFinished {
				je := ev.Data.(JobEvent)
				finished[je.Name] = je
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events; got %v", finished)
		}
	}
	if finished["boom"].Error == "" || finished["fail"].Error != "nope" {
		t.Fatalf("finished events=%+v", finished)
	}
}

func TestDispatcher_TimeoutBoundsJob(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherOptions{Timeout: 20 * time.Millisecond})
	startDispatcher(t, d)

	errc := make(chan error, 1)
	d.Enqueue(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		errc <- ctx.Err()
		return ctx.Err()
	}})
	select {
	case err := <-errc:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job was not cancelled by timeout")
	}
}

func TestDispatcher_TimeoutExemptsCollection(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherOptions{Timeout: 10 * time.Millisecond})
	startDispatcher(t, d)

	errc := make(chan error, 1)
	d.Enqueue(Job{Name: CollectJobName, Run: func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			errc <- ctx.Err()
		case <-time.After(80 * time.Millisecond):
			errc <- nil
		}
		return nil
	}})
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("collection cancelled: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("collection did not finish")
	}
}

func TestDispatcher_ShutdownCancelsInFlight(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	running := make(chan struct{})
	errc := make(chan error, 1)
	d.Enqueue(Job{Name: CollectJobName, Run: func(ctx context.Context) error {
		close(running)
		<-ctx.Done()
		errc <- ctx.Err()
		return ctx.Err()
	}})
	<-running
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("in-flight job did not see shutdown")
	}
	<-done
}
