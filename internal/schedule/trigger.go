package schedule

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "rankbot/pkg/logx"
)

// Trigger fires callbacks once a day at a wall-clock time. Missed fires are
// not caught up.
type Trigger interface {
	Arm(name string, at TimeOfDay, fn func()) error
	DisarmAll()
	Armed() []Armed
}

// Armed describes one armed trigger.
type Armed struct {
	Name string
	At   TimeOfDay
	Next time.Time
}

type cronEntry struct {
	name string
	at   TimeOfDay
	id   cron.EntryID
}

// CronTrigger is the robfig/cron backed Trigger.
type CronTrigger struct {
	mu      sync.Mutex
	log     logx.Logger
	parser  cron.Parser
	loc     *time.Location
	c       *cron.Cron
	entries []cronEntry
	started bool
}

func NewCronTrigger(loc *time.Location, log logx.Logger) *CronTrigger {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronTrigger{
		log:    log,
		parser: parser,
		loc:    loc,
		c:      cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
	}
}

// Location is the zone trigger times are interpreted in.
func (t *CronTrigger) Location() *time.Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loc
}

// Arm registers fn under name. Arming an existing name replaces it.
func (t *CronTrigger) Arm(name string, at TimeOfDay, fn func()) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("schedule: trigger name required")
	}
	if !at.Valid() {
		return &ValidationError{Field: "time", Reason: at.String() + " is out of range"}
	}
	if fn == nil {
		return errors.New("schedule: trigger callback required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(name)
	id, err := t.c.AddFunc(at.CronSpec(), fn)
	if err != nil {
		return err
	}
	t.entries = append(t.entries, cronEntry{name: name, at: at, id: id})
	t.log.Debug("trigger armed", logx.String("name", name), logx.String("at", at.String()), logx.String("next", t.nextLocked(at).Format("2006-01-02 15:04:05")))
	return nil
}

func (t *CronTrigger) removeLocked(name string) {
	n := 0
	for _, e := range t.entries {
		if e.name == name {
			t.c.Remove(e.id)
			continue
		}
		t.entries[n] = e
		n++
	}
	t.entries = t.entries[:n]
}

func (t *CronTrigger) DisarmAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		t.c.Remove(e.id)
	}
	t.entries = nil
}

// Armed lists armed triggers ordered by name.
func (t *CronTrigger) Armed() []Armed {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Armed, 0, len(t.entries))
	for _, e := range t.entries {
		next := t.c.Entry(e.id).Next
		if next.IsZero() {
			next = t.nextLocked(e.at)
		}
		out = append(out, Armed{Name: e.name, At: e.at, Next: next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *CronTrigger) nextLocked(at TimeOfDay) time.Time {
	sched, err := t.parser.Parse(at.CronSpec())
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now().In(t.loc))
}

// Start begins firing. It is a no-op when already started.
func (t *CronTrigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.c.Start()
	t.log.Info("trigger started", logx.String("tz", t.loc.String()), logx.Int("armed", len(t.entries)))
}

// Stop halts firing and waits for running callbacks or ctx.
func (t *CronTrigger) Stop(ctx context.Context) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	done := t.c.Stop().Done()
	t.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
