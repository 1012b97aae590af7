package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDefinition is the sentinel every *ValidationError matches.
var ErrInvalidDefinition = errors.New("schedule: invalid definition")

// ErrNotFound is returned by a Store when no definition has the given id.
var ErrNotFound = errors.New("schedule: not found")

// MaxLookbackDays bounds how far back a report may look.
const MaxLookbackDays = 365

type Status string

const (
	StatusEnabled  Status = "ENABLED"
	StatusDisabled Status = "DISABLED"
)

func (s Status) Valid() bool { return s == StatusEnabled || s == StatusDisabled }

// OutputKind selects how a report is delivered.
type OutputKind string

const (
	OutputTable OutputKind = "table"
	OutputGraph OutputKind = "graph"
)

func (k OutputKind) Valid() bool { return k == OutputTable || k == OutputGraph }

func ParseOutputKind(s string) (OutputKind, error) {
	switch k := OutputKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return OutputTable, nil
	case OutputTable, OutputGraph:
		return k, nil
	default:
		return "", &ValidationError{Field: "output", Reason: fmt.Sprintf("%q is not table or graph", s)}
	}
}

// TimeOfDay is a wall-clock trigger time in the scheduler's location.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60 && t.Second >= 0 && t.Second < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// CronSpec is the six-field (seconds first) daily cron expression.
func (t TimeOfDay) CronSpec() string {
	return fmt.Sprintf("%d %d %d * * *", t.Second, t.Minute, t.Hour)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q must be HH:MM or HH:MM:SS", s)}
	}
	vals := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) == 0 || len(p) > 2 {
			return TimeOfDay{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q must be HH:MM or HH:MM:SS", s)}
		}
		vals[i] = n
	}
	t := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if !t.Valid() {
		return TimeOfDay{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is out of range", s)}
	}
	return t, nil
}

// Definition is one persisted recurring report.
type Definition struct {
	ID           int64
	At           TimeOfDay
	ChannelID    int64
	OwnerID      int64
	LookbackDays int
	Output       OutputKind
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (d Definition) Enabled() bool { return d.Status == StatusEnabled }

// Validate checks every user-supplied field. Status defaults are applied by
// the caller before validation.
func (d Definition) Validate() error {
	switch {
	case !d.At.Valid():
		return &ValidationError{Field: "time", Reason: d.At.String() + " is out of range"}
	case d.ChannelID == 0:
		return &ValidationError{Field: "channel", Reason: "channel is required"}
	case d.LookbackDays < 1 || d.LookbackDays > MaxLookbackDays:
		return &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d", MaxLookbackDays)}
	case !d.Output.Valid():
		return &ValidationError{Field: "output", Reason: fmt.Sprintf("%q is not table or graph", d.Output)}
	case !d.Status.Valid():
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not ENABLED or DISABLED", d.Status)}
	}
	return nil
}

// ValidationError describes a rejected field. It matches ErrInvalidDefinition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDefinition }

// Input is the parsed operator form of a definition, before it is bound to
// an id and owner.
type Input struct {
	At           TimeOfDay
	ChannelID    int64
	LookbackDays int
	Output       OutputKind
}

// Apply copies the input's fields onto d.
func (in Input) Apply(d Definition) Definition {
	d.At = in.At
	d.ChannelID = in.ChannelID
	d.LookbackDays = in.LookbackDays
	d.Output = in.Output
	return d
}

// ParseDefinitionInput parses "HH:MM[:SS] here|<channel-id> <days> [table|graph]".
// "here" resolves to currentChannel.
func ParseDefinitionInput(text string, currentChannel int64) (Input, error) {
	parts := strings.Fields(text)
	if len(parts) < 3 || len(parts) > 4 {
		return Input{}, &ValidationError{Field: "input", Reason: "expected: HH:MM[:SS] here|<channel-id> <days> [table|graph]"}
	}

	at, err := ParseTimeOfDay(parts[0])
	if err != nil {
		return Input{}, err
	}

	var ch int64
	if strings.EqualFold(parts[1], "here") {
		ch = currentChannel
	} else {
		ch, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Input{}, &ValidationError{Field: "channel", Reason: fmt.Sprintf("%q is not 'here' or a numeric channel id", parts[1])}
		}
	}
	if ch == 0 {
		return Input{}, &ValidationError{Field: "channel", Reason: "channel is required"}
	}

	days, err := strconv.Atoi(parts[2])
	if err != nil {
		return Input{}, &ValidationError{Field: "days", Reason: fmt.Sprintf("%q is not a number", parts[2])}
	}
	if days < 1 || days > MaxLookbackDays {
		return Input{}, &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d", MaxLookbackDays)}
	}

	out := OutputTable
	if len(parts) == 4 {
		if out, err = ParseOutputKind(parts[3]); err != nil {
			return Input{}, err
		}
	}
	return Input{At: at, ChannelID: ch, LookbackDays: days, Output: out}, nil
}
