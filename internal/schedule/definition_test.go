package schedule

import (
	"errors"
	"testing"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "21:00", want: TimeOfDay{Hour: 21}},
		{in: "09:30:15", want: TimeOfDay{Hour: 9, Minute: 30, Second: 15}},
		{in: " 7:05 ", want: TimeOfDay{Hour: 7, Minute: 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDefinition) {
					t.Fatalf("err=%v want ErrInvalidDefinition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestTimeOfDayCronSpec(t *testing.T) {
	t.Parallel()

	if got := (TimeOfDay{Hour: 21, Minute: 5, Second: 9}).CronSpec(); got != "9 5 21 * * *" {
		t.Fatalf("CronSpec=%q", got)
	}
	if got := (TimeOfDay{Hour: 1}).String(); got != "01:00:00" {
		t.Fatalf("String=%q", got)
	}
}

func TestParseDefinitionInput(t *testing.T) {
	t.Parallel()

	const here = int64(-100123)
	tests := []struct {
		name      string
		in        string
		want      Input
		wantField string
	}{
		{name: "here default table", in: "21:00 here 7", want: Input{At: TimeOfDay{Hour: 21}, ChannelID: here, LookbackDays: 7, Output: OutputTable}},
		{name: "explicit channel graph", in: "09:30:15 -1001234567890 3 graph", want: Input{At: TimeOfDay{Hour: 9, Minute: 30, Second: 15}, ChannelID: -1001234567890, LookbackDays: 3, Output: OutputGraph}},
		{name: "case insensitive", in: "09:30 HERE 3 Table", want: Input{At: TimeOfDay{Hour: 9, Minute: 30}, ChannelID: here, LookbackDays: 3, Output: OutputTable}},
		{name: "too few", in: "21:00 here", wantField: "input"},
		{name: "too many", in: "21:00 here 7 table extra", wantField: "input"},
		{name: "bad time", in: "2100 here 7", wantField: "time"},
		{name: "bad channel", in: "21:00 there 7", wantField: "channel"},
		{name: "bad days", in: "21:00 here seven", wantField: "days"},
		{name: "zero days", in: "21:00 here 0", wantField: "days"},
		{name: "bad output", in: "21:00 here 7 pie", wantField: "output"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDefinitionInput(tt.in, here)
			if tt.wantField != "" {
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Fatalf("err=%v want field %q", err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDefinitionInput: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	ok := Definition{At: TimeOfDay{Hour: 8}, ChannelID: 1, LookbackDays: 7, Output: OutputTable, Status: StatusEnabled}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}

	mutate := []func(*Definition){
		func(d *Definition) { d.At.Hour = 25 },
		func(d *Definition) { d.ChannelID = 0 },
		func(d *Definition) { d.LookbackDays = MaxLookbackDays + 1 },
		func(d *Definition) { d.Output = "pie" },
		func(d *Definition) { d.Status = "PAUSED" },
	}
	for i, m := range mutate {
		d := ok
		m(&d)
		if err := d.Validate(); !errors.Is(err, ErrInvalidDefinition) {
			t.Fatalf("case %d: err=%v want ErrInvalidDefinition", i, err)
		}
	}
}
