package domain

import (
	"testing"
	"time"
)

func tod(s string) *TimeOfDay {
	t := MustTimeOfDay(s)
	return &t
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: " 17:30 ", want: 1050},
		{in: "24:00", want: 1440},
		{in: "24:01", wantErr: true},
		{in: "9", wantErr: true},
		{in: "aa:00", wantErr: true},
		{in: "10:60", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseTimeOfDay = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
	if MustTimeOfDay("08:05").String() != "08:05" {
		t.Fatalf("String round trip failed")
	}
}

func TestOccurrenceOn_MatchesWeekday(t *testing.T) {
	w := AvailabilityWindow{Kind: WindowRecurring, Weekday: 1, StartMinute: tod("09:00"), EndMinute: tod("12:00")}

	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got, ok, err := w.OccurrenceOn(monday)
	if err != nil || !ok {
		t.Fatalf("OccurrenceOn(monday) = %v, %v", ok, err)
	}
	if !got.Start.Equal(monday.Add(9*time.Hour)) || !got.End.Equal(monday.Add(12*time.Hour)) {
		t.Fatalf("interval = %v..%v", got.Start, got.End)
	}

	_, ok, err = w.OccurrenceOn(monday.AddDate(0, 0, 1))
	if err != nil || ok {
		t.Fatalf("OccurrenceOn(tuesday) = %v, %v; want no occurrence", ok, err)
	}
}

func TestOccurrenceOn_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	w := AvailabilityWindow{Kind: WindowRecurring, Weekday: 1, StartMinute: tod("09:00"), EndMinute: tod("17:00")}

	// 2026-03-08 is the spring-forward Sunday; the rule is anchored a week earlier.
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	got, ok, err := w.OccurrenceOn(day)
	if err != nil || !ok {
		t.Fatalf("OccurrenceOn = %v, %v", ok, err)
	}
	if got.Start.Hour() != 9 || got.End.Hour() != 17 {
		t.Fatalf("wall clock = %s..%s, want 09:00..17:00", got.Start.Format("15:04"), got.End.Format("15:04"))
	}
}

func TestOverridesDate(t *testing.T) {
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	w := AvailabilityWindow{Kind: WindowOverride, Date: &date}
	if !w.OverridesDate(time.Date(2026, 3, 4, 0, 0, 0, 0, time.FixedZone("X", 3*3600))) {
		t.Fatalf("expected override to match same calendar date")
	}
	if w.OverridesDate(date.AddDate(0, 0, 1)) {
		t.Fatalf("override matched a different date")
	}
	if _, ok := w.IntervalOn(date); ok {
		t.Fatalf("closed override produced an interval")
	}
}

func TestAvailabilityWindowValidate(t *testing.T) {
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		w       AvailabilityWindow
		wantErr bool
	}{
		{name: "recurring ok", w: AvailabilityWindow{Kind: WindowRecurring, Weekday: 7, StartMinute: tod("09:00"), EndMinute: tod("10:00")}},
		{name: "recurring bad weekday", w: AvailabilityWindow{Kind: WindowRecurring, Weekday: 0, StartMinute: tod("09:00"), EndMinute: tod("10:00")}, wantErr: true},
		{name: "recurring closed", w: AvailabilityWindow{Kind: WindowRecurring, Weekday: 1}, wantErr: true},
		{name: "inverted", w: AvailabilityWindow{Kind: WindowRecurring, Weekday: 1, StartMinute: tod("11:00"), EndMinute: tod("10:00")}, wantErr: true},
		{name: "override closed ok", w: AvailabilityWindow{Kind: WindowOverride, Date: &date}},
		{name: "override half open", w: AvailabilityWindow{Kind: WindowOverride, Date: &date, StartMinute: tod("09:00")}, wantErr: true},
		{name: "override no date", w: AvailabilityWindow{Kind: WindowOverride}, wantErr: true},
		{name: "unknown kind", w: AvailabilityWindow{Kind: "weekly"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
