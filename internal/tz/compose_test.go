package tz

import (
	"errors"
	"testing"
	"time"
)

func mustNormalize(t *testing.T, s string) Identifier {
	t.Helper()
	id, err := Normalize(s)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", s, err)
	}
	return id
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		clock   string
		zone    string
		want    string
		wantUTC string
	}{
		{
			name: "offset code late evening", date: "2024-03-01", clock: "23:00", zone: "utc+9",
			want: "2024-03-01T23:00:00+09:00", wantUTC: "2024-03-01T14:00:00Z",
		},
		{
			name: "negative offset code", date: "2024-03-01", clock: "09:00", zone: "utc-5",
			want: "2024-03-01T09:00:00-05:00", wantUTC: "2024-03-01T14:00:00Z",
		},
		{
			name: "zero offset renders numerically", date: "2024-03-01", clock: "00:00", zone: "utc+0",
			want: "2024-03-01T00:00:00+00:00", wantUTC: "2024-03-01T00:00:00Z",
		},
		{
			name: "unpadded date", date: "2024-3-1", clock: "08:15", zone: "utc+2",
			want: "2024-03-01T08:15:00+02:00", wantUTC: "2024-03-01T06:15:00Z",
		},
		{
			name: "short year padded", date: "5-01-02", clock: "12:00", zone: "UTC",
			want: "0005-01-02T12:00:00+00:00", wantUTC: "0005-01-02T12:00:00Z",
		},
		{
			name: "region in winter", date: "2024-01-15", clock: "09:00", zone: "America/New_York",
			want: "2024-01-15T09:00:00-05:00", wantUTC: "2024-01-15T14:00:00Z",
		},
		{
			name: "region in summer", date: "2024-07-01", clock: "09:00", zone: "America/New_York",
			want: "2024-07-01T09:00:00-04:00", wantUTC: "2024-07-01T13:00:00Z",
		},
		{
			name: "half hour region", date: "2024-03-01", clock: "19:30", zone: "Asia/Kolkata",
			want: "2024-03-01T19:30:00+05:30", wantUTC: "2024-03-01T14:00:00Z",
		},
		{
			name: "utc region", date: "2024-03-01", clock: "10:00", zone: "UTC",
			want: "2024-03-01T10:00:00+00:00", wantUTC: "2024-03-01T10:00:00Z",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compose(ScheduleInput{Date: tc.date, Time: tc.clock, Zone: mustNormalize(t, tc.zone)})
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if got.String() != tc.want {
				t.Fatalf("got %q, want %q", got.String(), tc.want)
			}
			if utc := got.UTC().Format(time.RFC3339); utc != tc.wantUTC {
				t.Fatalf("UTC = %q, want %q", utc, tc.wantUTC)
			}
		})
	}
}

func TestComposeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		in      ScheduleInput
		wantErr error
	}{
		{"hour and minute out of range", ScheduleInput{Date: "2024-03-01", Time: "25:61", Zone: UTC}, ErrInvalidTimeFormat},
		{"hour 24", ScheduleInput{Date: "2024-03-01", Time: "24:00", Zone: UTC}, ErrInvalidTimeFormat},
		{"unpadded hour", ScheduleInput{Date: "2024-03-01", Time: "9:00", Zone: UTC}, ErrInvalidTimeFormat},
		{"seconds", ScheduleInput{Date: "2024-03-01", Time: "09:00:00", Zone: UTC}, ErrInvalidTimeFormat},
		{"empty time", ScheduleInput{Date: "2024-03-01", Time: "", Zone: UTC}, ErrInvalidTimeFormat},
		{"not a leap year", ScheduleInput{Date: "2023-02-29", Time: "10:00", Zone: UTC}, ErrInvalidDate},
		{"month 13", ScheduleInput{Date: "2024-13-01", Time: "10:00", Zone: UTC}, ErrInvalidDate},
		{"garbage date", ScheduleInput{Date: "tomorrow", Time: "10:00", Zone: UTC}, ErrInvalidDate},
		{"missing zone", ScheduleInput{Date: "2024-03-01", Time: "10:00"}, ErrEmptyTimezone},
		{"unknown region", ScheduleInput{Date: "2024-03-01", Time: "10:00", Zone: Region("Mars/Olympus")}, ErrUnresolvableRegion},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compose(tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if !got.IsZero() {
				t.Fatalf("expected no instant, got %s", got)
			}
		})
	}
}

func TestComposeTimeCheckedBeforeDate(t *testing.T) {
	_, err := Compose(ScheduleInput{Date: "not-a-date", Time: "25:61", Zone: UTC})
	if !errors.Is(err, ErrInvalidTimeFormat) {
		t.Fatalf("error = %v, want ErrInvalidTimeFormat", err)
	}
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2024-03-01T14:00:00Z")
	if err != nil {
		t.Fatalf("ParseInstant: %v", err)
	}
	if got.String() != "2024-03-01T14:00:00+00:00" {
		t.Fatalf("String() = %q", got.String())
	}

	got, err = ParseInstant("2024-03-01T23:00:00+09:00")
	if err != nil {
		t.Fatalf("ParseInstant: %v", err)
	}
	if got.String() != "2024-03-01T23:00:00+09:00" {
		t.Fatalf("offset not preserved: %q", got.String())
	}

	for _, bad := range []string{"2024-03-01T14:00:00", "2024-03-01", ""} {
		if _, err := ParseInstant(bad); !errors.Is(err, ErrInvalidInstant) {
			t.Errorf("ParseInstant(%q) error = %v, want ErrInvalidInstant", bad, err)
		}
	}
}

func TestParseInstantIgnoresLocal(t *testing.T) {
	saved := time.Local
	time.Local = time.FixedZone("Ambient", 9*3600)
	defer func() { time.Local = saved }()

	got, err := ParseInstant("2024-03-01T23:00:00+09:00")
	if err != nil {
		t.Fatalf("ParseInstant: %v", err)
	}
	if got.Time().Location() == time.Local {
		t.Fatal("parsed instant picked up time.Local")
	}
	if got.String() != "2024-03-01T23:00:00+09:00" {
		t.Fatalf("String() = %q", got.String())
	}
}

func TestComposeProjectInverse(t *testing.T) {
	instants := []string{
		"2024-03-01T14:00:00+00:00",
		"2024-12-31T23:45:00+00:00",
		"2024-06-15T00:05:00+00:00",
		"2025-02-28T11:30:00+00:00",
	}
	zones := []string{
		"utc+9", "utc-5", "utc+14", "utc-12", "utc+0",
		"UTC", "America/New_York", "Asia/Kolkata", "Europe/Paris", "Australia/Sydney",
	}

	for _, raw := range instants {
		inst, err := ParseInstant(raw)
		if err != nil {
			t.Fatalf("ParseInstant(%q): %v", raw, err)
		}
		for _, z := range zones {
			zone := mustNormalize(t, z)
			local, err := Project(inst, zone)
			if err != nil {
				t.Fatalf("Project(%s, %s): %v", raw, z, err)
			}
			back, err := Compose(ScheduleInput{Date: local.Date, Time: local.Time, Zone: zone})
			if err != nil {
				t.Fatalf("Compose(%v, %s): %v", local, z, err)
			}
			if !back.Equal(inst) {
				t.Errorf("%s via %s: recomposed %s, want %s", raw, z, back, inst)
			}
		}
	}
}

func TestCheckWallClock(t *testing.T) {
	ny := Region("America/New_York")
	tests := []struct {
		name            string
		date, clock     string
		zone            Identifier
		wantNonexistent bool
		wantAmbiguous   bool
	}{
		{"spring forward gap", "2024-03-10", "02:30", ny, true, false},
		{"fall back overlap", "2024-11-03", "01:30", ny, false, true},
		{"ordinary time", "2024-06-01", "12:00", ny, false, false},
		{"half hour overlap", "2024-04-07", "01:45", Region("Australia/Lord_Howe"), false, true},
		{"half hour gap", "2024-10-06", "02:15", Region("Australia/Lord_Howe"), true, false},
		{"just outside half hour overlap", "2024-04-07", "02:15", Region("Australia/Lord_Howe"), false, false},
		{"offset codes have no anomalies", "2024-03-10", "02:30", Offset(true, 5), false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			date, err := ParseDate(tc.date)
			if err != nil {
				t.Fatal(err)
			}
			clock, err := ParseClock(tc.clock)
			if err != nil {
				t.Fatal(err)
			}
			got, err := CheckWallClock(date, clock, tc.zone)
			if err != nil {
				t.Fatalf("CheckWallClock: %v", err)
			}
			if got.Nonexistent != tc.wantNonexistent || got.Ambiguous != tc.wantAmbiguous {
				t.Fatalf("got nonexistent=%v ambiguous=%v, want %v/%v",
					got.Nonexistent, got.Ambiguous, tc.wantNonexistent, tc.wantAmbiguous)
			}
			if got.Resolved.IsZero() {
				t.Fatal("resolved instant is zero")
			}
		})
	}
}

func TestDateCompare(t *testing.T) {
	a, _ := ParseDate("2024-12-31")
	b, _ := ParseDate("2025-01-01")
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatalf("Compare ordering wrong")
	}
}
