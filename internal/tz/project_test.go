package tz

import (
	"errors"
	"testing"
	"time"
)

func TestProject(t *testing.T) {
	inst, err := Compose(ScheduleInput{Date: "2024-03-01", Time: "23:00", Zone: Offset(false, 9)})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	tests := []struct {
		zone string
		want LocalTime
	}{
		{"utc-5", LocalTime{Date: "2024-03-01", Time: "09:00"}},
		{"utc+9", LocalTime{Date: "2024-03-01", Time: "23:00"}},
		{"utc+14", LocalTime{Date: "2024-03-02", Time: "04:00"}},
		{"utc-12", LocalTime{Date: "2024-03-01", Time: "02:00"}},
		{"UTC", LocalTime{Date: "2024-03-01", Time: "14:00"}},
		{"America/New_York", LocalTime{Date: "2024-03-01", Time: "09:00"}},
		{"Asia/Kolkata", LocalTime{Date: "2024-03-01", Time: "19:30"}},
		{"Pacific/Auckland", LocalTime{Date: "2024-03-02", Time: "03:00"}},
	}

	for _, tc := range tests {
		t.Run(tc.zone, func(t *testing.T) {
			got, err := Project(inst, mustNormalize(t, tc.zone))
			if err != nil {
				t.Fatalf("Project: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestProjectHonorsHistoricalDST(t *testing.T) {
	paris := Region("Europe/Paris")
	winter, _ := ParseInstant("2024-01-10T12:00:00+00:00")
	summer, _ := ParseInstant("2024-07-10T12:00:00+00:00")

	if got, _ := Project(winter, paris); got.Time != "13:00" {
		t.Errorf("winter = %s, want 13:00", got.Time)
	}
	if got, _ := Project(summer, paris); got.Time != "14:00" {
		t.Errorf("summer = %s, want 14:00", got.Time)
	}
}

func TestProjectIgnoresAmbientZone(t *testing.T) {
	saved := time.Local
	time.Local = time.FixedZone("Ambient", 5*3600)
	defer func() { time.Local = saved }()

	inst, _ := ParseInstant("2024-03-01T14:00:00Z")
	got, err := Project(inst, UTC)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if got.Time != "14:00" {
		t.Fatalf("got %s, ambient zone leaked", got.Time)
	}

	if _, err := Project(inst, Region("Local")); !errors.Is(err, ErrUnresolvableRegion) {
		t.Fatalf("Local region error = %v", err)
	}
}

func TestProjectErrors(t *testing.T) {
	inst, _ := ParseInstant("2024-03-01T14:00:00Z")

	if _, err := Project(inst, Identifier{}); !errors.Is(err, ErrEmptyTimezone) {
		t.Fatalf("zero zone error = %v", err)
	}

	got, err := ProjectOrUTC(inst, Region("Mars/Olympus"))
	if !errors.Is(err, ErrUnresolvableRegion) {
		t.Fatalf("error = %v, want ErrUnresolvableRegion", err)
	}
	if got != (LocalTime{Date: "2024-03-01", Time: "14:00"}) {
		t.Fatalf("fallback = %+v, want UTC reading", got)
	}
}
