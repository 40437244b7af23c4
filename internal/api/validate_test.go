package api

import (
	"testing"
	"time"

	"drtnav/internal/model"
)

func TestParseTimeFilterFormats(t *testing.T) {
	f, err := parseTimeFilter("2025-07-01 08:00", "2025-07-01 12:00:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Start == nil || !f.Start.Equal(time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("start: %v", f.Start)
	}
	if f.End == nil || f.End.Second() != 30 {
		t.Fatalf("end: %v", f.End)
	}
}

func TestParseTimeFilterSwapsReversed(t *testing.T) {
	f, err := parseTimeFilter("2025-07-01 12:00", "2025-07-01 08:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.Start.Before(*f.End) {
		t.Fatalf("bounds not swapped: %v %v", f.Start, f.End)
	}
}

func TestParseTimeFilterOpenEnded(t *testing.T) {
	f, err := parseTimeFilter("", "2025-07-01 08:00")
	if err != nil || f.Start != nil || f.End == nil {
		t.Fatalf("open-ended: %+v err=%v", f, err)
	}
}

func TestParseTimeFilterRejectsGarbage(t *testing.T) {
	if _, err := parseTimeFilter("tomorrow", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRunParams(t *testing.T) {
	if err := validateRunParams(model.RunParams{}); err != nil {
		t.Fatalf("zero params should be valid: %v", err)
	}
	if err := validateRunParams(model.RunParams{MaxWaitMinutes: -1}); err == nil {
		t.Fatal("negative wait should fail")
	}
	if err := validateRunParams(model.RunParams{VehicleLimit: -2}); err == nil {
		t.Fatal("negative limit should fail")
	}
}
