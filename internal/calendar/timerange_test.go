package calendar

import (
	"testing"
	"time"
)

func TestHasOverlap(t *testing.T) {
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	slot, err := SlotRange(base, time.Hour)
	if err != nil {
		t.Fatalf("slot range: %v", err)
	}
	next, _ := SlotRange(base.Add(time.Hour), time.Hour)
	inner, _ := NewTimeRange(base.Add(15*time.Minute), base.Add(45*time.Minute))

	if ok, _ := HasOverlap(next, []TimeRange{slot}, false); ok {
		t.Fatalf("adjacent slots must not overlap")
	}
	if ok, _ := HasOverlap(next, []TimeRange{slot}, true); !ok {
		t.Fatalf("touching endpoints overlap when inclusive")
	}
	ok, conflicts := HasOverlap(inner, []TimeRange{slot, next}, false)
	if !ok || len(conflicts) != 1 || conflicts[0] != slot {
		t.Fatalf("expected one conflict with %v, got %v", slot, conflicts)
	}
}

func TestNewTimeRange_Invalid(t *testing.T) {
	at := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	if _, err := NewTimeRange(at, at); err != ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if _, err := SlotRange(at, 0); err != ErrSlotDuration {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

func TestFormatSlotForUser(t *testing.T) {
	kolkata, _ := LoadLocation("Asia/Kolkata")
	tr, _ := SlotRange(time.Date(2026, time.March, 6, 3, 30, 0, 0, time.UTC), time.Hour)

	if got, want := FormatSlotForUser(tr, kolkata), "Friday, 06 Mar 2026, 09:00–10:00"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := FormatSlotForUser(tr, nil), "Friday, 06 Mar 2026, 03:30–04:30"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
