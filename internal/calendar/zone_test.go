package calendar

import (
	"testing"
	"time"
)

func TestLocalInstant_NewYorkWinterAndSummer(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	nine := TimeOfDay{Hour: 9}

	winter := LocalInstant(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), nine, loc)
	if want := time.Date(2026, time.January, 15, 14, 0, 0, 0, time.UTC); !winter.Equal(want) {
		t.Fatalf("EST: expected %s, got %s", want, winter)
	}

	summer := LocalInstant(time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC), nine, loc)
	if want := time.Date(2026, time.July, 15, 13, 0, 0, 0, time.UTC); !summer.Equal(want) {
		t.Fatalf("EDT: expected %s, got %s", want, summer)
	}
	if summer.Location() != time.UTC {
		t.Fatalf("expected UTC instant, got %s", summer.Location())
	}
}

func TestDayBounds_DSTTransitionDays(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	spring := DayBounds(time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC), loc)
	if got := spring.End.Sub(spring.Start); got != 23*time.Hour {
		t.Fatalf("spring-forward day: expected 23h, got %s", got)
	}
	fall := DayBounds(time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), loc)
	if got := fall.End.Sub(fall.Start); got != 25*time.Hour {
		t.Fatalf("fall-back day: expected 25h, got %s", got)
	}
	if want := time.Date(2026, time.March, 8, 5, 0, 0, 0, time.UTC); !spring.Start.Equal(want) {
		t.Fatalf("expected day start %s, got %s", want, spring.Start)
	}
}

func TestTodayIn_UsesProviderZone(t *testing.T) {
	kolkata, err := LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 20:00Z on the 2nd is already the 3rd in India.
	now := time.Date(2026, time.March, 2, 20, 0, 0, 0, time.UTC)
	if got := TodayIn(now, kolkata); !got.Equal(time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected today: %s", got)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	valid := map[string]TimeOfDay{
		"00:00": {0, 0},
		"09:30": {9, 30},
		"23:59": {23, 59},
	}
	for in, want := range valid {
		got, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %+v, got %+v", in, want, got)
		}
		if got.String() != in {
			t.Fatalf("%q: round trip gave %q", in, got.String())
		}
	}

	for _, in := range []string{"", "9:00", "24:00", "12:60", "12:5", "12-00", " 09:00", "09:00:00"} {
		if _, err := ParseTimeOfDay(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestNormalizeDailyTimes(t *testing.T) {
	got, err := NormalizeDailyTimes([]string{"14:00", "09:00", "11:30"}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := FormatDailyTimes(got)
	want := []string{"09:00", "11:30", "14:00"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}

	if _, err := NormalizeDailyTimes([]string{"09:00", "10:00"}, 3); err == nil {
		t.Fatalf("expected count error")
	}
	if _, err := NormalizeDailyTimes([]string{"09:00", "10:00", "09:00"}, 3); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestMonthAndYearBounds(t *testing.T) {
	from, to := MonthBounds(2026, time.December)
	if !from.Equal(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected december bounds: %s - %s", from, to)
	}
	from, to = YearBounds(2026)
	if to.Sub(from) != 365*24*time.Hour {
		t.Fatalf("unexpected year length: %s", to.Sub(from))
	}
}

func TestIsWeekendUTC(t *testing.T) {
	// Saturday 03:30Z is 09:00 in India; Friday 20:00 in New York is Saturday 01:00Z.
	if !IsWeekendUTC(time.Date(2026, time.March, 7, 3, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected saturday")
	}
	ny, _ := LoadLocation("America/New_York")
	if !IsWeekendUTC(time.Date(2026, time.March, 6, 20, 0, 0, 0, ny)) {
		t.Fatalf("expected weekend by UTC day")
	}
	if IsWeekendUTC(time.Date(2026, time.March, 6, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("friday is not a weekend")
	}
}
