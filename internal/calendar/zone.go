package calendar

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Все переводы между локальным временем провайдера и абсолютными моментами
// идут через этот файл. Зона провайдера всегда передаётся явно; локальная
// зона процесса здесь не читается.

var locations = gocache.New(gocache.NoExpiration, 0)

// LoadLocation разрешает IANA-зону и кэширует успешные результаты.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("empty time zone")
	}
	if v, ok := locations.Get(name); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	locations.Set(name, loc, gocache.NoExpiration)
	return loc, nil
}

// TimeOfDay: время дня без даты.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var hhmm = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ParseTimeOfDay принимает строго "HH:mm": часы 00-23, минуты 00-59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := hhmm.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("time %q is not in HH:mm format", s)
	}
	h := int(m[1][0]-'0')*10 + int(m[1][1]-'0')
	mi := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	return TimeOfDay{Hour: h, Minute: mi}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// NormalizeDailyTimes разбирает записи, отклоняет повторы и сортирует по времени.
// want: требуемое число записей (0 отключает проверку).
func NormalizeDailyTimes(raw []string, want int) ([]TimeOfDay, error) {
	if want > 0 && len(raw) != want {
		return nil, fmt.Errorf("expected %d daily slot times, got %d", want, len(raw))
	}
	seen := make(map[int]struct{}, len(raw))
	out := make([]TimeOfDay, 0, len(raw))
	for _, s := range raw {
		tod, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[tod.minutes()]; dup {
			return nil, fmt.Errorf("duplicate slot time %s", tod)
		}
		seen[tod.minutes()] = struct{}{}
		out = append(out, tod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].minutes() < out[j].minutes() })
	return out, nil
}

// FormatDailyTimes переводит записи обратно в строки "HH:mm".
func FormatDailyTimes(times []TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

// DateOf возвращает календарную дату t (её собственные Y/M/D) как полночь UTC.
// Календарные дни везде передаются как полночь UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TodayIn возвращает сегодняшнюю дату в зоне loc.
func TodayIn(now time.Time, loc *time.Location) time.Time {
	return DateOf(now.In(loc))
}

// AddDays сдвигает дату на n дней.
func AddDays(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.UTC)
}

// LocalInstant переводит дату и локальное время в loc в абсолютный момент UTC.
func LocalInstant(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, loc).UTC()
}

// DayBounds возвращает абсолютный интервал календарного дня в loc.
// В дни перехода на летнее время он длится 23 или 25 часов.
func DayBounds(date time.Time, loc *time.Location) TimeRange {
	y, m, d := date.Date()
	return TimeRange{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc).UTC(),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC(),
	}
}

// RangeBounds возвращает интервал от начала дня from до начала дня to, оба в loc.
func RangeBounds(from, to time.Time, loc *time.Location) TimeRange {
	return TimeRange{
		Start: DayBounds(from, loc).Start,
		End:   DayBounds(to, loc).Start,
	}
}

// YearBounds возвращает [1 января year, 1 января year+1) как даты.
func YearBounds(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// MonthBounds возвращает [первое число месяца, первое число следующего) как даты.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
}

// IsWeekendUTC сообщает, приходится ли момент на субботу или воскресенье по UTC.
func IsWeekendUTC(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
