package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "TeamPulse/pkg/errors"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		weekStart time.Weekday
		want      string
	}{
		{name: "monday start mid week", date: "2025-10-09", weekStart: time.Monday, want: "2025-10-06"},
		{name: "monday start on monday", date: "2025-10-06", weekStart: time.Monday, want: "2025-10-06"},
		{name: "monday start on sunday", date: "2025-10-12", weekStart: time.Monday, want: "2025-10-06"},
		{name: "sunday start on saturday", date: "2025-10-11", weekStart: time.Sunday, want: "2025-10-05"},
		{name: "sunday start on sunday", date: "2025-10-12", weekStart: time.Sunday, want: "2025-10-12"},
		{name: "crosses month", date: "2025-11-02", weekStart: time.Wednesday, want: "2025-10-29"},
		{name: "crosses year", date: "2026-01-02", weekStart: time.Monday, want: "2025-12-29"},
		{name: "leap day", date: "2024-03-01", weekStart: time.Thursday, want: "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StartOfWeek(mustDate(t, tt.date), tt.weekStart)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.weekStart, got.Weekday())
		})
	}
}

func TestNthWeekdayAt(t *testing.T) {
	weekStart := mustDate(t, "2025-10-06") // Monday

	got, err := NthWeekdayAt(weekStart, time.Thursday, 17, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-09T17:00:00", got.String())

	got, err = NthWeekdayAt(weekStart, time.Monday, 9, 30)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-06T09:30:00", got.String(), "weekStart itself matches")

	got, err = NthWeekdayAt(weekStart, time.Sunday, 23, 59)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-12T23:59:00", got.String(), "six days forward at most")
}

func TestNthWeekdayAtRejectsOutOfRange(t *testing.T) {
	weekStart := NewDate(2025, time.October, 6)

	cases := []struct {
		name    string
		weekday time.Weekday
		hour    int
		minute  int
	}{
		{"weekday too large", time.Weekday(7), 9, 0},
		{"weekday negative", time.Weekday(-1), 9, 0},
		{"hour too large", time.Friday, 24, 0},
		{"minute too large", time.Friday, 9, 60},
		{"minute negative", time.Friday, 9, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NthWeekdayAt(weekStart, c.weekday, c.hour, c.minute)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.InvalidScheduleConfig))
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("17:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 17, Minute: 5}, c)
	assert.Equal(t, "17:05", c.String())

	for _, bad := range []string{"", "25:00", "9", "09:60", "noon"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, apperrors.InvalidScheduleConfig, bad)
	}
}

func TestLeapYearArithmetic(t *testing.T) {
	assert.True(t, IsLeapYear(2024))
	assert.True(t, IsLeapYear(2000))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2025))

	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2100, time.February))

	assert.Equal(t, "2024-02-29", NewDate(2024, time.February, 28).AddDays(1).String())
	assert.Equal(t, "2025-03-01", NewDate(2025, time.February, 28).AddDays(1).String())
	assert.Equal(t, 366, NewDate(2024, time.January, 1).DaysUntil(NewDate(2025, time.January, 1)))
	assert.Equal(t, -1, NewDate(2024, time.March, 1).DaysUntil(NewDate(2024, time.February, 29)))

	assert.False(t, Date{Year: 2025, Month: time.February, Day: 29}.IsValid())
	assert.True(t, Date{Year: 2024, Month: time.February, Day: 29}.IsValid())
}

func TestNthWeekdayOfMonth(t *testing.T) {
	assert.Equal(t, "2025-03-09", NthWeekdayOfMonth(2025, time.March, time.Sunday, 2).String())
	assert.Equal(t, "2025-11-02", NthWeekdayOfMonth(2025, time.November, time.Sunday, 1).String())
	assert.Equal(t, "2026-03-08", NthWeekdayOfMonth(2026, time.March, time.Sunday, 2).String())
	assert.Equal(t, "2026-11-01", NthWeekdayOfMonth(2026, time.November, time.Sunday, 1).String())
}

func TestWeeksBetween(t *testing.T) {
	a := NewDate(2025, time.October, 6)
	assert.Equal(t, 0, WeeksBetween(a, a))
	assert.Equal(t, 2, WeeksBetween(a, a.AddDays(14)))
	assert.Equal(t, -1, WeeksBetween(a, a.AddDays(-7)))
}

func TestParseDateTime(t *testing.T) {
	dt, err := ParseDateTime("2025-03-10T09:00")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.March, 10).At(9, 0), dt)

	_, err = ParseDateTime("2025-03-10 09:00")
	assert.Error(t, err)
}

func TestStartOfWeekProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	base := NewDate(1970, time.January, 1)

	properties.Property("StartOfWeek is idempotent", prop.ForAll(
		func(offset int, ws int) bool {
			d := base.AddDays(offset)
			w := time.Weekday(ws)
			once := StartOfWeek(d, w)
			return StartOfWeek(once, w) == once
		},
		gen.IntRange(0, 60000),
		gen.IntRange(0, 6),
	))

	properties.Property("StartOfWeek lands on weekStart within the previous six days", prop.ForAll(
		func(offset int, ws int) bool {
			d := base.AddDays(offset)
			w := time.Weekday(ws)
			start := StartOfWeek(d, w)
			back := start.DaysUntil(d)
			return start.Weekday() == w && back >= 0 && back <= 6
		},
		gen.IntRange(0, 60000),
		gen.IntRange(0, 6),
	))

	properties.Property("every day of a week maps to the same start", prop.ForAll(
		func(offset int, ws int, k int) bool {
			w := time.Weekday(ws)
			start := StartOfWeek(base.AddDays(offset), w)
			return StartOfWeek(start.AddDays(k), w) == start
		},
		gen.IntRange(0, 60000),
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
