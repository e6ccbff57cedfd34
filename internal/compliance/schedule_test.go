package compliance

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TeamPulse/pkg/calendar"
	apperrors "TeamPulse/pkg/errors"
)

func intPtr(v int) *int { return &v }

func newTestCalculator(t *testing.T, s ScheduleSettings) *Calculator {
	t.Helper()
	cfg, err := NewScheduleConfig(s)
	require.NoError(t, err)
	calc, err := NewCalculator(cfg, nil)
	require.NoError(t, err)
	return calc
}

func thursdayChicago() ScheduleSettings {
	return ScheduleSettings{
		DueWeekday:   int(time.Thursday),
		DueTime:      "17:00",
		ReminderTime: "09:00",
		Timezone:     "America/Chicago",
	}
}

func TestNewScheduleConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings ScheduleSettings
		wantErr  bool
		check    func(t *testing.T, cfg ScheduleConfig)
	}{
		{
			name:     "defaults for unset optional fields",
			settings: thursdayChicago(),
			check: func(t *testing.T, cfg ScheduleConfig) {
				assert.Equal(t, time.Monday, cfg.WeekStartDay)
				assert.Equal(t, time.Thursday, cfg.ReminderWeekday)
				assert.Equal(t, DefaultReviewGraceDays, cfg.ReviewGraceDays)
				assert.Equal(t, []string{"slack"}, cfg.Channels)
			},
		},
		{
			name: "explicit values are kept",
			settings: ScheduleSettings{
				WeekStartDay:    intPtr(0),
				DueWeekday:      5,
				DueTime:         "16:30",
				ReminderWeekday: intPtr(4),
				ReminderTime:    "10:15",
				ReviewGraceDays: intPtr(0),
				Timezone:        "America/New_York",
				Channels:        []string{"slack", " email ", ""},
			},
			check: func(t *testing.T, cfg ScheduleConfig) {
				assert.Equal(t, time.Sunday, cfg.WeekStartDay)
				assert.Equal(t, time.Thursday, cfg.ReminderWeekday)
				assert.Equal(t, calendar.Clock{Hour: 10, Minute: 15}, cfg.ReminderTime)
				assert.Equal(t, 0, cfg.ReviewGraceDays)
				assert.Equal(t, []string{"slack", "email"}, cfg.Channels)
			},
		},
		{name: "due weekday out of range", settings: ScheduleSettings{DueWeekday: 7, DueTime: "17:00", ReminderTime: "09:00"}, wantErr: true},
		{name: "bad due time", settings: ScheduleSettings{DueWeekday: 4, DueTime: "25:00", ReminderTime: "09:00"}, wantErr: true},
		{name: "missing reminder time", settings: ScheduleSettings{DueWeekday: 4, DueTime: "17:00"}, wantErr: true},
		{name: "unsupported timezone", settings: ScheduleSettings{DueWeekday: 4, DueTime: "17:00", ReminderTime: "09:00", Timezone: "Europe/Berlin"}, wantErr: true},
		{name: "negative grace days", settings: ScheduleSettings{DueWeekday: 4, DueTime: "17:00", ReminderTime: "09:00", ReviewGraceDays: intPtr(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewScheduleConfig(tt.settings)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.InvalidScheduleConfig)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestDueInstantDoesNotSkipWeek(t *testing.T) {
	calc := newTestCalculator(t, thursdayChicago())
	want := time.Date(2025, 10, 9, 22, 0, 0, 0, time.UTC) // Thursday 17:00 CDT

	for _, ref := range []calendar.Date{
		calendar.NewDate(2025, 10, 6),  // Monday
		calendar.NewDate(2025, 10, 9),  // due day
		calendar.NewDate(2025, 10, 10), // Friday, one day after due
		calendar.NewDate(2025, 10, 11), // Saturday
		calendar.NewDate(2025, 10, 12), // Sunday, last day of the week
	} {
		assert.Equal(t, want, calc.DueInstant(ref), "reference %s", ref)
		assert.Equal(t, WeekID("2025-10-06"), calc.WeekID(ref))
	}

	assert.Equal(t, time.Date(2025, 10, 16, 22, 0, 0, 0, time.UTC), calc.DueInstant(calendar.NewDate(2025, 10, 13)))
}

func TestScheduleAcrossDST(t *testing.T) {
	calc := newTestCalculator(t, ScheduleSettings{
		DueWeekday:   int(time.Monday),
		DueTime:      "09:00",
		ReminderTime: "08:00",
		Timezone:     "America/Chicago",
	})

	// 2025-03-09 开始夏令时
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), calc.DueInstant(calendar.NewDate(2025, 3, 12)))
	assert.Equal(t, time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC), calc.DueInstant(calendar.NewDate(2025, 3, 5)))
	assert.Equal(t, time.Date(2025, 1, 13, 15, 0, 0, 0, time.UTC), calc.DueInstant(calendar.NewDate(2025, 1, 15)))
	// 2025-11-02 结束夏令时
	assert.Equal(t, time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC), calc.DueInstant(calendar.NewDate(2025, 11, 4)))
}

func TestDueInstantInGap(t *testing.T) {
	calc := newTestCalculator(t, ScheduleSettings{
		WeekStartDay: intPtr(int(time.Sunday)),
		DueWeekday:   int(time.Sunday),
		DueTime:      "02:30",
		ReminderTime: "01:00",
		Timezone:     "America/Chicago",
	})

	// 02:30 在 2025-03-09 不存在，顺延到 03:00 CDT
	assert.Equal(t, time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC), calc.DueInstant(calendar.NewDate(2025, 3, 9)))
}

func TestReviewDueAndReminder(t *testing.T) {
	s := thursdayChicago()
	s.ReminderWeekday = intPtr(int(time.Wednesday))
	s.ReviewGraceDays = intPtr(4)
	calc := newTestCalculator(t, s)

	week := calc.Schedule(calendar.NewDate(2025, 10, 8))
	assert.Equal(t, WeekID("2025-10-06"), week.WeekID)
	assert.Equal(t, time.Date(2025, 10, 8, 14, 0, 0, 0, time.UTC), week.ReminderAt)
	assert.Equal(t, time.Date(2025, 10, 13, 22, 0, 0, 0, time.UTC), week.ReviewDueAt)

	// 审阅截止跨过夏令时结束，墙上时刻不变
	week = calc.Schedule(calendar.NewDate(2025, 10, 30))
	assert.Equal(t, time.Date(2025, 10, 30, 22, 0, 0, 0, time.UTC), week.DueAt)
	assert.Equal(t, time.Date(2025, 11, 3, 23, 0, 0, 0, time.UTC), week.ReviewDueAt)
}

func TestParseWeekID(t *testing.T) {
	calc := newTestCalculator(t, thursdayChicago())

	d, err := calc.ParseWeekID("2025-10-06")
	require.NoError(t, err)
	assert.Equal(t, calendar.NewDate(2025, 10, 6), d)

	_, err = calc.ParseWeekID("2025-10-07")
	assert.ErrorIs(t, err, apperrors.InvalidWeekID)

	_, err = calc.ParseWeekID("not-a-week")
	assert.ErrorIs(t, err, apperrors.InvalidWeekID)

	next, err := calc.ShiftWeek("2025-12-29", 1)
	require.NoError(t, err)
	assert.Equal(t, WeekID("2026-01-05"), next)
}

func TestWeekOfUsesOrganizationZone(t *testing.T) {
	calc := newTestCalculator(t, thursdayChicago())

	// 周日 23:30 CDT 已是 UTC 周一
	sundayNight := time.Date(2025, 10, 13, 4, 30, 0, 0, time.UTC)
	assert.Equal(t, WeekID("2025-10-06"), calc.WeekOf(sundayNight))
	assert.Equal(t, WeekID("2025-10-13"), calc.WeekOf(sundayNight.Add(time.Hour)))
}

func TestWeekStabilityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("instants in the same week share week id and due instant", prop.ForAll(
		func(dayOffset int, weekStart int, dueWeekday int, zone string, minuteA, minuteB int) bool {
			cfg, err := NewScheduleConfig(ScheduleSettings{
				WeekStartDay: &weekStart,
				DueWeekday:   dueWeekday,
				DueTime:      "17:00",
				ReminderTime: "09:00",
				Timezone:     zone,
			})
			if err != nil {
				return false
			}
			calc, err := NewCalculator(cfg, nil)
			if err != nil {
				return false
			}

			start := calc.WeekStart(calendar.DateOf(base.AddDate(0, 0, dayOffset)))
			t1, _ := cfg.Zone.CivilToInstant(start.At(0, 0))
			t1 = t1.Add(time.Duration(minuteA) * time.Minute)
			t2, _ := cfg.Zone.CivilToInstant(start.At(0, 0))
			t2 = t2.Add(time.Duration(minuteB) * time.Minute)
			if calc.Today(t1).After(start.AddDays(6)) || calc.Today(t2).After(start.AddDays(6)) {
				return true
			}

			return calc.WeekOf(t1) == calc.WeekOf(t2) &&
				calc.DueInstant(calc.Today(t1)).Equal(calc.DueInstant(calc.Today(t2)))
		},
		gen.IntRange(0, 365*40),
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
		gen.OneConstOf("America/Chicago", "America/New_York", "America/Denver", "America/Los_Angeles", "America/Phoenix", "UTC"),
		gen.IntRange(0, 7*24*60-1),
		gen.IntRange(0, 7*24*60-1),
	))

	properties.Property("due instant lies inside its week", prop.ForAll(
		func(dayOffset int, weekStart int, dueWeekday int) bool {
			cfg, err := NewScheduleConfig(ScheduleSettings{
				WeekStartDay: &weekStart,
				DueWeekday:   dueWeekday,
				DueTime:      "17:00",
				ReminderTime: "09:00",
				Timezone:     "America/Chicago",
			})
			if err != nil {
				return false
			}
			calc, _ := NewCalculator(cfg, nil)
			ref := calendar.DateOf(base.AddDate(0, 0, dayOffset))
			due := calc.Today(calc.DueInstant(ref))
			start := calc.WeekStart(ref)
			return !due.Before(start) && !due.After(start.AddDays(6)) && due.Weekday() == time.Weekday(dueWeekday)
		},
		gen.IntRange(0, 365*40),
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
