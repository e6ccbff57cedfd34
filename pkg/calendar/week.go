package calendar

import (
	"fmt"
	"time"

	apperrors "TeamPulse/pkg/errors"
)

// ValidateWeekday 校验 0-6（0 = 周日）
func ValidateWeekday(weekday time.Weekday) error {
	if weekday < time.Sunday || weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", apperrors.InvalidScheduleConfig, int(weekday))
	}
	return nil
}

// StartOfWeek 返回 d 当天或之前最近一个 weekStart，幂等：
// StartOfWeek(StartOfWeek(d, w), w) == StartOfWeek(d, w)
func StartOfWeek(d Date, weekStart time.Weekday) Date {
	back := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-back)
}

// NthWeekdayAt 从 weekStart 向后找到第一个 weekday（含 weekStart 当天，0-6 天），
// 时钟设为 hour:minute:00.000
func NthWeekdayAt(weekStart Date, weekday time.Weekday, hour, minute int) (DateTime, error) {
	if err := ValidateWeekday(weekday); err != nil {
		return DateTime{}, err
	}
	if err := (Clock{Hour: hour, Minute: minute}).Validate(); err != nil {
		return DateTime{}, err
	}

	ahead := (int(weekday) - int(weekStart.Weekday()) + 7) % 7
	return weekStart.AddDays(ahead).At(hour, minute), nil
}

// WeeksBetween 返回两个周起始日之间相差的整周数
func WeeksBetween(from, to Date) int {
	days := from.DaysUntil(to)
	if days >= 0 {
		return days / 7
	}
	return -((-days + 6) / 7)
}
