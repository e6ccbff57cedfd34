// Package calendar 提供不带时区的民用日期运算：周起始日、"本周第 N 个星期几 HH:MM"、
// 闰年安全的日期加减。所有运算只看年月日字段，换算成绝对时间交给 pkg/timezone。
package calendar

import (
	"fmt"
	"time"

	apperrors "TeamPulse/pkg/errors"
)

const (
	DateFormat     = "2006-01-02"
	ClockFormat    = "15:04"
	DateTimeFormat = "2006-01-02T15:04:05"

	secondsPerDay = 24 * 60 * 60
)

// Date 民用日期（无时刻、无时区）
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate 构造日期并做进位归一（例如 2月30日 → 3月1日/2日）
func NewDate(year int, month time.Month, day int) Date {
	return dateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf 取 t 在其自身 Location 下的年月日
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func dateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return dateOf(t), nil
}

// utc 以 UTC 零点承载日期，只用于字段运算，不代表真实时刻
func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// IsValid 字段本身就是合法日期（不依赖归一）
func (d Date) IsValid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return d.Day <= DaysIn(d.Year, d.Month)
}

func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

func (d Date) AddDays(n int) Date {
	return dateOf(d.utc().AddDate(0, 0, n))
}

// DaysUntil 返回从 d 到 other 的天数差（other 在前为负）
func (d Date) DaysUntil(other Date) int {
	return int((other.utc().Unix() - d.utc().Unix()) / secondsPerDay)
}

func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At 组合成当天 hh:mm:00 的民用时刻，不校验范围
func (d Date) At(hour, minute int) DateTime {
	return DateTime{Date: d, Hour: hour, Minute: minute}
}

// IsLeapYear 公历闰年规则
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn 返回某年某月的天数
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// NthWeekdayOfMonth 返回某月第 n 个 weekday（n 从 1 开始）
func NthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int) Date {
	first := Date{Year: year, Month: month, Day: 1}
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDays(offset + 7*(n-1))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// DateTime 民用时刻：日期 + 墙上时钟，无时区
type DateTime struct {
	Date
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// DateTimeOf 取 t 在其自身 Location 下的墙上时刻
func DateTimeOf(t time.Time) DateTime {
	return DateTime{
		Date:       DateOf(t),
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
	}
}

// ParseDateTime 解析 YYYY-MM-DDTHH:MM 或 YYYY-MM-DDTHH:MM:SS
func ParseDateTime(s string) (DateTime, error) {
	for _, layout := range []string{"2006-01-02T15:04", DateTimeFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTimeOf(t), nil
		}
	}
	return DateTime{}, fmt.Errorf("invalid date time %q", s)
}

// Wall 把民用时刻按 UTC 字段承载，仅供偏移换算使用
func (dt DateTime) Wall() time.Time {
	return time.Date(dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, dt.Nanosecond, time.UTC)
}

func (dt DateTime) Compare(other DateTime) int {
	return dt.Wall().Compare(other.Wall())
}

func (dt DateTime) Before(other DateTime) bool { return dt.Compare(other) < 0 }

func (dt DateTime) String() string {
	return dt.Wall().Format(DateTimeFormat)
}

// Clock 一天中的时刻（HH:MM）
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock 解析 "HH:MM"，越界返回 InvalidScheduleConfig
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: time %q must be HH:MM", apperrors.InvalidScheduleConfig, s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", apperrors.InvalidScheduleConfig, c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", apperrors.InvalidScheduleConfig, c.Minute)
	}
	return nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
