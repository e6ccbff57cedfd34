// Package compliance 周报截止时间计算、合规分类与汇总。
//
// 数据流：参考日期 → Calculator（截止/提醒时刻）→ Classifier（每人每周的状态）
// → Aggregator（团队/组织汇总、连续周数、趋势序列）。
package compliance

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"TeamPulse/pkg/calendar"
	apperrors "TeamPulse/pkg/errors"
	"TeamPulse/pkg/timezone"
)

// WeekID 周标识：组织时区下周起始日的 YYYY-MM-DD，是打卡、休假、汇总之间的关联键
type WeekID string

func (w WeekID) String() string {
	return string(w)
}

// WeekSchedule 一周内所有关键时刻
type WeekSchedule struct {
	WeekID      WeekID
	WeekStart   calendar.Date
	DueAt       time.Time
	ReminderAt  time.Time
	ReviewDueAt time.Time
}

// Calculator 排期计算器，无状态，可并发使用
type Calculator struct {
	cfg    ScheduleConfig
	logger *zap.Logger
}

// NewCalculator 配置在这里校验一次，之后的计算不会再出错
func NewCalculator(cfg ScheduleConfig, logger *zap.Logger) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{cfg: cfg, logger: logger}, nil
}

func (c *Calculator) Config() ScheduleConfig {
	return c.cfg
}

func (c *Calculator) Zone() timezone.Zone {
	return c.cfg.Zone
}

// WeekStart 参考日期所在周的起始日
func (c *Calculator) WeekStart(ref calendar.Date) calendar.Date {
	return calendar.StartOfWeek(ref, c.cfg.WeekStartDay)
}

// WeekID 参考日期所在周的标识
func (c *Calculator) WeekID(ref calendar.Date) WeekID {
	return WeekID(c.WeekStart(ref).String())
}

// DueInstant 参考日期所在周的打卡截止时刻
func (c *Calculator) DueInstant(ref calendar.Date) time.Time {
	return c.resolve(c.WeekStart(ref), c.cfg.DueWeekday, c.cfg.DueTime)
}

// ReminderInstant 参考日期所在周的提醒时刻
func (c *Calculator) ReminderInstant(ref calendar.Date) time.Time {
	return c.resolve(c.WeekStart(ref), c.cfg.ReminderWeekday, c.cfg.ReminderTime)
}

// ReviewDueInstant 主管审阅截止：截止日之后 ReviewGraceDays 天的同一墙上时刻
func (c *Calculator) ReviewDueInstant(ref calendar.Date) time.Time {
	due := c.civil(c.WeekStart(ref), c.cfg.DueWeekday, c.cfg.DueTime)
	reviewDue := due
	reviewDue.Date = due.Date.AddDays(c.cfg.ReviewGraceDays)
	return c.toInstant(reviewDue)
}

// Schedule 一次性算出参考日期所在周的全部时刻
func (c *Calculator) Schedule(ref calendar.Date) WeekSchedule {
	start := c.WeekStart(ref)
	return WeekSchedule{
		WeekID:      WeekID(start.String()),
		WeekStart:   start,
		DueAt:       c.DueInstant(start),
		ReminderAt:  c.ReminderInstant(start),
		ReviewDueAt: c.ReviewDueInstant(start),
	}
}

// ScheduleForWeek 按周标识取排期，标识必须是该组织的周起始日
func (c *Calculator) ScheduleForWeek(id WeekID) (WeekSchedule, error) {
	start, err := c.ParseWeekID(id)
	if err != nil {
		return WeekSchedule{}, err
	}
	return c.Schedule(start), nil
}

// ParseWeekID 解析并校验周标识
func (c *Calculator) ParseWeekID(id WeekID) (calendar.Date, error) {
	d, err := calendar.ParseDate(string(id))
	if err != nil {
		return calendar.Date{}, fmt.Errorf("%w: %q", apperrors.InvalidWeekID, id)
	}
	if d.Weekday() != c.cfg.WeekStartDay {
		return calendar.Date{}, fmt.Errorf("%w: %q is a %s, weeks start on %s",
			apperrors.InvalidWeekID, id, d.Weekday(), c.cfg.WeekStartDay)
	}
	return d, nil
}

// WeekOf 绝对时刻所在周（按组织时区）。提交时在入库处调用一次
func (c *Calculator) WeekOf(t time.Time) WeekID {
	return c.WeekID(c.cfg.Zone.DateOf(t))
}

// Today 组织时区下的今天
func (c *Calculator) Today(now time.Time) calendar.Date {
	return c.cfg.Zone.DateOf(now)
}

// CurrentWeek 当前周标识
func (c *Calculator) CurrentWeek(now time.Time) WeekID {
	return c.WeekOf(now)
}

// ShiftWeek 返回相对 id 偏移 n 周的周标识
func (c *Calculator) ShiftWeek(id WeekID, n int) (WeekID, error) {
	start, err := c.ParseWeekID(id)
	if err != nil {
		return "", err
	}
	return WeekID(start.AddDays(7 * n).String()), nil
}

func (c *Calculator) civil(weekStart calendar.Date, weekday time.Weekday, clock calendar.Clock) calendar.DateTime {
	dt, err := calendar.NthWeekdayAt(weekStart, weekday, clock.Hour, clock.Minute)
	if err != nil {
		// 配置已在 NewCalculator 校验，走到这里说明调用方绕过了构造函数
		panic(fmt.Sprintf("compliance: unvalidated schedule config: %v", err))
	}
	return dt
}

func (c *Calculator) resolve(weekStart calendar.Date, weekday time.Weekday, clock calendar.Clock) time.Time {
	return c.toInstant(c.civil(weekStart, weekday, clock))
}

func (c *Calculator) toInstant(dt calendar.DateTime) time.Time {
	instant, res := c.cfg.Zone.CivilToInstant(dt)
	switch res {
	case timezone.Gap:
		c.logger.Debug("Local time falls in DST gap, shifted forward",
			zap.String("civil", dt.String()),
			zap.String("zone", c.cfg.Zone.Name),
			zap.Time("instant", instant),
			zap.String("code", apperrors.NonexistentLocalTime.Code),
		)
	case timezone.Ambiguous:
		c.logger.Debug("Local time is ambiguous, using standard offset",
			zap.String("civil", dt.String()),
			zap.String("zone", c.cfg.Zone.Name),
			zap.Time("instant", instant),
			zap.String("code", apperrors.AmbiguousLocalTime.Code),
		)
	}
	return instant
}
