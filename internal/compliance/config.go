package compliance

import (
	"fmt"
	"strings"
	"time"

	"TeamPulse/internal/model"
	"TeamPulse/pkg/calendar"
	apperrors "TeamPulse/pkg/errors"
	"TeamPulse/pkg/timezone"
)

const (
	DefaultWeekStartDay    = time.Monday
	DefaultReviewGraceDays = 3
	DefaultChannel         = "slack"
)

// ScheduleSettings 管理员提交的原始排期设置
type ScheduleSettings struct {
	WeekStartDay    *int
	DueWeekday      int
	DueTime         string
	ReminderWeekday *int
	ReminderTime    string
	ReviewGraceDays *int
	Timezone        string
	Channels        []string
}

// ScheduleConfig 校验过的排期配置，一次计算过程中不可变
type ScheduleConfig struct {
	WeekStartDay    time.Weekday
	DueWeekday      time.Weekday
	DueTime         calendar.Clock
	ReminderWeekday time.Weekday
	ReminderTime    calendar.Clock
	ReviewGraceDays int
	Zone            timezone.Zone
	Channels        []string
}

// NewScheduleConfig 校验设置并生成配置。
// 只有可选且未设置的字段才会取默认值；非法取值一律返回 InvalidScheduleConfig。
func NewScheduleConfig(s ScheduleSettings) (ScheduleConfig, error) {
	cfg := ScheduleConfig{
		WeekStartDay:    DefaultWeekStartDay,
		DueWeekday:      time.Weekday(s.DueWeekday),
		ReviewGraceDays: DefaultReviewGraceDays,
	}

	if s.WeekStartDay != nil {
		cfg.WeekStartDay = time.Weekday(*s.WeekStartDay)
	}
	if err := calendar.ValidateWeekday(cfg.WeekStartDay); err != nil {
		return ScheduleConfig{}, fmt.Errorf("week start day: %w", err)
	}
	if err := calendar.ValidateWeekday(cfg.DueWeekday); err != nil {
		return ScheduleConfig{}, fmt.Errorf("due weekday: %w", err)
	}

	dueTime, err := calendar.ParseClock(s.DueTime)
	if err != nil {
		return ScheduleConfig{}, fmt.Errorf("due time: %w", err)
	}
	cfg.DueTime = dueTime

	cfg.ReminderWeekday = cfg.DueWeekday
	if s.ReminderWeekday != nil {
		cfg.ReminderWeekday = time.Weekday(*s.ReminderWeekday)
		if err := calendar.ValidateWeekday(cfg.ReminderWeekday); err != nil {
			return ScheduleConfig{}, fmt.Errorf("reminder weekday: %w", err)
		}
	}

	reminderTime, err := calendar.ParseClock(s.ReminderTime)
	if err != nil {
		return ScheduleConfig{}, fmt.Errorf("reminder time: %w", err)
	}
	cfg.ReminderTime = reminderTime

	if s.ReviewGraceDays != nil {
		if *s.ReviewGraceDays < 0 || *s.ReviewGraceDays > 28 {
			return ScheduleConfig{}, fmt.Errorf("%w: review grace days %d out of range", apperrors.InvalidScheduleConfig, *s.ReviewGraceDays)
		}
		cfg.ReviewGraceDays = *s.ReviewGraceDays
	}

	zone, err := timezone.Lookup(s.Timezone)
	if err != nil {
		return ScheduleConfig{}, err
	}
	cfg.Zone = zone

	for _, ch := range s.Channels {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		cfg.Channels = append(cfg.Channels, ch)
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{DefaultChannel}
	}

	return cfg, nil
}

// Validate 对手工构造的配置做同样的范围检查
func (c ScheduleConfig) Validate() error {
	for _, wd := range []time.Weekday{c.WeekStartDay, c.DueWeekday, c.ReminderWeekday} {
		if err := calendar.ValidateWeekday(wd); err != nil {
			return err
		}
	}
	if err := c.DueTime.Validate(); err != nil {
		return err
	}
	if err := c.ReminderTime.Validate(); err != nil {
		return err
	}
	if c.ReviewGraceDays < 0 {
		return fmt.Errorf("%w: review grace days %d out of range", apperrors.InvalidScheduleConfig, c.ReviewGraceDays)
	}
	if c.Zone.Name == "" {
		return fmt.Errorf("%w: timezone is required", apperrors.InvalidScheduleConfig)
	}
	return nil
}

// SettingsFromOrganization 把组织表中的列转换为排期设置
func SettingsFromOrganization(org *model.Organization) ScheduleSettings {
	weekStart := org.WeekStartDay
	return ScheduleSettings{
		WeekStartDay:    &weekStart,
		DueWeekday:      org.DueWeekday,
		DueTime:         org.DueTime,
		ReminderWeekday: org.ReminderWeekday,
		ReminderTime:    org.ReminderTime,
		ReviewGraceDays: org.ReviewGraceDays,
		Timezone:        org.Timezone,
		Channels:        strings.Split(org.ReminderChannels, ","),
	}
}

// ConfigFromOrganization 读取组织设置并校验
func ConfigFromOrganization(org *model.Organization) (ScheduleConfig, error) {
	if org == nil {
		return ScheduleConfig{}, apperrors.OrganizationNotFound
	}
	cfg, err := NewScheduleConfig(SettingsFromOrganization(org))
	if err != nil {
		return ScheduleConfig{}, fmt.Errorf("organization %d: %w", org.ID, err)
	}
	return cfg, nil
}
