package compliance

import (
	"time"

	"TeamPulse/internal/model"
)

// Status 某人某周的合规状态，五者互斥
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusOnVacation Status = "on-vacation"
	StatusExempted   Status = "exempted"
	StatusOverdue    Status = "overdue"
	StatusMissing    Status = "missing"
)

// Snapshot 查询时现算的分类结果，不作为事实持久化
type Snapshot struct {
	UserID          int64        `json:"user_id"`
	TeamID          *int64       `json:"team_id,omitempty"`
	WeekID          WeekID       `json:"week_id"`
	Status          Status       `json:"status"`
	ExemptReason    ExemptReason `json:"exempt_reason,omitempty"`
	SubmittedOnTime bool         `json:"submitted_on_time"`
	ReviewedOnTime  *bool        `json:"reviewed_on_time"`
	Reviewed        bool         `json:"reviewed"`
	DaysOverdue     int          `json:"days_overdue"`
	DueAt           time.Time    `json:"due_at"`
	SubmittedAt     *time.Time   `json:"submitted_at,omitempty"`
	Mood            *int         `json:"mood,omitempty"`
}

// WeekRecords 某人某周相关的原始记录，CheckIn / Review / Vacation 可为空
type WeekRecords struct {
	User     *model.User
	CheckIn  *model.CheckIn
	Review   *model.CheckInReview
	Vacation *model.Vacation
}

// Classifier 按优先级对 (user, week) 分类
type Classifier struct {
	calc   *Calculator
	exempt ExemptionRule
}

func NewClassifier(calc *Calculator, rule ExemptionRule) *Classifier {
	if rule == nil {
		rule = DefaultExemption
	}
	return &Classifier{calc: calc, exempt: rule}
}

// Classify 第一条命中的规则决定状态：
//  1. 有休假 → on-vacation
//  2. 豁免 → exempted
//  3. 有完成的打卡 → submitted
//  4. 当前周且已过截止 → overdue
//  5. 其余 → missing
//
// 只有当前周会是 overdue；历史周没交一律记为 missing。
func (c *Classifier) Classify(rec WeekRecords, week WeekSchedule, now time.Time) Snapshot {
	snap := Snapshot{
		WeekID: week.WeekID,
		DueAt:  week.DueAt,
	}
	if rec.User != nil {
		snap.UserID = rec.User.ID
		snap.TeamID = rec.User.TeamID
	}

	if rec.Vacation != nil {
		snap.Status = StatusOnVacation
		return snap
	}

	if reason := c.exempt(rec.User, week); reason != ExemptNone {
		snap.Status = StatusExempted
		snap.ExemptReason = reason
		return snap
	}

	if rec.CheckIn != nil && rec.CheckIn.IsComplete {
		snap.Status = StatusSubmitted
		snap.SubmittedAt = rec.CheckIn.SubmittedAt
		snap.Mood = rec.CheckIn.Mood
		snap.SubmittedOnTime = rec.CheckIn.SubmittedAt != nil && !rec.CheckIn.SubmittedAt.After(week.DueAt)
		snap.Reviewed, snap.ReviewedOnTime = reviewState(rec.Review, week, now)
		return snap
	}

	if now.After(week.DueAt) && week.WeekID == c.calc.CurrentWeek(now) {
		snap.Status = StatusOverdue
		snap.DaysOverdue = int(now.Sub(week.DueAt) / (24 * time.Hour))
		return snap
	}

	snap.Status = StatusMissing
	return snap
}

// reviewState 审阅是否完成及是否按时：
// 按时审阅 → true；逾期审阅或过了审阅截止仍未审阅 → false；尚在审阅期内 → nil
func reviewState(review *model.CheckInReview, week WeekSchedule, now time.Time) (bool, *bool) {
	if review != nil && review.ReviewedAt != nil {
		onTime := !review.ReviewedAt.After(week.ReviewDueAt)
		return true, &onTime
	}
	if now.After(week.ReviewDueAt) {
		late := false
		return false, &late
	}
	return false, nil
}

// IsExpected 该周是否计入应交人数
func (s Snapshot) IsExpected() bool {
	return s.Status != StatusOnVacation && s.Status != StatusExempted
}
