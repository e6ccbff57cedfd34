package compliance

import "TeamPulse/internal/model"

// ExemptReason 豁免原因，空字符串表示不豁免
type ExemptReason string

const (
	ExemptNone       ExemptReason = ""
	ExemptNoManager  ExemptReason = "no-manager"
	ExemptInactive   ExemptReason = "inactive"
	ExemptNotYetJoin ExemptReason = "not-yet-joined"
	ExemptUnknown    ExemptReason = "unknown-user"
)

// ExemptionRule 判断某人某周是否豁免
type ExemptionRule func(user *model.User, week WeekSchedule) ExemptReason

// DefaultExemption 没有主管、已停用、截止之后才加入的成员不需要交周报
func DefaultExemption(user *model.User, week WeekSchedule) ExemptReason {
	switch {
	case user == nil:
		return ExemptUnknown
	case user.ManagerID == nil:
		return ExemptNoManager
	case !user.Active:
		return ExemptInactive
	case !user.JoinedAt.IsZero() && user.JoinedAt.After(week.DueAt):
		return ExemptNotYetJoin
	default:
		return ExemptNone
	}
}
