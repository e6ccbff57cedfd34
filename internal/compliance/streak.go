package compliance

import (
	"context"
	"fmt"
	"time"

	"TeamPulse/internal/model"
)

// Streak 从最近一个应交周往回数连续 submitted 的周数。
// 休假、豁免周跳过（不中断也不累加）；missing / overdue 中断。
// 当前周尚未到截止且未提交时视为还不应交，直接跳过。
func (a *Aggregator) Streak(ctx context.Context, orgID, userID int64) (int, error) {
	calc, err := a.Calculator(ctx, orgID)
	if err != nil {
		return 0, err
	}

	users, err := a.store.ListUsers(ctx, orgID, UserFilter{UserIDs: []int64{userID}, IncludeInactive: true})
	if err != nil {
		return 0, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	var user *model.User
	for _, u := range users {
		if u != nil && u.ID == userID {
			user = u
			break
		}
	}
	if user == nil {
		return 0, fmt.Errorf("user %d not found in organization %d", userID, orgID)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()
	history, err := a.fetchHistory(fetchCtx, user, RecordFilter{UserID: &user.ID})
	if err != nil {
		return 0, err
	}

	return CountStreak(NewClassifier(calc, a.exempt), calc, history, a.now(), a.streakWeeks), nil
}

// CountStreak 纯函数版本，最多回看 maxWeeks 周
func CountStreak(classifier *Classifier, calc *Calculator, history UserHistory, now time.Time, maxWeeks int) int {
	current := calc.WeekStart(calc.Today(now))
	streak := 0

	for i := 0; i < maxWeeks; i++ {
		week := calc.Schedule(current.AddDays(-7 * i))
		snap := classifier.Classify(history.Week(week.WeekID), week, now)

		switch snap.Status {
		case StatusSubmitted:
			streak++
		case StatusOnVacation:
			continue
		case StatusExempted:
			if snap.ExemptReason == ExemptNotYetJoin {
				// 更早的周成员还未加入，不必再往回看
				return streak
			}
			continue
		case StatusMissing:
			if i == 0 && !now.After(week.DueAt) {
				continue
			}
			return streak
		case StatusOverdue:
			return streak
		}
	}
	return streak
}
