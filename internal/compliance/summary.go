package compliance

import (
	"math"
	"sort"
)

// Summary 一组成员在某周的汇总
type Summary struct {
	WeekID         WeekID   `json:"week_id"`
	Total          int      `json:"total"`
	Submitted      int      `json:"submitted"`
	Expected       int      `json:"expected"`
	OnVacation     int      `json:"on_vacation"`
	Exempted       int      `json:"exempted"`
	Missing        int      `json:"missing"`
	Overdue        int      `json:"overdue"`
	OnTime         int      `json:"on_time"`
	Reviewed       int      `json:"reviewed"`
	ReviewedOnTime int      `json:"reviewed_on_time"`
	SubmissionRate int      `json:"submission_rate"` // 百分比，四舍五入
	OnTimeRate     int      `json:"on_time_rate"`
	AverageMood    *float64 `json:"average_mood,omitempty"`
	SkippedUserIDs []int64  `json:"skipped_user_ids,omitempty"`
}

// Partial 是否有成员因数据问题被跳过
func (s Summary) Partial() bool {
	return len(s.SkippedUserIDs) > 0
}

// Summarize 纯整数累加后再算比例，结果与输入顺序无关
func Summarize(week WeekID, snapshots []Snapshot, skipped []int64) Summary {
	ordered := make([]Snapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UserID < ordered[j].UserID })

	s := Summary{WeekID: week, Total: len(ordered)}
	moodSum, moodCount := 0, 0

	for _, snap := range ordered {
		switch snap.Status {
		case StatusOnVacation:
			s.OnVacation++
		case StatusExempted:
			s.Exempted++
		case StatusOverdue:
			s.Overdue++
		case StatusMissing:
			s.Missing++
		case StatusSubmitted:
			s.Submitted++
			if snap.SubmittedOnTime {
				s.OnTime++
			}
			if snap.Reviewed {
				s.Reviewed++
			}
			if snap.ReviewedOnTime != nil && *snap.ReviewedOnTime {
				s.ReviewedOnTime++
			}
			if snap.Mood != nil {
				moodSum += *snap.Mood
				moodCount++
			}
		}
	}

	s.Expected = s.Total - s.OnVacation - s.Exempted
	s.SubmissionRate = RoundPercent(s.Submitted, s.Expected)
	s.OnTimeRate = RoundPercent(s.OnTime, s.Submitted)

	if moodCount > 0 {
		avg := math.Round(float64(moodSum)*100/float64(moodCount)) / 100
		s.AverageMood = &avg
	}

	if len(skipped) > 0 {
		s.SkippedUserIDs = append([]int64(nil), skipped...)
		sort.Slice(s.SkippedUserIDs, func(i, j int) bool { return s.SkippedUserIDs[i] < s.SkippedUserIDs[j] })
	}

	return s
}

// RoundPercent round(n / d * 100)，半数向上；d == 0 时为 0
func RoundPercent(n, d int) int {
	if d <= 0 {
		return 0
	}
	return (200*n + d) / (2 * d)
}
