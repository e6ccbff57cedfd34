package compliance

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TeamPulse/internal/model"
	"TeamPulse/pkg/calendar"
)

func fridayChicago(t *testing.T) *Calculator {
	return newTestCalculator(t, ScheduleSettings{
		DueWeekday:   int(time.Friday),
		DueTime:      "17:00",
		ReminderTime: "09:00",
		Timezone:     "America/Chicago",
	})
}

func testUser(id int64) *model.User {
	manager := int64(1)
	return &model.User{
		BaseModel:      model.BaseModel{ID: id},
		OrganizationID: 1,
		ManagerID:      &manager,
		Active:         true,
		JoinedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestClassifyOverdueEndToEnd(t *testing.T) {
	calc := fridayChicago(t)
	classifier := NewClassifier(calc, nil)
	week := calc.Schedule(calendar.NewDate(2025, 10, 10))
	rec := WeekRecords{User: testUser(2)}

	// 周五 18:00 CDT
	now := time.Date(2025, 10, 10, 23, 0, 0, 0, time.UTC)
	snap := classifier.Classify(rec, week, now)
	assert.Equal(t, StatusOverdue, snap.Status)
	assert.Equal(t, 0, snap.DaysOverdue)

	// 周六 18:00 CDT
	snap = classifier.Classify(rec, week, now.Add(24*time.Hour))
	assert.Equal(t, StatusOverdue, snap.Status)
	assert.Equal(t, 1, snap.DaysOverdue)

	// 截止之前
	snap = classifier.Classify(rec, week, time.Date(2025, 10, 10, 21, 0, 0, 0, time.UTC))
	assert.Equal(t, StatusMissing, snap.Status)

	// 下一周开始后，上一周不再是 overdue
	snap = classifier.Classify(rec, week, time.Date(2025, 10, 13, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, StatusMissing, snap.Status)
	assert.Equal(t, 0, snap.DaysOverdue)
}

func TestClassifyPriority(t *testing.T) {
	calc := fridayChicago(t)
	classifier := NewClassifier(calc, nil)
	week := calc.Schedule(calendar.NewDate(2025, 10, 10))
	now := time.Date(2025, 10, 11, 23, 0, 0, 0, time.UTC)
	late := timePtr(week.DueAt.Add(2 * time.Hour))
	onTime := timePtr(week.DueAt.Add(-time.Hour))
	mood := 4

	noManager := testUser(3)
	noManager.ManagerID = nil
	inactive := testUser(4)
	inactive.Active = false
	newcomer := testUser(5)
	newcomer.JoinedAt = week.DueAt.Add(time.Minute)

	tests := []struct {
		name       string
		rec        WeekRecords
		wantStatus Status
		wantReason ExemptReason
		onTime     bool
	}{
		{
			name:       "vacation beats late submission",
			rec:        WeekRecords{User: testUser(2), CheckIn: &model.CheckIn{IsComplete: true, SubmittedAt: late}, Vacation: &model.Vacation{}},
			wantStatus: StatusOnVacation,
		},
		{
			name:       "vacation beats missing",
			rec:        WeekRecords{User: testUser(2), Vacation: &model.Vacation{}},
			wantStatus: StatusOnVacation,
		},
		{
			name:       "vacation beats exemption",
			rec:        WeekRecords{User: noManager, Vacation: &model.Vacation{}},
			wantStatus: StatusOnVacation,
		},
		{name: "no manager", rec: WeekRecords{User: noManager}, wantStatus: StatusExempted, wantReason: ExemptNoManager},
		{name: "inactive", rec: WeekRecords{User: inactive}, wantStatus: StatusExempted, wantReason: ExemptInactive},
		{name: "joined after due", rec: WeekRecords{User: newcomer}, wantStatus: StatusExempted, wantReason: ExemptNotYetJoin},
		{name: "unknown user", rec: WeekRecords{}, wantStatus: StatusExempted, wantReason: ExemptUnknown},
		{
			name:       "on time submission",
			rec:        WeekRecords{User: testUser(2), CheckIn: &model.CheckIn{IsComplete: true, SubmittedAt: onTime, Mood: &mood}},
			wantStatus: StatusSubmitted,
			onTime:     true,
		},
		{
			name:       "late submission",
			rec:        WeekRecords{User: testUser(2), CheckIn: &model.CheckIn{IsComplete: true, SubmittedAt: late}},
			wantStatus: StatusSubmitted,
		},
		{
			name:       "draft check-in is not a submission",
			rec:        WeekRecords{User: testUser(2), CheckIn: &model.CheckIn{IsComplete: false}},
			wantStatus: StatusOverdue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := classifier.Classify(tt.rec, week, now)
			assert.Equal(t, tt.wantStatus, snap.Status)
			assert.Equal(t, tt.wantReason, snap.ExemptReason)
			assert.Equal(t, tt.onTime, snap.SubmittedOnTime)
		})
	}
}

func TestClassifyReviewState(t *testing.T) {
	calc := fridayChicago(t)
	classifier := NewClassifier(calc, nil)
	week := calc.Schedule(calendar.NewDate(2025, 10, 10))
	submitted := &model.CheckIn{IsComplete: true, SubmittedAt: timePtr(week.DueAt.Add(-time.Hour))}
	rec := WeekRecords{User: testUser(2), CheckIn: submitted}

	snap := classifier.Classify(rec, week, week.DueAt.Add(time.Hour))
	assert.False(t, snap.Reviewed)
	assert.Nil(t, snap.ReviewedOnTime, "still inside the review window")

	snap = classifier.Classify(rec, week, week.ReviewDueAt.Add(time.Minute))
	require.NotNil(t, snap.ReviewedOnTime)
	assert.False(t, *snap.ReviewedOnTime)

	rec.Review = &model.CheckInReview{ReviewedAt: timePtr(week.ReviewDueAt)}
	snap = classifier.Classify(rec, week, week.ReviewDueAt.Add(time.Minute))
	assert.True(t, snap.Reviewed)
	require.NotNil(t, snap.ReviewedOnTime)
	assert.True(t, *snap.ReviewedOnTime)

	rec.Review = &model.CheckInReview{ReviewedAt: timePtr(week.ReviewDueAt.Add(time.Second))}
	snap = classifier.Classify(rec, week, week.ReviewDueAt.Add(time.Hour))
	assert.True(t, snap.Reviewed)
	assert.False(t, *snap.ReviewedOnTime)
}

func TestClassificationExclusivityProperty(t *testing.T) {
	calc := fridayChicago(t)
	classifier := NewClassifier(calc, nil)
	week := calc.Schedule(calendar.NewDate(2025, 10, 10))

	properties := gopter.NewProperties(nil)
	properties.Property("exactly one status and vacation always wins", prop.ForAll(
		func(hasVacation, hasManager, active, hasCheckIn, complete bool, submitOffset, nowOffset int) bool {
			user := testUser(2)
			if !hasManager {
				user.ManagerID = nil
			}
			user.Active = active

			rec := WeekRecords{User: user}
			if hasVacation {
				rec.Vacation = &model.Vacation{}
			}
			if hasCheckIn {
				rec.CheckIn = &model.CheckIn{IsComplete: complete}
				if complete {
					rec.CheckIn.SubmittedAt = timePtr(week.DueAt.Add(time.Duration(submitOffset) * time.Hour))
				}
			}

			now := week.DueAt.Add(time.Duration(nowOffset) * time.Hour)
			snap := classifier.Classify(rec, week, now)

			switch snap.Status {
			case StatusSubmitted, StatusOnVacation, StatusExempted, StatusOverdue, StatusMissing:
			default:
				return false
			}
			if hasVacation {
				return snap.Status == StatusOnVacation
			}
			if snap.Status == StatusOverdue {
				return snap.DaysOverdue >= 0 && now.After(week.DueAt)
			}
			return snap.DaysOverdue == 0
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
		gen.IntRange(-72, 72),
		gen.IntRange(-96, 200),
	))
	properties.TestingRun(t)
}
