package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"TeamPulse/internal/compliance"
	"TeamPulse/internal/model"
	"TeamPulse/pkg/calendar"
	"TeamPulse/pkg/logger"
	"TeamPulse/pkg/metrics"
)

// BucketStore 按天汇总的读写
type BucketStore interface {
	ReplaceRange(ctx context.Context, orgID int64, from, to time.Time, keepUserIDs []int64, rows []model.DailyComplianceBucket) error
	ListRange(ctx context.Context, orgID int64, from, to time.Time) ([]model.DailyComplianceBucket, error)
	GetWatermark(ctx context.Context, orgID int64) (time.Time, bool, error)
	SetWatermark(ctx context.Context, orgID int64, at time.Time) error
}

// OrganizationLister 批处理任务遍历组织
type OrganizationLister interface {
	ListOrganizationIDs(ctx context.Context) ([]int64, error)
}

// BucketService 把逐周分类结果物化为按天汇总，日期取该周截止日（组织时区）。
// 每次从断点往回 lookbackWeeks 周重算，覆盖迟交和补审阅带来的变化。
type BucketService struct {
	agg           *compliance.Aggregator
	buckets       BucketStore
	orgs          OrganizationLister
	lookbackWeeks int
	initialWeeks  int
	logger        *zap.Logger
}

func NewBucketService(agg *compliance.Aggregator, buckets BucketStore, orgs OrganizationLister, lookbackWeeks, initialWeeks int) *BucketService {
	if lookbackWeeks < 0 {
		lookbackWeeks = 0
	}
	if initialWeeks <= 0 {
		initialWeeks = 12
	}
	return &BucketService{
		agg:           agg,
		buckets:       buckets,
		orgs:          orgs,
		lookbackWeeks: lookbackWeeks,
		initialWeeks:  initialWeeks,
		logger:        logger.Named("compliance.buckets"),
	}
}

// TrendPoint 一天的合规汇总
type TrendPoint struct {
	Date           calendar.Date `json:"date"`
	Expected       int           `json:"expected"`
	Submitted      int           `json:"submitted"`
	OnTime         int           `json:"on_time"`
	Reviewed       int           `json:"reviewed"`
	ReviewedOnTime int           `json:"reviewed_on_time"`
	SubmissionRate int           `json:"submission_rate"`
	OnTimeRate     int           `json:"on_time_rate"`
}

// Run 处理所有组织，单个组织失败不影响其他组织
func (s *BucketService) Run(ctx context.Context) error {
	orgIDs, err := s.orgs.ListOrganizationIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	var failed int
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.RunOrganization(ctx, orgID); err != nil {
			failed++
			s.logger.Error("Failed to refresh compliance buckets",
				zap.Int64("organization_id", orgID),
				zap.Error(err),
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d organizations failed", failed, len(orgIDs))
	}
	return nil
}

// RunOrganization 增量刷新，返回写入的行数
func (s *BucketService) RunOrganization(ctx context.Context, orgID int64) (int, error) {
	calc, err := s.agg.Calculator(ctx, orgID)
	if err != nil {
		return 0, err
	}

	now := s.agg.Now()
	current := calc.WeekStart(calc.Today(now))

	first := current.AddDays(-7 * (s.initialWeeks - 1))
	last, ok, err := s.buckets.GetWatermark(ctx, orgID)
	if err != nil {
		return 0, err
	}
	if ok {
		first = calc.WeekStart(calc.Zone().DateOf(last)).AddDays(-7 * s.lookbackWeeks)
	}
	if first.After(current) {
		first = current
	}

	return s.refresh(ctx, orgID, calc, first, current, now)
}

// Rebuild 忽略断点，重算最近 weeks 周
func (s *BucketService) Rebuild(ctx context.Context, orgID int64, weeks int) (int, error) {
	if weeks <= 0 {
		weeks = s.initialWeeks
	}
	calc, err := s.agg.Calculator(ctx, orgID)
	if err != nil {
		return 0, err
	}
	now := s.agg.Now()
	current := calc.WeekStart(calc.Today(now))
	return s.refresh(ctx, orgID, calc, current.AddDays(-7*(weeks-1)), current, now)
}

func (s *BucketService) refresh(ctx context.Context, orgID int64, calc *compliance.Calculator, first, last calendar.Date, now time.Time) (int, error) {
	users, err := s.agg.Users(ctx, compliance.Scope{OrganizationID: orgID})
	if err != nil {
		return 0, err
	}

	var rows []model.DailyComplianceBucket
	skipped := make(map[int64]bool)
	var from, to time.Time

	for start := first; !start.After(last); start = start.AddDays(7) {
		week := calc.Schedule(start)
		snapshots, missed := s.agg.ClassifyUsers(ctx, calc, users, week)
		if len(missed) > 0 {
			metrics.GetMetrics().RecordUsersSkipped(ctx, "buckets", len(missed))
		}
		for _, id := range missed {
			skipped[id] = true
		}

		date := bucketDate(calc, week)
		if from.IsZero() {
			from = date
		}
		to = date
		rows = append(rows, bucketRows(orgID, date, snapshots, now)...)
	}

	if from.IsZero() {
		return 0, nil
	}

	// 被跳过的成员在整个区间内保留旧行，不写入新行
	keep := make([]int64, 0, len(skipped))
	for id := range skipped {
		keep = append(keep, id)
	}
	sort.Slice(keep, func(i, j int) bool { return keep[i] < keep[j] })
	if len(keep) > 0 {
		filtered := rows[:0]
		for _, r := range rows {
			if !skipped[r.UserID] {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	if err := s.buckets.ReplaceRange(ctx, orgID, from, to, keep, rows); err != nil {
		return 0, err
	}
	metrics.GetMetrics().RecordBucketsWritten(ctx, orgID, len(rows))

	// 有成员被跳过时不推进断点，下次从同一位置重算
	if len(keep) > 0 {
		s.logger.Warn("Compliance buckets refreshed with skipped users, watermark not advanced",
			zap.Int64("organization_id", orgID),
			zap.Int64s("skipped_user_ids", keep),
			zap.String("from", first.String()),
			zap.String("to", last.String()),
		)
		return len(rows), nil
	}
	if err := s.buckets.SetWatermark(ctx, orgID, now); err != nil {
		return len(rows), err
	}

	s.logger.Info("Compliance buckets refreshed",
		zap.Int64("organization_id", orgID),
		zap.String("from", first.String()),
		zap.String("to", last.String()),
		zap.Int("weeks", calendar.WeeksBetween(first, last)+1),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}

// Trend 读取 [from, to] 的按天汇总
func (s *BucketService) Trend(ctx context.Context, orgID int64, from, to calendar.Date) ([]TrendPoint, error) {
	rows, err := s.buckets.ListRange(ctx, orgID, from.At(0, 0).Wall(), to.At(0, 0).Wall())
	if err != nil {
		return nil, err
	}

	var points []TrendPoint
	for _, r := range rows {
		d := calendar.DateOf(r.BucketDate)
		if n := len(points); n == 0 || points[n-1].Date != d {
			points = append(points, TrendPoint{Date: d})
		}
		p := &points[len(points)-1]
		p.Expected++
		p.Submitted += r.CheckinComplianceCount
		p.OnTime += r.CheckinOnTimeCount
		p.Reviewed += r.ReviewComplianceCount
		p.ReviewedOnTime += r.ReviewOnTimeCount
	}
	for i := range points {
		points[i].SubmissionRate = compliance.RoundPercent(points[i].Submitted, points[i].Expected)
		points[i].OnTimeRate = compliance.RoundPercent(points[i].OnTime, points[i].Submitted)
	}
	return points, nil
}

// bucketDate 截止日的民用日期，按 UTC 零点存储
func bucketDate(calc *compliance.Calculator, week compliance.WeekSchedule) time.Time {
	return calc.Zone().DateOf(week.DueAt).At(0, 0).Wall()
}

// bucketRows 只为应交成员生成行，休假与豁免不计入分母
func bucketRows(orgID int64, date time.Time, snapshots []compliance.Snapshot, now time.Time) []model.DailyComplianceBucket {
	rows := make([]model.DailyComplianceBucket, 0, len(snapshots))
	for _, snap := range snapshots {
		if !snap.IsExpected() {
			continue
		}
		row := model.DailyComplianceBucket{
			OrganizationID: orgID,
			UserID:         snap.UserID,
			TeamID:         snap.TeamID,
			BucketDate:     date,
			UpdatedAt:      now.UTC(),
		}
		if snap.Status == compliance.StatusSubmitted {
			row.CheckinComplianceCount = 1
			if snap.SubmittedOnTime {
				row.CheckinOnTimeCount = 1
			}
			if snap.Reviewed {
				row.ReviewComplianceCount = 1
			}
			if snap.ReviewedOnTime != nil && *snap.ReviewedOnTime {
				row.ReviewOnTimeCount = 1
			}
		}
		rows = append(rows, row)
	}
	return rows
}
