package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"TeamPulse/config"
	"TeamPulse/internal/compliance"
	"TeamPulse/pkg/logger"
	"TeamPulse/pkg/metrics"
)

// ComplianceService 面向调用方的合规查询入口
type ComplianceService struct {
	agg          *compliance.Aggregator
	historyWeeks int
	logger       *zap.Logger
}

// NewAggregator 按全局配置构造汇总器
func NewAggregator(store compliance.Store, opts ...compliance.AggregatorOption) *compliance.Aggregator {
	cfg := config.Cfg
	base := []compliance.AggregatorOption{
		compliance.WithLogger(logger.Named("compliance")),
		compliance.WithWorkers(cfg.ComplianceWorkers),
		compliance.WithFetchTimeout(time.Duration(cfg.FetchTimeoutSeconds) * time.Second),
		compliance.WithStreakWeeks(cfg.StreakMaxWeeks),
	}
	return compliance.NewAggregator(store, append(base, opts...)...)
}

func NewComplianceService(agg *compliance.Aggregator, historyWeeks int) *ComplianceService {
	if historyWeeks <= 0 {
		historyWeeks = 12
	}
	return &ComplianceService{
		agg:          agg,
		historyWeeks: historyWeeks,
		logger:       logger.Named("compliance.service"),
	}
}

// WeekSummary weekID 为空时取当前周
func (s *ComplianceService) WeekSummary(ctx context.Context, scope compliance.Scope, weekID compliance.WeekID) (compliance.Summary, error) {
	summary, err := s.agg.Aggregate(ctx, scope, weekID)
	if err != nil {
		return compliance.Summary{}, err
	}
	s.reportPartial(ctx, "week_summary", scope.OrganizationID, summary)
	return summary, nil
}

// TeamSummaries 组织内各团队的汇总
func (s *ComplianceService) TeamSummaries(ctx context.Context, orgID int64, weekID compliance.WeekID) ([]compliance.TeamSummary, error) {
	teams, err := s.agg.TeamSummaries(ctx, orgID, weekID)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		s.reportPartial(ctx, "team_summaries", orgID, t.Summary)
	}
	return teams, nil
}

// History weeks <= 0 时使用配置的默认周数
func (s *ComplianceService) History(ctx context.Context, scope compliance.Scope, weeks int) ([]compliance.Summary, error) {
	if weeks <= 0 {
		weeks = s.historyWeeks
	}
	series, err := s.agg.HistoricalSeries(ctx, scope, weeks)
	if err != nil {
		return nil, err
	}
	for _, summary := range series {
		s.reportPartial(ctx, "history", scope.OrganizationID, summary)
	}
	return series, nil
}

func (s *ComplianceService) Streak(ctx context.Context, orgID, userID int64) (int, error) {
	return s.agg.Streak(ctx, orgID, userID)
}

// UserStatus 单个成员某周的分类结果
func (s *ComplianceService) UserStatus(ctx context.Context, orgID, userID int64, weekID compliance.WeekID) (compliance.Snapshot, error) {
	_, cw, err := s.agg.Classify(ctx, compliance.Scope{OrganizationID: orgID, UserIDs: []int64{userID}}, weekID)
	if err != nil {
		return compliance.Snapshot{}, err
	}
	for _, snap := range cw.Snapshots {
		if snap.UserID == userID {
			return snap, nil
		}
	}
	if len(cw.Skipped) > 0 {
		return compliance.Snapshot{}, fmt.Errorf("user %d could not be classified for week %s", userID, cw.Week.WeekID)
	}
	return compliance.Snapshot{}, fmt.Errorf("user %d not found in organization %d", userID, orgID)
}

// Schedule 某组织当前周的各关键时刻
func (s *ComplianceService) Schedule(ctx context.Context, orgID int64) (compliance.WeekSchedule, error) {
	calc, err := s.agg.Calculator(ctx, orgID)
	if err != nil {
		return compliance.WeekSchedule{}, err
	}
	return calc.Schedule(calc.Today(s.agg.Now())), nil
}

func (s *ComplianceService) reportPartial(ctx context.Context, job string, orgID int64, summary compliance.Summary) {
	if !summary.Partial() {
		return
	}
	metrics.GetMetrics().RecordUsersSkipped(ctx, job, len(summary.SkippedUserIDs))
	s.logger.Warn("Partial compliance summary",
		zap.String("job", job),
		zap.Int64("organization_id", orgID),
		zap.String("week_id", summary.WeekID.String()),
		zap.Int64s("skipped_user_ids", summary.SkippedUserIDs),
	)
}
