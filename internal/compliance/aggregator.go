package compliance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TeamPulse/internal/model"
	apperrors "TeamPulse/pkg/errors"
)

const (
	defaultWorkers      = 8
	defaultFetchTimeout = 5 * time.Second
	defaultStreakWeeks  = 104
)

// Scope 汇总范围：整个组织或某个团队，可选指定成员子集
type Scope struct {
	OrganizationID int64
	TeamID         *int64
	UserIDs        []int64
}

// Aggregator 汇总器：先并发逐人分类，全部完成后再统一累加
type Aggregator struct {
	store        Store
	logger       *zap.Logger
	workers      int
	fetchTimeout time.Duration
	streakWeeks  int
	exempt       ExemptionRule
	now          func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithLogger(logger *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithWorkers(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithFetchTimeout 单次拉取单个成员数据的超时，超时的成员被跳过
func WithFetchTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

func WithStreakWeeks(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.streakWeeks = n
		}
	}
}

func WithExemptionRule(rule ExemptionRule) AggregatorOption {
	return func(a *Aggregator) {
		if rule != nil {
			a.exempt = rule
		}
	}
}

func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(store Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:        store,
		logger:       zap.NewNop(),
		workers:      defaultWorkers,
		fetchTimeout: defaultFetchTimeout,
		streakWeeks:  defaultStreakWeeks,
		exempt:       DefaultExemption,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Now 汇总使用的当前时刻
func (a *Aggregator) Now() time.Time {
	return a.now()
}

// Calculator 读取组织排期并构造计算器
func (a *Aggregator) Calculator(ctx context.Context, orgID int64) (*Calculator, error) {
	org, err := a.store.GetOrganizationSchedule(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization %d schedule: %w", orgID, err)
	}
	cfg, err := ConfigFromOrganization(org)
	if err != nil {
		return nil, err
	}
	return NewCalculator(cfg, a.logger)
}

// ClassifiedWeek 某周逐人分类的结果
type ClassifiedWeek struct {
	Week      WeekSchedule
	Users     []*model.User
	Snapshots []Snapshot
	Skipped   []int64
}

// Classify 对 scope 内所有成员在 weekID 这一周分类。weekID 为空时取当前周
func (a *Aggregator) Classify(ctx context.Context, scope Scope, weekID WeekID) (*Calculator, ClassifiedWeek, error) {
	calc, err := a.Calculator(ctx, scope.OrganizationID)
	if err != nil {
		return nil, ClassifiedWeek{}, err
	}
	if weekID == "" {
		weekID = calc.CurrentWeek(a.now())
	}
	week, err := calc.ScheduleForWeek(weekID)
	if err != nil {
		return nil, ClassifiedWeek{}, err
	}
	users, err := a.listUsers(ctx, scope)
	if err != nil {
		return nil, ClassifiedWeek{}, err
	}

	snapshots, skipped := a.ClassifyUsers(ctx, calc, users, week)
	return calc, ClassifiedWeek{Week: week, Users: users, Snapshots: snapshots, Skipped: skipped}, nil
}

// Aggregate 汇总 scope 在 weekID 这一周的合规情况。
// 个别成员拉取失败、超时或数据不合法时跳过并记录在 SkippedUserIDs，不中断整体汇总。
func (a *Aggregator) Aggregate(ctx context.Context, scope Scope, weekID WeekID) (Summary, error) {
	_, cw, err := a.Classify(ctx, scope, weekID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(cw.Week.WeekID, cw.Snapshots, cw.Skipped), nil
}

// TeamSummary 单个团队的汇总，TeamID 为空表示未分配团队的成员
type TeamSummary struct {
	TeamID  *int64  `json:"team_id,omitempty"`
	Summary Summary `json:"summary"`
}

// TeamSummaries 整个组织按团队拆分的汇总，只分类一次，按团队 ID 升序，未分配团队的排在最后
func (a *Aggregator) TeamSummaries(ctx context.Context, orgID int64, weekID WeekID) ([]TeamSummary, error) {
	_, cw, err := a.Classify(ctx, Scope{OrganizationID: orgID}, weekID)
	if err != nil {
		return nil, err
	}

	const noTeam = int64(-1)
	teamOf := make(map[int64]int64, len(cw.Users))
	for _, u := range cw.Users {
		if u == nil {
			continue
		}
		teamOf[u.ID] = noTeam
		if u.TeamID != nil {
			teamOf[u.ID] = *u.TeamID
		}
	}

	snapshots := make(map[int64][]Snapshot)
	skipped := make(map[int64][]int64)
	teams := make(map[int64]struct{})
	for _, snap := range cw.Snapshots {
		t := teamOf[snap.UserID]
		snapshots[t] = append(snapshots[t], snap)
		teams[t] = struct{}{}
	}
	for _, id := range cw.Skipped {
		t := teamOf[id]
		skipped[t] = append(skipped[t], id)
		teams[t] = struct{}{}
	}

	ids := make([]int64, 0, len(teams))
	for t := range teams {
		ids = append(ids, t)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i] == noTeam || ids[j] == noTeam {
			return ids[j] == noTeam && ids[i] != noTeam
		}
		return ids[i] < ids[j]
	})

	out := make([]TeamSummary, 0, len(ids))
	for _, t := range ids {
		ts := TeamSummary{Summary: Summarize(cw.Week.WeekID, snapshots[t], skipped[t])}
		if t != noTeam {
			teamID := t
			ts.TeamID = &teamID
		}
		out = append(out, ts)
	}
	return out, nil
}

// HistoricalSeries 截止到当前周的连续 weekCount 周汇总，按时间正序。
// 只读原始记录，重复计算结果一致。
func (a *Aggregator) HistoricalSeries(ctx context.Context, scope Scope, weekCount int) ([]Summary, error) {
	if weekCount <= 0 {
		return nil, nil
	}
	calc, err := a.Calculator(ctx, scope.OrganizationID)
	if err != nil {
		return nil, err
	}
	users, err := a.listUsers(ctx, scope)
	if err != nil {
		return nil, err
	}

	current := calc.WeekStart(calc.Today(a.now()))
	series := make([]Summary, 0, weekCount)
	for i := weekCount - 1; i >= 0; i-- {
		week := calc.Schedule(current.AddDays(-7 * i))
		snapshots, skipped := a.ClassifyUsers(ctx, calc, users, week)
		series = append(series, Summarize(week.WeekID, snapshots, skipped))
	}
	return series, nil
}

// ClassifyUsers 并发分类，返回成功的快照和被跳过的成员 ID。
// 每个 goroutine 只写自己下标的结果，累加在 Wait 之后进行；单个成员失败不会取消其他成员。
func (a *Aggregator) ClassifyUsers(ctx context.Context, calc *Calculator, users []*model.User, week WeekSchedule) ([]Snapshot, []int64) {
	type result struct {
		snap    Snapshot
		userID  int64
		skipped bool
		valid   bool
	}

	classifier := NewClassifier(calc, a.exempt)
	now := a.now()
	results := make([]result, len(users))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, user := range users {
		if user == nil {
			a.logger.Warn("Skipping nil user in aggregation scope", zap.String("week_id", week.WeekID.String()))
			continue
		}

		i, user := i, user
		g.Go(func() error {
			rec, err := a.fetchWeek(ctx, user, week.WeekID)
			if err != nil {
				a.logger.Warn("Skipping user in aggregation",
					zap.Int64("user_id", user.ID),
					zap.String("week_id", week.WeekID.String()),
					zap.String("code", apperrors.PartialAggregationFailure.Code),
					zap.Error(err),
				)
				results[i] = result{userID: user.ID, skipped: true}
				return nil
			}
			results[i] = result{snap: classifier.Classify(rec, week, now), valid: true}
			return nil
		})
	}
	_ = g.Wait()

	snapshots := make([]Snapshot, 0, len(users))
	var skipped []int64
	for _, r := range results {
		switch {
		case r.skipped:
			skipped = append(skipped, r.userID)
		case r.valid:
			snapshots = append(snapshots, r.snap)
		}
	}
	return snapshots, skipped
}

// fetchWeek 拉取单个成员某周的记录，受 fetchTimeout 约束
func (a *Aggregator) fetchWeek(ctx context.Context, user *model.User, weekID WeekID) (WeekRecords, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	history, err := a.fetchHistory(fetchCtx, user, RecordFilter{UserID: &user.ID, WeekID: weekID})
	if err != nil {
		return WeekRecords{}, err
	}
	return history.Week(weekID), nil
}

func (a *Aggregator) fetchHistory(ctx context.Context, user *model.User, filter RecordFilter) (UserHistory, error) {
	checkins, err := a.store.ListCheckins(ctx, user.OrganizationID, filter)
	if err != nil {
		return UserHistory{}, fmt.Errorf("list check-ins: %w", err)
	}
	vacations, err := a.store.ListVacations(ctx, user.OrganizationID, filter)
	if err != nil {
		return UserHistory{}, fmt.Errorf("list vacations: %w", err)
	}

	var reviews []*model.CheckInReview
	if ids := checkinIDs(checkins); len(ids) > 0 {
		reviews, err = a.store.ListReviews(ctx, ids)
		if err != nil {
			return UserHistory{}, fmt.Errorf("list reviews: %w", err)
		}
	}

	return BuildHistory(user, checkins, reviews, vacations)
}

// Users scope 内参与汇总的成员
func (a *Aggregator) Users(ctx context.Context, scope Scope) ([]*model.User, error) {
	return a.listUsers(ctx, scope)
}

// listUsers 包含已停用成员，由豁免规则把他们归为 exempted
func (a *Aggregator) listUsers(ctx context.Context, scope Scope) ([]*model.User, error) {
	users, err := a.store.ListUsers(ctx, scope.OrganizationID, UserFilter{
		TeamID:          scope.TeamID,
		UserIDs:         scope.UserIDs,
		IncludeInactive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users for organization %d: %w", scope.OrganizationID, err)
	}
	return users, nil
}
