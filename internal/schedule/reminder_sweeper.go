package schedule

// 提醒扫描：每个组织到了本周提醒时刻之后，给 missing / overdue 的成员按渠道各生成一条提醒任务。
// 账本保证每人每周每渠道至多一条，扫描频率和实例数量不影响结果。

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"TeamPulse/internal/cache"
	"TeamPulse/internal/compliance"
	"TeamPulse/internal/queue"
	"TeamPulse/internal/service"
	apperrors "TeamPulse/pkg/errors"
	"TeamPulse/pkg/metrics"
)

const (
	reminderLockKey = "reminder-sweep"
	jobReminder     = "reminder_sweep"
)

// Locker 跨实例互斥
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedisLocker 基于 redis SETNX 的锁
type RedisLocker struct{}

func (RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return cache.TryLock(ctx, key, ttl)
}

func (RedisLocker) Unlock(ctx context.Context, key string) error {
	return cache.Unlock(ctx, key)
}

// SweepResult 一轮扫描的统计
type SweepResult struct {
	Organizations int
	Emitted       int
	Suppressed    int
	Failed        int
	SkippedUsers  int
}

// ReminderSweeper 提醒扫描器
type ReminderSweeper struct {
	agg       *compliance.Aggregator
	orgs      service.OrganizationLister
	ledger    compliance.Ledger
	publisher queue.Publisher
	locker    Locker
	limiter   *rate.Limiter
	nextID    func() (int64, error)
	logger    *zap.Logger
	lockTTL   time.Duration

	mu      sync.Mutex
	running bool
}

type SweeperOption func(*ReminderSweeper)

// WithLocker 多实例部署时传入分布式锁，为空时只做进程内互斥
func WithLocker(l Locker, ttl time.Duration) SweeperOption {
	return func(s *ReminderSweeper) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithPublishRate 限制每秒发布的提醒数，perSecond <= 0 时不限速
func WithPublishRate(perSecond float64, burst int) SweeperOption {
	return func(s *ReminderSweeper) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithSweeperLogger(l *zap.Logger) SweeperOption {
	return func(s *ReminderSweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewReminderSweeper(
	agg *compliance.Aggregator,
	orgs service.OrganizationLister,
	ledger compliance.Ledger,
	publisher queue.Publisher,
	nextID func() (int64, error),
	opts ...SweeperOption,
) *ReminderSweeper {
	s := &ReminderSweeper{
		agg:       agg,
		orgs:      orgs,
		ledger:    ledger,
		publisher: publisher,
		nextID:    nextID,
		logger:    zap.NewNop(),
		lockTTL:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep 执行一轮扫描。上一轮还没结束时直接跳过
func (s *ReminderSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Reminder sweep already running, skipping")
		return SweepResult{}, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, reminderLockKey, s.lockTTL)
		if err != nil {
			return SweepResult{}, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !ok {
			s.logger.Info("Reminder sweep is held by another instance, skipping")
			return SweepResult{}, nil
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), reminderLockKey); err != nil {
				s.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	result, err := s.sweep(ctx)

	s.logger.Info("Reminder sweep finished",
		zap.Int("organizations", result.Organizations),
		zap.Int("emitted", result.Emitted),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped_users", result.SkippedUsers),
		zap.Duration("duration", time.Since(start)),
	)
	return result, err
}

func (s *ReminderSweeper) sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	orgIDs, err := s.orgs.ListOrganizationIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list organizations: %w", err)
	}

	for _, orgID := range orgIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.sweepOrganization(ctx, orgID, &result); err != nil {
			s.logger.Error("Reminder sweep failed for organization",
				zap.Int64("organization_id", orgID),
				zap.Error(err),
			)
			continue
		}
		result.Organizations++
	}
	return result, nil
}

func (s *ReminderSweeper) sweepOrganization(ctx context.Context, orgID int64, result *SweepResult) error {
	calc, cw, err := s.agg.Classify(ctx, compliance.Scope{OrganizationID: orgID}, "")
	if err != nil {
		return err
	}

	now := s.agg.Now()
	if now.Before(cw.Week.ReminderAt) {
		return nil
	}

	if len(cw.Skipped) > 0 {
		result.SkippedUsers += len(cw.Skipped)
		metrics.GetMetrics().RecordUsersSkipped(ctx, jobReminder, len(cw.Skipped))
	}

	for _, snap := range cw.Snapshots {
		if snap.Status != compliance.StatusMissing && snap.Status != compliance.StatusOverdue {
			continue
		}
		for _, channel := range calc.Config().Channels {
			key := compliance.LedgerKey{
				UserID:         snap.UserID,
				OrganizationID: orgID,
				WeekID:         cw.Week.WeekID,
				Channel:        channel,
			}
			switch s.emit(ctx, key, snap, now) {
			case emitSent:
				result.Emitted++
			case emitSuppressed:
				result.Suppressed++
			case emitFailed:
				result.Failed++
			}
		}
	}
	return nil
}

type emitOutcome int

const (
	emitSent emitOutcome = iota
	emitSuppressed
	emitFailed
)

// emit 先在账本占位再发布；发布失败时释放占位，下一轮可以重试
func (s *ReminderSweeper) emit(ctx context.Context, key compliance.LedgerKey, snap compliance.Snapshot, now time.Time) emitOutcome {
	log := s.logger.With(
		zap.Int64("user_id", key.UserID),
		zap.String("week_id", key.WeekID.String()),
		zap.String("channel", key.Channel),
	)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			log.Warn("Reminder publish throttled until context end", zap.Error(err))
			return emitFailed
		}
	}

	taskID, err := s.nextID()
	if err != nil {
		log.Error("Failed to generate reminder task id", zap.Error(err))
		return emitFailed
	}

	marked, err := s.ledger.TryMark(ctx, key, now, taskID)
	if err != nil {
		log.Warn("Failed to mark reminder ledger", zap.Error(err))
		return emitFailed
	}
	if !marked {
		log.Debug("Reminder already recorded", zap.String("code", apperrors.DuplicateReminderAttempt.Code))
		metrics.GetMetrics().RecordReminderSuppressed(ctx, key.Channel)
		return emitSuppressed
	}

	task := queue.ReminderTask{
		TaskID:         taskID,
		OrganizationID: key.OrganizationID,
		UserID:         key.UserID,
		WeekID:         key.WeekID.String(),
		Channel:        key.Channel,
		Status:         string(snap.Status),
		DaysOverdue:    snap.DaysOverdue,
		DueAt:          snap.DueAt,
		CreatedAt:      now,
	}
	if err := s.publisher.PublishReminder(ctx, task); err != nil {
		metrics.GetMetrics().RecordReminderPublishError(ctx, key.Channel)
		if uerr := s.ledger.Unmark(context.WithoutCancel(ctx), key); uerr != nil {
			log.Error("Failed to release reminder ledger entry after publish error",
				zap.NamedError("publish_error", err),
				zap.Error(uerr),
			)
		} else {
			log.Warn("Failed to publish reminder, ledger entry released", zap.Error(err))
		}
		return emitFailed
	}

	metrics.GetMetrics().RecordReminderEmitted(ctx, key.Channel)
	return emitSent
}
