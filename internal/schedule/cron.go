package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"TeamPulse/pkg/metrics"
)

// Job 一次定时任务，超时由 Runner 控制
type Job func(ctx context.Context) error

// Runner cron 调度器，表达式按 loc 解释；同一任务上一次未结束时跳过本次
type Runner struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(loc *time.Location, logger *zap.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add 注册任务，spec 为标准五段式或 @every 之类的描述符
func (r *Runner) Add(name, spec string, timeout time.Duration, job Job) error {
	_, err := r.cron.AddFunc(spec, func() {
		r.run(name, timeout, job)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}
	r.logger.Info("Cron job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow 立即执行一次，启动时补跑用
func (r *Runner) RunNow(name string, timeout time.Duration, job Job) {
	r.run(name, timeout, job)
}

func (r *Runner) run(name string, timeout time.Duration, job Job) {
	ctx := r.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	metrics.GetMetrics().RecordSweep(ctx, name, time.Since(start).Seconds(), err)
	if err != nil {
		r.logger.Error("Cron job failed", zap.String("job", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	r.logger.Debug("Cron job completed", zap.String("job", name), zap.Duration("duration", time.Since(start)))
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop 取消正在运行的任务并等待退出，ctx 到期后不再等待
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	r.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("Timed out waiting for cron jobs to finish")
	}
}

// cronLogger 把 cron 内部日志转到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
