package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ComplianceMetrics 提醒扫描与汇总任务的指标集合
type ComplianceMetrics struct {
	RemindersEmitted     metric.Int64Counter
	RemindersSuppressed  metric.Int64Counter
	ReminderPublishError metric.Int64Counter
	UsersSkipped         metric.Int64Counter
	SweepDuration        metric.Float64Histogram
	BucketsWritten       metric.Int64Counter
}

var (
	// 全局指标实例，未初始化时所有 Record 方法为空操作
	metrics  *ComplianceMetrics
	initOnce sync.Once
	initErr  error
)

// InitMetrics 初始化指标，在 otel.SetMeterProvider 之后调用
func InitMetrics() error {
	initOnce.Do(func() {
		meter := otel.Meter("teampulse.compliance")
		m := &ComplianceMetrics{}

		if m.RemindersEmitted, initErr = meter.Int64Counter(
			"compliance_reminders_emitted_total",
			metric.WithDescription("Reminder tasks published to the queue"),
			metric.WithUnit("{reminder}"),
		); initErr != nil {
			return
		}

		if m.RemindersSuppressed, initErr = meter.Int64Counter(
			"compliance_reminders_suppressed_total",
			metric.WithDescription("Reminders skipped because the ledger already had an entry"),
			metric.WithUnit("{reminder}"),
		); initErr != nil {
			return
		}

		if m.ReminderPublishError, initErr = meter.Int64Counter(
			"compliance_reminder_publish_errors_total",
			metric.WithDescription("Reminder tasks that failed to publish and were released"),
			metric.WithUnit("{error}"),
		); initErr != nil {
			return
		}

		if m.UsersSkipped, initErr = meter.Int64Counter(
			"compliance_users_skipped_total",
			metric.WithDescription("Users skipped during aggregation because of fetch or data errors"),
			metric.WithUnit("{user}"),
		); initErr != nil {
			return
		}

		if m.SweepDuration, initErr = meter.Float64Histogram(
			"compliance_sweep_duration_seconds",
			metric.WithDescription("Duration of scheduled sweeps"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300),
		); initErr != nil {
			return
		}

		if m.BucketsWritten, initErr = meter.Int64Counter(
			"compliance_buckets_written_total",
			metric.WithDescription("Daily compliance bucket rows written"),
			metric.WithUnit("{row}"),
		); initErr != nil {
			return
		}

		metrics = m
	})
	return initErr
}

// GetMetrics 获取全局指标实例，可能为 nil
func GetMetrics() *ComplianceMetrics {
	return metrics
}

// RecordReminderEmitted 记录一次成功投递
func (m *ComplianceMetrics) RecordReminderEmitted(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.RemindersEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// RecordReminderSuppressed 账本已有记录，本次不发
func (m *ComplianceMetrics) RecordReminderSuppressed(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.RemindersSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (m *ComplianceMetrics) RecordReminderPublishError(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.ReminderPublishError.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// RecordUsersSkipped 记录部分汇总中被跳过的人数
func (m *ComplianceMetrics) RecordUsersSkipped(ctx context.Context, job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.UsersSkipped.Add(ctx, int64(count), metric.WithAttributes(attribute.String("job", job)))
}

// RecordSweep 记录一次扫描耗时及结果
func (m *ComplianceMetrics) RecordSweep(ctx context.Context, job string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SweepDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("status", status),
	))
}

func (m *ComplianceMetrics) RecordBucketsWritten(ctx context.Context, orgID int64, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.BucketsWritten.Add(ctx, int64(rows), metric.WithAttributes(attribute.Int64("organization_id", orgID)))
}
