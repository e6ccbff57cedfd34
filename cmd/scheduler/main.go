package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"TeamPulse/config"
	"TeamPulse/internal/cache"
	"TeamPulse/internal/compliance"
	"TeamPulse/internal/queue"
	"TeamPulse/internal/repository"
	"TeamPulse/internal/schedule"
	"TeamPulse/internal/service"
	"TeamPulse/pkg/logger"
	"TeamPulse/pkg/metrics"
	"TeamPulse/pkg/otel"
	"TeamPulse/pkg/snowflake"
	"TeamPulse/pkg/timezone"
	"TeamPulse/storage"
	"TeamPulse/storage/database"
	"TeamPulse/storage/mq"
)

var version = "dev"

func main() {
	logger.Init()
	defer logger.Sync()

	cfg := config.Cfg

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if cfg.OTelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:    cfg.ServiceName + "-scheduler",
			ServiceVersion: version,
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTelEndpoint,
			SampleRatio:    cfg.OTelSampleRatio,
		})
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry, continuing without it", zap.Error(err))
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
				}
			}()
		}
	}
	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize metrics", zap.Error(err))
	}

	mq.RegisterExchange(queue.ReminderExchange, queue.ReminderExchangeKind)
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		logger.Logger.Fatal("Invalid scheduler timezone", zap.String("timezone", cfg.SchedulerTimezone), zap.Error(err))
	}

	store := repository.NewComplianceStore(database.DB())
	agg := service.NewAggregator(store)
	timeout := time.Duration(cfg.SweepTimeoutMinute) * time.Minute

	publisher, closePublisher := newPublisher()
	defer closePublisher()

	sweeper := schedule.NewReminderSweeper(
		agg,
		store,
		newLedger(),
		publisher,
		snowflake.NextID,
		schedule.WithLocker(schedule.RedisLocker{}, timeout),
		schedule.WithPublishRate(cfg.ReminderPublishRate, cfg.ReminderPublishBurst),
		schedule.WithSweeperLogger(logger.Named("reminder-sweeper")),
	)
	buckets := service.NewBucketService(
		agg,
		repository.NewBucketRepository(database.DB()),
		store,
		cfg.BucketLookbackWeeks,
		cfg.HistoryWeeks,
	)

	reminderSpec := cfg.ReminderSweepCron
	if cfg.IsDevelopment() {
		reminderSpec = "@every 1m"
		logger.Logger.Info("Reminder sweep running in development mode with 1m interval")
	}

	runner := schedule.NewRunner(loc, logger.Named("cron"))
	if err := runner.Add("reminder_sweep", reminderSpec, timeout, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	}); err != nil {
		logger.Logger.Fatal("Failed to register reminder sweep", zap.Error(err))
	}
	if err := runner.Add("compliance_buckets", cfg.BucketSweepCron, timeout, buckets.Run); err != nil {
		logger.Logger.Fatal("Failed to register bucket refresh", zap.Error(err))
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", cfg.ServiceName+"-scheduler"),
		zap.String("environment", cfg.Environment),
		zap.String("timezone", loc.String()),
		zap.String("ledger_backend", cfg.ReminderLedgerBackend),
		zap.String("reminder_transport", cfg.ReminderTransport),
		zap.Strings("supported_zones", timezone.Supported()),
	)

	runner.Start()
	// 启动时补跑一次按天汇总
	go runner.RunNow("compliance_buckets", timeout, buckets.Run)

	<-ctx.Done()

	logger.Logger.Info("Scheduler service shutting down gracefully")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	runner.Stop(stopCtx)
}

func newLedger() compliance.Ledger {
	if config.Cfg.ReminderLedgerBackend == "redis" {
		return cache.NewReminderLedger(nil, time.Duration(config.Cfg.ReminderLedgerTTLHours)*time.Hour)
	}
	return repository.NewReminderLedger(database.DB())
}

// newPublisher 按配置选择提醒任务的投递通道
func newPublisher() (queue.Publisher, func()) {
	if config.Cfg.ReminderTransport == "kafka" {
		p := queue.NewKafkaPublisher(config.Cfg.KafkaBrokers, config.Cfg.KafkaReminderTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Logger.Warn("Failed to close kafka publisher", zap.Error(err))
			}
		}
	}
	return queue.NewMQPublisher(), func() {}
}
