package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"TeamPulse/pkg/logger"
	"TeamPulse/storage/database"
	"TeamPulse/storage/mq"
	"TeamPulse/storage/redis"
)

const closeTimeout = 15 * time.Second

// Close 按 MQ -> Redis -> Database 顺序关闭，先停止发布再断开账本和数据库
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	closers := []struct {
		name  string
		close func(context.Context) error
	}{
		{"rabbitmq", mq.Close},
		{"redis", redis.Close},
		{"postgres", database.Close},
	}

	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			logger.Logger.Error("Failed to close storage connection", zap.String("component", c.name), zap.Error(err))
			continue
		}
		logger.Logger.Info("Storage connection closed", zap.String("component", c.name))
	}

	logger.Logger.Info("All storage connections closed")
}
