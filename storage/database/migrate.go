package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"TeamPulse/internal/model"
	"TeamPulse/pkg/logger"
)

// Migrate 创建或更新所有表
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.Organization{},
		&model.User{},
		&model.CheckIn{},
		&model.CheckInReview{},
		&model.Vacation{},
		&model.ReminderLedgerEntry{},
		&model.DailyComplianceBucket{},
		&model.AggregationWatermark{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
