package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TeamPulse/internal/compliance"
	"TeamPulse/internal/model"
)

// ReminderLedger 基于 (user_id, week_id, channel) 复合主键的提醒账本。
// 占位依赖 INSERT ... ON CONFLICT DO NOTHING，并发调用只有一个能写入成功。
type ReminderLedger struct {
	db *gorm.DB
}

func NewReminderLedger(db *gorm.DB) *ReminderLedger {
	return &ReminderLedger{db: db}
}

func (l *ReminderLedger) ShouldSend(ctx context.Context, key compliance.LedgerKey) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&model.ReminderLedgerEntry{}).
		Where("user_id = ? AND week_id = ? AND channel = ?", key.UserID, key.WeekID.String(), key.Channel).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check reminder ledger: %w", err)
	}
	return count == 0, nil
}

func (l *ReminderLedger) MarkSent(ctx context.Context, key compliance.LedgerKey, at time.Time) error {
	_, err := l.TryMark(ctx, key, at, 0)
	return err
}

func (l *ReminderLedger) TryMark(ctx context.Context, key compliance.LedgerKey, at time.Time, taskID int64) (bool, error) {
	entry := model.ReminderLedgerEntry{
		UserID:         key.UserID,
		WeekID:         key.WeekID.String(),
		Channel:        key.Channel,
		OrganizationID: key.OrganizationID,
		TaskID:         taskID,
		SentAt:         at.UTC(),
	}

	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (l *ReminderLedger) Unmark(ctx context.Context, key compliance.LedgerKey) error {
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND week_id = ? AND channel = ?", key.UserID, key.WeekID.String(), key.Channel).
		Delete(&model.ReminderLedgerEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to unmark reminder: %w", err)
	}
	return nil
}
