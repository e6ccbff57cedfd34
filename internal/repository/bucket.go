package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"TeamPulse/internal/model"
)

const bucketBatchSize = 500

// BucketRepository 按天物化的合规汇总与增量断点
type BucketRepository struct {
	db *gorm.DB
}

func NewBucketRepository(db *gorm.DB) *BucketRepository {
	return &BucketRepository{db: db}
}

// ReplaceRange 在一个事务内删除 [from, to] 的旧汇总并写入新结果，重复执行结果一致。
// keepUserIDs 中成员的旧行原样保留。
func (r *BucketRepository) ReplaceRange(ctx context.Context, orgID int64, from, to time.Time, keepUserIDs []int64, rows []model.DailyComplianceBucket) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("organization_id = ? AND bucket_date >= ? AND bucket_date <= ?", orgID, from, to)
		if len(keepUserIDs) > 0 {
			q = q.Where("user_id NOT IN ?", keepUserIDs)
		}
		if err := q.Delete(&model.DailyComplianceBucket{}).Error; err != nil {
			return fmt.Errorf("failed to clear buckets: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, bucketBatchSize).Error; err != nil {
			return fmt.Errorf("failed to write buckets: %w", err)
		}
		return nil
	})
}

// ListRange 读取 [from, to] 的汇总
func (r *BucketRepository) ListRange(ctx context.Context, orgID int64, from, to time.Time) ([]model.DailyComplianceBucket, error) {
	var rows []model.DailyComplianceBucket
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND bucket_date >= ? AND bucket_date <= ?", orgID, from, to).
		Order("bucket_date").Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	return rows, nil
}

// GetWatermark 返回上次处理到的时刻，没有记录时 ok 为 false
func (r *BucketRepository) GetWatermark(ctx context.Context, orgID int64) (time.Time, bool, error) {
	var wm model.AggregationWatermark
	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Take(&wm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get watermark: %w", err)
	}
	return wm.LastProcessedAt, true, nil
}

func (r *BucketRepository) SetWatermark(ctx context.Context, orgID int64, at time.Time) error {
	wm := model.AggregationWatermark{OrganizationID: orgID, LastProcessedAt: at.UTC()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_processed_at"}),
		}).
		Create(&wm).Error
	if err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}
