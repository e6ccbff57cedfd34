package model

import "time"

// ReminderLedgerEntry 提醒账本，(user, week, channel) 主键保证每周每渠道至多一次提醒
type ReminderLedgerEntry struct {
	UserID         int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	WeekID         string    `gorm:"primaryKey;type:char(10)" json:"week_id"`
	Channel        string    `gorm:"primaryKey;type:varchar(16)" json:"channel"`
	OrganizationID int64     `gorm:"not null;index" json:"organization_id"`
	TaskID         int64     `gorm:"not null;default:0" json:"task_id"`
	SentAt         time.Time `gorm:"type:timestamptz;not null" json:"sent_at"`
}

// TableName 指定表名
func (ReminderLedgerEntry) TableName() string {
	return "reminder_ledger_entries"
}

// DailyComplianceBucket 按天物化的合规汇总，随时可以从原始记录重建
type DailyComplianceBucket struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID         int64     `gorm:"not null;uniqueIndex:idx_buckets_org_user_date" json:"organization_id"`
	UserID                 int64     `gorm:"not null;uniqueIndex:idx_buckets_org_user_date" json:"user_id"`
	TeamID                 *int64    `gorm:"index" json:"team_id,omitempty"`
	BucketDate             time.Time `gorm:"type:date;not null;uniqueIndex:idx_buckets_org_user_date" json:"bucket_date"`
	CheckinComplianceCount int       `gorm:"not null;default:0" json:"checkin_compliance_count"`
	CheckinOnTimeCount     int       `gorm:"not null;default:0" json:"checkin_on_time_count"`
	ReviewComplianceCount  int       `gorm:"not null;default:0" json:"review_compliance_count"`
	ReviewOnTimeCount      int       `gorm:"not null;default:0" json:"review_on_time_count"`
	UpdatedAt              time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

// TableName 指定表名
func (DailyComplianceBucket) TableName() string {
	return "compliance_daily_buckets"
}

// AggregationWatermark 增量汇总的断点，丢失只会导致从头重算
type AggregationWatermark struct {
	OrganizationID  int64     `gorm:"primaryKey;autoIncrement:false" json:"organization_id"`
	LastProcessedAt time.Time `gorm:"type:timestamptz;not null" json:"last_processed_at"`
}

// TableName 指定表名
func (AggregationWatermark) TableName() string {
	return "compliance_watermarks"
}
