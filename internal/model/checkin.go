package model

import "time"

// CheckIn 周报打卡记录，(user, week) 唯一；重新提交只更新 SubmittedAt
type CheckIn struct {
	BaseModel
	UserID         int64      `gorm:"not null;uniqueIndex:idx_check_ins_user_week" json:"user_id"`
	OrganizationID int64      `gorm:"not null;index:idx_check_ins_org_week" json:"organization_id"`
	WeekID         string     `gorm:"type:char(10);not null;uniqueIndex:idx_check_ins_user_week;index:idx_check_ins_org_week" json:"week_id"` // 周起始日 YYYY-MM-DD
	SubmittedAt    *time.Time `gorm:"type:timestamptz" json:"submitted_at,omitempty"`
	IsComplete     bool       `gorm:"not null;default:false" json:"is_complete"`
	Mood           *int       `gorm:"type:smallint" json:"mood,omitempty"` // 1-5
}

// TableName 指定表名
func (CheckIn) TableName() string {
	return "check_ins"
}

// CheckInReview 主管对打卡的审阅，与 CheckIn 一对一
type CheckInReview struct {
	BaseModel
	CheckInID  int64      `gorm:"uniqueIndex;not null" json:"check_in_id"`
	ReviewedBy int64      `gorm:"not null" json:"reviewed_by"`
	ReviewedAt *time.Time `gorm:"type:timestamptz" json:"reviewed_at,omitempty"`
}

// TableName 指定表名
func (CheckInReview) TableName() string {
	return "check_in_reviews"
}
