package model

import "time"

// User 组织成员。ManagerID 为空的成员不需要提交周报
type User struct {
	BaseModel
	OrganizationID int64     `gorm:"not null;index:idx_users_org_team" json:"organization_id"`
	TeamID         *int64    `gorm:"index:idx_users_org_team" json:"team_id,omitempty"`
	ManagerID      *int64    `gorm:"index" json:"manager_id,omitempty"`
	DisplayName    string    `gorm:"type:varchar(128);not null;default:''" json:"display_name"`
	Active         bool      `gorm:"not null;default:true;index" json:"active"`
	JoinedAt       time.Time `gorm:"type:timestamptz;not null;default:now()" json:"joined_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
