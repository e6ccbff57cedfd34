package model

// Vacation 休假记录，(user, organization, week) 唯一
type Vacation struct {
	BaseModel
	UserID         int64  `gorm:"not null;uniqueIndex:idx_vacations_user_org_week" json:"user_id"`
	OrganizationID int64  `gorm:"not null;uniqueIndex:idx_vacations_user_org_week;index:idx_vacations_org_week" json:"organization_id"`
	WeekID         string `gorm:"type:char(10);not null;uniqueIndex:idx_vacations_user_org_week;index:idx_vacations_org_week" json:"week_id"`
	Note           string `gorm:"type:varchar(255);not null;default:''" json:"note"`
}

// TableName 指定表名
func (Vacation) TableName() string {
	return "vacations"
}
