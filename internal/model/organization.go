package model

// Organization 组织及其周报排期设置，仅由管理员修改
type Organization struct {
	BaseModel
	Name             string `gorm:"type:varchar(128);not null" json:"name"`
	WeekStartDay     int    `gorm:"type:smallint;not null;default:1" json:"week_start_day"` // 0 = 周日
	DueWeekday       int    `gorm:"type:smallint;not null;default:5" json:"due_weekday"`
	DueTime          string `gorm:"type:varchar(5);not null;default:'17:00'" json:"due_time"` // HH:MM
	ReminderWeekday  *int   `gorm:"type:smallint" json:"reminder_weekday,omitempty"`          // 为空时沿用 DueWeekday
	ReminderTime     string `gorm:"type:varchar(5);not null;default:'09:00'" json:"reminder_time"`
	ReviewGraceDays  *int   `gorm:"type:smallint" json:"review_grace_days,omitempty"`
	Timezone         string `gorm:"type:varchar(64);not null;default:'America/Chicago'" json:"timezone"`
	ReminderChannels string `gorm:"type:varchar(64);not null;default:'slack'" json:"reminder_channels"` // 逗号分隔
}

// TableName 指定表名
func (Organization) TableName() string {
	return "organizations"
}
