package queue

import "time"

// ReminderTask 提醒投递任务。投递本身由下游 worker 完成，这里只负责产生任务
type ReminderTask struct {
	TaskID         int64     `json:"task_id"`
	OrganizationID int64     `json:"organization_id"`
	UserID         int64     `json:"user_id"`
	WeekID         string    `json:"week_id"`
	Channel        string    `json:"channel"`
	Status         string    `json:"status"` // missing / overdue
	DaysOverdue    int       `json:"days_overdue"`
	DueAt          time.Time `json:"due_at"`
	CreatedAt      time.Time `json:"created_at"`
}
