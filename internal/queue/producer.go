package queue

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"TeamPulse/pkg/logger"
	"TeamPulse/storage/mq"
)

const (
	// ReminderExchange topic 交换机，按渠道路由到不同的投递队列
	ReminderExchange     = "scheduler.reminders"
	ReminderExchangeKind = "topic"
	reminderRoutingKey   = "compliance.reminder."
)

// Publisher 提醒任务发布方
type Publisher interface {
	PublishReminder(ctx context.Context, task ReminderTask) error
}

// RoutingKey 每个渠道一个路由键
func RoutingKey(channel string) string {
	return reminderRoutingKey + channel
}

// MQPublisher 发布到 RabbitMQ
type MQPublisher struct{}

func NewMQPublisher() *MQPublisher {
	return &MQPublisher{}
}

// PublishReminder 发布提醒任务，TaskID 作为 MessageId 供消费端去重
func (MQPublisher) PublishReminder(ctx context.Context, task ReminderTask) error {
	if task.TaskID == 0 {
		return fmt.Errorf("reminder task for user %d has no task id", task.UserID)
	}

	err := mq.PublishMessage(ctx,
		ReminderExchange,
		RoutingKey(task.Channel),
		strconv.FormatInt(task.TaskID, 10),
		task,
	)
	if err != nil {
		logger.Logger.Error("Failed to publish reminder task",
			zap.Int64("task_id", task.TaskID),
			zap.Int64("user_id", task.UserID),
			zap.String("week_id", task.WeekID),
			zap.String("channel", task.Channel),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Debug("Published reminder task",
		zap.Int64("task_id", task.TaskID),
		zap.Int64("user_id", task.UserID),
		zap.String("week_id", task.WeekID),
		zap.String("channel", task.Channel),
	)
	return nil
}
