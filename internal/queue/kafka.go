package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"TeamPulse/pkg/logger"
)

// KafkaPublisher 发布到 Kafka，按 user_id 分区保证同一成员的任务有序。
// 写入是同步的，失败会返回给扫描器以便释放账本占位。
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    10,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaPublisher) PublishReminder(ctx context.Context, task ReminderTask) error {
	msg, err := reminderMessage(task)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Logger.Error("Failed to publish reminder task to kafka",
			zap.Int64("task_id", task.TaskID),
			zap.Int64("user_id", task.UserID),
			zap.String("channel", task.Channel),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish reminder task %d: %w", task.TaskID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func reminderMessage(task ReminderTask) (kafka.Message, error) {
	if task.TaskID == 0 {
		return kafka.Message{}, fmt.Errorf("reminder task for user %d has no task id", task.UserID)
	}
	body, err := json.Marshal(task)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal reminder task: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(task.UserID, 10)),
		Value: body,
		Time:  task.CreatedAt,
		Headers: []kafka.Header{
			{Key: "task_id", Value: []byte(strconv.FormatInt(task.TaskID, 10))},
			{Key: "routing_key", Value: []byte(RoutingKey(task.Channel))},
		},
	}, nil
}
