package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"TeamPulse/internal/compliance"
	"TeamPulse/storage/redis"
)

const (
	// 提醒账本 key：reminder:sent:{week}:{user}:{channel}
	reminderSentPrefix = "reminder:sent"

	defaultReminderTTL = 14 * 24 * time.Hour
)

// ReminderLedger redis 版提醒账本，SETNX 保证同一 key 只有一个调用方占位成功。
// TTL 过期后 key 自动清理，超过 TTL 的周不会再被提醒，因此不影响去重。
type ReminderLedger struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewReminderLedger client 为空时使用全局 redis 客户端
func NewReminderLedger(client goredis.UniversalClient, ttl time.Duration) *ReminderLedger {
	if client == nil {
		client = redis.Client()
	}
	if ttl <= 0 {
		ttl = defaultReminderTTL
	}
	return &ReminderLedger{client: client, ttl: ttl}
}

func reminderKey(key compliance.LedgerKey) string {
	return redis.Key(reminderSentPrefix, key.WeekID.String(), strconv.FormatInt(key.UserID, 10), key.Channel)
}

func (l *ReminderLedger) ShouldSend(ctx context.Context, key compliance.LedgerKey) (bool, error) {
	n, err := l.client.Exists(ctx, reminderKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check reminder sent status: %w", err)
	}
	return n == 0, nil
}

func (l *ReminderLedger) MarkSent(ctx context.Context, key compliance.LedgerKey, at time.Time) error {
	_, err := l.TryMark(ctx, key, at, 0)
	return err
}

// TryMark value 记录 taskID 和发送时刻，便于排查
func (l *ReminderLedger) TryMark(ctx context.Context, key compliance.LedgerKey, at time.Time, taskID int64) (bool, error) {
	value := fmt.Sprintf("%d:%d", taskID, at.Unix())
	ok, err := l.client.SetNX(ctx, reminderKey(key), value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return ok, nil
}

func (l *ReminderLedger) Unmark(ctx context.Context, key compliance.LedgerKey) error {
	if err := l.client.Del(ctx, reminderKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to unmark reminder: %w", err)
	}
	return nil
}
