package compliance

import (
	"context"
	"fmt"
	"time"
)

// LedgerKey 提醒账本主键：每人每周每渠道至多一条
type LedgerKey struct {
	UserID         int64
	OrganizationID int64
	WeekID         WeekID
	Channel        string
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%d:%s:%s", k.UserID, k.WeekID, k.Channel)
}

// Ledger 提醒去重账本。
// TryMark 必须是单次条件写（不存在才插入），ShouldSend + MarkSent 分开调用不能防并发。
type Ledger interface {
	// ShouldSend 账本中没有该 key 时返回 true
	ShouldSend(ctx context.Context, key LedgerKey) (bool, error)
	// MarkSent 记录已发送，重复调用不报错也不重复写入
	MarkSent(ctx context.Context, key LedgerKey, at time.Time) error
	// TryMark 原子地占位，返回 true 表示本次调用写入成功，调用方获得发送权
	TryMark(ctx context.Context, key LedgerKey, at time.Time, taskID int64) (bool, error)
	// Unmark 投递失败时释放占位，允许下次重试
	Unmark(ctx context.Context, key LedgerKey) error
}
