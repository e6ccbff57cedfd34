package cache

import (
	"context"
	"time"

	"TeamPulse/storage/redis"
)

// 分布式锁，多个 scheduler 实例同时运行时只有一个执行同一轮扫描
const (
	lockPrefix = "lock"
)

// TryLock SETNX 占锁，ttl 到期自动释放，防止持有者崩溃后死锁
func TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fullkey := redis.Key(lockPrefix, key)

	result, err := redis.Client().SetNX(ctx, fullkey, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return result, nil
}

func Unlock(ctx context.Context, key string) error {
	fullkey := redis.Key(lockPrefix, key)

	return redis.Client().Del(ctx, fullkey).Err()
}
