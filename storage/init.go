package storage

import (
	"TeamPulse/storage/database"
	"TeamPulse/storage/mq"
	"TeamPulse/storage/redis"
)

// Init 按 Database -> Redis -> MQ 顺序初始化存储层
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	if err := mq.Init(); err != nil {
		return err
	}

	return nil
}
