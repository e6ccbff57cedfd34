package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"TeamPulse/config"
	"TeamPulse/pkg/logger"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error

	exchanges []ExchangeSpec
	exMu      sync.Mutex
)

// ExchangeSpec Init 时声明的交换机
type ExchangeSpec struct {
	Name string
	Kind string
}

// RegisterExchange 在 Init 之前登记需要声明的交换机
func RegisterExchange(name, kind string) {
	exMu.Lock()
	defer exMu.Unlock()
	exchanges = append(exchanges, ExchangeSpec{Name: name, Kind: kind})
}

func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			return
		}

		ch, err := conn.Channel()
		if err != nil {
			connErr = fmt.Errorf("failed to open setup channel: %w", err)
			return
		}
		defer ch.Close()

		exMu.Lock()
		defer exMu.Unlock()
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(ex.Name, ex.Kind, true, false, false, false, nil); err != nil {
				connErr = fmt.Errorf("failed to declare exchange %s: %w", ex.Name, err)
				return
			}
			logger.Logger.Info("Exchange declared",
				zap.String("component", "rabbitmq"),
				zap.String("exchange", ex.Name),
				zap.String("kind", ex.Kind),
			)
		}
	})
	return connErr
}

func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		pubMutex.Lock()
		if publisherCh != nil {
			_ = publisherCh.Close()
			publisherCh = nil
		}
		pubMutex.Unlock()
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
