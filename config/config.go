package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"teampulse"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"teampulse"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"10"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"50"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"tp"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// Kafka 配置（REMINDER_TRANSPORT=kafka 时使用）
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaReminderTopic string   `env:"KAFKA_REMINDER_TOPIC" envDefault:"compliance.reminders"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪 / 指标导出
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 调度配置（robfig/cron 表达式，按 SchedulerTimezone 解释）
	SchedulerTimezone  string `env:"SCHEDULER_TIMEZONE" envDefault:"America/Chicago"`
	ReminderSweepCron  string `env:"REMINDER_SWEEP_CRON" envDefault:"*/15 * * * *"`
	BucketSweepCron    string `env:"BUCKET_SWEEP_CRON" envDefault:"10 0 * * *"`
	SweepTimeoutMinute int    `env:"SWEEP_TIMEOUT_MINUTES" envDefault:"10"`

	// 合规计算配置
	ComplianceWorkers      int     `env:"COMPLIANCE_WORKERS" envDefault:"8"`
	FetchTimeoutSeconds    int     `env:"FETCH_TIMEOUT_SECONDS" envDefault:"5"`
	BucketLookbackWeeks    int     `env:"BUCKET_LOOKBACK_WEEKS" envDefault:"2"`
	HistoryWeeks           int     `env:"HISTORY_WEEKS" envDefault:"12"`
	StreakMaxWeeks         int     `env:"STREAK_MAX_WEEKS" envDefault:"104"`
	ReminderLedgerTTLHours int     `env:"REMINDER_LEDGER_TTL_HOURS" envDefault:"336"`    // redis 账本过期时间，默认两周
	ReminderLedgerBackend  string  `env:"REMINDER_LEDGER_BACKEND" envDefault:"postgres"` // postgres, redis
	ReminderTransport      string  `env:"REMINDER_TRANSPORT" envDefault:"rabbitmq"`      // rabbitmq, kafka
	ReminderPublishRate    float64 `env:"REMINDER_PUBLISH_RATE" envDefault:"50"`         // 每秒，0 表示不限速
	ReminderPublishBurst   int     `env:"REMINDER_PUBLISH_BURST" envDefault:"10"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	if Cfg.ComplianceWorkers <= 0 {
		log.Printf("WARN: COMPLIANCE_WORKERS=%d is invalid, falling back to 1", Cfg.ComplianceWorkers)
		Cfg.ComplianceWorkers = 1
	}

	if Cfg.FetchTimeoutSeconds <= 0 {
		log.Printf("WARN: FETCH_TIMEOUT_SECONDS=%d is invalid, falling back to 5", Cfg.FetchTimeoutSeconds)
		Cfg.FetchTimeoutSeconds = 5
	}

	if Cfg.BucketLookbackWeeks < 0 {
		log.Printf("WARN: BUCKET_LOOKBACK_WEEKS=%d is invalid, falling back to 0", Cfg.BucketLookbackWeeks)
		Cfg.BucketLookbackWeeks = 0
	}

	if Cfg.ReminderLedgerBackend != "postgres" && Cfg.ReminderLedgerBackend != "redis" {
		log.Printf("WARN: REMINDER_LEDGER_BACKEND=%q is not supported, using postgres", Cfg.ReminderLedgerBackend)
		Cfg.ReminderLedgerBackend = "postgres"
	}

	if Cfg.ReminderTransport != "rabbitmq" && Cfg.ReminderTransport != "kafka" {
		log.Printf("WARN: REMINDER_TRANSPORT=%q is not supported, using rabbitmq", Cfg.ReminderTransport)
		Cfg.ReminderTransport = "rabbitmq"
	}

	if Cfg.ReminderPublishRate < 0 {
		log.Printf("WARN: REMINDER_PUBLISH_RATE=%v is invalid, publishing without limit", Cfg.ReminderPublishRate)
		Cfg.ReminderPublishRate = 0
	}

	if Cfg.OTelEnabled && Cfg.OTelEndpoint == "" {
		log.Printf("WARN: OTEL_ENABLED is set but OTEL_EXPORTER_OTLP_ENDPOINT is empty, telemetry will not be exported")
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
