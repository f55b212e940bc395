package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	NotifyModeSync  = "sync"
	NotifyModeAsync = "async"

	NotifierMemory = "memory"
	NotifierSMTP   = "smtp"
)

// Config описывает настройки запуска сервиса. Значения читаются из переменных SHELTER_*.
type Config struct {
	GRPCAddr    string `env:"SHELTER_GRPC_ADDR" envDefault:":50051"`
	MetricsAddr string `env:"SHELTER_METRICS_ADDR" envDefault:":9090"`
	Environment string `env:"SHELTER_ENV" envDefault:"development"`

	StorageDriver       string `env:"SHELTER_STORAGE_DRIVER" envDefault:"memory"`
	PostgresDSN         string `env:"SHELTER_POSTGRES_DSN"`
	PostgresAutoMigrate bool   `env:"SHELTER_POSTGRES_AUTO_MIGRATE" envDefault:"true"`

	LockBackend  string        `env:"SHELTER_LOCK_BACKEND" envDefault:"memory"`
	RedisAddr    string        `env:"SHELTER_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisLockTTL time.Duration `env:"SHELTER_REDIS_LOCK_TTL" envDefault:"30s"`

	Notifier              string        `env:"SHELTER_NOTIFIER" envDefault:"memory"`
	NotifyMode            string        `env:"SHELTER_NOTIFY_MODE" envDefault:"sync"`
	NotifyTimeout         time.Duration `env:"SHELTER_NOTIFY_TIMEOUT" envDefault:"10s"`
	NotifyRetryAttempts   int           `env:"SHELTER_NOTIFY_RETRY_ATTEMPTS" envDefault:"3"`
	NotifyRetryDelay      time.Duration `env:"SHELTER_NOTIFY_RETRY_DELAY" envDefault:"200ms"`
	NotifyRateLimit       float64       `env:"SHELTER_NOTIFY_RATE_LIMIT" envDefault:"10"`
	NotifyRateBurst       int           `env:"SHELTER_NOTIFY_RATE_BURST" envDefault:"5"`
	NotifyBreakerFailures int           `env:"SHELTER_NOTIFY_BREAKER_FAILURES" envDefault:"5"`
	NotifyBreakerReset    time.Duration `env:"SHELTER_NOTIFY_BREAKER_RESET" envDefault:"30s"`
	NotifyTimezone        string        `env:"SHELTER_NOTIFY_TIMEZONE" envDefault:"UTC"`

	SMTPHost     string `env:"SHELTER_SMTP_HOST"`
	SMTPPort     int    `env:"SHELTER_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SHELTER_SMTP_USERNAME"`
	SMTPPassword string `env:"SHELTER_SMTP_PASSWORD"`
	SMTPFrom     string `env:"SHELTER_SMTP_FROM" envDefault:"adoptions@shelter.local"`
	SMTPFromName string `env:"SHELTER_SMTP_FROM_NAME" envDefault:"Shelter"`
	SMTPStartTLS bool   `env:"SHELTER_SMTP_STARTTLS" envDefault:"true"`

	ReleaseAppointmentOnCancel bool `env:"SHELTER_RELEASE_APPOINTMENT_ON_CANCEL" envDefault:"false"`

	KafkaBrokers  string `env:"SHELTER_KAFKA_BROKERS"`
	KafkaClientID string `env:"SHELTER_KAFKA_CLIENT_ID" envDefault:"shelter-service"`

	OutboxPollInterval time.Duration `env:"SHELTER_OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxBatchSize    int           `env:"SHELTER_OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxAttempts  int           `env:"SHELTER_OUTBOX_MAX_ATTEMPTS" envDefault:"3"`
	OutboxRetryDelay   time.Duration `env:"SHELTER_OUTBOX_RETRY_DELAY" envDefault:"50ms"`
	OutboxMaxPending   int           `env:"SHELTER_OUTBOX_MAX_PENDING" envDefault:"1000"`

	IdempotencyCleanupInterval  time.Duration `env:"SHELTER_IDEMPOTENCY_CLEANUP_INTERVAL" envDefault:"1m"`
	IdempotencyCleanupBatchSize int           `env:"SHELTER_IDEMPOTENCY_CLEANUP_BATCH_SIZE" envDefault:"500"`

	OTelExporter    string  `env:"SHELTER_OTEL_EXPORTER" envDefault:"none"`
	OTelEndpoint    string  `env:"SHELTER_OTEL_ENDPOINT"`
	OTelInsecure    bool    `env:"SHELTER_OTEL_INSECURE" envDefault:"true"`
	OTelSampleRatio float64 `env:"SHELTER_OTEL_SAMPLE_RATIO" envDefault:"1"`

	LogFormat string `env:"SHELTER_LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"SHELTER_LOG_LEVEL" envDefault:"info"`
}

// DefaultConfig возвращает значения envDefault без учёта окружения процесса.
func DefaultConfig() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// LoadEnvFiles подгружает существующие .env-файлы; отсутствующие пропускаются.
func LoadEnvFiles(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadConfig читает .env и .env.local, затем разбирает переменные окружения.
func LoadConfig() (Config, error) {
	if _, err := LoadEnvFiles(".env", ".env.local"); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}
	return ParseConfig(nil)
}

// ParseConfig разбирает конфигурацию из environ (или окружения процесса, если nil) и проверяет её.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.LockBackend = strings.ToLower(strings.TrimSpace(c.LockBackend))
	c.Notifier = strings.ToLower(strings.TrimSpace(c.Notifier))
	c.NotifyMode = strings.ToLower(strings.TrimSpace(c.NotifyMode))
	c.PostgresDSN = strings.TrimSpace(c.PostgresDSN)
	c.KafkaBrokers = strings.TrimSpace(c.KafkaBrokers)
}

// Validate проверяет перекрёстные правила между полями.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("SHELTER_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.LockBackend {
	case LockBackendMemory:
	case LockBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("SHELTER_REDIS_ADDR is required for redis lock backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported lock backend %q", c.LockBackend))
	}

	switch c.Notifier {
	case NotifierMemory:
	case NotifierSMTP:
		if strings.TrimSpace(c.SMTPHost) == "" {
			errs = append(errs, errors.New("SHELTER_SMTP_HOST is required for smtp notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported notifier %q", c.Notifier))
	}

	if c.NotifyMode != NotifyModeSync && c.NotifyMode != NotifyModeAsync {
		errs = append(errs, fmt.Errorf("unsupported notify mode %q", c.NotifyMode))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("SHELTER_NOTIFY_TIMEOUT must be positive"))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, errors.New("SHELTER_OTEL_SAMPLE_RATIO must be within [0, 1]"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox batch size and max attempts must be positive"))
	}

	return errors.Join(errs...)
}

// Brokers возвращает список Kafka brokers без пустых элементов.
func (c Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
