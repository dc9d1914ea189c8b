package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

const envPrefix = "ORDERS"

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	ProductBaseURL    string
	ProductTimeout    time.Duration
	ProductFake       bool
	EnrichConcurrency int

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	JaegerEndpoint     string
	CORSAllowedOrigins []string
	LogLevel           log.Level
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8083",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		ProductBaseURL:      "http://localhost:8082",
		ProductTimeout:      3 * time.Second,
		EnrichConcurrency:   4,
		KafkaTopic:          "orders.events",
		KafkaDLQTopic:       "orders.dlq",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		CORSAllowedOrigins:  []string{"*"},
		LogLevel:            log.InfoLevel,
	}
}

// LoadConfig читает .env, config.yaml и переменные окружения ORDERS_*.
// Некорректные значения заменяются значениями по умолчанию с предупреждением.
func LoadConfig(logger *log.Entry) (Config, error) {
	if logger == nil {
		logger = log.WithField("component", "config")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).Warn("failed to load .env file")
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/order-service")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		logger.WithField("file", v.ConfigFileUsed()).Info("config file loaded")
	}

	return configFromViper(v, logger)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("http.addr", def.HTTPAddr)
	v.SetDefault("grpc.addr", def.GRPCAddr)
	v.SetDefault("metrics.addr", def.MetricsAddr)
	v.SetDefault("storage.driver", def.StorageDriver)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.auto_migrate", strconv.FormatBool(def.PostgresAutoMigrate))
	v.SetDefault("product.base_url", def.ProductBaseURL)
	v.SetDefault("product.timeout", def.ProductTimeout.String())
	v.SetDefault("product.fake", strconv.FormatBool(def.ProductFake))
	v.SetDefault("enrich.concurrency", strconv.Itoa(def.EnrichConcurrency))
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", def.KafkaTopic)
	v.SetDefault("kafka.dlq_topic", def.KafkaDLQTopic)
	v.SetDefault("outbox.poll_interval", def.OutboxPollInterval.String())
	v.SetDefault("outbox.batch_size", strconv.Itoa(def.OutboxBatchSize))
	v.SetDefault("outbox.max_attempts", strconv.Itoa(def.OutboxMaxAttempts))
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("cors.allowed_origins", strings.Join(def.CORSAllowedOrigins, ","))
	v.SetDefault("log.level", def.LogLevel.String())
	return v
}

func configFromViper(v *viper.Viper, logger *log.Entry) (Config, error) {
	def := DefaultConfig()
	r := reader{v: v, logger: logger}

	cfg := Config{
		HTTPAddr:            r.str("http.addr", def.HTTPAddr),
		GRPCAddr:            strings.TrimSpace(v.GetString("grpc.addr")),
		MetricsAddr:         r.str("metrics.addr", def.MetricsAddr),
		StorageDriver:       strings.ToLower(r.str("storage.driver", def.StorageDriver)),
		PostgresDSN:         strings.TrimSpace(v.GetString("postgres.dsn")),
		PostgresAutoMigrate: r.boolean("postgres.auto_migrate", def.PostgresAutoMigrate),
		ProductBaseURL:      strings.TrimRight(r.str("product.base_url", def.ProductBaseURL), "/"),
		ProductTimeout:      r.duration("product.timeout", def.ProductTimeout),
		ProductFake:         r.boolean("product.fake", def.ProductFake),
		EnrichConcurrency:   r.positiveInt("enrich.concurrency", def.EnrichConcurrency),
		KafkaBrokers:        r.list("kafka.brokers"),
		KafkaTopic:          r.str("kafka.topic", def.KafkaTopic),
		KafkaDLQTopic:       r.str("kafka.dlq_topic", def.KafkaDLQTopic),
		OutboxPollInterval:  r.duration("outbox.poll_interval", def.OutboxPollInterval),
		OutboxBatchSize:     r.positiveInt("outbox.batch_size", def.OutboxBatchSize),
		OutboxMaxAttempts:   r.positiveInt("outbox.max_attempts", def.OutboxMaxAttempts),
		JaegerEndpoint:      strings.TrimSpace(v.GetString("tracing.jaeger_endpoint")),
		CORSAllowedOrigins:  r.list("cors.allowed_origins"),
		LogLevel:            r.level("log.level", def.LogLevel),
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = def.CORSAllowedOrigins
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, errors.New("postgres.dsn is required when storage.driver=postgres")
		}
	default:
		logger.WithField("storage.driver", cfg.StorageDriver).Warn("unsupported storage driver, falling back to memory")
		cfg.StorageDriver = StorageDriverMemory
	}

	return cfg, nil
}

type reader struct {
	v      *viper.Viper
	logger *log.Entry
}

func (r reader) warn(key, raw string, fallback any) {
	r.logger.WithFields(log.Fields{
		"key":     key,
		"value":   raw,
		"default": fallback,
	}).Warn("invalid config value, using default")
}

func (r reader) str(key, fallback string) string {
	value := strings.TrimSpace(r.v.GetString(key))
	if value == "" {
		return fallback
	}
	return value
}

func (r reader) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(r.v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		r.warn(key, raw, fallback.String())
		return fallback
	}
	return d
}

func (r reader) positiveInt(key string, fallback int) int {
	raw := strings.TrimSpace(r.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		r.warn(key, raw, fallback)
		return fallback
	}
	return n
}

func (r reader) boolean(key string, fallback bool) bool {
	raw := strings.TrimSpace(r.v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.warn(key, raw, fallback)
		return fallback
	}
	return b
}

func (r reader) level(key string, fallback log.Level) log.Level {
	raw := strings.TrimSpace(r.v.GetString(key))
	lvl, err := log.ParseLevel(raw)
	if err != nil {
		r.warn(key, raw, fallback.String())
		return fallback
	}
	return lvl
}

// list принимает как строку "a,b", так и YAML-список.
func (r reader) list(key string) []string {
	var parts []string
	switch value := r.v.Get(key).(type) {
	case string:
		parts = strings.Split(value, ",")
	case []any:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = value
	}

	var result []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
