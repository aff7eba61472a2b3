package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tripmate/internal/cache"
	"tripmate/internal/database"
	"tripmate/internal/external"
	"tripmate/internal/messaging"
	"tripmate/internal/tracing"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Публичный адрес API, на него шлюз возвращает пользователя
	PublicBaseURL string
	JWTSecret     string
	CORSOrigins   []string

	Database      database.Config
	NATS          messaging.Config
	Redis         cache.Config
	Elasticsearch ElasticsearchConfig
	Payment       external.PaymentConfig
	Tracing       tracing.Config
	Sweep         SweepConfig

	// Порт /metrics процесса consumers
	ConsumersMetricsPort string
}

// SweepConfig - расписание фоновой проверки сроков
type SweepConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// Load загружает конфигурацию из переменных окружения. Файл .env, если он
// есть, подгружается первым и не перекрывает уже заданные переменные.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8081"), "/"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "tripmate"),
			Password:           getEnv("DB_PASSWORD", "tripmate"),
			DBName:             getEnv("DB_NAME", "tripmate"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "tripmate"),
			ClientID:  getEnv("NATS_CLIENT_ID", "tripmate-api"),
			Enabled:   getEnvBool("NATS_ENABLED", true),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Payment: external.PaymentConfig{
			BaseURL:       getEnv("PAYMENT_GATEWAY_URL", "https://sandbox.sslcommerz.com/gwprocess/v4/api"),
			StoreID:       getEnv("PAYMENT_STORE_ID", ""),
			StorePassword: getEnv("PAYMENT_STORE_PASSWORD", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "BDT"),
			Timeout:       time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Tracing: tracing.Config{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "tripmate"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
			Insecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},

		Sweep: SweepConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
			LockTTL:  getEnvDuration("SWEEP_LOCK_TTL", 2*time.Minute),
		},

		ConsumersMetricsPort: getEnv("CONSUMERS_METRICS_PORT", "9091"),
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration принимает формат time.ParseDuration ("30s", "2m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList разбирает список через запятую
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
