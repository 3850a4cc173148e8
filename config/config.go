package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Inventory InventoryConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	AppEnv      string
	GRPCPort    string
	MetricsPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

// StorageConfig selects the backing store: "postgres" or "memory".
type StorageConfig struct {
	Driver string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// RedisConfig with an empty Addr falls back to in-process locking.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig with no brokers disables the case listener and logs alerts
// instead of publishing them.
type KafkaConfig struct {
	Brokers    []string
	CaseTopic  string
	AlertTopic string
	GroupID    string
}

type InventoryConfig struct {
	DefaultCategory          string
	DefaultLowStockThreshold int
	MaxOversubscription      int
	LockTTLSeconds           int
}

type JobsConfig struct {
	LowStockSpec  string
	ReconcileSpec string
	Timezone      string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:      getEnv("APP_ENV", "dev"),
			GRPCPort:    getEnv("GRPC_PORT", ":8083"),
			MetricsPort: getEnv("METRICS_PORT", ":9093"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "postgres"),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "funeral"),
			Password:        getEnv("POSTGRES_PASSWORD", "funeral"),
			DBName:          getEnv("POSTGRES_DB", "funeral_inventory"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			CaseTopic:  getEnv("KAFKA_TOPIC_CASES", "cases.events"),
			AlertTopic: getEnv("KAFKA_TOPIC_STOCK_ALERTS", "inventory.alerts"),
			GroupID:    getEnv("KAFKA_GROUP_INVENTORY", "funeral-inventory"),
		},
		Inventory: InventoryConfig{
			DefaultCategory:          getEnv("INVENTORY_DEFAULT_CATEGORY", "coffin"),
			DefaultLowStockThreshold: getEnvInt("INVENTORY_LOW_STOCK_THRESHOLD", 1),
			MaxOversubscription:      getEnvInt("INVENTORY_MAX_OVERSUBSCRIPTION", 0),
			LockTTLSeconds:           getEnvInt("INVENTORY_LOCK_TTL_SECONDS", 5),
		},
		Jobs: JobsConfig{
			LowStockSpec:  getEnv("JOB_LOW_STOCK_CRON", "0 7 * * *"),
			ReconcileSpec: getEnv("JOB_RECONCILE_CRON", "30 2 * * *"),
			Timezone:      getEnv("JOB_TIMEZONE", "Local"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvSlice splits on commas. An empty value yields an empty slice.
func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
