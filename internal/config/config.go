package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Journal   JournalConfig   `json:"journal"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	Worker    WorkerConfig    `json:"worker"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Export    ExportConfig    `json:"export"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

// StorageConfig picks the primary datastore. The memory driver keeps nothing
// across restarts and exists for development and tests.
type StorageConfig struct {
	Driver    string        `json:"driver"`
	MongoURI  string        `json:"mongo_uri"`
	MongoDB   string        `json:"mongo_db"`
	OpTimeout time.Duration `json:"op_timeout"`
}

// JournalConfig picks the reconciliation-failure journal backend.
type JournalConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type CacheConfig struct {
	Enabled bool `json:"enabled"`
}

type WorkerConfig struct {
	Concurrency int           `json:"concurrency"`
	Queues      []string      `json:"queues"`
	RetryBase   time.Duration `json:"retry_base"`
	JobTimeout  time.Duration `json:"job_timeout"`
	SweepLimit  int           `json:"sweep_limit"`
}

type RateLimitConfig struct {
	Enabled           bool          `json:"enabled"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`
	ClientTTL         time.Duration `json:"client_ttl"`
}

// ExportConfig controls snapshot exports. Interval zero disables the
// scheduled job; on-demand exports stay available either way.
type ExportConfig struct {
	Driver      string        `json:"driver"`
	Dir         string        `json:"dir"`
	S3Bucket    string        `json:"s3_bucket"`
	S3Region    string        `json:"s3_region"`
	S3Endpoint  string        `json:"s3_endpoint"`
	S3PathStyle bool          `json:"s3_path_style"`
	S3AccessKey string        `json:"-"`
	S3SecretKey string        `json:"-"`
	S3Token     string        `json:"-"`
	Interval    time.Duration `json:"interval"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("HOST", "localhost"),
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "mongo"),
			MongoURI:  getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:   getEnv("MONGO_DB", "taskify"),
			OpTimeout: getEnvAsDuration("MONGO_OP_TIMEOUT", 5*time.Second),
		},
		Journal: JournalConfig{
			Driver: getEnv("JOURNAL_DRIVER", "sqlite"),
			DSN:    getEnv("JOURNAL_DSN", ""),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Enabled: getEnvAsBool("CACHE_ENABLED", true),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
			Queues:      getEnvAsSlice("WORKER_QUEUES", nil),
			RetryBase:   getEnvAsDuration("WORKER_RETRY_BASE", 30*time.Second),
			JobTimeout:  getEnvAsDuration("WORKER_JOB_TIMEOUT", 30*time.Second),
			SweepLimit:  getEnvAsInt("WORKER_SWEEP_LIMIT", 100),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 100),
			ClientTTL:         getEnvAsDuration("RATE_LIMIT_CLIENT_TTL", 10*time.Minute),
		},
		Export: ExportConfig{
			Driver:      getEnv("EXPORT_DRIVER", "fs"),
			Dir:         getEnv("EXPORT_DIR", "./snapshots"),
			S3Bucket:    getEnv("EXPORT_S3_BUCKET", ""),
			S3Region:    getEnv("EXPORT_S3_REGION", ""),
			S3Endpoint:  getEnv("EXPORT_S3_ENDPOINT", ""),
			S3PathStyle: getEnvAsBool("EXPORT_S3_PATH_STYLE", false),
			S3AccessKey: getEnv("EXPORT_S3_ACCESS_KEY_ID", ""),
			S3SecretKey: getEnv("EXPORT_S3_SECRET_ACCESS_KEY", ""),
			S3Token:     getEnv("EXPORT_S3_SESSION_TOKEN", ""),
			Interval:    getEnvAsDuration("EXPORT_INTERVAL", 0),
		},
	}

	if config.Storage.Driver == "memory" && config.Server.Environment == "production" {
		return nil, fmt.Errorf("memory storage driver is not allowed in production")
	}

	if config.Export.Driver == "s3" && config.Export.S3Bucket == "" {
		return nil, fmt.Errorf("EXPORT_S3_BUCKET is required with the s3 export driver")
	}

	return config, nil
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
