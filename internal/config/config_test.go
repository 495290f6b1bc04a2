package config

import (
	"os"
	"testing"
	"time"
)

func setEnvVars(vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
}

func clearEnvVars(vars []string) {
	for _, k := range vars {
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	envVars := []string{
		"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "ENVIRONMENT",
		"STORAGE_DRIVER", "MONGO_URI", "MONGO_DB", "MONGO_OP_TIMEOUT",
		"JOURNAL_DRIVER", "JOURNAL_DSN",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
		"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
		"CACHE_ENABLED",
		"WORKER_CONCURRENCY", "WORKER_QUEUES", "WORKER_RETRY_BASE", "WORKER_JOB_TIMEOUT", "WORKER_SWEEP_LIMIT",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_CLIENT_TTL",
		"EXPORT_DRIVER", "EXPORT_DIR", "EXPORT_S3_BUCKET", "EXPORT_S3_REGION",
		"EXPORT_S3_ENDPOINT", "EXPORT_S3_PATH_STYLE", "EXPORT_INTERVAL",
		"EXPORT_S3_ACCESS_KEY_ID", "EXPORT_S3_SECRET_ACCESS_KEY", "EXPORT_S3_SESSION_TOKEN",
	}
	clearEnvVars(envVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Server.Host)
	}

	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}

	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}

	if config.Storage.Driver != "mongo" {
		t.Errorf("Expected default storage driver 'mongo', got %s", config.Storage.Driver)
	}

	if config.Storage.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("Expected default mongo URI 'mongodb://localhost:27017', got %s", config.Storage.MongoURI)
	}

	if config.Storage.MongoDB != "taskify" {
		t.Errorf("Expected default mongo database 'taskify', got %s", config.Storage.MongoDB)
	}

	if config.Storage.OpTimeout != 5*time.Second {
		t.Errorf("Expected default mongo op timeout 5s, got %v", config.Storage.OpTimeout)
	}

	if config.Journal.Driver != "sqlite" {
		t.Errorf("Expected default journal driver 'sqlite', got %s", config.Journal.Driver)
	}

	if config.Journal.DSN != "" {
		t.Errorf("Expected empty default journal DSN, got %s", config.Journal.DSN)
	}

	if config.Redis.Host != "localhost" {
		t.Errorf("Expected default Redis host 'localhost', got %s", config.Redis.Host)
	}

	if config.Redis.Port != "6379" {
		t.Errorf("Expected default Redis port '6379', got %s", config.Redis.Port)
	}

	if config.Redis.DB != 0 {
		t.Errorf("Expected default Redis DB 0, got %d", config.Redis.DB)
	}

	if config.Redis.PoolSize != 10 {
		t.Errorf("Expected default Redis pool size 10, got %d", config.Redis.PoolSize)
	}

	if !config.Cache.Enabled {
		t.Error("Expected caching to be enabled by default")
	}

	if config.Worker.Concurrency != 4 {
		t.Errorf("Expected default worker concurrency 4, got %d", config.Worker.Concurrency)
	}

	if len(config.Worker.Queues) != 0 {
		t.Errorf("Expected no default queue override, got %v", config.Worker.Queues)
	}

	if config.Worker.RetryBase != 30*time.Second {
		t.Errorf("Expected default retry base 30s, got %v", config.Worker.RetryBase)
	}

	if config.Worker.SweepLimit != 100 {
		t.Errorf("Expected default sweep limit 100, got %d", config.Worker.SweepLimit)
	}

	if !config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}

	if config.RateLimit.RequestsPerSecond != 50 {
		t.Errorf("Expected default 50 requests per second, got %v", config.RateLimit.RequestsPerSecond)
	}

	if config.RateLimit.Burst != 100 {
		t.Errorf("Expected default burst 100, got %d", config.RateLimit.Burst)
	}

	if config.Export.Driver != "fs" {
		t.Errorf("Expected default export driver 'fs', got %s", config.Export.Driver)
	}

	if config.Export.Dir != "./snapshots" {
		t.Errorf("Expected default export dir './snapshots', got %s", config.Export.Dir)
	}

	if config.Export.Interval != 0 {
		t.Errorf("Expected scheduled exports disabled by default, got %v", config.Export.Interval)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	envVars := map[string]string{
		"HOST":                 "0.0.0.0",
		"PORT":                 "9000",
		"ENVIRONMENT":          "production",
		"STORAGE_DRIVER":       "mongo",
		"MONGO_URI":            "mongodb://mongo.example.com:27017",
		"MONGO_DB":             "taskify_prod",
		"JOURNAL_DRIVER":       "postgres",
		"JOURNAL_DSN":          "host=db.example.com user=taskify dbname=journal",
		"REDIS_HOST":           "redis.example.com",
		"REDIS_PORT":           "6380",
		"REDIS_PASSWORD":       "redis_pass",
		"REDIS_DB":             "1",
		"CACHE_ENABLED":        "false",
		"WORKER_CONCURRENCY":   "8",
		"WORKER_QUEUES":        "jobs, retry",
		"RATE_LIMIT_ENABLED":   "false",
		"RATE_LIMIT_RPS":       "12.5",
		"READ_TIMEOUT":         "45s",
		"WRITE_TIMEOUT":        "45s",
		"EXPORT_DRIVER":        "s3",
		"EXPORT_S3_BUCKET":     "taskify-snapshots",
		"EXPORT_S3_REGION":     "eu-west-1",
		"EXPORT_S3_PATH_STYLE": "true",
		"EXPORT_INTERVAL":      "1h",
	}

	setEnvVars(envVars)
	defer func() {
		var keys []string
		for k := range envVars {
			keys = append(keys, k)
		}
		clearEnvVars(keys)
	}()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with custom config, got: %v", err)
	}

	if config.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host '0.0.0.0', got %s", config.Server.Host)
	}

	if config.Server.Port != "9000" {
		t.Errorf("Expected port '9000', got %s", config.Server.Port)
	}

	if config.Server.Environment != "production" {
		t.Errorf("Expected environment 'production', got %s", config.Server.Environment)
	}

	if config.Storage.MongoURI != "mongodb://mongo.example.com:27017" {
		t.Errorf("Expected custom mongo URI, got %s", config.Storage.MongoURI)
	}

	if config.Storage.MongoDB != "taskify_prod" {
		t.Errorf("Expected mongo database 'taskify_prod', got %s", config.Storage.MongoDB)
	}

	if config.Journal.Driver != "postgres" {
		t.Errorf("Expected journal driver 'postgres', got %s", config.Journal.Driver)
	}

	if config.Journal.DSN == "" {
		t.Error("Expected journal DSN to be set")
	}

	if config.Redis.Host != "redis.example.com" {
		t.Errorf("Expected Redis host 'redis.example.com', got %s", config.Redis.Host)
	}

	if config.Redis.DB != 1 {
		t.Errorf("Expected Redis DB 1, got %d", config.Redis.DB)
	}

	if config.Cache.Enabled {
		t.Error("Expected caching to be disabled")
	}

	if config.Worker.Concurrency != 8 {
		t.Errorf("Expected worker concurrency 8, got %d", config.Worker.Concurrency)
	}

	if len(config.Worker.Queues) != 2 || config.Worker.Queues[0] != "jobs" || config.Worker.Queues[1] != "retry" {
		t.Errorf("Expected queues [jobs retry], got %v", config.Worker.Queues)
	}

	if config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}

	if config.RateLimit.RequestsPerSecond != 12.5 {
		t.Errorf("Expected 12.5 requests per second, got %v", config.RateLimit.RequestsPerSecond)
	}

	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", config.Server.ReadTimeout)
	}

	if config.Export.Driver != "s3" {
		t.Errorf("Expected export driver 's3', got %s", config.Export.Driver)
	}

	if config.Export.S3Bucket != "taskify-snapshots" {
		t.Errorf("Expected bucket 'taskify-snapshots', got %s", config.Export.S3Bucket)
	}

	if !config.Export.S3PathStyle {
		t.Error("Expected path-style S3 addressing")
	}

	if config.Export.Interval != time.Hour {
		t.Errorf("Expected export interval 1h, got %v", config.Export.Interval)
	}
}

func TestLoadConfig_ProductionMemoryStoreRejected(t *testing.T) {
	envVars := map[string]string{
		"ENVIRONMENT":    "production",
		"STORAGE_DRIVER": "memory",
	}

	setEnvVars(envVars)
	defer func() {
		var keys []string
		for k := range envVars {
			keys = append(keys, k)
		}
		clearEnvVars(keys)
	}()

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for memory storage driver in production")
	}

	if err.Error() != "memory storage driver is not allowed in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestLoadConfig_S3ExportRequiresBucket(t *testing.T) {
	envVars := map[string]string{
		"EXPORT_DRIVER": "s3",
	}
	clearEnvVars([]string{"EXPORT_S3_BUCKET", "ENVIRONMENT", "STORAGE_DRIVER"})

	setEnvVars(envVars)
	defer func() {
		var keys []string
		for k := range envVars {
			keys = append(keys, k)
		}
		clearEnvVars(keys)
	}()

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for s3 export driver without a bucket")
	}

	if err.Error() != "EXPORT_S3_BUCKET is required with the s3 export driver" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestConfig_GetRedisAddr(t *testing.T) {
	config := &Config{
		Redis: RedisConfig{
			Host: "redis.example.com",
			Port: "6380",
		},
	}

	expected := "redis.example.com:6380"
	actual := config.GetRedisAddr()

	if actual != expected {
		t.Errorf("Expected Redis addr '%s', got '%s'", expected, actual)
	}
}

func TestConfig_GetServerAddr(t *testing.T) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "9000",
		},
	}

	expected := "0.0.0.0:9000"
	actual := config.GetServerAddr()

	if actual != expected {
		t.Errorf("Expected server addr '%s', got '%s'", expected, actual)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"test", false},
		{"", false},
	}

	for _, test := range tests {
		config := &Config{
			Server: ServerConfig{
				Environment: test.environment,
			},
		}

		actual := config.IsProduction()
		if actual != test.expected {
			t.Errorf("For environment '%s', expected IsProduction() = %v, got %v",
				test.environment, test.expected, actual)
		}
	}
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	defaultValue := "default"

	os.Unsetenv(key)
	result := getEnv(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value '%s', got '%s'", defaultValue, result)
	}

	expectedValue := "custom_value"
	os.Setenv(key, expectedValue)
	defer os.Unsetenv(key)

	result = getEnv(key, defaultValue)
	if result != expectedValue {
		t.Errorf("Expected env value '%s', got '%s'", expectedValue, result)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	key := "TEST_INT_VAR"
	defaultValue := 42

	os.Unsetenv(key)
	result := getEnvAsInt(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %d, got %d", defaultValue, result)
	}

	os.Setenv(key, "100")
	defer os.Unsetenv(key)

	result = getEnvAsInt(key, defaultValue)
	if result != 100 {
		t.Errorf("Expected env value 100, got %d", result)
	}

	os.Setenv(key, "not-a-number")
	result = getEnvAsInt(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %d for invalid int, got %d", defaultValue, result)
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	key := "TEST_FLOAT_VAR"
	defaultValue := 2.5

	os.Unsetenv(key)
	result := getEnvAsFloat(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v, got %v", defaultValue, result)
	}

	os.Setenv(key, "0.25")
	defer os.Unsetenv(key)

	result = getEnvAsFloat(key, defaultValue)
	if result != 0.25 {
		t.Errorf("Expected env value 0.25, got %v", result)
	}

	os.Setenv(key, "not-a-float")
	result = getEnvAsFloat(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v for invalid float, got %v", defaultValue, result)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	key := "TEST_BOOL_VAR"
	defaultValue := true

	os.Unsetenv(key)
	result := getEnvAsBool(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v, got %v", defaultValue, result)
	}

	testCases := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{"True", true},
		{"False", false},
		{"invalid", defaultValue},
	}

	for _, tc := range testCases {
		os.Setenv(key, tc.value)
		result = getEnvAsBool(key, defaultValue)
		if result != tc.expected {
			t.Errorf("For value '%s', expected %v, got %v", tc.value, tc.expected, result)
		}
	}

	os.Unsetenv(key)
}

func TestGetEnvAsDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"
	defaultValue := 30 * time.Second

	os.Unsetenv(key)
	result := getEnvAsDuration(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v, got %v", defaultValue, result)
	}

	os.Setenv(key, "5m")
	defer os.Unsetenv(key)

	result = getEnvAsDuration(key, defaultValue)
	if result != 5*time.Minute {
		t.Errorf("Expected env value 5m, got %v", result)
	}

	os.Setenv(key, "not-a-duration")
	result = getEnvAsDuration(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v for invalid duration, got %v", defaultValue, result)
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	key := "TEST_SLICE_VAR"

	os.Unsetenv(key)
	result := getEnvAsSlice(key, nil)
	if result != nil {
		t.Errorf("Expected nil default, got %v", result)
	}

	os.Setenv(key, "one, two ,three")
	defer os.Unsetenv(key)

	result = getEnvAsSlice(key, nil)
	if len(result) != 3 || result[0] != "one" || result[1] != "two" || result[2] != "three" {
		t.Errorf("Expected [one two three], got %v", result)
	}

	os.Setenv(key, " , ,")
	result = getEnvAsSlice(key, []string{"fallback"})
	if len(result) != 1 || result[0] != "fallback" {
		t.Errorf("Expected fallback for blank entries, got %v", result)
	}
}

func TestConfigValidation_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		hasError bool
		errorMsg string
	}{
		{
			name: "Production with mongo storage",
			envVars: map[string]string{
				"ENVIRONMENT":    "production",
				"STORAGE_DRIVER": "mongo",
			},
			hasError: false,
		},
		{
			name: "Development with memory storage",
			envVars: map[string]string{
				"ENVIRONMENT":    "development",
				"STORAGE_DRIVER": "memory",
			},
			hasError: false,
		},
		{
			name: "S3 export with a bucket",
			envVars: map[string]string{
				"EXPORT_DRIVER":    "s3",
				"EXPORT_S3_BUCKET": "taskify-snapshots",
			},
			hasError: false,
		},
		{
			name: "Staging with memory storage",
			envVars: map[string]string{
				"ENVIRONMENT":    "staging",
				"STORAGE_DRIVER": "memory",
			},
			hasError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envVars := []string{"ENVIRONMENT", "STORAGE_DRIVER", "EXPORT_DRIVER", "EXPORT_S3_BUCKET"}
			clearEnvVars(envVars)

			setEnvVars(tt.envVars)
			defer func() {
				var keys []string
				for k := range tt.envVars {
					keys = append(keys, k)
				}
				clearEnvVars(keys)
			}()

			config, err := LoadConfig()

			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("Expected error '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				if config == nil {
					t.Error("Expected config to be loaded")
				}
			}
		})
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	envVars := map[string]string{
		"HOST":        "0.0.0.0",
		"PORT":        "8080",
		"ENVIRONMENT": "production",
	}
	setEnvVars(envVars)
	defer func() {
		var keys []string
		for k := range envVars {
			keys = append(keys, k)
		}
		clearEnvVars(keys)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadConfig()
		if err != nil {
			b.Fatalf("Failed to load config: %v", err)
		}
	}
}

func BenchmarkGetEnvAsInt(b *testing.B) {
	os.Setenv("BENCH_INT", "42")
	defer os.Unsetenv("BENCH_INT")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvAsInt("BENCH_INT", 0)
	}
}

func BenchmarkGetEnvAsDuration(b *testing.B) {
	os.Setenv("BENCH_DURATION", "30s")
	defer os.Unsetenv("BENCH_DURATION")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvAsDuration("BENCH_DURATION", time.Second)
	}
}
