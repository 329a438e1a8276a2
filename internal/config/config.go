package config

import (
	"os"
	"strconv"
	"time"
)

type UnderwritingServiceConfig struct {
	Port         string
	APIKey       string
	PostgresCfg  PostgresConfig
	RabbitMQCfg  RabbitMQConfig
	RedisCfg     RedisConfig
	MinioCfg     MinioConfig
	GeminiAPICfg GeminiAPIConfig
	WorkflowCfg  WorkflowConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type GeminiAPIConfig struct {
	APIKey    string
	FlashName string
	ProName   string
}

// WorkflowConfig carries the tuning the stage engine and the sequence
// allocator need. Identifier prefixes are deployment policy, not code.
type WorkflowConfig struct {
	MaxGenerateAttempts int
	RetryBackoff        time.Duration
	CallTimeout         time.Duration
	QuotePrefix         string
	PolicyPrefix        string
	SequenceIncrement   int64
	SequenceStart       int64
	StaleAfter          time.Duration
	SweepSchedule       string
}

func New() *UnderwritingServiceConfig {
	return &UnderwritingServiceConfig{
		Port:   getEnvOrDefault("PORT", "8086"),
		APIKey: getEnvOrDefault("API_KEY", ""),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "underwriting"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		GeminiAPICfg: GeminiAPIConfig{
			APIKey:    getEnvOrDefault("GEMINI_KEY", ""),
			FlashName: getEnvOrDefault("GEMINI_FLASH_MODEL", "gemini-2.5-flash"),
			ProName:   getEnvOrDefault("GEMINI_PRO_MODEL", "gemini-2.5-pro"),
		},
		WorkflowCfg: WorkflowConfig{
			MaxGenerateAttempts: getEnvIntOrDefault("WORKFLOW_MAX_GENERATE_ATTEMPTS", 3),
			RetryBackoff:        getEnvDurationOrDefault("WORKFLOW_RETRY_BACKOFF", 2*time.Second),
			CallTimeout:         getEnvDurationOrDefault("WORKFLOW_CALL_TIMEOUT", 60*time.Second),
			QuotePrefix:         getEnvOrDefault("QUOTE_NUMBER_PREFIX", "QUOTE"),
			PolicyPrefix:        getEnvOrDefault("POLICY_NUMBER_PREFIX", "MV"),
			SequenceIncrement:   int64(getEnvIntOrDefault("SEQUENCE_INCREMENT", 10)),
			SequenceStart:       int64(getEnvIntOrDefault("SEQUENCE_DEFAULT_START", 100000)),
			StaleAfter:          getEnvDurationOrDefault("CHECKPOINT_STALE_AFTER", 72*time.Hour),
			SweepSchedule:       getEnvOrDefault("CHECKPOINT_SWEEP_SCHEDULE", "0 2 * * *"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
