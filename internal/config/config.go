// Package config loads the pipeline's runtime configuration from
// environment variables (optionally via a .env file), overlaid with viper
// for config-file support, plus the YAML-driven confidence threshold table
// in thresholds.go and the options-bag schema in optionsschema.go.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the pipeline's full runtime configuration.
type Config struct {
	// Storage
	MongoURI               string
	DBName                 string
	CompletedTaskRetention time.Duration
	GCSweepInterval        time.Duration

	// Queue transport and concurrency
	RedisURL         string
	RedisPassword    string
	RedisDB          int
	QueueConcurrency map[string]int // priority name -> worker slots

	// Retry policy
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	// Chunking
	DefaultChunkSize            int
	ChunkOverlap                int
	ChunkPoolSize               int
	SemanticSimilarityThreshold float64

	// OCR engines
	GeminiAPIKey           string
	GeminiModel            string
	OCRServiceURL          string
	OCRServiceEnabled      bool
	OCRTimeout             time.Duration
	OCRConfidenceThreshold float64

	// Validation
	ThresholdTablePath   string
	MaxReprocessAttempts int
	SamplingCron         string
	SamplingSize         int

	// Ambient
	LogLevel string
	Env      string

	TraceEndpoint   string
	TraceSampleRate float64
}

// Load reads configuration the way the teacher reads it: a .env file if
// present, then environment variables, with viper layered on top so a
// config file (docproc.yaml in the working directory or /etc/docproc) can
// override any key without code changes.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("docproc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/docproc")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	setDefaults(v)

	cfg := &Config{
		MongoURI:               v.GetString("mongo_uri"),
		DBName:                 v.GetString("db_name"),
		CompletedTaskRetention: v.GetDuration("completed_task_retention"),
		GCSweepInterval:        v.GetDuration("gc_sweep_interval"),

		RedisURL:      v.GetString("redis_url"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		QueueConcurrency: map[string]int{
			"critical":   v.GetInt("queue_concurrency.critical"),
			"high":       v.GetInt("queue_concurrency.high"),
			"normal":     v.GetInt("queue_concurrency.normal"),
			"low":        v.GetInt("queue_concurrency.low"),
			"background": v.GetInt("queue_concurrency.background"),
		},

		RetryMaxAttempts:   v.GetInt("retry_max_attempts"),
		RetryBaseDelay:     v.GetDuration("retry_base_delay"),
		RetryMaxDelay:      v.GetDuration("retry_max_delay"),
		BreakerMaxFailures: uint32(v.GetUint("breaker_max_failures")),
		BreakerOpenTimeout: v.GetDuration("breaker_open_timeout"),

		DefaultChunkSize:            v.GetInt("default_chunk_size"),
		ChunkOverlap:                v.GetInt("chunk_overlap"),
		ChunkPoolSize:               v.GetInt("chunk_pool_size"),
		SemanticSimilarityThreshold: v.GetFloat64("semantic_similarity_threshold"),

		GeminiAPIKey:           v.GetString("gemini_api_key"),
		GeminiModel:            v.GetString("gemini_model"),
		OCRServiceURL:          v.GetString("ocr_service_url"),
		OCRServiceEnabled:      v.GetBool("ocr_service_enabled"),
		OCRTimeout:             v.GetDuration("ocr_timeout"),
		OCRConfidenceThreshold: v.GetFloat64("ocr_confidence_threshold"),

		ThresholdTablePath:   v.GetString("threshold_table_path"),
		MaxReprocessAttempts: v.GetInt("max_reprocess_attempts"),
		SamplingCron:         v.GetString("sampling_cron"),
		SamplingSize:         v.GetInt("sampling_size"),

		LogLevel: v.GetString("log_level"),
		Env:      v.GetString("env"),

		TraceEndpoint:   v.GetString("trace_endpoint"),
		TraceSampleRate: v.GetFloat64("trace_sample_rate"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mongo_uri", "mongodb://localhost:27017/docproc")
	v.SetDefault("db_name", "docproc")
	v.SetDefault("completed_task_retention", 24*time.Hour)
	v.SetDefault("gc_sweep_interval", 1*time.Hour)

	v.SetDefault("redis_url", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("queue_concurrency.critical", 4)
	v.SetDefault("queue_concurrency.high", 8)
	v.SetDefault("queue_concurrency.normal", 8)
	v.SetDefault("queue_concurrency.low", 4)
	v.SetDefault("queue_concurrency.background", 2)

	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay", 2*time.Second)
	v.SetDefault("retry_max_delay", 30*time.Second)
	v.SetDefault("breaker_max_failures", 5)
	v.SetDefault("breaker_open_timeout", 30*time.Second)

	v.SetDefault("default_chunk_size", 5)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("chunk_pool_size", 4)
	v.SetDefault("semantic_similarity_threshold", 0.7)

	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("ocr_service_url", "http://localhost:8001")
	v.SetDefault("ocr_service_enabled", true)
	v.SetDefault("ocr_timeout", 300*time.Second)
	v.SetDefault("ocr_confidence_threshold", 0.7)

	v.SetDefault("threshold_table_path", "")
	v.SetDefault("max_reprocess_attempts", 3)
	v.SetDefault("sampling_cron", "0 */15 * * * *")
	v.SetDefault("sampling_size", 50)

	v.SetDefault("log_level", "info")
	v.SetDefault("env", "development")

	v.SetDefault("trace_endpoint", "localhost:4317")
	v.SetDefault("trace_sample_rate", 0.1)
}
