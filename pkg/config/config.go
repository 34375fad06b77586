package config

import (
	"fmt"
	"noqbot/pkg/client"
	"noqbot/pkg/logger"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisURL string

	JWTSecret          string
	CORSAllowedOrigins []string

	KafkaEnabled         bool
	KafkaBookingTopic    string
	KafkaBookingDLQTopic string

	BookingTimeZone  string
	Location         *time.Location
	MaxProvisionDays int

	MetricsEnabled bool
	MetricsPath    string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env file is normal in containers.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		RedisURL: getEnvStr(EnvRedisURL, ""),

		JWTSecret:          getEnvStr(EnvJWTSecret, ""),
		CORSAllowedOrigins: getEnvList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),

		KafkaEnabled:         getEnvBool(EnvKafkaEnabled, false),
		KafkaBookingTopic:    getEnvStr(EnvKafkaBookingTopic, DefaultKafkaBookingTopic),
		KafkaBookingDLQTopic: getEnvStr(EnvKafkaBookingDLQTopic, ""),

		BookingTimeZone:  getEnvStr(EnvBookingTimeZone, DefaultBookingTimeZone),
		MaxProvisionDays: getEnvNum(EnvMaxProvisionDays, DefaultMaxProvisionDays),

		MetricsEnabled: getEnvBool(EnvMetricsEnabled, true),
		MetricsPath:    getEnvStr(EnvMetricsPath, DefaultMetricsPath),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the shared Redis client when REDIS_URL is configured.
func (cfg *Config) SetRedis() {
	if cfg.RedisURL == "" {
		cfg.Log.Info("Redis not configured, using in-memory idempotency store")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.RedisURL != "" && !regexp.MustCompile(`^rediss?://`).MatchString(cfg.RedisURL) {
		errors = append(errors, "RedisURL must start with 'redis://' or 'rediss://'")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.MaxProvisionDays <= 0 || cfg.MaxProvisionDays > 366 {
		errors = append(errors, fmt.Sprintf("MaxProvisionDays must be between 1 and 366, got: %d", cfg.MaxProvisionDays))
	}

	loc, err := time.LoadLocation(cfg.BookingTimeZone)
	if err != nil {
		errors = append(errors, fmt.Sprintf("BookingTimeZone must be a valid IANA zone, got: %s", cfg.BookingTimeZone))
	} else {
		cfg.Location = loc
	}

	if cfg.KafkaEnabled && cfg.KafkaBookingTopic == "" {
		errors = append(errors, "KafkaBookingTopic cannot be empty when Kafka is enabled")
	}
	if cfg.MetricsEnabled && !strings.HasPrefix(cfg.MetricsPath, "/") {
		errors = append(errors, fmt.Sprintf("MetricsPath must start with '/', got: %s", cfg.MetricsPath))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"redis_url", redactURI(cfg.RedisURL),
		"jwt_secret_set", cfg.JWTSecret != "",
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_booking_topic", cfg.KafkaBookingTopic,
		"booking_time_zone", cfg.BookingTimeZone,
		"max_provision_days", cfg.MaxProvisionDays,
		"metrics_enabled", cfg.MetricsEnabled,
		"metrics_path", cfg.MetricsPath,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func redactURI(uri string) string {
	credentialRegex := regexp.MustCompile(`^([a-z+]+://)[^@/]*@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
