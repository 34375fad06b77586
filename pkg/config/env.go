package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvRedisURL = "REDIS_URL"

	EnvJWTSecret          = "JWT_SECRET"
	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"

	EnvKafkaBookingTopic    = "KAFKA_BOOKING_TOPIC"
	EnvKafkaBookingDLQTopic = "KAFKA_BOOKING_DLQ_TOPIC"
	EnvKafkaEnabled         = "KAFKA_ENABLED"

	EnvBookingTimeZone  = "BOOKING_TIME_ZONE"
	EnvMaxProvisionDays = "MAX_PROVISION_DAYS"

	EnvMetricsEnabled = "METRICS_ENABLED"
	EnvMetricsPath    = "METRICS_PATH"
)
