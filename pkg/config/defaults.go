package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "noqbot"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultCORSAllowedOrigins = "*"

	DefaultKafkaBookingTopic = "booking-events"

	DefaultBookingTimeZone  = "UTC"
	DefaultMaxProvisionDays = 60

	DefaultMetricsPath = "/metrics"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Booking status values.
const (
	Pending   = "pending"
	Confirmed = "confirmed"
	Cancelled = "cancelled"
	Completed = "completed"
)

// Booking source values.
const (
	SourceWhatsApp = "whatsapp"
	SourceManual   = "manual"
)

// Operator roles carried in access tokens.
const (
	RoleSuperAdmin  = "super_admin"
	RoleClientAdmin = "client_admin"
	RoleStaff       = "staff"
)
