package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "orbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Booking lifecycle
	DefaultIdempotencyTTL       = 24 * time.Hour
	DefaultUnconfirmedTimeout   = 15 * time.Minute
	DefaultSweepInterval        = 1 * time.Minute
	DefaultSweepBatchSize       = 100
	DefaultReservationRetention = 30 * 24 * time.Hour
	DefaultPurgeInterval        = 1 * time.Hour

	// Outbox publisher
	DefaultOutboxPollInterval      = 30 * time.Second
	DefaultOutboxBatchSize         = 100
	DefaultOutboxMaxRetries        = 3
	DefaultOutboxProcessingTimeout = 5 * time.Minute
	DefaultOutboxCleanupInterval   = 1 * time.Hour
	DefaultOutboxRetention         = 7 * 24 * time.Hour

	// External availability collaborators
	DefaultAvailabilityTimeout = 5 * time.Second
	DefaultStaffServiceURL     = "http://localhost:8081"
	DefaultRoomsServiceURL     = "http://localhost:8082"

	DefaultPaginationLimit = 100
	DefaultLogLevel        = "info"
)
