package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvIdempotencyTTL       = "IDEMPOTENCY_TTL"
	EnvUnconfirmedTimeout   = "UNCONFIRMED_TIMEOUT"
	EnvSweepInterval        = "SWEEP_INTERVAL"
	EnvSweepBatchSize       = "SWEEP_BATCH_SIZE"
	EnvReservationRetention = "RESERVATION_RETENTION"
	EnvPurgeInterval        = "PURGE_INTERVAL"

	EnvOutboxPollInterval      = "OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize         = "OUTBOX_BATCH_SIZE"
	EnvOutboxMaxRetries        = "OUTBOX_MAX_RETRIES"
	EnvOutboxProcessingTimeout = "OUTBOX_PROCESSING_TIMEOUT"
	EnvOutboxCleanupInterval   = "OUTBOX_CLEANUP_INTERVAL"
	EnvOutboxRetention         = "OUTBOX_RETENTION"

	EnvAvailabilityTimeout = "AVAILABILITY_TIMEOUT"
	EnvStaffServiceURL     = "STAFF_SERVICE_URL"
	EnvRoomsServiceURL     = "ROOMS_SERVICE_URL"
)
