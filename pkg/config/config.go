package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"orbook/pkg/client"
	"orbook/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	IdempotencyTTL       time.Duration
	UnconfirmedTimeout   time.Duration
	SweepInterval        time.Duration
	SweepBatchSize       int
	ReservationRetention time.Duration
	PurgeInterval        time.Duration

	OutboxPollInterval      time.Duration
	OutboxBatchSize         int
	OutboxMaxRetries        int
	OutboxProcessingTimeout time.Duration
	OutboxCleanupInterval   time.Duration
	OutboxRetention         time.Duration

	AvailabilityTimeout time.Duration
	StaffServiceURL     string
	RoomsServiceURL     string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		IdempotencyTTL:       getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		UnconfirmedTimeout:   getEnvDuration(EnvUnconfirmedTimeout, DefaultUnconfirmedTimeout),
		SweepInterval:        getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweepBatchSize:       getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),
		ReservationRetention: getEnvDuration(EnvReservationRetention, DefaultReservationRetention),
		PurgeInterval:        getEnvDuration(EnvPurgeInterval, DefaultPurgeInterval),

		OutboxPollInterval:      getEnvDuration(EnvOutboxPollInterval, DefaultOutboxPollInterval),
		OutboxBatchSize:         getEnvNum(EnvOutboxBatchSize, DefaultOutboxBatchSize),
		OutboxMaxRetries:        getEnvNum(EnvOutboxMaxRetries, DefaultOutboxMaxRetries),
		OutboxProcessingTimeout: getEnvDuration(EnvOutboxProcessingTimeout, DefaultOutboxProcessingTimeout),
		OutboxCleanupInterval:   getEnvDuration(EnvOutboxCleanupInterval, DefaultOutboxCleanupInterval),
		OutboxRetention:         getEnvDuration(EnvOutboxRetention, DefaultOutboxRetention),

		AvailabilityTimeout: getEnvDuration(EnvAvailabilityTimeout, DefaultAvailabilityTimeout),
		StaffServiceURL:     getEnvStr(EnvStaffServiceURL, DefaultStaffServiceURL),
		RoomsServiceURL:     getEnvStr(EnvRoomsServiceURL, DefaultRoomsServiceURL),

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

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}

	durations := map[string]time.Duration{
		"MongoConnTimeout":        cfg.MongoConnTimeout,
		"RequestTimeout":          cfg.RequestTimeout,
		"ReadTimeout":             cfg.ReadTimeout,
		"WriteTimeout":            cfg.WriteTimeout,
		"IdleTimeout":             cfg.IdleTimeout,
		"ShutdownTimeout":         cfg.ShutdownTimeout,
		"IdempotencyTTL":          cfg.IdempotencyTTL,
		"UnconfirmedTimeout":      cfg.UnconfirmedTimeout,
		"SweepInterval":           cfg.SweepInterval,
		"ReservationRetention":    cfg.ReservationRetention,
		"PurgeInterval":           cfg.PurgeInterval,
		"OutboxPollInterval":      cfg.OutboxPollInterval,
		"OutboxProcessingTimeout": cfg.OutboxProcessingTimeout,
		"OutboxCleanupInterval":   cfg.OutboxCleanupInterval,
		"OutboxRetention":         cfg.OutboxRetention,
		"AvailabilityTimeout":     cfg.AvailabilityTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if cfg.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("OutboxBatchSize must be positive, got: %d", cfg.OutboxBatchSize))
	}
	if cfg.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("SweepBatchSize must be positive, got: %d", cfg.SweepBatchSize))
	}
	if cfg.OutboxMaxRetries <= 0 {
		errs = append(errs, fmt.Sprintf("OutboxMaxRetries must be positive, got: %d", cfg.OutboxMaxRetries))
	}
	if cfg.StaffServiceURL == "" {
		errs = append(errs, "StaffServiceURL cannot be empty")
	}
	if cfg.RoomsServiceURL == "" {
		errs = append(errs, "RoomsServiceURL cannot be empty")
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, e := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, e)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"unconfirmed_timeout", cfg.UnconfirmedTimeout,
		"sweep_interval", cfg.SweepInterval,
		"sweep_batch_size", cfg.SweepBatchSize,
		"reservation_retention", cfg.ReservationRetention,
		"purge_interval", cfg.PurgeInterval,
		"outbox_poll_interval", cfg.OutboxPollInterval,
		"outbox_batch_size", cfg.OutboxBatchSize,
		"outbox_max_retries", cfg.OutboxMaxRetries,
		"outbox_processing_timeout", cfg.OutboxProcessingTimeout,
		"outbox_cleanup_interval", cfg.OutboxCleanupInterval,
		"outbox_retention", cfg.OutboxRetention,
		"availability_timeout", cfg.AvailabilityTimeout,
		"staff_service_url", cfg.StaffServiceURL,
		"rooms_service_url", cfg.RoomsServiceURL,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
