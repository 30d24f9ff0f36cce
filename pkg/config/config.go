package config

import (
	"fmt"
	"os"
	"regexp"
	"seatgrid/pkg/backoff"
	"seatgrid/pkg/client"
	"seatgrid/pkg/logger"
	"strconv"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	Port string

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ReservationTimeout time.Duration
	SweepInterval      time.Duration
	LockTTL            time.Duration
	RequestRecordTTL   time.Duration
	SeatPrice          int
	MaxSeatsPerRequest int

	IntentsTopic    string
	ConsumerGroupID string

	Backoff backoff.Policy

	SubscribeRetryInterval time.Duration
	SubscribeMaxAttempts   int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:        getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:    getEnvStr(EnvRedisPassword, ""),
		RedisDB:          getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisConnTimeout: getEnvDuration(EnvRedisConnTimeout, DefaultRedisConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ReservationTimeout: getEnvDuration(EnvReservationTimeout, DefaultReservationTimeout),
		SweepInterval:      getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		LockTTL:            getEnvDuration(EnvLockTTL, DefaultLockTTL),
		RequestRecordTTL:   getEnvDuration(EnvRequestRecordTTL, DefaultRequestRecordTTL),
		SeatPrice:          getEnvNum(EnvSeatPrice, DefaultSeatPrice),
		MaxSeatsPerRequest: getEnvNum(EnvMaxSeatsPerRequest, DefaultMaxSeatsPerRequest),

		IntentsTopic:    getEnvStr(EnvIntentsTopic, DefaultIntentsTopic),
		ConsumerGroupID: getEnvStr(EnvConsumerGroupID, DefaultConsumerGroupID),

		Backoff: backoff.Policy{
			BaseDelay:             getEnvDuration(EnvBackoffBaseDelay, DefaultBackoffBaseDelay),
			Multiplier:            getEnvFloat(EnvBackoffMultiplier, DefaultBackoffMultiplier),
			MaxDelay:              getEnvDuration(EnvBackoffMaxDelay, DefaultBackoffMaxDelay),
			MaxAttempts:           getEnvNum(EnvBackoffMaxAttempts, DefaultBackoffMaxAttempts),
			SpecialCaseMultiplier: getEnvFloat(EnvBackoffSpecialMultiplier, DefaultBackoffSpecialMultiplier),
		},

		SubscribeRetryInterval: getEnvDuration(EnvSubscribeRetryInterval, DefaultSubscribeRetryInterval),
		SubscribeMaxAttempts:   getEnvNum(EnvSubscribeMaxAttempts, DefaultSubscribeMaxAttempts),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
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

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}
	if cfg.RedisConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RedisConnTimeout must be positive, got: %s", cfg.RedisConnTimeout))
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.ReservationTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReservationTimeout must be positive, got: %s", cfg.ReservationTimeout))
	}
	if cfg.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval must be positive, got: %s", cfg.SweepInterval))
	}
	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}
	if cfg.RequestRecordTTL <= 0 {
		errors = append(errors, fmt.Sprintf("RequestRecordTTL must be positive, got: %s", cfg.RequestRecordTTL))
	}
	if cfg.SeatPrice <= 0 {
		errors = append(errors, fmt.Sprintf("SeatPrice must be positive, got: %d", cfg.SeatPrice))
	}
	if cfg.MaxSeatsPerRequest <= 0 {
		errors = append(errors, fmt.Sprintf("MaxSeatsPerRequest must be positive, got: %d", cfg.MaxSeatsPerRequest))
	}

	if cfg.IntentsTopic == "" {
		errors = append(errors, "IntentsTopic cannot be empty")
	}
	if cfg.ConsumerGroupID == "" {
		errors = append(errors, "ConsumerGroupID cannot be empty")
	}

	if cfg.Backoff.BaseDelay <= 0 {
		errors = append(errors, fmt.Sprintf("Backoff.BaseDelay must be positive, got: %s", cfg.Backoff.BaseDelay))
	}
	if cfg.Backoff.Multiplier < 1 {
		errors = append(errors, fmt.Sprintf("Backoff.Multiplier must be at least 1, got: %g", cfg.Backoff.Multiplier))
	}
	if cfg.Backoff.MaxDelay < cfg.Backoff.BaseDelay {
		errors = append(errors, fmt.Sprintf("Backoff.MaxDelay (%s) must be >= Backoff.BaseDelay (%s)", cfg.Backoff.MaxDelay, cfg.Backoff.BaseDelay))
	}
	if cfg.Backoff.MaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("Backoff.MaxAttempts must be positive, got: %d", cfg.Backoff.MaxAttempts))
	}

	if cfg.SubscribeRetryInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SubscribeRetryInterval must be positive, got: %s", cfg.SubscribeRetryInterval))
	}
	if cfg.SubscribeMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("SubscribeMaxAttempts must be positive, got: %d", cfg.SubscribeMaxAttempts))
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
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"reservation_timeout", cfg.ReservationTimeout,
		"sweep_interval", cfg.SweepInterval,
		"lock_ttl", cfg.LockTTL,
		"request_record_ttl", cfg.RequestRecordTTL,
		"seat_price", cfg.SeatPrice,
		"max_seats_per_request", cfg.MaxSeatsPerRequest,
		"intents_topic", cfg.IntentsTopic,
		"consumer_group_id", cfg.ConsumerGroupID,
		"backoff_base_delay", cfg.Backoff.BaseDelay,
		"backoff_multiplier", cfg.Backoff.Multiplier,
		"backoff_max_delay", cfg.Backoff.MaxDelay,
		"backoff_max_attempts", cfg.Backoff.MaxAttempts,
		"backoff_special_multiplier", cfg.Backoff.SpecialCaseMultiplier,
		"subscribe_retry_interval", cfg.SubscribeRetryInterval,
		"subscribe_max_attempts", cfg.SubscribeMaxAttempts,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
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

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
