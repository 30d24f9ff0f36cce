package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvRedisDB          = "REDIS_DB"
	EnvRedisConnTimeout = "REDIS_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvReservationTimeout = "RESERVATION_TIMEOUT"
	EnvSweepInterval      = "SWEEP_INTERVAL"
	EnvLockTTL            = "LOCK_TTL"
	EnvRequestRecordTTL   = "REQUEST_RECORD_TTL"
	EnvSeatPrice          = "SEAT_PRICE"
	EnvMaxSeatsPerRequest = "MAX_SEATS_PER_REQUEST"

	EnvIntentsTopic    = "KAFKA_INTENTS_TOPIC"
	EnvConsumerGroupID = "KAFKA_CONSUMER_GROUP_ID"

	EnvBackoffBaseDelay         = "BACKOFF_BASE_DELAY"
	EnvBackoffMultiplier        = "BACKOFF_MULTIPLIER"
	EnvBackoffMaxDelay          = "BACKOFF_MAX_DELAY"
	EnvBackoffMaxAttempts       = "BACKOFF_MAX_ATTEMPTS"
	EnvBackoffSpecialMultiplier = "BACKOFF_SPECIAL_MULTIPLIER"

	EnvSubscribeRetryInterval = "SUBSCRIBE_RETRY_INTERVAL"
	EnvSubscribeMaxAttempts   = "SUBSCRIBE_MAX_ATTEMPTS"
)
