package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "seatgrid"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDB          = 0
	DefaultRedisConnTimeout = 5 * time.Second

	DefaultPort = "8080"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// How long a pending reservation holds its seats before the sweeper
	// may expire it.
	DefaultReservationTimeout = 10 * time.Minute
	DefaultSweepInterval      = 1 * time.Minute
	DefaultLockTTL            = 30 * time.Second
	DefaultRequestRecordTTL   = 1 * time.Hour
	DefaultSeatPrice          = 100
	DefaultMaxSeatsPerRequest = 10

	DefaultIntentsTopic    = "reservation-intents"
	DefaultConsumerGroupID = "seatgrid-reservations"

	DefaultBackoffBaseDelay         = 200 * time.Millisecond
	DefaultBackoffMultiplier        = 2.0
	DefaultBackoffMaxDelay          = 10 * time.Second
	DefaultBackoffMaxAttempts       = 5
	DefaultBackoffSpecialMultiplier = 3.0

	DefaultSubscribeRetryInterval = 5 * time.Second
	DefaultSubscribeMaxAttempts   = 12

	DefaultPaginationLimit = 100
)
