package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
)

type settings struct {
	service  string
	httpPort string
	grpcPort string
	logger   runtime.LoggerConfig

	databaseURL string
	dbMaxConns  int

	redisAddr     string
	redisPassword string
	redisDB       int

	kafkaBrokers []string
	kafkaGroupID string

	location    *time.Location
	cadence     time.Duration
	cacheTTL    time.Duration
	horizonDays int

	currency           string
	stripeSecretKey    string
	stripeWebhookKey   string
	stripeTolerance    time.Duration
	checkoutSuccessURL string
	checkoutCancelURL  string
	checkoutTTL        time.Duration

	jwtSecret      string
	ratePerMinute  int
	behindProxy    bool
	requestTimeout time.Duration
}

func loadSettings() (settings, error) {
	s := settings{
		service:            config.String("SERVICE_NAME", "booking-service"),
		redisAddr:          config.String("REDIS_ADDR", ""),
		redisPassword:      config.String("REDIS_PASSWORD", ""),
		kafkaBrokers:       config.List("KAFKA_BROKERS"),
		currency:           config.String("PAYMENT_CURRENCY", "usd"),
		stripeSecretKey:    config.String("STRIPE_SECRET_KEY", ""),
		stripeWebhookKey:   config.String("STRIPE_WEBHOOK_SECRET", ""),
		checkoutSuccessURL: config.String("CHECKOUT_SUCCESS_URL", "http://localhost:3000/booking/success"),
		checkoutCancelURL:  config.String("CHECKOUT_CANCEL_URL", "http://localhost:3000/booking/cancel"),
		jwtSecret:          config.String("JWT_SECRET", ""),
		behindProxy:        config.Bool("TRUST_FORWARDED_FOR", false),
		logger: runtime.LoggerConfig{
			Level: config.String("LOG_LEVEL", "info"),
			File:  config.String("LOG_FILE", ""),
		},
	}
	s.kafkaGroupID = config.String("KAFKA_GROUP_ID", s.service+"-cache")

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	s.httpPort, err = config.Port("PORT", "8083")
	collect(err)
	s.grpcPort, err = config.Port("GRPC_PORT", "9093")
	collect(err)
	s.databaseURL, err = config.RequiredString("DATABASE_URL")
	collect(err)
	s.dbMaxConns, err = config.Int("DB_MAX_CONNS", 10)
	collect(err)
	if raw := config.String("REDIS_DB", "0"); raw != "0" {
		s.redisDB, err = strconv.Atoi(raw)
		if err != nil || s.redisDB < 0 {
			collect(fmt.Errorf("REDIS_DB must be a non-negative integer (got %q)", raw))
		}
	}
	s.location, err = config.Location("SALON_TIMEZONE", "UTC")
	collect(err)
	s.cadence, err = config.Duration("SLOT_CADENCE_MINUTES", time.Minute, 30)
	collect(err)
	s.cacheTTL, err = config.Duration("AVAILABILITY_CACHE_TTL_SECONDS", time.Second, 300)
	collect(err)
	s.horizonDays, err = config.Int("AVAILABLE_DATES_HORIZON_DAYS", 30)
	collect(err)
	s.stripeTolerance, err = config.Duration("STRIPE_WEBHOOK_TOLERANCE_SECONDS", time.Second, 300)
	collect(err)
	s.checkoutTTL, err = config.Duration("CHECKOUT_SESSION_TTL_MINUTES", time.Minute, 30)
	collect(err)
	s.ratePerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120)
	collect(err)
	s.requestTimeout, err = config.Duration("HTTP_REQUEST_TIMEOUT_SECONDS", time.Second, 10)
	collect(err)
	s.logger.MaxSizeMB, err = config.Int("LOG_FILE_MAX_SIZE_MB", 100)
	collect(err)

	return s, errors.Join(errs...)
}
