package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/redisx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

func main() {
	cfg, err := loadSettings()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.service, cfg.logger)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}

	pool, err := db.Open(ctx, cfg.databaseURL, db.Options{MaxConns: int32(cfg.dbMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var rdb *redis.Client
	if cfg.redisAddr != "" {
		rdb, err = redisx.Open(ctx, redisx.Options{Addr: cfg.redisAddr, Password: cfg.redisPassword, DB: cfg.redisDB})
		if err != nil {
			logger.Error("redis connection failed; using in-process cache", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
		}
	}
	if len(cfg.kafkaBrokers) > 0 {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.kafkaBrokers)})
	}

	outboxRepo := outbox.NewRepository()
	repo := storage.NewRepository(pool, outboxRepo)

	var cache availability.Cache = availability.NewMemoryCache(time.Now)
	if rdb != nil {
		cache = availability.NewRedisCache(rdb, cfg.service)
	}
	engine := availability.NewEngine(repo, cache, availability.Config{
		Location:    cfg.location,
		Cadence:     cfg.cadence,
		CacheTTL:    cfg.cacheTTL,
		HorizonDays: cfg.horizonDays,
	}, logger)

	var gateway payment.Gateway
	if cfg.stripeSecretKey != "" {
		gw, err := payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:  cfg.stripeSecretKey,
			SuccessURL: cfg.checkoutSuccessURL,
			CancelURL:  cfg.checkoutCancelURL,
			SessionTTL: cfg.checkoutTTL,
		})
		if err != nil {
			logger.Error("stripe gateway init failed", "err", err)
			os.Exit(1)
		}
		gateway = gw
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; payments settle through the local webhook only")
	}

	lifecycle := appointments.New(time.Now)
	guard := booking.NewGuard(repo, gateway, lifecycle, engine, booking.Config{Location: cfg.location, Currency: cfg.currency}, logger)
	reconciler := payment.NewReconciler(repo, lifecycle, engine, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	// Each replica needs every event to clear its own cache; a shared Redis cache
	// is already cleared by the replica that committed.
	if rdb == nil {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: cfg.kafkaBrokers,
			GroupID: cfg.kafkaGroupID + "-" + hostname(),
			Topics:  []string{outbox.EventAppointmentBooked, outbox.EventAppointmentCanceled},
		}, consumer.InvalidateAvailability(engine))
		go eventConsumer.Run(ctx)
	}

	if err := startGrpcServer(ctx, logger, cfg.grpcPort, engine); err != nil {
		logger.Error("grpc server failed to start", "err", err)
		os.Exit(1)
	}

	verifier := auth.Verifier{Secret: cfg.jwtSecret}
	availabilityHandler := handlers.NewAvailabilityHandler(engine, logger)
	bookingHandler := handlers.NewBookingHandler(guard, logger)
	webhookHandler := handlers.NewWebhookHandler(reconciler, handlers.WebhookConfig{
		StripeSecret:    cfg.stripeWebhookKey,
		StripeTolerance: cfg.stripeTolerance,
	}, logger)

	var limit httpx.Middleware
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, cfg.ratePerMinute, time.Minute, cfg.service+":rl").BehindProxy(cfg.behindProxy).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(cfg.ratePerMinute, time.Minute).BehindProxy(cfg.behindProxy).Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/availability", availabilityHandler.Slots)
	mux.HandleFunc("/api/v1/availability/dates", availabilityHandler.Dates)
	mux.Handle("/api/v1/bookings", limit(verifier.Optional(http.HandlerFunc(bookingHandler.Create))))
	mux.Handle("/api/v1/appointments/cancel", verifier.Required(http.HandlerFunc(bookingHandler.Cancel)))
	mux.HandleFunc("/api/v1/payments/webhooks/stripe", webhookHandler.Stripe)
	mux.Handle("/api/v1/payments/webhooks/local", verifier.Required(http.HandlerFunc(webhookHandler.Local), auth.RoleAdmin))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(cfg.requestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.httpPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	_ = runtime.Shutdown(logger, 10*time.Second,
		runtime.ShutdownStep{Name: "http", Stop: srv.Shutdown},
		runtime.ShutdownStep{Name: "otel", Stop: otelShutdown},
	)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
