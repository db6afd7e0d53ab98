package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/r16a/metis/internal/audit"
	audithandler "github.com/r16a/metis/internal/audit/handler"
	auditmetrics "github.com/r16a/metis/internal/audit/metrics"
	"github.com/r16a/metis/internal/audit/relay"
	auditmemory "github.com/r16a/metis/internal/audit/store/memory"
	auditpostgres "github.com/r16a/metis/internal/audit/store/postgres"
	bookinghandler "github.com/r16a/metis/internal/booking/handler"
	bookingservice "github.com/r16a/metis/internal/booking/service"
	bookingstore "github.com/r16a/metis/internal/booking/store"
	jwttoken "github.com/r16a/metis/internal/jwt_token"
	offeringhandler "github.com/r16a/metis/internal/offering/handler"
	offeringservice "github.com/r16a/metis/internal/offering/service"
	offeringstore "github.com/r16a/metis/internal/offering/store"
	"github.com/r16a/metis/internal/platform/config"
	"github.com/r16a/metis/internal/platform/httpserver"
	"github.com/r16a/metis/internal/platform/logger"
	"github.com/r16a/metis/internal/platform/middleware"
	"github.com/r16a/metis/internal/platform/postgres"
	platformredis "github.com/r16a/metis/internal/platform/redis"
	"github.com/r16a/metis/internal/ratelimit"
	tenanthandler "github.com/r16a/metis/internal/tenant/handler"
	tenantmetrics "github.com/r16a/metis/internal/tenant/metrics"
	tenantservice "github.com/r16a/metis/internal/tenant/service"
	tenantstore "github.com/r16a/metis/internal/tenant/store"
	userhandler "github.com/r16a/metis/internal/user/handler"
	userservice "github.com/r16a/metis/internal/user/service"
	userstore "github.com/r16a/metis/internal/user/store"
	"github.com/r16a/metis/pkg/tx"
)

const (
	auditSinkCapacity = 1024
	adminRateLimit    = 120
	adminRateWindow   = time.Minute
	shutdownTimeout   = 10 * time.Second
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := run(context.Background(), config.FromEnv(), log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditMetrics := auditmetrics.New()
	tenantMetrics := tenantmetrics.New()
	sink := make(chan audit.Record, auditSinkCapacity)

	var (
		auditStore audit.Store

		tenantStore tenantservice.TenantStore
		userStore   userservice.Store
		offerings   offeringservice.Store
		bookings    bookingservice.Store

		userCleaner     tenantservice.UserCleaner
		offeringCleaner tenantservice.OfferingCleaner
		bookingCleaner  tenantservice.BookingCleaner

		runner tenantservice.TxRunner
	)

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		auditStore = auditpostgres.New(db)

		tenantStore = tenantstore.NewPostgres(db)
		users := userstore.NewPostgres(db)
		userStore, userCleaner = users, users
		offeringPg := offeringstore.NewPostgres(db)
		offerings, offeringCleaner = offeringPg, offeringPg
		bookingPg := bookingstore.NewPostgres(db)
		bookings, bookingCleaner = bookingPg, bookingPg

		runner = tx.NewRunner(db, config.DefaultRequestTimeout)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")

		auditStore = auditmemory.NewInMemoryStore()

		tenants := tenantstore.NewInMemory()
		users := userstore.NewInMemory()
		offeringMem := offeringstore.NewInMemory()
		bookingMem := bookingstore.NewInMemory()

		tenantStore = tenants
		userStore, userCleaner = users, users
		offerings, offeringCleaner = offeringMem, offeringMem
		bookings, bookingCleaner = bookingMem, bookingMem

		runner = tenantservice.NewMemoryTxRunner(tenants, users, offeringMem, bookingMem)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var limiter *ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.New(redisClient.Client, adminRateLimit, adminRateWindow, ratelimit.WithLogger(log))
	}

	writer := audit.NewWriter(auditStore,
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
		audit.WithSink(sink),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "metis")

	tenantSvc := tenantservice.New(tenantStore, userCleaner, offeringCleaner, bookingCleaner,
		tenantservice.WithLogger(log),
		tenantservice.WithAuditLogger(writer),
		tenantservice.WithMetrics(tenantMetrics),
		tenantservice.WithTxRunner(runner),
	)
	userSvc := userservice.New(userStore,
		userservice.WithLogger(log),
		userservice.WithAuditLogger(writer),
		userservice.WithTenantChecker(tenantSvc),
	)
	offeringSvc := offeringservice.New(offerings,
		offeringservice.WithLogger(log),
		offeringservice.WithAuditLogger(writer),
		offeringservice.WithTenantChecker(tenantSvc),
	)
	bookingSvc := bookingservice.New(bookings, offerings, userStore,
		bookingservice.WithLogger(log),
		bookingservice.WithAuditLogger(writer),
	)

	tenantHandler := tenanthandler.New(tenantSvc, log)
	userHandler := userhandler.New(userSvc, jwtService, log)
	offeringHandler := offeringhandler.New(offeringSvc, log)
	bookingHandler := bookinghandler.New(bookingSvc, log)
	auditHandler := audithandler.New(auditStore, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(config.DefaultRequestTimeout))
	r.Use(middleware.ResolveActor(jwtService, log))

	r.Get("/healthz", handleHealth(redisClient))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		userHandler.RegisterLogin(r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.AdminToken, log))
		r.Use(middleware.ContentTypeJSON)
		r.Use(limiter.Middleware)

		tenantHandler.Register(r)
		userHandler.Register(r)
		offeringHandler.Register(r)
		bookingHandler.Register(r)
		auditHandler.Register(r)
	})

	g, ctx := errgroup.WithContext(ctx)

	srv := httpserver.New(cfg.Addr, r)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		client, err := relay.NewClient(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer client.Close()

		auditRelay := relay.New(client, sink, cfg.KafkaAuditTopic,
			relay.WithLogger(log),
			relay.WithMetrics(auditMetrics),
		)
		g.Go(func() error {
			log.Info("audit relay running", "topic", cfg.KafkaAuditTopic)
			if err := auditRelay.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func handleHealth(redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
