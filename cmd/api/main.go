package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/puffit/internal/http/handlers"
	"github.com/diagnosis/puffit/internal/http/middleware"
	"github.com/diagnosis/puffit/internal/idempotency"
	"github.com/diagnosis/puffit/internal/mailer"
	"github.com/diagnosis/puffit/internal/ratelimit"
	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/internal/security"
	"github.com/diagnosis/puffit/internal/service"
	"github.com/diagnosis/puffit/internal/token"
	"github.com/diagnosis/puffit/pkg/config"
	"github.com/diagnosis/puffit/pkg/database"
	"github.com/diagnosis/puffit/pkg/events"
	"github.com/diagnosis/puffit/pkg/logger"
	mw "github.com/diagnosis/puffit/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Puffit API exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	// Connect to event bus
	var eventBus events.Publisher = events.NoopBus{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			return err
		}
		eventBus = bus
	}
	defer eventBus.Close()

	// Rate limiting and idempotency share Redis when configured
	var (
		limiter ratelimit.Limiter   = ratelimit.NewMemory(cfg.RateLimit.Requests, cfg.RateLimit.Window, "")
		idem    mw.IdempotencyStore = idempotency.NewMemoryStore()
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		limiter = ratelimit.NewRedis(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, "")
		idem = idempotency.NewRedisStore(rdb)
	}

	hasher, err := security.NewHasher(cfg.Auth.PasswordHash, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	issuer := token.NewIssuer(cfg.Auth.EmailVerificationTTL)
	mail := mailer.New(cfg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	pendingRepo := repository.NewPendingUserRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)

	// Initialize services
	registration := service.NewRegistrationService(userRepo, pendingRepo, hasher, issuer, mail, eventBus)
	verification := service.NewVerificationService(pendingRepo, eventBus, nil)
	authService := service.NewAuthService(userRepo, pendingRepo, hasher, cfg.Auth)
	accounts := service.NewAccountService(userRepo, eventBus)
	reviews := service.NewReviewService(reviewRepo, eventBus)
	sweeper := service.NewSweeper(pendingRepo, cfg.Cleanup.Interval)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mw.RegisterMetrics(registry)
	service.RegisterMetrics(registry)

	session := middleware.Session{Secret: cfg.Auth.JWTSecret, CookieName: cfg.Auth.SessionCookie}
	authLimit := middleware.NewRateLimiter(limiter, middleware.RateLimitConfig{Prefix: "auth:"}).Middleware()

	authHandler := handlers.NewAuthHandler(registration, verification, authService, accounts, session, authLimit, cfg)
	reviewHandler := handlers.NewReviewHandler(reviews, session, mw.Idempotency(idem, 24*time.Hour), cfg.IsDev())

	// Setup router
	r := chi.NewRouter()
	if cfg.Server.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("puffit-api"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health(pool.Ping))
	r.Use(mw.Metrics)

	r.Handle("/metrics", mw.MetricsHandler(registry))
	r.Mount("/", authHandler.Routes())
	r.Mount("/shisha/reviews", reviewHandler.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Puffit API", "port", cfg.Server.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down Puffit API...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
