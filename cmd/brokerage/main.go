package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/interpreter-brokerage/internal/application"
	"github.com/example/interpreter-brokerage/internal/availability"
	"github.com/example/interpreter-brokerage/internal/config"
	httptransport "github.com/example/interpreter-brokerage/internal/http"
	"github.com/example/interpreter-brokerage/internal/notify"
	"github.com/example/interpreter-brokerage/internal/obs"
	"github.com/example/interpreter-brokerage/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := obs.InitTracer(ctx, "interpreter-brokerage", cfg.Environment, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(flushCtx); err != nil {
				logger.Error("failed to shut down tracing", "error", err)
			}
		}()
	}

	pool, err := sqlite.NewConnectionPool(sqlite.DefaultConfig(cfg.SQLitePath))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	var notifier application.Notifier
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("failed to connect to the message broker", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Error("failed to close broker connection", "error", cerr)
			}
		}()
		notifier = publisher
	}

	idGenerator := uuid.NewString
	now := time.Now

	sessionRepo := sqlite.NewSessionRepository(pool)
	requestRepo := sqlite.NewRequestRepository(pool)
	interpreterRepo := sqlite.NewInterpreterRepository(pool)
	availabilityRepo := sqlite.NewAvailabilityRepository(pool)
	userRepo := sqlite.NewUserRepository(pool)
	authSessionRepo := sqlite.NewAuthSessionRepository(pool)

	executor := application.NewEffectExecutor(sessionRepo, requestRepo, interpreterRepo, notifier, nil, logger)

	requestService := application.NewRequestServiceWithLogger(requestRepo, executor, idGenerator, now, logger)
	sessionService := application.NewSessionServiceWithLogger(sessionRepo, interpreterRepo, requestService, executor, idGenerator, now, logger)
	interpreterService := application.NewInterpreterServiceWithLogger(interpreterRepo, availabilityRepo, sessionRepo, availability.NewEngine(time.UTC), idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(userRepo, authSessionRepo, []byte(cfg.JWTSecret), idGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Requests:     httptransport.NewRequestHandler(requestService, logger),
		Sessions:     httptransport.NewSessionHandler(sessionService, logger),
		Interpreters: httptransport.NewInterpreterHandler(interpreterService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})

	var outer http.Handler = handler
	outer = httptransport.RequestLogger(logger)(outer)
	if cfg.OTLPEndpoint != "" {
		outer = httptransport.Trace("interpreter-brokerage")(outer)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           outer,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("brokerage API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
