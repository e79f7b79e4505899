package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/splitwise/docs"
	"github.com/fkhayef/splitwise/internal/config"
	"github.com/fkhayef/splitwise/internal/database"
	"github.com/fkhayef/splitwise/internal/events"
	"github.com/fkhayef/splitwise/internal/expense"
	"github.com/fkhayef/splitwise/internal/group"
	"github.com/fkhayef/splitwise/internal/metrics"
	"github.com/fkhayef/splitwise/internal/user"
	"github.com/fkhayef/splitwise/pkg/logging"
	mw "github.com/fkhayef/splitwise/pkg/middleware"
)

const draftCleanupInterval = time.Minute

// @title        Splitwise API
// @version      1.0
// @description  Draft, reconcile and store shared expenses.
// @host         localhost:8080
// @BasePath     /api/v1
func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg := config.Load()
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Submitted expenses go to the balance service when a broker is configured
	var publisher expense.Publisher
	if cfg.AMQPURL != "" {
		p, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Error("Failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("AMQP_URL not set, submitted expenses will not be published")
	}

	var recorder *metrics.Recorder
	var expenseRecorder expense.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder()
		expenseRecorder = recorder
	}

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	// Group feature
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo)
	groupHandler := group.NewHandler(groupService)

	// Expense feature: in-memory drafts, stored expenses
	drafts := expense.NewDraftStore(cfg.DraftCacheSize, cfg.DraftTTL)
	expenseRepo := expense.NewRepository(db)
	expenseService := expense.NewService(expenseRepo, userService, groupService, drafts,
		publisher, expenseRecorder, logger)
	expenseHandler := expense.NewHandler(expenseService)

	go drafts.RunCleanup(ctx, draftCleanupInterval, func(size int) {
		if recorder != nil {
			recorder.OpenDrafts(size)
		}
	})

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.Identity)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if recorder != nil {
		r.Handle("/metrics", recorder.Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Mount feature routers
		r.Mount("/users", userHandler.Routes())
		r.Mount("/groups", groupHandler.Routes())
		r.Mount("/expenses", expenseHandler.Routes())
		r.With(mw.RequireUser).Mount("/drafts", expenseHandler.DraftRoutes())
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
