package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	grpcapi "booksphere-backend/internal/api/grpc"
	httpapi "booksphere-backend/internal/api/http"
	"booksphere-backend/internal/config"
	"booksphere-backend/internal/jobs"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/notify"
	"booksphere-backend/internal/repository"
	"booksphere-backend/internal/repository/memory"
	"booksphere-backend/internal/repository/postgres"
	"booksphere-backend/internal/scheduler"
	"booksphere-backend/internal/security"
	"booksphere-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	withScheduler := flag.Bool("with-scheduler", false, "Run the cron scheduler inside the server process")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting BookSphere backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http", cfg.GetServerAddress(), "grpc", cfg.GetGRPCAddress())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	// Initialize outbound mail
	var mailer service.EmailEnqueuer
	if sender := newSender(cfg); sender != nil {
		queue := notify.NewEmailQueue(sender, cfg.Email.Queue.Workers, cfg.Email.Queue.Size, cfg.Email.Queue.MaxRetries)
		queue.Start(ctx)
		defer queue.Wait()
		mailer = queue
	}

	// Initialize services
	repos := store.Repos()
	clock := service.NewSystemClock()
	tokenManager := security.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*time.Minute,
	)
	sink := service.NewNotificationSink(repos.Notifications, repos.Users, mailer)
	ledger := service.NewInventoryLedger()
	authSvc := service.NewAuthService(repos.Users, tokenManager)
	catalogSvc := service.NewCatalogService(store, ledger, sink)
	rentalSvc := service.NewRentalService(store, ledger, service.NewLateFeePolicy(cfg.Rental.LateFeeRate()), sink, clock)
	noteSvc := service.NewNotificationService(store, sink, clock)

	if *withScheduler {
		runner := jobs.NewJobRunner(&jobs.Services{
			Rental:       rentalSvc,
			Catalog:      catalogSvc,
			Notification: noteSvc,
		}, cfg)
		cronScheduler := scheduler.NewScheduler(runner)
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	// Initialize HTTP handlers
	v := validator.New()
	router := httpapi.NewRouter(httpapi.Handlers{
		Auth:          httpapi.NewAuthHandler(authSvc, v),
		Books:         httpapi.NewBookHandler(catalogSvc, rentalSvc, v),
		Rentals:       httpapi.NewRentalHandler(rentalSvc, v, clock, time.Duration(cfg.Rental.DefaultLoanDays)*24*time.Hour),
		Notifications: httpapi.NewNotificationHandler(noteSvc),
		Store:         store,
	}, tokenManager)

	httpServer := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	// Set up gRPC health server
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}
	healthServer := grpcapi.NewHealthServer(store)
	go healthServer.Watch(ctx, 30*time.Second)
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	healthServer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Store.Type == "memory" {
		logger.Warn("Using in-memory store; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := postgres.Open(ctx, postgres.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseConnectionString(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connection established")

	if cfg.Store.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Database schema applied")
	}
	return postgres.NewStore(db), func() { db.Close() }, nil
}

func newSender(cfg *config.Config) notify.Sender {
	switch cfg.Email.Provider {
	case "smtp":
		logger.Info("Email via SMTP", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)
		return notify.NewSMTPSender(cfg.Email.SMTP.Host, cfg.Email.SMTP.Port, cfg.Email.SMTP.User, cfg.Email.SMTP.Password, cfg.Email.From, cfg.Email.FromName)
	case "sendgrid":
		logger.Info("Email via SendGrid")
		return notify.NewSendGridSender(cfg.Email.SendGrid.APIKey, cfg.Email.From, cfg.Email.FromName)
	default:
		logger.Info("Email delivery disabled")
		return nil
	}
}
