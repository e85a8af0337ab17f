package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"booksphere-backend/internal/config"
	"booksphere-backend/internal/jobs"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/notify"
	"booksphere-backend/internal/repository/postgres"
	"booksphere-backend/internal/scheduler"
	"booksphere-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'notify-overdue-rentals', 'all-nightly')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting BookSphere cronjob runner...", "log_level", cfg.Log.Level)

	if cfg.Store.Type != "postgres" {
		log.Fatalf("Cronjobs need the postgres store, got %q", cfg.Store.Type)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := postgres.Open(ctx, postgres.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseConnectionString(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	repos := store.Repos()

	// Initialize outbound mail
	var mailer service.EmailEnqueuer
	var queue *notify.EmailQueue
	switch cfg.Email.Provider {
	case "smtp":
		queue = notify.NewEmailQueue(
			notify.NewSMTPSender(cfg.Email.SMTP.Host, cfg.Email.SMTP.Port, cfg.Email.SMTP.User, cfg.Email.SMTP.Password, cfg.Email.From, cfg.Email.FromName),
			cfg.Email.Queue.Workers, cfg.Email.Queue.Size, cfg.Email.Queue.MaxRetries)
	case "sendgrid":
		queue = notify.NewEmailQueue(
			notify.NewSendGridSender(cfg.Email.SendGrid.APIKey, cfg.Email.From, cfg.Email.FromName),
			cfg.Email.Queue.Workers, cfg.Email.Queue.Size, cfg.Email.Queue.MaxRetries)
	}
	if queue != nil {
		queue.Start(ctx)
		mailer = queue
	}

	// Initialize Services
	clock := service.NewSystemClock()
	sink := service.NewNotificationSink(repos.Notifications, repos.Users, mailer)
	ledger := service.NewInventoryLedger()

	jobServices := &jobs.Services{
		Rental:       service.NewRentalService(store, ledger, service.NewLateFeePolicy(cfg.Rental.LateFeeRate()), sink, clock),
		Catalog:      service.NewCatalogService(store, ledger, sink),
		Notification: service.NewNotificationService(store, sink, clock),
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		drainMail(cancel, queue)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	drainMail(cancel, queue)
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// drainMail gives queued emails a moment to go out before the workers stop.
func drainMail(cancel context.CancelFunc, queue *notify.EmailQueue) {
	if queue == nil {
		cancel()
		return
	}
	time.Sleep(2 * time.Second)
	cancel()
	queue.Wait()
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "notify-overdue-rentals":
		jobRunner.NotifyOverdueRentals()
	case "recalculate-late-fees":
		jobRunner.RecalculateLateFees()
	case "send-due-reminders":
		jobRunner.SendDueReminders()
	case "audit-inventory":
		jobRunner.AuditInventory()
	case "all-nightly":
		jobRunner.RunAllNightlyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - notify-overdue-rentals\n")
		fmt.Printf("  - recalculate-late-fees\n")
		fmt.Printf("  - send-due-reminders\n")
		fmt.Printf("  - audit-inventory\n")
		fmt.Printf("  - all-nightly\n")
		return false
	}
	return true
}
