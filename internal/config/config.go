package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Email     EmailConfig     `yaml:"email"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Rental    RentalConfig    `yaml:"rental"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC health server settings
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	GRPCPort               int    `yaml:"grpc_port"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" (lib/pq) or "pgx"
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	Database               string `yaml:"database"`
	SSLMode                string `yaml:"ssl_mode"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// StoreConfig selects the storage backend
type StoreConfig struct {
	Type    string `yaml:"type"`    // "postgres" or "memory"
	Migrate bool   `yaml:"migrate"` // apply schema.sql on startup
}

// EmailConfig contains outbound mail settings
type EmailConfig struct {
	Provider string           `yaml:"provider"` // "none", "smtp" or "sendgrid"
	From     string           `yaml:"from"`
	FromName string           `yaml:"from_name"`
	SMTP     SMTPConfig       `yaml:"smtp"`
	SendGrid SendGridConfig   `yaml:"sendgrid"`
	Queue    EmailQueueConfig `yaml:"queue"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type SendGridConfig struct {
	APIKey string `yaml:"api_key"`
}

type EmailQueueConfig struct {
	Workers    int `yaml:"workers"`
	Size       int `yaml:"size"`
	MaxRetries int `yaml:"max_retries"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	AccessTokenExpiry  int    `yaml:"access_token_expiry_minutes"`
	RefreshTokenExpiry int    `yaml:"refresh_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// RentalConfig contains rental policy settings
type RentalConfig struct {
	LateFeePerDay       string `yaml:"late_fee_per_day"`
	DefaultLoanDays     int    `yaml:"default_loan_days"`
	ReminderWindowHours int    `yaml:"reminder_window_hours"`
}

// SchedulerConfig contains cron specs (with seconds, UTC) for scheduled jobs
type SchedulerConfig struct {
	NotifyOverdueRentals string `yaml:"notify_overdue_rentals"`
	RecalculateLateFees  string `yaml:"recalculate_late_fees"`
	SendDueReminders     string `yaml:"send_due_reminders"`
	AuditInventory       string `yaml:"audit_inventory"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("STORE_TYPE"); val != "" {
		c.Store.Type = val
	}

	// Email
	if val := os.Getenv("EMAIL_PROVIDER"); val != "" {
		c.Email.Provider = val
	}
	if val := os.Getenv("EMAIL_FROM"); val != "" {
		c.Email.From = val
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.Email.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Email.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.Email.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.Email.SMTP.Password = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGrid.APIKey = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Rental
	if val := os.Getenv("LATE_FEE_PER_DAY"); val != "" {
		c.Rental.LateFeePerDay = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = c.Server.Port + 1
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	// Store validation
	c.Store.Type = strings.ToLower(c.Store.Type)
	if c.Store.Type == "" {
		c.Store.Type = "postgres"
	}
	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.Driver == "" {
			c.Database.Driver = "postgres"
		}
		if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
			return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
		}
		if c.Database.MaxOpenConns == 0 {
			c.Database.MaxOpenConns = 25
		}
		if c.Database.MaxIdleConns == 0 {
			c.Database.MaxIdleConns = 5
		}
		if c.Database.ConnMaxLifetimeMinutes == 0 {
			c.Database.ConnMaxLifetimeMinutes = 30
		}
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}

	// Email validation
	c.Email.Provider = strings.ToLower(c.Email.Provider)
	switch c.Email.Provider {
	case "", "none":
		c.Email.Provider = "none"
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.Email.SMTP.Port <= 0 || c.Email.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.Email.SMTP.Port)
		}
	case "sendgrid":
		if c.Email.SendGrid.APIKey == "" {
			return fmt.Errorf("SendGrid API key is required")
		}
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}
	if c.Email.Provider != "none" && c.Email.From == "" {
		return fmt.Errorf("email from address is required")
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "BookSphere"
	}
	if c.Email.Queue.Workers == 0 {
		c.Email.Queue.Workers = 2
	}
	if c.Email.Queue.Size == 0 {
		c.Email.Queue.Size = 100
	}
	if c.Email.Queue.MaxRetries == 0 {
		c.Email.Queue.MaxRetries = 3
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}
	if c.JWT.RefreshTokenExpiry == 0 {
		c.JWT.RefreshTokenExpiry = 7 * 24 * 60
	}

	// Rental defaults
	if c.Rental.LateFeePerDay == "" {
		c.Rental.LateFeePerDay = "1.00"
	}
	rate, err := decimal.NewFromString(c.Rental.LateFeePerDay)
	if err != nil {
		return fmt.Errorf("invalid late fee per day %q: %w", c.Rental.LateFeePerDay, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("late fee per day cannot be negative: %s", c.Rental.LateFeePerDay)
	}
	// Fees are stored as NUMERIC(10, 2).
	if !rate.Equal(rate.Round(2)) {
		return fmt.Errorf("late fee per day must have at most 2 decimal places: %s", c.Rental.LateFeePerDay)
	}
	if c.Rental.DefaultLoanDays == 0 {
		c.Rental.DefaultLoanDays = 14
	}
	if c.Rental.ReminderWindowHours == 0 {
		c.Rental.ReminderWindowHours = 24
	}

	// Scheduler defaults
	if c.Scheduler.NotifyOverdueRentals == "" {
		c.Scheduler.NotifyOverdueRentals = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.RecalculateLateFees == "" {
		c.Scheduler.RecalculateLateFees = "0 30 2 * * *" // 2:30 AM UTC
	}
	if c.Scheduler.AuditInventory == "" {
		c.Scheduler.AuditInventory = "0 0 4 * * *" // 4 AM UTC
	}
	if c.Scheduler.SendDueReminders == "" {
		c.Scheduler.SendDueReminders = "0 0 9 * * *" // Daily at 9 AM UTC
	}

	return nil
}

// LateFeeRate returns the validated per-day late fee
func (r RentalConfig) LateFeeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(r.LateFeePerDay)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return rate
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health server address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeMinutes) * time.Minute
}
