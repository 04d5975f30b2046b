package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety
	ConnectAttempts int
}

func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    20,
		ConnMaxLifetime: 5 * time.Minute,
		SSLMode:         "require",
		ConnectAttempts: 3,
	}
}

// Substrings that only appear in copy-pasted sample credentials.
var placeholderMarkers = []string{
	"your-project",
	"your_project",
	"your-password",
	"your_password",
	"changeme",
	"change-me",
	"placeholder",
	"example.com",
	"<",
	">",
}

func looksLikePlaceholder(v string) bool {
	s := strings.ToLower(v)
	for _, marker := range placeholderMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func pointsAtLocalhost(v string) bool {
	s := strings.ToLower(v)
	return strings.Contains(s, "localhost") || strings.Contains(s, "127.0.0.1")
}

// HostedDatabaseConfigured reports whether the hosted waitlist table should be
// attempted at all. The reason explains a negative answer.
func HostedDatabaseConfigured() (bool, string) {
	if databaseURL := sanitizeEnv(GetValueFromEnvironmentVariable("APP_DATABASE_URL", "")); databaseURL != "" {
		if looksLikePlaceholder(databaseURL) {
			return false, "APP_DATABASE_URL looks like a placeholder"
		}
		if IsProductionEnv(GetAppEnv()) && pointsAtLocalhost(databaseURL) {
			return false, "APP_DATABASE_URL points at localhost in production"
		}
		return true, ""
	}

	host, _, _, pass, _, _ := getDatabaseEnvParams()

	switch {
	case host == "":
		return false, "neither APP_DATABASE_URL nor POSTGRES_HOST is set"
	case pass == "":
		return false, "POSTGRES_PASSWORD is empty"
	case looksLikePlaceholder(host) || looksLikePlaceholder(pass):
		return false, "POSTGRES_HOST or POSTGRES_PASSWORD looks like a placeholder"
	case IsProductionEnv(GetAppEnv()) && pointsAtLocalhost(host):
		return false, "POSTGRES_HOST points at localhost in production"
	}

	return true, ""
}

// NewDatabase opens the hosted Postgres connection, retrying transient dial errors.
func NewDatabase(ctx context.Context, logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultDBConfig()
	}

	dsn, err := buildDSNFromEnv(logger, cfg)
	if err != nil {
		return nil, err
	}

	var gdb *gorm.DB

	policy := retry.NewExponentialBackoff(&retry.Config{
		MaxAttempts: cfg.ConnectAttempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
	})

	err = policy.Execute(ctx, func(ctx context.Context) error {
		opened, openErr := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if openErr != nil {
			logger.Warn("Database connection attempt failed", "error", openErr)
			return openErr
		}

		sqlDB, dbErr := opened.DB()
		if dbErr != nil {
			return dbErr
		}

		if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
			_ = sqlDB.Close()
			logger.Warn("Database ping failed", "error", pingErr)
			return pingErr
		}

		gdb = opened
		return nil
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("Database connection established successfully")
	return gdb, nil
}

func buildDSNFromEnv(logger *log.Logger, cfg *DBConfig) (string, error) {
	if databaseURL := sanitizeEnv(GetValueFromEnvironmentVariable("APP_DATABASE_URL", "")); databaseURL != "" {
		logger.Info("Using APP_DATABASE_URL for database connection")
		return databaseURL, nil
	}

	host, portStr, user, pass, dbName, ssl := getDatabaseEnvParams()
	if ssl == "" {
		ssl = cfg.SSLMode
	}
	if portStr == "" {
		portStr = "5432"
	}

	var missing []string
	if host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if user == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if dbName == "" {
		missing = append(missing, "POSTGRES_DB_NAME")
	}

	if len(missing) > 0 {
		logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid POSTGRES_PORT %q: %w", portStr, err)
	}

	logger.Info("Connecting to database",
		"host", host,
		"port", port,
		"user", user,
		"dbname", dbName,
		"sslmode", ssl,
	)

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, dbName, ssl,
	), nil
}

func getDatabaseEnvParams() (host, port, user, pass, dbName, ssl string) {
	host = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_HOST", ""))
	port = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PORT", ""))
	user = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_USER", ""))
	pass = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PASSWORD", ""))
	dbName = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_DB_NAME", ""))
	ssl = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_SSLMODE", ""))

	return host, port, user, pass, dbName, ssl
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
