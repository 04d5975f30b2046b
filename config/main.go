package config

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	"github.com/akeren/waitlist-api/pkg/constants"
	"github.com/akeren/waitlist-api/pkg/utils"
	"gorm.io/gorm"
)

type ApplicationConfig struct {
	// DB is nil when the hosted store is unconfigured or was unreachable at
	// startup; the waitlist then runs on the file store alone.
	DB              *gorm.DB
	Waitlist        *WaitlistConfig
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Config          *AppConfig
	TracingShutdown func(context.Context) error

	cleanups []func()
}

type AppConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		RateLimitRequests: utils.GetEnvPositiveInt("RATE_LIMIT_REQUESTS", constants.DefaultRateLimitRequests),
		RateLimitWindow:   utils.GetEnvPositiveDuration("RATE_LIMIT_WINDOW", constants.DefaultRateLimitWindow()),
		RequestTimeout:    utils.GetEnvPositiveDuration("REQUEST_TIMEOUT", router.DefaultTimeoutDuration),
	}
}

// OnCleanup registers fn to run during Cleanup, before the database and cache
// are closed. Hooks run in reverse registration order.
func (ac *ApplicationConfig) OnCleanup(fn func()) {
	ac.cleanups = append(ac.cleanups, fn)
}

func (ac *ApplicationConfig) Cleanup() {
	for i := len(ac.cleanups) - 1; i >= 0; i-- {
		ac.cleanups[i]()
	}
	ac.cleanups = nil

	if ac.TracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	CloseDatabase(ac.DB, ac.Logger)
	CloseCache(ac.Cache, ac.Logger)

	ac.Logger.Info("Application cleanup completed")
}

// ConnectHostedDatabase returns (nil, nil) when the hosted store should not be
// used: it is disabled, unconfigured, or unreachable after retries.
func ConnectHostedDatabase(ctx context.Context, logger *log.Logger, waitlistCfg *WaitlistConfig) (*gorm.DB, error) {
	if waitlistCfg.HostedDisabled {
		logger.Info("Hosted waitlist store disabled (WAITLIST_HOSTED_DISABLED=true); using file store")
		return nil, nil
	}

	if ok, reason := HostedDatabaseConfigured(); !ok {
		logger.Info("Hosted waitlist store not configured; using file store", "reason", reason)
		return nil, nil
	}

	dbCfg := DefaultDBConfig()
	dbCfg.ConnectAttempts = waitlistCfg.HostedConnectAttempts

	db, err := NewDatabase(ctx, logger, dbCfg)
	if err != nil {
		logger.Warn("Hosted waitlist store unreachable at startup; using file store", "error", err)
		return nil, nil
	}

	return db, nil
}

func LoadApplicationConfiguration(ctx context.Context, logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	waitlistCfg, err := LoadWaitlistConfig()
	if err != nil {
		return nil, err
	}

	cacheCfg, err := NewCacheConfig()
	if err != nil {
		return nil, err
	}

	tracingShutdown, err := SetupTracing(ctx, logger)
	if err != nil {
		return nil, err
	}

	db, err := ConnectHostedDatabase(ctx, logger, waitlistCfg)
	if err != nil {
		return nil, err
	}

	if autoMigrate && db != nil {
		if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
			CloseDatabase(db, logger)
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	appConfig := NewAppConfig()
	cache := cacheCfg.NewCacheOrNil(logger)

	// A nil Cache interface must stay nil for the router's type assertion.
	var routerCache router.Cache
	if cache != nil {
		routerCache = cache
	}

	routerService := router.CreateRouterService(logger, routerCache, &router.RouterConfig{
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		RequestTimeout:    appConfig.RequestTimeout,
	})

	logger.Info("Application configuration loaded successfully",
		"hosted_store", db != nil,
		"cache", cache != nil,
		"waitlist_file", waitlistCfg.FilePath,
	)

	return &ApplicationConfig{
		DB:              db,
		Waitlist:        waitlistCfg,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Config:          appConfig,
		TracingShutdown: tracingShutdown,
	}, nil
}
