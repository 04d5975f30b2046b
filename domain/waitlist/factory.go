package waitlist

import (
	"context"
	"errors"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/circuitbreaker"
	"gorm.io/gorm"
)

// Store is the storage arrangement chosen once at startup.
type Store struct {
	Repository WaitlistRepository
	File       *FileRepository
	// Hosted is nil in file-only mode.
	Hosted   *HostedRepository
	Failover *FailoverRepository
}

// OpenStore wires failover(hosted, file) when db is non-nil and the file
// store alone otherwise.
func OpenStore(db *gorm.DB, cfg *config.WaitlistConfig, metrics *Metrics, logger *log.Logger) (*Store, error) {
	file, err := OpenFileRepository(cfg.FilePath, logger)
	if err != nil {
		return nil, err
	}

	if db == nil {
		logger.Info("Waitlist store selected", "backend", BackendFile, "path", cfg.FilePath)
		return &Store{Repository: file, File: file}, nil
	}

	storeLogger := logger.WithComponent("waitlist.store")
	hosted := NewHostedRepository(db)

	breaker := circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailures,
		RecoveryTimeout:  cfg.BreakerRecovery,
		SuccessThreshold: 1,
		OnStateChange: func(from, to circuitbreaker.CircuitState) {
			storeLogger.Warn("Hosted store circuit changed state", "from", from.String(), "to", to.String())
		},
	})

	failover := NewFailoverRepository(hosted, file, breaker, storeLogger, metrics)

	logger.Info("Waitlist store selected", "backend", BackendFailover, "fallback_path", cfg.FilePath)

	return &Store{
		Repository: failover,
		File:       file,
		Hosted:     hosted,
		Failover:   failover,
	}, nil
}

func (s *Store) Name() string {
	return s.Repository.Name()
}

// ErrHostedNotConfigured is returned by PingHosted in file-only mode.
var ErrHostedNotConfigured = errors.New("hosted waitlist store not configured")

func (s *Store) PingHosted(ctx context.Context) error {
	if s.Hosted == nil {
		return ErrHostedNotConfigured
	}
	return s.Hosted.Ping(ctx)
}

// BreakerMetrics reports the hosted store breaker; ok is false in file-only
// mode.
func (s *Store) BreakerMetrics() (circuitbreaker.Metrics, bool) {
	if s.Failover == nil {
		return circuitbreaker.Metrics{}, false
	}
	return circuitbreaker.MetricsOf(s.Failover.breaker)
}

func (s *Store) CheckWritable() error {
	return s.File.CheckWritable()
}

func (s *Store) Close() error {
	return s.File.Close()
}

type WaitlistServiceFactory interface {
	CreateService() WaitlistService
	CreateController() *router.RESTController
	Store() *Store
}

type DefaultWaitlistServiceFactory struct {
	appConfig *config.ApplicationConfig
	store     *Store
	metrics   *Metrics
}

// NewWaitlistServiceFactory opens the store and arranges for it to be flushed
// when the application shuts down.
func NewWaitlistServiceFactory(appConfig *config.ApplicationConfig) (WaitlistServiceFactory, error) {
	metrics := NewMetrics(appConfig.RouterService.MetricsRegisterer())

	store, err := OpenStore(appConfig.DB, appConfig.Waitlist, metrics, appConfig.Logger)
	if err != nil {
		return nil, err
	}

	appConfig.OnCleanup(func() {
		_ = store.Close()
	})

	return &DefaultWaitlistServiceFactory{
		appConfig: appConfig,
		store:     store,
		metrics:   metrics,
	}, nil
}

func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	var cache StatsCache
	if f.appConfig.Cache != nil {
		cache = f.appConfig.Cache
	}

	return NewWaitlistService(f.appConfig.Logger, f.store.Repository, cache, f.appConfig.Waitlist.StatsCacheTTL, f.metrics)
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.CreateService(), f.appConfig.Logger)
}

func (f *DefaultWaitlistServiceFactory) Store() *Store {
	return f.store
}
