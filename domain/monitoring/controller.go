package monitoring

import (
	"context"
	"time"

	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/circuitbreaker"
)

const monitoringRequestsPerMinute = 10

type Cache interface {
	Ping(ctx context.Context) error
}

// StoreProbe is the view of the waitlist store the health check needs.
type StoreProbe interface {
	Name() string
	PingHosted(ctx context.Context) error
	CheckWritable() error
	BreakerMetrics() (circuitbreaker.Metrics, bool)
}

type HealthStatus struct {
	Database int    `json:"database"` // 1 = healthy, 0 = unhealthy/not configured
	Cache    int    `json:"cache"`    // 1 = healthy, 0 = unhealthy/not configured
	Storage  int    `json:"storage"`  // 1 = fallback file writable
	Store    string `json:"store"`
	Breaker  string `json:"breaker,omitempty"`
	Uptime   int    `json:"uptime"` // seconds
}

type MonitoringController struct {
	store     StoreProbe
	logger    *log.Logger
	cache     Cache
	startTime time.Time
}

func NewMonitoringController(store StoreProbe, logger *log.Logger, cache Cache) *router.RESTController {
	ctrl := &MonitoringController{
		store:     store,
		logger:    logger,
		cache:     cache,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {
			monitoringRateLimiter := routerService.NewRateLimiter(monitoringRequestsPerMinute, time.Minute)

			routerService.AddGetHandler(controller, monitoringRateLimiter, "", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(c)
			})

			routerService.AddGetHandler(controller, monitoringRateLimiter, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(c)
			})
		},
	)
}

func (ctrl *MonitoringController) healthCheck(c *router.RequestContext) *router.ServiceResult {
	logger := router.GetLogger(c)
	healthStatus := ctrl.performHealthChecks(c.Request.Context(), logger)

	// Signups are still accepted in memory, but none would survive a restart.
	if healthStatus.Database == 0 && healthStatus.Storage == 0 {
		return router.ServiceUnavailableResult("waitlist-api has no durable store", healthStatus)
	}

	return router.OKResult(healthStatus, "waitlist-api health check completed")
}

func (ctrl *MonitoringController) performHealthChecks(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{
		Store:  ctrl.store.Name(),
		Uptime: int(time.Since(ctrl.startTime).Seconds()),
	}

	checkDatabaseConnectivity(ctx, ctrl, &status, logger)
	checkCacheConnectivity(ctx, ctrl, &status, logger)
	checkStorage(ctrl, &status, logger)

	if metrics, ok := ctrl.store.BreakerMetrics(); ok {
		status.Breaker = metrics.State.String()
	}

	return status
}

func checkCacheConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.cache == nil {
		logger.Debug("Cache not configured, cache health check skipped")
		return
	}

	if err := ctrl.cache.Ping(ctx); err != nil {
		logger.Error("Cache health check failed", "error", err)
		return
	}
	status.Cache = 1
}

func checkDatabaseConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if err := ctrl.store.PingHosted(ctx); err != nil {
		logger.Warn("Database health check failed", "error", err)
		return
	}
	status.Database = 1
}

func checkStorage(ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if err := ctrl.store.CheckWritable(); err != nil {
		logger.Error("Fallback storage is not writable", "error", err)
		return
	}
	status.Storage = 1
}
