package domain

import (
	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/domain/monitoring"
	"github.com/akeren/waitlist-api/domain/waitlist"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) error {
	waitlistFactory, err := waitlist.NewWaitlistServiceFactory(appConfig)
	if err != nil {
		return err
	}

	var cache monitoring.Cache
	if appConfig.Cache != nil {
		cache = appConfig.Cache
	}

	appConfig.RouterService.MountController(monitoring.NewMonitoringController(waitlistFactory.Store(), appConfig.Logger, cache))
	appConfig.RouterService.MountController(waitlistFactory.CreateController())

	return nil
}
