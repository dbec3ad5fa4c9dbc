// Package di provides dependency injection configuration for the library server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/auth"
	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/di/providers"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideLedger)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Coordination and events
	do.Provide(injector, providers.ProvideLocker)
	do.Provide(injector, providers.ProvidePublisher)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideAccountService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideLendingService)
	do.Provide(injector, providers.ProvideLoanQueryService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
// Book statuses are reconciled before the server begins listening.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.LedgerHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.LockerHandle](injector)
	_ = do.MustInvoke[*providers.PublisherHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.AccountService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.LendingService](injector)
	_ = do.MustInvoke[*service.LoanQueryService](injector)

	if err := providers.ReconcileBookStatuses(injector); err != nil {
		return err
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
