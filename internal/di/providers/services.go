package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/auth"
	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/service"
	"github.com/listenupapp/library-server/internal/validation"
)

// ProvideAuthService provides the registration and login service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	v := do.MustInvoke[*validation.Validator](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, v, clk, log.Logger), nil
}

// ProvideAccountService provides the profile service.
func ProvideAccountService(i do.Injector) (*service.AccountService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAccountService(storeHandle.Store, v, clk, log.Logger), nil
}

// ProvideCatalogService provides the author and book service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledgerHandle := do.MustInvoke[*LedgerHandle](i)
	lockerHandle := do.MustInvoke[*LockerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(
		storeHandle.Store,
		ledgerHandle.LoanLedger,
		lockerHandle.Locker,
		indexHandle.Index,
		v,
		clk,
		log.Logger,
	), nil
}

// ProvideLendingService provides the borrow, return and cancel workflow.
func ProvideLendingService(i do.Injector) (*service.LendingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledgerHandle := do.MustInvoke[*LedgerHandle](i)
	lockerHandle := do.MustInvoke[*LockerHandle](i)
	publisherHandle := do.MustInvoke[*PublisherHandle](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLendingService(
		storeHandle.Store,
		storeHandle.Store,
		ledgerHandle.LoanLedger,
		lockerHandle.Locker,
		publisherHandle.Publisher,
		clk,
		log.Logger,
	), nil
}

// ProvideLoanQueryService provides the order listing service.
func ProvideLoanQueryService(i do.Injector) (*service.LoanQueryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledgerHandle := do.MustInvoke[*LedgerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLoanQueryService(storeHandle.Store, storeHandle.Store, ledgerHandle.LoanLedger, log.Logger), nil
}
