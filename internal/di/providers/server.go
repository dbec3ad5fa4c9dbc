package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/api"
	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.handler.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledgerHandle := do.MustInvoke[*LedgerHandle](i)
	lockerHandle := do.MustInvoke[*LockerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	services := &api.Services{
		Auth:     do.MustInvoke[*service.AuthService](i),
		Accounts: do.MustInvoke[*service.AccountService](i),
		Catalog:  do.MustInvoke[*service.CatalogService](i),
		Lending:  do.MustInvoke[*service.LendingService](i),
		Loans:    do.MustInvoke[*service.LoanQueryService](i),
	}

	checks := map[string]api.HealthCheck{
		"database": storeHandle.Ping,
		"ledger":   ledgerHandle.Ping,
		"search":   indexHandle.Ping,
	}
	if cfg.Lease.Distributed() {
		checks["lease"] = lockerHandle.Ping
	}

	handler := api.NewServer(services, checks, cfg, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
