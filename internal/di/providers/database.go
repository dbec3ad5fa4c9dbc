package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/store"
	"github.com/listenupapp/library-server/internal/store/kv"
	"github.com/listenupapp/library-server/internal/store/sqlite"
)

// StoreHandle wraps the SQLite store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the catalog and account database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Storage.SQLitePath()
	db, err := sqlite.Open(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", path)

	return &StoreHandle{Store: db}, nil
}

// LedgerHandle exposes the configured loan ledger.
type LedgerHandle struct {
	store.LoanLedger
	ping  func(ctx context.Context) error
	close func() error
}

// Ping reports whether the ledger backend is reachable.
func (h *LedgerHandle) Ping(ctx context.Context) error {
	return h.ping(ctx)
}

// Shutdown implements do.Shutdownable. A SQLite ledger is closed by StoreHandle.
func (h *LedgerHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideLedger provides the loan ledger for the configured backend.
func ProvideLedger(i do.Injector) (*LedgerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	switch cfg.Storage.LedgerBackend {
	case config.LedgerSQLite:
		log.Info("Loan ledger initialized", "backend", config.LedgerSQLite)
		return &LedgerHandle{LoanLedger: storeHandle.Store, ping: storeHandle.Ping}, nil

	case config.LedgerBadger:
		path := cfg.Storage.BadgerPath()
		ledger, err := kv.Open(path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Loan ledger initialized", "backend", config.LedgerBadger, "path", path)
		return &LedgerHandle{LoanLedger: ledger, ping: ledger.Ping, close: ledger.Close}, nil

	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", cfg.Storage.LedgerBackend)
	}
}
