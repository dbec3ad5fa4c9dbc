// Package providers contains dependency injection providers for the library server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting library server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"ledger_backend", cfg.Storage.LedgerBackend,
	)

	return log, nil
}

// ProvideClock provides the wall clock used for timestamps and token expiry.
func ProvideClock(i do.Injector) (clock.Clock, error) {
	return clock.NewSystem(), nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
