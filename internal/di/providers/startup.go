package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/service"
)

// ReconcileBookStatuses repairs book availability left inconsistent by an
// interrupted lending operation. It runs before the server accepts requests.
func ReconcileBookStatuses(i do.Injector) error {
	lending := do.MustInvoke[*service.LendingService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	repaired, err := lending.ReconcileBookStatuses(ctx)
	if err != nil {
		return err
	}
	log.Info("Book statuses reconciled", "repaired", repaired)
	return nil
}
