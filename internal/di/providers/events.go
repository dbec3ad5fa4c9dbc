package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/events"
	"github.com/listenupapp/library-server/internal/logger"
)

// PublisherHandle wraps the loan event publisher with shutdown capability.
type PublisherHandle struct {
	events.Publisher
}

// Shutdown implements do.Shutdownable. Queued events are flushed first.
func (h *PublisherHandle) Shutdown() error {
	return h.Close()
}

// ProvidePublisher provides a Kafka publisher when brokers are configured.
func ProvidePublisher(i do.Injector) (*PublisherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)

	if !cfg.Events.Enabled() {
		log.Info("Loan events disabled")
		return &PublisherHandle{Publisher: events.Noop{}}, nil
	}

	log.Info("Publishing loan events",
		"brokers", cfg.Events.KafkaBrokers,
		"topic", cfg.Events.KafkaTopic,
	)

	pub := events.NewKafkaPublisher(
		cfg.Events.KafkaBrokers,
		cfg.Events.KafkaTopic,
		eventProducer,
		eventBuffer,
		clk,
		log.Logger,
	)
	return &PublisherHandle{Publisher: pub}, nil
}
