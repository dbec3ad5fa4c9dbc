package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// eventBuffer bounds loan events queued for the broker.
	eventBuffer = 256

	eventProducer = "library-server"
)
