package providers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/lock"
	"github.com/listenupapp/library-server/internal/logger"
)

const redisConnectTimeout = 5 * time.Second

// LockerHandle holds the per-book lease implementation.
type LockerHandle struct {
	lock.Locker
	client *redis.Client
}

// Ping reports whether the lease backend is reachable.
func (h *LockerHandle) Ping(ctx context.Context) error {
	if h.client == nil {
		return nil
	}
	return h.client.Ping(ctx).Err()
}

// Shutdown implements do.Shutdownable.
func (h *LockerHandle) Shutdown() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// ProvideLocker provides an in-process lease, or a Redis lease when configured.
func ProvideLocker(i do.Injector) (*LockerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Lease.Distributed() {
		log.Info("Book leases held in-process")
		return &LockerHandle{Locker: lock.NewKeyedMutex()}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	client, err := lock.NewRedisClient(ctx, cfg.Lease.RedisAddr, cfg.Lease.RedisPassword, cfg.Lease.RedisDB)
	if err != nil {
		return nil, err
	}

	log.Info("Book leases held in Redis", "addr", cfg.Lease.RedisAddr, "ttl", cfg.Lease.TTL)

	return &LockerHandle{
		Locker: lock.NewRedisLocker(client, cfg.Lease.TTL, log.Logger),
		client: client,
	}, nil
}
