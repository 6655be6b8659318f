package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"campusattend/internal/attendance"
	"campusattend/internal/config"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/otp"
	"campusattend/internal/queue"
	"campusattend/internal/store"
	"campusattend/internal/user"
)

// Backends bundles the storage and transport chosen by config.
type Backends struct {
	Users      user.Store
	Attendance attendance.Store
	OTP        otp.Store
	Queue      queue.Queue

	Pool  *pgxpool.Pool
	Redis *store.Redis
}

// Open connects the configured backends and runs migrations when asked to.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (*Backends, error) {
	b := &Backends{}

	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		b.Users = user.NewMemoryStore()
		b.Attendance = attendance.NewMemoryStore()
		b.OTP = otp.NewMemoryStore()
	default:
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.Pool = pool
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info("migrations applied")
		}
		b.Users = user.NewRepository(pool)
		b.Attendance = attendance.NewRepository(pool)
		b.OTP = otp.NewRepository(pool)
	}

	switch cfg.QueueBackend {
	case "memory":
		b.Queue = queue.NewInMemory(64)
	default:
		b.Redis = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		b.Queue = queue.NewRedisQueue(b.Redis.Client, "")
	}
	return b, nil
}

// Limiter returns a Redis window limiter when Redis is configured and an
// in-process token bucket otherwise.
func (b *Backends) Limiter(name string, limit int, window time.Duration) httpmiddleware.Limiter {
	if b.Redis != nil {
		return httpmiddleware.NewRedisWindow(b.Redis.Client, "campusattend:ratelimit:"+name, limit, window)
	}
	return httpmiddleware.NewTokenBucket(limit, limit, window)
}

// InProcessStores reports whether the stores live in this process's memory.
func (b *Backends) InProcessStores() bool { return b.Pool == nil }

// Health reports connectivity of each configured backend.
func (b *Backends) Health(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	if b.Pool != nil {
		out["db"] = b.Pool.Ping(ctx) == nil
	}
	if b.Redis != nil {
		out["redis"] = b.Redis.Healthy(ctx)
	}
	return out
}

// Close releases connections.
func (b *Backends) Close() error {
	if b.Pool != nil {
		b.Pool.Close()
	}
	if err := b.Redis.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
