package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Settings  *config.InvoicingConfigHolder
	Log       *zap.Logger
}

// NewLocker selects the redis backend when configured and falls back to
// in-process locks otherwise.
func NewLocker(p Params) (Locker, error) {
	if p.Config.Lock.Backend != config.LockBackendRedis {
		p.Log.Info("using in-process locks")
		return NewLocalWithSettings(p.Settings), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Config.Lock.RedisAddr,
		Password: p.Config.Lock.RedisPassword,
		DB:       p.Config.Lock.RedisDB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	p.Log.Info("using redis locks", zap.String("addr", p.Config.Lock.RedisAddr))
	return NewRedis(client, p.Settings, p.Log)
}
