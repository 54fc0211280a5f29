package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billbook/internal/config"
	"go.uber.org/zap"
)

const (
	keyPrefix      = "billbook:lock:"
	retryInterval  = 20 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// Redis holds critical sections in redis so several billbook processes can
// share one database. Lock TTL and wait come from the invoicing config.
type Redis struct {
	client   *redislock.Client
	settings *config.InvoicingConfigHolder
	log      *zap.Logger
}

func NewRedis(client *redis.Client, settings *config.InvoicingConfigHolder, log *zap.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("lock client not configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{
		client:   redislock.New(client),
		settings: settings,
		log:      log.Named("lock.redis"),
	}, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	cfg := r.settings.Get()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.LockWait)
	defer cancel()

	held, err := r.client.Obtain(waitCtx, keyPrefix+key, cfg.LockTTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryInterval),
	})
	switch {
	case err == nil:
	case errors.Is(err, redislock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, ErrLockTimeout
	default:
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := held.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.log.Warn("release lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
