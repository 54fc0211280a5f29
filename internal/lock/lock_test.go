package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/billbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestLocalSerializesSameKey(t *testing.T) {
	locker := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), CustomerLedgerKey(7))
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.slots)
}

func TestLocalDistinctKeysDoNotBlock(t *testing.T) {
	locker := NewLocal()
	releaseA, err := locker.Acquire(context.Background(), CustomerLedgerKey(1))
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, CustomerLedgerKey(2))
	require.NoError(t, err)
	releaseB()
}

func TestLocalTimesOutWhenHeld(t *testing.T) {
	locker := NewLocal()
	release, err := locker.Acquire(context.Background(), InvoiceSequenceKey("invoice"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, InvoiceSequenceKey("invoice"))
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release()

	again, err := locker.Acquire(context.Background(), InvoiceSequenceKey("invoice"))
	require.NoError(t, err)
	again()
}

func TestLocalRejectsEmptyKey(t *testing.T) {
	_, err := NewLocal().Acquire(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ledger:customer:42", CustomerLedgerKey(42))
	assert.Equal(t, "invoice:sequence:invoice", InvoiceSequenceKey(" invoice "))
}

func TestNewRedisRequiresClient(t *testing.T) {
	_, err := NewRedis(nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewLockerDefaultsToLocal(t *testing.T) {
	locker, err := NewLocker(Params{
		Lifecycle: fxtest.NewLifecycle(t),
		Config:    config.Config{Lock: config.LockConfig{Backend: config.LockBackendLocal}},
		Log:       zap.NewNop(),
	})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, locker)
}

func TestLocalWithSettingsBoundsWait(t *testing.T) {
	cfg := config.DefaultInvoicingConfig()
	cfg.LockWait = 20 * time.Millisecond
	locker := NewLocalWithSettings(config.NewStaticInvoicingConfigHolder(cfg))

	release, err := locker.Acquire(context.Background(), CustomerLedgerKey(7))
	require.NoError(t, err)
	defer release()

	started := time.Now()
	_, err = locker.Acquire(context.Background(), CustomerLedgerKey(7))
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Less(t, time.Since(started), 2*time.Second)
}
