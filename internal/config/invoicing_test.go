package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultInvoicingConfigIsValid(t *testing.T) {
	require.NoError(t, validateInvoicingConfig(DefaultInvoicingConfig()))
}

func TestValidateInvoicingConfigRejectsUnboundedRetries(t *testing.T) {
	cfg := DefaultInvoicingConfig()
	cfg.MaxCommitAttempts = 0
	assert.Error(t, validateInvoicingConfig(cfg))

	cfg.MaxCommitAttempts = 50
	assert.Error(t, validateInvoicingConfig(cfg))
}

func TestValidateInvoicingConfigRejectsEmptySequence(t *testing.T) {
	cfg := DefaultInvoicingConfig()
	cfg.SequenceName = "  "
	assert.Error(t, validateInvoicingConfig(cfg))
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *InvoicingConfigHolder
	assert.Equal(t, DefaultInvoicingConfig(), holder.Get())
}

func TestLoadReadsLockBackend(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "REDIS")
	t.Setenv("LOCK_REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_TYPE", "postgres")

	cfg := Load()
	assert.Equal(t, LockBackendRedis, cfg.Lock.Backend)
	assert.Equal(t, "localhost:6379", cfg.Lock.RedisAddr)
	assert.Equal(t, "postgres", cfg.DBType)
}

func TestLoadDefaultsToLocalLocks(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "zookeeper")
	cfg := Load()
	assert.Equal(t, LockBackendLocal, cfg.Lock.Backend)
}

func TestValidateInvoicingConfigRequiresSequenceToken(t *testing.T) {
	cfg := DefaultInvoicingConfig()
	cfg.NumberFormat = "INV-{YYYY}"
	assert.Error(t, validateInvoicingConfig(cfg))

	cfg.NumberFormat = "INV-{YYYY}-{SEQ5}"
	assert.NoError(t, validateInvoicingConfig(cfg))
}

func TestLoadReadsSeedFlag(t *testing.T) {
	t.Setenv("SEED_SAMPLE_DATA", "true")
	assert.True(t, Load().SeedSampleData)

	t.Setenv("SEED_SAMPLE_DATA", "maybe")
	assert.False(t, Load().SeedSampleData)
}
