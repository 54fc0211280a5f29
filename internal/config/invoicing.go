package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// InvoicingConfig tunes the commit path of invoices and ledger entries.
type InvoicingConfig struct {
	MaxCommitAttempts int           `mapstructure:"maxCommitAttempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retryBaseDelay"`
	LockTTL           time.Duration `mapstructure:"lockTTL"`
	LockWait          time.Duration `mapstructure:"lockWait"`
	SequenceName      string        `mapstructure:"sequenceName"`
	NumberFormat      string        `mapstructure:"numberFormat"`
}

func DefaultInvoicingConfig() InvoicingConfig {
	return InvoicingConfig{
		MaxCommitAttempts: 3,
		RetryBaseDelay:    25 * time.Millisecond,
		LockTTL:           10 * time.Second,
		LockWait:          5 * time.Second,
		SequenceName:      "invoice",
		NumberFormat:      "{SEQ}",
	}
}

type InvoicingConfigHolder struct {
	current atomic.Value // holds InvoicingConfig
}

// NewStaticInvoicingConfigHolder returns a holder that never reloads.
func NewStaticInvoicingConfigHolder(cfg InvoicingConfig) *InvoicingConfigHolder {
	holder := &InvoicingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewInvoicingConfigHolder() (*InvoicingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("invoicing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/billbook")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BILLBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoicingConfig()
	v.SetDefault("invoicing.maxCommitAttempts", defaults.MaxCommitAttempts)
	v.SetDefault("invoicing.retryBaseDelay", defaults.RetryBaseDelay)
	v.SetDefault("invoicing.lockTTL", defaults.LockTTL)
	v.SetDefault("invoicing.lockWait", defaults.LockWait)
	v.SetDefault("invoicing.sequenceName", defaults.SequenceName)
	v.SetDefault("invoicing.numberFormat", defaults.NumberFormat)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg InvoicingConfig
	if err := v.UnmarshalKey("invoicing", &cfg); err != nil {
		return nil, err
	}
	if err := validateInvoicingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticInvoicingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvoicingConfig
		if err := v.UnmarshalKey("invoicing", &updated); err != nil {
			log.Printf("[invoicing-config] reload failed: %v", err)
			return
		}
		if err := validateInvoicingConfig(updated); err != nil {
			log.Printf("[invoicing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[invoicing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *InvoicingConfigHolder) Get() InvoicingConfig {
	if h == nil {
		return DefaultInvoicingConfig()
	}
	return h.current.Load().(InvoicingConfig)
}

func validateInvoicingConfig(cfg InvoicingConfig) error {
	if cfg.MaxCommitAttempts < 1 || cfg.MaxCommitAttempts > 10 {
		return errors.New("invoicing.maxCommitAttempts must be between 1 and 10")
	}
	if cfg.RetryBaseDelay < 0 {
		return errors.New("invoicing.retryBaseDelay cannot be negative")
	}
	if cfg.LockTTL <= 0 {
		return errors.New("invoicing.lockTTL must be positive")
	}
	if cfg.LockWait <= 0 {
		return errors.New("invoicing.lockWait must be positive")
	}
	if strings.TrimSpace(cfg.SequenceName) == "" {
		return errors.New("invoicing.sequenceName cannot be empty")
	}
	if !strings.Contains(cfg.NumberFormat, "{SEQ") {
		return errors.New("invoicing.numberFormat must contain a {SEQ} token")
	}
	return nil
}
