package lock

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/smallbiznis/billbook/internal/config"
)

var (
	ErrLockTimeout = errors.New("lock_timeout")
	ErrInvalidKey  = errors.New("lock_key_empty")
)

// Release exits a critical section. It is safe to call more than once.
type Release func()

// Locker serializes critical sections identified by key across callers.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

const invoiceSequencePrefix = "invoice:sequence:"

// InvoiceSequenceKey guards allocation from the named invoice sequence.
func InvoiceSequenceKey(sequence string) string {
	return invoiceSequencePrefix + strings.TrimSpace(sequence)
}

// CustomerLedgerKey guards balance authorization for one customer.
func CustomerLedgerKey(customerID int64) string {
	return "ledger:customer:" + strconv.FormatInt(customerID, 10)
}

// Local is an in-process keyed mutex. Waiters honour context cancellation.
type Local struct {
	mu       sync.Mutex
	slots    map[string]*slot
	settings *config.InvoicingConfigHolder
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// NewLocalWithSettings bounds each wait by the configured lock wait.
func NewLocalWithSettings(settings *config.InvoicingConfigHolder) *Local {
	l := NewLocal()
	l.settings = settings
	return l
}

func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}

	if l.settings != nil {
		if wait := l.settings.Get().LockWait; wait > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, wait)
			defer cancel()
		}
	}

	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 && l.slots[key] == s {
		delete(l.slots, key)
	}
}
