package locks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager hands out per-entity exclusive locks keyed by "<type>:<id>".
// A lock is held for the lifetime of one mutating operation and released
// on commit or abort. Acquisition waits at most the configured bound, so
// no caller blocks indefinitely; on timeout the caller maps the failure
// to a concurrency conflict and retries with backoff.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxWait time.Duration
}

type entry struct {
	sem  chan struct{}
	refs int
}

// ErrLockTimeout is returned when a lock could not be acquired within the
// bounded wait.
var ErrLockTimeout = fmt.Errorf("lock acquisition timed out")

// NewManager creates a Manager with the given bounded wait per acquisition.
func NewManager(maxWait time.Duration) *Manager {
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	return &Manager{
		entries: make(map[string]*entry),
		maxWait: maxWait,
	}
}

// Acquire takes the exclusive lock for key, waiting up to the bounded wait.
// The returned release func must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() { m.release(key, e) }, nil
	case <-timer.C:
		m.unref(key, e)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}
}

func (m *Manager) release(key string, e *entry) {
	<-e.sem
	m.unref(key, e)
}

// unref drops one reference and evicts the entry once idle, so the map
// does not grow with every entity ever touched.
func (m *Manager) unref(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// Keys for the per-entity lock namespaces. Cross-entity operations that
// need two locks acquire order before wallet, always.
func OrderKey(id string) string      { return "order:" + id }
func WalletKey(id string) string     { return "wallet:" + id }
func PromotionKey(id string) string  { return "promotion:" + id }
func RestaurantKey(id string) string { return "restaurant:" + id }
func DeliveryKey(id string) string   { return "delivery:" + id }

// Retry runs fn up to attempts times, backing off linearly between tries,
// as long as shouldRetry reports the failure as transient. The last error
// is returned when attempts are exhausted.
func Retry(ctx context.Context, attempts int, backoff time.Duration, shouldRetry func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !shouldRetry(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(time.Duration(i+1) * backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
