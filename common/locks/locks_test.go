package locks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"delivery-core/common/locks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_MutualExclusion(t *testing.T) {
	m := locks.NewManager(time.Second)
	key := locks.OrderKey("abc")

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), key)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max, "more than one holder inside the critical section")
}

func TestManager_DifferentKeysDoNotBlock(t *testing.T) {
	m := locks.NewManager(50 * time.Millisecond)

	releaseA, err := m.Acquire(context.Background(), locks.OrderKey("a"))
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := m.Acquire(context.Background(), locks.WalletKey("a"))
	require.NoError(t, err)
	releaseB()
}

func TestManager_BoundedWait(t *testing.T) {
	m := locks.NewManager(20 * time.Millisecond)
	key := locks.PromotionKey("held")

	release, err := m.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = m.Acquire(context.Background(), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, locks.ErrLockTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestManager_ContextCancellation(t *testing.T) {
	m := locks.NewManager(time.Minute)
	key := locks.DeliveryKey("held")

	release, err := m.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = m.Acquire(ctx, key)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_ReleasedLockIsReacquirable(t *testing.T) {
	m := locks.NewManager(20 * time.Millisecond)
	key := locks.RestaurantKey("r")

	release, err := m.Acquire(context.Background(), key)
	require.NoError(t, err)
	release()

	release, err = m.Acquire(context.Background(), key)
	require.NoError(t, err)
	release()
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := locks.Retry(context.Background(), 3, time.Millisecond, func(error) bool { return true }, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := locks.Retry(context.Background(), 5, time.Millisecond, func(error) bool { return false }, func() error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := locks.Retry(context.Background(), 3, time.Millisecond, func(error) bool { return true }, func() error {
		calls++
		return transient
	})
	assert.Equal(t, transient, err)
	assert.Equal(t, 3, calls)
}
