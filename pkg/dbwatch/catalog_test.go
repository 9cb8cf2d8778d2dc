package dbwatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingTarget struct {
	calls atomic.Int32
	err   error
}

func (t *countingTarget) Reinitialize(ctx context.Context) error {
	t.calls.Add(1)
	return t.err
}

func TestSettleCollapsesBursts(t *testing.T) {
	target := &countingTarget{}
	watch := &CatalogWatch{Target: target, SettleTime: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string)
	done := make(chan struct{})
	go func() {
		watch.settle(ctx, changes)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		changes <- "routes"
	}

	assert.Eventually(t, func() bool {
		return target.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	changes <- "stops"
	assert.Eventually(t, func() bool {
		return target.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSettleNoChanges(t *testing.T) {
	target := &countingTarget{}
	watch := &CatalogWatch{Target: target, SettleTime: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	watch.settle(ctx, make(chan string))

	assert.Equal(t, int32(0), target.calls.Load())
}

func TestSettleKeepsRunningAfterError(t *testing.T) {
	target := &countingTarget{err: errors.New("catalog unavailable")}
	watch := &CatalogWatch{Target: target, SettleTime: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string)
	go watch.settle(ctx, changes)

	changes <- "routes"
	assert.Eventually(t, func() bool { return target.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	changes <- "routes"
	assert.Eventually(t, func() bool { return target.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
