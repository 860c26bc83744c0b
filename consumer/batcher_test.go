package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpiroux/pubsubhttp/model"
)

func TestBatcher_DispatchesAtSize(t *testing.T) {
	var mu sync.Mutex
	var dispatched [][]model.AckID

	b := newBatcher(2, time.Hour, func(_ context.Context, ids []model.AckID) error {
		mu.Lock()
		dispatched = append(dispatched, ids)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.run(ctx)

	b.enqueue("a1")
	b.enqueue("a2")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.AckID{"a1", "a2"}, dispatched[0])
}

func TestBatcher_DispatchesAtLatency(t *testing.T) {
	var mu sync.Mutex
	var dispatched [][]model.AckID

	b := newBatcher(100, 30*time.Millisecond, func(_ context.Context, ids []model.AckID) error {
		mu.Lock()
		dispatched = append(dispatched, ids)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.run(ctx)

	b.enqueue("a1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.AckID{"a1"}, dispatched[0])
}

func TestBatcher_NeverDispatchesEmptyGroup(t *testing.T) {
	var mu sync.Mutex
	var calls int

	b := newBatcher(10, 20*time.Millisecond, func(_ context.Context, ids []model.AckID) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go b.run(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

// TestBatcher_UnboundedQueueNeverDropsUnderBackpressure enqueues far
// more ids than a single group of size ids holds, with
// dispatch deliberately slower than enqueue, and asserts every id is
// eventually dispatched exactly once. This is steady-state
// backpressure, not cancellation, so nothing should be dropped.
func TestBatcher_UnboundedQueueNeverDropsUnderBackpressure(t *testing.T) {
	const size = 2
	const total = 1000

	var mu sync.Mutex
	seen := make(map[model.AckID]bool)

	b := newBatcher(size, time.Hour, func(_ context.Context, ids []model.AckID) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		for _, id := range ids {
			seen[id] = true
		}
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.run(ctx)

	for i := 0; i < total; i++ {
		b.enqueue(model.AckID(fmt.Sprintf("a%d", i)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == total
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, total)
}

func TestBatcher_CancellationDropsUnflushedIds(t *testing.T) {
	var mu sync.Mutex
	var calls int

	b := newBatcher(10, time.Hour, func(_ context.Context, ids []model.AckID) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go b.run(ctx)

	b.enqueue("a1")
	time.Sleep(10 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}
