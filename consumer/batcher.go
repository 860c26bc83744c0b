package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/zpiroux/pubsubhttp/model"
)

// batchFunc dispatches one closed group of ackIds, e.g. reader.Ack or
// reader.Nack.
type batchFunc func(ctx context.Context, ackIDs []model.AckID) error

// batcher implements groupWithin(size, latency): it accumulates AckIDs
// enqueued via enqueue and dispatches them as a group once the group
// reaches size elements, or once latency has elapsed since the first
// element of the current group arrived, whichever happens first. An
// empty group is never dispatched — the broker rejects a zero-length
// ackIds list.
//
// The backing queue is unbounded: enqueue never blocks and never drops
// an id while run is active. Only cancellation drops anything still
// queued.
type batcher struct {
	mu       sync.Mutex
	queue    []model.AckID
	signal   chan struct{}
	dispatch batchFunc
	size     int
	latency  time.Duration
}

func newBatcher(size int, latency time.Duration, dispatch batchFunc) *batcher {
	return &batcher{
		signal:   make(chan struct{}, 1),
		dispatch: dispatch,
		size:     size,
		latency:  latency,
	}
}

// enqueue appends id to the unbounded queue and wakes run if it's
// idle. It never blocks and never drops id.
func (b *batcher) enqueue(id model.AckID) {
	b.mu.Lock()
	b.queue = append(b.queue, id)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// drain removes and returns everything currently queued, or nil if
// the queue is empty.
func (b *batcher) drain() []model.AckID {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	ids := b.queue
	b.queue = nil
	return ids
}

// run drives the group-accumulation loop until ctx is cancelled. Any
// ids already enqueued but not yet part of a dispatched group are
// dropped on cancellation.
func (b *batcher) run(ctx context.Context) {
	group := make([]model.AckID, 0, b.size)
	var timer *time.Timer

	resetTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(b.latency)
	}

	flush := func() {
		if len(group) == 0 {
			return
		}
		if err := b.dispatch(ctx, group); err != nil {
			log.Errorf("consumer: batch dispatch failed: %v", err)
		}
		group = make([]model.AckID, 0, b.size)
	}

	// timerC is nil until the first id of a new group arrives, so an
	// idle batcher never fires spuriously.
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.signal:
			for _, id := range b.drain() {
				if len(group) == 0 {
					resetTimer()
					timerC = timer.C
				}
				group = append(group, id)
				if len(group) >= b.size {
					flush()
					timerC = nil
				}
			}
		case <-timerC:
			flush()
			timerC = nil
		}
	}
}
