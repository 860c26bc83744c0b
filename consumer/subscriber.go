package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zpiroux/pubsubhttp/model"
)

// Record is the downstream-facing view of one pulled message: the raw
// message plus ack/nack/extendDeadline effects bound to its ackId. Ack
// and Nack are non-blocking; ExtendDeadline calls the broker
// synchronously and is not batched.
type Record = model.InternalRecord

// ErrorHandler receives errors from the ack/nack batchers and the pull
// loop. Batcher errors never terminate the stream; a non-nil error
// returned from the pull loop itself does.
type ErrorHandler func(err error)

// Config configures a Subscriber.
type Config struct {
	ReadMaxMessages         int
	ReadReturnImmediately   bool
	ReadConcurrency         int
	AcknowledgeBatchSize    int
	AcknowledgeBatchLatency time.Duration
	OnError                 ErrorHandler
}

const (
	defaultReadMaxMessages         = 1000
	defaultReadConcurrency         = 1
	defaultAcknowledgeBatchSize    = 100
	defaultAcknowledgeBatchLatency = 1 * time.Second
)

func (c *Config) setDefaults() {
	if c.ReadMaxMessages == 0 {
		c.ReadMaxMessages = defaultReadMaxMessages
	}
	if c.ReadConcurrency == 0 {
		c.ReadConcurrency = defaultReadConcurrency
	}
	if c.AcknowledgeBatchSize == 0 {
		c.AcknowledgeBatchSize = defaultAcknowledgeBatchSize
	}
	if c.AcknowledgeBatchLatency == 0 {
		c.AcknowledgeBatchLatency = defaultAcknowledgeBatchLatency
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
}

// Subscriber is the streaming composition: a pull loop feeding a
// record channel, plus an ack batcher and a nack batcher draining
// their respective queues concurrently.
type Subscriber struct {
	reader  *Reader
	cfg     Config
	ackB    *batcher
	nackB   *batcher
	records chan Record
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSubscriber opens a subscriber against reader and starts its
// background tasks (pull loop, ack batcher, nack batcher). Call Close
// to cancel them and release resources; Records() yields the lazy
// message sequence until Close is called or the pull loop fails
// fatally.
func NewSubscriber(ctx context.Context, reader *Reader, cfg Config) *Subscriber {
	cfg.setDefaults()

	ctx, cancel := context.WithCancel(ctx)

	s := &Subscriber{
		reader:  reader,
		cfg:     cfg,
		records: make(chan Record),
		cancel:  cancel,
	}
	s.ackB = newBatcher(cfg.AcknowledgeBatchSize, cfg.AcknowledgeBatchLatency, s.dispatchAck)
	s.nackB = newBatcher(cfg.AcknowledgeBatchSize, cfg.AcknowledgeBatchLatency, s.dispatchNack)

	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.ackB.run(ctx) }()
	go func() { defer s.wg.Done(); s.nackB.run(ctx) }()
	go func() { defer s.wg.Done(); s.pullLoop(ctx) }()

	return s
}

// Records returns the channel of InternalRecords. It closes once the
// pull loop terminates, fatally or via Close.
func (s *Subscriber) Records() <-chan Record {
	return s.records
}

// Close cancels the pull loop and both batchers, and waits for them to
// exit. Any ackIds already enqueued but not yet part of a dispatched
// group are dropped.
func (s *Subscriber) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Subscriber) dispatchAck(ctx context.Context, ids []model.AckID) error {
	err := s.reader.Ack(ctx, ids)
	if err != nil {
		s.handleBatchError(err)
	}
	return err
}

func (s *Subscriber) dispatchNack(ctx context.Context, ids []model.AckID) error {
	err := s.reader.Nack(ctx, ids)
	if err != nil {
		s.handleBatchError(err)
	}
	return err
}

// handleBatchError classifies an ack/nack batch error: NoAckIds warns
// (it indicates an empty group escaped batching, a batcher bug);
// Unknown/UnparseableBody log with the full body; any other error is
// logged with the wrapped chain. None of these terminate the stream.
func (s *Subscriber) handleBatchError(err error) {
	var unknown *model.UnknownError
	var unparseable *model.UnparseableBodyError

	switch {
	case errors.Is(err, model.ErrNoAckIds):
		log.Warnf("consumer: ack/nack batch rejected with no ack ids, this indicates an internal batching bug: %v", err)
	case errors.As(err, &unknown):
		log.Errorf("consumer: ack/nack batch failed, broker response: %v, body: %s", err, string(unknown.Body))
	case errors.As(err, &unparseable):
		log.Errorf("consumer: ack/nack batch failed, unparseable broker response: %v", err)
	default:
		log.Errorf("consumer: ack/nack batch failed: %+v", err)
	}
	s.cfg.OnError(err)
}

func (s *Subscriber) pullLoop(ctx context.Context) {
	defer close(s.records)

	if s.cfg.ReadConcurrency <= 1 {
		s.pullSequential(ctx)
		return
	}
	s.pullConcurrent(ctx)
}

func (s *Subscriber) pullSequential(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.reader.Read(ctx, s.cfg.ReadMaxMessages, s.cfg.ReadReturnImmediately)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("consumer: pull failed, terminating stream: %v", err)
			s.cfg.OnError(err)
			return
		}
		if !s.emit(ctx, resp) {
			return
		}
	}
}

// pullConcurrent runs ReadConcurrency pull tasks, each looping
// independently; results are merged unordered onto the shared records
// channel. A fatal error from any one task terminates the whole
// stream.
func (s *Subscriber) pullConcurrent(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(s.cfg.ReadConcurrency)
	for i := 0; i < s.cfg.ReadConcurrency; i++ {
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				resp, err := s.reader.Read(ctx, s.cfg.ReadMaxMessages, s.cfg.ReadReturnImmediately)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Errorf("consumer: pull failed, terminating stream: %v", err)
					s.cfg.OnError(err)
					cancel()
					return
				}
				if !s.emit(ctx, resp) {
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()
}

// emit pushes resp's messages onto the records channel in order,
// wrapping each with ack/nack/extendDeadline effects. Returns false if
// ctx was cancelled mid-emit.
func (s *Subscriber) emit(ctx context.Context, resp model.PullResponse) bool {
	for _, rm := range resp {
		rec := s.toRecord(rm)
		select {
		case s.records <- rec:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (s *Subscriber) toRecord(rm model.ReceivedMessage) Record {
	ackID := rm.AckID
	return Record{
		Value: rm.Message,
		AckID: ackID,
		Ack: func() {
			s.ackB.enqueue(ackID)
		},
		Nack: func() {
			s.nackB.enqueue(ackID)
		},
		ExtendDeadline: func(ctx context.Context, d time.Duration) error {
			return s.reader.ModifyDeadline(ctx, []model.AckID{ackID}, int(d.Seconds()))
		},
	}
}
