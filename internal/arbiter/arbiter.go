// Package arbiter owns access to the modem. Every operation, from any
// caller, queues here and runs alone: at most one modem conversation is in
// flight system-wide, in queue admission order.
//
// Send admission control also lives here. A send reserves rate-limit quota
// only when it reaches the head of the queue, immediately before the modem
// is touched, so denied and abandoned sends consume nothing.
package arbiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/smsgate/internal/metrics"
	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/goodtune/smsgate/internal/sms"
	"github.com/rs/zerolog"
)

// ErrQueueClosed is returned for operations submitted after Stop.
var ErrQueueClosed = errors.New("gateway shutting down")

// ModemClient is the protocol surface the arbiter serializes access to.
type ModemClient interface {
	Send(ctx context.Context, to string, segments []sms.Segment) error
	List(ctx context.Context, params modem.ListParams) (*modem.MessageList, error)
	Delete(ctx context.Context, index int) error
	Status(ctx context.Context) (*modem.StatusSnapshot, error)
}

// Config holds arbiter settings.
type Config struct {
	// QueueSize bounds how many operations may wait; further submissions
	// block until space frees.
	QueueSize int

	// QueueWait bounds time spent queued. Zero waits indefinitely.
	QueueWait time.Duration
}

type task struct {
	ctx  context.Context
	run  func(ctx context.Context) (any, error)
	done chan result
}

type result struct {
	value any
	err   error
}

// Arbiter is the single entry point for modem operations.
type Arbiter struct {
	client    ModemClient
	limiter   *ratelimit.Limiter
	encoder   *sms.Encoder
	queueWait time.Duration
	logger    zerolog.Logger

	tasks chan *task

	closeOnce sync.Once
	closed    chan struct{}
	drained   chan struct{}
}

// New creates an arbiter and starts its consumer goroutine.
func New(cfg Config, client ModemClient, limiter *ratelimit.Limiter, encoder *sms.Encoder, logger zerolog.Logger) *Arbiter {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	a := &Arbiter{
		client:    client,
		limiter:   limiter,
		encoder:   encoder,
		queueWait: cfg.QueueWait,
		logger:    logger.With().Str("component", "arbiter").Logger(),
		tasks:     make(chan *task, size),
		closed:    make(chan struct{}),
		drained:   make(chan struct{}),
	}
	go a.serve()
	return a
}

// SendSMS encodes body and sends it to one recipient, attributing quota to
// client. Bodies that exceed the segment cap fail before queueing; rate
// denials fail before the modem is invoked.
func (a *Arbiter) SendSMS(ctx context.Context, to, body, client string) error {
	segments, err := a.encoder.Encode(body)
	if err != nil {
		return err
	}

	_, err = a.submit(ctx, func(ctx context.Context) (any, error) {
		if err := a.limiter.CheckAndReserve(client); err != nil {
			return nil, err
		}
		// Admitted: the reservation stands even if the modem fails now.
		if err := a.client.Send(ctx, to, segments); err != nil {
			return nil, err
		}
		metrics.SMSSentTotal.Inc()
		metrics.SMSSegmentsTotal.Add(float64(len(segments)))
		a.logger.Info().
			Int("segments", len(segments)).
			Str("client", clientLabel(client)).
			Msg("SMS sent")
		return nil, nil
	})
	return err
}

// ListSMS reads one page of messages. Reads bypass the rate limiter but
// still queue for exclusive access.
func (a *Arbiter) ListSMS(ctx context.Context, params modem.ListParams) (*modem.MessageList, error) {
	v, err := a.submit(ctx, func(ctx context.Context) (any, error) {
		return a.client.List(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(*modem.MessageList), nil
}

// DeleteSMS removes one stored message by index.
func (a *Arbiter) DeleteSMS(ctx context.Context, index int) error {
	_, err := a.submit(ctx, func(ctx context.Context) (any, error) {
		return nil, a.client.Delete(ctx, index)
	})
	return err
}

// Status reads the modem's health snapshot.
func (a *Arbiter) Status(ctx context.Context) (*modem.StatusSnapshot, error) {
	v, err := a.submit(ctx, func(ctx context.Context) (any, error) {
		return a.client.Status(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*modem.StatusSnapshot), nil
}

// Stop rejects queued and future operations with ErrQueueClosed and waits
// for the running operation, if any, to finish.
func (a *Arbiter) Stop() {
	a.closeOnce.Do(func() { close(a.closed) })
	<-a.drained
}

// submit enqueues one operation and waits for its result. Callers that give
// up while queued return immediately; the consumer discards their entry
// without running it.
func (a *Arbiter) submit(ctx context.Context, run func(context.Context) (any, error)) (any, error) {
	if a.queueWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.queueWait)
		defer cancel()
	}

	t := &task{ctx: ctx, run: run, done: make(chan result, 1)}

	select {
	case <-a.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case a.tasks <- t:
	}

	select {
	case res := <-t.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serve is the single consumer. Operations run strictly one at a time in
// the order they entered the queue.
func (a *Arbiter) serve() {
	defer close(a.drained)
	for {
		select {
		case <-a.closed:
			a.flush()
			return
		default:
		}

		select {
		case <-a.closed:
			a.flush()
			return
		case t := <-a.tasks:
			a.runTask(t)
		}
	}
}

func (a *Arbiter) runTask(t *task) {
	// Abandoned while queued: no quota, no modem turn.
	if err := t.ctx.Err(); err != nil {
		t.done <- result{err: err}
		return
	}
	value, err := t.run(t.ctx)
	t.done <- result{value: value, err: err}
}

// flush fails everything still queued at shutdown.
func (a *Arbiter) flush() {
	for {
		select {
		case t := <-a.tasks:
			t.done <- result{err: ErrQueueClosed}
		default:
			return
		}
	}
}

func clientLabel(client string) string {
	if client == "" {
		return "anonymous"
	}
	return client
}
