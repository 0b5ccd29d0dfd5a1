package arbiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/goodtune/smsgate/internal/sms"
	"github.com/rs/zerolog"
)

// fakeClient records modem calls. When block is set, Send parks until the
// channel is closed, which lets tests hold the consumer busy while more
// operations pile up behind it.
type fakeClient struct {
	block   chan struct{}
	started chan struct{}
	sendErr error

	inflight    atomic.Int32
	maxInflight atomic.Int32

	mu    sync.Mutex
	sends []string
}

func (f *fakeClient) Send(ctx context.Context, to string, segments []sms.Segment) error {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxInflight.Load()
		if cur <= max || f.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.sends = append(f.sends, to)
	f.mu.Unlock()
	return f.sendErr
}

func (f *fakeClient) List(ctx context.Context, params modem.ListParams) (*modem.MessageList, error) {
	return &modem.MessageList{Count: 0}, nil
}

func (f *fakeClient) Delete(ctx context.Context, index int) error {
	return nil
}

func (f *fakeClient) Status(ctx context.Context) (*modem.StatusSnapshot, error) {
	return &modem.StatusSnapshot{SignalLevel: 4, Registered: true}, nil
}

func (f *fakeClient) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeClient) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

func newTestArbiter(t *testing.T, cfg Config, fake *fakeClient, limits ratelimit.Config) *Arbiter {
	t.Helper()
	limiter := ratelimit.New(limits, zerolog.Nop())
	a := New(cfg, fake, limiter, sms.NewEncoder(0), zerolog.Nop())
	t.Cleanup(a.Stop)
	return a
}

// waitQueued polls until n operations are waiting in the queue.
func waitQueued(t *testing.T, a *Arbiter, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(a.tasks) < n {
		select {
		case <-deadline:
			t.Fatalf("queue never reached %d waiting operations", n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSendSMS(t *testing.T) {
	fake := &fakeClient{}
	a := newTestArbiter(t, Config{}, fake, ratelimit.Config{})

	if err := a.SendSMS(context.Background(), "+15551234567", "hello", ""); err != nil {
		t.Fatalf("SendSMS failed: %v", err)
	}
	if got := fake.sendCount(); got != 1 {
		t.Errorf("expected 1 modem send, got %d", got)
	}
}

func TestDenialNeverTouchesModem(t *testing.T) {
	fake := &fakeClient{}
	a := newTestArbiter(t, Config{}, fake, ratelimit.Config{Hourly: 1})

	if err := a.SendSMS(context.Background(), "+15551234567", "first", ""); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	err := a.SendSMS(context.Background(), "+15551234567", "second", "")
	var denial *ratelimit.Denial
	if !errors.As(err, &denial) {
		t.Fatalf("expected rate limit denial, got %v", err)
	}
	if denial.Window != ratelimit.WindowHourly {
		t.Errorf("expected hourly denial, got %s", denial.Window)
	}
	if got := fake.sendCount(); got != 1 {
		t.Errorf("denied send reached the modem: %d sends", got)
	}
}

func TestTooLongNeverQueuesOrReserves(t *testing.T) {
	fake := &fakeClient{}
	limiter := ratelimit.New(ratelimit.Config{Hourly: 10}, zerolog.Nop())
	a := New(Config{}, fake, limiter, sms.NewEncoder(1), zerolog.Nop())
	defer a.Stop()

	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	err := a.SendSMS(context.Background(), "+15551234567", long, "")
	if !errors.Is(err, sms.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if got := fake.sendCount(); got != 0 {
		t.Errorf("rejected send reached the modem: %d sends", got)
	}
	if usage := limiter.Status().HourlyUsage; usage != 0 {
		t.Errorf("rejected send consumed quota: usage %d", usage)
	}
}

func TestExclusiveAccess(t *testing.T) {
	fake := &fakeClient{}
	a := newTestArbiter(t, Config{}, fake, ratelimit.Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			to := fmt.Sprintf("+1555%07d", n)
			if err := a.SendSMS(context.Background(), to, "hello", ""); err != nil {
				t.Errorf("send %d failed: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if max := fake.maxInflight.Load(); max != 1 {
		t.Errorf("expected at most 1 modem conversation in flight, saw %d", max)
	}
	if got := fake.sendCount(); got != 10 {
		t.Errorf("expected 10 sends, got %d", got)
	}
}

func TestQueueOrderPreserved(t *testing.T) {
	fake := &fakeClient{
		block:   make(chan struct{}),
		started: make(chan struct{}, 10),
	}
	a := newTestArbiter(t, Config{}, fake, ratelimit.Config{})

	var wg sync.WaitGroup
	send := func(to string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.SendSMS(context.Background(), to, "hello", ""); err != nil {
				t.Errorf("send to %s failed: %v", to, err)
			}
		}()
	}

	send("first")
	<-fake.started // first is running and parked

	for i, to := range []string{"second", "third", "fourth"} {
		send(to)
		waitQueued(t, a, i+1)
	}

	close(fake.block)
	for i := 0; i < 3; i++ {
		<-fake.started
	}
	wg.Wait()

	want := []string{"first", "second", "third", "fourth"}
	got := fake.sentTo()
	if len(got) != len(want) {
		t.Fatalf("expected %d sends, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("send %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCancelledWhileQueuedConsumesNothing(t *testing.T) {
	fake := &fakeClient{
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	limiter := ratelimit.New(ratelimit.Config{Hourly: 10}, zerolog.Nop())
	a := New(Config{}, fake, limiter, sms.NewEncoder(0), zerolog.Nop())
	defer a.Stop()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- a.SendSMS(context.Background(), "first", "hello", "")
	}()
	<-fake.started

	ctx, cancel := context.WithCancel(context.Background())
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- a.SendSMS(ctx, "second", "hello", "")
	}()
	waitQueued(t, a, 1)
	cancel()

	close(fake.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := <-secondDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if got := fake.sendCount(); got != 1 {
		t.Errorf("cancelled send reached the modem: %d sends", got)
	}
	if usage := limiter.Status().HourlyUsage; usage != 1 {
		t.Errorf("cancelled send consumed quota: usage %d", usage)
	}
}

func TestQueueWaitDeadline(t *testing.T) {
	fake := &fakeClient{
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	a := newTestArbiter(t, Config{QueueWait: 20 * time.Millisecond}, fake, ratelimit.Config{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- a.SendSMS(context.Background(), "first", "hello", "")
	}()
	<-fake.started

	err := a.SendSMS(context.Background(), "second", "hello", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	close(fake.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if got := fake.sendCount(); got != 1 {
		t.Errorf("timed-out send reached the modem: %d sends", got)
	}
}

func TestModemFailureKeepsReservation(t *testing.T) {
	fake := &fakeClient{
		sendErr: &modem.APIError{Code: modem.CodeSmsSystemBusy, Message: "sms system busy"},
	}
	limiter := ratelimit.New(ratelimit.Config{Hourly: 10}, zerolog.Nop())
	a := New(Config{}, fake, limiter, sms.NewEncoder(0), zerolog.Nop())
	defer a.Stop()

	err := a.SendSMS(context.Background(), "+15551234567", "hello", "")
	var apiErr *modem.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected modem APIError, got %v", err)
	}
	if usage := limiter.Status().HourlyUsage; usage != 1 {
		t.Errorf("failed send should keep its reservation: usage %d", usage)
	}
}

func TestReadsBypassLimiter(t *testing.T) {
	fake := &fakeClient{}
	a := newTestArbiter(t, Config{}, fake, ratelimit.Config{Hourly: 1})

	if err := a.SendSMS(context.Background(), "+15551234567", "hello", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// Global hourly quota is spent; reads must still go through.
	if _, err := a.ListSMS(context.Background(), modem.ListParams{}); err != nil {
		t.Errorf("ListSMS failed: %v", err)
	}
	if err := a.DeleteSMS(context.Background(), 40000); err != nil {
		t.Errorf("DeleteSMS failed: %v", err)
	}
	if _, err := a.Status(context.Background()); err != nil {
		t.Errorf("Status failed: %v", err)
	}
}

func TestStopFailsQueuedOperations(t *testing.T) {
	fake := &fakeClient{
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	limiter := ratelimit.New(ratelimit.Config{}, zerolog.Nop())
	a := New(Config{}, fake, limiter, sms.NewEncoder(0), zerolog.Nop())

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- a.SendSMS(context.Background(), "first", "hello", "")
	}()
	<-fake.started

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- a.SendSMS(context.Background(), "second", "hello", "")
	}()
	waitQueued(t, a, 1)

	stopDone := make(chan struct{})
	go func() {
		a.Stop()
		close(stopDone)
	}()
	<-a.closed // shutdown latched; nothing queued may run anymore

	// The running operation finishes; the queued one is rejected.
	close(fake.block)
	if err := <-firstDone; err != nil {
		t.Errorf("running send should finish on Stop: %v", err)
	}
	if err := <-secondDone; !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed for queued send, got %v", err)
	}
	<-stopDone

	if err := a.SendSMS(context.Background(), "third", "hello", ""); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed after Stop, got %v", err)
	}
	if got := fake.sendCount(); got != 1 {
		t.Errorf("expected only the running send to complete, got %d", got)
	}
}
