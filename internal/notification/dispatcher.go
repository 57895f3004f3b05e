package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by Close when the dispatcher was already shut down
var ErrClosed = errors.New("dispatcher is closed")

// Handler reacts to an event. A returned error schedules a retry.
type Handler func(ctx context.Context, evt *Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType Type
	Handler   Handler
}

// Recipient is one person an event is delivered to
type Recipient struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// RecipientResolver decides who hears about an event
type RecipientResolver interface {
	Recipients(ctx context.Context, evt *Event) ([]Recipient, error)
}

// Channel delivers one event to one recipient
type Channel interface {
	Name() string
	Send(ctx context.Context, to Recipient, evt *Event) error
}

// Publisher is the fire-and-forget side the request service talks to
type Publisher interface {
	Publish(ctx context.Context, evt *Event)
	Notify(ctx context.Context, to Recipient, evt *Event)
}

// Stats counts job outcomes since start
type Stats struct {
	Delivered int64
	Retried   int64
	Failed    int64
}

// job is one retryable unit: a subscriber call, a recipient fan-out or a single channel delivery
type job struct {
	name    string
	evt     *Event
	ctx     context.Context
	run     func(ctx context.Context) error
	attempt int
}

// Dispatcher delivers events asynchronously with at-least-once semantics.
// Every job is retried independently with exponential backoff, so one failing
// channel never holds up another, and callers are never blocked.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   map[Type][]HandlerInfo
	channels   []Channel
	recipients RecipientResolver
	logger     *zap.Logger

	workers        int
	maxRetries     int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	attemptTimeout time.Duration

	queue  chan *job
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	delivered atomic.Int64
	retried   atomic.Int64
	failed    atomic.Int64
}

// Option configures the dispatcher
type Option func(*Dispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithWorkers sets the number of delivery goroutines
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the buffered queue capacity
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan *job, n)
		}
	}
}

// WithRetry sets the retry budget and backoff bounds
func WithRetry(maxRetries int, base, max time.Duration) Option {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		d.baseBackoff = base
		d.maxBackoff = max
	}
}

// WithChannels sets the delivery channels used for recipients
func WithChannels(channels ...Channel) Option {
	return func(d *Dispatcher) {
		d.channels = append(d.channels, channels...)
	}
}

// WithRecipients sets the resolver used by Publish
func WithRecipients(r RecipientResolver) Option {
	return func(d *Dispatcher) {
		d.recipients = r
	}
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers:       make(map[Type][]HandlerInfo),
		logger:         zap.NewNop(),
		workers:        4,
		maxRetries:     5,
		baseBackoff:    time.Second,
		maxBackoff:     time.Minute,
		attemptTimeout: 15 * time.Second,
		queue:          make(chan *job, 256),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	for i := 0; i < d.workers; i++ {
		go d.worker()
	}
	return d
}

// Subscribe registers a named handler for an event type
func (d *Dispatcher) Subscribe(eventType Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})
	d.logger.Info("Handler registered", zap.String("event_type", string(eventType)), zap.String("handler_name", name))
}

// ListHandlers returns registered handlers for an event type
func (d *Dispatcher) ListHandlers(eventType Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]HandlerInfo, len(d.handlers[eventType]))
	copy(result, d.handlers[eventType])
	return result
}

// Publish hands the event to every subscriber and to every recipient the resolver names.
// It returns immediately.
func (d *Dispatcher) Publish(ctx context.Context, evt *Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.logger.Error("Cannot publish event, dispatcher is closed",
			zap.String("event_type", string(evt.Type)), zap.String("event_id", evt.ID))
		return
	}

	base := context.WithoutCancel(ctx)
	for _, info := range d.handlers[evt.Type] {
		h := info.Handler
		d.add(&job{name: "handler:" + info.Name, evt: evt, ctx: base, run: func(ctx context.Context) error {
			return h(ctx, evt)
		}})
	}
	if d.recipients != nil && len(d.channels) > 0 {
		d.add(&job{name: "fanout", evt: evt, ctx: base, run: func(ctx context.Context) error {
			return d.fanOut(ctx, base, evt)
		}})
	}
}

// Notify delivers the event to a single recipient on every channel
func (d *Dispatcher) Notify(ctx context.Context, to Recipient, evt *Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.logger.Error("Cannot notify, dispatcher is closed",
			zap.String("event_type", string(evt.Type)), zap.String("user_id", to.UserID.String()))
		return
	}
	d.deliver(context.WithoutCancel(ctx), to, evt)
}

func (d *Dispatcher) fanOut(ctx, base context.Context, evt *Event) error {
	recipients, err := d.recipients.Recipients(ctx, evt)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	for _, to := range recipients {
		d.deliver(base, to, evt)
	}
	return nil
}

func (d *Dispatcher) deliver(base context.Context, to Recipient, evt *Event) {
	for _, ch := range d.channels {
		ch := ch
		d.add(&job{name: ch.Name() + ":" + to.UserID.String(), evt: evt, ctx: base, run: func(ctx context.Context) error {
			return ch.Send(ctx, to, evt)
		}})
	}
}

// add accounts for the job before it is queued so Close waits for it
func (d *Dispatcher) add(j *job) {
	d.wg.Add(1)
	d.submit(j)
}

// submit never blocks the caller; a full queue hands the job to a goroutine that waits for room
func (d *Dispatcher) submit(j *job) {
	select {
	case d.queue <- j:
	default:
		go func() {
			select {
			case d.queue <- j:
			case <-d.done:
				d.wg.Done()
			}
		}()
	}
}

func (d *Dispatcher) worker() {
	for {
		select {
		case j := <-d.queue:
			d.execute(j)
		case <-d.done:
			return
		}
	}
}

func (d *Dispatcher) execute(j *job) {
	err := d.safeRun(j)
	if err == nil {
		d.delivered.Add(1)
		d.wg.Done()
		return
	}

	j.attempt++
	if j.attempt > d.maxRetries {
		d.failed.Add(1)
		d.logger.Error("Notification delivery failed, retries exhausted",
			zap.String("job", j.name),
			zap.String("event_type", string(j.evt.Type)),
			zap.String("event_id", j.evt.ID),
			zap.Int("attempts", j.attempt),
			zap.Error(err))
		d.wg.Done()
		return
	}

	delay := Backoff(j.attempt, d.baseBackoff, d.maxBackoff)
	d.retried.Add(1)
	d.logger.Warn("Notification delivery failed, retrying",
		zap.String("job", j.name),
		zap.String("event_type", string(j.evt.Type)),
		zap.String("event_id", j.evt.ID),
		zap.Int("attempt", j.attempt),
		zap.Duration("next_backoff", delay),
		zap.Error(err))
	time.AfterFunc(delay, func() { d.submit(j) })
}

// safeRun runs a job with panic recovery and a per-attempt timeout
func (d *Dispatcher) safeRun(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification job panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(j.ctx, d.attemptTimeout)
	defer cancel()
	return j.run(ctx)
}

// Stats returns the job counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Retried:   d.retried.Load(),
		Failed:    d.failed.Load(),
	}
}

// Close stops accepting events and waits for queued and retrying jobs until ctx expires
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return ErrClosed
	}
	d.mu.Unlock()

	d.logger.Info("Closing dispatcher, waiting for pending deliveries")

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("dispatcher close: %w", ctx.Err())
		d.logger.Warn("Dispatcher closed with pending deliveries", zap.Error(err))
	}
	close(d.done)

	d.logger.Info("Dispatcher closed")
	return err
}
