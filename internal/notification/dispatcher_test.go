package notification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"requisition/internal/model"
)

// recordingChannel fails the first failures sends, then records deliveries
type recordingChannel struct {
	name     string
	failures int32
	calls    atomic.Int32

	mu        sync.Mutex
	delivered []uuid.UUID
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, to Recipient, _ *Event) error {
	n := c.calls.Add(1)
	if n <= c.failures {
		return errors.New("smtp unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, to.UserID)
	return nil
}

func (c *recordingChannel) Delivered() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uuid.UUID(nil), c.delivered...)
}

type staticRecipients struct {
	recipients []Recipient
	err        error
}

func (s staticRecipients) Recipients(context.Context, *Event) ([]Recipient, error) {
	return s.recipients, s.err
}

func testEvent(t Type) *Event {
	req := &model.Request{ID: uuid.New(), Type: model.RequestTypeStore, RequesterID: uuid.New(),
		WorkflowStage: model.StageSOReview, Status: model.StatusPending}
	return NewEvent(t, req, uuid.New(), nil)
}

func fastRetry(max int) Option {
	return WithRetry(max, time.Millisecond, 5*time.Millisecond)
}

func TestDispatcher_DeliversToEveryRecipientAndChannel(t *testing.T) {
	ws := &recordingChannel{name: "websocket"}
	mail := &recordingChannel{name: "email"}
	alice, bob := Recipient{UserID: uuid.New()}, Recipient{UserID: uuid.New()}

	d := NewDispatcher(WithChannels(ws, mail), WithRecipients(staticRecipients{recipients: []Recipient{alice, bob}}), fastRetry(3))
	d.Publish(context.Background(), testEvent(TypeRequestApproved))
	require.NoError(t, d.Close(context.Background()))

	assert.ElementsMatch(t, []uuid.UUID{alice.UserID, bob.UserID}, ws.Delivered())
	assert.ElementsMatch(t, []uuid.UUID{alice.UserID, bob.UserID}, mail.Delivered())
	assert.Equal(t, int64(5), d.Stats().Delivered) // fan-out plus four deliveries
}

func TestDispatcher_RetriesFailedChannelIndependently(t *testing.T) {
	flaky := &recordingChannel{name: "email", failures: 2}
	steady := &recordingChannel{name: "websocket"}
	to := Recipient{UserID: uuid.New()}

	core, logs := observer.New(zap.WarnLevel)
	d := NewDispatcher(WithChannels(flaky, steady), WithLogger(zap.New(core)), fastRetry(5))
	d.Notify(context.Background(), to, testEvent(TypeRequestRejected))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []uuid.UUID{to.UserID}, flaky.Delivered())
	assert.Equal(t, []uuid.UUID{to.UserID}, steady.Delivered())
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, int32(1), steady.calls.Load())
	assert.Equal(t, int64(2), d.Stats().Retried)
	assert.Equal(t, 2, logs.FilterMessage("Notification delivery failed, retrying").Len())
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	broken := &recordingChannel{name: "email", failures: 100}
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(WithChannels(broken), WithLogger(zap.New(core)), fastRetry(2))

	d.Notify(context.Background(), Recipient{UserID: uuid.New()}, testEvent(TypeRequestSentBack))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(3), broken.calls.Load())
	assert.Equal(t, int64(1), d.Stats().Failed)
	assert.Equal(t, 1, logs.FilterMessage("Notification delivery failed, retries exhausted").Len())
}

func TestDispatcher_RetriesRecipientResolution(t *testing.T) {
	var calls atomic.Int32
	resolver := resolverFunc(func(context.Context, *Event) ([]Recipient, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("directory down")
		}
		return []Recipient{{UserID: uuid.New()}}, nil
	})
	ch := &recordingChannel{name: "log"}
	d := NewDispatcher(WithChannels(ch), WithRecipients(resolver), fastRetry(3))

	d.Publish(context.Background(), testEvent(TypeRequestProgressed))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, ch.Delivered(), 1)
}

type resolverFunc func(context.Context, *Event) ([]Recipient, error)

func (f resolverFunc) Recipients(ctx context.Context, evt *Event) ([]Recipient, error) {
	return f(ctx, evt)
}

func TestDispatcher_SubscribersAndPanics(t *testing.T) {
	d := NewDispatcher(fastRetry(1))

	var assigned atomic.Int32
	d.Subscribe(TypeRequestAssigned, "fleet", func(context.Context, *Event) error {
		assigned.Add(1)
		return nil
	})
	d.Subscribe(TypeRequestAssigned, "explodes", func(context.Context, *Event) error {
		panic("boom")
	})
	require.Len(t, d.ListHandlers(TypeRequestAssigned), 2)

	d.Publish(context.Background(), testEvent(TypeRequestAssigned))
	d.Publish(context.Background(), testEvent(TypeRequestCompleted))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(1), assigned.Load())
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_PublishNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	slow := channelFunc(func(context.Context, Recipient, *Event) error {
		<-release
		return nil
	})
	d := NewDispatcher(WithChannels(slow), WithWorkers(1), WithQueueSize(1), fastRetry(0))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Notify(context.Background(), Recipient{UserID: uuid.New()}, testEvent(TypeRequestApproved))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int64(20), d.Stats().Delivered)
}

type channelFunc func(context.Context, Recipient, *Event) error

func (f channelFunc) Name() string { return "func" }
func (f channelFunc) Send(ctx context.Context, to Recipient, evt *Event) error {
	return f(ctx, to, evt)
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, d.Close(context.Background()), ErrClosed)

	// publishing after close is dropped, not panicking
	d.Publish(context.Background(), testEvent(TypeRequestApproved))
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	stuck := &recordingChannel{name: "email", failures: 100}
	d := NewDispatcher(WithChannels(stuck), WithRetry(10, time.Hour, time.Hour))
	d.Notify(context.Background(), Recipient{UserID: uuid.New()}, testEvent(TypeRequestApproved))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{7, 30 * time.Second},
		{80, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Backoff(tt.attempt, time.Second, 30*time.Second), "attempt %d", tt.attempt)
	}
}
