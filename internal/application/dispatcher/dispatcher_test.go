package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/lease-agent/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newEvent() *event.Event {
	return event.NewEvent(event.TypeReviewRequired, "LR-1", map[string]interface{}{event.KeyStepNumber: 2})
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeReviewRequired, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeReviewRequired, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.SubscribeNamed(event.TypeRequestCompleted, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), newEvent()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	called := false

	d.SubscribeNamed(event.TypeReviewRequired, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("lark unavailable")
	})
	d.SubscribeNamed(event.TypeReviewRequired, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler failing failed")
	assert.False(t, called)
	assert.Equal(t, 1, logger.errorCount())
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))
	d.Subscribe(event.TypeReviewRequired, func(ctx context.Context, evt *event.Event) error {
		panic("boom")
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: boom")
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.SubscribeNamed(event.TypeReviewRequired, "keep", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})
	d.SubscribeNamed(event.TypeReviewRequired, "drop", func(ctx context.Context, evt *event.Event) error {
		calls.Add(10)
		return nil
	})
	d.Unsubscribe(event.TypeReviewRequired, "drop")

	require.NoError(t, d.Dispatch(context.Background(), newEvent()))
	assert.Equal(t, int32(1), calls.Load())

	handlers := d.ListHandlers(event.TypeReviewRequired)
	require.Len(t, handlers, 1)
	assert.Equal(t, "keep", handlers[0].Name)
	assert.Nil(t, handlers[0].Handler)
}

func TestDispatchAsync_SurvivesCallerCancellation(t *testing.T) {
	d := NewDispatcher()
	done := make(chan error, 1)

	d.Subscribe(event.TypeReviewRequired, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(20 * time.Millisecond)
		done <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, newEvent())
	cancel()

	require.NoError(t, d.Close())
	assert.NoError(t, <-done)
}

func TestDispatchAsync_HandlerTimeout(t *testing.T) {
	d := NewDispatcher(WithHandlerTimeout(10 * time.Millisecond))
	done := make(chan error, 1)

	d.Subscribe(event.TypeReviewRequired, func(ctx context.Context, evt *event.Event) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})

	d.DispatchAsync(context.Background(), newEvent())
	require.NoError(t, d.Close())
	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)
	assert.ErrorIs(t, d.Dispatch(context.Background(), newEvent()), ErrClosed)

	d.DispatchAsync(context.Background(), newEvent())
	assert.Equal(t, 1, logger.errorCount())
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeStepAdvanced, fmt.Sprintf("h-%d", id), func(ctx context.Context, evt *event.Event) error {
				calls.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeStepAdvanced, "LR-1", nil))
	}
	require.NoError(t, d.Close())

	assert.Len(t, d.ListHandlers(event.TypeStepAdvanced), 10)
	assert.Equal(t, int32(50), calls.Load())
}
