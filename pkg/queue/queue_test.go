package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/gateway/pkg/browser"
)

func navRequest(url string, deadline time.Time) *Request {
	return NewRequest(browser.Action{Type: browser.ActionNavigate, URL: url}, deadline)
}

func TestEnqueueDequeuePreservesFIFO(t *testing.T) {
	q := New(4)
	first := navRequest("https://example.com/1", time.Time{})
	second := navRequest("https://example.com/2", time.Time{})

	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(second))

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), got.ID())

	got, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID(), got.ID())
}

func TestEnqueueAtCapacityFailsWithoutSideEffects(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Enqueue(navRequest("https://example.com/1", time.Time{})))
	require.NoError(t, q.Enqueue(navRequest("https://example.com/2", time.Time{})))

	err := q.Enqueue(navRequest("https://example.com/3", time.Time{}))
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len(), "a rejected enqueue must not change the queue")
}

func TestDequeueSkipsExpiredAndDeliversTimedOut(t *testing.T) {
	q := New(4)
	expired := navRequest("https://example.com/late", time.Now().Add(-time.Second))
	fresh := navRequest("https://example.com/fresh", time.Now().Add(time.Minute))

	require.NoError(t, q.Enqueue(expired))
	require.NoError(t, q.Enqueue(fresh))

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh.ID(), got.ID(), "expired request must never be dispatched")

	select {
	case outcome := <-expired.Outcome():
		assert.ErrorIs(t, outcome.Err, ErrTimedOut)
	default:
		t.Fatal("expired request should have received a TimedOut outcome")
	}
}

func TestDequeueSkipsCancelled(t *testing.T) {
	q := New(4)
	cancelled := navRequest("https://example.com/cancelled", time.Time{})
	kept := navRequest("https://example.com/kept", time.Time{})

	require.NoError(t, q.Enqueue(cancelled))
	require.NoError(t, q.Enqueue(kept))
	cancelled.Cancel()

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, kept.ID(), got.ID())
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(4)
	r := navRequest("https://example.com", time.Time{})

	done := make(chan *Request, 1)
	go func() {
		got, err := q.Dequeue(context.Background())
		if err == nil {
			done <- got
		}
	}()

	select {
	case <-done:
		t.Fatal("dequeue should block on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(r))

	select {
	case got := <-done:
		assert.Equal(t, r.ID(), got.ID())
	case <-time.After(time.Second):
		t.Fatal("dequeue should return after enqueue")
	}
}

func TestDequeueRespectsContext(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseResolvesPendingRequests(t *testing.T) {
	q := New(4)
	pending := navRequest("https://example.com", time.Time{})
	require.NoError(t, q.Enqueue(pending))

	q.Close()

	select {
	case outcome := <-pending.Outcome():
		assert.ErrorIs(t, outcome.Err, ErrQueueClosed)
	default:
		t.Fatal("pending request should be resolved at close")
	}

	assert.ErrorIs(t, q.Enqueue(navRequest("https://example.com/x", time.Time{})), ErrQueueClosed)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDeliverIsExactlyOnce(t *testing.T) {
	r := navRequest("https://example.com", time.Time{})
	r.Deliver(&browser.Result{URL: "https://example.com"}, nil)
	r.Deliver(nil, ErrTimedOut) // ignored

	outcome := <-r.Outcome()
	require.NoError(t, outcome.Err)
	assert.Equal(t, "https://example.com", outcome.Result.URL)

	select {
	case <-r.Outcome():
		t.Fatal("second outcome must never be delivered")
	default:
	}
}
