package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/queue"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

type recorder struct {
	mu         sync.Mutex
	deliveries []queue.Delivery
}

func (r *recorder) handle(_ context.Context, d queue.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliveries = append(r.deliveries, d)

	return nil
}

func (r *recorder) snapshot() []queue.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]queue.Delivery(nil), r.deliveries...)
}

func mustMessage(t *testing.T, q queue.Queue, launchID, itemID int64) queue.Message {
	t.Helper()

	msg, err := queue.NewMessage(q, queue.Headers{
		Username:    "alice",
		ProjectName: "alpha",
		LaunchID:    launchID,
		ItemID:      itemID,
	}, map[string]int64{"id": itemID})
	require.NoError(t, err)

	return msg
}

func consumeAll(ctx context.Context, t *testing.T, b queue.Broker, h queue.Handler) *sync.WaitGroup {
	t.Helper()

	var wg sync.WaitGroup

	for p := range b.Partitions() {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, b.Consume(ctx, p, h))
		}()
	}

	return &wg
}

func TestPartition(t *testing.T) {
	assert.Equal(t, 0, queue.Partition(100, 1))
	assert.Equal(t, 100%8, queue.Partition(100, 8))
	assert.Equal(t, 3, queue.Partition(-5, 8))
	assert.Equal(t, 0, queue.Partition(7, 0))
}

func TestNewMessage_Validation(t *testing.T) {
	_, err := queue.NewMessage("unknown", queue.Headers{LaunchID: 1}, nil)
	require.Error(t, err)

	_, err = queue.NewMessage(queue.QueueFinishItem, queue.Headers{ItemID: 4}, nil)
	require.Error(t, err)

	msg, err := queue.NewMessage(queue.QueueStartLaunch, queue.Headers{LaunchID: 9}, map[string]string{"name": "l"})
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, msg.Decode(&payload))
	assert.Equal(t, "l", payload["name"])
	assert.Equal(t, int64(9), msg.RoutingKey())
}

func TestMemoryBroker_OrderPerLaunchAcrossQueues(t *testing.T) {
	b := queue.NewMemoryBroker(testLogger(), 4, time.Millisecond)

	// All messages of launch 100 share a partition regardless of queue.
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartLaunch, 100, 0)))
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartItem, 100, 101)))
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartItem, 100, 102)))
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueFinishItem, 100, 102)))
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueUpdateItem, 100, 102)))
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartLaunch, 201, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	wg := consumeAll(ctx, t, b, rec.handle)

	require.Eventually(t, func() bool { return b.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()

	var launch100 []queue.Queue

	for _, d := range rec.snapshot() {
		if d.Headers.LaunchID == 100 {
			launch100 = append(launch100, d.Queue)
			assert.Equal(t, queue.Partition(100, 4), d.Partition)
		}
	}

	assert.Equal(t, []queue.Queue{
		queue.QueueStartLaunch,
		queue.QueueStartItem,
		queue.QueueStartItem,
		queue.QueueFinishItem,
		queue.QueueUpdateItem,
	}, launch100)
	assert.Len(t, rec.snapshot(), 6)
}

func TestMemoryBroker_RedeliversInPlace(t *testing.T) {
	b := queue.NewMemoryBroker(testLogger(), 1, time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartItem, 1, 10)))
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartItem, 1, 11)))

	var (
		mu       sync.Mutex
		attempts []int
		order    []int64
	)

	handler := func(_ context.Context, d queue.Delivery) error {
		mu.Lock()
		defer mu.Unlock()

		if d.Headers.ItemID == 10 && d.Attempt < 3 {
			attempts = append(attempts, d.Attempt)

			return errors.New("storage unavailable")
		}

		order = append(order, d.Headers.ItemID)

		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := consumeAll(ctx, t, b, handler)

	require.Eventually(t, func() bool { return b.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()

	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, []int64{10, 11}, order, "a failing message blocks its partition")
}

func TestMemoryBroker_SingleConsumerPerPartition(t *testing.T) {
	b := queue.NewMemoryBroker(testLogger(), 1, time.Millisecond)
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueStartLaunch, 1, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attached := make(chan struct{})

	go func() {
		var once sync.Once

		_ = b.Consume(ctx, 0, func(context.Context, queue.Delivery) error {
			once.Do(func() { close(attached) })

			return nil
		})
	}()

	<-attached

	require.Error(t, b.Consume(ctx, 0, nil))
	require.Error(t, b.Consume(ctx, 5, nil))
}

func TestMemoryBroker_UnackedSurviveConsumerStop(t *testing.T) {
	b := queue.NewMemoryBroker(testLogger(), 1, time.Hour)
	require.NoError(t, b.Publish(context.Background(), mustMessage(t, queue.QueueFinishItem, 1, 5)))

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = b.Consume(ctx, 0, func(ctx context.Context, _ queue.Delivery) error {
			close(handled)
			<-ctx.Done()

			return ctx.Err()
		})
	}()

	<-handled
	cancel()
	<-done

	assert.Equal(t, 1, b.Len())
}

func TestRouter(t *testing.T) {
	r := queue.NewRouter()
	rec := &recorder{}
	r.Handle(queue.QueueStartLaunch, rec.handle)

	require.NoError(t, r.Dispatch(context.Background(), queue.Delivery{
		Message: mustMessage(t, queue.QueueStartLaunch, 1, 0),
	}))
	assert.Len(t, rec.snapshot(), 1)

	err := r.Dispatch(context.Background(), queue.Delivery{
		Message: mustMessage(t, queue.QueueFinishLaunch, 1, 0),
	})
	require.ErrorIs(t, err, queue.ErrNoHandler)
}
