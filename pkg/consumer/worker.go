package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/reportoor/pkg/deadletter"
	"github.com/ethpandaops/reportoor/pkg/metrics"
	"github.com/ethpandaops/reportoor/pkg/queue"
	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// Worker consumes every broker partition with one goroutine each.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

// WorkerOptions configures a worker.
type WorkerOptions struct {
	// MaxDeliveries is the number of attempts a transiently failing message
	// gets before it is dead-lettered.
	MaxDeliveries int
}

// Compile-time interface check.
var _ Worker = (*worker)(nil)

type worker struct {
	log    logrus.FieldLogger
	broker queue.Broker
	router *queue.Router
	sink   deadletter.Sink
	opts   WorkerOptions

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// NewWorker creates a worker dispatching deliveries of broker to the
// handlers registered on router.
func NewWorker(
	log logrus.FieldLogger,
	broker queue.Broker,
	router *queue.Router,
	sink deadletter.Sink,
	opts WorkerOptions,
) Worker {
	if opts.MaxDeliveries < 1 {
		opts.MaxDeliveries = 1
	}

	return &worker{
		log:    log.WithField("component", "worker"),
		broker: broker,
		router: router,
		sink:   sink,
		opts:   opts,
	}
}

// Start begins consuming every partition in the background.
func (w *worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("worker already started")
	}

	if err := w.sink.Preflight(ctx); err != nil {
		return fmt.Errorf("dead letter sink preflight: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	for p := range w.broker.Partitions() {
		g.Go(func() error {
			if err := w.broker.Consume(gctx, p, w.handle); err != nil {
				return fmt.Errorf("consuming partition %d: %w", p, err)
			}

			return nil
		})
	}

	w.cancel = cancel
	w.group = g
	w.running = true

	w.log.WithField("partitions", w.broker.Partitions()).Info("Worker started")

	return nil
}

// Stop cancels consumption and waits for in-flight messages to settle.
func (w *worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.cancel()
	err := w.group.Wait()
	w.running = false

	w.log.Info("Worker stopped")

	return err
}

// handle dispatches d. Permanent failures, and transient ones on the last
// allowed attempt, are dead-lettered and acknowledged.
func (w *worker) handle(ctx context.Context, d queue.Delivery) error {
	start := time.Now()

	err := w.router.Dispatch(ctx, d)
	if err == nil {
		metrics.RecordConsumed(string(d.Queue), metrics.OutcomeAcked, time.Since(start))

		return nil
	}

	if ctx.Err() != nil {
		return err
	}

	permanent := IsPermanent(err)
	if !permanent && d.Attempt < w.opts.MaxDeliveries {
		metrics.RecordConsumed(string(d.Queue), metrics.OutcomeRetried, time.Since(start))

		return err
	}

	errType, _ := reporting.TypeOf(err)

	w.log.WithFields(logrus.Fields{
		"queue":      d.Queue,
		"launch_id":  d.Headers.LaunchID,
		"item_id":    d.Headers.ItemID,
		"partition":  d.Partition,
		"attempt":    d.Attempt,
		"permanent":  permanent,
		"error_type": errType,
		"error":      err,
	}).Error("Dropping unprocessable message to dead letters")

	rec := deadletter.NewRecord(d, string(errType), err, time.Now())
	if serr := w.sink.Write(ctx, rec); serr != nil {
		w.log.WithError(serr).Warn("Writing dead letter failed")

		return fmt.Errorf("writing dead letter: %w", serr)
	}

	metrics.RecordConsumed(string(d.Queue), metrics.OutcomeDeadLettered, time.Since(start))

	return nil
}
