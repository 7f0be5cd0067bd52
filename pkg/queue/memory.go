package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Broker = (*MemoryBroker)(nil)

// MemoryBroker is an in-process broker for single-process deployments and
// tests. Messages do not survive a restart.
type MemoryBroker struct {
	log   logrus.FieldLogger
	delay time.Duration
	parts []*memoryPartition
}

type memoryPartition struct {
	mu        sync.Mutex
	msgs      []Delivery
	seq       uint64
	consuming bool
	notify    chan struct{}
}

// NewMemoryBroker returns a broker with n partitions. Failed deliveries are
// retried after redeliveryDelay.
func NewMemoryBroker(
	log logrus.FieldLogger,
	n int,
	redeliveryDelay time.Duration,
) *MemoryBroker {
	if n < 1 {
		n = 1
	}

	parts := make([]*memoryPartition, n)
	for i := range parts {
		parts[i] = &memoryPartition{notify: make(chan struct{}, 1)}
	}

	return &MemoryBroker{
		log:   log.WithField("component", "broker-memory"),
		delay: redeliveryDelay,
		parts: parts,
	}
}

// Publish appends msg to its partition.
func (b *MemoryBroker) Publish(_ context.Context, msg Message) error {
	p := Partition(msg.RoutingKey(), len(b.parts))
	part := b.parts[p]

	part.mu.Lock()
	part.seq++
	part.msgs = append(part.msgs, Delivery{
		Message:   msg,
		ID:        strconv.FormatUint(part.seq, 10),
		Partition: p,
	})
	part.mu.Unlock()

	select {
	case part.notify <- struct{}{}:
	default:
	}

	return nil
}

// Consume delivers partition messages in order until ctx is cancelled. Only
// one consumer may attach to a partition.
func (b *MemoryBroker) Consume(
	ctx context.Context, partition int, handler Handler,
) error {
	if partition < 0 || partition >= len(b.parts) {
		return fmt.Errorf("partition %d out of range", partition)
	}

	part := b.parts[partition]

	part.mu.Lock()
	if part.consuming {
		part.mu.Unlock()

		return fmt.Errorf("partition %d already has a consumer", partition)
	}

	part.consuming = true
	part.mu.Unlock()

	defer func() {
		part.mu.Lock()
		part.consuming = false
		part.mu.Unlock()
	}()

	for {
		part.mu.Lock()

		var (
			d       Delivery
			pending = len(part.msgs) > 0
		)

		if pending {
			d = part.msgs[0]
		}

		part.mu.Unlock()

		if !pending {
			select {
			case <-ctx.Done():
				return nil
			case <-part.notify:
				continue
			}
		}

		if !deliver(ctx, b.log, b.delay, d, handler) {
			return nil
		}

		part.mu.Lock()
		part.msgs = part.msgs[1:]
		part.mu.Unlock()
	}
}

// Partitions returns the number of partitions.
func (b *MemoryBroker) Partitions() int {
	return len(b.parts)
}

// Len returns the number of messages not yet acknowledged.
func (b *MemoryBroker) Len() int {
	total := 0

	for _, part := range b.parts {
		part.mu.Lock()
		total += len(part.msgs)
		part.mu.Unlock()
	}

	return total
}

// Close is a no-op.
func (b *MemoryBroker) Close() error {
	return nil
}

// deliver hands d to handler until it succeeds, redelivering after delay. It
// returns false if ctx was cancelled before the message was acknowledged.
func deliver(
	ctx context.Context,
	log logrus.FieldLogger,
	delay time.Duration,
	d Delivery,
	handler Handler,
) bool {
	for attempt := 1; ; attempt++ {
		d.Attempt = attempt

		err := handler(ctx, d)
		if err == nil {
			return true
		}

		if ctx.Err() != nil {
			return false
		}

		log.WithFields(logrus.Fields{
			"queue":     d.Queue,
			"partition": d.Partition,
			"message":   d.ID,
			"attempt":   attempt,
			"error":     err,
		}).Warn("Message handling failed, redelivering")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
}
