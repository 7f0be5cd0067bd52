package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions configures the Redis Streams broker.
type RedisOptions struct {
	StreamPrefix    string
	Group           string
	Partitions      int
	BatchSize       int64
	BlockTimeout    time.Duration
	LeaseTTL        time.Duration
	RedeliveryDelay time.Duration

	// MaxLen caps each partition stream (approximately). Zero keeps every
	// entry.
	MaxLen int64
}

// Compile-time interface check.
var _ Broker = (*redisBroker)(nil)

type redisBroker struct {
	log    logrus.FieldLogger
	client redis.UniversalClient
	rs     *redsync.Redsync
	opts   RedisOptions

	groupsMu sync.Mutex
	groups   map[int]struct{}
}

// NewRedisBroker returns a broker backed by one Redis stream per partition.
// A partition is consumed by at most one process at a time: consumers hold a
// redsync lease on it which is extended while they consume.
func NewRedisBroker(
	log logrus.FieldLogger,
	client redis.UniversalClient,
	opts RedisOptions,
) Broker {
	if opts.Partitions < 1 {
		opts.Partitions = 1
	}

	if opts.BatchSize < 1 {
		opts.BatchSize = 16
	}

	return &redisBroker{
		log:    log.WithField("component", "broker-redis"),
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		groups: make(map[int]struct{}, opts.Partitions),
	}
}

func (b *redisBroker) stream(partition int) string {
	return fmt.Sprintf("%s:%d", b.opts.StreamPrefix, partition)
}

func (b *redisBroker) leaseName(partition int) string {
	return fmt.Sprintf("%s:%d:lease", b.opts.StreamPrefix, partition)
}

// Publish appends msg to the stream of its partition.
func (b *redisBroker) Publish(ctx context.Context, msg Message) error {
	fields, err := encodeFields(msg)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: b.stream(Partition(msg.RoutingKey(), b.opts.Partitions)),
		Values: fields,
	}

	if b.opts.MaxLen > 0 {
		args.MaxLen = b.opts.MaxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", msg.Queue, err)
	}

	return nil
}

func (b *redisBroker) Partitions() int {
	return b.opts.Partitions
}

func (b *redisBroker) Close() error {
	return nil
}

func (b *redisBroker) ensureGroup(ctx context.Context, partition int) error {
	b.groupsMu.Lock()
	defer b.groupsMu.Unlock()

	if _, ok := b.groups[partition]; ok {
		return nil
	}

	err := b.client.XGroupCreateMkStream(ctx, b.stream(partition), b.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}

	b.groups[partition] = struct{}{}

	return nil
}

// Consume acquires the partition lease and delivers its messages in order.
// Losing the lease stops delivery until it is reacquired. Consume returns
// when ctx is cancelled.
func (b *redisBroker) Consume(
	ctx context.Context, partition int, handler Handler,
) error {
	if partition < 0 || partition >= b.opts.Partitions {
		return fmt.Errorf("partition %d out of range", partition)
	}

	log := b.log.WithField("partition", partition)
	retry := b.opts.LeaseTTL / 3

	mutex := b.rs.NewMutex(
		b.leaseName(partition),
		redsync.WithExpiry(b.opts.LeaseTTL),
		redsync.WithTries(1),
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := mutex.LockContext(ctx); err != nil {
			log.WithError(err).Debug("Partition lease held elsewhere")

			if !sleep(ctx, retry) {
				return nil
			}

			continue
		}

		log.Info("Acquired partition lease")

		err := b.consumeLeased(ctx, mutex, partition, handler)

		if _, uerr := mutex.UnlockContext(context.WithoutCancel(ctx)); uerr != nil {
			log.WithError(uerr).Debug("Releasing partition lease")
		}

		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			log.WithError(err).Warn("Partition consumption interrupted")

			if !sleep(ctx, retry) {
				return nil
			}
		}
	}
}

func (b *redisBroker) consumeLeased(
	ctx context.Context,
	mutex *redsync.Mutex,
	partition int,
	handler Handler,
) error {
	leaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		lost bool
		wg   sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(b.opts.LeaseTTL / 3)
		defer ticker.Stop()

		for {
			select {
			case <-leaseCtx.Done():
				return
			case <-ticker.C:
				if ok, err := mutex.ExtendContext(leaseCtx); err != nil || !ok {
					if leaseCtx.Err() == nil {
						lost = true
					}

					cancel()

					return
				}
			}
		}
	}()

	err := b.readLoop(leaseCtx, partition, handler)

	cancel()
	wg.Wait()

	if lost {
		return errors.New("partition lease lost")
	}

	return err
}

func (b *redisBroker) readLoop(
	ctx context.Context, partition int, handler Handler,
) error {
	if err := b.ensureGroup(ctx, partition); err != nil {
		return err
	}

	stream := b.stream(partition)
	consumer := fmt.Sprintf("partition-%d", partition)

	// Entries delivered to this partition's consumer but never acknowledged
	// come first, then new entries.
	cursor := "0"

	for ctx.Err() == nil {
		block := b.opts.BlockTimeout
		if cursor == "0" {
			block = -1
		}

		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.opts.Group,
			Consumer: consumer,
			Streams:  []string{stream, cursor},
			Count:    b.opts.BatchSize,
			Block:    block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			cursor = ">"

			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("reading %s: %w", stream, err)
		}

		var entries []redis.XMessage
		for _, s := range res {
			entries = append(entries, s.Messages...)
		}

		if cursor == "0" && len(entries) == 0 {
			cursor = ">"

			continue
		}

		for _, entry := range entries {
			if !b.handleEntry(ctx, stream, partition, entry, handler) {
				return nil
			}

			if cursor != ">" {
				cursor = entry.ID
			}
		}
	}

	return nil
}

// handleEntry delivers one stream entry and acknowledges it. It returns false
// if ctx ended before the entry was handled.
func (b *redisBroker) handleEntry(
	ctx context.Context,
	stream string,
	partition int,
	entry redis.XMessage,
	handler Handler,
) bool {
	msg, err := decodeFields(entry.Values)
	if err != nil {
		b.log.WithFields(logrus.Fields{
			"partition": partition,
			"message":   entry.ID,
			"error":     err,
		}).Error("Discarding malformed message")
	} else {
		d := Delivery{Message: msg, ID: entry.ID, Partition: partition}
		if !deliver(ctx, b.log, b.opts.RedeliveryDelay, d, handler) {
			return false
		}
	}

	if err := b.client.XAck(context.WithoutCancel(ctx), stream, b.opts.Group, entry.ID).Err(); err != nil {
		b.log.WithFields(logrus.Fields{
			"partition": partition,
			"message":   entry.ID,
			"error":     err,
		}).Warn("Acknowledging message failed")
	}

	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
