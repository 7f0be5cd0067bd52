// Package queue carries reporting messages from producers to consumers.
//
// Messages of all logical queues share one set of partitions. The
// partition is chosen from the launch id, so every message of a launch is
// delivered in publish order by a single consumer.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Queue is a logical message queue.
type Queue string

// Logical queues.
const (
	QueueStartLaunch  Queue = "start-launch"
	QueueFinishLaunch Queue = "finish-launch"
	QueueStartItem    Queue = "start-item"
	QueueFinishItem   Queue = "finish-item"
	QueueUpdateItem   Queue = "update-item"
)

// Queues lists every logical queue.
var Queues = []Queue{
	QueueStartLaunch,
	QueueFinishLaunch,
	QueueStartItem,
	QueueFinishItem,
	QueueUpdateItem,
}

// Valid reports whether q is a known logical queue.
func (q Queue) Valid() bool {
	switch q {
	case QueueStartLaunch, QueueFinishLaunch, QueueStartItem, QueueFinishItem, QueueUpdateItem:
		return true
	default:
		return false
	}
}

// Headers is the routing envelope attached to every message. ProjectName is
// normalized by the producer.
type Headers struct {
	Username    string `mapstructure:"username" json:"username"`
	ProjectName string `mapstructure:"projectName" json:"projectName"`
	LaunchID    int64  `mapstructure:"launchId" json:"launchId"`
	ItemID      int64  `mapstructure:"itemId,omitempty" json:"itemId,omitempty"`
	ParentID    int64  `mapstructure:"parentId,omitempty" json:"parentId,omitempty"`
}

// Message is a published reporting request. Payload is the JSON encoded
// request with the allocated id injected.
type Message struct {
	Queue   Queue   `json:"queue"`
	Headers Headers `json:"headers"`
	Payload []byte  `json:"payload"`
}

// NewMessage encodes payload as JSON into a message for q.
func NewMessage(q Queue, headers Headers, payload any) (Message, error) {
	if !q.Valid() {
		return Message{}, fmt.Errorf("unknown queue %q", q)
	}

	if headers.LaunchID <= 0 {
		return Message{}, fmt.Errorf("message for %s has no launch id", q)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", q, err)
	}

	return Message{Queue: q, Headers: headers, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Queue, err)
	}

	return nil
}

// RoutingKey is the key messages are partitioned by.
func (m Message) RoutingKey() int64 {
	return m.Headers.LaunchID
}

// Partition maps a routing key onto one of n partitions.
func Partition(key int64, n int) int {
	if n <= 1 {
		return 0
	}

	p := key % int64(n)
	if p < 0 {
		p += int64(n)
	}

	return int(p)
}

// Delivery is a message handed to a consumer. Attempt starts at 1 and grows
// each time the same message is redelivered after a handler error.
type Delivery struct {
	Message

	ID        string
	Partition int
	Attempt   int
}

// Handler processes one delivery. A nil return acknowledges the message; an
// error makes the broker redeliver it after a delay, blocking the partition.
type Handler func(ctx context.Context, d Delivery) error

// Broker is an ordered, at-least-once message channel.
type Broker interface {
	// Publish appends msg to the partition of its routing key.
	Publish(ctx context.Context, msg Message) error

	// Consume delivers the messages of one partition to handler in order
	// until ctx is cancelled.
	Consume(ctx context.Context, partition int, handler Handler) error

	// Partitions returns the number of partitions.
	Partitions() int

	Close() error
}
