// Package deadletter records reporting messages that could not be
// materialized, so that their pre-allocated identifiers stay discoverable.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/queue"
)

// Record is a dead-lettered message and why it failed.
type Record struct {
	Queue     queue.Queue     `json:"queue"`
	MessageID string          `json:"message_id"`
	Partition int             `json:"partition"`
	Attempt   int             `json:"attempt"`
	Headers   queue.Headers   `json:"headers"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
	Error     string          `json:"error"`
	FailedAt  time.Time       `json:"failed_at"`
}

// NewRecord builds the record of a delivery that failed with err.
// errorType is empty for untyped failures.
func NewRecord(d queue.Delivery, errorType string, err error, at time.Time) Record {
	rec := Record{
		Queue:     d.Queue,
		MessageID: d.ID,
		Partition: d.Partition,
		Attempt:   d.Attempt,
		Headers:   d.Headers,
		ErrorType: errorType,
		Error:     err.Error(),
		FailedAt:  at.UTC(),
	}

	if json.Valid(d.Payload) {
		rec.Payload = d.Payload
	}

	return rec
}

// Key returns the relative object key of the record:
// <queue>/<launch id>/<unix nanos>_<message id>.json.
func (r Record) Key() string {
	id := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(r.MessageID)

	return fmt.Sprintf("%s/%d/%d_%s.json",
		r.Queue, r.Headers.LaunchID, r.FailedAt.UnixNano(), id)
}

// Sink stores dead-letter records.
type Sink interface {
	// Preflight verifies that the sink is writable.
	Preflight(ctx context.Context) error

	Write(ctx context.Context, rec Record) error
}

// New returns the sink selected by cfg.
func New(log logrus.FieldLogger, cfg *config.DeadLetterConfig) (Sink, error) {
	switch cfg.Driver {
	case "", "none":
		return NewNoopSink(log), nil
	case "local":
		return NewLocalSink(log, cfg.Local.Dir), nil
	case "s3":
		return NewS3Sink(log, &cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported dead letter driver: %s", cfg.Driver)
	}
}

type noopSink struct {
	log logrus.FieldLogger
}

// NewNoopSink returns a sink that only logs records.
func NewNoopSink(log logrus.FieldLogger) Sink {
	return &noopSink{log: log.WithField("component", "deadletter")}
}

func (s *noopSink) Preflight(context.Context) error {
	return nil
}

func (s *noopSink) Write(_ context.Context, rec Record) error {
	s.log.WithFields(logrus.Fields{
		"queue":     rec.Queue,
		"launch_id": rec.Headers.LaunchID,
		"item_id":   rec.Headers.ItemID,
		"message":   rec.MessageID,
	}).Debug("Dead letter discarded, no sink configured")

	return nil
}
