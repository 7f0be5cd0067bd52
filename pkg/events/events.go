// Package events publishes notifications about materialized launches and
// test items. Publication is fire-and-forget: failures are logged, never
// returned to the caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// Type names an event.
type Type string

// Event types.
const (
	TypeLaunchStarted  Type = "launch_started"
	TypeLaunchFinished Type = "launch_finished"
	TypeItemFinished   Type = "item_finished"
	TypeItemUpdated    Type = "item_updated"
)

// Event is a notification about a reporting entity.
type Event struct {
	Type        Type             `json:"type"`
	ProjectName string           `json:"project_name"`
	Username    string           `json:"username"`
	LaunchID    int64            `json:"launch_id"`
	ItemID      int64            `json:"item_id,omitempty"`
	Status      reporting.Status `json:"status,omitempty"`
	Time        time.Time        `json:"time"`
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// New returns the publisher selected by cfg. client may be nil unless the
// redis driver is selected.
func New(
	log logrus.FieldLogger,
	cfg *config.EventsConfig,
	client redis.UniversalClient,
) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "log":
		return NewLogPublisher(log), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis event publisher requires a redis client")
		}

		return Multi{
			NewLogPublisher(log),
			NewRedisPublisher(log, client, cfg.Channel),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported events driver: %s", cfg.Driver)
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// Multi publishes to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

type logPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher returns a publisher that logs events at info level.
func NewLogPublisher(log logrus.FieldLogger) Publisher {
	return &logPublisher{log: log.WithField("component", "events")}
}

func (p *logPublisher) Publish(_ context.Context, event Event) {
	fields := logrus.Fields{
		"event":     event.Type,
		"project":   event.ProjectName,
		"user":      event.Username,
		"launch_id": event.LaunchID,
	}

	if event.ItemID != 0 {
		fields["item_id"] = event.ItemID
	}

	if event.Status != "" {
		fields["status"] = event.Status
	}

	p.log.WithFields(fields).Info("Reporting event")
}

type redisPublisher struct {
	log     logrus.FieldLogger
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher returns a publisher that PUBLISHes JSON encoded events
// on channel.
func NewRedisPublisher(
	log logrus.FieldLogger,
	client redis.UniversalClient,
	channel string,
) Publisher {
	return &redisPublisher{
		log:     log.WithField("component", "events-redis"),
		client:  client,
		channel: channel,
	}
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Warn("Encoding event failed")

		return
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.log.WithError(err).WithField("event", event.Type).
			Warn("Publishing event failed")
	}
}
