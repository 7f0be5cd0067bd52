// Package idalloc issues entity identifiers before the entities exist.
// Identifiers are strictly increasing, never reused and survive restarts.
package idalloc

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
)

// Kind is the kind of entity an identifier is issued for.
type Kind string

// Entity kinds.
const (
	KindLaunch Kind = "launch"
	KindItem   Kind = "item"
)

// sharedSequence is used by every kind unless sequences are per kind.
const sharedSequence = "entity"

// Allocator issues identifiers.
type Allocator interface {
	NextID(ctx context.Context, kind Kind) (int64, error)
}

// Options shapes the sequences an allocator draws from.
type Options struct {
	PerKind bool
	Start   int64
}

func (o Options) sequence(kind Kind) string {
	if o.PerKind {
		return string(kind)
	}

	return sharedSequence
}

func (o Options) start() int64 {
	if o.Start < 1 {
		return 1
	}

	return o.Start
}

// SequenceStore is the durable counter behind the database allocator.
type SequenceStore interface {
	NextSequenceValue(ctx context.Context, name string, start int64) (int64, error)
}

// New builds the allocator selected by cfg. client may be nil unless the
// redis backend is selected.
func New(
	log logrus.FieldLogger,
	cfg *config.IDAllocatorConfig,
	seq SequenceStore,
	client redis.UniversalClient,
) (Allocator, error) {
	opts := Options{PerKind: cfg.PerKind, Start: cfg.Start}

	switch cfg.Backend {
	case "database":
		return NewStoreAllocator(log, seq, opts), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis id allocator requires a redis client")
		}

		return NewRedisAllocator(log, client, cfg.KeyPrefix, opts), nil
	default:
		return nil, fmt.Errorf("unsupported id allocator backend: %s", cfg.Backend)
	}
}
