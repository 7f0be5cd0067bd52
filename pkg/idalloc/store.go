package idalloc

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Allocator = (*storeAllocator)(nil)

type storeAllocator struct {
	log  logrus.FieldLogger
	seq  SequenceStore
	opts Options
}

// NewStoreAllocator returns an allocator backed by a transactional sequence
// row in the database.
func NewStoreAllocator(
	log logrus.FieldLogger,
	seq SequenceStore,
	opts Options,
) Allocator {
	return &storeAllocator{
		log:  log.WithField("component", "idalloc"),
		seq:  seq,
		opts: opts,
	}
}

func (a *storeAllocator) NextID(ctx context.Context, kind Kind) (int64, error) {
	id, err := a.seq.NextSequenceValue(ctx, a.opts.sequence(kind), a.opts.start())
	if err != nil {
		return 0, fmt.Errorf("allocating %s id: %w", kind, err)
	}

	a.log.WithFields(logrus.Fields{
		"kind": kind,
		"id":   id,
	}).Debug("Allocated id")

	return id, nil
}
