// Package status holds the status-changing rules applied when a test item
// finishes and when the status of a finished item is changed afterwards.
package status

import (
	"sync"

	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// Item is the part of a test item the rules look at.
type Item struct {
	ID          int64
	Type        reporting.ItemType
	Status      reporting.Status
	HasChildren bool
}

// Change is a requested transition. Explicit is set when the client named
// the target status rather than having it derived.
type Change struct {
	Target   reporting.Status
	Explicit bool
}

// Strategy maps an item in its current status to the status it finishes with.
type Strategy func(item Item, change Change) (reporting.Status, error)

// Table maps a current status to the strategy that may change it.
type Table struct {
	mu         sync.RWMutex
	strategies map[reporting.Status]Strategy
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{strategies: make(map[reporting.Status]Strategy, 5)}
}

// Tables holds one strategy table per kind of status change.
type Tables struct {
	Finish *Table
	Update *Table
}

// DefaultTables returns the finish and update tables.
func DefaultTables() Tables {
	return Tables{
		Finish: DefaultFinishTable(),
		Update: DefaultUpdateTable(),
	}
}

// DefaultFinishTable returns the table used for finishing test items: only
// IN_PROGRESS items can be finished.
func DefaultFinishTable() *Table {
	t := NewTable()
	t.Register(reporting.StatusInProgress, FinishInProgress)

	return t
}

// DefaultUpdateTable returns the table used for changing the status of
// finished test items. Running items have no entry.
func DefaultUpdateTable() *Table {
	t := NewTable()

	for _, st := range []reporting.Status{
		reporting.StatusPassed,
		reporting.StatusFailed,
		reporting.StatusSkipped,
		reporting.StatusInterrupted,
	} {
		t.Register(st, ChangeFinished)
	}

	return t
}

// Register sets the strategy for items currently in status current.
func (t *Table) Register(current reporting.Status, s Strategy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.strategies[current] = s
}

// Lookup returns the strategy registered for current.
func (t *Table) Lookup(current reporting.Status) (Strategy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.strategies[current]

	return s, ok
}

// Apply resolves the status item finishes with. A status with no registered
// strategy cannot be changed.
func (t *Table) Apply(item Item, change Change) (reporting.Status, error) {
	s, ok := t.Lookup(item.Status)
	if !ok {
		return "", reporting.NewError(reporting.ErrIncorrectRequest,
			"Actual status: %s can not be changed to: %s", item.Status, change.Target)
	}

	return s(item, change)
}

// FinishInProgress finishes an IN_PROGRESS item with a terminal status.
func FinishInProgress(item Item, change Change) (reporting.Status, error) {
	if !change.Target.IsTerminal() {
		return "", reporting.NewError(reporting.ErrIncorrectRequest,
			"Actual status: %s can not be changed to: %s", item.Status, change.Target)
	}

	if change.Explicit && item.HasChildren && !item.Type.IsStepLevel() {
		return "", reporting.NewError(reporting.ErrIncorrectRequest,
			"Unable to change status on test item with children")
	}

	return change.Target, nil
}

// ChangeFinished moves a finished item to another terminal status. Only
// leaves and step-level items may have their status set.
func ChangeFinished(item Item, change Change) (reporting.Status, error) {
	if !change.Target.IsTerminal() {
		return "", reporting.NewError(reporting.ErrIncorrectRequest,
			"Actual status: %s can not be changed to: %s", item.Status, change.Target)
	}

	if item.HasChildren && !item.Type.IsStepLevel() {
		return "", reporting.NewError(reporting.ErrIncorrectRequest,
			"Unable to change status on test item with children")
	}

	return change.Target, nil
}

// FromStatistics derives the status of a parent item or launch from the
// counters of its subtree.
func FromStatistics(s reporting.Statistics) reporting.Status {
	switch {
	case s.Failed > 0 || s.Interrupted > 0:
		return reporting.StatusFailed
	case s.Total > 0 && s.Skipped == s.Total:
		return reporting.StatusSkipped
	default:
		return reporting.StatusPassed
	}
}
