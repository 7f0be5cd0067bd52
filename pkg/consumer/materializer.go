// Package consumer materializes published reporting messages into storage.
//
// Handlers assume the messages of one launch arrive in publish order, which
// the broker guarantees by routing every queue on the launch id. Each message
// is applied in a single transaction, and re-applying an already applied
// message is a no-op, so redelivery is safe.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/events"
	"github.com/ethpandaops/reportoor/pkg/hierarchy"
	"github.com/ethpandaops/reportoor/pkg/queue"
	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/status"
	"github.com/ethpandaops/reportoor/pkg/store"
	"github.com/ethpandaops/reportoor/pkg/uniqueid"
	"github.com/ethpandaops/reportoor/pkg/validation"
)

// InitialStatusAttribute is the system attribute holding the status an item
// was first finished with.
const InitialStatusAttribute = "initialStatus"

// ErrMalformed marks a message whose payload cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// IsPermanent reports whether redelivering the message that failed with err
// cannot succeed.
func IsPermanent(err error) bool {
	if _, ok := reporting.TypeOf(err); ok {
		return true
	}

	return errors.Is(err, reporting.ErrIntegrity) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, queue.ErrNoHandler)
}

// Materializer applies reporting messages to the store.
type Materializer struct {
	log       logrus.FieldLogger
	store     store.Store
	finishes  *status.Table
	updates   *status.Table
	uniqueIDs uniqueid.Generator
	events    events.Publisher
}

// NewMaterializer creates a materializer. A nil publisher drops events.
func NewMaterializer(
	log logrus.FieldLogger,
	s store.Store,
	statuses status.Tables,
	uniqueIDs uniqueid.Generator,
	publisher events.Publisher,
) *Materializer {
	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Materializer{
		log:       log.WithField("component", "materializer"),
		store:     s,
		finishes:  statuses.Finish,
		updates:   statuses.Update,
		uniqueIDs: uniqueIDs,
		events:    publisher,
	}
}

// Register binds one handler per logical queue on r.
func (m *Materializer) Register(r *queue.Router) {
	r.Handle(queue.QueueStartLaunch, m.StartLaunch)
	r.Handle(queue.QueueFinishLaunch, m.FinishLaunch)
	r.Handle(queue.QueueStartItem, m.StartItem)
	r.Handle(queue.QueueFinishItem, m.FinishItem)
	r.Handle(queue.QueueUpdateItem, m.UpdateItem)
}

// --- Launches ---

// StartLaunch creates the launch carried by d.
func (m *Materializer) StartLaunch(ctx context.Context, d queue.Delivery) error {
	var rq reporting.StartLaunchRQ
	if err := decode(d, &rq); err != nil {
		return err
	}

	principal, details, err := m.resolve(ctx, d.Headers)
	if err != nil {
		return err
	}

	id := d.Headers.LaunchID
	if rq.ID != 0 && rq.ID != id {
		return reporting.Integrity("start-launch payload id %d does not match envelope %d", rq.ID, id)
	}

	mode := rq.Mode
	if mode == "" {
		mode = reporting.ModeDefault
	}

	launch := &store.Launch{
		ID:          id,
		UUID:        rq.UUID,
		ProjectID:   details.ProjectID,
		OwnerID:     principal.UserID,
		Owner:       principal.Username,
		Name:        rq.Name,
		Description: rq.Description,
		Mode:        mode,
		Status:      reporting.StatusInProgress,
		StartTime:   storedTime(rq.StartTime),
		Tags:        rq.Tags,
		Attributes:  rq.Attributes,
	}

	var created bool

	err = m.store.InTx(ctx, func(tx store.Store) error {
		inserted, err := tx.CreateLaunch(ctx, launch)
		if err != nil {
			return err
		}

		if inserted {
			created = true

			return nil
		}

		if _, err := tx.GetLaunch(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.Integrity("launch uuid %q is already used by another launch", rq.UUID)
			}

			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	log := m.log.WithField("launch_id", id)

	if !created {
		log.Debug("Launch already exists, skipping duplicate start")

		return nil
	}

	log.WithField("project", details.ProjectName).Info("Launch started")

	m.events.Publish(ctx, events.Event{
		Type:        events.TypeLaunchStarted,
		ProjectName: details.ProjectName,
		Username:    principal.Username,
		LaunchID:    id,
		Status:      reporting.StatusInProgress,
		Time:        launch.StartTime,
	})

	return nil
}

// FinishLaunch finishes the launch named by d, interrupting every item that
// is still running.
func (m *Materializer) FinishLaunch(ctx context.Context, d queue.Delivery) error {
	var rq reporting.FinishExecutionRQ
	if err := decode(d, &rq); err != nil {
		return err
	}

	principal, details, err := m.resolve(ctx, d.Headers)
	if err != nil {
		return err
	}

	explicit, ok := reporting.ParseStatus(rq.Status)
	if !ok {
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown status %q", rq.Status)
	}

	id := d.Headers.LaunchID
	log := m.log.WithField("launch_id", id)

	var finished *store.Launch

	err = m.store.InTx(ctx, func(tx store.Store) error {
		launch, err := tx.GetLaunch(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.NewError(reporting.ErrLaunchNotFound,
					"Launch '%d' not found. Did you use correct Launch ID?", id)
			}

			return err
		}

		if err := validation.CanFinishLaunch(principal, details, launch); err != nil {
			return err
		}

		end := storedTime(rq.EndTime)

		if launch.Status != reporting.StatusInProgress {
			// The stored end may have been raised to the latest item end.
			if launch.EndTime != nil && !end.After(*launch.EndTime) &&
				(explicit == "" || explicit == launch.Status) {
				log.Debug("Launch already finished, skipping duplicate finish")

				return nil
			}

			return reporting.NewError(reporting.ErrFinishLaunchNotAllowed,
				"Launch '%d' is already finished with status '%s'", id, launch.Status)
		}

		if explicit != "" && !explicit.IsTerminal() {
			return reporting.NewError(reporting.ErrIncorrectRequest,
				"Actual status: %s can not be changed to: %s", launch.Status, explicit)
		}

		if err := validation.FinishNotEarlier(end, launch.StartTime, "launch", id); err != nil {
			return err
		}

		latest, err := tx.LatestItemEnd(ctx, id)
		if err != nil {
			return err
		}

		if latest != nil && latest.After(end) {
			log.WithFields(logrus.Fields{
				"end":         end,
				"latest_item": *latest,
			}).Warn("Launch end is earlier than its items, using latest item end")

			end = latest.UTC()
		}

		interrupted, err := m.interrupt(ctx, tx, id, "", end)
		if err != nil {
			return err
		}

		// Items started after the requested end were interrupted at their start.
		if interrupted.After(end) {
			end = interrupted
		}

		// Interrupted items changed the counters.
		launch, err = tx.GetLaunch(ctx, id)
		if err != nil {
			return err
		}

		final := explicit
		if final == "" {
			final = status.FromStatistics(launch.Statistics)
		}

		launch.Status = final
		launch.EndTime = &end
		launch.Attributes = append(launch.Attributes, rq.Attributes...)

		if rq.Description != "" {
			launch.Description = rq.Description
		}

		if err := tx.UpdateLaunch(ctx, launch); err != nil {
			return err
		}

		finished = launch

		return nil
	})
	if err != nil || finished == nil {
		return err
	}

	log.WithField("status", finished.Status).Info("Launch finished")

	m.events.Publish(ctx, events.Event{
		Type:        events.TypeLaunchFinished,
		ProjectName: details.ProjectName,
		Username:    principal.Username,
		LaunchID:    id,
		Status:      finished.Status,
		Time:        *finished.EndTime,
	})

	return nil
}

// --- Test items ---

// StartItem creates the root or child item carried by d.
func (m *Materializer) StartItem(ctx context.Context, d queue.Delivery) error {
	var rq reporting.StartTestItemRQ
	if err := decode(d, &rq); err != nil {
		return err
	}

	_, details, err := m.resolve(ctx, d.Headers)
	if err != nil {
		return err
	}

	id := d.Headers.ItemID
	if id == 0 {
		id = rq.ID
	}

	if id == 0 || (rq.ID != 0 && rq.ID != id) {
		return reporting.Integrity("start-item payload id %d does not match envelope %d", rq.ID, id)
	}

	log := m.log.WithFields(logrus.Fields{
		"launch_id": d.Headers.LaunchID,
		"item_id":   id,
	})

	var created bool

	err = m.store.InTx(ctx, func(tx store.Store) error {
		_, err := tx.GetItem(ctx, id)
		if err == nil {
			return nil
		}

		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		launch, err := tx.GetLaunch(ctx, d.Headers.LaunchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.Integrity("launch %d of item %d does not exist", d.Headers.LaunchID, id)
			}

			return err
		}

		item := &store.TestItem{
			ID:          id,
			LaunchID:    launch.ID,
			Name:        rq.Name,
			Description: rq.Description,
			Type:        rq.Type,
			Status:      reporting.StatusInProgress,
			StartTime:   storedTime(rq.StartTime),
			UniqueID:    rq.UniqueID,
			CodeRef:     rq.CodeRef,
			Parameters:  rq.Parameters,
			Attributes:  rq.Attributes,
		}

		var ancestorNames []string

		if d.Headers.ParentID == 0 {
			if err := validation.LaunchAcceptsItems(details.ProjectID, launch); err != nil {
				return err
			}

			item.Path = hierarchy.RootPath(id)
		} else {
			names, err := m.attachToParent(ctx, tx, launch, d.Headers.ParentID, item)
			if err != nil {
				return err
			}

			ancestorNames = names
		}

		if item.UniqueID == "" {
			item.UniqueID = m.uniqueIDs.Generate(uniqueid.Input{
				ProjectName:   details.ProjectName,
				LaunchName:    launch.Name,
				AncestorNames: ancestorNames,
				ItemName:      item.Name,
				Parameters:    item.Parameters,
			})
		}

		inserted, err := tx.CreateItem(ctx, item)
		if err != nil {
			return err
		}

		created = inserted

		return nil
	})
	if err != nil {
		return err
	}

	if !created {
		log.Debug("Item already exists, skipping duplicate start")

		return nil
	}

	log.WithField("parent_id", d.Headers.ParentID).Debug("Item started")

	return nil
}

// attachToParent checks the parent of a new child item, sets the child's
// path and parent and marks the parent as having children. It returns the
// names of the child's ancestors, root first.
func (m *Materializer) attachToParent(
	ctx context.Context,
	tx store.Store,
	launch *store.Launch,
	parentID int64,
	item *store.TestItem,
) ([]string, error) {
	parent, err := tx.GetItem(ctx, parentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reporting.Integrity("parent %d of item %d does not exist", parentID, item.ID)
		}

		return nil, err
	}

	if parent.LaunchID != launch.ID {
		return nil, reporting.Integrity("parent %d of item %d belongs to launch %d, not %d",
			parentID, item.ID, parent.LaunchID, launch.ID)
	}

	if err := validation.ParentAcceptsChildren(parent, false); err != nil {
		return nil, err
	}

	path, err := hierarchy.ChildPath(parent.Path, item.ID)
	if err != nil {
		return nil, reporting.Integrity("parent %d: %v", parentID, err)
	}

	item.Path = path
	item.ParentID = &parent.ID

	ids, err := hierarchy.Parse(parent.Path)
	if err != nil {
		return nil, reporting.Integrity("parent %d: %v", parentID, err)
	}

	// Child ids are greater than their parents', so id order is path order.
	ancestors, err := tx.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		names = append(names, a.Name)
	}

	if !parent.HasChildren {
		if err := tx.MarkHasChildren(ctx, parent.ID); err != nil {
			return nil, err
		}
	}

	return names, nil
}

// FinishItem finishes the item named by d.
func (m *Materializer) FinishItem(ctx context.Context, d queue.Delivery) error {
	var rq reporting.FinishTestItemRQ
	if err := decode(d, &rq); err != nil {
		return err
	}

	principal, details, err := m.resolve(ctx, d.Headers)
	if err != nil {
		return err
	}

	explicit, ok := reporting.ParseStatus(rq.Status)
	if !ok {
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown status %q", rq.Status)
	}

	id := d.Headers.ItemID
	log := m.log.WithFields(logrus.Fields{
		"launch_id": d.Headers.LaunchID,
		"item_id":   id,
	})

	var finished *store.TestItem

	err = m.store.InTx(ctx, func(tx store.Store) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.NewError(reporting.ErrTestItemNotFound,
					"Test Item '%d' not found. Did you use correct Test Item ID?", id)
			}

			return err
		}

		launch, err := tx.GetLaunch(ctx, item.LaunchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.Integrity("launch %d of item %d does not exist", item.LaunchID, id)
			}

			return err
		}

		if launch.ProjectID != details.ProjectID {
			return reporting.NewError(reporting.ErrAccessDenied,
				"test item %d does not belong to project '%s'", id, details.ProjectName)
		}

		if rq.LaunchID != 0 && rq.LaunchID != item.LaunchID {
			return reporting.NewError(reporting.ErrIncorrectRequest,
				"test item %d does not belong to launch %d", id, rq.LaunchID)
		}

		end := storedTime(rq.EndTime)

		// The stored end may have been raised to an interrupted descendant's.
		if item.Status != reporting.StatusInProgress && item.EndTime != nil &&
			!end.After(*item.EndTime) && (explicit == "" || explicit == item.Status) {
			log.Debug("Item already finished, skipping duplicate finish")

			return nil
		}

		if err := validation.FinishNotEarlier(end, item.StartTime, "test item", id); err != nil {
			return err
		}

		// Reject before touching any descendant.
		provisional := explicit
		if provisional == "" {
			provisional = reporting.StatusPassed
		}

		if _, err := m.finishes.Apply(statusItem(item), status.Change{
			Target:   provisional,
			Explicit: explicit != "",
		}); err != nil {
			return err
		}

		if item.HasChildren {
			interrupted, err := m.interrupt(ctx, tx, launch.ID, item.Path, end)
			if err != nil {
				return err
			}

			if interrupted.After(end) {
				end = interrupted
			}

			// Interrupted descendants changed the counters.
			if item, err = tx.GetItem(ctx, id); err != nil {
				return err
			}
		}

		target := explicit
		if target == "" {
			if item.IsLeaf() {
				target = reporting.StatusPassed
			} else {
				target = status.FromStatistics(item.Statistics)
			}
		}

		final, err := m.finishes.Apply(statusItem(item), status.Change{
			Target:   target,
			Explicit: explicit != "",
		})
		if err != nil {
			return err
		}

		item.Status = final
		item.EndTime = &end
		item.Attributes = append(item.Attributes, rq.Attributes...)

		if rq.Description != "" {
			item.Description = rq.Description
		}

		if _, ok := item.SystemAttribute(InitialStatusAttribute); !ok {
			item.Attributes = append(item.Attributes, reporting.Attribute{
				Key:    InitialStatusAttribute,
				Value:  final.CounterName(),
				System: true,
			})
		}

		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		if item.IsLeaf() {
			if err := countLeaf(ctx, tx, item, final); err != nil {
				return err
			}
		}

		finished = item

		return nil
	})
	if err != nil || finished == nil {
		return err
	}

	log.WithField("status", finished.Status).Debug("Item finished")

	m.events.Publish(ctx, events.Event{
		Type:        events.TypeItemFinished,
		ProjectName: details.ProjectName,
		Username:    principal.Username,
		LaunchID:    finished.LaunchID,
		ItemID:      finished.ID,
		Status:      finished.Status,
		Time:        *finished.EndTime,
	})

	return nil
}

// UpdateItem changes the status, description or attributes of the finished
// item named by d. A status change recounts the item's ancestors and launch
// and re-derives their statuses.
func (m *Materializer) UpdateItem(ctx context.Context, d queue.Delivery) error {
	var rq reporting.UpdateTestItemRQ
	if err := decode(d, &rq); err != nil {
		return err
	}

	principal, details, err := m.resolve(ctx, d.Headers)
	if err != nil {
		return err
	}

	target, ok := reporting.ParseStatus(rq.Status)
	if !ok {
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown status %q", rq.Status)
	}

	id := d.Headers.ItemID
	log := m.log.WithFields(logrus.Fields{
		"launch_id": d.Headers.LaunchID,
		"item_id":   id,
	})

	var (
		updated  *store.TestItem
		previous reporting.Status
	)

	err = m.store.InTx(ctx, func(tx store.Store) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.NewError(reporting.ErrTestItemNotFound,
					"Test Item '%d' not found. Did you use correct Test Item ID?", id)
			}

			return err
		}

		if item.LaunchID != d.Headers.LaunchID {
			return reporting.Integrity("item %d belongs to launch %d, not %d",
				id, item.LaunchID, d.Headers.LaunchID)
		}

		launch, err := tx.GetLaunch(ctx, item.LaunchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return reporting.Integrity("launch %d of item %d does not exist", item.LaunchID, id)
			}

			return err
		}

		if err := validation.CanUpdateItem(principal, details, launch); err != nil {
			return err
		}

		previous = item.Status

		if target != "" {
			if err := m.changeStatus(ctx, tx, launch, item, target); err != nil {
				return err
			}
		}

		if rq.Description != "" {
			item.Description = rq.Description
		}

		if rq.Attributes != nil {
			item.Attributes = overwriteAttributes(item.Attributes, rq.Attributes)
		}

		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		updated = item

		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"from": previous,
		"to":   updated.Status,
	}).Info("Item updated")

	m.events.Publish(ctx, events.Event{
		Type:        events.TypeItemUpdated,
		ProjectName: details.ProjectName,
		Username:    principal.Username,
		LaunchID:    updated.LaunchID,
		ItemID:      updated.ID,
		Status:      updated.Status,
		Time:        time.Now().UTC(),
	})

	return nil
}

// changeStatus moves a finished item to target. The item keeps the status it
// had before its first change as a system attribute. The caller saves item.
func (m *Materializer) changeStatus(
	ctx context.Context,
	tx store.Store,
	launch *store.Launch,
	item *store.TestItem,
	target reporting.Status,
) error {
	final, err := m.updates.Apply(statusItem(item), status.Change{
		Target:   target,
		Explicit: true,
	})
	if err != nil {
		return err
	}

	if _, ok := item.SystemAttribute(InitialStatusAttribute); !ok {
		item.Attributes = append(item.Attributes, reporting.Attribute{
			Key:    InitialStatusAttribute,
			Value:  item.Status.CounterName(),
			System: true,
		})
	}

	previous := item.Status
	item.Status = final

	if final == previous || !item.IsLeaf() {
		return nil
	}

	ids, err := hierarchy.Parse(item.Path)
	if err != nil {
		return reporting.Integrity("item %d: %v", item.ID, err)
	}

	if err := tx.MoveStatistics(ctx, launch.ID, ids, previous, final); err != nil {
		return err
	}

	return m.rederive(ctx, tx, launch.ID, ids[:len(ids)-1])
}

// rederive recomputes the statuses of the finished ancestors in ancestorIDs
// and of the launch, if finished, from their counters.
func (m *Materializer) rederive(
	ctx context.Context,
	tx store.Store,
	launchID int64,
	ancestorIDs []int64,
) error {
	ancestors, err := tx.GetItems(ctx, ancestorIDs)
	if err != nil {
		return err
	}

	for i := range ancestors {
		a := &ancestors[i]
		if a.Status == reporting.StatusInProgress {
			continue
		}

		if derived := status.FromStatistics(a.Statistics); derived != a.Status {
			a.Status = derived

			if err := tx.UpdateItem(ctx, a); err != nil {
				return err
			}
		}
	}

	launch, err := tx.GetLaunch(ctx, launchID)
	if err != nil {
		return err
	}

	if launch.Status == reporting.StatusInProgress {
		return nil
	}

	if derived := status.FromStatistics(launch.Statistics); derived != launch.Status {
		launch.Status = derived

		return tx.UpdateLaunch(ctx, launch)
	}

	return nil
}

// overwriteAttributes replaces the client attributes of current with
// replacement, keeping system attributes.
func overwriteAttributes(current, replacement []reporting.Attribute) []reporting.Attribute {
	out := make([]reporting.Attribute, 0, len(current)+len(replacement))

	for _, a := range current {
		if a.System {
			out = append(out, a)
		}
	}

	for _, a := range replacement {
		a.System = false
		out = append(out, a)
	}

	return out
}

// interrupt finishes every running item of the launch below underPath (the
// whole launch when empty) as INTERRUPTED, deepest first. An item never ends
// before it started. It returns the latest end it wrote, zero when nothing
// was running.
func (m *Materializer) interrupt(
	ctx context.Context,
	tx store.Store,
	launchID int64,
	underPath string,
	end time.Time,
) (time.Time, error) {
	running, err := tx.ListInProgressItems(ctx, launchID, underPath)
	if err != nil {
		return time.Time{}, err
	}

	sort.SliceStable(running, func(i, j int) bool {
		di, dj := hierarchy.Depth(running[i].Path), hierarchy.Depth(running[j].Path)
		if di != dj {
			return di > dj
		}

		return running[i].ID > running[j].ID
	})

	var latest time.Time

	for i := range running {
		item := &running[i]

		itemEnd := end
		if item.StartTime.After(itemEnd) {
			itemEnd = storedTime(item.StartTime)
		}

		if itemEnd.After(latest) {
			latest = itemEnd
		}

		item.Status = reporting.StatusInterrupted
		item.EndTime = &itemEnd

		if err := tx.UpdateItem(ctx, item); err != nil {
			return time.Time{}, err
		}

		if item.IsLeaf() {
			if err := countLeaf(ctx, tx, item, reporting.StatusInterrupted); err != nil {
				return time.Time{}, err
			}
		}
	}

	if len(running) > 0 {
		m.log.WithFields(logrus.Fields{
			"launch_id": launchID,
			"under":     underPath,
			"count":     len(running),
		}).Info("Interrupted running items")
	}

	return latest, nil
}

// countLeaf adds a finished leaf to its own counters, its ancestors' and the
// launch's.
func countLeaf(
	ctx context.Context,
	tx store.Store,
	item *store.TestItem,
	st reporting.Status,
) error {
	ids, err := hierarchy.Parse(item.Path)
	if err != nil {
		return reporting.Integrity("item %d: %v", item.ID, err)
	}

	return tx.IncrementStatistics(ctx, item.LaunchID, ids, st)
}

// resolve looks up the principal named by the envelope and its details for
// the envelope's project.
func (m *Materializer) resolve(
	ctx context.Context, h queue.Headers,
) (*reporting.Principal, reporting.ProjectDetails, error) {
	principal, err := m.store.GetPrincipal(ctx, h.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reporting.ProjectDetails{}, reporting.NewError(reporting.ErrUserNotFound,
				"User '%s' not found.", h.Username)
		}

		return nil, reporting.ProjectDetails{}, err
	}

	details, err := principal.Project(h.ProjectName)
	if err != nil {
		return nil, reporting.ProjectDetails{}, err
	}

	return principal, details, nil
}

// storedTime is t as the store keeps it: UTC, at microsecond precision.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func statusItem(item *store.TestItem) status.Item {
	return status.Item{
		ID:          item.ID,
		Type:        item.Type,
		Status:      item.Status,
		HasChildren: item.HasChildren,
	}
}

func decode(d queue.Delivery, v any) error {
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return nil
}
