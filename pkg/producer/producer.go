// Package producer accepts reporting requests, validates them against the
// materialized state, allocates identifiers and publishes the requests for
// asynchronous materialization.
//
// Every operation runs in two phases. The decision phase validates and builds
// a plan without side effects; the effect phase allocates the identifier and
// publishes exactly one message. A rejected request publishes nothing.
package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/idalloc"
	"github.com/ethpandaops/reportoor/pkg/metrics"
	"github.com/ethpandaops/reportoor/pkg/queue"
	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/store"
	"github.com/ethpandaops/reportoor/pkg/validation"
)

// Reader is the read access to materialized entities that validation needs.
type Reader interface {
	GetLaunch(ctx context.Context, id int64) (*store.Launch, error)
	GetItem(ctx context.Context, id int64) (*store.TestItem, error)
	HasLogs(ctx context.Context, itemID int64) (bool, error)
}

// Publisher publishes reporting messages.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Handler is the asynchronous reporting surface.
type Handler interface {
	StartLaunch(
		ctx context.Context,
		principal *reporting.Principal,
		projectName string,
		rq *reporting.StartLaunchRQ,
	) (*reporting.StartLaunchRS, error)
	FinishLaunch(
		ctx context.Context,
		principal *reporting.Principal,
		projectName string,
		launchID int64,
		rq *reporting.FinishExecutionRQ,
	) (*reporting.OperationCompletionRS, error)
	StartRootItem(
		ctx context.Context,
		principal *reporting.Principal,
		projectName string,
		rq *reporting.StartTestItemRQ,
	) (*reporting.EntryCreatedRS, error)
	StartChildItem(
		ctx context.Context,
		principal *reporting.Principal,
		projectName string,
		parentID int64,
		rq *reporting.StartTestItemRQ,
	) (*reporting.EntryCreatedRS, error)
	FinishItem(
		ctx context.Context,
		principal *reporting.Principal,
		projectName string,
		itemID int64,
		rq *reporting.FinishTestItemRQ,
	) (*reporting.OperationCompletionRS, error)
	UpdateItem(
		ctx context.Context,
		principal *reporting.Principal,
		projectName string,
		itemID int64,
		rq *reporting.UpdateTestItemRQ,
	) (*reporting.OperationCompletionRS, error)
}

// Plan is a validated request waiting to be published. Kind is empty when
// the message targets an existing identifier.
type Plan struct {
	Queue   queue.Queue
	Kind    idalloc.Kind
	Target  int64
	Headers queue.Headers

	// payload builds the message body once the target id is known.
	payload func(id int64) any
}

// Compile-time interface check.
var _ Handler = (*handler)(nil)

type handler struct {
	log       logrus.FieldLogger
	reader    Reader
	allocator idalloc.Allocator
	publisher Publisher
}

// NewHandler creates the asynchronous reporting handler.
func NewHandler(
	log logrus.FieldLogger,
	reader Reader,
	allocator idalloc.Allocator,
	publisher Publisher,
) Handler {
	return &handler{
		log:       log.WithField("component", "producer"),
		reader:    reader,
		allocator: allocator,
		publisher: publisher,
	}
}

func (h *handler) StartLaunch(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	rq *reporting.StartLaunchRQ,
) (*reporting.StartLaunchRS, error) {
	plan, uid, err := h.planStartLaunch(principal, projectName, rq)
	if err != nil {
		return nil, h.rejected(queue.QueueStartLaunch, err)
	}

	id, err := h.execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	return &reporting.StartLaunchRS{ID: id, UUID: uid}, nil
}

func (h *handler) planStartLaunch(
	principal *reporting.Principal,
	projectName string,
	rq *reporting.StartLaunchRQ,
) (*Plan, string, error) {
	details, err := principal.Project(projectName)
	if err != nil {
		return nil, "", err
	}

	if err := validation.StartLaunch(details, rq); err != nil {
		return nil, "", err
	}

	body := *rq
	body.StartTime = body.StartTime.UTC()

	if body.UUID == "" {
		body.UUID = uuid.NewString()
	}

	if body.Mode == "" {
		body.Mode = reporting.ModeDefault
	}

	return &Plan{
		Queue:   queue.QueueStartLaunch,
		Kind:    idalloc.KindLaunch,
		Headers: h.headers(principal, projectName),
		payload: func(id int64) any {
			body.ID = id

			return &body
		},
	}, body.UUID, nil
}

func (h *handler) FinishLaunch(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	launchID int64,
	rq *reporting.FinishExecutionRQ,
) (*reporting.OperationCompletionRS, error) {
	plan, err := h.planFinishLaunch(principal, projectName, launchID, rq)
	if err != nil {
		return nil, h.rejected(queue.QueueFinishLaunch, err)
	}

	if _, err := h.execute(ctx, plan); err != nil {
		return nil, err
	}

	return &reporting.OperationCompletionRS{
		Message: fmt.Sprintf("Started completion of launch with ID = '%d'", launchID),
	}, nil
}

func (h *handler) planFinishLaunch(
	principal *reporting.Principal,
	projectName string,
	launchID int64,
	rq *reporting.FinishExecutionRQ,
) (*Plan, error) {
	if _, err := principal.Project(projectName); err != nil {
		return nil, err
	}

	if err := validation.FinishLaunchRequest(launchID, rq); err != nil {
		return nil, err
	}

	body := *rq
	body.EndTime = body.EndTime.UTC()

	headers := h.headers(principal, projectName)
	headers.LaunchID = launchID

	return &Plan{
		Queue:   queue.QueueFinishLaunch,
		Target:  launchID,
		Headers: headers,
		payload: func(int64) any { return &body },
	}, nil
}

func (h *handler) StartRootItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	rq *reporting.StartTestItemRQ,
) (*reporting.EntryCreatedRS, error) {
	plan, err := h.planStartRootItem(ctx, principal, projectName, rq)
	if err != nil {
		return nil, h.rejected(queue.QueueStartItem, err)
	}

	id, err := h.execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	return &reporting.EntryCreatedRS{ID: id}, nil
}

func (h *handler) planStartRootItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	rq *reporting.StartTestItemRQ,
) (*Plan, error) {
	details, err := principal.Project(projectName)
	if err != nil {
		return nil, err
	}

	if err := validation.StartItemRequest(rq); err != nil {
		return nil, err
	}

	launch, err := h.launch(ctx, rq.LaunchID)
	if err != nil {
		return nil, err
	}

	if err := validation.StartRootItem(details.ProjectID, launch, rq); err != nil {
		return nil, err
	}

	headers := h.headers(principal, projectName)
	headers.LaunchID = launch.ID

	return h.itemPlan(headers, rq), nil
}

func (h *handler) StartChildItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	parentID int64,
	rq *reporting.StartTestItemRQ,
) (*reporting.EntryCreatedRS, error) {
	plan, err := h.planStartChildItem(ctx, principal, projectName, parentID, rq)
	if err != nil {
		return nil, h.rejected(queue.QueueStartItem, err)
	}

	id, err := h.execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	return &reporting.EntryCreatedRS{ID: id}, nil
}

func (h *handler) planStartChildItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	parentID int64,
	rq *reporting.StartTestItemRQ,
) (*Plan, error) {
	details, err := principal.Project(projectName)
	if err != nil {
		return nil, err
	}

	if err := validation.StartItemRequest(rq); err != nil {
		return nil, err
	}

	parent, err := h.item(ctx, parentID)
	if err != nil {
		return nil, err
	}

	launch, err := h.launch(ctx, rq.LaunchID)
	if err != nil {
		return nil, err
	}

	hasLogs, err := h.reader.HasLogs(ctx, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("checking logs of item %d: %w", parent.ID, err)
	}

	if err := validation.StartChildItem(details.ProjectID, launch, parent, hasLogs, rq); err != nil {
		return nil, err
	}

	headers := h.headers(principal, projectName)
	headers.LaunchID = launch.ID
	headers.ParentID = parent.ID

	return h.itemPlan(headers, rq), nil
}

func (h *handler) itemPlan(headers queue.Headers, rq *reporting.StartTestItemRQ) *Plan {
	body := *rq
	body.StartTime = body.StartTime.UTC()
	body.Type, _ = reporting.ParseItemType(string(body.Type))

	return &Plan{
		Queue:   queue.QueueStartItem,
		Kind:    idalloc.KindItem,
		Headers: headers,
		payload: func(id int64) any {
			body.ID = id

			return &body
		},
	}
}

func (h *handler) FinishItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	itemID int64,
	rq *reporting.FinishTestItemRQ,
) (*reporting.OperationCompletionRS, error) {
	plan, err := h.planFinishItem(principal, projectName, itemID, rq)
	if err != nil {
		return nil, h.rejected(queue.QueueFinishItem, err)
	}

	if _, err := h.execute(ctx, plan); err != nil {
		return nil, err
	}

	return &reporting.OperationCompletionRS{
		Message: fmt.Sprintf("Started completion of test item with ID = '%d'", itemID),
	}, nil
}

func (h *handler) planFinishItem(
	principal *reporting.Principal,
	projectName string,
	itemID int64,
	rq *reporting.FinishTestItemRQ,
) (*Plan, error) {
	if _, err := principal.Project(projectName); err != nil {
		return nil, err
	}

	if err := validation.FinishItemRequest(itemID, rq); err != nil {
		return nil, err
	}

	body := *rq
	body.EndTime = body.EndTime.UTC()

	headers := h.headers(principal, projectName)
	headers.LaunchID = rq.LaunchID
	headers.ItemID = itemID

	return &Plan{
		Queue:   queue.QueueFinishItem,
		Target:  itemID,
		Headers: headers,
		payload: func(int64) any { return &body },
	}, nil
}

func (h *handler) UpdateItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	itemID int64,
	rq *reporting.UpdateTestItemRQ,
) (*reporting.OperationCompletionRS, error) {
	plan, err := h.planUpdateItem(ctx, principal, projectName, itemID, rq)
	if err != nil {
		return nil, h.rejected(queue.QueueUpdateItem, err)
	}

	if _, err := h.execute(ctx, plan); err != nil {
		return nil, err
	}

	return &reporting.OperationCompletionRS{
		Message: fmt.Sprintf("Started update of test item with ID = '%d'", itemID),
	}, nil
}

// planUpdateItem routes the update by the item's launch, behind the item's
// finish. Status rules are checked by the consumer against the materialized
// item.
func (h *handler) planUpdateItem(
	ctx context.Context,
	principal *reporting.Principal,
	projectName string,
	itemID int64,
	rq *reporting.UpdateTestItemRQ,
) (*Plan, error) {
	details, err := principal.Project(projectName)
	if err != nil {
		return nil, err
	}

	if err := validation.UpdateItemRequest(itemID, rq); err != nil {
		return nil, err
	}

	item, err := h.item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	launch, err := h.launch(ctx, item.LaunchID)
	if err != nil {
		return nil, err
	}

	if err := validation.CanUpdateItem(principal, details, launch); err != nil {
		return nil, err
	}

	body := *rq
	if st, _ := reporting.ParseStatus(rq.Status); st != "" {
		body.Status = string(st)
	}

	headers := h.headers(principal, projectName)
	headers.LaunchID = item.LaunchID
	headers.ItemID = itemID

	return &Plan{
		Queue:   queue.QueueUpdateItem,
		Target:  itemID,
		Headers: headers,
		payload: func(int64) any { return &body },
	}, nil
}

// execute allocates the plan's identifier if it needs one and publishes it.
func (h *handler) execute(ctx context.Context, plan *Plan) (int64, error) {
	id := plan.Target

	if plan.Kind != "" {
		next, err := h.allocator.NextID(ctx, plan.Kind)
		if err != nil {
			return 0, fmt.Errorf("allocating %s id: %w", plan.Kind, err)
		}

		id = next

		switch plan.Kind {
		case idalloc.KindLaunch:
			plan.Headers.LaunchID = id
		case idalloc.KindItem:
			plan.Headers.ItemID = id
		}
	}

	msg, err := queue.NewMessage(plan.Queue, plan.Headers, plan.payload(id))
	if err != nil {
		return 0, err
	}

	if err := h.publisher.Publish(ctx, msg); err != nil {
		return 0, fmt.Errorf("publishing %s for %d: %w", plan.Queue, id, err)
	}

	metrics.RecordPublished(string(plan.Queue))

	h.log.WithFields(logrus.Fields{
		"queue":     plan.Queue,
		"id":        id,
		"launch_id": plan.Headers.LaunchID,
		"project":   plan.Headers.ProjectName,
	}).Debug("Published reporting message")

	return id, nil
}

func (h *handler) headers(principal *reporting.Principal, projectName string) queue.Headers {
	return queue.Headers{
		Username:    principal.Username,
		ProjectName: reporting.NormalizeProjectName(projectName),
	}
}

func (h *handler) launch(ctx context.Context, id int64) (*store.Launch, error) {
	launch, err := h.reader.GetLaunch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, reporting.NewError(reporting.ErrLaunchNotFound,
			"Launch '%d' not found. Did you use correct Launch ID?", id)
	}

	return launch, err
}

func (h *handler) item(ctx context.Context, id int64) (*store.TestItem, error) {
	item, err := h.reader.GetItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, reporting.NewError(reporting.ErrTestItemNotFound,
			"Test Item '%d' not found. Did you use correct Test Item ID?", id)
	}

	return item, err
}

// rejected counts a request refused in the decision phase.
func (h *handler) rejected(q queue.Queue, err error) error {
	t, ok := reporting.TypeOf(err)
	if !ok {
		t = "INTERNAL"
	}

	metrics.RecordRejected(string(q), string(t))

	return err
}
