package consumer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/consumer"
	"github.com/ethpandaops/reportoor/pkg/queue"
	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/status"
	"github.com/ethpandaops/reportoor/pkg/store"
	"github.com/ethpandaops/reportoor/pkg/uniqueid"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func setupStore(t *testing.T) store.Store {
	t.Helper()

	s := store.NewStore(testLogger(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: filepath.Join(t.TempDir(), "consumer.db")},
	})
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.SeedUsers(context.Background(), []config.UserConfig{
		{
			Username: "alice",
			APIKey:   "alice-key",
			Projects: []config.MembershipConfig{{Name: "alpha", Role: "MEMBER"}},
		},
		{
			Username: "bob",
			APIKey:   "bob-key",
			Projects: []config.MembershipConfig{{Name: "alpha", Role: "PROJECT_MANAGER"}},
		},
		{
			Username: "dave",
			APIKey:   "dave-key",
			Projects: []config.MembershipConfig{{Name: "alpha", Role: "MEMBER"}},
		},
	}))

	return s
}

type harness struct {
	t     *testing.T
	store store.Store
	m     *consumer.Materializer
}

func setup(t *testing.T) *harness {
	t.Helper()

	s := setupStore(t)

	return &harness{
		t:     t,
		store: s,
		m: consumer.NewMaterializer(
			testLogger(), s, status.DefaultTables(), uniqueid.NewGenerator(), nil,
		),
	}
}

func delivery(t *testing.T, q queue.Queue, h queue.Headers, payload any) queue.Delivery {
	t.Helper()

	if h.Username == "" {
		h.Username = "alice"
	}

	h.ProjectName = "alpha"

	msg, err := queue.NewMessage(q, h, payload)
	require.NoError(t, err)

	return queue.Delivery{Message: msg, ID: "test", Attempt: 1}
}

func (h *harness) startLaunch(id int64) {
	h.t.Helper()

	require.NoError(h.t, h.m.StartLaunch(context.Background(), delivery(h.t, queue.QueueStartLaunch,
		queue.Headers{LaunchID: id},
		&reporting.StartLaunchRQ{ID: id, UUID: "uuid-launch", Name: "nightly", StartTime: t0},
	)))
}

func (h *harness) startItem(launchID, parentID, id int64, itemType reporting.ItemType, start time.Time) error {
	return h.m.StartItem(context.Background(), delivery(h.t, queue.QueueStartItem,
		queue.Headers{LaunchID: launchID, ItemID: id, ParentID: parentID},
		&reporting.StartTestItemRQ{
			ID:        id,
			LaunchID:  launchID,
			Name:      "item",
			Type:      itemType,
			StartTime: start,
		},
	))
}

func (h *harness) finishItem(launchID, id int64, st string, end time.Time) error {
	return h.m.FinishItem(context.Background(), delivery(h.t, queue.QueueFinishItem,
		queue.Headers{LaunchID: launchID, ItemID: id},
		&reporting.FinishTestItemRQ{LaunchID: launchID, EndTime: end, Status: st},
	))
}

func (h *harness) finishLaunch(username string, id int64, st string, end time.Time) error {
	return h.m.FinishLaunch(context.Background(), delivery(h.t, queue.QueueFinishLaunch,
		queue.Headers{Username: username, LaunchID: id},
		&reporting.FinishExecutionRQ{EndTime: end, Status: st},
	))
}

func (h *harness) updateItem(username string, launchID, id int64, rq *reporting.UpdateTestItemRQ) error {
	return h.m.UpdateItem(context.Background(), delivery(h.t, queue.QueueUpdateItem,
		queue.Headers{Username: username, LaunchID: launchID, ItemID: id},
		rq,
	))
}

func (h *harness) item(id int64) *store.TestItem {
	h.t.Helper()

	item, err := h.store.GetItem(context.Background(), id)
	require.NoError(h.t, err)

	return item
}

func (h *harness) launch(id int64) *store.Launch {
	h.t.Helper()

	launch, err := h.store.GetLaunch(context.Background(), id)
	require.NoError(h.t, err)

	return launch
}

func requireType(t *testing.T, err error, want reporting.ErrorType) {
	t.Helper()

	require.Error(t, err)

	got, ok := reporting.TypeOf(err)
	require.True(t, ok, "expected a typed error, got %v", err)
	assert.Equal(t, want, got)
	assert.True(t, consumer.IsPermanent(err))
}

func TestStartLaunch(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	launch := h.launch(1)
	assert.Equal(t, reporting.StatusInProgress, launch.Status)
	assert.Equal(t, reporting.ModeDefault, launch.Mode)
	assert.Equal(t, "alice", launch.Owner)
	assert.True(t, launch.StartTime.Equal(t0))

	// Redelivery is a no-op.
	h.startLaunch(1)
}

func TestStartLaunch_UUIDTakenIsIntegrity(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	err := h.m.StartLaunch(context.Background(), delivery(t, queue.QueueStartLaunch,
		queue.Headers{LaunchID: 2},
		&reporting.StartLaunchRQ{ID: 2, UUID: "uuid-launch", Name: "other", StartTime: t0},
	))
	require.ErrorIs(t, err, reporting.ErrIntegrity)
	assert.True(t, consumer.IsPermanent(err))
}

func TestStartItem_BuildsPathChain(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeTest, t0.Add(2*time.Second)))
	require.NoError(t, h.startItem(1, 3, 4, reporting.ItemTypeStep, t0.Add(3*time.Second)))

	a, b, c := h.item(2), h.item(3), h.item(4)
	assert.Equal(t, "2", a.Path)
	assert.Equal(t, "2.3", b.Path)
	assert.Equal(t, "2.3.4", c.Path)
	assert.Nil(t, a.ParentID)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, int64(3), *c.ParentID)

	assert.True(t, a.HasChildren)
	assert.True(t, b.HasChildren)
	assert.False(t, c.HasChildren)

	assert.Equal(t, uniqueid.NewGenerator().Generate(uniqueid.Input{
		ProjectName:   "alpha",
		LaunchName:    "nightly",
		AncestorNames: []string{"item", "item"},
		ItemName:      "item",
	}), c.UniqueID)
}

func TestStartItem_Duplicate(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))

	items, err := h.store.ListItems(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStartItem_IntegrityErrors(t *testing.T) {
	h := setup(t)

	err := h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0)
	require.ErrorIs(t, err, reporting.ErrIntegrity)
	assert.True(t, consumer.IsPermanent(err))

	h.startLaunch(1)

	err = h.startItem(1, 9, 10, reporting.ItemTypeStep, t0)
	require.ErrorIs(t, err, reporting.ErrIntegrity)
}

func TestStartItem_ParentNoLongerInProgress(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.finishItem(1, 2, "", t0.Add(2*time.Second)))

	requireType(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(3*time.Second)),
		reporting.ErrStartItemNotAllowed)
}

func TestFinishItem_LeafDefaultsToPassed(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(time.Second)))
	require.NoError(t, h.finishItem(1, 2, "", t0.Add(2*time.Second)))

	item := h.item(2)
	assert.Equal(t, reporting.StatusPassed, item.Status)
	assert.Equal(t, int64(1), item.Statistics.Passed)

	initial, ok := item.SystemAttribute(consumer.InitialStatusAttribute)
	require.True(t, ok)
	assert.Equal(t, "passed", initial)

	assert.Equal(t, reporting.Statistics{Total: 1, Passed: 1}, h.launch(1).Statistics)
}

func TestFinishItem_PassedItemCannotBeFinishedAgain(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(time.Second)))
	require.NoError(t, h.finishItem(1, 2, "PASSED", t0.Add(2*time.Second)))

	requireType(t, h.finishItem(1, 2, "FAILED", t0.Add(3*time.Second)), reporting.ErrIncorrectRequest)

	item := h.item(2)
	assert.Equal(t, reporting.StatusPassed, item.Status)
	assert.True(t, item.EndTime.Equal(t0.Add(2*time.Second)))
	assert.Equal(t, reporting.Statistics{Total: 1, Passed: 1}, item.Statistics)
}

func TestFinishItem_RedeliveryIsIdempotent(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(2*time.Second)))

	for range 2 {
		require.NoError(t, h.finishItem(1, 3, "FAILED", t0.Add(3*time.Second)))
	}

	assert.Equal(t, reporting.StatusFailed, h.item(3).Status)
	assert.Equal(t, reporting.Statistics{Total: 1, Failed: 1}, h.item(2).Statistics)
	assert.Equal(t, reporting.Statistics{Total: 1, Failed: 1}, h.launch(1).Statistics)
}

func TestFinishItem_ParentInterruptsAndDerives(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(2*time.Second)))
	require.NoError(t, h.startItem(1, 2, 4, reporting.ItemTypeStep, t0.Add(2*time.Second)))
	require.NoError(t, h.finishItem(1, 3, "FAILED", t0.Add(3*time.Second)))

	require.NoError(t, h.finishItem(1, 2, "", t0.Add(4*time.Second)))

	assert.Equal(t, reporting.StatusInterrupted, h.item(4).Status)

	parent := h.item(2)
	assert.Equal(t, reporting.StatusFailed, parent.Status)
	assert.Equal(t, reporting.Statistics{Total: 2, Failed: 1, Interrupted: 1}, parent.Statistics)
	assert.Equal(t, reporting.Statistics{Total: 2, Failed: 1, Interrupted: 1}, h.launch(1).Statistics)
}

func TestFinishItem_ExplicitStatusOnSuiteWithChildren(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(2*time.Second)))

	requireType(t, h.finishItem(1, 2, "PASSED", t0.Add(3*time.Second)), reporting.ErrIncorrectRequest)

	// Nothing below the suite was touched.
	assert.Equal(t, reporting.StatusInProgress, h.item(3).Status)
	assert.Equal(t, reporting.StatusInProgress, h.item(2).Status)
}

func TestFinishItem_Rejections(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(time.Second)))

	requireType(t, h.finishItem(1, 99, "", t0.Add(2*time.Second)), reporting.ErrTestItemNotFound)
	requireType(t, h.finishItem(1, 2, "", t0), reporting.ErrFinishTimeEarlierThanStartTime)
	requireType(t, h.finishItem(5, 2, "", t0.Add(2*time.Second)), reporting.ErrIncorrectRequest)
}

func TestFinishLaunch(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(2*time.Second)))
	require.NoError(t, h.finishItem(1, 3, "", t0.Add(10*time.Second)))

	requireType(t, h.finishLaunch("dave", 1, "", t0.Add(5*time.Second)), reporting.ErrAccessDenied)
	requireType(t, h.finishLaunch("alice", 1, "", t0.Add(-time.Second)),
		reporting.ErrFinishTimeEarlierThanStartTime)

	require.NoError(t, h.finishLaunch("bob", 1, "", t0.Add(5*time.Second)))

	launch := h.launch(1)
	assert.Equal(t, reporting.StatusPassed, launch.Status)
	require.NotNil(t, launch.EndTime)
	assert.True(t, launch.EndTime.Equal(t0.Add(10*time.Second)), "raised to the latest item end")
	assert.Equal(t, reporting.StatusInterrupted, h.item(2).Status)

	// Redelivery is a no-op, a real second finish is not.
	require.NoError(t, h.finishLaunch("bob", 1, "", t0.Add(5*time.Second)))
	requireType(t, h.finishLaunch("bob", 1, "", t0.Add(time.Minute)), reporting.ErrFinishLaunchNotAllowed)

	requireType(t, h.startItem(1, 0, 9, reporting.ItemTypeSuite, t0.Add(time.Minute)),
		reporting.ErrStartItemNotAllowed)
}

func TestFinishLaunch_EndCoversItemsStartedLater(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(10*time.Second)))
	require.NoError(t, h.finishLaunch("alice", 1, "", t0.Add(5*time.Second)))

	step := h.item(2)
	assert.Equal(t, reporting.StatusInterrupted, step.Status)
	require.NotNil(t, step.EndTime)
	assert.True(t, step.EndTime.Equal(t0.Add(10*time.Second)))

	launch := h.launch(1)
	require.NotNil(t, launch.EndTime)
	assert.False(t, launch.EndTime.Before(*step.EndTime), "launch end %s before item end %s",
		launch.EndTime, step.EndTime)
	assert.Equal(t, reporting.StatusFailed, launch.Status)

	// Redelivery of the original request is still a no-op.
	require.NoError(t, h.finishLaunch("alice", 1, "", t0.Add(5*time.Second)))
}

func TestFinishItem_EndCoversChildrenStartedLater(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(10*time.Second)))
	require.NoError(t, h.finishItem(1, 2, "", t0.Add(5*time.Second)))

	child, parent := h.item(3), h.item(2)
	require.NotNil(t, child.EndTime)
	require.NotNil(t, parent.EndTime)
	assert.True(t, child.EndTime.Equal(t0.Add(10*time.Second)))
	assert.False(t, parent.EndTime.Before(*child.EndTime), "parent end %s before child end %s",
		parent.EndTime, child.EndTime)

	require.NoError(t, h.finishItem(1, 2, "", t0.Add(5*time.Second)))
	assert.Equal(t, reporting.StatusFailed, h.item(2).Status)
}

func TestFinish_RedeliveryWithSubMicrosecondEnd(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	end := t0.Add(3*time.Second + 1234*time.Nanosecond)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(time.Second)))

	for range 2 {
		require.NoError(t, h.finishItem(1, 2, "FAILED", end))
		require.NoError(t, h.finishLaunch("alice", 1, "", end))
	}

	item := h.item(2)
	require.NotNil(t, item.EndTime)
	assert.True(t, item.EndTime.Equal(end.Truncate(time.Microsecond)))
	assert.Equal(t, reporting.Statistics{Total: 1, Failed: 1}, h.launch(1).Statistics)

	launch := h.launch(1)
	require.NotNil(t, launch.EndTime)
	assert.True(t, launch.EndTime.Equal(end.Truncate(time.Microsecond)))
}

func TestFinishLaunch_NotFound(t *testing.T) {
	h := setup(t)

	requireType(t, h.finishLaunch("alice", 7, "", t0), reporting.ErrLaunchNotFound)
}

func TestUpdateItem_ChangesStatusAndRecounts(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(2*time.Second)))
	require.NoError(t, h.startItem(1, 2, 4, reporting.ItemTypeStep, t0.Add(2*time.Second)))
	require.NoError(t, h.finishItem(1, 3, "FAILED", t0.Add(3*time.Second)))
	require.NoError(t, h.finishItem(1, 4, "PASSED", t0.Add(3*time.Second)))
	require.NoError(t, h.finishItem(1, 2, "", t0.Add(4*time.Second)))
	require.NoError(t, h.finishLaunch("alice", 1, "", t0.Add(5*time.Second)))

	require.Equal(t, reporting.StatusFailed, h.item(2).Status)
	require.Equal(t, reporting.StatusFailed, h.launch(1).Status)

	// Redelivery applies nothing twice.
	for range 2 {
		require.NoError(t, h.updateItem("alice", 1, 3, &reporting.UpdateTestItemRQ{Status: "PASSED"}))
	}

	step := h.item(3)
	assert.Equal(t, reporting.StatusPassed, step.Status)
	assert.Equal(t, reporting.Statistics{Total: 1, Passed: 1}, step.Statistics)

	initial, ok := step.SystemAttribute(consumer.InitialStatusAttribute)
	require.True(t, ok)
	assert.Equal(t, "failed", initial)

	suite := h.item(2)
	assert.Equal(t, reporting.StatusPassed, suite.Status)
	assert.Equal(t, reporting.Statistics{Total: 2, Passed: 2}, suite.Statistics)

	launch := h.launch(1)
	assert.Equal(t, reporting.StatusPassed, launch.Status)
	assert.Equal(t, reporting.Statistics{Total: 2, Passed: 2}, launch.Statistics)
}

func TestUpdateItem_RecordsStatusBeforeFirstChange(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(time.Second)))
	require.NoError(t, h.finishLaunch("alice", 1, "", t0.Add(5*time.Second)))

	_, ok := h.item(2).SystemAttribute(consumer.InitialStatusAttribute)
	require.False(t, ok, "interrupted items carry no initial status")

	require.NoError(t, h.updateItem("bob", 1, 2, &reporting.UpdateTestItemRQ{Status: "SKIPPED"}))
	require.NoError(t, h.updateItem("bob", 1, 2, &reporting.UpdateTestItemRQ{Status: "FAILED"}))

	step := h.item(2)
	assert.Equal(t, reporting.StatusFailed, step.Status)

	initial, ok := step.SystemAttribute(consumer.InitialStatusAttribute)
	require.True(t, ok)
	assert.Equal(t, "interrupted", initial)

	assert.Equal(t, reporting.Statistics{Total: 1, Failed: 1}, h.launch(1).Statistics)
}

func TestUpdateItem_OverwritesAttributes(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeStep, t0.Add(time.Second)))
	require.NoError(t, h.finishItem(1, 2, "", t0.Add(2*time.Second)))

	require.NoError(t, h.updateItem("alice", 1, 2, &reporting.UpdateTestItemRQ{
		Description: "flaky",
		Attributes:  []reporting.Attribute{{Key: "team", Value: "core"}},
	}))

	item := h.item(2)
	assert.Equal(t, reporting.StatusPassed, item.Status)
	assert.Equal(t, "flaky", item.Description)
	assert.Equal(t, []reporting.Attribute{
		{Key: consumer.InitialStatusAttribute, Value: "passed", System: true},
		{Key: "team", Value: "core"},
	}, item.Attributes)
}

func TestUpdateItem_Rejections(t *testing.T) {
	h := setup(t)
	h.startLaunch(1)

	require.NoError(t, h.startItem(1, 0, 2, reporting.ItemTypeSuite, t0.Add(time.Second)))
	require.NoError(t, h.startItem(1, 2, 3, reporting.ItemTypeStep, t0.Add(2*time.Second)))

	err := h.updateItem("alice", 1, 3, &reporting.UpdateTestItemRQ{Status: "FAILED"})
	requireType(t, err, reporting.ErrIncorrectRequest)
	assert.Contains(t, err.Error(), "Actual status: IN_PROGRESS")

	require.NoError(t, h.finishItem(1, 3, "PASSED", t0.Add(3*time.Second)))
	require.NoError(t, h.finishItem(1, 2, "", t0.Add(4*time.Second)))

	err = h.updateItem("alice", 1, 2, &reporting.UpdateTestItemRQ{Status: "FAILED"})
	requireType(t, err, reporting.ErrIncorrectRequest)
	assert.Contains(t, err.Error(), "with children")

	requireType(t, h.updateItem("dave", 1, 3, &reporting.UpdateTestItemRQ{Status: "FAILED"}),
		reporting.ErrAccessDenied)
	requireType(t, h.updateItem("alice", 1, 99, &reporting.UpdateTestItemRQ{Status: "FAILED"}),
		reporting.ErrTestItemNotFound)
	require.ErrorIs(t, h.updateItem("alice", 7, 3, &reporting.UpdateTestItemRQ{Status: "FAILED"}),
		reporting.ErrIntegrity)

	// Nothing was recounted.
	assert.Equal(t, reporting.Statistics{Total: 1, Passed: 1}, h.launch(1).Statistics)
	assert.Equal(t, reporting.StatusPassed, h.item(3).Status)
}

func TestUnknownUserIsPermanent(t *testing.T) {
	h := setup(t)

	err := h.m.StartLaunch(context.Background(), delivery(t, queue.QueueStartLaunch,
		queue.Headers{Username: "mallory", LaunchID: 1},
		&reporting.StartLaunchRQ{ID: 1, Name: "l", StartTime: t0},
	))
	requireType(t, err, reporting.ErrUserNotFound)
}

func TestMalformedPayloadIsPermanent(t *testing.T) {
	h := setup(t)

	d := delivery(t, queue.QueueFinishItem, queue.Headers{LaunchID: 1, ItemID: 2}, nil)
	d.Payload = []byte("{broken")

	err := h.m.FinishItem(context.Background(), d)
	require.ErrorIs(t, err, consumer.ErrMalformed)
	assert.True(t, consumer.IsPermanent(err))
	assert.False(t, consumer.IsPermanent(errors.New("connection reset")))
}
