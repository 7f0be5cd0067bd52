// Package validation checks reporting requests against the current state of
// the entities they touch. Checks are pure: they never read or write storage.
package validation

import (
	"strings"
	"time"

	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/store"
)

// StartLaunch checks a start-launch request for a caller with the given
// project details.
func StartLaunch(details reporting.ProjectDetails, rq *reporting.StartLaunchRQ) error {
	if details.Role == reporting.ProjectRoleCustomer && rq.Mode == reporting.ModeDebug {
		return reporting.NewError(reporting.ErrAccessDenied,
			"customers are not allowed to start launches in %s mode", reporting.ModeDebug)
	}

	switch rq.Mode {
	case "", reporting.ModeDefault, reporting.ModeDebug:
	default:
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown launch mode %q", rq.Mode)
	}

	if strings.TrimSpace(rq.Name) == "" {
		return reporting.NewError(reporting.ErrIncorrectRequest, "launch name is required")
	}

	if rq.StartTime.IsZero() {
		return reporting.NewError(reporting.ErrIncorrectRequest, "launch start time is required")
	}

	return nil
}

// FinishLaunchRequest checks the shape of a finish-launch request.
func FinishLaunchRequest(launchID int64, rq *reporting.FinishExecutionRQ) error {
	if launchID <= 0 {
		return reporting.NewError(reporting.ErrIncorrectRequest, "launch id is required")
	}

	return finishRequest(rq.EndTime, rq.Status)
}

// FinishItemRequest checks the shape of a finish-item request. The launch id
// is required because finish messages are routed by it.
func FinishItemRequest(itemID int64, rq *reporting.FinishTestItemRQ) error {
	if itemID <= 0 {
		return reporting.NewError(reporting.ErrIncorrectRequest, "item id is required")
	}

	if rq.LaunchID <= 0 {
		return reporting.NewError(reporting.ErrIncorrectRequest,
			"launchId is required to finish item %d", itemID)
	}

	return finishRequest(rq.EndTime, rq.Status)
}

// UpdateItemRequest checks the shape of an update-item request.
func UpdateItemRequest(itemID int64, rq *reporting.UpdateTestItemRQ) error {
	if itemID <= 0 {
		return reporting.NewError(reporting.ErrIncorrectRequest, "item id is required")
	}

	st, ok := reporting.ParseStatus(rq.Status)
	if !ok {
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown status %q", rq.Status)
	}

	if st != "" && !st.IsTerminal() {
		return reporting.NewError(reporting.ErrIncorrectRequest,
			"Status of test item %d can not be changed to: %s", itemID, st)
	}

	return nil
}

func finishRequest(end time.Time, rawStatus string) error {
	if end.IsZero() {
		return reporting.NewError(reporting.ErrIncorrectRequest, "end time is required")
	}

	if _, ok := reporting.ParseStatus(rawStatus); !ok {
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown status %q", rawStatus)
	}

	return nil
}

// StartItemRequest checks the shape of a start-item request.
func StartItemRequest(rq *reporting.StartTestItemRQ) error {
	if rq.LaunchID <= 0 {
		return reporting.NewError(reporting.ErrIncorrectRequest, "launchId is required")
	}

	if strings.TrimSpace(rq.Name) == "" {
		return reporting.NewError(reporting.ErrIncorrectRequest, "item name is required")
	}

	if _, ok := reporting.ParseItemType(string(rq.Type)); !ok {
		return reporting.NewError(reporting.ErrIncorrectRequest, "unknown item type %q", rq.Type)
	}

	if rq.StartTime.IsZero() {
		return reporting.NewError(reporting.ErrIncorrectRequest, "item start time is required")
	}

	return nil
}

// LaunchAcceptsItems checks that launch belongs to projectID and is still
// running.
func LaunchAcceptsItems(projectID int64, launch *store.Launch) error {
	if launch.ProjectID != projectID {
		return reporting.NewError(reporting.ErrAccessDenied,
			"launch %d does not belong to the project", launch.ID)
	}

	if launch.Status != reporting.StatusInProgress {
		return reporting.NewError(reporting.ErrStartItemNotAllowed,
			"Launch '%d' is not in progress", launch.ID)
	}

	return nil
}

// ParentAcceptsChildren checks that parent is still running and has no logs.
func ParentAcceptsChildren(parent *store.TestItem, parentHasLogs bool) error {
	if parent.Status != reporting.StatusInProgress {
		return reporting.NewError(reporting.ErrStartItemNotAllowed,
			"Parent Item '%d' is not in progress", parent.ID)
	}

	if parentHasLogs {
		return reporting.NewError(reporting.ErrStartItemNotAllowed,
			"Parent Item '%d' already has log items", parent.ID)
	}

	return nil
}

// StartRootItem checks a root item start under launch. The request itself
// must already have passed StartItemRequest.
func StartRootItem(
	projectID int64,
	launch *store.Launch,
	rq *reporting.StartTestItemRQ,
) error {
	if err := LaunchAcceptsItems(projectID, launch); err != nil {
		return err
	}

	return startNotEarlier(rq.StartTime, launch.StartTime, "launch", launch.ID)
}

// StartChildItem checks a child item start under parent in launch, like
// StartRootItem.
func StartChildItem(
	projectID int64,
	launch *store.Launch,
	parent *store.TestItem,
	parentHasLogs bool,
	rq *reporting.StartTestItemRQ,
) error {
	if launch.ProjectID != projectID {
		return reporting.NewError(reporting.ErrAccessDenied,
			"launch %d does not belong to the project", launch.ID)
	}

	if parent.LaunchID != launch.ID {
		return reporting.NewError(reporting.ErrIncorrectRequest,
			"parent item %d does not belong to launch %d", parent.ID, launch.ID)
	}

	if err := startNotEarlier(rq.StartTime, parent.StartTime, "parent item", parent.ID); err != nil {
		return err
	}

	if err := ParentAcceptsChildren(parent, parentHasLogs); err != nil {
		return err
	}

	return startNotEarlier(rq.StartTime, launch.StartTime, "launch", launch.ID)
}

func startNotEarlier(start, parentStart time.Time, what string, id int64) error {
	if start.Before(parentStart) {
		return reporting.NewError(reporting.ErrChildStartTimeEarlierThanParent,
			"start time %s is earlier than %s %d start time %s",
			start.UTC().Format(time.RFC3339Nano), what, id,
			parentStart.UTC().Format(time.RFC3339Nano))
	}

	return nil
}

// FinishNotEarlier checks that end is not before start.
func FinishNotEarlier(end, start time.Time, what string, id int64) error {
	if end.Before(start) {
		return reporting.NewError(reporting.ErrFinishTimeEarlierThanStartTime,
			"finish time %s is earlier than %s %d start time %s",
			end.UTC().Format(time.RFC3339Nano), what, id,
			start.UTC().Format(time.RFC3339Nano))
	}

	return nil
}

// CanFinishLaunch checks that the caller may finish launch: it must belong to
// the caller's project and the caller must own it or manage the project.
func CanFinishLaunch(
	principal *reporting.Principal,
	details reporting.ProjectDetails,
	launch *store.Launch,
) error {
	if launch.ProjectID != details.ProjectID {
		return reporting.NewError(reporting.ErrAccessDenied,
			"launch %d does not belong to project '%s'", launch.ID, details.ProjectName)
	}

	return ownsOrManages(principal, details, launch)
}

// CanUpdateItem checks that the caller may change an item of launch, under
// the same ownership rule as CanFinishLaunch. Administrators may change items
// of any project.
func CanUpdateItem(
	principal *reporting.Principal,
	details reporting.ProjectDetails,
	launch *store.Launch,
) error {
	if principal.Role == reporting.UserRoleAdministrator {
		return nil
	}

	if launch.ProjectID != details.ProjectID {
		return reporting.NewError(reporting.ErrAccessDenied,
			"Launch is not under the specified project.")
	}

	return ownsOrManages(principal, details, launch)
}

func ownsOrManages(
	principal *reporting.Principal,
	details reporting.ProjectDetails,
	launch *store.Launch,
) error {
	if launch.OwnerID != principal.UserID &&
		!details.Role.SameOrHigherThan(reporting.ProjectRoleProjectManager) &&
		principal.Role != reporting.UserRoleAdministrator {
		return reporting.NewError(reporting.ErrAccessDenied, "You are not a launch owner.")
	}

	return nil
}
