package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/store"
)

type errorResponse struct {
	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a reporting error type to its HTTP status code.
func statusFor(t reporting.ErrorType) int {
	switch t {
	case reporting.ErrAccessDenied:
		return http.StatusForbidden
	case reporting.ErrLaunchNotFound,
		reporting.ErrTestItemNotFound,
		reporting.ErrUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// writeError writes err as an error response. Untyped errors are logged and
// hidden behind a generic message.
func (s *server) writeError(w http.ResponseWriter, err error) {
	var rerr *reporting.Error
	if errors.As(err, &rerr) {
		writeJSON(w, statusFor(rerr.Type), errorResponse{
			ErrorType: string(rerr.Type),
			Message:   rerr.Message,
		})

		return
	}

	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "not found"})

		return
	}

	s.log.WithError(err).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError,
		errorResponse{Message: "internal error"})
}

// decodeBody decodes the JSON request body into v, writing the error
// response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				errorResponse{Message: "request body too large"})

			return false
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorType: string(reporting.ErrIncorrectRequest),
			Message:   "invalid request body",
		})

		return false
	}

	return true
}

// pathID parses the named URL parameter as an entity id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorType: string(reporting.ErrIncorrectRequest),
			Message:   "invalid " + name,
		})

		return 0, false
	}

	return id, true
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Asynchronous reporting ---

func (s *server) handleStartLaunch(w http.ResponseWriter, r *http.Request) {
	var rq reporting.StartLaunchRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	rs, err := s.producer.StartLaunch(r.Context(),
		principalFromContext(r.Context()), chi.URLParam(r, "project"), &rq)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, rs)
}

func (s *server) handleFinishLaunch(w http.ResponseWriter, r *http.Request) {
	launchID, ok := pathID(w, r, "launchId")
	if !ok {
		return
	}

	var rq reporting.FinishExecutionRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	rs, err := s.producer.FinishLaunch(r.Context(),
		principalFromContext(r.Context()), chi.URLParam(r, "project"), launchID, &rq)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusAccepted, rs)
}

func (s *server) handleStartRootItem(w http.ResponseWriter, r *http.Request) {
	var rq reporting.StartTestItemRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	rs, err := s.producer.StartRootItem(r.Context(),
		principalFromContext(r.Context()), chi.URLParam(r, "project"), &rq)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, rs)
}

func (s *server) handleStartChildItem(w http.ResponseWriter, r *http.Request) {
	parentID, ok := pathID(w, r, "parentId")
	if !ok {
		return
	}

	var rq reporting.StartTestItemRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	rs, err := s.producer.StartChildItem(r.Context(),
		principalFromContext(r.Context()), chi.URLParam(r, "project"), parentID, &rq)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, rs)
}

func (s *server) handleFinishItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}

	var rq reporting.FinishTestItemRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	rs, err := s.producer.FinishItem(r.Context(),
		principalFromContext(r.Context()), chi.URLParam(r, "project"), itemID, &rq)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusAccepted, rs)
}

func (s *server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}

	var rq reporting.UpdateTestItemRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	rs, err := s.producer.UpdateItem(r.Context(),
		principalFromContext(r.Context()), chi.URLParam(r, "project"), itemID, &rq)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusAccepted, rs)
}

// --- Materialized state ---

// projectLaunch loads a launch and checks that it belongs to the requested
// project the principal is assigned to. Launches of other projects are
// reported as missing.
func (s *server) projectLaunch(r *http.Request, launchID int64) (*store.Launch, error) {
	details, err := principalFromContext(r.Context()).Project(chi.URLParam(r, "project"))
	if err != nil {
		return nil, err
	}

	launch, err := s.store.GetLaunch(r.Context(), launchID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if launch == nil || launch.ProjectID != details.ProjectID {
		return nil, reporting.NewError(reporting.ErrLaunchNotFound,
			"Launch '%d' not found. Did you use correct Launch ID?", launchID)
	}

	return launch, nil
}

// projectItem loads a test item and checks its launch like projectLaunch.
func (s *server) projectItem(r *http.Request, itemID int64) (*store.TestItem, error) {
	notFound := reporting.NewError(reporting.ErrTestItemNotFound,
		"Test Item '%d' not found. Did you use correct Test Item ID?", itemID)

	item, err := s.store.GetItem(r.Context(), itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound
	}

	if err != nil {
		return nil, err
	}

	if _, err := s.projectLaunch(r, item.LaunchID); err != nil {
		if reporting.IsType(err, reporting.ErrLaunchNotFound) {
			return nil, notFound
		}

		return nil, err
	}

	return item, nil
}

func (s *server) handleGetLaunch(w http.ResponseWriter, r *http.Request) {
	launchID, ok := pathID(w, r, "launchId")
	if !ok {
		return
	}

	launch, err := s.projectLaunch(r, launchID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, launch)
}

func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	launchID, ok := pathID(w, r, "launchId")
	if !ok {
		return
	}

	if _, err := s.projectLaunch(r, launchID); err != nil {
		s.writeError(w, err)

		return
	}

	items, err := s.store.ListItems(r.Context(), launchID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if items == nil {
		items = []store.TestItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}

	item, err := s.projectItem(r, itemID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleSaveLog attaches a log entry to a test item synchronously.
func (s *server) handleSaveLog(w http.ResponseWriter, r *http.Request) {
	var rq reporting.SaveLogRQ
	if !decodeBody(w, r, &rq) {
		return
	}

	if rq.ItemID <= 0 {
		s.writeError(w, reporting.NewError(reporting.ErrIncorrectRequest,
			"itemId is required"))

		return
	}

	item, err := s.projectItem(r, rq.ItemID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if rq.LaunchID != 0 && rq.LaunchID != item.LaunchID {
		s.writeError(w, reporting.NewError(reporting.ErrIncorrectRequest,
			"Test item '%d' does not belong to launch '%d'", item.ID, rq.LaunchID))

		return
	}

	at := rq.Time.UTC()
	if rq.Time.IsZero() {
		at = time.Now().UTC()
	}

	entry := &store.LogEntry{
		ItemID:   item.ID,
		LaunchID: item.LaunchID,
		Time:     at,
		Level:    strings.ToUpper(rq.Level),
		Message:  rq.Message,
	}

	if err := s.store.SaveLog(r.Context(), entry); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, reporting.EntryCreatedRS{ID: entry.ID})
}
