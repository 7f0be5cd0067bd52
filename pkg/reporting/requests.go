package reporting

import "time"

// Attribute is a key/value label attached to a launch or test item.
type Attribute struct {
	Key    string `json:"key,omitempty"`
	Value  string `json:"value"`
	System bool   `json:"system,omitempty"`
}

// Parameter is a named test parameter.
type Parameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StartLaunchRQ is the client request that starts a launch. ID is injected by
// the producer after allocation.
type StartLaunchRQ struct {
	ID          int64       `json:"id,omitempty"`
	UUID        string      `json:"uuid,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Mode        Mode        `json:"mode,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
	StartTime   time.Time   `json:"startTime"`
}

// StartLaunchRS is returned synchronously for an accepted launch start.
type StartLaunchRS struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`
}

// FinishExecutionRQ finishes a launch.
type FinishExecutionRQ struct {
	EndTime     time.Time   `json:"endTime"`
	Status      string      `json:"status,omitempty"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// StartTestItemRQ starts a root or child test item. ID is injected by the
// producer after allocation.
type StartTestItemRQ struct {
	ID          int64       `json:"id,omitempty"`
	LaunchID    int64       `json:"launchId"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        ItemType    `json:"type"`
	StartTime   time.Time   `json:"startTime"`
	UniqueID    string      `json:"uniqueId,omitempty"`
	CodeRef     string      `json:"codeRef,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// FinishTestItemRQ finishes a test item. LaunchID is required: it is the
// routing key that orders the finish after the item's start.
type FinishTestItemRQ struct {
	LaunchID    int64       `json:"launchId"`
	EndTime     time.Time   `json:"endTime"`
	Status      string      `json:"status,omitempty"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// UpdateTestItemRQ changes a finished test item. Status, when set, moves the
// item to another terminal status. Attributes, when set, replace the item's
// non-system attributes.
type UpdateTestItemRQ struct {
	Status      string      `json:"status,omitempty"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// EntryCreatedRS is returned synchronously for an accepted item start.
type EntryCreatedRS struct {
	ID int64 `json:"id"`
}

// OperationCompletionRS acknowledges an accepted asynchronous operation.
type OperationCompletionRS struct {
	Message string `json:"message"`
}

// SaveLogRQ attaches a log entry to a test item.
type SaveLogRQ struct {
	ItemID   int64     `json:"itemId"`
	LaunchID int64     `json:"launchId"`
	Time     time.Time `json:"time"`
	Level    string    `json:"level,omitempty"`
	Message  string    `json:"message"`
}
