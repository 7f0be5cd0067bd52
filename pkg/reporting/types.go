package reporting

import "strings"

// Status is the execution status of a launch or test item.
type Status string

// Execution statuses.
const (
	StatusInProgress  Status = "IN_PROGRESS"
	StatusPassed      Status = "PASSED"
	StatusFailed      Status = "FAILED"
	StatusSkipped     Status = "SKIPPED"
	StatusInterrupted Status = "INTERRUPTED"
)

// ParseStatus returns the status named by s (case-insensitive). The empty
// string yields ("", true) so that optional statuses can be parsed uniformly.
func ParseStatus(s string) (Status, bool) {
	if strings.TrimSpace(s) == "" {
		return "", true
	}

	st := Status(strings.ToUpper(strings.TrimSpace(s)))

	switch st {
	case StatusInProgress, StatusPassed, StatusFailed,
		StatusSkipped, StatusInterrupted:
		return st, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the status ends an execution.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusInterrupted:
		return true
	default:
		return false
	}
}

// CounterName returns the lower-case name used for statistics counters and
// the initialStatus system attribute.
func (s Status) CounterName() string {
	return strings.ToLower(string(s))
}

// Mode is the launch mode.
type Mode string

// Launch modes.
const (
	ModeDefault Mode = "DEFAULT"
	ModeDebug   Mode = "DEBUG"
)

// ItemType is the kind of a test item node.
type ItemType string

// Test item types.
const (
	ItemTypeSuite        ItemType = "SUITE"
	ItemTypeStory        ItemType = "STORY"
	ItemTypeTest         ItemType = "TEST"
	ItemTypeScenario     ItemType = "SCENARIO"
	ItemTypeStep         ItemType = "STEP"
	ItemTypeBeforeClass  ItemType = "BEFORE_CLASS"
	ItemTypeBeforeGroups ItemType = "BEFORE_GROUPS"
	ItemTypeBeforeMethod ItemType = "BEFORE_METHOD"
	ItemTypeBeforeSuite  ItemType = "BEFORE_SUITE"
	ItemTypeBeforeTest   ItemType = "BEFORE_TEST"
	ItemTypeAfterClass   ItemType = "AFTER_CLASS"
	ItemTypeAfterGroups  ItemType = "AFTER_GROUPS"
	ItemTypeAfterMethod  ItemType = "AFTER_METHOD"
	ItemTypeAfterSuite   ItemType = "AFTER_SUITE"
	ItemTypeAfterTest    ItemType = "AFTER_TEST"
)

var itemTypes = map[ItemType]struct{}{
	ItemTypeSuite: {}, ItemTypeStory: {}, ItemTypeTest: {},
	ItemTypeScenario: {}, ItemTypeStep: {},
	ItemTypeBeforeClass: {}, ItemTypeBeforeGroups: {},
	ItemTypeBeforeMethod: {}, ItemTypeBeforeSuite: {},
	ItemTypeBeforeTest: {}, ItemTypeAfterClass: {},
	ItemTypeAfterGroups: {}, ItemTypeAfterMethod: {},
	ItemTypeAfterSuite: {}, ItemTypeAfterTest: {},
}

// ParseItemType returns the item type named by s (case-insensitive).
func ParseItemType(s string) (ItemType, bool) {
	t := ItemType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := itemTypes[t]

	return t, ok
}

// IsStepLevel reports whether the type sits at the leaf (step) level of the
// execution tree. Before/after hooks are step-level.
func (t ItemType) IsStepLevel() bool {
	switch t {
	case ItemTypeSuite, ItemTypeStory, ItemTypeTest, ItemTypeScenario:
		return false
	default:
		return true
	}
}

// NormalizeProjectName trims and lower-cases a project name.
func NormalizeProjectName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
