package store

import (
	"time"

	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// User source constants.
const (
	SourceConfig = "config"
)

// Project is a reporting project. Name is normalized (trimmed, lower-cased).
type Project struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a reporting user.
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `json:"-"`
	APIKeyHash   string    `gorm:"index" json:"-"`
	Role         string    `gorm:"not null" json:"role"`
	Source       string    `gorm:"not null" json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProjectMember assigns a user to a project with a project role.
type ProjectMember struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	UserID    int64  `gorm:"uniqueIndex:idx_member_user_project;not null" json:"user_id"`
	ProjectID int64  `gorm:"uniqueIndex:idx_member_user_project;not null" json:"project_id"`
	Role      string `gorm:"not null" json:"role"`
}

// Launch is a materialized launch. IDs are pre-allocated, never generated by
// the database.
type Launch struct {
	ID          int64                 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UUID        string                `gorm:"uniqueIndex;not null" json:"uuid"`
	ProjectID   int64                 `gorm:"index;not null" json:"project_id"`
	OwnerID     int64                 `gorm:"not null" json:"owner_id"`
	Owner       string                `gorm:"not null" json:"owner"`
	Name        string                `gorm:"not null" json:"name"`
	Description string                `json:"description,omitempty"`
	Mode        reporting.Mode        `gorm:"not null" json:"mode"`
	Status      reporting.Status      `gorm:"index;not null" json:"status"`
	StartTime   time.Time             `gorm:"not null" json:"start_time"`
	EndTime     *time.Time            `json:"end_time,omitempty"`
	Tags        []string              `gorm:"serializer:json" json:"tags,omitempty"`
	Attributes  []reporting.Attribute `gorm:"serializer:json" json:"attributes,omitempty"`
	Statistics  reporting.Statistics  `gorm:"embedded;embeddedPrefix:stat_" json:"statistics"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TestItem is a materialized test item.
type TestItem struct {
	ID          int64                 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LaunchID    int64                 `gorm:"index;not null" json:"launch_id"`
	ParentID    *int64                `gorm:"index" json:"parent_id,omitempty"`
	Path        string                `gorm:"index;not null" json:"path"`
	Name        string                `gorm:"not null" json:"name"`
	Description string                `json:"description,omitempty"`
	Type        reporting.ItemType    `gorm:"not null" json:"type"`
	Status      reporting.Status      `gorm:"index;not null" json:"status"`
	StartTime   time.Time             `gorm:"not null" json:"start_time"`
	EndTime     *time.Time            `json:"end_time,omitempty"`
	UniqueID    string                `gorm:"index" json:"unique_id"`
	CodeRef     string                `json:"code_ref,omitempty"`
	Parameters  []reporting.Parameter `gorm:"serializer:json" json:"parameters,omitempty"`
	Attributes  []reporting.Attribute `gorm:"serializer:json" json:"attributes,omitempty"`
	HasChildren bool                  `gorm:"not null;default:false" json:"has_children"`
	Statistics  reporting.Statistics  `gorm:"embedded;embeddedPrefix:stat_" json:"statistics"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// IsLeaf reports whether the item counts itself in statistics.
func (t *TestItem) IsLeaf() bool {
	return !t.HasChildren
}

// SystemAttribute returns the value of the named system attribute.
func (t *TestItem) SystemAttribute(key string) (string, bool) {
	for _, a := range t.Attributes {
		if a.System && a.Key == key {
			return a.Value, true
		}
	}

	return "", false
}

// LogEntry is a log line attached to a test item.
type LogEntry struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ItemID    int64     `gorm:"index;not null" json:"item_id"`
	LaunchID  int64     `gorm:"index;not null" json:"launch_id"`
	Time      time.Time `gorm:"not null" json:"time"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sequence is a durable identifier counter. Value is the last issued id.
type Sequence struct {
	Name  string `gorm:"primaryKey"`
	Value int64  `gorm:"not null"`
}
