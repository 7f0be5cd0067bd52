package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// Columns rewritten when a launch or item finishes. Statistics are only ever
// changed through IncrementStatistics.
var finishColumns = []string{"status", "end_time", "description", "attributes"}

// --- Launches ---

// CreateLaunch inserts launch unless a row with a conflicting key exists. It
// reports whether a row was inserted.
func (s *store) CreateLaunch(
	ctx context.Context, launch *Launch,
) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(launch)
	if result.Error != nil {
		return false, fmt.Errorf("creating launch %d: %w", launch.ID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (s *store) GetLaunch(ctx context.Context, id int64) (*Launch, error) {
	var launch Launch
	if err := s.db.WithContext(ctx).First(&launch, id).Error; err != nil {
		return nil, notFound(err, "getting launch %d", id)
	}

	return &launch, nil
}

func (s *store) UpdateLaunch(ctx context.Context, launch *Launch) error {
	if err := s.db.WithContext(ctx).
		Model(launch).
		Select(finishColumns).
		Updates(launch).Error; err != nil {
		return fmt.Errorf("updating launch %d: %w", launch.ID, err)
	}

	return nil
}

// --- Test items ---

// CreateItem inserts item unless it already exists. It reports whether a row
// was inserted.
func (s *store) CreateItem(
	ctx context.Context, item *TestItem,
) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	if result.Error != nil {
		return false, fmt.Errorf("creating item %d: %w", item.ID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (s *store) GetItem(ctx context.Context, id int64) (*TestItem, error) {
	var item TestItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err, "getting item %d", id)
	}

	return &item, nil
}

func (s *store) GetItems(
	ctx context.Context, ids []int64,
) ([]TestItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var items []TestItem
	if err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting items: %w", err)
	}

	return items, nil
}

func (s *store) UpdateItem(ctx context.Context, item *TestItem) error {
	if err := s.db.WithContext(ctx).
		Model(item).
		Select(finishColumns).
		Updates(item).Error; err != nil {
		return fmt.Errorf("updating item %d: %w", item.ID, err)
	}

	return nil
}

func (s *store) MarkHasChildren(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).
		Model(&TestItem{}).
		Where("id = ?", id).
		Update("has_children", true).Error; err != nil {
		return fmt.Errorf("marking item %d as parent: %w", id, err)
	}

	return nil
}

func (s *store) ListItems(
	ctx context.Context, launchID int64,
) ([]TestItem, error) {
	var items []TestItem
	if err := s.db.WithContext(ctx).
		Where("launch_id = ?", launchID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing items of launch %d: %w", launchID, err)
	}

	return items, nil
}

// ListInProgressItems returns the IN_PROGRESS items of a launch. A non-empty
// underPath restricts the result to descendants of the item at that path.
func (s *store) ListInProgressItems(
	ctx context.Context, launchID int64, underPath string,
) ([]TestItem, error) {
	q := s.db.WithContext(ctx).
		Where("launch_id = ? AND status = ?", launchID, reporting.StatusInProgress)

	if underPath != "" {
		q = q.Where("path LIKE ?", underPath+".%")
	}

	var items []TestItem
	if err := q.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing in-progress items of launch %d: %w", launchID, err)
	}

	return items, nil
}

// LatestItemEnd returns the latest end time across a launch's items, or nil
// if none has finished.
func (s *store) LatestItemEnd(
	ctx context.Context, launchID int64,
) (*time.Time, error) {
	var item TestItem

	err := s.db.WithContext(ctx).
		Where("launch_id = ? AND end_time IS NOT NULL", launchID).
		Order("end_time DESC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("getting latest end of launch %d: %w", launchID, err)
	}

	return item.EndTime, nil
}

// IncrementStatistics counts one finished leaf with status st on every item in
// itemIDs and on the launch.
func (s *store) IncrementStatistics(
	ctx context.Context,
	launchID int64,
	itemIDs []int64,
	st reporting.Status,
) error {
	if !st.IsTerminal() {
		return fmt.Errorf("cannot count non-terminal status %s", st)
	}

	counter := "stat_" + st.CounterName()

	return s.updateStatistics(ctx, launchID, itemIDs, map[string]any{
		"stat_total": gorm.Expr("stat_total + ?", 1),
		counter:      gorm.Expr(counter+" + ?", 1),
	})
}

// MoveStatistics recounts one finished leaf from status from to status to on
// every item in itemIDs and on the launch. Totals do not change.
func (s *store) MoveStatistics(
	ctx context.Context,
	launchID int64,
	itemIDs []int64,
	from, to reporting.Status,
) error {
	if !from.IsTerminal() || !to.IsTerminal() {
		return fmt.Errorf("cannot move statistics from %s to %s", from, to)
	}

	if from == to {
		return nil
	}

	fromCounter := "stat_" + from.CounterName()
	toCounter := "stat_" + to.CounterName()

	return s.updateStatistics(ctx, launchID, itemIDs, map[string]any{
		fromCounter: gorm.Expr(fromCounter+" - ?", 1),
		toCounter:   gorm.Expr(toCounter+" + ?", 1),
	})
}

func (s *store) updateStatistics(
	ctx context.Context,
	launchID int64,
	itemIDs []int64,
	updates map[string]any,
) error {
	if len(itemIDs) > 0 {
		if err := s.db.WithContext(ctx).
			Model(&TestItem{}).
			Where("id IN ?", itemIDs).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("updating item statistics: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).
		Model(&Launch{}).
		Where("id = ?", launchID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("updating launch statistics: %w", err)
	}

	return nil
}

// --- Logs ---

func (s *store) SaveLog(ctx context.Context, entry *LogEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("saving log for item %d: %w", entry.ItemID, err)
	}

	return nil
}

func (s *store) HasLogs(ctx context.Context, itemID int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&LogEntry{}).
		Where("item_id = ?", itemID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking logs of item %d: %w", itemID, err)
	}

	return count > 0, nil
}
