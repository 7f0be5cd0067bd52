package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Sequences ---

// NextSequenceValue increments the named sequence and returns the new value.
// A sequence that does not exist yet is created so that its first value is
// start.
func (s *store) NextSequenceValue(
	ctx context.Context, name string, start int64,
) (int64, error) {
	var value int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq := Sequence{Name: name, Value: start - 1}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&seq).Error; err != nil {
			return fmt.Errorf("creating sequence: %w", err)
		}

		if err := tx.Model(&Sequence{}).
			Where("name = ?", name).
			Update("value", gorm.Expr("value + ?", 1)).Error; err != nil {
			return fmt.Errorf("incrementing sequence: %w", err)
		}

		if err := tx.Where("name = ?", name).First(&seq).Error; err != nil {
			return fmt.Errorf("reading sequence: %w", err)
		}

		value = seq.Value

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("next value of sequence %q: %w", name, err)
	}

	return value, nil
}
