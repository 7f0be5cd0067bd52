package reporting

// Statistics counts finished leaf items in a subtree. A leaf counts itself.
type Statistics struct {
	Total       int64 `json:"total" gorm:"not null;default:0"`
	Passed      int64 `json:"passed" gorm:"not null;default:0"`
	Failed      int64 `json:"failed" gorm:"not null;default:0"`
	Skipped     int64 `json:"skipped" gorm:"not null;default:0"`
	Interrupted int64 `json:"interrupted" gorm:"not null;default:0"`
}

// Count returns the counter for a terminal status.
func (s Statistics) Count(st Status) int64 {
	switch st {
	case StatusPassed:
		return s.Passed
	case StatusFailed:
		return s.Failed
	case StatusSkipped:
		return s.Skipped
	case StatusInterrupted:
		return s.Interrupted
	default:
		return 0
	}
}

// Record adds one finished leaf with status st.
func (s *Statistics) Record(st Status) {
	if !st.IsTerminal() {
		return
	}

	s.Total++

	switch st {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusInterrupted:
		s.Interrupted++
	}
}
