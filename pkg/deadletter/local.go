package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Sink = (*localSink)(nil)

type localSink struct {
	log logrus.FieldLogger
	dir string
}

// NewLocalSink returns a sink writing one JSON file per record under dir.
func NewLocalSink(log logrus.FieldLogger, dir string) Sink {
	return &localSink{
		log: log.WithField("component", "deadletter-local"),
		dir: dir,
	}
}

func (s *localSink) Preflight(context.Context) error {
	//nolint:gosec // Directory must be readable by operators.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating dead letter dir %s: %w", s.dir, err)
	}

	return nil
}

func (s *localSink) Write(_ context.Context, rec Record) error {
	path := filepath.Join(s.dir, filepath.FromSlash(rec.Key()))

	//nolint:gosec // Directory must be readable by operators.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dead letter dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dead letter: %w", err)
	}

	//nolint:gosec // Records are operator-readable.
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dead letter %s: %w", path, err)
	}

	s.log.WithField("path", path).Debug("Wrote dead letter")

	return nil
}
