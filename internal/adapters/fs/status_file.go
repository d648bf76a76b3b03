package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

const statusFileName = "status.json"

// StatusFileRepository implements ports.StatusRepository using a JSON file.
// It also observes engine cycles so the file always holds the latest report.
type StatusFileRepository struct {
	dir    string
	logger ports.Logger
}

// NewStatusFileRepository creates a repository writing into dir.
func NewStatusFileRepository(dir string, logger ports.Logger) *StatusFileRepository {
	return &StatusFileRepository{dir: dir, logger: logger}
}

// Load retrieves the last saved report.
// Returns nil and no error if no status file exists.
func (r *StatusFileRepository) Load(ctx context.Context) (*domain.CycleReport, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var report domain.CycleReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Save persists the report atomically (temp file, then rename).
func (r *StatusFileRepository) Save(ctx context.Context, report domain.CycleReport) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.Path())
}

// OnCycleComplete saves every report. Failures are logged, never surfaced;
// the status file is informational.
func (r *StatusFileRepository) OnCycleComplete(report domain.CycleReport) {
	if err := r.Save(context.Background(), report); err != nil {
		r.logger.Warn("failed to write status file",
			ports.String("path", r.Path()),
			ports.Err(err))
	}
}

// Path returns the full path to the status file.
func (r *StatusFileRepository) Path() string {
	return filepath.Join(r.dir, statusFileName)
}
