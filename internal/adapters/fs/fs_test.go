package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

func TestStatusFileRepository_LoadMissing(t *testing.T) {
	repo := NewStatusFileRepository(t.TempDir(), mockLogger{})

	report, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report != nil {
		t.Errorf("Load() = %+v, want nil", report)
	}
}

func TestStatusFileRepository_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	repo := NewStatusFileRepository(dir, mockLogger{})
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := domain.CycleReport{
		ID:         "c-1",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Outcome:    domain.OutcomeRetry,
		Stage:      domain.StageUploading,
		Captured:   &domain.Sample{ID: 7, Latitude: -33.9, Longitude: 151.2, CapturedAt: 1},
		Uploaded:   2,
		Remaining:  1,
		Err:        "collector returned 503",
	}
	repo.OnCycleComplete(in)

	out, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out == nil || out.ID != "c-1" || out.Outcome != domain.OutcomeRetry || out.Remaining != 1 {
		t.Fatalf("Load() = %+v", out)
	}
	if out.Captured == nil || out.Captured.Latitude != -33.9 {
		t.Errorf("captured = %+v", out.Captured)
	}
	if !out.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", out.StartedAt, started)
	}
	if _, err := os.Stat(repo.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestStatusFileRepository_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	repo := NewStatusFileRepository(dir, mockLogger{})
	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Load() of corrupt file returned nil error")
	}
}

func TestConfigWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("interval = \"15m\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	w := NewConfigWatcher(path, func(ctx context.Context) { reloads.Add(1) }, mockLogger{})
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond) // let the watcher register

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("interval = \"5m\"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := reloads.Load(); got != 1 {
		t.Errorf("reloads = %d, want 1", got)
	}
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "absent", "config.toml"), func(context.Context) {}, mockLogger{})

	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() on missing directory returned nil error")
	}
}
