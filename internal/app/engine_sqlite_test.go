package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/trackship/internal/adapters/sqlite"
	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

// cancelingUploader accepts every sample but ends the cycle context on the
// first one, as an expiring budget would.
type cancelingUploader struct {
	cancel context.CancelFunc
	fakeUploader
}

func (u *cancelingUploader) Upload(ctx context.Context, smp domain.Sample) error {
	u.cancel()
	return u.fakeUploader.Upload(ctx, smp)
}

// cancelingGate reports the network as up after ending the cycle context.
type cancelingGate struct{ cancel context.CancelFunc }

func (g cancelingGate) HasInternet(ctx context.Context) bool {
	g.cancel()
	return true
}

func openSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "samples.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unsyncedIDs(t *testing.T, s *sqlite.Store) []int64 {
	t.Helper()
	backlog, err := s.ListUnsynced(context.Background())
	if err != nil {
		t.Fatalf("ListUnsynced() error = %v", err)
	}
	ids := make([]int64, 0, len(backlog))
	for _, smp := range backlog {
		ids = append(ids, smp.ID)
	}
	return ids
}

func newSQLiteEngine(store *sqlite.Store, gate ports.ConnectivityGate, up ports.Uploader) *Engine {
	return NewEngine(EngineConfig{PositionTimeout: time.Second}, &fakeSource{pos: here()}, store, gate, up, mockLogger{})
}

func TestEngineSQLite_BudgetExpiresAfterAccept(t *testing.T) {
	store := openSQLite(t)
	for i := 0; i < 2; i++ {
		if _, err := store.Insert(context.Background(), 1, 1, int64(i)); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &cancelingUploader{cancel: cancel}
	r := newSQLiteEngine(store, fakeGate{}, up).Cycle(ctx)

	if r.Outcome != domain.OutcomeRetry {
		t.Fatalf("outcome = %v (%s), want retry", r.Outcome, r.Err)
	}
	if strings.Contains(r.Err, domain.ErrStorageFault.Error()) {
		t.Errorf("err = %q, want no storage fault", r.Err)
	}
	if r.Uploaded != 1 {
		t.Errorf("uploaded = %d, want 1", r.Uploaded)
	}
	// The accepted sample is acknowledged, the rest waits for the next cycle.
	if got := unsyncedIDs(t, store); !equalIDs(got, []int64{2, 3}) {
		t.Errorf("unsynced = %v, want [2 3]", got)
	}
}

func TestEngineSQLite_BudgetExpiresBeforeDrain(t *testing.T) {
	store := openSQLite(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &fakeUploader{}
	r := newSQLiteEngine(store, cancelingGate{cancel: cancel}, up).Cycle(ctx)

	if r.Outcome != domain.OutcomeRetry {
		t.Fatalf("outcome = %v (%s), want retry", r.Outcome, r.Err)
	}
	if len(up.attempts()) != 0 {
		t.Errorf("attempts = %v, want none", up.attempts())
	}
	if got := unsyncedIDs(t, store); !equalIDs(got, []int64{1}) {
		t.Errorf("unsynced = %v, want [1]", got)
	}
}

func TestEngineSQLite_CancelledBeforeInsert(t *testing.T) {
	store := openSQLite(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newSQLiteEngine(store, fakeGate{}, &fakeUploader{}).Cycle(ctx)

	if r.Outcome != domain.OutcomeRetry {
		t.Fatalf("outcome = %v (%s), want retry", r.Outcome, r.Err)
	}
	if got := unsyncedIDs(t, store); len(got) != 0 {
		t.Errorf("unsynced = %v, want empty", got)
	}
}
