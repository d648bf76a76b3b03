package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

type fakeStore struct {
	samples []domain.Sample // newest first
	err     error
	lastN   int
}

func (f *fakeStore) ListRecent(ctx context.Context, n int) ([]domain.Sample, error) {
	f.lastN = n
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.samples) {
		n = len(f.samples)
	}
	return f.samples[:n], nil
}

func (f *fakeStore) Counts(ctx context.Context) (int, int, error) {
	unsynced := 0
	for _, s := range f.samples {
		if !s.Synced {
			unsynced++
		}
	}
	return len(f.samples), unsynced, f.err
}

func (f *fakeStore) DeviceID(ctx context.Context) (string, error) { return "dev-1", nil }

type fakeStatus struct{ last *domain.CycleReport }

func (f fakeStatus) Load(ctx context.Context) (*domain.CycleReport, error) { return f.last, nil }
func (f fakeStatus) Save(ctx context.Context, r domain.CycleReport) error  { return nil }

func newTestServer(store *fakeStore, status ports.StatusRepository) (*Server, *Hub) {
	hub := NewHub(mockLogger{})
	return NewServer(store, store, status, hub, mockLogger{}), hub
}

func TestServer_Samples(t *testing.T) {
	store := &fakeStore{samples: []domain.Sample{
		{ID: 3, Latitude: 1, Longitude: 2, CapturedAt: 300},
		{ID: 2, Latitude: 1, Longitude: 2, CapturedAt: 200, Synced: true},
		{ID: 1, Latitude: 1, Longitude: 2, CapturedAt: 100, Synced: true},
	}}
	srv, _ := newTestServer(store, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/samples?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []domain.Sample
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Errorf("samples = %+v, want ids [3 2]", got)
	}
	if !strings.Contains(rec.Body.String(), `"captured_at":300`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServer_SamplesDefaultAndBadLimit(t *testing.T) {
	store := &fakeStore{}
	srv, _ := newTestServer(store, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/samples", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty store: code=%d body=%q", rec.Code, rec.Body.String())
	}
	if store.lastN != domain.DefaultRecentLimit {
		t.Errorf("default limit = %d, want %d", store.lastN, domain.DefaultRecentLimit)
	}

	for _, q := range []string{"0", "-1", "abc"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/samples?limit="+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestServer_SamplesStoreError(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{err: errors.New("locked")}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/samples", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServer_ReadOnly(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/samples", strings.NewReader("{}")))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestServer_Status(t *testing.T) {
	store := &fakeStore{samples: []domain.Sample{{ID: 2}, {ID: 1, Synced: true}}}
	last := &domain.CycleReport{ID: "c-9", Outcome: domain.OutcomeRetry}
	srv, _ := newTestServer(store, fakeStatus{last: last})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DeviceID != "dev-1" || got.Total != 2 || got.Unsynced != 1 {
		t.Errorf("status = %+v", got)
	}
	if got.LastCycle == nil || got.LastCycle.ID != "c-9" || got.LastCycle.Outcome != domain.OutcomeRetry {
		t.Errorf("last cycle = %+v", got.LastCycle)
	}
}

func TestHub_StreamsCycleReports(t *testing.T) {
	srv, hub := newTestServer(&fakeStore{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.OnCycleComplete(domain.CycleReport{ID: "c-1", Outcome: domain.OutcomeSuccess, Uploaded: 3})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.CycleReport
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != "c-1" || got.Outcome != domain.OutcomeSuccess || got.Uploaded != 3 {
		t.Errorf("report = %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 0 {
		t.Errorf("clients = %d after disconnect, want 0", hub.Clients())
	}
}
