package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mindcare/platform/services/availability-service/internal/availability"
	"github.com/mindcare/platform/services/availability-service/internal/schedule"
	"github.com/mindcare/platform/services/availability-service/internal/storage"
)

type fakeStore struct {
	slots        []schedule.Slot
	creates      int
	failCreateAt int
}

func (f *fakeStore) ListSlots(context.Context, string) ([]schedule.Slot, error) {
	return append([]schedule.Slot(nil), f.slots...), nil
}

func (f *fakeStore) CreateSlot(_ context.Context, _ string, in schedule.SlotInput) (schedule.Slot, error) {
	f.creates++
	if f.creates == f.failCreateAt {
		return schedule.Slot{}, errors.New("insert failed")
	}
	s := schedule.Slot{ID: fmt.Sprintf("s-%d", len(f.slots)+1), Day: in.Day, StartTime: in.StartTime, EndTime: in.EndTime, Timezone: in.Timezone, IsAvailable: true, Notes: in.Notes}
	f.slots = append(f.slots, s)
	return s, nil
}

func (f *fakeStore) CreateSlots(ctx context.Context, id string, inputs []schedule.SlotInput) ([]schedule.Slot, error) {
	var out []schedule.Slot
	for _, in := range inputs {
		s, err := f.CreateSlot(ctx, id, in)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) UpdateSlot(_ context.Context, _ string, id string, patch schedule.SlotPatch) (schedule.Slot, error) {
	for i, s := range f.slots {
		if s.ID == id {
			f.slots[i] = patch.Apply(s)
			return f.slots[i], nil
		}
	}
	return schedule.Slot{}, storage.ErrNotFound
}

func (f *fakeStore) DeleteSlot(_ context.Context, _ string, id string) error {
	for i, s := range f.slots {
		if s.ID == id {
			f.slots = append(f.slots[:i], f.slots[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) RecordCopy(context.Context, string, schedule.CopyResult, bool) error {
	return nil
}

func newTestServer(store *fakeStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	New(availability.New(store, nil, logger), logger).Register(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(TherapistHeader, "t-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMissingTherapistHeader(t *testing.T) {
	h := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAndList(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(store)

	rec := do(t, h, http.MethodPost, "/api/v1/availability", `{"day_of_week":"MONDAY","start_time":"09:00","end_time":"10:00","timezone":"UTC"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/v1/availability", `{"day_of_week":"MONDAY","start_time":"09:30","end_time":"10:30","timezone":"UTC"}`)
	var created availability.CreateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if !created.HasConflict {
		t.Fatalf("expected has_conflict, got %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/availability", "")
	var listed struct {
		Slots []schedule.Slot `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil || len(listed.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %s (%v)", rec.Body.String(), err)
	}
}

func TestCreateValidation(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(store)

	rec := do(t, h, http.MethodPost, "/api/v1/availability", `{"day_of_week":"MONDAY","start_time":"10:00","end_time":"09:00","timezone":"UTC"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/availability", `{"day":"MONDAY"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	if store.creates != 0 {
		t.Fatalf("expected no creates, got %d", store.creates)
	}
}

func TestUpdateDeleteSlot(t *testing.T) {
	store := &fakeStore{slots: []schedule.Slot{{ID: "s-1", Day: schedule.Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "UTC", IsAvailable: true}}}
	h := newTestServer(store)

	rec := do(t, h, http.MethodPatch, "/api/v1/availability/slot?id=s-1", `{"is_available":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.slots[0].IsAvailable {
		t.Fatal("expected slot to be marked unavailable")
	}

	rec = do(t, h, http.MethodDelete, "/api/v1/availability/slot?id=missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/api/v1/availability/slot?id=s-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/v1/availability/slot?id=s-1", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCopyStatuses(t *testing.T) {
	monday := []schedule.Slot{
		{ID: "a", Day: schedule.Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "UTC"},
		{ID: "b", Day: schedule.Monday, StartTime: "13:00", EndTime: "14:00", Timezone: "UTC"},
	}

	store := &fakeStore{slots: append([]schedule.Slot(nil), monday...)}
	rec := do(t, newTestServer(store), http.MethodPost, "/api/v1/availability/copy", `{"source_day":"MONDAY","target_days":["WEDNESDAY"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ok struct {
		Copied int `json:"copied"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &ok)
	if ok.Copied != 2 {
		t.Fatalf("expected 2 copied, got %d", ok.Copied)
	}

	rec = do(t, newTestServer(&fakeStore{}), http.MethodPost, "/api/v1/availability/copy", `{"source_day":"FRIDAY","target_days":["MONDAY"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty source, got %d", rec.Code)
	}

	rec = do(t, newTestServer(&fakeStore{}), http.MethodPost, "/api/v1/availability/copy", `{"source_day":"MONDAY","target_days":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without targets, got %d", rec.Code)
	}

	failing := &fakeStore{slots: append([]schedule.Slot(nil), monday...), failCreateAt: 2}
	rec = do(t, newTestServer(failing), http.MethodPost, "/api/v1/availability/copy", `{"source_day":"MONDAY","target_days":["WEDNESDAY"]}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for partial failure, got %d", rec.Code)
	}
	var partial struct {
		Error        string `json:"error"`
		Copied       int    `json:"copied"`
		FailedTarget string `json:"failed_target"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &partial); err != nil {
		t.Fatalf("decode partial response: %v", err)
	}
	if partial.Copied != 1 || partial.FailedTarget != "WEDNESDAY" || strings.Contains(partial.Error, "insert failed") {
		t.Fatalf("unexpected partial response %+v", partial)
	}
	if len(failing.slots) != 3 {
		t.Fatalf("expected first copy to remain, store has %d slots", len(failing.slots))
	}
}

func TestWeekAndConflicts(t *testing.T) {
	store := &fakeStore{slots: []schedule.Slot{
		{ID: "a", Day: schedule.Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "UTC"},
		{ID: "b", Day: schedule.Monday, StartTime: "09:30", EndTime: "10:30", Timezone: "UTC"},
	}}
	h := newTestServer(store)

	rec := do(t, h, http.MethodGet, "/api/v1/availability/week?view=list&show_conflicts=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view schedule.WeekView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode week: %v", err)
	}
	if view.Options.Mode != schedule.ViewList || view.Options.ShowConflicts || view.Days[0].Slots[0].Conflict {
		t.Fatalf("unexpected week view %s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/availability/week?view=month", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown view, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/availability/conflicts", "")
	var report availability.ConflictReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil || report.Count != 1 {
		t.Fatalf("expected one conflict, got %s (%v)", rec.Body.String(), err)
	}
}

func TestOptions(t *testing.T) {
	rec := do(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/v1/availability/options", "")
	var body struct {
		Days  []string `json:"days"`
		Times []string `json:"times"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode options: %v", err)
	}
	if len(body.Days) != 7 || body.Days[0] != "MONDAY" || len(body.Times) != 48 {
		t.Fatalf("unexpected options %+v", body)
	}
}
