package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mindcare/platform/libs/httpx"
	"github.com/mindcare/platform/services/availability-service/internal/availability"
	"github.com/mindcare/platform/services/availability-service/internal/schedule"
	"github.com/mindcare/platform/services/availability-service/internal/storage"
)

const TherapistHeader = "X-Therapist-Id"

type Service interface {
	List(ctx context.Context, therapistID string) ([]schedule.Slot, error)
	Create(ctx context.Context, therapistID string, in schedule.SlotInput) (availability.CreateResult, error)
	Update(ctx context.Context, therapistID, id string, patch schedule.SlotPatch) (schedule.Slot, error)
	Delete(ctx context.Context, therapistID, id string) error
	Conflicts(ctx context.Context, therapistID string) (availability.ConflictReport, error)
	Week(ctx context.Context, therapistID string, opts schedule.ViewOptions) (schedule.WeekView, error)
	CopyDay(ctx context.Context, therapistID string, req availability.CopyRequest) (schedule.CopyResult, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability", h.Collection)
	mux.HandleFunc("/api/v1/availability/slot", h.Slot)
	mux.HandleFunc("/api/v1/availability/week", h.Week)
	mux.HandleFunc("/api/v1/availability/conflicts", h.Conflicts)
	mux.HandleFunc("/api/v1/availability/copy", h.Copy)
	mux.HandleFunc("/api/v1/availability/options", h.Options)
}

func therapistIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TherapistHeader))
}

func (h *Handler) requireTherapist(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := therapistIDFromHeader(r)
	if id == "" {
		http.Error(w, "missing "+TherapistHeader, http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// Collection serves GET (list) and POST (create) on the therapist's slots.
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := h.requireTherapist(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		slots, err := h.svc.List(r.Context(), therapistID)
		if err != nil {
			h.fail(w, r, err, "failed to load availability")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"slots": slots})
	case http.MethodPost:
		var in schedule.SlotInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		res, err := h.svc.Create(r.Context(), therapistID, in)
		if err != nil {
			h.fail(w, r, err, "failed to add availability")
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, res)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Slot serves PATCH and DELETE on /slot?id=.
func (h *Handler) Slot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	therapistID, ok := h.requireTherapist(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.svc.Delete(r.Context(), therapistID, id); err != nil {
			h.fail(w, r, err, "failed to delete availability")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var patch schedule.SlotPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	slot, err := h.svc.Update(r.Context(), therapistID, id, patch)
	if err != nil {
		h.fail(w, r, err, "failed to update availability")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slot)
}

func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	therapistID, ok := h.requireTherapist(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	mode, err := schedule.ParseViewMode(q.Get("view"))
	if err != nil {
		http.Error(w, "invalid view", http.StatusBadRequest)
		return
	}
	opts := schedule.ViewOptions{Mode: mode, ShowConflicts: true}
	if raw := strings.TrimSpace(q.Get("show_conflicts")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid show_conflicts", http.StatusBadRequest)
			return
		}
		opts.ShowConflicts = v
	}

	view, err := h.svc.Week(r.Context(), therapistID, opts)
	if err != nil {
		h.fail(w, r, err, "failed to load availability")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	therapistID, ok := h.requireTherapist(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Conflicts(r.Context(), therapistID)
	if err != nil {
		h.fail(w, r, err, "failed to load availability")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) Copy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	therapistID, ok := h.requireTherapist(w, r)
	if !ok {
		return
	}

	var req availability.CopyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CopyDay(r.Context(), therapistID, req)
	var copyErr *schedule.CopyError
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"copied":      res.Count(),
			"source_day":  res.Source,
			"target_days": res.Targets,
			"slots":       res.Created,
		})
	case errors.As(err, &copyErr):
		h.logger.Warn("copy availability partially failed", "therapist_id", therapistID, "copied", copyErr.Created, "failed_target", copyErr.Target, "err", copyErr.Err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"error":         "failed to copy availability",
			"copied":        copyErr.Created,
			"failed_target": copyErr.Target,
		})
	default:
		h.fail(w, r, err, "failed to copy availability")
	}
}

// Options lists the values a client may offer for day and time pickers.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"days":  schedule.Days,
		"times": schedule.HalfHourTimes(),
	})
}

// fail maps service errors to a status and a user-facing message. Internal details are logged only.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, schedule.ErrEmptySourceDay):
		http.Error(w, "no availability on source day", http.StatusUnprocessableEntity)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "availability not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, msg, http.StatusGatewayTimeout)
	default:
		h.logger.Error(msg, "therapist_id", therapistIDFromHeader(r), "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
