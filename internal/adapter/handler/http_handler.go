package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/core/service"
)

type HTTPHandler struct {
	ledger    *service.LedgerService
	directory *service.DirectoryService
	logger    *zap.Logger
}

func NewHTTPHandler(ledger *service.LedgerService, directory *service.DirectoryService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{ledger: ledger, directory: directory, logger: logger}
}

// Routes mounts every endpoint. gatherer may be nil to skip /metrics.
func (h *HTTPHandler) Routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/health", h.HealthCheck)
	r.Route("/stock", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Get("/{id}", h.GetItem)
		r.Post("/assign", h.Assign)
		r.Post("/return", h.Return)
	})
	r.Get("/logs/", h.ListLogs)
	r.Get("/users", h.ListUsers)
	r.Get("/departments", h.ListDepartments)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *HTTPHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, TransitionReply{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if !req.valid() {
		writeJSON(w, http.StatusBadRequest, TransitionReply{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	result, err := h.ledger.Assign(r.Context(), req.toRequest())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item := newItemView(result.Item)
	writeJSON(w, http.StatusOK, TransitionReply{
		Success: true,
		Message: "Item assigned",
		Item:    &item,
		LogID:   result.Entry.ID,
	})
}

func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req ReturnMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, TransitionReply{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if !req.valid() {
		writeJSON(w, http.StatusBadRequest, TransitionReply{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	result, err := h.ledger.Return(r.Context(), req.toRequest())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item := newItemView(result.Item)
	writeJSON(w, http.StatusOK, TransitionReply{
		Success: true,
		Message: "Item returned",
		Item:    &item,
		LogID:   result.Entry.ID,
	})
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	var filter domain.ItemFilter
	if v := r.URL.Query().Get("department_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, TransitionReply{Message: "invalid department_id"})
			return
		}
		filter.DepartmentID = id
	}

	items, err := h.ledger.ListItems(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, newItemView(item))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, TransitionReply{Message: "invalid item id"})
		return
	}

	item, err := h.ledger.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(item))
}

func (h *HTTPHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LogFilter{Action: domain.Action(q.Get("action"))}
	if filter.Action != "" && !filter.Action.Valid() {
		writeJSON(w, http.StatusBadRequest, TransitionReply{Message: "invalid action"})
		return
	}
	if v := q.Get("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, TransitionReply{Message: "invalid item_id"})
			return
		}
		filter.ItemID = id
	}

	entries, err := h.ledger.ListLogs(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]LogView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newLogView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, UserView{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			DepartmentID: u.DepartmentID,
			FullName:     u.FullName,
			Role:         u.Role,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.directory.ListDepartments(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]DepartmentView, 0, len(departments))
	for _, d := range departments {
		views = append(views, DepartmentView{ID: d.ID, Name: d.Name})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		message = "Item not found"
	case errors.Is(err, service.ErrOutOfStock):
		status = http.StatusBadRequest
		message = "Item out of stock"
	case errors.Is(err, service.ErrDuplicateRequest):
		status = http.StatusConflict
		message = "duplicate request"
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
		message = "invalid request"
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	writeJSON(w, status, TransitionReply{
		Success: false,
		Message: message,
	})
}

func (h *HTTPHandler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
