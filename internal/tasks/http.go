package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// response is the envelope every task endpoint answers with.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type patchStatusRequest struct {
	Status Optional[string] `json:"status"`
}

type handler struct {
	svc    *Service
	logger *slog.Logger
}

// RegisterRoutes mounts the task endpoints. Fixed segments are registered
// before /tasks/{id} so they are never read as ids.
func RegisterRoutes(r chi.Router, svc *Service, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, logger: logger}

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/status/{status}", h.listByStatus)
		r.Get("/tag/{tag}", h.listByTag)
		r.Get("/overdue", h.listOverdue)
		r.Get("/today", h.listDueToday)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/status", h.patchStatus)
		r.Delete("/{id}", h.delete)
	})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "Error reading tasks")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: tasks})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Error reading task")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: t})
}

func (h *handler) listByStatus(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListByStatus(r.Context(), Status(chi.URLParam(r, "status")))
	if err != nil {
		h.fail(w, r, err, "Error reading tasks")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: tasks})
}

func (h *handler) listByTag(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		h.fail(w, r, err, "Error reading tasks")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: tasks})
}

func (h *handler) listOverdue(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListOverdue(r.Context(), h.svc.Now())
	if err != nil {
		h.fail(w, r, err, "Error reading tasks")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: tasks})
}

func (h *handler) listDueToday(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListDueToday(r.Context(), h.svc.Now())
	if err != nil {
		h.fail(w, r, err, "Error reading tasks")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: tasks})
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var in TaskInput
	if err := decodeBody(w, r, &in); err != nil {
		badBody(w, err)
		return
	}

	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error creating task")
		return
	}
	writeJSON(w, http.StatusCreated, response{Success: true, Message: "Task created successfully", Data: t})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var in TaskInput
	if err := decodeBody(w, r, &in); err != nil {
		badBody(w, err)
		return
	}

	t, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err, "Error updating task")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Task updated successfully", Data: t})
}

func (h *handler) patchStatus(w http.ResponseWriter, r *http.Request) {
	var req patchStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	t, err := h.svc.PatchStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err, "Error updating task status")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Task status updated successfully", Data: t})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Error deleting task")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Task deleted successfully", Data: t})
}

// fail maps err onto 400, 404, 504 or 500. Internal failures carry the cause.
// Once the request context is done nothing is written, so the timeout
// middleware can answer 504.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	var inputErr *InputError
	switch {
	case r.Context().Err() != nil:
		h.logger.WarnContext(r.Context(), "task_operation_abandoned",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, response{Message: internalMsg, Error: err.Error()})
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, response{Message: inputErr.Message})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, response{Message: msgNotFound})
	default:
		h.logger.ErrorContext(r.Context(), "task_operation_failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, response{Message: internalMsg, Error: err.Error()})
	}
}

const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON value")

// decodeBody reads exactly one JSON value of at most maxBodyBytes. An empty
// body is treated as an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errTrailingData
	}
	return nil
}

func badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, response{Message: msgBodyTooLarge})
		return
	}
	writeJSON(w, http.StatusBadRequest, response{Message: msgInvalidJSON})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
