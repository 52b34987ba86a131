package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

const healthMessage = "Task tracker is working fine"

// Engine is the counter engine surface the dispatcher uses.
type Engine interface {
	RegisterUser(ctx context.Context, userID, name string) (*model.User, error)
	AddTask(ctx context.Context, userID, name string) (*model.Task, error)
	CompleteTask(ctx context.Context, userID string, taskID uint) (service.CompleteResult, error)
	DeleteTask(ctx context.Context, userID string, taskID uint) (*model.Task, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.User, error)
	GetTasksForUser(ctx context.Context, userID string) ([]model.Task, error)
	GetAllTasks(ctx context.Context) ([]model.Task, error)
}

// Auditor recounts counters on demand.
type Auditor interface {
	Reconcile(ctx context.Context, userID string, repair bool) (*service.Drift, error)
	ReconcileAll(ctx context.Context, repair bool) (service.AuditReport, error)
}

// Pinger checks storage reachability for the health endpoint.
type Pinger func(ctx context.Context) error

// Handler serves the task tracker routes.
type Handler struct {
	engine  Engine
	auditor Auditor
	ping    Pinger
	log     *slog.Logger
}

func NewHandler(engine Engine, auditor Auditor, ping Pinger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, auditor: auditor, ping: ping, log: log}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.respondError(w, r, errors.Join(service.ErrStorageUnavailable, err))
			return
		}
	}
	respondMessage(w, http.StatusOK, healthMessage)
}

func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondError(w, r, invalidRequest(err))
		return
	}

	user, err := h.engine.RegisterUser(r.Context(), req.UserID, req.UserName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, map[string]any{"user": user})
}

func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondError(w, r, invalidRequest(err))
		return
	}

	task, err := h.engine.AddTask(r.Context(), req.UserID, req.TaskName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, map[string]any{"task": task})
}

func (h *Handler) TaskDone(w http.ResponseWriter, r *http.Request) {
	var req TaskActionRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondError(w, r, invalidRequest(err))
		return
	}

	result, err := h.engine.CompleteTask(r.Context(), req.UserID, req.TaskID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, map[string]any{"task": result.Task, "already_done": result.AlreadyDone})
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	var req TaskActionRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondError(w, r, invalidRequest(err))
		return
	}

	if _, err := h.engine.DeleteTask(r.Context(), req.UserID, req.TaskID); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Task deleted successfully")
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))

	user, err := h.engine.GetUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, user)
}

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.GetAllUsers(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	respondList(w, len(users), map[string]any{"users": users})
}

func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))

	tasks, err := h.engine.GetTasksForUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	respondList(w, len(tasks), map[string]any{"tasks": tasks})
}

func (h *Handler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.GetAllTasks(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	respondList(w, len(tasks), map[string]any{"tasks": tasks})
}

// Reconcile runs the counter audit for one user or for everybody.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondError(w, r, invalidRequest(err))
		return
	}

	if req.UserID != "" {
		drift, err := h.auditor.Reconcile(r.Context(), req.UserID, req.Repair)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondData(w, map[string]any{"user_id": req.UserID, "consistent": drift == nil, "drift": drift})
		return
	}

	report, err := h.auditor.ReconcileAll(r.Context(), req.Repair)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if report.Drifted == nil {
		report.Drifted = []service.Drift{}
	}
	respondData(w, report)
}
