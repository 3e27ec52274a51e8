// Package server is the HTTP front door: it authenticates inbound task
// requests and schedules orchestration runs without blocking the caller.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slok/pagesmith/internal/conventions"
	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
	"github.com/slok/pagesmith/internal/orchestrator"
)

// TaskRunner is the interface the dispatcher needs from the orchestrator.
type TaskRunner interface {
	Run(ctx context.Context, task model.Task) (*orchestrator.Result, error)
}

// Config is the configuration for the HTTP handler.
type Config struct {
	Runner TaskRunner
	// DispatchSecret is the shared secret inbound requests must present.
	DispatchSecret string
	Logger         log.Logger
}

func (c *Config) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("task runner is required")
	}
	if c.DispatchSecret == "" {
		return fmt.Errorf("dispatch secret is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "server.Handler"})
	return nil
}

type handler struct {
	runner TaskRunner
	secret string
	logger log.Logger
}

// New returns the HTTP handler exposing the task API.
func New(cfg Config) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := &handler{
		runner: cfg.Runner,
		secret: cfg.DispatchSecret,
		logger: cfg.Logger,
	}

	router := chi.NewRouter()
	router.Get("/healthz", h.health)
	router.Post("/v1/tasks", h.dispatchTask)

	return router, nil
}

// --- JSON wire types (private, for the inbound API) ---

type taskRequestJSON struct {
	Task        string           `json:"task"`
	Round       int              `json:"round"`
	Brief       string           `json:"brief"`
	Checks      []string         `json:"checks"`
	Attachments []attachmentJSON `json:"attachments"`
	Email       string           `json:"email"`
	Nonce       string           `json:"nonce"`
	EvalURL     string           `json:"evaluation_url"`
	Secret      string           `json:"secret"`
}

type attachmentJSON struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (r taskRequestJSON) toModel() model.Task {
	id := r.Task
	if id == "" {
		id = r.Brief
	}

	attachments := make([]model.Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		attachments = append(attachments, model.Attachment{Name: a.Name, URL: a.URL})
	}

	return model.Task{
		ID:            conventions.TaskID(id),
		Round:         model.Round(r.Round),
		Brief:         r.Brief,
		Checks:        r.Checks,
		Attachments:   attachments,
		Email:         r.Email,
		Nonce:         r.Nonce,
		EvaluationURL: r.EvalURL,
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatchTask authenticates the request, schedules the run in the
// background and acknowledges immediately. The pipeline result is delivered
// through the evaluation callback, never through this response.
func (h *handler) dispatchTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		h.logger.Warningf("Rejected task request with invalid credential")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": model.ErrUnauthorized.Error()})
		return
	}

	task := req.toModel()
	if err := task.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	logger := h.logger.WithValues(log.Kv{"task": task.ID, "round": int(task.Round)})
	logger.Infof("Task accepted, scheduling orchestration")

	// Fire and forget: the run is detached from the request lifecycle and
	// observed only through the evaluation callback and logs.
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("Orchestration panicked: %v", rec)
			}
		}()

		_, err := h.runner.Run(context.Background(), task)
		if err != nil {
			logger.Errorf("Orchestration failed: %s", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
