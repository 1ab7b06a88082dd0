package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/config"
	"github.com/vaforge/vaforge-engine/pkg/logging"
	"github.com/vaforge/vaforge-engine/pkg/services/workqueue"
)

// Pinger checks a backing store. *pgxpool.Pool and *redis.Client adapters satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// TaskLister exposes the background tasks currently queued or running.
type TaskLister interface {
	GetTasks() []workqueue.TaskSnapshot
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Queue        *QueueStatus      `json:"queue,omitempty"`
}

// QueueStatus summarizes the enrichment worker queue.
type QueueStatus struct {
	Pending int                      `json:"pending"`
	Running int                      `json:"running"`
	Tasks   []workqueue.TaskSnapshot `json:"tasks"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg          *config.Config
	dependencies map[string]Pinger
	queue        TaskLister
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. dependencies may be nil.
func NewHealthHandler(cfg *config.Config, dependencies map[string]Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, dependencies: dependencies, logger: logger}
}

// WithQueue reports the given queue's tasks on GET /health.
func (h *HealthHandler) WithQueue(queue TaskLister) *HealthHandler {
	h.queue = queue
	return h
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Any failing dependency turns the answer into a 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if len(h.dependencies) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response.Dependencies = make(map[string]string, len(h.dependencies))
		for name, dep := range h.dependencies {
			if err := dep.Ping(ctx); err != nil {
				h.logger.Warn("Health check failed",
					zap.String("dependency", name),
					zap.String("error", logging.SanitizeError(err)))
				response.Dependencies[name] = "unavailable"
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			response.Dependencies[name] = "ok"
		}
	}

	if h.queue != nil {
		response.Queue = queueStatus(h.queue.GetTasks())
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

func queueStatus(tasks []workqueue.TaskSnapshot) *QueueStatus {
	qs := &QueueStatus{Tasks: tasks}
	if qs.Tasks == nil {
		qs.Tasks = []workqueue.TaskSnapshot{}
	}
	for _, t := range tasks {
		switch t.Status {
		case workqueue.TaskStatusPending:
			qs.Pending++
		case workqueue.TaskStatusRunning:
			qs.Running++
		}
	}
	return qs
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "vaforge-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
