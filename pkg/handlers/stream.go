package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

// Stream line types.
const (
	StreamProgress = "progress"
	StreamResult   = "result"
	StreamError    = "error"
)

// StreamEvent is one newline-delimited JSON line of a streamed run.
type StreamEvent struct {
	Type        string `json:"type"`
	Stage       string `json:"stage,omitempty"`
	Current     int    `json:"current,omitempty"`
	Total       int    `json:"total,omitempty"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	Details     string `json:"details,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
}

// ndjsonStream writes progress lines and exactly one terminal line.
// Headers are sent with the first line, so a failure that happens before any
// progress is answered as an ordinary JSON error with a real status code.
type ndjsonStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	enc     *json.Encoder
	logger  *zap.Logger
	started bool
	broken  bool
}

func newNDJSONStream(w http.ResponseWriter, logger *zap.Logger) *ndjsonStream {
	return &ndjsonStream{
		w:      w,
		rc:     http.NewResponseController(w),
		enc:    json.NewEncoder(w),
		logger: logger,
	}
}

// progress is a pipeline.ProgressCallback.
func (s *ndjsonStream) progress(stage pipeline.StageName, current, total int, message string) {
	s.send(StreamEvent{
		Type:    StreamProgress,
		Stage:   string(stage),
		Current: current,
		Total:   total,
		Message: message,
	})
}

func (s *ndjsonStream) result(data any) {
	s.send(StreamEvent{Type: StreamResult, Data: data})
}

// fail terminates the stream with err.
func (s *ndjsonStream) fail(action string, err error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		writeServiceError(s.w, s.logger, action, err)
		return
	}

	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Failed to "+action, zap.Int("status", status), zap.String("error", body.Details))
	}
	s.send(StreamEvent{
		Type:        StreamError,
		Error:       body.Error,
		Message:     body.Message,
		Details:     body.Details,
		UserMessage: body.UserMessage,
	})
}

func (s *ndjsonStream) send(event StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A client that went away stops being written to; the run itself ends
	// when the request context is cancelled.
	if s.broken {
		return
	}
	if !s.started {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("X-Content-Type-Options", "nosniff")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := s.enc.Encode(event); err != nil {
		s.logger.Debug("Stream client gone", zap.Error(err))
		s.broken = true
		return
	}
	if err := s.rc.Flush(); err != nil {
		s.logger.Debug("Failed to flush stream", zap.Error(err))
	}
}
