package api

import (
	"encoding/json"
	"net/http"

	"github.com/pageturn/ingest/internal/task"
)

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.registry.List()
	if tasks == nil {
		tasks = []task.Task{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tasks": tasks})
}

// handleLifecycle feeds the host application's foreground/background
// transitions to the task registry, which pauses or resumes every
// affected run.
func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var state task.AppState
	switch body.State {
	case string(task.Foreground):
		state = task.Foreground
	case string(task.Background):
		state = task.Background
	default:
		jsonError(w, `state must be "foreground" or "background"`, http.StatusBadRequest)
		return
	}

	s.registry.SetAppState(r.Context(), state)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"state": state})
}
