package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quantfold/allocator-bot/internal/agent"
	"github.com/quantfold/allocator-bot/internal/events"
)

// handleQuery handles POST /v1/query requests (SSE).
// The agent's progress and response are streamed as typed server-sent
// events; a client disconnect stops further emission.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var request agent.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if len(request.Messages) == 0 {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "At least one message is required"})
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	emit := func(data events.EventData) error {
		if err := ctx.Err(); err != nil {
			return err // client disconnected, stop emitting
		}

		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", data.EventType(), payload); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		flusher.Flush()
		return nil
	}

	if err := s.agent.Execute(ctx, request, emit); err != nil {
		if ctx.Err() != nil {
			s.log.Debug().Msg("Client disconnected mid-stream")
			return
		}
		s.log.Error().Err(err).Msg("Query execution failed")
		// Best-effort error event; headers are already written.
		_ = emit(events.Error(fmt.Sprintf("Query failed. %v", err)))
	}
}
