package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quantfold/allocator-bot/internal/modules/allocation"
	"github.com/quantfold/allocator-bot/internal/store"
)

// handleInfo handles GET / requests.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"info": "Asset basket allocator"})
}

// handleAgentDescriptor handles GET /agents.json requests: the agent
// configuration consumed by conversational frontends.
func (s *Server) handleAgentDescriptor(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"allocator_bot": map[string]any{
			"name":        "Allocator Bot",
			"description": "AI-powered allocator bot to answer questions about asset basket allocation.",
			"endpoints": map[string]string{
				"query": s.cfg.AgentHostURL + "/v1/query",
			},
			"features": map[string]bool{
				"streaming":               true,
				"widget-dashboard-select": true,
				"widget-dashboard-search": false,
			},
		},
	})
}

// handleAllocationData handles GET /allocation_data requests: the table
// behind the allocation widget. Rows can be filtered by risk model and
// projected to weights-only or quantities-only.
func (s *Server) handleAllocationData(w http.ResponseWriter, r *http.Request) {
	allocationID := r.URL.Query().Get("allocation_id")
	if allocationID == "" {
		s.respondJSON(w, http.StatusOK, map[string]string{"error": "Allocation ID is required"})
		return
	}

	collections, err := s.store.LoadAllocations(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load allocations")
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load allocations"})
		return
	}

	rows, ok := collections[allocationID]
	if !ok {
		rows = []allocation.Row{{Ticker: allocation.SentinelTicker, Quantity: 0}}
	}

	if riskModel := r.URL.Query().Get("risk_model"); riskModel != "" {
		filtered := make([]allocation.Row, 0, len(rows))
		for _, row := range rows {
			if row.RiskModel == riskModel {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	dropColumn := "Quantity"
	if r.URL.Query().Get("weights_or_quantities") == "quantities" {
		dropColumn = "Weight"
	}

	projected := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		entry := map[string]any{
			"Risk Model": row.RiskModel,
			"Ticker":     row.Ticker,
			"Weight":     row.Weight,
			"Quantity":   row.Quantity,
			"Note":       row.Note,
		}
		delete(entry, dropColumn)
		projected = append(projected, entry)
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"allocation": projected})
}

// taskEntry is one row of the task history listing.
type taskEntry struct {
	AllocationID string `json:"allocation_id"`
	store.TaskRecord
}

// handleTasks handles GET /tasks requests with optional date-range and
// symbol-substring filters.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.LoadTasks(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load tasks")
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load tasks"})
		return
	}

	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")
	symbolFilter := strings.ToLower(r.URL.Query().Get("symbols"))

	entries := make([]taskEntry, 0, len(tasks))
	for id, task := range tasks {
		if !matchesDateRange(task.Date, startDate, endDate) {
			continue
		}
		if symbolFilter != "" {
			joined := strings.ToLower(strings.Join(task.AssetSymbols, ", "))
			if !strings.Contains(joined, symbolFilter) {
				continue
			}
		}
		entries = append(entries, taskEntry{AllocationID: id, TaskRecord: task})
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"tasks": entries})
}

// matchesDateRange compares the task's ISO timestamp against inclusive
// date bounds using string-prefix semantics (a task on the end date matches
// even though its timestamp extends past the bare date).
func matchesDateRange(taskDate, startDate, endDate string) bool {
	if startDate != "" && taskDate < startDate {
		return false
	}
	if endDate != "" && taskDate > endDate && !strings.HasPrefix(taskDate, endDate) {
		return false
	}
	return true
}

// respondJSON writes a JSON response with the given status code.
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
