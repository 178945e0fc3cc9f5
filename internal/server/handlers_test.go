package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/allocator-bot/internal/config"
	"github.com/quantfold/allocator-bot/internal/modules/allocation"
	"github.com/quantfold/allocator-bot/internal/store"
)

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	allocations map[string][]allocation.Row
	tasks       map[string]store.TaskRecord
	loadErr     error
}

func (m *memStore) SaveAllocation(_ context.Context, id string, rows []allocation.Row) error {
	m.allocations[id] = rows
	return nil
}

func (m *memStore) LoadAllocations(_ context.Context) (map[string][]allocation.Row, error) {
	return m.allocations, m.loadErr
}

func (m *memStore) SaveTask(_ context.Context, id string, task store.TaskRecord) error {
	m.tasks[id] = task
	return nil
}

func (m *memStore) LoadTasks(_ context.Context) (map[string]store.TaskRecord, error) {
	return m.tasks, m.loadErr
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	return New(Config{
		Log: zerolog.Nop(),
		Config: &config.Config{
			AgentHostURL: "http://localhost:7777",
			APIKeys:      []string{"secret-key"},
			Port:         7777,
		},
		Store: st,
	})
}

func seedStore() *memStore {
	note := "optimization failed"
	return &memStore{
		allocations: map[string][]allocation.Row{
			"ab12": {
				{RiskModel: "max_sharpe", Ticker: "AAPL", Weight: 0.6, Quantity: 40},
				{RiskModel: "max_sharpe", Ticker: "GOOG", Weight: 0.4, Quantity: 2},
				{RiskModel: "min_volatility", Ticker: "AAPL", Weight: 1.0, Quantity: 66},
				{RiskModel: "efficient_risk", Ticker: allocation.SentinelTicker, Note: &note},
			},
		},
		tasks: map[string]store.TaskRecord{
			"ab12": {
				AssetSymbols: []string{"AAPL", "GOOG"},
				Date:         "2024-07-01T12:00:00Z",
			},
			"cd34": {
				AssetSymbols: []string{"MSFT"},
				Date:         "2024-08-15T09:30:00Z",
			},
		},
	}
}

func doAuthedGet(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeAllocation(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body struct {
		Allocation []map[string]any `json:"allocation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Allocation
}

func TestHandleInfo(t *testing.T) {
	s := newTestServer(t, seedStore())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "allocator")
}

func TestHandleAgentDescriptor(t *testing.T) {
	s := newTestServer(t, seedStore())

	req := httptest.NewRequest(http.MethodGet, "/agents.json", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]struct {
		Endpoints map[string]string `json:"endpoints"`
		Features  map[string]bool   `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	descriptor, ok := body["allocator_bot"]
	require.True(t, ok)
	assert.Equal(t, "http://localhost:7777/v1/query", descriptor.Endpoints["query"])
	assert.True(t, descriptor.Features["streaming"])
}

func TestRequireAPIKey(t *testing.T) {
	s := newTestServer(t, seedStore())

	// No token
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token
	req = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct token
	rec = doAuthedGet(s, "/tasks")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleAllocationData_MissingID(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/allocation_data")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Allocation ID is required")
}

func TestHandleAllocationData_UnknownIDReturnsPlaceholder(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/allocation_data?allocation_id=zzzz")
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decodeAllocation(t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, allocation.SentinelTicker, rows[0]["Ticker"])
}

func TestHandleAllocationData_DefaultsToWeights(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/allocation_data?allocation_id=ab12")
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decodeAllocation(t, rec)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Contains(t, row, "Weight")
		assert.NotContains(t, row, "Quantity")
	}
}

func TestHandleAllocationData_QuantitiesProjection(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/allocation_data?allocation_id=ab12&weights_or_quantities=quantities")
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decodeAllocation(t, rec)
	for _, row := range rows {
		assert.Contains(t, row, "Quantity")
		assert.NotContains(t, row, "Weight")
	}
}

func TestHandleAllocationData_RiskModelFilter(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/allocation_data?allocation_id=ab12&risk_model=max_sharpe")
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decodeAllocation(t, rec)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "max_sharpe", row["Risk Model"])
	}
}

func TestHandleTasks_ListsAll(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/tasks")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []map[string]any `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Tasks, 2)
}

func TestHandleTasks_DateRangeFilter(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/tasks?start_date=2024-08-01")
	var body struct {
		Tasks []struct {
			AllocationID string `json:"allocation_id"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "cd34", body.Tasks[0].AllocationID)
}

func TestHandleTasks_SymbolFilter(t *testing.T) {
	s := newTestServer(t, seedStore())

	rec := doAuthedGet(s, "/tasks?symbols=msft")
	var body struct {
		Tasks []struct {
			AllocationID string `json:"allocation_id"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "cd34", body.Tasks[0].AllocationID)
}

func TestHandleTasks_StoreError(t *testing.T) {
	st := seedStore()
	st.loadErr = assert.AnError
	s := newTestServer(t, st)

	rec := doAuthedGet(s, "/tasks")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMatchesDateRange(t *testing.T) {
	taskDate := "2024-07-01T12:00:00Z"

	assert.True(t, matchesDateRange(taskDate, "", ""))
	assert.True(t, matchesDateRange(taskDate, "2024-06-01", ""))
	assert.False(t, matchesDateRange(taskDate, "2024-08-01", ""))
	assert.True(t, matchesDateRange(taskDate, "", "2024-08-01"))
	assert.False(t, matchesDateRange(taskDate, "", "2024-06-01"))
	// A task on the end date itself matches despite the time suffix.
	assert.True(t, matchesDateRange(taskDate, "", "2024-07-01"))
}
