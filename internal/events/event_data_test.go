package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, StatusUpdate, Info("working").EventType())
	assert.Equal(t, StatusUpdate, Error("failed").EventType())
	assert.Equal(t, MessageChunk, (&MessageChunkData{}).EventType())
	assert.Equal(t, MessageArtifact, (&ArtifactData{}).EventType())
}

func TestStatusUpdateData_WireFormat(t *testing.T) {
	data, err := json.Marshal(Info("Fetching price data"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"eventType":"INFO","message":"Fetching price data"}`, string(data))
}

func TestStatusUpdateData_WithDetails(t *testing.T) {
	update := Info("Task resolved")
	update.Details = []map[string]any{{"Assets": "AAPL, GOOG"}}

	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"details"`)
}

func TestArtifactData_WireFormat(t *testing.T) {
	artifact := &ArtifactData{
		Type:        "table",
		Name:        "Allocation",
		Description: "Optimized asset allocation",
		UUID:        uuid.MustParse("2c6f5f9f-3c24-4f29-9a5c-64e4f3e9a101"),
		Content:     []map[string]any{{"Ticker": "AAPL"}},
	}

	data, err := json.Marshal(artifact)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "table", decoded["type"])
	assert.Equal(t, "2c6f5f9f-3c24-4f29-9a5c-64e4f3e9a101", decoded["uuid"])
}
