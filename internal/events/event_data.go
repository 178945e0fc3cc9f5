// Package events defines the typed server-sent-event payloads streamed to
// conversational clients.
package events

import (
	"github.com/google/uuid"
)

// EventType identifies an SSE event name on the wire.
type EventType string

const (
	// StatusUpdate carries progress and error notifications.
	StatusUpdate EventType = "copilotStatusUpdate"
	// MessageChunk carries one streamed delta of the assistant reply.
	MessageChunk EventType = "copilotMessageChunk"
	// MessageArtifact carries a structured result (e.g. the allocation table).
	MessageArtifact EventType = "copilotMessageArtifact"
)

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StatusLevel classifies a status update.
type StatusLevel string

const (
	StatusInfo    StatusLevel = "INFO"
	StatusWarning StatusLevel = "WARNING"
	StatusError   StatusLevel = "ERROR"
)

// StatusUpdateData contains data for StatusUpdate events
type StatusUpdateData struct {
	Level   StatusLevel      `json:"eventType"`
	Message string           `json:"message"`
	Details []map[string]any `json:"details,omitempty"`
}

// EventType returns the event type for StatusUpdateData
func (d *StatusUpdateData) EventType() EventType {
	return StatusUpdate
}

// MessageChunkData contains data for MessageChunk events
type MessageChunkData struct {
	Delta string `json:"delta"`
}

// EventType returns the event type for MessageChunkData
func (d *MessageChunkData) EventType() EventType {
	return MessageChunk
}

// ArtifactData contains data for MessageArtifact events
type ArtifactData struct {
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UUID        uuid.UUID `json:"uuid"`
	Content     any       `json:"content"`
}

// EventType returns the event type for ArtifactData
func (d *ArtifactData) EventType() EventType {
	return MessageArtifact
}

// Info builds an informational status update.
func Info(message string) *StatusUpdateData {
	return &StatusUpdateData{Level: StatusInfo, Message: message}
}

// Error builds an error status update.
func Error(message string) *StatusUpdateData {
	return &StatusUpdateData{Level: StatusError, Message: message}
}
