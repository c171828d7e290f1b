// Package stream normalizes the agent loop's raw event stream into the
// canonical wire protocol clients consume: one JSON object per line, a small
// closed set of event types, and a guaranteed session-start and terminal
// event per request.
package stream

// EventType is the canonical event discriminant. This small set is the only
// contract clients depend on.
type EventType string

const (
	TypeToken     EventType = "token"
	TypeToolEvent EventType = "tool_event"
	TypeError     EventType = "error"
	TypeMetadata  EventType = "metadata"
)

// Event is the one stable client-facing event shape. Content is null for
// tool_event and metadata events; Metadata carries event-specific context.
type Event struct {
	Type     EventType      `json:"type"`
	Content  *string        `json:"content"`
	ThreadID string         `json:"thread_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ptr returns a pointer to s, for the nullable content field.
func ptr(s string) *string { return &s }
