package agent

// RawKind discriminates the event shapes an agent run can emit. The loop is
// the only producer, so downstream consumers match on a closed set instead of
// probing payload fields.
type RawKind string

const (
	RawModelStart RawKind = "model_start"
	RawToken      RawKind = "token"
	RawModelEnd   RawKind = "model_end"
	RawToolStart  RawKind = "tool_start"
	RawToolEnd    RawKind = "tool_end"
	RawError      RawKind = "error"
	RawDone       RawKind = "done"
)

// RawEvent is one unit of the agent loop's event stream. Which fields are set
// depends on Kind:
//
//	token                → Text, Meta (chunk-level metadata)
//	tool_start, tool_end → Tool, CallID, Payload
//	model_start/end      → Model
//	error                → Err
//	done                 → ThreadID
type RawEvent struct {
	Kind     RawKind
	Text     string
	Model    string
	Tool     string
	CallID   string
	Payload  map[string]any
	Meta     map[string]any
	Err      error
	ThreadID string
}
