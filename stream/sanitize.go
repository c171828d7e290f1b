package stream

import (
	"encoding/json"
	"fmt"

	"strand/agent"
)

// maxSanitizeDepth caps recursion so self-referential values terminate.
const maxSanitizeDepth = 16

// Sanitize converts an arbitrary value into one that encoding/json is
// guaranteed to marshal. Maps and slices are walked recursively; thread
// messages are projected onto their wire shape with only present optional
// fields; JSON-native primitives pass through; anything else degrades to a
// string description rather than failing. Sanitize never panics and never
// returns an unmarshalable value, so encoder errors cannot reach the client.
func Sanitize(v any) any {
	return sanitize(v, 0)
}

func sanitize(v any, depth int) any {
	if depth > maxSanitizeDepth {
		return describe(v)
	}

	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v

	case error:
		return t.Error()

	case agent.Message:
		return messageMap(t)
	case *agent.Message:
		if t == nil {
			return nil
		}
		return messageMap(*t)

	case agent.ToolCall:
		return toolCallMap(t)

	case []agent.Message:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = messageMap(m)
		}
		return out

	case []agent.ToolCall:
		out := make([]any, len(t))
		for i, tc := range t {
			out[i] = toolCallMap(tc)
		}
		return out

	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sanitize(val, depth+1)
		}
		return out

	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitize(val, depth+1)
		}
		return out

	default:
		if _, err := json.Marshal(v); err == nil {
			return v
		}
		return describe(v)
	}
}

// messageMap projects a thread message onto the wire shape, keeping only
// optional fields that are present.
func messageMap(m agent.Message) map[string]any {
	out := map[string]any{
		"type":    m.Role,
		"content": m.Content,
	}
	if m.ToolCallID != "" {
		out["tool_call_id"] = m.ToolCallID
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if m.ID != "" {
		out["id"] = m.ID
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]any, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			calls[i] = toolCallMap(tc)
		}
		out["tool_calls"] = calls
	}
	return out
}

func toolCallMap(tc agent.ToolCall) map[string]any {
	return map[string]any{
		"id":   tc.ID,
		"name": tc.Name,
		"args": sanitize(tc.Args, 0),
	}
}

// describe is the string fallback for values that cannot be represented.
// It deliberately avoids %v, which recurses forever on cyclic values.
func describe(v any) string {
	return fmt.Sprintf("<unserializable %T>", v)
}
