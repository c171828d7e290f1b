// Package llm defines the streaming contract the agent loop drives model
// calls through, plus an OpenAI-compatible implementation and a
// "provider:model" resolver.
package llm

import "context"

// Client is implemented per provider. The loop consumes models exclusively
// as streams; providers that only offer a blocking API adapt it behind
// Stream.
type Client interface {
	// Stream runs one model call and sends chunks to ch as they arrive.
	// The channel is closed when the call ends, whether it succeeded or
	// not. A fault may surface either as the returned error or as an
	// in-band StreamChunk.Error; consumers must handle both.
	Stream(ctx context.Context, req Request, ch chan<- StreamChunk) error
}

// Request is one model call: the windowed conversation, the tool schemas the
// model may invoke, and sampling settings.
type Request struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// Message is a conversation turn in provider wire form (user/assistant
// roles; thread roles are converted before they reach this package).
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []ToolCallInfo `json:"tool_calls,omitempty"`
}

// ToolCallInfo is a tool call attached to an assistant message, echoed back
// to the provider so tool results can be correlated.
type ToolCallInfo struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ToolSchema advertises one callable tool to the model.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallResult is a complete, parsed tool call assembled from streamed
// fragments.
type ToolCallResult struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// StreamChunk is one unit of a streamed model call: a content delta, a
// completed tool call, a terminal Done marker, or an in-band fault.
type StreamChunk struct {
	Delta    string          `json:"delta,omitempty"`
	ToolCall *ToolCallResult `json:"tool_call,omitempty"`
	Done     bool            `json:"done,omitempty"`
	Error    error           `json:"-"`
}
