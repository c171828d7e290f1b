package agent

import "fmt"

// Message is one turn in a conversation thread. Messages are immutable once
// appended to a thread; ordering within a thread is append order.
type Message struct {
	Role       string     `json:"role" msgpack:"role"`
	Content    string     `json:"content" msgpack:"content"`
	ID         string     `json:"id,omitempty" msgpack:"id,omitempty"`
	Name       string     `json:"name,omitempty" msgpack:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" msgpack:"tool_call_id,omitempty"` // set when Role == "tool"
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" msgpack:"tool_calls,omitempty"`
}

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	ID   string         `json:"id" msgpack:"id"`
	Name string         `json:"name" msgpack:"name"`
	Args map[string]any `json:"args" msgpack:"args"`
}

// ToolResult holds the output of one tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
}

// --- Role constants ---

const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
	RoleTool   = "tool"
)

// ValidRole returns true if r is a known message role.
func ValidRole(r string) bool {
	switch r {
	case RoleSystem, RoleHuman, RoleAI, RoleTool:
		return true
	}
	return false
}

// --- Constructors ---

// Human creates a user message.
func Human(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// System creates a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AI creates an assistant message with optional tool calls.
//
//	AI("Sure, I can help.")   → plain response
//	AI("", tc1, tc2)          → tool-calling response
func AI(content string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: toolCalls}
}

// ToolMsg creates a tool result message.
func ToolMsg(toolCallID, name, output string) Message {
	return Message{Role: RoleTool, Content: output, ToolCallID: toolCallID, Name: name}
}

// Validate checks that a message sequence is well-formed:
//   - all roles are valid
//   - tool messages carry tool_call_id and name
//   - ai messages have content or tool calls, and every tool call has an ID
func Validate(msgs []Message) error {
	for i, msg := range msgs {
		if !ValidRole(msg.Role) {
			return fmt.Errorf("message[%d]: unknown role %q", i, msg.Role)
		}

		switch msg.Role {
		case RoleTool:
			if msg.ToolCallID == "" {
				return fmt.Errorf("message[%d]: tool message missing tool_call_id", i)
			}
			if msg.Name == "" {
				return fmt.Errorf("message[%d]: tool message missing name", i)
			}

		case RoleAI:
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				return fmt.Errorf("message[%d]: ai message has no content and no tool calls", i)
			}
			for j, tc := range msg.ToolCalls {
				if tc.ID == "" {
					return fmt.Errorf("message[%d].tool_calls[%d]: missing ID", i, j)
				}
				if tc.Name == "" {
					return fmt.Errorf("message[%d].tool_calls[%d]: missing name", i, j)
				}
			}

		case RoleHuman, RoleSystem:
			if msg.Content == "" {
				return fmt.Errorf("message[%d]: %s message has empty content", i, msg.Role)
			}
		}
	}
	return nil
}
