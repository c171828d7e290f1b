package agent

import (
	"context"
	"fmt"
	"sync"

	"strand/llm"
)

// MaxIterations is the maximum number of LLM-tool loop iterations.
const MaxIterations = 25

// ThreadStore is the persistence collaborator the loop appends to. The badger
// implementation lives in the store package.
type ThreadStore interface {
	// Latest returns the most recent message list for the thread, or an empty
	// slice when the thread does not exist yet.
	Latest(ctx context.Context, threadID string) ([]Message, error)

	// Append stores msgs as a new snapshot of the thread's state.
	Append(ctx context.Context, threadID string, msgs []Message) error
}

// Config holds per-agent settings.
type Config struct {
	Model         string
	SystemPrompt  string
	MaxIterations int // 0 means MaxIterations
	WindowSize    int // 0 means DefaultWindowSize
}

// Agent drives the LLM-tool conversation loop for one configured model and
// tool set. It is safe for concurrent use; per-thread write ordering is the
// thread store's concern.
type Agent struct {
	cfg   Config
	llm   llm.Client
	tools map[string]Tool
	store ThreadStore
}

// New creates an Agent. The store must not be nil; tools may be empty.
func New(cfg Config, client llm.Client, tools []Tool, store ThreadStore) *Agent {
	toolMap := make(map[string]Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Name()] = t
	}
	return &Agent{cfg: cfg, llm: client, tools: toolMap, store: store}
}

// Tools returns the names of the registered tools.
func (a *Agent) Tools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// Model returns the configured model identifier.
func (a *Agent) Model() string { return a.cfg.Model }

// Run executes one conversation turn for threadID and streams RawEvents into
// ch, closing it when the run ends. Any fault (an LLM error, a store error,
// even a panic) is converted into a terminal error event; the channel never
// closes silently mid-run. Sends honor ctx so a cancelled consumer stops the
// producer promptly.
func (a *Agent) Run(ctx context.Context, input, threadID string, ch chan<- RawEvent) {
	defer close(ch)
	defer func() {
		if r := recover(); r != nil {
			emit(ctx, ch, RawEvent{Kind: RawError, Err: fmt.Errorf("agent panic: %v", r)})
		}
	}()

	if err := a.runLoop(ctx, input, threadID, ch); err != nil {
		emit(ctx, ch, RawEvent{Kind: RawError, Err: err})
		return
	}
	emit(ctx, ch, RawEvent{Kind: RawDone, ThreadID: threadID})
}

func (a *Agent) runLoop(ctx context.Context, input, threadID string, ch chan<- RawEvent) error {
	history, err := a.store.Latest(ctx, threadID)
	if err != nil {
		return fmt.Errorf("load thread %s: %w", threadID, err)
	}

	msgs := make([]Message, 0, len(history)+2)
	if len(history) == 0 && a.cfg.SystemPrompt != "" {
		msgs = append(msgs, System(a.cfg.SystemPrompt))
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, Human(input))

	schemas := buildToolSchemas(a.tools)

	maxIter := a.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = MaxIterations
	}
	windowSize := a.cfg.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		window := Window(msgs, windowSize)

		if !emit(ctx, ch, RawEvent{Kind: RawModelStart, Model: a.cfg.Model}) {
			return ctx.Err()
		}

		resp, err := a.callModel(ctx, window, schemas, ch)
		if err != nil {
			return fmt.Errorf("LLM call: %w", err)
		}

		if !emit(ctx, ch, RawEvent{Kind: RawModelEnd, Model: a.cfg.Model}) {
			return ctx.Err()
		}

		msgs = append(msgs, AI(resp.Content, resp.ToolCalls...))

		// No tool calls → done
		if len(resp.ToolCalls) == 0 {
			break
		}

		// Execute tool calls concurrently
		var wg sync.WaitGroup
		results := make([]ToolResult, len(resp.ToolCalls))

		for i, tc := range resp.ToolCalls {
			wg.Add(1)
			go func(idx int, tc ToolCall) {
				defer wg.Done()
				emit(ctx, ch, RawEvent{
					Kind:    RawToolStart,
					Tool:    tc.Name,
					CallID:  tc.ID,
					Payload: map[string]any{"input": tc.Args},
				})

				result := a.executeTool(ctx, tc)
				results[idx] = result

				emit(ctx, ch, RawEvent{
					Kind:    RawToolEnd,
					Tool:    tc.Name,
					CallID:  tc.ID,
					Payload: map[string]any{"output": result.Output},
				})
			}(i, tc)
		}
		wg.Wait()

		for _, result := range results {
			msgs = append(msgs, ToolMsg(result.ToolCallID, result.Name, result.Output))
		}
	}

	if err := a.store.Append(ctx, threadID, msgs); err != nil {
		return fmt.Errorf("persist thread %s: %w", threadID, err)
	}
	return nil
}

// executeTool runs on the tool's own goroutine, out of reach of Run's
// recover, so it converts panics into error results itself.
func (a *Agent) executeTool(ctx context.Context, tc ToolCall) (result ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ToolResult{
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Error:      fmt.Sprintf("tool panic: %v", r),
				Output:     fmt.Sprintf("Error: tool %s panicked: %v", tc.Name, r),
			}
		}
	}()

	tool, ok := a.tools[tc.Name]
	if !ok {
		return ToolResult{
			ToolCallID: tc.ID,
			Name:       tc.Name,
			Error:      fmt.Sprintf("unknown tool: %s", tc.Name),
			Output:     fmt.Sprintf("Error: tool %q not found", tc.Name),
		}
	}

	output, err := tool.Execute(ctx, tc.Args)
	if err != nil {
		return ToolResult{
			ToolCallID: tc.ID,
			Name:       tc.Name,
			Error:      err.Error(),
			Output:     "Error: " + err.Error(),
		}
	}

	return ToolResult{
		ToolCallID: tc.ID,
		Name:       tc.Name,
		Output:     output,
	}
}

// modelResponse holds the accumulated result of one streamed LLM call.
type modelResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// callModel streams one LLM call, forwarding content deltas as token events
// and collecting the full response.
func (a *Agent) callModel(ctx context.Context, msgs []Message, schemas []llm.ToolSchema, ch chan<- RawEvent) (*modelResponse, error) {
	req := llm.Request{
		Model:     a.cfg.Model,
		Messages:  convertMessages(msgs),
		Tools:     schemas,
		MaxTokens: 4096,
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunkCh := make(chan llm.StreamChunk, 64)
	var llmErr error
	var llmDone sync.WaitGroup
	llmDone.Add(1)
	go func() {
		defer llmDone.Done()
		llmErr = a.llm.Stream(callCtx, req, chunkCh)
	}()

	var content string
	var toolCalls []ToolCall

	// After an in-band error, keep draining until the producer closes the
	// channel. Returning early would strand a producer blocked on a send.
	var chunkErr error

	for chunk := range chunkCh {
		if chunkErr != nil {
			continue
		}
		if chunk.Error != nil {
			chunkErr = chunk.Error
			cancel()
			continue
		}
		if chunk.Delta != "" {
			content += chunk.Delta
			emit(ctx, ch, RawEvent{
				Kind: RawToken,
				Text: chunk.Delta,
				Meta: map[string]any{"model": a.cfg.Model},
			})
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, ToolCall{
				ID:   chunk.ToolCall.ID,
				Name: chunk.ToolCall.Name,
				Args: chunk.ToolCall.Args,
			})
		}
	}

	llmDone.Wait()
	if chunkErr != nil {
		return nil, chunkErr
	}
	if llmErr != nil {
		return nil, llmErr
	}

	return &modelResponse{Content: content, ToolCalls: toolCalls}, nil
}

// emit sends ev unless ctx is done. It returns false when the send was
// abandoned, which callers treat as cancellation.
func emit(ctx context.Context, ch chan<- RawEvent, ev RawEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// convertMessages maps thread roles onto the wire roles LLM providers expect.
func convertMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{
			Role:       wireRole(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			out[i].ToolCalls = append(out[i].ToolCalls, llm.ToolCallInfo{
				ID:   tc.ID,
				Name: tc.Name,
				Args: tc.Args,
			})
		}
	}
	return out
}

func wireRole(role string) string {
	switch role {
	case RoleHuman:
		return "user"
	case RoleAI:
		return "assistant"
	default:
		return role
	}
}

func buildToolSchemas(toolMap map[string]Tool) []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(toolMap))
	for _, t := range toolMap {
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return schemas
}
