package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"strand/llm"
)

// scriptedClient replays one scripted Stream response per model call.
type scriptedClient struct {
	mu    sync.Mutex
	turns [][]llm.StreamChunk
	err   error
}

func (c *scriptedClient) Stream(ctx context.Context, req llm.Request, ch chan<- llm.StreamChunk) error {
	defer close(ch)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	if len(c.turns) == 0 {
		c.mu.Unlock()
		return errors.New("scripted client: no turns left")
	}
	turn := c.turns[0]
	c.turns = c.turns[1:]
	c.mu.Unlock()

	for _, chunk := range turn {
		ch <- chunk
	}
	return nil
}

// memStore is an in-memory ThreadStore for loop tests.
type memStore struct {
	mu      sync.Mutex
	byID    map[string][]Message
	failing bool
}

func newMemStore() *memStore { return &memStore{byID: map[string][]Message{}} }

func (s *memStore) Latest(ctx context.Context, threadID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[threadID], nil
}

func (s *memStore) Append(ctx context.Context, threadID string, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.byID[threadID] = msgs
	return nil
}

func collect(t *testing.T, a *Agent, input, threadID string) []RawEvent {
	t.Helper()
	ch := make(chan RawEvent, 128)
	go a.Run(context.Background(), input, threadID, ch)

	var events []RawEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func kinds(events []RawEvent) []RawKind {
	out := make([]RawKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestRun_PlainResponse(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		{{Delta: "Hello"}, {Delta: " there"}, {Done: true}},
	}}
	store := newMemStore()
	a := New(Config{Model: "test-model", SystemPrompt: "be nice"}, client, nil, store)

	events := collect(t, a, "hi", "t1")

	want := []RawKind{RawModelStart, RawToken, RawToken, RawModelEnd, RawDone}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if events[1].Text != "Hello" || events[2].Text != " there" {
		t.Fatalf("unexpected token texts: %q %q", events[1].Text, events[2].Text)
	}
	if events[1].Meta["model"] != "test-model" {
		t.Fatalf("expected model in token meta, got %v", events[1].Meta)
	}

	// Persisted: system + human + ai
	saved := store.byID["t1"]
	if len(saved) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d", len(saved))
	}
	if saved[0].Role != RoleSystem || saved[1].Role != RoleHuman || saved[2].Role != RoleAI {
		t.Fatalf("unexpected roles: %s %s %s", saved[0].Role, saved[1].Role, saved[2].Role)
	}
	if saved[2].Content != "Hello there" {
		t.Fatalf("expected accumulated content, got %q", saved[2].Content)
	}
}

func TestRun_ToolCallLoop(t *testing.T) {
	echo := &FuncTool{
		ToolName: "echo",
		ToolDesc: "echoes its input",
		ToolParams: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			return "echo: " + text, nil
		},
	}
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		{{ToolCall: &llm.ToolCallResult{ID: "c1", Name: "echo", Args: map[string]any{"text": "ping"}}}},
		{{Delta: "done"}},
	}}
	store := newMemStore()
	a := New(Config{Model: "test-model"}, client, []Tool{echo}, store)

	events := collect(t, a, "run the tool", "t2")

	var sawStart, sawEnd bool
	for _, ev := range events {
		switch ev.Kind {
		case RawToolStart:
			sawStart = true
			if ev.Tool != "echo" || ev.CallID != "c1" {
				t.Fatalf("unexpected tool_start: %+v", ev)
			}
			if _, ok := ev.Payload["input"]; !ok {
				t.Fatalf("tool_start missing input payload: %v", ev.Payload)
			}
		case RawToolEnd:
			sawEnd = true
			if ev.Payload["output"] != "echo: ping" {
				t.Fatalf("unexpected tool output: %v", ev.Payload)
			}
		}
	}
	if !sawStart || !sawEnd {
		t.Fatalf("expected tool_start and tool_end, got %v", kinds(events))
	}
	if events[len(events)-1].Kind != RawDone {
		t.Fatalf("expected terminal done, got %s", events[len(events)-1].Kind)
	}

	// Persisted: human + ai(tool call) + tool + ai
	saved := store.byID["t2"]
	if len(saved) != 4 {
		t.Fatalf("expected 4 persisted messages, got %d", len(saved))
	}
	if saved[2].Role != RoleTool || saved[2].ToolCallID != "c1" {
		t.Fatalf("unexpected tool message: %+v", saved[2])
	}
	if err := Validate(saved); err != nil {
		t.Fatalf("persisted history invalid: %v", err)
	}
}

func TestRun_UnknownTool(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		{{ToolCall: &llm.ToolCallResult{ID: "c1", Name: "nope", Args: map[string]any{}}}},
		{{Delta: "recovered"}},
	}}
	store := newMemStore()
	a := New(Config{Model: "test-model"}, client, nil, store)

	events := collect(t, a, "call something", "t3")

	var output string
	for _, ev := range events {
		if ev.Kind == RawToolEnd {
			output, _ = ev.Payload["output"].(string)
		}
	}
	if !strings.Contains(output, "not found") {
		t.Fatalf("expected not-found output, got %q", output)
	}
	if events[len(events)-1].Kind != RawDone {
		t.Fatalf("expected run to complete, got %s", events[len(events)-1].Kind)
	}
}

func TestRun_LLMError(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream 500")}
	a := New(Config{Model: "test-model"}, client, nil, newMemStore())

	events := collect(t, a, "hi", "t4")

	last := events[len(events)-1]
	if last.Kind != RawError {
		t.Fatalf("expected terminal error event, got %s", last.Kind)
	}
	if last.Err == nil || !strings.Contains(last.Err.Error(), "upstream 500") {
		t.Fatalf("expected wrapped upstream error, got %v", last.Err)
	}
	for _, ev := range events {
		if ev.Kind == RawDone {
			t.Fatal("error run must not emit done")
		}
	}
}

// floodClient sends an in-band error chunk and then keeps streaming deltas
// without watching ctx, like a provider that reports a fault mid-stream but
// flushes its remaining buffer anyway.
type floodClient struct {
	deltas   int
	returned chan struct{}
}

func (c *floodClient) Stream(ctx context.Context, req llm.Request, ch chan<- llm.StreamChunk) error {
	defer close(c.returned)
	defer close(ch)
	ch <- llm.StreamChunk{Error: errors.New("mid-stream fault")}
	for i := 0; i < c.deltas; i++ {
		ch <- llm.StreamChunk{Delta: "x"}
	}
	return nil
}

func TestRun_ErrorChunkDoesNotStrandStream(t *testing.T) {
	// More deltas than the chunk channel buffers, so an early return from the
	// consumer would leave Stream blocked on a send forever.
	client := &floodClient{deltas: 200, returned: make(chan struct{})}
	a := New(Config{Model: "test-model"}, client, nil, newMemStore())

	events := collect(t, a, "hi", "t9")

	last := events[len(events)-1]
	if last.Kind != RawError {
		t.Fatalf("expected terminal error event, got %s", last.Kind)
	}
	if !strings.Contains(last.Err.Error(), "mid-stream fault") {
		t.Fatalf("expected in-band error surfaced, got %v", last.Err)
	}

	select {
	case <-client.returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Stream never returned after the error chunk")
	}
}

func TestRun_StoreAppendError(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{{{Delta: "hi"}}}}
	store := newMemStore()
	store.failing = true
	a := New(Config{Model: "test-model"}, client, nil, store)

	events := collect(t, a, "hi", "t5")
	last := events[len(events)-1]
	if last.Kind != RawError {
		t.Fatalf("expected terminal error, got %s", last.Kind)
	}
	if !strings.Contains(last.Err.Error(), "disk full") {
		t.Fatalf("expected store error surfaced, got %v", last.Err)
	}
}

// panicStore panics on load to exercise the recovery path.
type panicStore struct{}

func (panicStore) Latest(ctx context.Context, threadID string) ([]Message, error) {
	panic("boom")
}

func (panicStore) Append(ctx context.Context, threadID string, msgs []Message) error {
	return nil
}

func TestRun_PanicBecomesErrorEvent(t *testing.T) {
	a := New(Config{Model: "test-model"}, &scriptedClient{}, nil, panicStore{})

	ch := make(chan RawEvent, 16)
	done := make(chan struct{})
	var events []RawEvent
	go func() {
		for ev := range ch {
			events = append(events, ev)
		}
		close(done)
	}()

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic escaped Run: %v", r)
			}
		}()
		a.Run(context.Background(), "hi", "t6", ch)
	}()
	<-done

	if len(events) == 0 {
		t.Fatal("expected events")
	}
	last := events[len(events)-1]
	if last.Kind != RawError {
		t.Fatalf("expected terminal error, got %s", last.Kind)
	}
	if !strings.Contains(last.Err.Error(), "panic") {
		t.Fatalf("expected panic error, got %v", last.Err)
	}
}

func TestRun_ExistingHistorySkipsSystemPrompt(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{{{Delta: "again"}}}}
	store := newMemStore()
	store.byID["t7"] = []Message{System("old prompt"), Human("first"), AI("first reply")}
	a := New(Config{Model: "test-model", SystemPrompt: "new prompt"}, client, nil, store)

	collect(t, a, "second", "t7")

	saved := store.byID["t7"]
	count := 0
	for _, m := range saved {
		if m.Role == RoleSystem {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one system message, got %d", count)
	}
	if saved[0].Content != "old prompt" {
		t.Fatalf("expected original system prompt kept, got %q", saved[0].Content)
	}
}

func TestRun_ContextCancelledStopsProducer(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		{{Delta: "a"}, {Delta: "b"}, {Delta: "c"}},
	}}
	a := New(Config{Model: "test-model"}, client, nil, newMemStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan RawEvent) // unbuffered, nobody reading
	done := make(chan struct{})
	go func() {
		a.Run(ctx, "hi", "t8", ch)
		close(done)
	}()

	select {
	case <-done:
	case ev, ok := <-ch:
		if ok {
			// Drain whatever was emitted before cancellation won the race.
			_ = ev
			for range ch {
			}
		}
		<-done
	}
}
