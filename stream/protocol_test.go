package stream

import (
	"context"
	"errors"
	"testing"
)

// memSink collects sent events; fails after failAfter sends when set.
type memSink struct {
	events    []Event
	failAfter int
}

func (s *memSink) Send(ev Event) error {
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		return errors.New("broken pipe")
	}
	s.events = append(s.events, ev)
	return nil
}

func runProtocol(t *testing.T, sink Sink, threadCreated bool, events ...Event) error {
	t.Helper()
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return Run(context.Background(), sink, "t1", threadCreated, ch)
}

func TestRun_SessionStartThenCompleted(t *testing.T) {
	sink := &memSink{}
	err := runProtocol(t, sink, true,
		Event{Type: TypeToken, Content: ptr("hi"), ThreadID: "t1"},
	)
	if err != nil {
		t.Fatal(err)
	}

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(sink.events))
	}

	start := sink.events[0]
	if start.Type != TypeMetadata || start.ThreadID != "t1" {
		t.Fatalf("unexpected session start: %+v", start)
	}
	if start.Metadata["thread_created"] != true {
		t.Fatalf("expected thread_created=true, got %v", start.Metadata)
	}
	if rid, _ := start.Metadata["request_id"].(string); rid == "" {
		t.Fatal("expected a request id")
	}
	if ts, _ := start.Metadata["timestamp"].(string); ts == "" {
		t.Fatal("expected a timestamp")
	}

	last := sink.events[2]
	if last.Type != TypeMetadata || last.Metadata["status"] != "completed" {
		t.Fatalf("expected completed terminal event, got %+v", last)
	}
}

func TestRun_ExistingThread(t *testing.T) {
	sink := &memSink{}
	if err := runProtocol(t, sink, false); err != nil {
		t.Fatal(err)
	}
	if sink.events[0].Metadata["thread_created"] != false {
		t.Fatalf("expected thread_created=false, got %v", sink.events[0].Metadata)
	}
}

func TestRun_ErrorIsTerminal(t *testing.T) {
	sink := &memSink{}
	err := runProtocol(t, sink, false,
		Event{Type: TypeToken, Content: ptr("partial"), ThreadID: "t1"},
		Event{Type: TypeError, Content: ptr("boom"), ThreadID: "t1"},
		// Anything after the error must not reach the client.
		Event{Type: TypeToken, Content: ptr("late"), ThreadID: "t1"},
	)
	if err != nil {
		t.Fatal(err)
	}

	last := sink.events[len(sink.events)-1]
	if last.Type != TypeError {
		t.Fatalf("expected error as final event, got %+v", last)
	}
	for _, ev := range sink.events {
		if ev.Type == TypeMetadata && ev.Metadata["status"] == "completed" {
			t.Fatal("completed must not follow an error")
		}
	}
}

func TestRun_SinkFailureStops(t *testing.T) {
	sink := &memSink{failAfter: 1}
	err := runProtocol(t, sink, false,
		Event{Type: TypeToken, Content: ptr("a"), ThreadID: "t1"},
		Event{Type: TypeToken, Content: ptr("b"), ThreadID: "t1"},
	)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected only session start delivered, got %d events", len(sink.events))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	sink := &memSink{}
	ch := make(chan Event) // never written
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, sink, "t1", false, ch); err == nil {
		t.Fatal("expected context error")
	}
}

func TestUnavailable(t *testing.T) {
	sink := &memSink{}
	if err := Unavailable(sink, "t1"); err != nil {
		t.Fatal(err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != TypeError || *ev.Content != "agent not initialized" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
