package agent

import (
	"fmt"
	"testing"
)

func numbered(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Human(fmt.Sprintf("msg-%d", i))
	}
	return msgs
}

func TestWindow_ShortHistoryUnchanged(t *testing.T) {
	for _, n := range []int{0, 1, 19, 20} {
		msgs := numbered(n)
		got := Window(msgs, 20)
		if len(got) != n {
			t.Fatalf("len %d: expected %d messages, got %d", n, n, len(got))
		}
		for i := range got {
			if got[i].Content != msgs[i].Content {
				t.Fatalf("len %d: message %d changed: %q", n, i, got[i].Content)
			}
		}
	}
}

func TestWindow_LongHistoryKeepsFirstAndTail(t *testing.T) {
	msgs := numbered(30)
	got := Window(msgs, 20)

	if len(got) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(got))
	}
	if got[0].Content != "msg-0" {
		t.Fatalf("expected first message preserved, got %q", got[0].Content)
	}
	// tail is the last 19 of the input
	for i := 1; i < 20; i++ {
		want := fmt.Sprintf("msg-%d", 30-20+i)
		if got[i].Content != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, got[i].Content)
		}
	}
}

func TestWindow_DefaultSize(t *testing.T) {
	msgs := numbered(25)
	got := Window(msgs, 0)
	if len(got) != DefaultWindowSize {
		t.Fatalf("expected %d messages, got %d", DefaultWindowSize, len(got))
	}
}

func TestWindow_DoesNotMutateInput(t *testing.T) {
	msgs := numbered(25)
	before := msgs[1].Content
	_ = Window(msgs, 5)
	if msgs[1].Content != before {
		t.Fatalf("input mutated: %q", msgs[1].Content)
	}
}
