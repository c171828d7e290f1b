package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink receives canonical events one at a time. A Send error means the
// transport is gone; the protocol driver stops consuming immediately so no
// raw event processing continues after the client disconnects.
type Sink interface {
	Send(ev Event) error
}

// Run drives the canonical protocol for one chat request: a session-start
// metadata event, then every normalized event as it arrives, then a terminal
// metadata event with status=completed, unless an error event already
// terminated the stream, in which case nothing follows it.
//
// The returned error reports transport failure only; agent-side faults have
// already been folded into the event stream as in-band error events.
func Run(ctx context.Context, sink Sink, threadID string, threadCreated bool, events <-chan Event) error {
	start := Event{
		Type:     TypeMetadata,
		ThreadID: threadID,
		Metadata: map[string]any{
			"request_id":     uuid.NewString(),
			"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
			"thread_created": threadCreated,
		},
	}
	if err := sink.Send(start); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return sink.Send(completed(threadID))
			}
			if err := sink.Send(ev); err != nil {
				return err
			}
			if ev.Type == TypeError {
				// Error is the terminus; nothing follows it.
				return nil
			}
		}
	}
}

// Unavailable emits the single error event used when the agent driver is not
// initialized: the first and only event of the stream.
func Unavailable(sink Sink, threadID string) error {
	return sink.Send(Event{
		Type:     TypeError,
		Content:  ptr("agent not initialized"),
		ThreadID: threadID,
	})
}

func completed(threadID string) Event {
	return Event{
		Type:     TypeMetadata,
		ThreadID: threadID,
		Metadata: map[string]any{
			"status":    "completed",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}
