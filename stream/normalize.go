package stream

import (
	"context"
	"time"

	"strand/agent"
)

// Normalize consumes one agent run's raw event stream and produces the
// canonical event sequence for it. Per raw unit:
//
//   - token with non-empty text  → token event; metadata is the call-level
//     context merged with the chunk's own metadata, chunk keys winning
//   - tool_start / tool_end      → tool_event with a JSON-safe projection of
//     the boundary payload in metadata and null content
//   - error                      → error event carrying the message text
//   - anything else              → dropped, by design: unknown raw shapes
//     must not break the client-facing schema
//
// Emission order is preserved and no buffering happens beyond the returned
// channel. The output channel closes when raw closes or ctx is cancelled.
func Normalize(ctx context.Context, raw <-chan agent.RawEvent, threadID string) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				canonical, emit := normalizeOne(ev, threadID)
				if !emit {
					continue
				}
				select {
				case out <- canonical:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// normalizeOne maps one raw unit to its canonical event. The second return is
// false when the unit has no canonical representation.
func normalizeOne(ev agent.RawEvent, threadID string) (Event, bool) {
	switch ev.Kind {
	case agent.RawToken:
		if ev.Text == "" {
			return Event{}, false
		}
		return Event{
			Type:     TypeToken,
			Content:  ptr(ev.Text),
			ThreadID: threadID,
			Metadata: mergeMeta(callMeta(threadID), ev.Meta),
		}, true

	case agent.RawToolStart, agent.RawToolEnd:
		boundary := "tool_start"
		if ev.Kind == agent.RawToolEnd {
			boundary = "tool_end"
		}
		payload := map[string]any{
			"event": boundary,
			"name":  ev.Tool,
		}
		if ev.CallID != "" {
			payload["tool_call_id"] = ev.CallID
		}
		if ev.Payload != nil {
			payload["data"] = ev.Payload
		}
		return Event{
			Type:     TypeToolEvent,
			Content:  nil,
			ThreadID: threadID,
			Metadata: Sanitize(payload).(map[string]any),
		}, true

	case agent.RawError:
		msg := "unknown error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return Event{
			Type:     TypeError,
			Content:  ptr(msg),
			ThreadID: threadID,
			Metadata: callMeta(threadID),
		}, true

	default:
		// model_start, model_end, done, and anything unrecognized carry no
		// client-facing information.
		return Event{}, false
	}
}

// callMeta is the call-level metadata attached to every canonical event.
func callMeta(threadID string) map[string]any {
	return map[string]any{
		"thread_id": threadID,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// mergeMeta overlays chunk-level metadata onto call-level metadata;
// chunk keys win on conflict.
func mergeMeta(call, chunk map[string]any) map[string]any {
	if len(chunk) == 0 {
		return call
	}
	out := make(map[string]any, len(call)+len(chunk))
	for k, v := range call {
		out[k] = v
	}
	for k, v := range chunk {
		out[k] = Sanitize(v)
	}
	return out
}
