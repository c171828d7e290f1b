package agent

// DefaultWindowSize is the default maximum number of messages sent to the
// model per turn.
const DefaultWindowSize = 20

// Window bounds a conversation history to at most max messages before a model
// call. Histories of max or fewer messages are returned unchanged. Longer
// histories keep the first message (which carries the system/task framing)
// followed by the most recent max-1 messages; everything in between is
// dropped. The input slice is never mutated; callers needing full history
// read the thread store, not this windowed view.
func Window(msgs []Message, max int) []Message {
	if max <= 0 {
		max = DefaultWindowSize
	}
	if len(msgs) <= max {
		return msgs
	}

	out := make([]Message, 0, max)
	out = append(out, msgs[0])
	out = append(out, msgs[len(msgs)-(max-1):]...)
	return out
}
