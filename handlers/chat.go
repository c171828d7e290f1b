package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"strand/agent"
	"strand/stream"
)

type chatHandler struct {
	deps *Deps
}

// streamRequest is the body of POST /chat/stream and the first websocket
// message on /chat/ws. SessionMetadata is accepted for forward compatibility
// and currently unused.
type streamRequest struct {
	Input           string         `json:"input"`
	ThreadID        *string        `json:"thread_id"`
	SessionMetadata map[string]any `json:"session_metadata"`
}

// resolveThread returns the effective thread id and whether a new one was
// minted for this request.
func resolveThread(req *streamRequest) (string, bool) {
	if req.ThreadID != nil && *req.ThreadID != "" {
		return *req.ThreadID, false
	}
	return uuid.NewString(), true
}

// stream handles POST /chat/stream: one NDJSON line per canonical event.
// Once the body has begun the status is committed to 200; every later
// failure is an in-band error event.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSONError(w, http.StatusBadRequest, "input must not be empty")
		return
	}

	threadID, created := resolveThread(&req)
	w.Header().Set("X-Thread-ID", threadID)

	sw := stream.NewWriter(w)
	if sw == nil {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h.run(r, sw, &req, threadID, created)
}

// ws handles GET /chat/ws: the same canonical protocol, one JSON text
// message per event. The client sends a single streamRequest and the
// connection closes after the terminal event.
func (h *chatHandler) ws(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already replied
	}
	defer conn.Close()

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(map[string]string{"error": "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		conn.WriteJSON(map[string]string{"error": "input must not be empty"})
		return
	}

	threadID, created := resolveThread(&req)
	h.run(r, wsSink{conn}, &req, threadID, created)
}

// run drives one chat exchange against sink.
func (h *chatHandler) run(r *http.Request, sink stream.Sink, req *streamRequest, threadID string, created bool) {
	if h.deps.Agent == nil {
		stream.Unavailable(sink, threadID)
		return
	}

	ctx := r.Context()

	raw := make(chan agent.RawEvent, 64)
	go h.deps.Agent.Run(ctx, req.Input, threadID, raw)

	events := stream.Normalize(ctx, raw, threadID)
	if err := stream.Run(ctx, sink, threadID, created, events); err != nil {
		// Transport gone; the producer side has already been cancelled.
		log.Printf("chat stream ended early for thread %s: %v", threadID, err)
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSink adapts a websocket connection to the stream.Sink interface.
type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(ev stream.Event) error {
	return s.conn.WriteJSON(ev)
}
