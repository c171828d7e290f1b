// Package handlers exposes the chat streaming and thread lifecycle HTTP
// surface. All shared state is injected through Deps; there are no package
// globals.
package handlers

import (
	"encoding/json"
	"net/http"

	"strand/agent"
	"strand/store"
)

// Version is reported by the system endpoints.
const Version = "1.0.0"

// Deps holds shared dependencies injected into handlers. A nil Agent marks
// the driver as unavailable: chat requests then stream a single in-band
// error event instead of failing at the transport level.
type Deps struct {
	Agent *agent.Agent
	Store *store.Store
}

// RegisterRoutes registers all routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	ch := &chatHandler{deps: deps}
	th := &threadHandler{deps: deps}
	sh := &systemHandler{deps: deps}

	mux.HandleFunc("/chat/stream", ch.stream)
	mux.HandleFunc("/chat/ws", ch.ws)
	mux.HandleFunc("/threads/", th.route)
	mux.HandleFunc("/health", sh.health)
	mux.HandleFunc("/info", sh.info)
	mux.HandleFunc("/", sh.root)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
