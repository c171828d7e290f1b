package handlers

import "net/http"

type systemHandler struct {
	deps *Deps
}

func (h *systemHandler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "strand",
		"version": Version,
		"status":  "operational",
	})
}

func (h *systemHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"service":           "strand",
		"version":           Version,
		"agent_initialized": h.deps.Agent != nil,
	})
}

func (h *systemHandler) info(w http.ResponseWriter, r *http.Request) {
	model := ""
	tools := []string{}
	if h.deps.Agent != nil {
		model = h.deps.Agent.Model()
		tools = h.deps.Agent.Tools()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": map[string]string{
			"name":        "strand",
			"description": "Conversational agent with thread persistence",
			"version":     Version,
		},
		"agent": map[string]any{
			"model": model,
			"tools": tools,
		},
		"features": map[string]bool{
			"streaming":         true,
			"persistence":       true,
			"thread_management": true,
		},
		"endpoints": map[string]string{
			"stream":         "/chat/stream",
			"websocket":      "/chat/ws",
			"thread_history": "/threads/{thread_id}/history",
			"delete_thread":  "/threads/{thread_id}",
			"clear_thread":   "/threads/{thread_id}/clear",
			"archive_thread": "/threads/{thread_id}/archive",
		},
	})
}
