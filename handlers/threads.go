package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"strand/store"
)

type threadHandler struct {
	deps *Deps
}

// threadHistoryResponse is the shared shape of the history, clear and
// archive endpoints.
type threadHistoryResponse struct {
	ThreadID      string           `json:"thread_id"`
	History       []store.Snapshot `json:"history"`
	TotalMessages int              `json:"total_messages"`
	Archived      *bool            `json:"archived,omitempty"`
}

// route dispatches /threads/{id} and /threads/{id}/{op}.
func (h *threadHandler) route(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/threads/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	threadID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "":
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.delete(w, r, threadID)
	case "history":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.history(w, r, threadID)
	case "clear":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.clear(w, r, threadID)
	case "archive":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.archive(w, r, threadID)
	default:
		http.NotFound(w, r)
	}
}

func (h *threadHandler) history(w http.ResponseWriter, r *http.Request, threadID string) {
	limit := store.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	snaps, total, err := h.deps.Store.History(r.Context(), threadID, limit)
	if err != nil {
		h.storeError(w, err, threadID, "retrieve history for")
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}

	writeJSON(w, http.StatusOK, threadHistoryResponse{
		ThreadID:      threadID,
		History:       snaps,
		TotalMessages: total,
	})
}

func (h *threadHandler) delete(w http.ResponseWriter, r *http.Request, threadID string) {
	if err := h.deps.Store.Delete(r.Context(), threadID); err != nil {
		h.storeError(w, err, threadID, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *threadHandler) clear(w http.ResponseWriter, r *http.Request, threadID string) {
	if err := h.deps.Store.Clear(r.Context(), threadID); err != nil {
		h.storeError(w, err, threadID, "clear")
		return
	}

	writeJSON(w, http.StatusOK, threadHistoryResponse{
		ThreadID:      threadID,
		History:       []store.Snapshot{},
		TotalMessages: 0,
	})
}

// archive sets the persisted archived flag and returns the current history,
// unchanged.
func (h *threadHandler) archive(w http.ResponseWriter, r *http.Request, threadID string) {
	meta, err := h.deps.Store.Archive(r.Context(), threadID)
	if err != nil {
		h.storeError(w, err, threadID, "archive")
		return
	}

	snaps, total, err := h.deps.Store.History(r.Context(), threadID, store.DefaultHistoryLimit)
	if err != nil {
		h.storeError(w, err, threadID, "retrieve history for")
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}

	writeJSON(w, http.StatusOK, threadHistoryResponse{
		ThreadID:      threadID,
		History:       snaps,
		TotalMessages: total,
		Archived:      &meta.Archived,
	})
}

// storeError maps store failures onto HTTP status codes: ErrNotFound → 404
// with a descriptive message, anything else → 500 with a generic message and
// the detail logged server-side only.
func (h *threadHandler) storeError(w http.ResponseWriter, err error, threadID, verb string) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Thread %s not found", threadID))
		return
	}
	log.Printf("failed to %s thread %s: %v", verb, threadID, err)
	writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s thread", verb))
}
