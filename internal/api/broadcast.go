package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tgcast/internal/broadcast"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.d.Store.Ping(ctx); err != nil {
		h.log.Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "storage": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "storage": "up"})
}

func (h *handler) startBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcast.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.d.Broadcaster.Start(req); err != nil {
		var re *broadcast.RequestError
		if errors.As(err, &re) {
			writeError(w, http.StatusBadRequest, re.Reason)
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": "Broadcast started"})
}

func (h *handler) broadcastStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.d.Queue.Stats(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	out := map[string]any{"queue": st}
	if h.d.ConsumerStats != nil {
		out["dispatcher"] = h.d.ConsumerStats()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) broadcastFailed(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 1000 {
		n = v
	}
	jobs, err := h.d.Queue.Failed(r.Context(), n)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if jobs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
