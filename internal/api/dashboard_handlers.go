package api

import (
	"net/http"

	"clipstream/internal/query"
	"clipstream/internal/storage"
)

// DashboardStats serves the caller's channel counters.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	stats, err := h.Store.ChannelStats(r.Context(), identity.ID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// History serves and clears the caller's watch history. Entries join through
// the watched video to its owner, one nested level.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listHistory(w, r)
	case http.MethodDelete:
		h.clearHistory(w, r)
	default:
		methodNotAllowed(w, r, "GET, DELETE")
	}
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	_, page, limit := listParams(r)

	pipeline := query.NewPipeline().
		MatchField("accountId", identity.ID).
		SortBy("watchedAt", true).
		Join(query.Join{
			From:         storage.CollectionVideos,
			LocalField:   "videoId",
			ForeignField: "id",
			As:           "video",
			First:        true,
			Pipeline: query.NewPipeline().Join(query.Join{
				From:         storage.CollectionAccounts,
				LocalField:   "ownerId",
				ForeignField: "id",
				As:           "owner",
				First:        true,
				Pipeline:     query.NewPipeline().Project("id", "handle", "displayName", "avatarUrl"),
			}),
		}).
		Project("id", "watchedAt", "video")

	result, err := h.engine.Paginate(r.Context(), storage.CollectionHistory, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.Store.ClearWatchHistory(r.Context(), identity.ID); err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports storage reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		h.Logger.Error("storage health check failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"status": status})
}
