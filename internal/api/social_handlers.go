package api

import (
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/models"
	"clipstream/internal/query"
	"clipstream/internal/storage"
)

type toggleResponse struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

// Likes routes /api/likes/{videos|comments|tweets}/{id} toggles, plus
// /api/likes/videos for the caller's liked-video listing.
func (h *Handler) Likes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/likes/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("like target missing"))
		return
	}

	var kind models.RelationKind
	switch parts[0] {
	case "videos":
		kind = models.RelationLikeVideo
	case "comments":
		kind = models.RelationLikeComment
	case "tweets":
		kind = models.RelationLikeTweet
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown like target %q", parts[0]))
		return
	}

	if len(parts) == 1 {
		if kind != models.RelationLikeVideo {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown like path"))
			return
		}
		h.listLikedVideos(w, r)
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown like path"))
		return
	}
	h.toggleLike(w, r, kind, parts[1])
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request, kind models.RelationKind, targetID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	state, err := h.Store.ToggleRelation(r.Context(), kind, identity.ID, targetID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	count, err := h.Store.CountRelations(r.Context(), kind, targetID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{State: string(state), Count: count})
}

// listLikedVideos pages through the videos the caller has liked, joining each
// liked relation to its video.
func (h *Handler) listLikedVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	_, page, limit := listParams(r)

	pipeline := query.NewPipeline().
		MatchField("kind", string(models.RelationLikeVideo)).
		MatchField("actorId", identity.ID).
		SortBy("createdAt", true).
		Join(query.Join{
			From:         storage.CollectionVideos,
			LocalField:   "targetId",
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
		Project("id", "createdAt", "video")

	result, err := h.engine.Paginate(r.Context(), storage.CollectionRelations, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Subscriptions routes /api/subscriptions for the caller's subscribed
// channels, /api/subscriptions/{channelId} for the toggle, and
// /api/subscriptions/{channelId}/subscribers for a channel's subscriber list.
func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/subscriptions")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 1 && parts[0] == "" {
		h.listSubscribedChannels(w, r)
		return
	}
	channelID := parts[0]
	switch {
	case len(parts) == 1:
		h.toggleSubscription(w, r, channelID)
	case len(parts) == 2 && parts[1] == "subscribers":
		h.listSubscribers(w, r, channelID)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown subscription path"))
	}
}

// toggleSubscription flips the caller's subscription to the channel.
// Subscribing to yourself is rejected.
func (h *Handler) toggleSubscription(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if identity.ID == channelID {
		writeError(w, http.StatusBadRequest, fmt.Errorf("cannot subscribe to your own channel"))
		return
	}
	state, err := h.Store.ToggleRelation(r.Context(), models.RelationSubscription, identity.ID, channelID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	count, err := h.Store.CountRelations(r.Context(), models.RelationSubscription, channelID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{State: string(state), Count: count})
}

func (h *Handler) listSubscribedChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	_, page, limit := listParams(r)

	pipeline := query.NewPipeline().
		MatchField("kind", string(models.RelationSubscription)).
		MatchField("actorId", identity.ID).
		SortBy("createdAt", true).
		Join(query.Join{
			From:         storage.CollectionAccounts,
			LocalField:   "targetId",
			ForeignField: "id",
			As:           "channel",
			First:        true,
			Pipeline:     query.NewPipeline().Project("id", "handle", "displayName", "avatarUrl"),
		}).
		Project("id", "createdAt", "channel")

	result, err := h.engine.Paginate(r.Context(), storage.CollectionRelations, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listSubscribers(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	if _, exists, err := h.Store.GetAccount(r.Context(), channelID); err != nil {
		writeAppError(w, h.Logger, err)
		return
	} else if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", channelID))
		return
	}
	_, page, limit := listParams(r)

	pipeline := query.NewPipeline().
		MatchField("kind", string(models.RelationSubscription)).
		MatchField("targetId", channelID).
		SortBy("createdAt", true).
		Join(query.Join{
			From:         storage.CollectionAccounts,
			LocalField:   "actorId",
			ForeignField: "id",
			As:           "subscriber",
			First:        true,
			Pipeline:     query.NewPipeline().Project("id", "handle", "displayName", "avatarUrl"),
		}).
		Project("id", "createdAt", "subscriber")

	result, err := h.engine.Paginate(r.Context(), storage.CollectionRelations, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
