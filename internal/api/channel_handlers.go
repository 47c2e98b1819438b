package api

import (
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/models"
	"clipstream/internal/query"
	"clipstream/internal/storage"
)

// Channels routes /api/channels/{handle} for the public channel profile and
// /api/channels/{handle}/videos for the channel's published uploads.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/channels/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("channel handle missing"))
		return
	}
	handle := parts[0]

	account, exists, err := h.Store.GetAccountByHandle(r.Context(), handle)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", handle))
		return
	}

	switch {
	case len(parts) == 1:
		h.channelProfile(w, r, account)
	case len(parts) == 2 && parts[1] == "videos":
		h.channelVideos(w, r, account)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown channel path"))
	}
}

func (h *Handler) channelProfile(w http.ResponseWriter, r *http.Request, account models.Account) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	ctx := r.Context()
	subscribers, err := h.Store.CountRelations(ctx, models.RelationSubscription, account.ID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	subscribedTo, err := h.Store.CountRelationsByActor(ctx, models.RelationSubscription, account.ID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	profile := models.ChannelProfile{
		Account:           account.Public(),
		CoverURL:          account.CoverURL,
		SubscriberCount:   subscribers,
		SubscribedToCount: subscribedTo,
	}
	if viewer, ok := IdentityFromContext(ctx); ok {
		profile.IsSubscribed, err = h.Store.RelationExists(ctx, models.RelationSubscription, viewer.ID, account.ID)
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) channelVideos(w http.ResponseWriter, r *http.Request, account models.Account) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	params, page, limit := listParams(r)
	pipeline, err := videoComposer.Compose(params)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	pipeline.MatchField("ownerId", account.ID)
	if viewer, ok := IdentityFromContext(r.Context()); !ok || viewer.ID != account.ID {
		pipeline.MatchField("published", true)
	}
	pipeline.Join(query.Join{
		From:         storage.CollectionRelations,
		LocalField:   "id",
		ForeignField: "targetId",
		As:           "likeCount",
		Count:        true,
		Pipeline:     query.NewPipeline().MatchField("kind", string(models.RelationLikeVideo)),
	})

	result, err := h.engine.Paginate(r.Context(), storage.CollectionVideos, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
