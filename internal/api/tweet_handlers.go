package api

import (
	"fmt"
	"net/http"
	"strings"

	"clipstream/internal/auth"
	"clipstream/internal/models"
	"clipstream/internal/query"
	"clipstream/internal/storage"
)

var tweetComposer = query.NewComposer(
	query.WithTextFields("content"),
	query.WithFilterField("userId", "ownerId"),
	query.WithSortFields("createdAt"),
	query.WithDefaultSort("createdAt", true),
)

type tweetBodyRequest struct {
	Content string `json:"content"`
}

type tweetResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func newTweetResponse(tweet models.Tweet) tweetResponse {
	return tweetResponse{
		ID:        tweet.ID,
		OwnerID:   tweet.OwnerID,
		Content:   tweet.Content,
		CreatedAt: tweet.CreatedAt.Format(timeFormat),
		UpdatedAt: tweet.UpdatedAt.Format(timeFormat),
	}
}

func (h *Handler) Tweets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTweets(w, r)
	case http.MethodPost:
		h.addTweet(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (h *Handler) listTweets(w http.ResponseWriter, r *http.Request) {
	params, page, limit := listParams(r, "userId")
	pipeline, err := tweetComposer.Compose(params)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	pipeline.
		Join(query.Join{
			From:         storage.CollectionAccounts,
			LocalField:   "ownerId",
			ForeignField: "id",
			As:           "owner",
			First:        true,
			Pipeline:     query.NewPipeline().Project("id", "handle", "displayName", "avatarUrl"),
		}).
		Join(query.Join{
			From:         storage.CollectionRelations,
			LocalField:   "id",
			ForeignField: "targetId",
			As:           "likeCount",
			Count:        true,
			Pipeline:     query.NewPipeline().MatchField("kind", string(models.RelationLikeTweet)),
		})

	result, err := h.engine.Paginate(r.Context(), storage.CollectionTweets, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) addTweet(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req tweetBodyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tweet, err := h.Store.AddTweet(r.Context(), identity.ID, req.Content)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTweetResponse(tweet))
}

func (h *Handler) TweetByID(w http.ResponseWriter, r *http.Request) {
	tweetID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tweets/"), "/")
	if tweetID == "" || strings.Contains(tweetID, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("tweet id missing"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		tweet, ok := h.requireOwnedTweet(w, r, tweetID)
		if !ok {
			return
		}
		var req tweetBodyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tweet, err := h.Store.UpdateTweet(r.Context(), tweet.ID, req.Content)
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newTweetResponse(tweet))
	case http.MethodDelete:
		tweet, ok := h.requireOwnedTweet(w, r, tweetID)
		if !ok {
			return
		}
		if err := h.Store.DeleteTweet(r.Context(), tweet.ID); err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "PATCH, DELETE")
	}
}

func (h *Handler) requireOwnedTweet(w http.ResponseWriter, r *http.Request, tweetID string) (models.Tweet, bool) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return models.Tweet{}, false
	}
	tweet, exists, err := h.Store.GetTweet(r.Context(), tweetID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return models.Tweet{}, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("tweet %s not found", tweetID))
		return models.Tweet{}, false
	}
	if err := auth.RequireOwner("api.tweet", identity, tweet.OwnerID); err != nil {
		writeAppError(w, h.Logger, err)
		return models.Tweet{}, false
	}
	return tweet, true
}
