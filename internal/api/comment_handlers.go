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

var commentComposer = query.NewComposer(
	query.WithSortFields("createdAt"),
	query.WithDefaultSort("createdAt", true),
)

type commentBodyRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	ID        string `json:"id"`
	VideoID   string `json:"videoId"`
	OwnerID   string `json:"ownerId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func newCommentResponse(comment models.Comment) commentResponse {
	return commentResponse{
		ID:        comment.ID,
		VideoID:   comment.VideoID,
		OwnerID:   comment.OwnerID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt.Format(timeFormat),
		UpdatedAt: comment.UpdatedAt.Format(timeFormat),
	}
}

// Comments routes /api/comments/{videoId} for listing and adding, and
// /api/comments/c/{commentId} for editing and deleting a single comment.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/comments/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id missing"))
		return
	}

	if parts[0] == "c" {
		if len(parts) != 2 || parts[1] == "" {
			writeError(w, http.StatusNotFound, fmt.Errorf("comment id missing"))
			return
		}
		h.commentByID(w, r, parts[1])
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown comment path"))
		return
	}
	videoID := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.listComments(w, r, videoID)
	case http.MethodPost:
		h.addComment(w, r, videoID)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, exists, err := h.Store.GetVideo(r.Context(), videoID); err != nil {
		writeAppError(w, h.Logger, err)
		return
	} else if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}

	params, page, limit := listParams(r)
	pipeline, err := commentComposer.Compose(params)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	pipeline.
		MatchField("videoId", videoID).
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
			Pipeline:     query.NewPipeline().MatchField("kind", string(models.RelationLikeComment)),
		})

	result, err := h.engine.Paginate(r.Context(), storage.CollectionComments, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request, videoID string) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req commentBodyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comment, err := h.Store.AddComment(r.Context(), identity.ID, videoID, req.Content)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCommentResponse(comment))
}

func (h *Handler) commentByID(w http.ResponseWriter, r *http.Request, commentID string) {
	switch r.Method {
	case http.MethodPatch:
		comment, ok := h.requireOwnedComment(w, r, commentID)
		if !ok {
			return
		}
		var req commentBodyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment, err := h.Store.UpdateComment(r.Context(), comment.ID, req.Content)
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newCommentResponse(comment))
	case http.MethodDelete:
		comment, ok := h.requireOwnedComment(w, r, commentID)
		if !ok {
			return
		}
		if err := h.Store.DeleteComment(r.Context(), comment.ID); err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "PATCH, DELETE")
	}
}

func (h *Handler) requireOwnedComment(w http.ResponseWriter, r *http.Request, commentID string) (models.Comment, bool) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return models.Comment{}, false
	}
	comment, exists, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return models.Comment{}, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("comment %s not found", commentID))
		return models.Comment{}, false
	}
	if err := auth.RequireOwner("api.comment", identity, comment.OwnerID); err != nil {
		writeAppError(w, h.Logger, err)
		return models.Comment{}, false
	}
	return comment, true
}
