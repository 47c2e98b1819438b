package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"clipstream/internal/auth"
	"clipstream/internal/media"
	"clipstream/internal/models"
	"clipstream/internal/query"
	"clipstream/internal/storage"
)

// videoComposer validates listing parameters against the allowed surface.
// Sort and filter names are allow-listed so callers can never order or filter
// by fields the API does not expose.
var videoComposer = query.NewComposer(
	query.WithTextFields("title", "description"),
	query.WithFilterField("userId", "ownerId"),
	query.WithSortFields("createdAt", "views", "title", "durationSeconds"),
	query.WithDefaultSort("createdAt", true),
)

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type videoDetailResponse struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	MediaURL        string               `json:"mediaUrl"`
	ThumbnailURL    string               `json:"thumbnailUrl,omitempty"`
	DurationSeconds int                  `json:"durationSeconds,omitempty"`
	Views           int64                `json:"views"`
	Published       bool                 `json:"published"`
	Owner           models.PublicAccount `json:"owner"`
	LikeCount       int                  `json:"likeCount"`
	Liked           bool                 `json:"liked"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt"`
}

func (h *Handler) newVideoDetail(r *http.Request, video models.Video, viewer auth.Identity) (videoDetailResponse, error) {
	ctx := r.Context()
	owner, _, err := h.Store.GetAccount(ctx, video.OwnerID)
	if err != nil {
		return videoDetailResponse{}, err
	}
	likeCount, err := h.Store.CountRelations(ctx, models.RelationLikeVideo, video.ID)
	if err != nil {
		return videoDetailResponse{}, err
	}
	liked := false
	if viewer.ID != "" {
		liked, err = h.Store.RelationExists(ctx, models.RelationLikeVideo, viewer.ID, video.ID)
		if err != nil {
			return videoDetailResponse{}, err
		}
	}
	return videoDetailResponse{
		ID:              video.ID,
		Title:           video.Title,
		Description:     video.Description,
		MediaURL:        video.MediaURL,
		ThumbnailURL:    video.ThumbnailURL,
		DurationSeconds: video.DurationSeconds,
		Views:           video.Views,
		Published:       video.Published,
		Owner:           owner.Public(),
		LikeCount:       likeCount,
		Liked:           liked,
		CreatedAt:       video.CreatedAt.Format(timeFormat),
		UpdatedAt:       video.UpdatedAt.Format(timeFormat),
	}, nil
}

// listParams reads the shared listing query parameters.
func listParams(r *http.Request, filterNames ...string) (query.Params, int, int) {
	values := r.URL.Query()
	params := query.Params{
		Search:    strings.TrimSpace(values.Get("query")),
		SortBy:    strings.TrimSpace(values.Get("sortBy")),
		SortOrder: strings.TrimSpace(values.Get("sortType")),
	}
	for _, name := range filterNames {
		if value := strings.TrimSpace(values.Get(name)); value != "" {
			params.Filters = append(params.Filters, query.Filter{Param: name, Value: value})
		}
	}
	page, _ := strconv.Atoi(values.Get("page"))
	limit, _ := strconv.Atoi(values.Get("limit"))
	return params, page, limit
}

func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listVideos(w, r)
	case http.MethodPost:
		h.uploadVideo(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// listVideos runs the composed pipeline: allow-listed filters and sort, a
// folded text search, owner join, and like counts, paginated from one
// snapshot. Unpublished videos appear only in the owner's own listing.
func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	params, page, limit := listParams(r, "userId")

	pipeline, err := videoComposer.Compose(params)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}

	ownOnly := false
	if identity, ok := IdentityFromContext(r.Context()); ok {
		for _, filter := range params.Filters {
			if filter.Param == "userId" && filter.Value == identity.ID {
				ownOnly = true
			}
		}
	}
	if !ownOnly {
		pipeline.MatchField("published", true)
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
			Pipeline:     query.NewPipeline().MatchField("kind", string(models.RelationLikeVideo)),
		})

	result, err := h.engine.Paginate(r.Context(), storage.CollectionVideos, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// uploadVideo stores the video and thumbnail assets concurrently, then
// records the video. Asset failures leave no partial uploads behind.
func (h *Handler) uploadVideo(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}
	videoFile, videoHeader, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("form file %q is required", "video"))
		return
	}
	defer videoFile.Close()

	uploads := []media.Upload{{Name: videoHeader.Filename, Reader: videoFile}}
	if thumbFile, thumbHeader, found := optionalFormFile(r, "thumbnail"); found {
		defer thumbFile.Close()
		uploads = append(uploads, media.Upload{Name: thumbHeader.Filename, Reader: thumbFile})
	}

	objects, err := media.StoreAll(r.Context(), h.Media, uploads...)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}

	duration, _ := strconv.Atoi(r.FormValue("durationSeconds"))
	params := storage.CreateVideoParams{
		OwnerID:         identity.ID,
		Title:           title,
		Description:     r.FormValue("description"),
		MediaID:         objects[0].ID,
		MediaURL:        objects[0].URL,
		DurationSeconds: duration,
		Published:       true,
	}
	if len(objects) > 1 {
		params.ThumbnailID = objects[1].ID
		params.ThumbnailURL = objects[1].URL
	}

	video, err := h.Store.CreateVideo(r.Context(), params)
	if err != nil {
		for _, object := range objects {
			_ = h.Media.Delete(r.Context(), object.ID)
		}
		writeAppError(w, h.Logger, err)
		return
	}

	detail, err := h.newVideoDetail(r, video, identity)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id missing"))
		return
	}
	videoID := parts[0]

	if len(parts) == 2 && parts[1] == "publish" {
		h.togglePublish(w, r, videoID)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown video path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getVideo(w, r, videoID)
	case http.MethodPatch:
		h.updateVideo(w, r, videoID)
	case http.MethodDelete:
		h.deleteVideo(w, r, videoID)
	default:
		methodNotAllowed(w, r, "GET, PATCH, DELETE")
	}
}

// getVideo serves the video detail and records the watch. Unpublished videos
// are visible only to their owner; everyone else sees not found rather than a
// hint that the video exists.
func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	video, exists, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}
	viewer, _ := IdentityFromContext(r.Context())
	if !video.Published && video.OwnerID != viewer.ID {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}

	video, err = h.Store.RecordView(r.Context(), viewer.ID, videoID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	detail, err := h.newVideoDetail(r, video, viewer)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) updateVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	video, ok := h.requireOwnedVideo(w, r, videoID)
	if !ok {
		return
	}
	var req updateVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	video, err := h.Store.UpdateVideo(r.Context(), video.ID, storage.VideoUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	identity, _ := IdentityFromContext(r.Context())
	detail, err := h.newVideoDetail(r, video, identity)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	video, ok := h.requireOwnedVideo(w, r, videoID)
	if !ok {
		return
	}
	if err := h.Store.DeleteVideo(r.Context(), video.ID); err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	for _, assetID := range []string{video.MediaID, video.ThumbnailID} {
		if assetID == "" {
			continue
		}
		if err := h.Media.Delete(r.Context(), assetID); err != nil {
			h.Logger.Warn("delete video asset", "asset_id", assetID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) togglePublish(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH")
		return
	}
	video, ok := h.requireOwnedVideo(w, r, videoID)
	if !ok {
		return
	}
	video, err := h.Store.TogglePublish(r.Context(), video.ID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        video.ID,
		"published": video.Published,
	})
}

// requireOwnedVideo resolves the video and checks ownership. Existence is
// checked first, so a missing video reports not found even to strangers.
func (h *Handler) requireOwnedVideo(w http.ResponseWriter, r *http.Request, videoID string) (models.Video, bool) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return models.Video{}, false
	}
	video, exists, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return models.Video{}, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return models.Video{}, false
	}
	if err := auth.RequireOwner("api.video", identity, video.OwnerID); err != nil {
		writeAppError(w, h.Logger, err)
		return models.Video{}, false
	}
	return video, true
}
