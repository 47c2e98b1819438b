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

var playlistComposer = query.NewComposer(
	query.WithTextFields("name", "description"),
	query.WithFilterField("userId", "ownerId"),
	query.WithSortFields("createdAt", "name"),
	query.WithDefaultSort("createdAt", true),
)

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updatePlaylistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type playlistResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	VideoIDs    []string `json:"videoIds"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func newPlaylistResponse(playlist models.Playlist) playlistResponse {
	return playlistResponse{
		ID:          playlist.ID,
		OwnerID:     playlist.OwnerID,
		Name:        playlist.Name,
		Description: playlist.Description,
		VideoIDs:    append([]string{}, playlist.VideoIDs...),
		CreatedAt:   playlist.CreatedAt.Format(timeFormat),
		UpdatedAt:   playlist.UpdatedAt.Format(timeFormat),
	}
}

func (h *Handler) Playlists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPlaylists(w, r)
	case http.MethodPost:
		h.createPlaylist(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (h *Handler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	params, page, limit := listParams(r, "userId")
	pipeline, err := playlistComposer.Compose(params)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	pipeline.Join(query.Join{
		From:         storage.CollectionAccounts,
		LocalField:   "ownerId",
		ForeignField: "id",
		As:           "owner",
		First:        true,
		Pipeline:     query.NewPipeline().Project("id", "handle", "displayName", "avatarUrl"),
	})

	result, err := h.engine.Paginate(r.Context(), storage.CollectionPlaylists, pipeline, page, limit)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	playlist, err := h.Store.CreatePlaylist(r.Context(), identity.ID, req.Name, req.Description)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlaylistResponse(playlist))
}

// PlaylistByID routes /api/playlists/{id} plus the nested
// /api/playlists/{id}/videos/{videoId} membership operations.
func (h *Handler) PlaylistByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/playlists/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("playlist id missing"))
		return
	}
	playlistID := parts[0]

	if len(parts) == 3 && parts[1] == "videos" {
		h.playlistVideo(w, r, playlistID, parts[2])
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown playlist path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		playlist, exists, err := h.Store.GetPlaylist(r.Context(), playlistID)
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("playlist %s not found", playlistID))
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	case http.MethodPatch:
		playlist, ok := h.requireOwnedPlaylist(w, r, playlistID)
		if !ok {
			return
		}
		var req updatePlaylistRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		playlist, err := h.Store.UpdatePlaylist(r.Context(), playlist.ID, storage.PlaylistUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	case http.MethodDelete:
		playlist, ok := h.requireOwnedPlaylist(w, r, playlistID)
		if !ok {
			return
		}
		if err := h.Store.DeletePlaylist(r.Context(), playlist.ID); err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "GET, PATCH, DELETE")
	}
}

func (h *Handler) playlistVideo(w http.ResponseWriter, r *http.Request, playlistID, videoID string) {
	playlist, ok := h.requireOwnedPlaylist(w, r, playlistID)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		playlist, err := h.Store.AddPlaylistVideo(r.Context(), playlist.ID, videoID)
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	case http.MethodDelete:
		playlist, err := h.Store.RemovePlaylistVideo(r.Context(), playlist.ID, videoID)
		if err != nil {
			writeAppError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
	default:
		methodNotAllowed(w, r, "POST, DELETE")
	}
}

func (h *Handler) requireOwnedPlaylist(w http.ResponseWriter, r *http.Request, playlistID string) (models.Playlist, bool) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return models.Playlist{}, false
	}
	playlist, exists, err := h.Store.GetPlaylist(r.Context(), playlistID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return models.Playlist{}, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("playlist %s not found", playlistID))
		return models.Playlist{}, false
	}
	if err := auth.RequireOwner("api.playlist", identity, playlist.OwnerID); err != nil {
		writeAppError(w, h.Logger, err)
		return models.Playlist{}, false
	}
	return playlist, true
}
