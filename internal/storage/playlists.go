package storage

import (
	"context"
	"strings"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

// PlaylistUpdate mutates playlist metadata. Nil fields are left unchanged.
type PlaylistUpdate struct {
	Name        *string
	Description *string
}

// CreatePlaylist starts an empty playlist owned by ownerID.
func (s *Storage) CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error) {
	const op = "storage.CreatePlaylist"
	if err := checkContext(ctx, op); err != nil {
		return models.Playlist{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Playlist{}, apperr.Validation(op, "name is required")
	}
	var playlist models.Playlist
	err := s.mutate(op, func(data *dataset) error {
		if _, ok := data.Accounts[ownerID]; !ok {
			return apperr.NotFound(op, "account not found")
		}
		now := s.now().UTC()
		playlist = models.Playlist{
			ID:          s.newID(),
			OwnerID:     ownerID,
			Name:        name,
			Description: strings.TrimSpace(description),
			VideoIDs:    []string{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		data.Playlists[playlist.ID] = playlist
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// GetPlaylist fetches a playlist by id.
func (s *Storage) GetPlaylist(ctx context.Context, id string) (models.Playlist, bool, error) {
	if err := checkContext(ctx, "storage.GetPlaylist"); err != nil {
		return models.Playlist{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	playlist, ok := s.data.Playlists[id]
	if ok && playlist.VideoIDs != nil {
		playlist.VideoIDs = append([]string(nil), playlist.VideoIDs...)
	}
	return playlist, ok, nil
}

// UpdatePlaylist mutates playlist metadata.
func (s *Storage) UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) (models.Playlist, error) {
	const op = "storage.UpdatePlaylist"
	if err := checkContext(ctx, op); err != nil {
		return models.Playlist{}, err
	}
	var playlist models.Playlist
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Playlists[id]
		if !ok {
			return apperr.NotFound(op, "playlist not found")
		}
		if update.Name != nil {
			trimmed := strings.TrimSpace(*update.Name)
			if trimmed == "" {
				return apperr.Validation(op, "name cannot be empty")
			}
			current.Name = trimmed
		}
		if update.Description != nil {
			current.Description = strings.TrimSpace(*update.Description)
		}
		current.UpdatedAt = s.now().UTC()
		data.Playlists[id] = current
		playlist = current
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// DeletePlaylist removes the playlist. Videos it references are untouched.
func (s *Storage) DeletePlaylist(ctx context.Context, id string) error {
	const op = "storage.DeletePlaylist"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		if _, ok := data.Playlists[id]; !ok {
			return apperr.NotFound(op, "playlist not found")
		}
		delete(data.Playlists, id)
		return nil
	})
}

// AddPlaylistVideo appends a video reference. Adding a video that is already
// in the playlist is a conflict.
func (s *Storage) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	const op = "storage.AddPlaylistVideo"
	if err := checkContext(ctx, op); err != nil {
		return models.Playlist{}, err
	}
	var playlist models.Playlist
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Playlists[playlistID]
		if !ok {
			return apperr.NotFound(op, "playlist not found")
		}
		if _, ok := data.Videos[videoID]; !ok {
			return apperr.NotFound(op, "video not found")
		}
		for _, existing := range current.VideoIDs {
			if existing == videoID {
				return apperr.Conflict(op, "video already in playlist")
			}
		}
		current.VideoIDs = append(current.VideoIDs, videoID)
		current.UpdatedAt = s.now().UTC()
		data.Playlists[playlistID] = current
		playlist = current
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// RemovePlaylistVideo drops a video reference. Removing a video that is not in
// the playlist reports not found.
func (s *Storage) RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	const op = "storage.RemovePlaylistVideo"
	if err := checkContext(ctx, op); err != nil {
		return models.Playlist{}, err
	}
	var playlist models.Playlist
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Playlists[playlistID]
		if !ok {
			return apperr.NotFound(op, "playlist not found")
		}
		kept := current.VideoIDs[:0]
		for _, existing := range current.VideoIDs {
			if existing != videoID {
				kept = append(kept, existing)
			}
		}
		if len(kept) == len(current.VideoIDs) {
			return apperr.NotFound(op, "video not in playlist")
		}
		current.VideoIDs = kept
		current.UpdatedAt = s.now().UTC()
		data.Playlists[playlistID] = current
		playlist = current
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}
