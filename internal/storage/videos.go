package storage

import (
	"context"
	"strings"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

// CreateVideoParams captures the attributes of a new upload.
type CreateVideoParams struct {
	OwnerID         string
	Title           string
	Description     string
	MediaID         string
	MediaURL        string
	ThumbnailID     string
	ThumbnailURL    string
	DurationSeconds int
	Published       bool
}

// VideoUpdate mutates editable video fields. Nil fields are left unchanged.
type VideoUpdate struct {
	Title        *string
	Description  *string
	ThumbnailID  *string
	ThumbnailURL *string
}

// CreateVideo records a new upload owned by params.OwnerID.
func (s *Storage) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	const op = "storage.CreateVideo"
	if err := checkContext(ctx, op); err != nil {
		return models.Video{}, err
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, apperr.Validation(op, "title is required")
	}
	if params.MediaURL == "" {
		return models.Video{}, apperr.Validation(op, "media reference is required")
	}
	var video models.Video
	err := s.mutate(op, func(data *dataset) error {
		if _, ok := data.Accounts[params.OwnerID]; !ok {
			return apperr.NotFound(op, "owner account not found")
		}
		now := s.now().UTC()
		video = models.Video{
			ID:              s.newID(),
			OwnerID:         params.OwnerID,
			Title:           title,
			Description:     strings.TrimSpace(params.Description),
			MediaID:         params.MediaID,
			MediaURL:        params.MediaURL,
			ThumbnailID:     params.ThumbnailID,
			ThumbnailURL:    params.ThumbnailURL,
			DurationSeconds: params.DurationSeconds,
			Published:       params.Published,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		data.Videos[video.ID] = video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// GetVideo fetches a video by id.
func (s *Storage) GetVideo(ctx context.Context, id string) (models.Video, bool, error) {
	if err := checkContext(ctx, "storage.GetVideo"); err != nil {
		return models.Video{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok, nil
}

// UpdateVideo mutates editable fields of an existing video.
func (s *Storage) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	const op = "storage.UpdateVideo"
	if err := checkContext(ctx, op); err != nil {
		return models.Video{}, err
	}
	var video models.Video
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Videos[id]
		if !ok {
			return apperr.NotFound(op, "video not found")
		}
		if update.Title != nil {
			trimmed := strings.TrimSpace(*update.Title)
			if trimmed == "" {
				return apperr.Validation(op, "title cannot be empty")
			}
			current.Title = trimmed
		}
		if update.Description != nil {
			current.Description = strings.TrimSpace(*update.Description)
		}
		if update.ThumbnailID != nil {
			current.ThumbnailID = *update.ThumbnailID
		}
		if update.ThumbnailURL != nil {
			current.ThumbnailURL = *update.ThumbnailURL
		}
		current.UpdatedAt = s.now().UTC()
		data.Videos[id] = current
		video = current
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// DeleteVideo removes the video and everything hanging off it: its comments,
// the relations targeting it or its comments, playlist references, and watch
// history entries. The cascade runs in one mutation so a crash cannot leave a
// partially deleted video behind.
func (s *Storage) DeleteVideo(ctx context.Context, id string) error {
	const op = "storage.DeleteVideo"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		if _, ok := data.Videos[id]; !ok {
			return apperr.NotFound(op, "video not found")
		}
		delete(data.Videos, id)

		orphaned := map[string]bool{id: true}
		for commentID, comment := range data.Comments {
			if comment.VideoID == id {
				delete(data.Comments, commentID)
				orphaned[commentID] = true
			}
		}
		for key, relation := range data.Relations {
			if orphaned[relation.TargetID] {
				delete(data.Relations, key)
			}
		}
		for playlistID, playlist := range data.Playlists {
			trimmed := playlist.VideoIDs[:0]
			for _, videoID := range playlist.VideoIDs {
				if videoID != id {
					trimmed = append(trimmed, videoID)
				}
			}
			if len(trimmed) != len(playlist.VideoIDs) {
				playlist.VideoIDs = trimmed
				playlist.UpdatedAt = s.now().UTC()
				data.Playlists[playlistID] = playlist
			}
		}
		for accountID, entries := range data.History {
			kept := entries[:0]
			for _, entry := range entries {
				if entry.VideoID != id {
					kept = append(kept, entry)
				}
			}
			if len(kept) == 0 {
				delete(data.History, accountID)
			} else {
				data.History[accountID] = kept
			}
		}
		return nil
	})
}

// TogglePublish flips the video's published flag and returns the new state.
func (s *Storage) TogglePublish(ctx context.Context, id string) (models.Video, error) {
	const op = "storage.TogglePublish"
	if err := checkContext(ctx, op); err != nil {
		return models.Video{}, err
	}
	var video models.Video
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Videos[id]
		if !ok {
			return apperr.NotFound(op, "video not found")
		}
		current.Published = !current.Published
		current.UpdatedAt = s.now().UTC()
		data.Videos[id] = current
		video = current
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// RecordView bumps the video's view counter and moves it to the front of the
// viewer's watch history. Each video appears at most once per account, at the
// position of its most recent watch.
func (s *Storage) RecordView(ctx context.Context, accountID, videoID string) (models.Video, error) {
	const op = "storage.RecordView"
	if err := checkContext(ctx, op); err != nil {
		return models.Video{}, err
	}
	var video models.Video
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Videos[videoID]
		if !ok {
			return apperr.NotFound(op, "video not found")
		}
		current.Views++
		data.Videos[videoID] = current
		video = current

		if accountID == "" {
			return nil
		}
		entries := data.History[accountID]
		kept := make([]models.HistoryEntry, 0, len(entries)+1)
		kept = append(kept, models.HistoryEntry{
			AccountID: accountID,
			VideoID:   videoID,
			WatchedAt: s.now().UTC(),
		})
		for _, entry := range entries {
			if entry.VideoID != videoID {
				kept = append(kept, entry)
			}
		}
		data.History[accountID] = kept
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}
