package storage

import (
	"context"
	"strings"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

// AddComment attaches a comment to an existing video.
func (s *Storage) AddComment(ctx context.Context, ownerID, videoID, content string) (models.Comment, error) {
	const op = "storage.AddComment"
	if err := checkContext(ctx, op); err != nil {
		return models.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, apperr.Validation(op, "content is required")
	}
	var comment models.Comment
	err := s.mutate(op, func(data *dataset) error {
		if _, ok := data.Videos[videoID]; !ok {
			return apperr.NotFound(op, "video not found")
		}
		now := s.now().UTC()
		comment = models.Comment{
			ID:        s.newID(),
			VideoID:   videoID,
			OwnerID:   ownerID,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		data.Comments[comment.ID] = comment
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// GetComment fetches a comment by id.
func (s *Storage) GetComment(ctx context.Context, id string) (models.Comment, bool, error) {
	if err := checkContext(ctx, "storage.GetComment"); err != nil {
		return models.Comment{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.data.Comments[id]
	return comment, ok, nil
}

// UpdateComment replaces the comment body.
func (s *Storage) UpdateComment(ctx context.Context, id, content string) (models.Comment, error) {
	const op = "storage.UpdateComment"
	if err := checkContext(ctx, op); err != nil {
		return models.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, apperr.Validation(op, "content is required")
	}
	var comment models.Comment
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Comments[id]
		if !ok {
			return apperr.NotFound(op, "comment not found")
		}
		current.Content = content
		current.UpdatedAt = s.now().UTC()
		data.Comments[id] = current
		comment = current
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// DeleteComment removes the comment and any relations targeting it.
func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	const op = "storage.DeleteComment"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		if _, ok := data.Comments[id]; !ok {
			return apperr.NotFound(op, "comment not found")
		}
		delete(data.Comments, id)
		for key, relation := range data.Relations {
			if relation.TargetID == id {
				delete(data.Relations, key)
			}
		}
		return nil
	})
}
