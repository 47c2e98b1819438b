package storage

import (
	"context"
	"strings"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

// AddTweet records a short post owned by ownerID.
func (s *Storage) AddTweet(ctx context.Context, ownerID, content string) (models.Tweet, error) {
	const op = "storage.AddTweet"
	if err := checkContext(ctx, op); err != nil {
		return models.Tweet{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Tweet{}, apperr.Validation(op, "content is required")
	}
	var tweet models.Tweet
	err := s.mutate(op, func(data *dataset) error {
		if _, ok := data.Accounts[ownerID]; !ok {
			return apperr.NotFound(op, "account not found")
		}
		now := s.now().UTC()
		tweet = models.Tweet{
			ID:        s.newID(),
			OwnerID:   ownerID,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		data.Tweets[tweet.ID] = tweet
		return nil
	})
	if err != nil {
		return models.Tweet{}, err
	}
	return tweet, nil
}

// GetTweet fetches a tweet by id.
func (s *Storage) GetTweet(ctx context.Context, id string) (models.Tweet, bool, error) {
	if err := checkContext(ctx, "storage.GetTweet"); err != nil {
		return models.Tweet{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tweet, ok := s.data.Tweets[id]
	return tweet, ok, nil
}

// UpdateTweet replaces the tweet body.
func (s *Storage) UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error) {
	const op = "storage.UpdateTweet"
	if err := checkContext(ctx, op); err != nil {
		return models.Tweet{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Tweet{}, apperr.Validation(op, "content is required")
	}
	var tweet models.Tweet
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Tweets[id]
		if !ok {
			return apperr.NotFound(op, "tweet not found")
		}
		current.Content = content
		current.UpdatedAt = s.now().UTC()
		data.Tweets[id] = current
		tweet = current
		return nil
	})
	if err != nil {
		return models.Tweet{}, err
	}
	return tweet, nil
}

// DeleteTweet removes the tweet and any relations targeting it.
func (s *Storage) DeleteTweet(ctx context.Context, id string) error {
	const op = "storage.DeleteTweet"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		if _, ok := data.Tweets[id]; !ok {
			return apperr.NotFound(op, "tweet not found")
		}
		delete(data.Tweets, id)
		for key, relation := range data.Relations {
			if relation.TargetID == id {
				delete(data.Relations, key)
			}
		}
		return nil
	})
}
