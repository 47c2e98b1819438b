package storage

import (
	"context"

	"clipstream/internal/models"
)

// WatchHistory returns the account's history, most recent watch first.
func (s *Storage) WatchHistory(ctx context.Context, accountID string) ([]models.HistoryEntry, error) {
	if err := checkContext(ctx, "storage.WatchHistory"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.data.History[accountID]
	return append([]models.HistoryEntry(nil), entries...), nil
}

// ClearWatchHistory drops the account's history. Clearing an empty history is
// not an error.
func (s *Storage) ClearWatchHistory(ctx context.Context, accountID string) error {
	const op = "storage.ClearWatchHistory"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		delete(data.History, accountID)
		return nil
	})
}

// ChannelStats aggregates the channel's dashboard counters from one dataset
// snapshot, so the totals are mutually consistent.
func (s *Storage) ChannelStats(ctx context.Context, accountID string) (models.ChannelStats, error) {
	if err := checkContext(ctx, "storage.ChannelStats"); err != nil {
		return models.ChannelStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.ChannelStats
	owned := make(map[string]bool)
	for id, video := range s.data.Videos {
		if video.OwnerID != accountID {
			continue
		}
		owned[id] = true
		stats.TotalVideos++
		stats.TotalViews += video.Views
	}
	for _, relation := range s.data.Relations {
		switch relation.Kind {
		case models.RelationLikeVideo:
			if owned[relation.TargetID] {
				stats.TotalLikes++
			}
		case models.RelationSubscription:
			if relation.TargetID == accountID {
				stats.TotalSubscribers++
			}
		}
	}
	return stats, nil
}
