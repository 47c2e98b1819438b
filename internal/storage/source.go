package storage

import (
	"context"
	"fmt"

	"clipstream/internal/apperr"
	"clipstream/internal/query"
)

// Collection names understood by the document source.
const (
	CollectionAccounts  = "accounts"
	CollectionVideos    = "videos"
	CollectionComments  = "comments"
	CollectionTweets    = "tweets"
	CollectionPlaylists = "playlists"
	CollectionRelations = "relations"
	CollectionHistory   = "history"
)

// Collection materializes one collection as query documents. Every call
// builds fresh documents under the read lock, so pipeline stages can mutate
// them freely. Account documents carry only public fields; secret material
// never enters the query layer.
func (s *Storage) Collection(ctx context.Context, name string) ([]query.Document, error) {
	const op = "storage.Collection"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case CollectionAccounts:
		docs := make([]query.Document, 0, len(s.data.Accounts))
		for _, account := range s.data.Accounts {
			docs = append(docs, query.Document{
				"id":          account.ID,
				"handle":      account.Handle,
				"displayName": account.DisplayName,
				"avatarUrl":   account.AvatarURL,
				"coverUrl":    account.CoverURL,
				"createdAt":   account.CreatedAt,
			})
		}
		return docs, nil
	case CollectionVideos:
		docs := make([]query.Document, 0, len(s.data.Videos))
		for _, video := range s.data.Videos {
			docs = append(docs, query.Document{
				"id":              video.ID,
				"ownerId":         video.OwnerID,
				"title":           video.Title,
				"description":     video.Description,
				"mediaUrl":        video.MediaURL,
				"thumbnailUrl":    video.ThumbnailURL,
				"durationSeconds": video.DurationSeconds,
				"views":           video.Views,
				"published":       video.Published,
				"createdAt":       video.CreatedAt,
				"updatedAt":       video.UpdatedAt,
			})
		}
		return docs, nil
	case CollectionComments:
		docs := make([]query.Document, 0, len(s.data.Comments))
		for _, comment := range s.data.Comments {
			docs = append(docs, query.Document{
				"id":        comment.ID,
				"videoId":   comment.VideoID,
				"ownerId":   comment.OwnerID,
				"content":   comment.Content,
				"createdAt": comment.CreatedAt,
				"updatedAt": comment.UpdatedAt,
			})
		}
		return docs, nil
	case CollectionTweets:
		docs := make([]query.Document, 0, len(s.data.Tweets))
		for _, tweet := range s.data.Tweets {
			docs = append(docs, query.Document{
				"id":        tweet.ID,
				"ownerId":   tweet.OwnerID,
				"content":   tweet.Content,
				"createdAt": tweet.CreatedAt,
				"updatedAt": tweet.UpdatedAt,
			})
		}
		return docs, nil
	case CollectionPlaylists:
		docs := make([]query.Document, 0, len(s.data.Playlists))
		for _, playlist := range s.data.Playlists {
			docs = append(docs, query.Document{
				"id":          playlist.ID,
				"ownerId":     playlist.OwnerID,
				"name":        playlist.Name,
				"description": playlist.Description,
				"videoIds":    append([]string(nil), playlist.VideoIDs...),
				"videoCount":  len(playlist.VideoIDs),
				"createdAt":   playlist.CreatedAt,
				"updatedAt":   playlist.UpdatedAt,
			})
		}
		return docs, nil
	case CollectionRelations:
		docs := make([]query.Document, 0, len(s.data.Relations))
		for _, relation := range s.data.Relations {
			docs = append(docs, query.Document{
				"id":        relation.ID,
				"actorId":   relation.ActorID,
				"targetId":  relation.TargetID,
				"kind":      string(relation.Kind),
				"createdAt": relation.CreatedAt,
			})
		}
		return docs, nil
	case CollectionHistory:
		docs := make([]query.Document, 0, len(s.data.History))
		for accountID, entries := range s.data.History {
			for _, entry := range entries {
				docs = append(docs, query.Document{
					"id":        accountID + "/" + entry.VideoID,
					"accountId": entry.AccountID,
					"videoId":   entry.VideoID,
					"watchedAt": entry.WatchedAt,
				})
			}
		}
		return docs, nil
	}
	return nil, apperr.New(apperr.KindInternal, op, fmt.Sprintf("unknown collection %q", name))
}
