package storage

import (
	"context"
	"time"

	"clipstream/internal/auth"
	"clipstream/internal/models"
	"clipstream/internal/query"
)

// Repository is the persistence surface the HTTP layer depends on. Storage is
// the JSON-snapshot implementation; the split keeps handlers testable against
// a fake.
type Repository interface {
	// Accounts.
	CreateAccount(ctx context.Context, params CreateAccountParams) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, bool, error)
	GetAccountByHandle(ctx context.Context, handle string) (models.Account, bool, error)
	FindAccountByIdentifier(ctx context.Context, identifier string) (models.Account, bool, error)
	UpdateAccountProfile(ctx context.Context, id string, update AccountProfileUpdate) (models.Account, error)
	UpdateAccountMedia(ctx context.Context, id string, update AccountMediaUpdate) (models.Account, error)
	ChangeAccountPassword(ctx context.Context, id, current, next string) error

	// Videos and watch history.
	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, bool, error)
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) error
	TogglePublish(ctx context.Context, id string) (models.Video, error)
	RecordView(ctx context.Context, accountID, videoID string) (models.Video, error)
	WatchHistory(ctx context.Context, accountID string) ([]models.HistoryEntry, error)
	ClearWatchHistory(ctx context.Context, accountID string) error

	// Comments.
	AddComment(ctx context.Context, ownerID, videoID, content string) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, bool, error)
	UpdateComment(ctx context.Context, id, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// Tweets.
	AddTweet(ctx context.Context, ownerID, content string) (models.Tweet, error)
	GetTweet(ctx context.Context, id string) (models.Tweet, bool, error)
	UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error)
	DeleteTweet(ctx context.Context, id string) error

	// Playlists.
	CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (models.Playlist, bool, error)
	UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)
	RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)

	// Toggled relations.
	ToggleRelation(ctx context.Context, kind models.RelationKind, actorID, targetID string) (ToggleState, error)
	RelationExists(ctx context.Context, kind models.RelationKind, actorID, targetID string) (bool, error)
	CountRelations(ctx context.Context, kind models.RelationKind, targetID string) (int, error)
	CountRelationsByActor(ctx context.Context, kind models.RelationKind, actorID string) (int, error)

	// Dashboard.
	ChannelStats(ctx context.Context, accountID string) (models.ChannelStats, error)

	// Refresh sessions.
	Set(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error
	Get(ctx context.Context, accountID string) (string, bool, error)
	Rotate(ctx context.Context, accountID, currentHash, nextHash string, expiresAt time.Time) (bool, error)
	Clear(ctx context.Context, accountID string) error

	// Query source and health.
	Collection(ctx context.Context, name string) ([]query.Document, error)
	Ping(ctx context.Context) error
}

var (
	_ Repository             = (*Storage)(nil)
	_ query.Source           = (*Storage)(nil)
	_ auth.AccountDirectory  = (*Storage)(nil)
	_ auth.RefreshTokenStore = (*Storage)(nil)
)
