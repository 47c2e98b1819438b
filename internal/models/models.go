// Package models declares the persisted record types shared across the
// service. Records are plain structs; behaviour lives in the packages that
// operate on them.
package models

import "time"

// Account is a registered user and, equivalently, a channel. Secret material
// is never serialized.
type Account struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	AvatarID     string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CoverID      string    `json:"-"`
	CoverURL     string    `json:"coverUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicAccount is the projection of an Account safe to attach to other
// callers' resources.
type PublicAccount struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Public returns the owner projection of the account.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:          a.ID,
		Handle:      a.Handle,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
	}
}

// Video is an uploaded piece of content owned by a single account.
type Video struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	MediaID         string    `json:"-"`
	MediaURL        string    `json:"mediaUrl"`
	ThumbnailID     string    `json:"-"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
	Views           int64     `json:"views"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Comment is attached to a video and owned by its author.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tweet is a short standalone post owned by its author.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Playlist is an ordered collection of video references owned by an account.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RelationKind names the binary relations whose state is encoded entirely by
// record presence.
type RelationKind string

const (
	RelationLikeVideo    RelationKind = "like-video"
	RelationLikeComment  RelationKind = "like-comment"
	RelationLikeTweet    RelationKind = "like-tweet"
	RelationSubscription RelationKind = "subscription"
)

// Valid reports whether the kind belongs to the closed set.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationLikeVideo, RelationLikeComment, RelationLikeTweet, RelationSubscription:
		return true
	}
	return false
}

// Relation records that an actor holds a relation of the given kind toward a
// target. At most one record exists per (actor, target, kind).
type Relation struct {
	ID        string       `json:"id"`
	ActorID   string       `json:"actorId"`
	TargetID  string       `json:"targetId"`
	Kind      RelationKind `json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
}

// HistoryEntry records that an account watched a video.
type HistoryEntry struct {
	AccountID string    `json:"accountId"`
	VideoID   string    `json:"videoId"`
	WatchedAt time.Time `json:"watchedAt"`
}

// ChannelStats aggregates a channel's dashboard counters.
type ChannelStats struct {
	TotalVideos      int   `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalLikes       int   `json:"totalLikes"`
	TotalSubscribers int   `json:"totalSubscribers"`
}

// ChannelProfile is the public view of an account as a channel, including the
// caller-relative subscription flag.
type ChannelProfile struct {
	Account           PublicAccount `json:"account"`
	CoverURL          string        `json:"coverUrl,omitempty"`
	SubscriberCount   int           `json:"subscriberCount"`
	SubscribedToCount int           `json:"subscribedToCount"`
	IsSubscribed      bool          `json:"isSubscribed"`
}
