package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store
}

func seedAccount(t *testing.T, store *Storage, handle string) models.Account {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), CreateAccountParams{
		Handle:   handle,
		Email:    handle + "@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", handle, err)
	}
	return account
}

func seedVideo(t *testing.T, store *Storage, ownerID, title string) models.Video {
	t.Helper()
	video, err := store.CreateVideo(context.Background(), CreateVideoParams{
		OwnerID:   ownerID,
		Title:     title,
		MediaURL:  "https://cdn.example.com/" + title,
		Published: true,
	})
	if err != nil {
		t.Fatalf("CreateVideo(%s): %v", title, err)
	}
	return video
}

func TestCreateAccountRejectsDuplicateHandleAndEmail(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, "alice")

	_, err := store.CreateAccount(context.Background(), CreateAccountParams{
		Handle:   "ALICE",
		Email:    "other@example.com",
		Password: "some password",
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate handle: got %v, want conflict", err)
	}

	_, err = store.CreateAccount(context.Background(), CreateAccountParams{
		Handle:   "bob",
		Email:    "Alice@Example.com",
		Password: "some password",
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate email: got %v, want conflict", err)
	}
}

func TestFindAccountByIdentifierMatchesHandleOrEmail(t *testing.T) {
	store := newTestStore(t)
	created := seedAccount(t, store, "alice")

	for _, identifier := range []string{"alice", "ALICE", "alice@example.com", "Alice@Example.COM"} {
		account, ok, err := store.FindAccountByIdentifier(context.Background(), identifier)
		if err != nil || !ok {
			t.Fatalf("FindAccountByIdentifier(%q) = ok=%v err=%v", identifier, ok, err)
		}
		if account.ID != created.ID {
			t.Fatalf("FindAccountByIdentifier(%q) resolved wrong account", identifier)
		}
	}
	if _, ok, _ := store.FindAccountByIdentifier(context.Background(), "nobody"); ok {
		t.Fatal("unknown identifier must not resolve")
	}
}

func TestChangeAccountPasswordVerifiesCurrentSecret(t *testing.T) {
	store := newTestStore(t)
	account := seedAccount(t, store, "alice")

	err := store.ChangeAccountPassword(context.Background(), account.ID, "wrong secret", "new password 123")
	if !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("wrong current password: got %v, want unauthorized", err)
	}
	if err := store.ChangeAccountPassword(context.Background(), account.ID, "correct horse battery", "new password 123"); err != nil {
		t.Fatalf("ChangeAccountPassword: %v", err)
	}
}

func TestRefreshRotateIsConditional(t *testing.T) {
	store := newTestStore(t)
	account := seedAccount(t, store, "alice")
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := store.Set(ctx, account.ID, "hash-1", expiry); err != nil {
		t.Fatalf("Set: %v", err)
	}
	swapped, err := store.Rotate(ctx, account.ID, "hash-1", "hash-2", expiry)
	if err != nil || !swapped {
		t.Fatalf("Rotate with current hash = %v, %v; want swap", swapped, err)
	}
	swapped, err = store.Rotate(ctx, account.ID, "hash-1", "hash-3", expiry)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if swapped {
		t.Fatal("rotation with a superseded hash must not swap")
	}
	stored, ok, err := store.Get(ctx, account.ID)
	if err != nil || !ok || stored != "hash-2" {
		t.Fatalf("Get = %q, %v, %v; want hash-2", stored, ok, err)
	}
}

func TestRefreshGetReportsExpiredAsAbsent(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewStorage(filepath.Join(t.TempDir(), "store.json"), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	account := seedAccount(t, store, "alice")
	ctx := context.Background()

	if err := store.Set(ctx, account.ID, "hash-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, account.ID); ok {
		t.Fatal("expired refresh state must report absent")
	}
	if swapped, _ := store.Rotate(ctx, account.ID, "hash-1", "hash-2", now.Add(time.Hour)); swapped {
		t.Fatal("expired refresh state must not rotate")
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	bob := seedAccount(t, store, "bob")
	video := seedVideo(t, store, alice.ID, "doomed")
	keeper := seedVideo(t, store, alice.ID, "keeper")

	comment, err := store.AddComment(ctx, bob.ID, video.ID, "first!")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, video.ID); err != nil {
		t.Fatalf("ToggleRelation video: %v", err)
	}
	if _, err := store.ToggleRelation(ctx, models.RelationLikeComment, alice.ID, comment.ID); err != nil {
		t.Fatalf("ToggleRelation comment: %v", err)
	}
	playlist, err := store.CreatePlaylist(ctx, bob.ID, "mixed", "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	for _, id := range []string{video.ID, keeper.ID} {
		if _, err := store.AddPlaylistVideo(ctx, playlist.ID, id); err != nil {
			t.Fatalf("AddPlaylistVideo: %v", err)
		}
	}
	if _, err := store.RecordView(ctx, bob.ID, video.ID); err != nil {
		t.Fatalf("RecordView: %v", err)
	}

	if err := store.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}

	if _, ok, _ := store.GetVideo(ctx, video.ID); ok {
		t.Fatal("video survived delete")
	}
	if _, ok, _ := store.GetComment(ctx, comment.ID); ok {
		t.Fatal("comment on deleted video survived")
	}
	if exists, _ := store.RelationExists(ctx, models.RelationLikeVideo, bob.ID, video.ID); exists {
		t.Fatal("like of deleted video survived")
	}
	if exists, _ := store.RelationExists(ctx, models.RelationLikeComment, alice.ID, comment.ID); exists {
		t.Fatal("like of cascaded comment survived")
	}
	updated, _, err := store.GetPlaylist(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("GetPlaylist: %v", err)
	}
	if len(updated.VideoIDs) != 1 || updated.VideoIDs[0] != keeper.ID {
		t.Fatalf("playlist videos = %v, want only %s", updated.VideoIDs, keeper.ID)
	}
	history, err := store.WatchHistory(ctx, bob.ID)
	if err != nil {
		t.Fatalf("WatchHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history entries for deleted video = %d, want 0", len(history))
	}
}

func TestRecordViewDedupesHistoryMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	first := seedVideo(t, store, alice.ID, "first")
	second := seedVideo(t, store, alice.ID, "second")

	for _, id := range []string{first.ID, second.ID, first.ID} {
		if _, err := store.RecordView(ctx, alice.ID, id); err != nil {
			t.Fatalf("RecordView: %v", err)
		}
	}

	video, _, _ := store.GetVideo(ctx, first.ID)
	if video.Views != 2 {
		t.Fatalf("views = %d, want 2", video.Views)
	}
	history, err := store.WatchHistory(ctx, alice.ID)
	if err != nil {
		t.Fatalf("WatchHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (deduped)", len(history))
	}
	if history[0].VideoID != first.ID || history[1].VideoID != second.ID {
		t.Fatalf("history order = %s, %s; want most recent first", history[0].VideoID, history[1].VideoID)
	}
}

func TestToggleRelationAlternates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	bob := seedAccount(t, store, "bob")
	video := seedVideo(t, store, alice.ID, "clip")

	state, err := store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, video.ID)
	if err != nil || state != ToggleCreated {
		t.Fatalf("first toggle = %v, %v; want created", state, err)
	}
	state, err = store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, video.ID)
	if err != nil || state != ToggleRemoved {
		t.Fatalf("second toggle = %v, %v; want removed", state, err)
	}
	state, err = store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, video.ID)
	if err != nil || state != ToggleCreated {
		t.Fatalf("third toggle = %v, %v; want created", state, err)
	}
}

func TestToggleRelationKeysOnActorTargetAndKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	bob := seedAccount(t, store, "bob")
	first := seedVideo(t, store, alice.ID, "first")
	second := seedVideo(t, store, alice.ID, "second")

	if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, first.ID); err != nil {
		t.Fatalf("toggle first: %v", err)
	}
	// Liking a second target must not disturb the first relation.
	if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, second.ID); err != nil {
		t.Fatalf("toggle second: %v", err)
	}
	for _, target := range []string{first.ID, second.ID} {
		exists, err := store.RelationExists(ctx, models.RelationLikeVideo, bob.ID, target)
		if err != nil || !exists {
			t.Fatalf("relation (%s, %s) = %v, %v; want present", bob.ID, target, exists, err)
		}
	}
	if count, _ := store.CountRelationsByActor(ctx, models.RelationLikeVideo, bob.ID); count != 2 {
		t.Fatalf("actor relation count = %d, want 2", count)
	}
}

func TestToggleRelationConcurrentParity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	bob := seedAccount(t, store, "bob")
	video := seedVideo(t, store, alice.ID, "clip")

	const toggles = 8
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, video.ID); err != nil {
				t.Errorf("ToggleRelation: %v", err)
			}
		}()
	}
	wg.Wait()

	// An even number of serialized toggles always lands on absent.
	exists, err := store.RelationExists(ctx, models.RelationLikeVideo, bob.ID, video.ID)
	if err != nil {
		t.Fatalf("RelationExists: %v", err)
	}
	if exists {
		t.Fatalf("relation present after %d toggles, want absent", toggles)
	}
}

func TestToggleRelationRejectsUnknownKindAndTarget(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")

	_, err := store.ToggleRelation(ctx, models.RelationKind("bookmark"), alice.ID, "x")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("unknown kind: got %v, want validation", err)
	}
	_, err = store.ToggleRelation(ctx, models.RelationLikeVideo, alice.ID, "missing-video")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("missing target: got %v, want not found", err)
	}
}

func TestAddPlaylistVideoRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	video := seedVideo(t, store, alice.ID, "clip")
	playlist, err := store.CreatePlaylist(ctx, alice.ID, "favorites", "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	if _, err := store.AddPlaylistVideo(ctx, playlist.ID, video.ID); err != nil {
		t.Fatalf("AddPlaylistVideo: %v", err)
	}
	_, err = store.AddPlaylistVideo(ctx, playlist.ID, video.ID)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate add: got %v, want conflict", err)
	}
	_, err = store.RemovePlaylistVideo(ctx, playlist.ID, "never-added")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("remove missing: got %v, want not found", err)
	}
}

func TestChannelStatsAggregates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedAccount(t, store, "alice")
	bob := seedAccount(t, store, "bob")
	carol := seedAccount(t, store, "carol")

	first := seedVideo(t, store, alice.ID, "first")
	second := seedVideo(t, store, alice.ID, "second")
	other := seedVideo(t, store, bob.ID, "other")

	for i := 0; i < 3; i++ {
		if _, err := store.RecordView(ctx, "", first.ID); err != nil {
			t.Fatalf("RecordView: %v", err)
		}
	}
	if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, bob.ID, first.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, carol.ID, second.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := store.ToggleRelation(ctx, models.RelationLikeVideo, alice.ID, other.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	for _, actor := range []string{bob.ID, carol.ID} {
		if _, err := store.ToggleRelation(ctx, models.RelationSubscription, actor, alice.ID); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	stats, err := store.ChannelStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ChannelStats: %v", err)
	}
	want := models.ChannelStats{TotalVideos: 2, TotalViews: 3, TotalLikes: 2, TotalSubscribers: 2}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestMutationsSurviveReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	store, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	alice := seedAccount(t, store, "alice")
	video := seedVideo(t, store, alice.ID, "clip")

	reloaded, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage reload: %v", err)
	}
	if _, ok, _ := reloaded.GetAccount(context.Background(), alice.ID); !ok {
		t.Fatal("account lost across reload")
	}
	if _, ok, _ := reloaded.GetVideo(context.Background(), video.ID); !ok {
		t.Fatal("video lost across reload")
	}
}

func TestFailedPersistLeavesDataUntouched(t *testing.T) {
	store := newTestStore(t)
	alice := seedAccount(t, store, "alice")

	store.persistOverride = func(dataset) error { return errors.New("disk full") }
	_, err := store.CreateVideo(context.Background(), CreateVideoParams{
		OwnerID:  alice.ID,
		Title:    "clip",
		MediaURL: "https://cdn.example.com/clip",
	})
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Fatalf("persist failure: got %v, want internal", err)
	}
	store.persistOverride = nil

	docs, err := store.Collection(context.Background(), CollectionVideos)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("videos after failed persist = %d, want 0", len(docs))
	}
}

func TestCollectionExcludesAccountSecrets(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, "alice")

	docs, err := store.Collection(context.Background(), CollectionAccounts)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("account docs = %d, want 1", len(docs))
	}
	for _, field := range []string{"email", "passwordHash"} {
		if _, leaked := docs[0][field]; leaked {
			t.Fatalf("account document leaked %q", field)
		}
	}
}

func TestCanceledContextReportsUnavailable(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.GetAccount(ctx, "any")
	if !apperr.IsKind(err, apperr.KindUnavailable) {
		t.Fatalf("canceled context: got %v, want unavailable", err)
	}
}
