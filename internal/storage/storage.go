// Package storage is the authoritative document store for the service. It
// keeps every collection in memory behind one RWMutex and persists a JSON
// snapshot atomically on every mutation. A single authoritative store
// instance is assumed; refresh rotation, the one write contended across
// processes, has a dedicated Postgres-backed store in the auth package for
// replicated deployments.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipstream/internal/apperr"
	"clipstream/internal/models"

	"github.com/google/uuid"
)

type dataset struct {
	Accounts  map[string]models.Account        `json:"accounts"`
	Videos    map[string]models.Video          `json:"videos"`
	Comments  map[string]models.Comment        `json:"comments"`
	Tweets    map[string]models.Tweet          `json:"tweets"`
	Playlists map[string]models.Playlist       `json:"playlists"`
	Relations map[string]models.Relation       `json:"relations"`
	History   map[string][]models.HistoryEntry `json:"history"`
	Refresh   map[string]refreshState          `json:"refresh"`
}

type refreshState struct {
	TokenHash string    `json:"tokenHash"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newDataset() dataset {
	return dataset{
		Accounts:  make(map[string]models.Account),
		Videos:    make(map[string]models.Video),
		Comments:  make(map[string]models.Comment),
		Tweets:    make(map[string]models.Tweet),
		Playlists: make(map[string]models.Playlist),
		Relations: make(map[string]models.Relation),
		History:   make(map[string][]models.HistoryEntry),
		Refresh:   make(map[string]refreshState),
	}
}

// Storage is the JSON-snapshot-backed implementation of Repository.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	now      func() time.Time
	newID    func() string
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

// Option mutates storage configuration.
type Option func(*Storage)

// WithClock injects the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStorage loads (or initializes) the store at the provided path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath: path,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}
	s.ensureDatasetInitializedLocked()
	return nil
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Accounts == nil {
		s.data.Accounts = make(map[string]models.Account)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Comments == nil {
		s.data.Comments = make(map[string]models.Comment)
	}
	if s.data.Tweets == nil {
		s.data.Tweets = make(map[string]models.Tweet)
	}
	if s.data.Playlists == nil {
		s.data.Playlists = make(map[string]models.Playlist)
	}
	if s.data.Relations == nil {
		s.data.Relations = make(map[string]models.Relation)
	}
	if s.data.History == nil {
		s.data.History = make(map[string][]models.HistoryEntry)
	}
	if s.data.Refresh == nil {
		s.data.Refresh = make(map[string]refreshState)
	}
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := newDataset()
	for id, account := range src.Accounts {
		clone.Accounts[id] = account
	}
	for id, video := range src.Videos {
		clone.Videos[id] = video
	}
	for id, comment := range src.Comments {
		clone.Comments[id] = comment
	}
	for id, tweet := range src.Tweets {
		clone.Tweets[id] = tweet
	}
	for id, playlist := range src.Playlists {
		cloned := playlist
		if playlist.VideoIDs != nil {
			cloned.VideoIDs = append([]string(nil), playlist.VideoIDs...)
		}
		clone.Playlists[id] = cloned
	}
	for key, relation := range src.Relations {
		clone.Relations[key] = relation
	}
	for accountID, entries := range src.History {
		clone.History[accountID] = append([]models.HistoryEntry(nil), entries...)
	}
	for accountID, state := range src.Refresh {
		clone.Refresh[accountID] = state
	}
	return clone
}

// mutate runs fn against a clone of the dataset, persists the clone, and
// swaps it in only when both succeed. Failed mutations leave the dataset
// untouched.
func (s *Storage) mutate(op string, fn func(data *dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneDataset(s.data)
	if err := fn(&updated); err != nil {
		return err
	}
	if err := s.persistDataset(updated); err != nil {
		return apperr.Internal(op, err)
	}
	s.data = updated
	return nil
}

// checkContext bounds store operations by the caller's request deadline.
func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Unavailable(op, err)
	}
	return nil
}

// Ping reports whether the backing file is writable.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.persistDataset(s.data); err != nil {
		return apperr.Unavailable(op, err)
	}
	return nil
}
