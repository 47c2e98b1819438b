package api

import (
	"log/slog"
	"time"

	"clipstream/internal/auth"
	"clipstream/internal/media"
	"clipstream/internal/query"
	"clipstream/internal/storage"
)

const timeFormat = time.RFC3339Nano

// Handler carries the dependencies shared by every route.
type Handler struct {
	Store        storage.Repository
	Sessions     *auth.SessionManager
	Media        media.Store
	CookiePolicy AuthCookiePolicy
	Logger       *slog.Logger

	engine *query.Engine
}

// NewHandler wires the handler over the repository. The query engine reads
// from the same repository through its document-source side.
func NewHandler(store storage.Repository, sessions *auth.SessionManager, mediaStore media.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:        store,
		Sessions:     sessions,
		Media:        mediaStore,
		CookiePolicy: DefaultAuthCookiePolicy(),
		Logger:       logger,
		engine:       query.NewEngine(store),
	}
}
