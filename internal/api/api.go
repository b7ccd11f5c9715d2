// Package api serves the JSON content API and the git smart HTTP bridge.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelworks/inkwell/internal/auth"
	"github.com/kestrelworks/inkwell/internal/content"
	"github.com/kestrelworks/inkwell/internal/gitcgi"
	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/metrics"
	"github.com/kestrelworks/inkwell/internal/storage"
	"github.com/kestrelworks/inkwell/internal/webhook"
)

type Config struct {
	Content *content.Manager
	Gate    *auth.Gate
	Logger  log.Logger

	// Assets is nil when no bucket is configured; asset endpoints then
	// return 404.
	Assets *storage.Store

	// Git is nil when no repository is configured; git endpoints then
	// return 404.
	Git        *gitcgi.Backend
	GitMaxBody int64
	GitTimeout time.Duration

	Hooks   *webhook.Dispatcher
	Metrics *metrics.ServerMetrics
}

// Handler carries the wired collaborators for all routes.
type Handler struct {
	cfg    Config
	logger log.Logger
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.GitTimeout <= 0 {
		cfg.GitTimeout = gitcgi.DefaultTimeout
	}
	if cfg.GitMaxBody <= 0 {
		cfg.GitMaxBody = gitcgi.DefaultMaxBodyBytes
	}
	return &Handler{cfg: cfg, logger: cfg.Logger}
}

// Routes mounts the API and git endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/posts", h.listPosts)
		r.Get("/posts/{slug}", h.getPost)
		r.Get("/posts/{slug}/raw", h.getPostRaw)
		r.Get("/series", h.listSeries)
		r.Get("/series/{slug}", h.getSeries)

		r.Get("/assets", h.listAssets)
		r.Post("/assets", h.uploadAsset)
		r.Get("/validate", h.validateContent)
		r.Post("/refresh", h.refreshContent)
	})

	if h.cfg.Git != nil {
		r.HandleFunc("/git/*", h.serveGit)
	}
}
