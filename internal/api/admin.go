package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kestrelworks/inkwell/internal/content"
	"github.com/kestrelworks/inkwell/internal/storage"
)

// requireAdmin gates the admin-only endpoints behind the bearer token.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !h.cfg.Gate.CheckBearer(r) {
		unauthorized(w)
		return false
	}
	w.Header().Set("Cache-Control", privateCacheControl)
	return true
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if h.cfg.Assets == nil {
		notFound(w)
		return
	}

	page, err := h.cfg.Assets.List(r.Context(), storage.ListQuery{
		Limit:  intParam(r, "limit", 0),
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		h.logErr(r, err, "asset list failed")
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) uploadAsset(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if h.cfg.Assets == nil {
		notFound(w)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key parameter")
		return
	}

	asset, err := h.cfg.Assets.Upload(r.Context(), key, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		h.logErr(r, err, "asset upload failed", "key", key)
		writeError(w, http.StatusBadRequest, "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

type validateResponse struct {
	Issues []content.ValidationIssue `json:"issues"`
	Count  int                       `json:"count"`
}

func (h *Handler) validateContent(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	snap, loaded := h.cfg.Content.Get()
	if !loaded {
		writeJSON(w, http.StatusOK, validateResponse{Issues: []content.ValidationIssue{}})
		return
	}

	issues := snap.Validate()
	if issues == nil {
		issues = []content.ValidationIssue{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Issues: issues, Count: len(issues)})
}

type refreshResponse struct {
	Fingerprint string `json:"fingerprint"`
	Posts       int    `json:"posts"`
	Series      int    `json:"series"`
}

func (h *Handler) refreshContent(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.refresh(r.Context()); err != nil {
		h.logErr(r, err, "content refresh failed")
		internalError(w)
		return
	}

	snap, _ := h.cfg.Content.Get()
	posts, series := snap.Counts()
	writeJSON(w, http.StatusOK, refreshResponse{
		Fingerprint: snap.Fingerprint(),
		Posts:       posts,
		Series:      series,
	})
}

// refresh reloads the content tree and keeps the snapshot gauges current.
func (h *Handler) refresh(ctx context.Context) error {
	start := time.Now()
	err := h.cfg.Content.Refresh(ctx)
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.IncRefresh(err == nil)
		if err == nil {
			h.cfg.Metrics.ObserveLoadDuration(time.Since(start))
		}
		if snap, ok := h.cfg.Content.Get(); ok {
			posts, series := snap.Counts()
			h.cfg.Metrics.SetSnapshotStats(posts, series, len(snap.Issues()), snap.LoadedAt(), snap.Fingerprint())
		}
	}
	return err
}
