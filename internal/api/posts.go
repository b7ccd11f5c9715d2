package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelworks/inkwell/internal/content"
)

type postListResponse struct {
	Posts  []content.PostSummary `json:"posts"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// adminFromRequest resolves optional bearer credentials. A request without
// an Authorization header is public; one with an invalid header is denied
// rather than silently downgraded.
func (h *Handler) adminFromRequest(r *http.Request) (admin, denied bool) {
	if r.Header.Get("Authorization") == "" {
		return false, false
	}
	if h.cfg.Gate.CheckBearer(r) {
		return true, false
	}
	return false, true
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseListQuery(r)
	if !ok {
		unauthorized(w)
		return
	}

	setCacheHeaders(w, q.admin)

	snap, loaded := h.cfg.Content.Get()
	if !loaded {
		writeJSON(w, http.StatusOK, postListResponse{Posts: []content.PostSummary{}})
		return
	}
	if !q.admin && conditionalETag(w, r, snap.Fingerprint()) {
		return
	}

	res := snap.ListPosts(q.opts)
	writeJSON(w, http.StatusOK, postListResponse{
		Posts:  res.Items,
		Total:  res.Total,
		Limit:  res.Limit,
		Offset: res.Offset,
	})
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	admin, denied := h.adminFromRequest(r)
	if denied {
		unauthorized(w)
		return
	}

	setCacheHeaders(w, admin)

	snap, loaded := h.cfg.Content.Get()
	if !loaded {
		notFound(w)
		return
	}

	post, ok := snap.GetPost(chi.URLParam(r, "slug"), admin)
	if !ok {
		notFound(w)
		return
	}
	if !admin && conditionalETag(w, r, snap.Fingerprint()) {
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) getPostRaw(w http.ResponseWriter, r *http.Request) {
	admin, denied := h.adminFromRequest(r)
	if denied {
		unauthorized(w)
		return
	}

	setCacheHeaders(w, admin)

	snap, loaded := h.cfg.Content.Get()
	if !loaded {
		notFound(w)
		return
	}

	post, ok := snap.GetPost(chi.URLParam(r, "slug"), admin)
	if !ok {
		notFound(w)
		return
	}
	if !admin && conditionalETag(w, r, snap.Fingerprint()) {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(post.Body))
}
