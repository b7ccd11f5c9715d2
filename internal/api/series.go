package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelworks/inkwell/internal/content"
)

type seriesListResponse struct {
	Series []content.SeriesSummary `json:"series"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

func (h *Handler) listSeries(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseListQuery(r)
	if !ok {
		unauthorized(w)
		return
	}

	setCacheHeaders(w, q.admin)

	snap, loaded := h.cfg.Content.Get()
	if !loaded {
		writeJSON(w, http.StatusOK, seriesListResponse{Series: []content.SeriesSummary{}})
		return
	}
	if !q.admin && conditionalETag(w, r, snap.Fingerprint()) {
		return
	}

	res := snap.ListSeries(q.opts)
	writeJSON(w, http.StatusOK, seriesListResponse{
		Series: res.Items,
		Total:  res.Total,
		Limit:  res.Limit,
		Offset: res.Offset,
	})
}

func (h *Handler) getSeries(w http.ResponseWriter, r *http.Request) {
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

	series, ok := snap.GetSeries(chi.URLParam(r, "slug"), admin)
	if !ok {
		notFound(w)
		return
	}
	if !admin && conditionalETag(w, r, snap.Fingerprint()) {
		return
	}
	writeJSON(w, http.StatusOK, series)
}
