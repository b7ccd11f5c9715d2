package api

import (
	"net/http"
	"strconv"

	"github.com/kestrelworks/inkwell/internal/content"
)

// listQuery is the parsed form of a list request. Admin reports whether an
// elevated flag was requested, which requires (and was granted) bearer auth.
type listQuery struct {
	opts  content.ListOptions
	admin bool
}

func boolParam(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseListQuery reads paging and visibility flags. Elevated visibility
// needs a valid admin bearer token; without one the request is rejected,
// not silently downgraded.
func (h *Handler) parseListQuery(r *http.Request) (listQuery, bool) {
	q := listQuery{
		opts: content.ListOptions{
			Limit:  intParam(r, "limit", 0),
			Offset: intParam(r, "offset", 0),
		},
	}

	wantDrafts := boolParam(r, "include_drafts")
	wantScheduled := boolParam(r, "include_scheduled")
	if !wantDrafts && !wantScheduled {
		return q, true
	}

	if !h.cfg.Gate.CheckBearer(r) {
		return q, false
	}
	q.opts.IncludeDrafts = wantDrafts
	q.opts.IncludeScheduled = wantScheduled
	q.admin = true
	return q, true
}
