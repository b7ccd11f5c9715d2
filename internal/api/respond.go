package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kestrelworks/inkwell/internal/log"
)

const (
	publicCacheControl  = "public, max-age=60, stale-while-revalidate=300"
	privateCacheControl = "private, no-store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a generic JSON error. msg must never carry internal
// detail; callers log the real error themselves.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", privateCacheControl)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// setCacheHeaders applies the caching policy: shared caches may hold public
// reads briefly, anything touched by admin rights is never stored.
func setCacheHeaders(w http.ResponseWriter, admin bool) {
	if admin {
		w.Header().Set("Cache-Control", privateCacheControl)
	} else {
		w.Header().Set("Cache-Control", publicCacheControl)
	}
}

// conditionalETag sets the ETag from the snapshot fingerprint and answers
// If-None-Match with 304 when it matches. Returns true when the response
// is already written.
func conditionalETag(w http.ResponseWriter, r *http.Request, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	etag := `"` + fingerprint + `"`
	w.Header().Set("ETag", etag)

	match := r.Header.Get("If-None-Match")
	if match == "" {
		return false
	}
	for _, candidate := range strings.Split(match, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag || candidate == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

func (h *Handler) logErr(r *http.Request, err error, msg string, kv ...any) {
	L := log.FromContext(r.Context())
	L.Error(r.Context(), err, msg, kv...)
}
