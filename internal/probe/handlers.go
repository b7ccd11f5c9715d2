package probe

import (
	"fmt"
	"net/http"
)

// HealthzHandler serves a liveness endpoint. A nil probe is healthy.
func HealthzHandler(p Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "unhealthy: %s\n", err.Error())
				return
			}
		}
		fmt.Fprintln(w, "ok")
	}
}

// ReadyzHandler serves a readiness endpoint. A nil probe is ready.
func ReadyzHandler(p Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "not ready: %s\n", err.Error())
				return
			}
		}
		fmt.Fprintln(w, "ready")
	}
}
