package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelworks/inkwell/internal/httpmw"
	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/probe"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	Health       probe.Probe
	Readiness    probe.Probe
	ContentInfo  httpmw.ContentInfo // For the X-Content-Fingerprint header
	ClientIPOpts httpmw.ClientIPOptions

	// APIRoutes mounts the application routes (API + git bridge).
	APIRoutes func(chi.Router)

	// MaxBodyBytes caps request bodies outside /git/; the git bridge
	// enforces its own, much larger, limit.
	MaxBodyBytes int64

	// WriteTimeout for the listener. Zero means no deadline, which the
	// git endpoints need for large clones and pushes.
	WriteTimeout time.Duration
}
