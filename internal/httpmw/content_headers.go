package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo exposes the identity of the content snapshot serving requests.
type ContentInfo interface {
	ContentFingerprint() string
}

// ContentHeaders adds an X-Content-Fingerprint header to responses so
// clients and caches can tell which snapshot produced them.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info != nil {
				if fp := info.ContentFingerprint(); fp != "" {
					// short hash for the header
					if len(fp) > 12 {
						fp = fp[:12]
					}
					w.Header().Set("X-Content-Fingerprint", fp)

					if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
						span.SetAttributes(attribute.String("content.fingerprint", fp))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
