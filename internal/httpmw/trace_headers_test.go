package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTraceResponseHeaders(t *testing.T) {
	mw := TraceResponseHeaders("", "")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("no span context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if got := rec.Header().Get("X-Trace-Id"); got != "" {
			t.Errorf("X-Trace-Id = %q, want absent", got)
		}
	})

	t.Run("valid span context", func(t *testing.T) {
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
			SpanID:  trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		})
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))

		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Trace-Id"); got != sc.TraceID().String() {
			t.Errorf("X-Trace-Id = %q, want %q", got, sc.TraceID().String())
		}
		if got := rec.Header().Get("X-Span-Id"); got != sc.SpanID().String() {
			t.Errorf("X-Span-Id = %q, want %q", got, sc.SpanID().String())
		}
	})
}
