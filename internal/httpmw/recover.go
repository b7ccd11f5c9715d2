package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/xerrors"
)

// Recover converts handler panics into a 500 response instead of a dropped
// connection, logs the stack, and invokes onPanic (metrics hook) if set.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					// the server uses this to abort mid-write; re-raise
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = xerrors.Newf("panic: %v", rec)
				}
				if logger != nil {
					logger.Error(r.Context(), err, "panic recovered in http handler",
						"url.path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
				}
				if onPanic != nil {
					onPanic()
				}

				// headers may already be gone; this is best-effort
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
