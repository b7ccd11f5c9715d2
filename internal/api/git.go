package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelworks/inkwell/internal/gitcgi"
	"github.com/kestrelworks/inkwell/internal/httpmw"
	"github.com/kestrelworks/inkwell/internal/pathutil"
)

// serveGit bridges a smart HTTP request to git http-backend. The response
// streams; process reaping and post-push work happen on a detached
// goroutine so the client is never held waiting on cache refreshes or
// webhook deliveries.
func (h *Handler) serveGit(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Gate.CheckBasic(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="git"`)
		h.incGitRejected("auth")
		unauthorized(w)
		return
	}

	pathInfo := "/" + chi.URLParam(r, "*")
	if err := pathutil.ValidateGitPath(pathInfo); err != nil {
		h.incGitRejected("bad_path")
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	rawQuery := r.URL.RawQuery
	if rawQuery != "" {
		if err := pathutil.ValidateGitPath(rawQuery); err != nil {
			h.incGitRejected("bad_query")
			writeError(w, http.StatusBadRequest, "invalid query")
			return
		}
	}

	isWrite := pathutil.IsWriteOp(pathInfo) || pathutil.IsWriteOp(rawQuery)
	op := "git-upload-pack"
	if isWrite {
		op = "git-receive-pack"
	}

	resp, err := h.cfg.Git.Run(gitcgi.Request{
		Method:        r.Method,
		PathInfo:      pathInfo,
		QueryString:   rawQuery,
		ContentType:   r.Header.Get("Content-Type"),
		ContentLength: r.ContentLength,
		RemoteAddr:    httpmw.ClientIPFromContext(r.Context()),
		Body:          r.Body,
		MaxBodyBytes:  h.cfg.GitMaxBody,
	})
	if err != nil {
		h.logErr(r, err, "git backend failed", "op", op)
		h.incGitRequest(op, http.StatusInternalServerError)
		internalError(w)
		return
	}

	// an oversize body detected before anything is written maps to 413;
	// detected later the stream just ends
	if serr, done := resp.Completion.StdinError(); done && errors.Is(serr, gitcgi.ErrBodyTooLarge) {
		resp.Body.Close()
		go resp.Completion.Wait(h.cfg.GitTimeout)
		h.incGitRequest(op, http.StatusRequestEntityTooLarge)
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	// the reaper is armed before the body streams: a backend that hangs
	// mid-response is killed after GitTimeout, which closes its stdout and
	// unblocks the copy below
	go h.finishGit(op, isWrite, resp)

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn(r.Context(), "git response streaming interrupted", "op", op, "err", err.Error())
	}
	resp.Body.Close()
	h.incGitRequest(op, resp.Status)
}

// finishGit reaps the backend process and, after a successful push,
// refreshes the content cache and notifies webhook targets.
func (h *Handler) finishGit(op string, isWrite bool, resp *gitcgi.Response) {
	ctx := context.Background()

	err := resp.Completion.Wait(h.cfg.GitTimeout)
	if errors.Is(err, gitcgi.ErrTimeout) && h.cfg.Metrics != nil {
		h.cfg.Metrics.IncGitTimeout()
	}
	if err != nil || !isWrite || resp.Status >= 300 {
		return
	}

	if rerr := h.refresh(ctx); rerr != nil {
		h.logger.Error(ctx, rerr, "content refresh after push failed")
		return
	}

	fp := h.cfg.Content.Fingerprint()
	h.logger.Info(ctx, "content refreshed after push", "fingerprint", shortFP(fp))

	if h.cfg.Hooks != nil && h.cfg.Hooks.Targets() > 0 {
		payload, _ := json.Marshal(map[string]string{
			"event":       "content_updated",
			"fingerprint": fp,
		})
		h.cfg.Hooks.Fire(ctx, payload)
	}
}

func (h *Handler) incGitRequest(op string, status int) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.IncGitRequest(op, status)
	}
}

func (h *Handler) incGitRejected(reason string) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.IncGitRejected(reason)
	}
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return strings.TrimSpace(fp)
}
