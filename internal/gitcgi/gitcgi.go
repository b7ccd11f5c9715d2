// Package gitcgi bridges HTTP requests to a git http-backend subprocess.
//
// Request bodies are streamed into the process's stdin and the process's
// stdout is streamed back out, so arbitrarily large transfers never buffer
// in memory. Each request gets its own process and pipes; a detached
// completion handle reaps the process and reports its outcome.
package gitcgi

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/xerrors"
)

const (
	// MaxHeaderBytes caps the CGI header region before parsing gives up.
	MaxHeaderBytes = 16 << 10

	// maxStderrBytes caps how much child stderr is retained for logging.
	maxStderrBytes = 64 << 10

	// DefaultTimeout bounds how long a backend process may run before the
	// completion handle kills it.
	DefaultTimeout = 300 * time.Second

	// DefaultMaxBodyBytes bounds the inbound request body (100 MiB).
	DefaultMaxBodyBytes = 100 << 20

	// stderrDrainTimeout bounds how long a reap waits for the stderr reader.
	// A leaked descendant can hold the pipe open indefinitely, so the drain
	// is best-effort.
	stderrDrainTimeout = 2 * time.Second
)

// ErrBodyTooLarge is recorded by the stdin forwarder when the inbound body
// crosses the configured maximum.
var ErrBodyTooLarge = xerrors.New("request body exceeds configured maximum")

// ErrTimeout is returned by Wait when the process had to be killed.
var ErrTimeout = xerrors.New("git backend timed out")

// Backend spawns git http-backend processes for one repository.
type Backend struct {
	repoRoot    string
	backendPath string
	logger      log.Logger
}

func NewBackend(repoRoot, backendPath string, logger log.Logger) *Backend {
	if logger == nil {
		logger = log.Nop()
	}
	return &Backend{repoRoot: repoRoot, backendPath: backendPath, logger: logger}
}

// IsValidRepo reports whether the configured repository root looks like a
// git repository (worktree or bare).
func (b *Backend) IsValidRepo() bool {
	if _, err := os.Stat(b.repoRoot + "/.git"); err == nil {
		return true
	}
	if _, err := os.Stat(b.repoRoot + "/HEAD"); err == nil {
		return true
	}
	return false
}

// Request carries the pieces of the HTTP request the CGI contract needs.
type Request struct {
	Method        string
	PathInfo      string // path after the git mount point, e.g. "/info/refs"
	QueryString   string
	ContentType   string
	ContentLength int64 // -1 when unknown
	RemoteAddr    string
	Body          io.Reader
	MaxBodyBytes  int64 // 0 means DefaultMaxBodyBytes
}

// Response is a streaming CGI response. Headers are already parsed; Body
// yields the remaining stdout bytes and is consumed exactly once. After the
// body is drained (or abandoned), Completion.Wait must be called to reap
// the process.
type Response struct {
	Status     int
	Header     http.Header
	Body       io.ReadCloser
	Completion *Completion
}

// Completion reaps the child process, joins the stdin forwarder, and
// surfaces the child's stderr into server logs.
type Completion struct {
	cmd    *exec.Cmd
	logger log.Logger

	waitCh chan error // receives cmd.Wait result exactly once

	stdinMu   sync.Mutex
	stdinErr  error
	stdinDone bool

	stderrCh chan string
}

func (c *Completion) setStdinErr(err error) {
	c.stdinMu.Lock()
	c.stdinErr = err
	c.stdinDone = true
	c.stdinMu.Unlock()
}

// StdinError reports the stdin forwarder's outcome without blocking.
// done is false while the forwarder is still running.
func (c *Completion) StdinError() (err error, done bool) {
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()
	return c.stdinErr, c.stdinDone
}

// drainStderr retrieves the child's stderr output. An orphaned descendant
// can keep the write end open past the child's death, so the receive gives
// up after stderrDrainTimeout rather than blocking the reap.
func (c *Completion) drainStderr() (string, bool) {
	timer := time.NewTimer(stderrDrainTimeout)
	defer timer.Stop()
	select {
	case s := <-c.stderrCh:
		return s, true
	case <-timer.C:
		return "", false
	}
}

// Wait blocks until the process exits or the timeout fires. On timeout the
// process is killed and ErrTimeout returned. The process is always reaped,
// and any stderr output is logged. A nil return means a zero exit status.
func (c *Completion) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	var timedOut bool
	select {
	case waitErr = <-c.waitCh:
	case <-timer.C:
		timedOut = true
		// kill the whole group: http-backend's pack helpers inherit the
		// pipes and would otherwise outlive it
		killProcessTree(c.cmd)
		waitErr = <-c.waitCh
	}

	if stderr, ok := c.drainStderr(); ok && stderr != "" {
		c.logger.Warn(context.Background(), "git backend stderr", "stderr", stderr)
	}
	if serr, done := c.StdinError(); done && serr != nil && serr != ErrBodyTooLarge {
		c.logger.Warn(context.Background(), "git backend stdin streaming error", "err", serr.Error())
	}

	if timedOut {
		c.logger.Error(context.Background(), ErrTimeout, "git backend killed after timeout",
			"timeout_secs", timeout.Seconds())
		return ErrTimeout
	}
	if waitErr != nil {
		return xerrors.Wrap(waitErr, "git backend exited with error")
	}
	return nil
}

// Run spawns the backend and returns once CGI headers are parsed. The body
// continues to stream; the caller must consume Response.Body and then call
// Completion.Wait (typically on a detached goroutine).
func (b *Backend) Run(req Request) (*Response, error) {
	backendPath := b.backendPath
	if backendPath == "" {
		var err error
		backendPath, err = findHTTPBackend()
		if err != nil {
			return nil, err
		}
	}

	maxBody := req.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_PROJECT_ROOT=" + b.repoRoot,
		"GIT_HTTP_EXPORT_ALL=1",
		"PATH_INFO=" + req.PathInfo,
		"REQUEST_METHOD=" + req.Method,
		"QUERY_STRING=" + req.QueryString,
	}
	if req.ContentType != "" {
		env = append(env, "CONTENT_TYPE="+req.ContentType)
	}
	if req.ContentLength >= 0 {
		env = append(env, "CONTENT_LENGTH="+strconv.FormatInt(req.ContentLength, 10))
	}
	if req.RemoteAddr != "" {
		env = append(env, "REMOTE_ADDR="+req.RemoteAddr)
	}

	cmd := exec.Command(backendPath)
	cmd.Env = env
	setProcessGroup(cmd)

	// Manual pipes rather than StdinPipe/StdoutPipe: the body stream is
	// read concurrently with process reaping, and exec's managed pipes
	// are closed by Wait underneath a concurrent reader.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, xerrors.Wrap(err, "create stdin pipe")
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, xerrors.Wrap(err, "create stdout pipe")
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, xerrors.Wrap(err, "create stderr pipe")
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, xerrors.Wrapf(err, "spawn %s", backendPath)
	}

	// parent's copies of the child ends
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	completion := &Completion{
		cmd:      cmd,
		logger:   b.logger,
		waitCh:   make(chan error, 1),
		stderrCh: make(chan string, 1),
	}

	go func() { completion.waitCh <- cmd.Wait() }()

	go func() {
		buf, _ := io.ReadAll(io.LimitReader(stderrR, maxStderrBytes))
		stderrR.Close()
		completion.stderrCh <- strings.TrimSpace(string(buf))
	}()

	body := req.Body
	if body == nil {
		body = strings.NewReader("")
	}
	go forwardStdin(completion, stdinW, body, maxBody)

	reader := bufio.NewReader(stdoutR)
	status, header, err := parseHeaders(reader)
	if err != nil {
		// kill and reap inline; there is no response to stream
		killProcessTree(cmd)
		<-completion.waitCh
		stdoutR.Close()
		completion.drainStderr()
		return nil, err
	}

	return &Response{
		Status:     status,
		Header:     header,
		Body:       &bodyReader{r: reader, c: stdoutR},
		Completion: completion,
	}, nil
}

// forwardStdin copies the request body into the child, counting bytes and
// aborting past the cap. The write end is always closed so the child sees
// EOF. A broken pipe is expected when the child needs no (more) input.
func forwardStdin(c *Completion, w *os.File, body io.Reader, maxBody int64) {
	defer w.Close()

	var total int64
	buf := make([]byte, 32<<10)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBody {
				c.setStdinErr(ErrBodyTooLarge)
				return
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				if isBrokenPipe(werr) {
					c.setStdinErr(nil)
					return
				}
				c.setStdinErr(xerrors.Wrap(werr, "write to git backend stdin"))
				return
			}
		}
		if rerr == io.EOF {
			c.setStdinErr(nil)
			return
		}
		if rerr != nil {
			c.setStdinErr(xerrors.Wrap(rerr, "read request body"))
			return
		}
	}
}

func isBrokenPipe(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "file already closed"))
}

// bodyReader joins the buffered header reader with the underlying pipe so
// Close releases the descriptor.
type bodyReader struct {
	r io.Reader
	c io.Closer
}

func (b *bodyReader) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *bodyReader) Close() error               { return b.c.Close() }

// parseHeaders reads "Key: Value" lines up to a blank-line separator,
// bounded by MaxHeaderBytes. A Status header sets the HTTP status code
// (default 200). Missing separator before EOF is a parse failure.
func parseHeaders(r *bufio.Reader) (int, http.Header, error) {
	header := make(http.Header)
	status := http.StatusOK
	total := 0

	for {
		line, err := r.ReadString('\n')
		total += len(line)
		if total > MaxHeaderBytes {
			return 0, nil, xerrors.Newf("cgi headers exceed %d bytes", MaxHeaderBytes)
		}
		if err != nil {
			if err == io.EOF {
				return 0, nil, xerrors.New("cgi output ended before header separator")
			}
			return 0, nil, xerrors.Wrap(err, "read cgi headers")
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return status, header, nil
		}

		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue // tolerate malformed lines, matching permissive CGI parsers
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.EqualFold(key, "Status") {
			if code, ok := parseStatusValue(value); ok {
				status = code
			}
			continue
		}
		header.Add(key, value)
	}
}

func parseStatusValue(v string) (int, bool) {
	first, _, _ := strings.Cut(v, " ")
	code, err := strconv.Atoi(first)
	if err != nil || code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}
