package gitcgi

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kestrelworks/inkwell/internal/xerrors"
)

// Well-known install locations tried before asking git itself.
var backendCandidates = []string{
	"/usr/lib/git-core/git-http-backend",
	"/usr/libexec/git-core/git-http-backend",
	"/usr/local/libexec/git-core/git-http-backend",
	"/opt/homebrew/opt/git/libexec/git-core/git-http-backend",
}

var (
	locateOnce sync.Once
	locatePath string
	locateErr  error
)

// findHTTPBackend locates the git-http-backend binary. The result is cached
// for the lifetime of the process.
func findHTTPBackend() (string, error) {
	locateOnce.Do(func() {
		locatePath, locateErr = locateBackend()
	})
	return locatePath, locateErr
}

func locateBackend() (string, error) {
	for _, p := range backendCandidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}

	out, err := exec.Command("git", "--exec-path").Output()
	if err != nil {
		return "", xerrors.Wrap(err, "git --exec-path")
	}
	execPath := strings.TrimSpace(string(out))
	if execPath == "" {
		return "", xerrors.New("git --exec-path returned nothing")
	}
	p := filepath.Join(execPath, "git-http-backend")
	if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
		return "", xerrors.Newf("git-http-backend not found at %s", p)
	}
	return p, nil
}
