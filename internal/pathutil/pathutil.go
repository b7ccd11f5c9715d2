// Package pathutil validates request paths before they reach a subprocess
// or the filesystem.
package pathutil

import (
	"strings"

	"github.com/kestrelworks/inkwell/internal/xerrors"
)

// ErrUnsafePath rejects paths with traversal sequences or characters
// outside the git smart HTTP repertoire.
var ErrUnsafePath = xerrors.New("unsafe path")

// ValidateGitPath checks a path destined for git http-backend's PATH_INFO.
// Allowed characters are alphanumerics plus "-_./=?&+"; any ".." sequence
// is rejected outright.
func ValidateGitPath(p string) error {
	if p == "" {
		return ErrUnsafePath
	}
	if strings.Contains(p, "..") {
		return ErrUnsafePath
	}
	for i := 0; i < len(p); i++ {
		if !isGitPathByte(p[i]) {
			return ErrUnsafePath
		}
	}
	return nil
}

func isGitPathByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '/', '=', '?', '&', '+':
		return true
	}
	return false
}

// IsWriteOp reports whether a git path performs a push. The receive-pack
// service is the only mutating endpoint in the smart HTTP protocol.
func IsWriteOp(p string) bool {
	return strings.Contains(p, "git-receive-pack")
}

// CleanTreeRelative normalizes a caller-supplied relative path for use
// under a storage prefix. It rejects absolute paths, traversal, and empty
// results.
func CleanTreeRelative(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ErrUnsafePath
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrUnsafePath
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return "", ErrUnsafePath
	}
	return strings.Join(out, "/"), nil
}
