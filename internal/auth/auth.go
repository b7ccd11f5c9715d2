// Package auth gates elevated API queries and git endpoints behind a single
// configured admin token. The gate fails closed: a missing or empty token
// denies all elevated access rather than matching empty-vs-empty.
package auth

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/kestrelworks/inkwell/internal/cryptoutil"
	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/xerrors"
)

// TokenSource is a configured secret: either a literal value or an
// environment-variable reference written as "env:VAR_NAME".
type TokenSource string

// Resolve returns the secret value. Referencing an unset environment
// variable is an error; an empty resolved value is returned as-is and
// callers must treat it as not-configured.
func (t TokenSource) Resolve() (string, error) {
	s := string(t)
	if name, ok := strings.CutPrefix(s, "env:"); ok {
		v, set := os.LookupEnv(name)
		if !set {
			return "", xerrors.Newf("environment variable %s not set", name)
		}
		return v, nil
	}
	return s, nil
}

// Gate validates caller credentials against the configured admin token.
type Gate struct {
	token  TokenSource
	logger log.Logger
}

func NewGate(token TokenSource, logger log.Logger) *Gate {
	if logger == nil {
		logger = log.Nop()
	}
	return &Gate{token: token, logger: logger}
}

// expected resolves the configured token, failing closed on resolution
// errors and on empty values.
func (g *Gate) expected(ctx context.Context) (string, bool) {
	if g.token == "" {
		return "", false
	}
	v, err := g.token.Resolve()
	if err != nil {
		g.logger.Warn(ctx, "admin token resolution failed, denying elevated access", "err", err.Error())
		return "", false
	}
	if v == "" {
		g.logger.Warn(ctx, "admin token resolves to empty string, denying elevated access")
		return "", false
	}
	return v, true
}

// CheckBearer reports whether the request carries a valid
// "Authorization: Bearer <token>" header.
func (g *Gate) CheckBearer(r *http.Request) bool {
	expected, ok := g.expected(r.Context())
	if !ok {
		return false
	}
	h := r.Header.Get("Authorization")
	provided, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return false
	}
	return cryptoutil.TokenEqual(strings.TrimSpace(provided), expected)
}

// CheckBasic reports whether the request carries valid basic-auth
// credentials. The password field is compared as the token; the username is
// ignored (git clients commonly send "git" or an arbitrary name).
func (g *Gate) CheckBasic(r *http.Request) bool {
	expected, ok := g.expected(r.Context())
	if !ok {
		return false
	}
	_, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return cryptoutil.TokenEqual(password, expected)
}
