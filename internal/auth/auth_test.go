package auth

import (
	"net/http/httptest"
	"testing"
)

func TestTokenSource_Literal(t *testing.T) {
	v, err := TokenSource("hunter2").Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != "hunter2" {
		t.Fatalf("Resolve = %q", v)
	}
}

func TestTokenSource_Env(t *testing.T) {
	t.Setenv("INKWELL_TEST_TOKEN", "from-env")
	v, err := TokenSource("env:INKWELL_TEST_TOKEN").Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != "from-env" {
		t.Fatalf("Resolve = %q", v)
	}
}

func TestTokenSource_EnvUnset(t *testing.T) {
	if _, err := TokenSource("env:INKWELL_DEFINITELY_UNSET").Resolve(); err == nil {
		t.Fatal("expected error for unset environment variable")
	}
}

func TestCheckBearer(t *testing.T) {
	g := NewGate("s3cret", nil)

	r := httptest.NewRequest("GET", "/api/v1/posts?include_drafts=true", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	if !g.CheckBearer(r) {
		t.Fatal("valid bearer token should pass")
	}

	r.Header.Set("Authorization", "Bearer wrong")
	if g.CheckBearer(r) {
		t.Fatal("wrong bearer token should fail")
	}

	r.Header.Set("Authorization", "Basic czNjcmV0")
	if g.CheckBearer(r) {
		t.Fatal("non-bearer scheme should fail")
	}

	r.Header.Del("Authorization")
	if g.CheckBearer(r) {
		t.Fatal("missing header should fail")
	}
}

func TestCheckBearer_TrimsWhitespace(t *testing.T) {
	g := NewGate("s3cret", nil)
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer s3cret ")
	if !g.CheckBearer(r) {
		t.Fatal("trailing whitespace on token should be tolerated")
	}
}

func TestCheckBasic(t *testing.T) {
	g := NewGate("s3cret", nil)

	r := httptest.NewRequest("POST", "/git/git-receive-pack", nil)
	r.SetBasicAuth("git", "s3cret")
	if !g.CheckBasic(r) {
		t.Fatal("valid basic password should pass")
	}

	r = httptest.NewRequest("POST", "/git/git-receive-pack", nil)
	r.SetBasicAuth("any-username-at-all", "s3cret")
	if !g.CheckBasic(r) {
		t.Fatal("username must be ignored")
	}

	r = httptest.NewRequest("POST", "/git/git-receive-pack", nil)
	r.SetBasicAuth("git", "nope")
	if g.CheckBasic(r) {
		t.Fatal("wrong password should fail")
	}

	r = httptest.NewRequest("POST", "/git/git-receive-pack", nil)
	if g.CheckBasic(r) {
		t.Fatal("missing credentials should fail")
	}
}

func TestGate_FailsClosed(t *testing.T) {
	cases := []struct {
		name  string
		token TokenSource
	}{
		{"unconfigured", ""},
		{"resolves empty", "env:INKWELL_EMPTY_TOKEN"},
		{"unset env", "env:INKWELL_DEFINITELY_UNSET"},
	}
	t.Setenv("INKWELL_EMPTY_TOKEN", "")

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := NewGate(c.token, nil)

			// Empty provided credentials must never match an empty or
			// unresolvable expected token.
			r := httptest.NewRequest("GET", "/", nil)
			r.Header.Set("Authorization", "Bearer ")
			if g.CheckBearer(r) {
				t.Fatal("gate must fail closed for bearer")
			}

			r = httptest.NewRequest("POST", "/", nil)
			r.SetBasicAuth("git", "")
			if g.CheckBasic(r) {
				t.Fatal("gate must fail closed for basic")
			}
		})
	}
}
