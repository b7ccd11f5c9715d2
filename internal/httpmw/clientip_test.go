package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func runClientIP(t *testing.T, opts ClientIPOptions, remoteAddr, xff string) (ip string, xffAfter string) {
	t.Helper()
	h := ClientIPWithOptions(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = ClientIPFromContext(r.Context())
		xffAfter = r.Header.Get("X-Forwarded-For")
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = remoteAddr
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return ip, xffAfter
}

func TestClientIP_PublicPeerIgnoresForwarded(t *testing.T) {
	ip, xff := runClientIP(t, ClientIPOptions{TrustedHops: 1}, "203.0.113.7:1234", "198.51.100.1")
	if ip != "203.0.113.7" {
		t.Errorf("ip = %q, want socket address", ip)
	}
	if xff != "" {
		t.Error("X-Forwarded-For from an untrusted peer must be stripped")
	}
}

func TestClientIP_NoTrustedHopsIgnoresForwarded(t *testing.T) {
	ip, _ := runClientIP(t, ClientIPOptions{}, "10.0.0.5:1234", "198.51.100.1")
	if ip != "10.0.0.5" {
		t.Errorf("ip = %q, want 10.0.0.5", ip)
	}
}

func TestClientIP_TrustedHopSelectsRightmost(t *testing.T) {
	ip, _ := runClientIP(t, ClientIPOptions{TrustedHops: 1}, "10.0.0.5:1234", "198.51.100.1, 198.51.100.2")
	if ip != "198.51.100.2" {
		t.Errorf("ip = %q, want rightmost XFF entry", ip)
	}
}

func TestClientIP_TwoHops(t *testing.T) {
	ip, _ := runClientIP(t, ClientIPOptions{TrustedHops: 2}, "10.0.0.5:1234", "198.51.100.1, 198.51.100.2")
	if ip != "198.51.100.1" {
		t.Errorf("ip = %q, want second-from-end XFF entry", ip)
	}
}

func TestClientIP_FewerEntriesThanHopsFailsClosed(t *testing.T) {
	ip, xff := runClientIP(t, ClientIPOptions{TrustedHops: 3}, "10.0.0.5:1234", "198.51.100.1")
	if ip != "10.0.0.5" {
		t.Errorf("ip = %q, want socket address", ip)
	}
	if xff != "" {
		t.Error("suspicious X-Forwarded-For must be stripped")
	}
}

func TestClientIP_MalformedRemoteAddr(t *testing.T) {
	ip, _ := runClientIP(t, ClientIPOptions{}, "garbage", "")
	if ip != "garbage" {
		t.Errorf("ip = %q", ip)
	}
}
