// Package netsafe classifies IP addresses as safe or unsafe targets for
// outbound connections. Webhook delivery uses it to refuse loopback, private,
// and otherwise non-routable destinations (SSRF protection).
package netsafe

import "net/netip"

var (
	ipv4Private10  = netip.MustParsePrefix("10.0.0.0/8")
	ipv4Private172 = netip.MustParsePrefix("172.16.0.0/12")
	ipv4Private192 = netip.MustParsePrefix("192.168.0.0/16")
	ipv4LinkLocal  = netip.MustParsePrefix("169.254.0.0/16")
	ipv4CGNAT      = netip.MustParsePrefix("100.64.0.0/10")
	ipv6UniqueLoc  = netip.MustParsePrefix("fc00::/7")
	ipv6LinkLocal  = netip.MustParsePrefix("fe80::/10")
	ipv6SiteLocal  = netip.MustParsePrefix("fec0::/10")
)

// IsSafe reports whether addr is acceptable for an outbound connection.
//
// It rejects loopback, unspecified, multicast, RFC 1918 private ranges,
// IPv4 link-local (which covers cloud metadata services), carrier-grade NAT,
// IPv6 unique-local, IPv6 link-local, and the deprecated IPv6 site-local
// range. IPv4-mapped IPv6 addresses are unmapped and classified as IPv4.
func IsSafe(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	// ::ffff:a.b.c.d carries IPv4 semantics; classify the embedded address
	if addr.Is4In6() {
		return IsSafe(addr.Unmap())
	}
	if addr.IsLoopback() || addr.IsUnspecified() || addr.IsMulticast() {
		return false
	}
	if addr.Is4() {
		return !isPrivateV4(addr)
	}
	return !isPrivateV6(addr)
}

func isPrivateV4(addr netip.Addr) bool {
	return ipv4Private10.Contains(addr) ||
		ipv4Private172.Contains(addr) ||
		ipv4Private192.Contains(addr) ||
		ipv4LinkLocal.Contains(addr) ||
		ipv4CGNAT.Contains(addr)
}

func isPrivateV6(addr netip.Addr) bool {
	return ipv6UniqueLoc.Contains(addr) ||
		ipv6LinkLocal.Contains(addr) ||
		ipv6SiteLocal.Contains(addr)
}
