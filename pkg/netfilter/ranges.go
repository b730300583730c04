package netfilter

import "net/netip"

// Special-purpose address blocks, following the IANA IPv4 and IPv6
// special-purpose registries.
var (
	privateV4 = mustPrefixes(
		"0.0.0.0/8",
		"10.0.0.0/8",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.0.0.0/29",
		"192.0.0.170/31",
		"192.0.2.0/24",
		"192.168.0.0/16",
		"198.18.0.0/15",
		"198.51.100.0/24",
		"203.0.113.0/24",
		"240.0.0.0/4",
		"255.255.255.255/32",
	)
	privateV6 = mustPrefixes(
		"::1/128",
		"::/128",
		"::ffff:0:0/96",
		"100::/64",
		"2001::/23",
		"2001:2::/48",
		"2001:db8::/32",
		"2001:10::/28",
		"fc00::/7",
		"fe80::/10",
	)

	reservedV4 = mustPrefixes("240.0.0.0/4")
	reservedV6 = mustPrefixes(
		"::/8",
		"100::/8",
		"200::/7",
		"400::/6",
		"800::/5",
		"1000::/4",
		"4000::/3",
		"6000::/3",
		"8000::/3",
		"a000::/3",
		"c000::/3",
		"e000::/4",
		"f000::/5",
		"f800::/6",
		"fe00::/9",
	)

	multicastV4 = mustPrefixes("224.0.0.0/4")
	multicastV6 = mustPrefixes("ff00::/8")

	loopbackV4 = mustPrefixes("127.0.0.0/8")
	loopbackV6 = mustPrefixes("::1/128")

	linkLocalV4 = mustPrefixes("169.254.0.0/16")
	linkLocalV6 = mustPrefixes("fe80::/10")
)

func mustPrefixes(ss ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(ss))
	for _, s := range ss {
		out = append(out, netip.MustParsePrefix(s))
	}
	return out
}

func inAny(addr netip.Addr, blocks []netip.Prefix) bool {
	for _, b := range blocks {
		if b.Contains(addr) {
			return true
		}
	}
	return false
}
