package cidr

import (
	"net/netip"
	"slices"
)

// Compare orders prefixes by network address, then by prefix length,
// shorter first. IPv4 sorts before IPv6.
func Compare(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}

// Merge sorts prefixes of a single family and collapses them: a prefix
// inside the previously kept one is dropped, and two sibling halves are
// replaced by their common supernet for as long as that keeps applying.
// The input slice is not modified.
func Merge(prefixes []netip.Prefix) []netip.Prefix {
	if len(prefixes) == 0 {
		return nil
	}

	sorted := make([]netip.Prefix, len(prefixes))
	for i, p := range prefixes {
		sorted[i] = p.Masked()
	}
	slices.SortFunc(sorted, Compare)

	merged := make([]netip.Prefix, 0, len(sorted))
	for _, p := range sorted {
		merged = pushMerged(merged, p)
	}
	return merged
}

func pushMerged(merged []netip.Prefix, p netip.Prefix) []netip.Prefix {
	for len(merged) > 0 {
		prev := merged[len(merged)-1]
		if contains(prev, p) {
			return merged
		}

		super, ok := supernet(p)
		if !ok {
			break
		}
		lower, upper := halves(super)
		if lower != prev || upper != p {
			break
		}

		p = super
		merged = merged[:len(merged)-1]
	}
	return append(merged, p)
}

// contains reports whether inner lies entirely within outer.
func contains(outer, inner netip.Prefix) bool {
	return outer.Addr().BitLen() == inner.Addr().BitLen() &&
		outer.Bits() <= inner.Bits() &&
		outer.Contains(inner.Addr())
}

func supernet(p netip.Prefix) (netip.Prefix, bool) {
	if p.Bits() == 0 {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(p.Addr(), p.Bits()-1).Masked(), true
}

// halves splits p into its two subnets one bit longer.
func halves(p netip.Prefix) (lower, upper netip.Prefix) {
	bits := p.Bits() + 1
	lower = netip.PrefixFrom(p.Addr(), bits)

	b := p.Addr().AsSlice()
	bit := p.Bits()
	b[bit/8] |= 0x80 >> (bit % 8)
	addr, _ := netip.AddrFromSlice(b)
	upper = netip.PrefixFrom(addr, bits)
	return lower, upper
}
