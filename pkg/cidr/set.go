// Package cidr holds the unique prefix set built from a dump and collapses
// it into the minimal sorted list written to alias files.
package cidr

import (
	"math/big"
	"net/netip"
)

// Set is a set of unique, masked prefixes of both address families.
// It is not safe for concurrent use.
type Set struct {
	prefixes map[netip.Prefix]struct{}
}

func NewSet() *Set {
	return &Set{prefixes: make(map[netip.Prefix]struct{})}
}

// Add inserts p and reports whether it was new.
func (s *Set) Add(p netip.Prefix) bool {
	p = p.Masked()
	if _, ok := s.prefixes[p]; ok {
		return false
	}
	s.prefixes[p] = struct{}{}
	return true
}

func (s *Set) Len() int {
	return len(s.prefixes)
}

// Split returns the IPv4 and IPv6 members, unsorted.
func (s *Set) Split() (v4, v6 []netip.Prefix) {
	for p := range s.prefixes {
		if p.Addr().Is4() {
			v4 = append(v4, p)
		} else {
			v6 = append(v6, p)
		}
	}
	return v4, v6
}

// AddressCount returns how many addresses the prefixes cover, counting
// overlaps more than once. Callers pass merged lists.
func AddressCount(prefixes []netip.Prefix) *big.Int {
	total := new(big.Int)
	one := big.NewInt(1)
	for _, p := range prefixes {
		hostBits := uint(p.Addr().BitLen() - p.Bits())
		total.Add(total, new(big.Int).Lsh(one, hostBits))
	}
	return total
}
