// Package netfilter parses dump addresses into prefixes and rejects the
// ones that can never be meaningful in an alias list: multicast, private,
// unspecified, reserved, loopback and link-local ranges.
package netfilter

import (
	"fmt"
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

// Reason names why a prefix was rejected. The zero value means the prefix
// is routable and kept.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonMulticast   Reason = "multicast"
	ReasonPrivate     Reason = "private"
	ReasonUnspecified Reason = "unspecified"
	ReasonReserved    Reason = "reserved"
	ReasonLoopback    Reason = "loopback"
	ReasonLinkLocal   Reason = "link-local"
)

// ParsePrefix parses a single address ("1.2.3.4", "2001:db8::1") or a
// CIDR subnet ("1.2.3.0/24"). Subnets with host bits set are rejected.
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Prefix{}, fmt.Errorf("empty address")
	}

	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		if addr.Zone() != "" {
			return netip.Prefix{}, fmt.Errorf("%q: zoned addresses are not supported", s)
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}

	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if p.Masked() != p {
		return netip.Prefix{}, fmt.Errorf("%q has host bits set", s)
	}
	return p, nil
}

// FromAddr converts a resolved address into a full-length prefix.
// IPv4-mapped IPv6 addresses are unmapped first.
func FromAddr(addr netip.Addr) netip.Prefix {
	addr = addr.Unmap().WithZone("")
	return netip.PrefixFrom(addr, addr.BitLen())
}

// Classify returns the first special-purpose category covering the whole
// prefix, checked in the order multicast, private, unspecified, reserved,
// loopback, link-local. A prefix belongs to a category only when both its
// first and its last address do; for private, both must sit in the same
// private block.
func Classify(p netip.Prefix) Reason {
	first := p.Masked().Addr()
	last := lastAddr(p)

	pick := func(v4, v6 []netip.Prefix) []netip.Prefix {
		if first.Is6() {
			return v6
		}
		return v4
	}
	both := func(v4, v6 []netip.Prefix) bool {
		blocks := pick(v4, v6)
		return inAny(first, blocks) && inAny(last, blocks)
	}
	sameBlock := func(v4, v6 []netip.Prefix) bool {
		for _, b := range pick(v4, v6) {
			if b.Contains(first) && b.Contains(last) {
				return true
			}
		}
		return false
	}

	switch {
	case both(multicastV4, multicastV6):
		return ReasonMulticast
	case sameBlock(privateV4, privateV6):
		return ReasonPrivate
	case first.IsUnspecified() && last.IsUnspecified():
		return ReasonUnspecified
	case both(reservedV4, reservedV6):
		return ReasonReserved
	case both(loopbackV4, loopbackV6):
		return ReasonLoopback
	case both(linkLocalV4, linkLocalV6):
		return ReasonLinkLocal
	}
	return ReasonNone
}

// lastAddr returns the highest address inside p.
func lastAddr(p netip.Prefix) netip.Addr {
	p = p.Masked()
	b := p.Addr().AsSlice()
	hostBits := len(b)*8 - p.Bits()
	for i := len(b) - 1; i >= 0 && hostBits > 0; i-- {
		if hostBits >= 8 {
			b[i] = 0xff
			hostBits -= 8
			continue
		}
		b[i] |= byte(1<<hostBits) - 1
		hostBits = 0
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

// Filter parses and classifies addresses, logging every rejection.
type Filter struct {
	log *zap.SugaredLogger
}

func NewFilter(log *zap.SugaredLogger) *Filter {
	return &Filter{log: log}
}

// Accept parses raw and reports whether it should enter the alias set.
func (f *Filter) Accept(raw string) (netip.Prefix, bool) {
	p, err := ParsePrefix(raw)
	if err != nil {
		f.log.Errorw("can't parse address as IP", "address", raw, "error", err)
		return netip.Prefix{}, false
	}
	return p, f.AcceptPrefix(p)
}

// AcceptPrefix classifies an already parsed prefix.
func (f *Filter) AcceptPrefix(p netip.Prefix) bool {
	if reason := Classify(p); reason != ReasonNone {
		f.log.Warnf("%s is %s, ignoring", p, reason)
		return false
	}
	return true
}
