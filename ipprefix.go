// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"encoding/binary"
	"math"
	"math/bits"
	"net/netip"
)

// IPv4PrefixLabeling is the domain of IPv4 prefixes ordered by
// containment, generalizing toward 0.0.0.0/0.
type IPv4PrefixLabeling struct{}

func ipv4Uint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

func ipv4Range(p netip.Prefix) (start, end uint32) {
	base := ipv4Uint32(p.Masked().Addr())
	bitsLen := p.Bits()
	var hostMask uint32
	if bitsLen < 32 {
		hostMask = ^uint32(0) >> bitsLen
	}
	return base, base | hostMask
}

// Join returns the smallest prefix covering both a and b, found by
// locating the first bit (from the most significant end) at which the
// covering range's start and end addresses diverge.
func (IPv4PrefixLabeling) Join(a, b any) Spec {
	pa, pb := a.(netip.Prefix), b.(netip.Prefix)
	startA, endA := ipv4Range(pa)
	startB, endB := ipv4Range(pb)
	start := min(startA, startB)
	end := max(endA, endB)

	diff := start ^ end
	prefixLen := 32 - bits.Len32(diff)

	var mask uint32
	if prefixLen > 0 {
		mask = ^uint32(0) << (32 - prefixLen)
	}
	out := netip.PrefixFrom(uint32ToAddr(start&mask), prefixLen)
	return Spec{Cost: math.Pow(2, float64(32-prefixLen)), Value: out}
}

func (IPv4PrefixLabeling) Meet(a, b any) (Spec, bool) {
	pa, pb := a.(netip.Prefix), b.(netip.Prefix)
	switch {
	case pa.Bits() >= pb.Bits() && pb.Contains(pa.Addr()):
		return Spec{Cost: ipv4Cost(pa), Value: pa}, true
	case pb.Bits() >= pa.Bits() && pa.Contains(pb.Addr()):
		return Spec{Cost: ipv4Cost(pb), Value: pb}, true
	default:
		return Spec{}, false
	}
}

func (IPv4PrefixLabeling) Subset(a, b any) bool {
	pa, pb := a.(netip.Prefix), b.(netip.Prefix)
	return pb.Bits() <= pa.Bits() && pb.Contains(pa.Addr())
}

func ipv4Cost(p netip.Prefix) float64 {
	return math.Pow(2, float64(32-p.Bits()))
}

func (IPv4PrefixLabeling) Cost(v any) float64 {
	return ipv4Cost(v.(netip.Prefix))
}

func (l IPv4PrefixLabeling) Cardinality(v any) float64 {
	return l.Cost(v)
}

func (IPv4PrefixLabeling) Top() any {
	return netip.PrefixFrom(netip.IPv4Unspecified(), 0)
}
