package rulenet

import (
	"math/bits"
	"net/netip"
	"sort"
)

func universeV4() AddrRange {
	return AddrRange{
		First: netip.AddrFrom4([4]byte{0, 0, 0, 0}),
		Last:  netip.AddrFrom4([4]byte{255, 255, 255, 255}),
	}
}

func universeV6() AddrRange {
	var hi [16]byte
	for i := range hi {
		hi[i] = 0xff
	}
	return AddrRange{
		First: netip.IPv6Unspecified(),
		Last:  netip.AddrFrom16(hi),
	}
}

func splitFamilies(rs []AddrRange) (v4, v6 []AddrRange) {
	for _, r := range rs {
		if r.First.Is4() {
			v4 = append(v4, r)
		} else {
			v6 = append(v6, r)
		}
	}
	return v4, v6
}

// prefixLast returns the highest address covered by a prefix.
func prefixLast(p netip.Prefix) netip.Addr {
	raw := p.Addr().AsSlice()
	hostBits := len(raw)*8 - p.Bits()
	for i := len(raw) - 1; i >= 0 && hostBits > 0; i-- {
		n := hostBits
		if n > 8 {
			n = 8
		}
		raw[i] |= byte((1 << n) - 1)
		hostBits -= n
	}
	addr, _ := netip.AddrFromSlice(raw)
	return addr
}

// normalizeRanges sorts and merges overlapping or adjacent ranges.
func normalizeRanges(rs []AddrRange) []AddrRange {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool {
		if c := rs[i].First.Compare(rs[j].First); c != 0 {
			return c < 0
		}
		return rs[i].Last.Compare(rs[j].Last) < 0
	})
	out := []AddrRange{rs[0]}
	for _, r := range rs[1:] {
		cur := &out[len(out)-1]
		if r.First.Compare(cur.Last) <= 0 || (cur.Last.Next().IsValid() && r.First == cur.Last.Next()) {
			if r.Last.Compare(cur.Last) > 0 {
				cur.Last = r.Last
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// subtractRanges removes the exclude set from the include set. Both
// inputs must be normalized; the result is normalized.
func subtractRanges(include, exclude []AddrRange) []AddrRange {
	if len(exclude) == 0 {
		return include
	}
	var out []AddrRange
	for _, in := range include {
		segs := []AddrRange{in}
		for _, ex := range exclude {
			var next []AddrRange
			for _, seg := range segs {
				// no overlap
				if ex.Last.Compare(seg.First) < 0 || ex.First.Compare(seg.Last) > 0 {
					next = append(next, seg)
					continue
				}
				if ex.First.Compare(seg.First) > 0 {
					next = append(next, AddrRange{First: seg.First, Last: ex.First.Prev()})
				}
				if ex.Last.Compare(seg.Last) < 0 {
					next = append(next, AddrRange{First: ex.Last.Next(), Last: seg.Last})
				}
			}
			segs = next
		}
		out = append(out, segs...)
	}
	return out
}

// rangeToPrefixes splits an inclusive range into a minimal CIDR cover.
func rangeToPrefixes(r AddrRange) []netip.Prefix {
	var out []netip.Prefix
	first := r.First
	for first.IsValid() && first.Compare(r.Last) <= 0 {
		maxLen := first.BitLen() - trailingZeroBits(first)
		plen := maxLen
		for plen < first.BitLen() {
			if prefixLast(netip.PrefixFrom(first, plen)).Compare(r.Last) <= 0 {
				break
			}
			plen++
		}
		if plen > first.BitLen() {
			plen = first.BitLen()
		}
		p := netip.PrefixFrom(first, plen)
		out = append(out, p)
		last := prefixLast(p)
		if last.Compare(r.Last) >= 0 {
			break
		}
		first = last.Next()
	}
	return out
}

// trailingZeroBits counts trailing zero bits of an address.
func trailingZeroBits(a netip.Addr) int {
	raw := a.AsSlice()
	tz := 0
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] == 0 {
			tz += 8
			continue
		}
		tz += bits.TrailingZeros8(raw[i])
		break
	}
	if tz > len(raw)*8 {
		tz = len(raw) * 8
	}
	return tz
}
