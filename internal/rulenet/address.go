// Package rulenet parses the address and port list notation used in rule
// headers: single values, CIDRs, negations and nested bracketed lists.
// Parsed lists are canonical (sorted, merged ranges) so that two lists
// can be compared structurally.
package rulenet

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	// ErrNegatedAny is returned for "!any" and equivalents.
	ErrNegatedAny = errors.New("rulenet: negating 'any' is invalid")
	// ErrEmptyResult is returned when negations cancel out every value,
	// e.g. [1.2.3.4, !1.2.3.4].
	ErrEmptyResult = errors.New("rulenet: list resolves to no values")
)

// AddrRange is an inclusive address range. First and Last are always the
// same address family.
type AddrRange struct {
	First netip.Addr
	Last  netip.Addr
}

// AddressList is the canonical form of one side of a rule header.
type AddressList struct {
	// Any is set for the literal "any".
	Any bool
	// IPv4 and IPv6 hold sorted, non-overlapping, merged ranges.
	IPv4 []AddrRange
	IPv6 []AddrRange
}

type addrParts struct {
	include []AddrRange
	exclude []AddrRange
}

// ParseAddressList parses an address specification: "any", an address,
// a CIDR, or a bracketed, comma-separated, arbitrarily nested list where
// each element may be negated with '!'.
func ParseAddressList(s string) (*AddressList, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("rulenet: empty address spec")
	}
	if strings.EqualFold(s, "any") {
		return &AddressList{Any: true}, nil
	}

	var parts addrParts
	if err := collectAddrs(s, false, &parts); err != nil {
		return nil, err
	}

	v4in, v6in := splitFamilies(parts.include)
	v4ex, v6ex := splitFamilies(parts.exclude)

	// a pure-negation list matches everything except the negated values
	if len(v4in) == 0 && len(v6in) == 0 {
		v4in = []AddrRange{universeV4()}
		v6in = []AddrRange{universeV6()}
	} else {
		if len(v4in) == 0 && len(v4ex) > 0 {
			v4in = []AddrRange{universeV4()}
		}
		if len(v6in) == 0 && len(v6ex) > 0 {
			v6in = []AddrRange{universeV6()}
		}
	}

	v4 := subtractRanges(normalizeRanges(v4in), normalizeRanges(v4ex))
	v6 := subtractRanges(normalizeRanges(v6in), normalizeRanges(v6ex))
	if len(v4) == 0 && len(v6) == 0 {
		return nil, ErrEmptyResult
	}
	return &AddressList{IPv4: v4, IPv6: v6}, nil
}

// collectAddrs walks a possibly nested list, accumulating include and
// exclude ranges. Negation distributes into nested lists.
func collectAddrs(s string, negated bool, out *addrParts) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("rulenet: empty list element")
	}
	if s[0] == '!' {
		return collectAddrs(s[1:], !negated, out)
	}
	if s[0] == '[' {
		if s[len(s)-1] != ']' {
			return fmt.Errorf("rulenet: unbalanced brackets in %q", s)
		}
		elems, err := splitList(s[1 : len(s)-1])
		if err != nil {
			return err
		}
		for _, e := range elems {
			if err := collectAddrs(e, negated, out); err != nil {
				return err
			}
		}
		return nil
	}
	if strings.EqualFold(s, "any") {
		// "any" nested in a list only makes sense un-negated, and then
		// the whole side is "any" anyway; reject both forms
		return ErrNegatedAny
	}

	r, err := parseSingleAddr(s)
	if err != nil {
		return err
	}
	if negated {
		out.exclude = append(out.exclude, r)
	} else {
		out.include = append(out.include, r)
	}
	return nil
}

func parseSingleAddr(s string) (AddrRange, error) {
	if strings.Contains(s, "/") {
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			return AddrRange{}, fmt.Errorf("rulenet: invalid CIDR %q: %w", s, err)
		}
		pfx = pfx.Masked()
		return AddrRange{First: pfx.Addr(), Last: prefixLast(pfx)}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return AddrRange{}, fmt.Errorf("rulenet: invalid address %q: %w", s, err)
	}
	return AddrRange{First: addr, Last: addr}, nil
}

// splitList splits a comma-separated list body, respecting nested brackets.
func splitList(s string) ([]string, error) {
	var elems []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("rulenet: unbalanced brackets in %q", s)
			}
		case ',':
			if depth == 0 {
				elems = append(elems, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("rulenet: unbalanced brackets in %q", s)
	}
	elems = append(elems, strings.TrimSpace(s[start:]))
	for _, e := range elems {
		if e == "" {
			return nil, fmt.Errorf("rulenet: empty element in list %q", s)
		}
	}
	return elems, nil
}

// IsAny reports whether the list matches every address.
func (a *AddressList) IsAny() bool {
	return a.Any
}

// Equal compares two canonical address lists.
func (a *AddressList) Equal(b *AddressList) bool {
	if a.Any != b.Any {
		return false
	}
	if len(a.IPv4) != len(b.IPv4) || len(a.IPv6) != len(b.IPv6) {
		return false
	}
	for i := range a.IPv4 {
		if a.IPv4[i] != b.IPv4[i] {
			return false
		}
	}
	for i := range a.IPv6 {
		if a.IPv6[i] != b.IPv6[i] {
			return false
		}
	}
	return true
}

// Prefixes converts the canonical ranges into a minimal CIDR list, the
// form the IP-only engine consumes.
func (a *AddressList) Prefixes() []netip.Prefix {
	if a.Any {
		return []netip.Prefix{
			netip.PrefixFrom(netip.IPv4Unspecified(), 0),
			netip.PrefixFrom(netip.IPv6Unspecified(), 0),
		}
	}
	var out []netip.Prefix
	for _, r := range a.IPv4 {
		out = append(out, rangeToPrefixes(r)...)
	}
	for _, r := range a.IPv6 {
		out = append(out, rangeToPrefixes(r)...)
	}
	return out
}
