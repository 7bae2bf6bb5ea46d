package rulenet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PortRange is an inclusive port range.
type PortRange struct {
	First uint16
	Last  uint16
}

// PortList is the canonical form of a rule header port specification.
type PortList struct {
	Any    bool
	Ranges []PortRange
}

type portParts struct {
	include []PortRange
	exclude []PortRange
}

// ParsePortList parses a port specification: "any", "80", "80:100",
// ":1023", "1024:", or a bracketed nested list with '!' negation.
func ParsePortList(s string) (*PortList, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("rulenet: empty port spec")
	}
	if strings.EqualFold(s, "any") {
		return &PortList{Any: true}, nil
	}

	var parts portParts
	if err := collectPorts(s, false, &parts); err != nil {
		return nil, err
	}
	include := parts.include
	if len(include) == 0 {
		include = []PortRange{{First: 0, Last: 65535}}
	}
	result := subtractPortRanges(normalizePortRanges(include), normalizePortRanges(parts.exclude))
	if len(result) == 0 {
		return nil, ErrEmptyResult
	}
	return &PortList{Ranges: result}, nil
}

func collectPorts(s string, negated bool, out *portParts) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("rulenet: empty list element")
	}
	if s[0] == '!' {
		return collectPorts(s[1:], !negated, out)
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
			if err := collectPorts(e, negated, out); err != nil {
				return err
			}
		}
		return nil
	}
	if strings.EqualFold(s, "any") {
		return ErrNegatedAny
	}

	r, err := parseSinglePort(s)
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

func parseSinglePort(s string) (PortRange, error) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		lo, hi := uint16(0), uint16(65535)
		var err error
		if left := strings.TrimSpace(s[:i]); left != "" {
			if lo, err = parsePortNum(left); err != nil {
				return PortRange{}, err
			}
		}
		if right := strings.TrimSpace(s[i+1:]); right != "" {
			if hi, err = parsePortNum(right); err != nil {
				return PortRange{}, err
			}
		}
		if lo > hi {
			return PortRange{}, fmt.Errorf("rulenet: inverted port range %q", s)
		}
		return PortRange{First: lo, Last: hi}, nil
	}
	p, err := parsePortNum(s)
	if err != nil {
		return PortRange{}, err
	}
	return PortRange{First: p, Last: p}, nil
}

func parsePortNum(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("rulenet: invalid port %q", s)
	}
	return uint16(n), nil
}

func normalizePortRanges(rs []PortRange) []PortRange {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].First != rs[j].First {
			return rs[i].First < rs[j].First
		}
		return rs[i].Last < rs[j].Last
	})
	out := []PortRange{rs[0]}
	for _, r := range rs[1:] {
		cur := &out[len(out)-1]
		if uint32(r.First) <= uint32(cur.Last)+1 {
			if r.Last > cur.Last {
				cur.Last = r.Last
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func subtractPortRanges(include, exclude []PortRange) []PortRange {
	if len(exclude) == 0 {
		return include
	}
	var out []PortRange
	for _, in := range include {
		segs := []PortRange{in}
		for _, ex := range exclude {
			var next []PortRange
			for _, seg := range segs {
				if ex.Last < seg.First || ex.First > seg.Last {
					next = append(next, seg)
					continue
				}
				if ex.First > seg.First {
					next = append(next, PortRange{First: seg.First, Last: ex.First - 1})
				}
				if ex.Last < seg.Last {
					next = append(next, PortRange{First: ex.Last + 1, Last: seg.Last})
				}
			}
			segs = next
		}
		out = append(out, segs...)
	}
	return out
}

// IsAny reports whether the list matches every port.
func (p *PortList) IsAny() bool {
	return p.Any
}

// Equal compares two canonical port lists.
func (p *PortList) Equal(q *PortList) bool {
	if p.Any != q.Any || len(p.Ranges) != len(q.Ranges) {
		return false
	}
	for i := range p.Ranges {
		if p.Ranges[i] != q.Ranges[i] {
			return false
		}
	}
	return true
}
