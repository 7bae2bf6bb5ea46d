package rulenet

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParseAddressListAny(t *testing.T) {
	a, err := ParseAddressList("any")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if !a.IsAny() {
		t.Error("expected any")
	}
}

func TestParseAddressListSingle(t *testing.T) {
	a, err := ParseAddressList("1.2.3.4")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if len(a.IPv4) != 1 {
		t.Fatalf("expected 1 range, got %d", len(a.IPv4))
	}
	want := netip.MustParseAddr("1.2.3.4")
	if a.IPv4[0].First != want || a.IPv4[0].Last != want {
		t.Errorf("unexpected range %v", a.IPv4[0])
	}
}

func TestParseAddressListCIDR(t *testing.T) {
	a, err := ParseAddressList("192.168.0.0/24")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if a.IPv4[0].First != netip.MustParseAddr("192.168.0.0") ||
		a.IPv4[0].Last != netip.MustParseAddr("192.168.0.255") {
		t.Errorf("unexpected range %v", a.IPv4[0])
	}
}

func TestParseAddressListNestedList(t *testing.T) {
	a, err := ParseAddressList("[1.2.3.4, [10.0.0.0/8, 192.168.1.1]]")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if len(a.IPv4) != 3 {
		t.Fatalf("expected 3 ranges, got %d", len(a.IPv4))
	}
}

func TestParseAddressListMergesAdjacent(t *testing.T) {
	a, err := ParseAddressList("[1.2.3.4, 1.2.3.5]")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if len(a.IPv4) != 1 {
		t.Fatalf("expected merged range, got %d ranges", len(a.IPv4))
	}
	if a.IPv4[0].Last != netip.MustParseAddr("1.2.3.5") {
		t.Errorf("unexpected merged range %v", a.IPv4[0])
	}
}

func TestParseAddressListNegation(t *testing.T) {
	a, err := ParseAddressList("!1.2.3.4")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if len(a.IPv4) != 2 {
		t.Fatalf("expected 2 ranges around the hole, got %d", len(a.IPv4))
	}
	if a.IPv4[0].Last != netip.MustParseAddr("1.2.3.3") ||
		a.IPv4[1].First != netip.MustParseAddr("1.2.3.5") {
		t.Errorf("unexpected ranges %v", a.IPv4)
	}
	// the v6 space stays complete
	if len(a.IPv6) != 1 {
		t.Errorf("expected full v6 universe, got %v", a.IPv6)
	}
}

func TestParseAddressListNegationInsideList(t *testing.T) {
	a, err := ParseAddressList("[10.0.0.0/8, !10.1.0.0/16]")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if len(a.IPv4) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(a.IPv4))
	}
}

func TestParseAddressListNegatedAny(t *testing.T) {
	if _, err := ParseAddressList("!any"); !errors.Is(err, ErrNegatedAny) {
		t.Fatalf("expected ErrNegatedAny, got %v", err)
	}
}

func TestParseAddressListContradiction(t *testing.T) {
	if _, err := ParseAddressList("[1.2.3.4, !1.2.3.4]"); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestParseAddressListInvalid(t *testing.T) {
	for _, in := range []string{"", "1.2.3", "[1.2.3.4", "[1.2.3.4,]", "foo"} {
		if _, err := ParseAddressList(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestAddressListEqual(t *testing.T) {
	a, _ := ParseAddressList("[1.2.3.4, 10.0.0.0/8]")
	b, _ := ParseAddressList("[10.0.0.0/8, 1.2.3.4]")
	if !a.Equal(b) {
		t.Error("order should not matter after canonicalization")
	}
	c, _ := ParseAddressList("1.2.3.4")
	if a.Equal(c) {
		t.Error("different lists should not be equal")
	}
}

func TestPrefixesRoundTrip(t *testing.T) {
	a, err := ParseAddressList("192.168.0.0/16")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	prefixes := a.Prefixes()
	if len(prefixes) != 1 || prefixes[0] != netip.MustParsePrefix("192.168.0.0/16") {
		t.Errorf("unexpected prefixes %v", prefixes)
	}
}

func TestPrefixesFromHole(t *testing.T) {
	a, err := ParseAddressList("[192.168.0.0/30, !192.168.0.1]")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	// 0, 2, 3 remain: /32 + /31
	prefixes := a.Prefixes()
	if len(prefixes) != 2 {
		t.Fatalf("expected 2 prefixes, got %v", prefixes)
	}
	if prefixes[0] != netip.MustParsePrefix("192.168.0.0/32") ||
		prefixes[1] != netip.MustParsePrefix("192.168.0.2/31") {
		t.Errorf("unexpected prefixes %v", prefixes)
	}
}

func TestParseAddressListIPv6(t *testing.T) {
	a, err := ParseAddressList("[2001:db8::/32, ::1]")
	if err != nil {
		t.Fatalf("ParseAddressList failed: %v", err)
	}
	if len(a.IPv6) != 2 {
		t.Fatalf("expected 2 v6 ranges, got %d", len(a.IPv6))
	}
	if len(a.IPv4) != 0 {
		t.Errorf("expected no v4 ranges, got %v", a.IPv4)
	}
}
