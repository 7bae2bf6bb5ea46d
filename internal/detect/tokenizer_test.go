package detect

import "testing"

func TestSplitRule(t *testing.T) {
	var p SignatureParser
	err := splitRule(`alert tcp [1.2.3.4, [5.6.7.8, 9.9.9.9]] any -> !1.2.3.4 [80, 443] (msg:"x"; sid:1;)`, &p)
	if err != nil {
		t.Fatalf("splitRule failed: %v", err)
	}
	if p.Action != "alert" || p.Protocol != "tcp" {
		t.Errorf("unexpected action/protocol: %q %q", p.Action, p.Protocol)
	}
	if p.Src != "[1.2.3.4, [5.6.7.8, 9.9.9.9]]" {
		t.Errorf("bracketed source not kept intact: %q", p.Src)
	}
	if p.SP != "any" || p.Direction != "->" || p.Dst != "!1.2.3.4" {
		t.Errorf("unexpected header fields: %q %q %q", p.SP, p.Direction, p.Dst)
	}
	if p.DP != "[80, 443]" {
		t.Errorf("bracketed port list not kept intact: %q", p.DP)
	}
	if p.Opts != `msg:"x"; sid:1;` {
		t.Errorf("unexpected options body: %q", p.Opts)
	}
}

func TestSplitRuleMissingToken(t *testing.T) {
	var p SignatureParser
	if err := splitRule(`alert tcp any any ->`, &p); err == nil {
		t.Fatal("expected error for incomplete header")
	}
}

func TestSplitRuleNoOptions(t *testing.T) {
	var p SignatureParser
	if err := splitRule(`alert tcp any any -> any any`, &p); err == nil {
		t.Fatal("expected error for missing option body")
	}
}

func TestSplitRuleUnbalancedParens(t *testing.T) {
	var p SignatureParser
	if err := splitRule(`alert tcp any any -> any any (sid:1;`, &p); err == nil {
		t.Fatal("expected error for unbalanced parentheses")
	}
}

func TestSplitRuleTrailingWhitespace(t *testing.T) {
	var p SignatureParser
	err := splitRule("alert tcp any any -> any any ( sid:1; )  \t", &p)
	if err != nil {
		t.Fatalf("splitRule failed: %v", err)
	}
	if p.Opts != "sid:1;" {
		t.Errorf("options not trimmed: %q", p.Opts)
	}
}

func TestCheckRuleText(t *testing.T) {
	if err := checkRuleText("alert tcp\tany"); err != nil {
		t.Errorf("tab should be allowed: %v", err)
	}
	if err := checkRuleText("bad\x01rule"); err == nil {
		t.Error("control character should be rejected")
	}
	if err := checkRuleText("del\x7frule"); err == nil {
		t.Error("DEL should be rejected")
	}
	if err := checkRuleText(string([]byte{0xff, 0xfe})); err == nil {
		t.Error("invalid UTF-8 should be rejected")
	}
}

func TestNextListTokenDepth(t *testing.T) {
	token, rest := nextListToken("[a, [b, c]] next")
	if token != "[a, [b, c]]" {
		t.Errorf("unexpected token %q", token)
	}
	if rest != "next" {
		t.Errorf("unexpected rest %q", rest)
	}
}
