package detect_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/afonot/suricata/internal/applayer"
	"github.com/afonot/suricata/internal/config"
	"github.com/afonot/suricata/internal/detect"
	_ "github.com/afonot/suricata/internal/detect/keywords"
)

func newTestEngine(t *testing.T) *detect.Engine {
	t.Helper()
	cfg := &config.Default().Detect
	return detect.NewEngine(cfg)
}

func TestSigParseBasic(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp 1.2.3.4 any -> !1.2.3.4 any (msg:"x"; sid:1;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.ID != 1 {
		t.Errorf("expected sid 1, got %d", s.ID)
	}
	if s.GID != 1 {
		t.Errorf("expected default gid 1, got %d", s.GID)
	}
	if s.Prio != 3 {
		t.Errorf("expected default priority 3, got %d", s.Prio)
	}
	if s.Msg != "x" {
		t.Errorf("expected msg 'x', got %q", s.Msg)
	}
	if s.Flags&detect.FlagToServer == 0 || s.Flags&detect.FlagToClient == 0 {
		t.Error("expected both directions set on a direction-less rule")
	}
	if s.Next != nil {
		t.Error("unexpected sibling signature")
	}
}

func TestSigParseBidirectional(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any <> !1.2.3.4 any (sid:2;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if !s.Bidirectional {
		t.Fatal("expected a bidirectional chain")
	}
	if s.Next == nil {
		t.Fatal("expected a second signature with swapped addresses")
	}
	if s.ID != 2 || s.Next.ID != 2 {
		t.Errorf("expected shared sid 2, got %d and %d", s.ID, s.Next.ID)
	}
	// the original has src=any, the clone has dst=any
	if s.Flags&detect.FlagSrcAny == 0 {
		t.Error("expected src any on the original")
	}
	if s.Next.Flags&detect.FlagDstAny == 0 {
		t.Error("expected dst any on the clone")
	}
	if s.Next.Flags&detect.FlagSrcAny != 0 {
		t.Error("clone src should not be any")
	}
}

func TestSigParseBidirectionalSymmetric(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any <> any any (sid:3;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Bidirectional {
		t.Error("symmetric rule should be downgraded to unidirectional")
	}
	if s.Next != nil {
		t.Error("symmetric rule should not clone")
	}
	if s.InitData.Flags&detect.InitBidirectional != 0 {
		t.Error("bidirectional init flag should be cleared")
	}
}

func TestSigParseDropAction(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`drop tcp any any -> any 80 (msg:"a"; sid:4;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Action&detect.ActionDrop == 0 || s.Action&detect.ActionAlert == 0 {
		t.Errorf("expected DROP|ALERT, got %#x", s.Action)
	}
	if s.Next != nil {
		t.Error("expected a single signature")
	}
}

func TestDepthOffsetRequiresPacketAndStream(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (content:"abc"; offset:1; depth:5; sid:5;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagRequirePacket == 0 {
		t.Error("expected REQUIRE_PACKET from depth/offset on tcp")
	}
	if s.Flags&detect.FlagRequireStream == 0 {
		t.Error("expected REQUIRE_STREAM from tcp payload content")
	}
}

func TestAppendDuplicateKeepsNewestRev(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AppendSig(`alert tcp any any -> any any (msg:"r1"; sid:1; rev:1;)`); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if _, err := e.AppendSig(`alert tcp any any -> any any (msg:"r2"; sid:1; rev:2;)`); err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if n := e.SigCount(); n != 1 {
		t.Fatalf("expected 1 signature, got %d", n)
	}
	if e.SigList.Rev != 2 {
		t.Errorf("expected surviving rev 2, got %d", e.SigList.Rev)
	}
}

func TestAppendDuplicateLowerRevDropped(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AppendSig(`alert tcp any any -> any any (msg:"r2"; sid:1; rev:2;)`); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	_, err := e.AppendSig(`alert tcp any any -> any any (msg:"r1"; sid:1; rev:1;)`)
	if !errors.Is(err, detect.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if n := e.SigCount(); n != 1 {
		t.Fatalf("expected 1 signature, got %d", n)
	}
	if e.SigList.Rev != 2 {
		t.Errorf("expected surviving rev 2, got %d", e.SigList.Rev)
	}
}

func TestAppendDuplicateBidirectionalChains(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AppendSig(`alert tcp any any -> any 25 (msg:"plain"; sid:7; rev:1;)`); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := e.AppendSig(`alert tcp any any <> !1.2.3.4 any (msg:"bidir r1"; sid:8; rev:1;)`); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	// replace the bidirectional chain in mid-list position
	if _, err := e.AppendSig(`alert udp any any -> any 53 (msg:"head"; sid:9; rev:1;)`); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := e.AppendSig(`alert tcp any any <> !1.2.3.4 any (msg:"bidir r2"; sid:8; rev:2;)`); err != nil {
		t.Fatalf("replacement append failed: %v", err)
	}

	// sid 7 once, sid 9 once, sid 8 twice (bidirectional)
	counts := map[uint32]int{}
	for s := e.SigList; s != nil; s = s.Next {
		counts[s.ID]++
	}
	if counts[7] != 1 || counts[9] != 1 || counts[8] != 2 {
		t.Fatalf("unexpected list composition: %v", counts)
	}
	for s := e.SigList; s != nil; s = s.Next {
		if s.ID == 8 && s.Rev != 2 {
			t.Errorf("expected only rev 2 for sid 8, found rev %d", s.Rev)
		}
	}
}

func TestNegatedAnyRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp !any any -> any any (sid:7;)`); err == nil {
		t.Fatal("expected parse error for !any")
	}
}

func TestContradictingPortList(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp any [80,!80] -> any any (sid:70;)`); err == nil {
		t.Fatal("expected parse error for [80,!80]")
	}
}

func TestFileDataRawbytesConflict(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SigInit(`alert http any any -> any any (file_data; content:"x"; rawbytes; sid:8;)`)
	if err == nil {
		t.Fatal("expected parse error for rawbytes on a file_data content")
	}
	var pe *detect.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %T", err)
	}
}

func TestSidOverflow(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp any any -> any any (sid:99999999999999999999;)`); err == nil {
		t.Fatal("expected parse error for sid overflow")
	}
}

func TestMissingSid(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp any any -> any any (msg:"no sid";)`); err == nil {
		t.Fatal("expected parse error for missing sid")
	}
}

func TestUnknownKeyword(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp any any -> any any (nosuchkeyword:1; sid:20;)`); err == nil {
		t.Fatal("expected parse error for unknown keyword")
	}
}

func TestUnknownProtocol(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert zmodem any any -> any any (sid:21;)`); err == nil {
		t.Fatal("expected parse error for unknown protocol")
	}
}

func TestInvalidDirectionToken(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp any any >< any any (sid:22;)`); err == nil {
		t.Fatal("expected parse error for invalid direction")
	}
}

func TestUnbalancedOptions(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tcp any any -> any any (sid:23;`); err == nil {
		t.Fatal("expected parse error for unbalanced parentheses")
	}
}

func TestControlCharactersRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit("alert tcp any any -> any any (sid:24;\x01)"); err == nil {
		t.Fatal("expected parse error for control characters")
	}
}

func TestDirectionInferenceToClient(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert http any any -> any any (http.stat_code; content:"200"; sid:30;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagToClient == 0 {
		t.Error("expected inferred TOCLIENT")
	}
	if s.Flags&detect.FlagToServer != 0 {
		t.Error("TOSERVER should have been narrowed away")
	}
}

func TestDirectionInferenceToServer(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert http any any -> any any (http.uri; content:"/admin"; sid:31;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagToServer == 0 {
		t.Error("expected inferred TOSERVER")
	}
	if s.Flags&detect.FlagToClient != 0 {
		t.Error("TOCLIENT should have been narrowed away")
	}
}

func TestConflictingBufferDirections(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SigInit(`alert http any any -> any any (http.uri; content:"a"; http.stat_code; content:"b"; sid:32;)`)
	if err == nil {
		t.Fatal("expected conflicting-directions error")
	}
}

func TestTransactionalBothDirections(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert http any any => any any (http.uri; content:"a"; http.stat_code; content:"b"; sid:33;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagTxBothDir == 0 {
		t.Error("expected TXBOTHDIR flag")
	}
}

func TestTransactionalNeedsBothDirections(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SigInit(`alert http any any => any any (http.uri; content:"a"; sid:34;)`)
	if err == nil {
		t.Fatal("expected error: => rule with only one exclusive direction")
	}
}

func TestExplicitFlowContradictsBuffer(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SigInit(`alert http any any -> any any (flow:to_client; http.uri; content:"a"; sid:35;)`)
	if err == nil {
		t.Fatal("expected error: flow:to_client contradicts a to_server buffer")
	}
}

func TestDetectTableDerivation(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		firewall bool
		table    detect.DetectTable
	}{
		{
			name:  "packet td",
			rule:  `alert tcp any any -> any 80 (content:"abc"; sid:40;)`,
			table: detect.TablePacketTD,
		},
		{
			name:  "app td",
			rule:  `alert http any any -> any any (http.uri; content:"a"; sid:41;)`,
			table: detect.TableAppTD,
		},
		{
			name:     "packet filter",
			rule:     `accept:packet tcp:flow_start any any -> any any (sid:42;)`,
			firewall: true,
			table:    detect.TablePacketFilter,
		},
		{
			name:     "packet pre flow",
			rule:     `accept:packet tcp:pre_flow any any -> any any (sid:43;)`,
			firewall: true,
			table:    detect.TablePacketPreFlow,
		},
		{
			name:     "packet pre stream",
			rule:     `accept:packet tcp:pre_stream any any -> any any (sid:44;)`,
			firewall: true,
			table:    detect.TablePacketPreStream,
		},
		{
			name:     "app filter",
			rule:     `accept:hook http1:request_headers any any -> any any (http.uri; content:"a"; sid:45;)`,
			firewall: true,
			table:    detect.TableAppFilter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			var s *detect.Signature
			var err error
			if tt.firewall {
				s, err = e.FirewallRuleNew(tt.rule)
			} else {
				s, err = e.SigInit(tt.rule)
			}
			if err != nil {
				t.Fatalf("SigInit failed: %v", err)
			}
			if s.DetectTable != tt.table {
				t.Errorf("expected table %s, got %s", tt.table, s.DetectTable)
			}
		})
	}
}

func TestAcceptRequiresFirewall(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`accept:flow tcp any any -> any any (sid:50;)`); err == nil {
		t.Fatal("expected error: accept on a non-firewall rule")
	}
}

func TestFirewallRequiresScope(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.FirewallRuleNew(`drop tcp:pre_flow any any -> any any (sid:51;)`); err == nil {
		t.Fatal("expected error: firewall rule without action scope")
	}
}

func TestFirewallRejectsPass(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.FirewallRuleNew(`pass:flow tcp:pre_flow any any -> any any (sid:52;)`); err == nil {
		t.Fatal("expected error: pass on a firewall rule")
	}
}

func TestFirewallRequiresHook(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.FirewallRuleNew(`accept:packet tcp any any -> any any (sid:53;)`); err == nil {
		t.Fatal("expected error: firewall rule without explicit hook")
	}
}

func TestFirewallRejectsTransactional(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.FirewallRuleNew(`accept:packet tcp:pre_flow any any => any any (sid:54;)`); err == nil {
		t.Fatal("expected error: => on a firewall rule")
	}
}

func TestRejectNeedsInjectionCapability(t *testing.T) {
	cfg := &config.Default().Detect
	e := detect.NewEngine(cfg)
	if _, err := e.SigInit(`reject tcp any any -> any any (sid:55;)`); err == nil {
		t.Fatal("expected error: reject without packet injection capability")
	}

	cfg2 := &config.Default().Detect
	cfg2.RejectCapability = true
	e2 := detect.NewEngine(cfg2)
	s, err := e2.SigInit(`reject tcp any any -> any any (sid:55;)`)
	if err != nil {
		t.Fatalf("SigInit failed with capability available: %v", err)
	}
	if s.Action&detect.ActionReject == 0 || s.Action&detect.ActionDrop == 0 {
		t.Errorf("expected REJECT|DROP|ALERT, got %#x", s.Action)
	}
}

func TestRequiresUnmetIsSilentSkip(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SigInit(`alert tcp any any -> any any (requires:feature output::file-store; sid:60;)`)
	if !errors.Is(err, detect.ErrRequirementsUnmet) {
		t.Fatalf("expected ErrRequirementsUnmet, got %v", err)
	}
	if !e.SigErrorRequires || !e.SigErrorSilent || !e.SigErrorOK {
		t.Error("requires failure should set the silent/ok/requires error state")
	}
}

func TestRequiresMet(t *testing.T) {
	cfg := &config.Default().Detect
	cfg.Features = []string{"output::file-store"}
	e := detect.NewEngine(cfg)
	if _, err := e.SigInit(`alert tcp any any -> any any (requires:feature output::file-store; sid:61;)`); err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
}

func TestRequiresVersion(t *testing.T) {
	e := newTestEngine(t) // engine version 8.0.0
	if _, err := e.SigInit(`alert tcp any any -> any any (requires:version >= 9.0.0; sid:62;)`); !errors.Is(err, detect.ErrRequirementsUnmet) {
		t.Fatalf("expected unmet version requirement, got %v", err)
	}
	if _, err := e.SigInit(`alert tcp any any -> any any (requires:version >= 7.0.3; sid:63;)`); err != nil {
		t.Fatalf("expected met version requirement, got %v", err)
	}
}

func TestSilentErrorEmittedOnce(t *testing.T) {
	e := newTestEngine(t)
	_, err1 := e.SigInit(`alert tcp any any -> any any (app-layer-event:bogus_event; sid:64;)`)
	if err1 == nil {
		t.Fatal("expected error for unknown app-layer event")
	}
	if detect.IsSilent(err1) {
		t.Error("first occurrence should be loud")
	}
	_, err2 := e.SigInit(`alert tcp any any -> any any (app-layer-event:bogus_event; sid:65;)`)
	if err2 == nil {
		t.Fatal("expected error for unknown app-layer event")
	}
	if !detect.IsSilent(err2) {
		t.Error("second occurrence should be silent")
	}
}

func TestDeprecatedKeywordStillWorks(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert http any any -> any any (uricontent:"/cgi-bin"; sid:66;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if !applayer.Equals(s.AlProto, applayer.HTTP) {
		t.Errorf("expected http alproto, got %s", applayer.ToString(s.AlProto))
	}
}

func TestFileDataConflictsWithOtherAlproto(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert dns any any -> any any (file_data; content:"x"; sid:67;)`); err == nil {
		t.Fatal("expected error: file_data on a dns rule")
	}
}

func TestFileNameOnHTTP2Rejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert http2 any any -> any any (file.name; content:"a.exe"; sid:68;)`); err == nil {
		t.Fatal("expected error: filename matching on HTTP2")
	}
}

func TestMatchIndexOrdering(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert http any any -> any any (content:"a"; http.uri; content:"b"; content:"c"; pkt_data; content:"d"; sid:69;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}

	seen := map[uint32]bool{}
	total := 0
	walk := func(sm *detect.SigMatch) {
		for ; sm != nil; sm = sm.Next {
			if seen[sm.Idx] {
				t.Errorf("idx %d appears in more than one list", sm.Idx)
			}
			seen[sm.Idx] = true
			total++
			if sm.Next != nil && sm.Next.Idx <= sm.Idx {
				t.Errorf("idx not strictly increasing within a list: %d then %d",
					sm.Idx, sm.Next.Idx)
			}
		}
	}
	for list := 0; list < detect.ListMax; list++ {
		walk(s.InitData.SMLists[list])
	}
	for _, b := range s.InitData.Buffers {
		walk(b.Head)
	}
	if total == 0 {
		t.Fatal("expected match instances")
	}
	if uint32(total) != s.InitData.SMCnt {
		t.Errorf("expected %d instances accounted, got %d", s.InitData.SMCnt, total)
	}
}

func TestIPOnlyClassification(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert ip 192.168.0.0/16 any -> !192.168.1.1 any (msg:"iponly"; sid:71;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Type != detect.TypeIPOnly {
		t.Fatalf("expected IP-only type, got %s", s.Type)
	}
	if len(s.IPOnlySrc) == 0 || len(s.IPOnlyDst) == 0 {
		t.Error("expected IP-only CIDR lists to be populated")
	}
}

func TestPortedRuleNotIPOnly(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any 80 (sid:72;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Type == detect.TypeIPOnly {
		t.Error("rule with ports should not be IP-only")
	}
}

func TestPrefilterSelection(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (content:"ab"; content:"longerpattern"; sid:73;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagPrefilter == 0 {
		t.Fatal("expected prefilter flag")
	}
	mpm := s.InitData.MpmSM
	if mpm == nil {
		t.Fatal("expected an mpm selection")
	}
	cd := mpm.Ctx.(*detect.ContentData)
	if string(cd.Pattern) != "longerpattern" {
		t.Errorf("expected the longer pattern, got %q", cd.Pattern)
	}
}

func TestFastPatternWins(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (content:"ab"; fast_pattern; content:"longerpattern"; sid:74;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	cd := s.InitData.MpmSM.Ctx.(*detect.ContentData)
	if string(cd.Pattern) != "ab" {
		t.Errorf("expected the fast_pattern content, got %q", cd.Pattern)
	}
}

func TestAutoPrefilterPicksCapableKeyword(t *testing.T) {
	cfg := &config.Default().Detect
	cfg.Prefilter = "auto"
	e := detect.NewEngine(cfg)
	s, err := e.SigInit(`alert tcp any any -> any any (dsize:>100; sid:95;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagPrefilter == 0 {
		t.Fatal("expected auto prefilter selection")
	}
	pf := s.InitData.PrefilterSM
	if pf == nil || pf.Type != detect.LookupKeyword("dsize").ID {
		t.Error("expected the dsize keyword as prefilter")
	}
}

func TestNoAutoPrefilterInMpmMode(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (dsize:>100; sid:96;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagPrefilter != 0 {
		t.Error("mpm-only mode should not pick a non-content prefilter")
	}
}

func TestAppHookProgressMismatch(t *testing.T) {
	e := newTestEngine(t)
	// http.uri engines sit at request progress 2; the request_line hook
	// is progress 1
	if _, err := e.SigInit(`alert http1:request_line any any -> any any (http.uri; content:"a"; sid:75;)`); err == nil {
		t.Fatal("expected hook progress mismatch error")
	}
}

func TestAppHookProgressMatch(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert dns:request_complete any any -> any any (dns.query; content:"evil"; sid:76;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Flags&detect.FlagToServer == 0 {
		t.Error("request_complete hook should set TOSERVER")
	}
}

func TestFrameMixRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tls any any -> any any (frame:tls.pdu; content:"a"; tcp.hdr; content:"b"; sid:77;)`); err == nil {
		t.Fatal("expected error mixing frame and packet buffers")
	}
}

func TestFramePmatchMixRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert tls any any -> any any (content:"x"; frame:tls.pdu; content:"a"; sid:78;)`); err == nil {
		t.Fatal("expected error mixing payload content and frame inspection")
	}
}

func TestEmptyStickyBufferRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert http any any -> any any (http.uri; sid:79;)`); err == nil {
		t.Fatal("expected error: sticky buffer without matches")
	}
}

func TestSignumRestoredOnError(t *testing.T) {
	e := newTestEngine(t)
	s1, err := e.SigInit(`alert tcp any any -> any any (sid:80;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if _, err := e.SigInit(`alert tcp any any -> any any (nosuchkeyword; sid:81;)`); err == nil {
		t.Fatal("expected parse error")
	}
	s2, err := e.SigInit(`alert tcp any any -> any any (sid:82;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s2.IID != s1.IID+1 {
		t.Errorf("internal id leaked on rejected rule: %d then %d", s1.IID, s2.IID)
	}
}

func TestMultiAppProtoPrecedence(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (content:"x"; sid:83;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}

	// first time: a real set is stored
	if err := s.SetMultiAppProto([]applayer.AppProto{applayer.HTTP1, applayer.SMB}); err != nil {
		t.Fatalf("SetMultiAppProto failed: %v", err)
	}
	if s.AlProto != applayer.Unknown {
		t.Fatal("multi set should leave the single alproto unset")
	}

	// intersecting with a second set collapses to the singleton
	if err := s.SetMultiAppProto([]applayer.AppProto{applayer.SMB, applayer.DNS}); err != nil {
		t.Fatalf("intersecting SetMultiAppProto failed: %v", err)
	}
	if s.AlProto != applayer.SMB {
		t.Errorf("expected singleton collapse to smb, got %s", applayer.ToString(s.AlProto))
	}

	// a later conflicting single assignment fails
	if err := s.SetAppProto(applayer.DNS); err == nil {
		t.Error("expected conflict when setting dns after smb")
	}
}

func TestSetAppProtoAgainstMultiSet(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (content:"x"; sid:84;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if err := s.SetMultiAppProto([]applayer.AppProto{applayer.HTTP1, applayer.SMB}); err != nil {
		t.Fatalf("SetMultiAppProto failed: %v", err)
	}
	// restricting to a member collapses the set
	if err := s.SetAppProto(applayer.HTTP1); err != nil {
		t.Fatalf("SetAppProto failed: %v", err)
	}
	if s.AlProto != applayer.HTTP1 {
		t.Errorf("expected http1, got %s", applayer.ToString(s.AlProto))
	}
	// a singleton set collapses straight to that protocol
	s2, _ := e.SigInit(`alert tcp any any -> any any (content:"x"; sid:85;)`)
	if err := s2.SetMultiAppProto([]applayer.AppProto{applayer.HTTP1}); err != nil {
		t.Fatalf("singleton SetMultiAppProto failed: %v", err)
	}
	if s2.AlProto != applayer.HTTP1 {
		t.Error("singleton multi set should collapse through SetAppProto")
	}
}

func TestEscapedSemicolonInValue(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (msg:"a\;b"; sid:86;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Msg != "a;b" {
		t.Errorf("expected msg 'a;b', got %q", s.Msg)
	}
}

func TestClasstypePriority(t *testing.T) {
	cc, err := config.ParseClassification([]byte(`
classifications:
  - name: trojan-activity
    description: A Network Trojan was detected
    priority: 1
`))
	if err != nil {
		t.Fatalf("classification parse failed: %v", err)
	}
	e := detect.NewEngine(&config.Default().Detect, detect.WithClassification(cc))

	s, err := e.SigInit(`alert tcp any any -> any any (classtype:trojan-activity; sid:87;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.Prio != 1 {
		t.Errorf("expected classtype priority 1, got %d", s.Prio)
	}

	// explicit priority beats classtype
	s2, err := e.SigInit(`alert tcp any any -> any any (priority:2; classtype:trojan-activity; sid:88;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s2.Prio != 2 {
		t.Errorf("expected explicit priority 2, got %d", s2.Prio)
	}
}

func TestAddressMatchArrays(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp [192.168.0.0/24, 2001:db8::1] any -> 10.0.0.1 any (sid:92;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}

	if len(s.Src4Matches) != 1 {
		t.Fatalf("expected 1 source v4 range, got %v", s.Src4Matches)
	}
	if s.Src4Matches[0].First != netip.MustParseAddr("192.168.0.0") ||
		s.Src4Matches[0].Last != netip.MustParseAddr("192.168.0.255") {
		t.Errorf("unexpected source v4 range %v", s.Src4Matches[0])
	}
	if len(s.Src6Matches) != 1 {
		t.Fatalf("expected 1 source v6 range, got %v", s.Src6Matches)
	}
	want6 := netip.MustParseAddr("2001:db8::1")
	if s.Src6Matches[0].First != want6 || s.Src6Matches[0].Last != want6 {
		t.Errorf("unexpected source v6 range %v", s.Src6Matches[0])
	}

	if len(s.Dst4Matches) != 1 {
		t.Fatalf("expected 1 destination v4 range, got %v", s.Dst4Matches)
	}
	want4 := netip.MustParseAddr("10.0.0.1")
	if s.Dst4Matches[0].First != want4 || s.Dst4Matches[0].Last != want4 {
		t.Errorf("unexpected destination v4 range %v", s.Dst4Matches[0])
	}
	if len(s.Dst6Matches) != 0 {
		t.Errorf("expected no destination v6 ranges, got %v", s.Dst6Matches)
	}
}

func TestAddressMatchArraysAnySides(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert tcp any any -> any any (content:"x"; sid:93;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if len(s.Src4Matches) != 0 || len(s.Src6Matches) != 0 ||
		len(s.Dst4Matches) != 0 || len(s.Dst6Matches) != 0 {
		t.Error("any sides should not build address match tables")
	}
}

func TestLegacyContentModifier(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.SigInit(`alert http any any -> any any (content:"/x"; http_uri; sid:90;)`)
	if err != nil {
		t.Fatalf("SigInit failed: %v", err)
	}
	if s.InitData.SMLists[detect.ListPmatch] != nil {
		t.Error("content should have moved out of the payload list")
	}
	if len(s.InitData.Buffers) != 1 {
		t.Fatalf("expected the uri buffer, got %d buffers", len(s.InitData.Buffers))
	}
	b := s.InitData.Buffers[0]
	if b.Head == nil || b.Head != b.Tail {
		t.Fatal("expected exactly one transferred match")
	}
	cd := b.Head.Ctx.(*detect.ContentData)
	if string(cd.Pattern) != "/x" {
		t.Errorf("unexpected pattern %q", cd.Pattern)
	}
}

func TestModifierWithStickySet(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SigInit(`alert http any any -> any any (http.header; content:"x"; http_uri; sid:91;)`); err == nil {
		t.Fatal("expected error: modifier with a sticky buffer still set")
	}
}

func TestFlattenOnAppend(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.AppendSig(`alert tcp any any -> any any (content:"abc"; content:"def"; sid:89;)`)
	if err != nil {
		t.Fatalf("AppendSig failed: %v", err)
	}
	if s.InitData != nil {
		t.Fatal("init data should be released after append")
	}
	pm := s.MatchArrays[detect.ListPmatch]
	if len(pm) != 2 {
		t.Fatalf("expected 2 flattened payload matches, got %d", len(pm))
	}
	if !pm[1].IsLast || pm[0].IsLast {
		t.Error("IsLast should mark only the final entry")
	}
	if _, ok := pm[0].Ctx.(*detect.ContentData); !ok {
		t.Error("flattened entry should carry the transferred context")
	}
}
