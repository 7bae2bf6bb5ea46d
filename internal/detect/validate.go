package detect

import (
	"github.com/google/gopacket/layers"

	"github.com/afonot/suricata/internal/applayer"
	"github.com/afonot/suricata/internal/rulenet"
)

// flowSetupImplicit is installed by the flow keyword module so that an
// implicit direction derived from buffers stays coherent with an
// explicit `flow:` keyword.
var flowSetupImplicit func(s *Signature, dir SigFlags) error

// RegisterFlowImplicitHook installs the flow keyword coherence check.
func RegisterFlowImplicitHook(fn func(s *Signature, dir SigFlags) error) {
	flowSetupImplicit = fn
}

func applyImplicitDirection(s *Signature, dir SigFlags) error {
	if flowSetupImplicit != nil {
		return flowSetupImplicit(s, dir)
	}
	both := FlagToServer | FlagToClient
	if s.Flags&both == both {
		s.Flags &^= both
	}
	s.Flags |= dir
	return nil
}

func (e *Engine) validateFirewall(s *Signature) error {
	if !s.InitData.FirewallRule {
		return nil
	}
	if s.InitData.Hook.Type == HookNotSet {
		return parseErrorf("rule %d is loaded as a firewall rule, but does not "+
			"specify an explicit hook", s.ID)
	}
	return nil
}

func validatePacketStream(s *Signature) error {
	if s.Flags&FlagRequirePacket != 0 && s.Flags&FlagRequireStream != 0 {
		return parseErrorf("can't mix packet keywords with tcp-stream or " +
			"flow:only_stream, invalidating signature")
	}
	return nil
}

// validateCheckBuffers enforces sticky-buffer coherence and tallies the
// per-buffer direction exclusivity used for direction consolidation.
func (e *Engine) validateCheckBuffers(s *Signature, tsExcl, tcExcl, dirAmb *int) error {
	id := s.InitData

	if id.CurBuf != nil && id.CurBuf.Head == nil {
		return parseErrorf("rule %d set up buffer %s but didn't add matches to it",
			s.ID, ListToString(id.CurBuf.ID))
	}

	hasPmatch := id.SMLists[ListPmatch] != nil
	hasFrame := false
	hasApp := false
	hasPkt := false

	type bufVsDir struct{ ts, tc int }
	bufdir := make(map[int]*bufVsDir)

	for _, b := range id.Buffers {
		bt := BufferTypeByID(b.ID)
		if bt == nil {
			continue
		}
		if b.Head == nil {
			return parseErrorf("no matches in sticky buffer %s", bt.Name)
		}

		hasFrame = hasFrame || bt.Frame
		hasApp = hasApp || (!bt.Frame && !bt.Packet)
		hasPkt = hasPkt || bt.Packet

		if s.Flags&FlagRequirePacket != 0 && !bt.Packet {
			return parseErrorf("signature combines packet specific matches " +
				"(like dsize, flags, ttl) with stream / state matching by " +
				"matching on app layer proto (like using http_* keywords)")
		}

		for _, app := range appInspectEngines {
			if app.SMList != b.ID {
				continue
			}
			if s.AlProto != applayer.Unknown && !applayer.Equals(s.AlProto, app.AlProto) {
				continue
			}

			if b.OnlyTC {
				if app.Dir == applayer.ToClient {
					*tcExcl++
				}
			} else if b.OnlyTS {
				if app.Dir == applayer.ToServer {
					*tsExcl++
				}
			} else {
				d := bufdir[b.ID]
				if d == nil {
					d = &bufVsDir{}
					bufdir[b.ID] = d
				}
				if app.Dir == applayer.ToServer {
					d.ts++
				} else {
					d.tc++
				}
			}

			// rules using a hook only accept engines at that progress
			if id.Hook.Type == HookApp {
				if s.Flags&FlagToServer != 0 && app.Dir == applayer.ToServer &&
					app.Progress != id.Hook.App.Progress {
					return parseErrorf("engine progress value %d doesn't match hook %d",
						app.Progress, id.Hook.App.Progress)
				}
				if s.Flags&FlagToClient != 0 && app.Dir == applayer.ToClient &&
					app.Progress != id.Hook.App.Progress {
					return parseErrorf("engine progress value doesn't match hook")
				}
			}
		}

		if bt.Validate != nil {
			if err := bt.Validate(s, b); err != nil {
				return err
			}
		}
	}

	if hasPmatch && hasFrame {
		return parseErrorf("can't mix pure content and frame inspection")
	}
	if hasApp && hasFrame {
		return parseErrorf("can't mix app-layer buffer and frame inspection")
	}
	if hasPkt && hasFrame {
		return parseErrorf("can't mix pkt buffer and frame inspection")
	}

	for _, d := range bufdir {
		if d.ts == 0 && d.tc == 0 {
			continue
		}
		if d.ts > 0 && d.tc == 0 {
			*tsExcl++
		}
		if d.ts == 0 && d.tc > 0 {
			*tcExcl++
		}
		if d.ts > 0 && d.tc > 0 {
			*dirAmb++
		}
	}
	return nil
}

func (e *Engine) consolidateDirection(s *Signature, tsExcl, tcExcl, dirAmb int) error {
	switch {
	case s.Flags&FlagTxBothDir != 0:
		if tsExcl == 0 || tcExcl == 0 {
			return parseErrorf("rule %d should use both directions, but does not", s.ID)
		}
		if dirAmb > 0 {
			return parseErrorf("rule %d means to use both directions, cannot have "+
				"keywords ambiguous about directions", s.ID)
		}
	case tsExcl > 0 && tcExcl > 0:
		return parseErrorf("rule %d mixes keywords with conflicting directions, "+
			"a transactional rule with => should be used", s.ID)
	case tsExcl > 0:
		if err := applyImplicitDirection(s, FlagToServer); err != nil {
			return parseErrorf("rule %d mixes keywords with conflicting directions", s.ID)
		}
	case tcExcl > 0:
		if err := applyImplicitDirection(s, FlagToClient); err != nil {
			return parseErrorf("rule %d mixes keywords with conflicting directions", s.ID)
		}
	case dirAmb > 0:
		e.log.Debugf("rule %d direction cannot be deduced from keywords", s.ID)
	}
	return nil
}

// consolidateTcpBuffer resolves the TCP packet vs stream corner cases:
// depth/offset contents and stream_size need the packet too.
func consolidateTcpBuffer(s *Signature) {
	if !s.Proto.HasProto(layers.IPProtocolTCP) {
		return
	}
	if s.InitData.SMLists[ListPmatch] == nil {
		return
	}
	if s.Flags&(FlagRequirePacket|FlagRequireStream) != 0 {
		return
	}
	s.Flags |= FlagRequireStream
	for sm := s.InitData.SMLists[ListPmatch]; sm != nil; sm = sm.Next {
		if cd, ok := sm.Ctx.(*ContentData); ok {
			if cd.Flags&(ContentDepth|ContentOffset) != 0 {
				s.Flags |= FlagRequirePacket
				break
			}
		}
	}
	for sm := s.InitData.SMLists[ListMatch]; sm != nil; sm = sm.Next {
		if _, ok := sm.Ctx.(*StreamSizeData); ok {
			s.Flags |= FlagRequirePacket
			break
		}
	}
}

// setSignatureType assigns the runtime classification from the flag and
// keyword composition.
func (e *Engine) setSignatureType(s *Signature) {
	id := s.InitData

	appLayer := s.AlProto != applayer.Unknown || id.Hook.Type == HookApp
	if !appLayer {
		for _, b := range id.Buffers {
			if bt := BufferTypeByID(b.ID); bt != nil && !bt.Packet && !bt.Frame {
				appLayer = true
				break
			}
		}
	}

	switch {
	case appLayer:
		s.Type = TypeAppTx
	case s.Flags&FlagRequireStream != 0 && s.Flags&FlagRequirePacket != 0:
		s.Type = TypePktStream
	case s.Flags&FlagRequireStream != 0:
		s.Type = TypeStream
	case s.isIPOnlyCandidate():
		s.Type = TypeIPOnly
	default:
		s.Type = TypePkt
	}
}

// isIPOnlyCandidate reports whether the signature can run on the
// IP-only engine: address matching plus IP-only compatible keywords.
func (s *Signature) isIPOnlyCandidate() bool {
	if s.Flags&FlagSPAny == 0 || s.Flags&FlagDPAny == 0 {
		return false
	}
	if s.InitData.SMLists[ListPmatch] != nil || len(s.InitData.Buffers) > 0 {
		return false
	}
	if s.AlProto != applayer.Unknown {
		return false
	}
	for sm := s.InitData.SMLists[ListMatch]; sm != nil; sm = sm.Next {
		kw := keywordByID(sm.Type)
		if kw == nil || kw.Flags&KwIPOnlyCompatible == 0 {
			return false
		}
	}
	return true
}

// ruleSetTable derives the execution plane from (firewall, type, hook).
func ruleSetTable(s *Signature) {
	if s.Flags&FlagFirewall != 0 {
		if s.Type == TypeAppTx {
			s.DetectTable = TableAppFilter
			return
		}
		if s.InitData.Hook.Type == HookPkt && s.InitData.Hook.Pkt == PktHookPreStream {
			s.DetectTable = TablePacketPreStream
		} else if s.InitData.Hook.Type == HookPkt && s.InitData.Hook.Pkt == PktHookPreFlow {
			s.DetectTable = TablePacketPreFlow
		} else {
			s.DetectTable = TablePacketFilter
		}
		return
	}
	if s.Type == TypeAppTx {
		s.DetectTable = TableAppTD
	} else {
		s.DetectTable = TablePacketTD
	}
}

func (s *Signature) inspectsFiles() bool {
	return s.Flags&FlagFilestore != 0 || s.FileFlags != 0 ||
		s.InitData.Flags&InitFileData != 0
}

func validateFileHandling(s *Signature) error {
	if !s.inspectsFiles() {
		return nil
	}
	if s.AlProto != applayer.Unknown && !applayer.SupportsFiles(s.AlProto) {
		return parseErrorf("protocol %s doesn't support file matching",
			applayer.ToString(s.AlProto))
	}
	if s.InitData.Alprotos[0] != applayer.Unknown {
		found := false
		for i := 0; i < maxAlprotos; i++ {
			if s.InitData.Alprotos[i] == applayer.Unknown {
				break
			}
			if applayer.SupportsFiles(s.InitData.Alprotos[i]) {
				found = true
				break
			}
		}
		if !found {
			return parseErrorf("no protocol supports file matching")
		}
	}
	if s.AlProto == applayer.HTTP2 && s.FileFlags&FileNeedFilename != 0 {
		return parseErrorf("protocol HTTP2 doesn't support file name matching")
	}
	return nil
}

// validateTable checks that every keyword in the packet match list
// supports the signature's detect table.
func validateTable(s *Signature) error {
	if s.DetectTable == TableNotSet {
		return nil
	}
	tableBit := s.DetectTable.AsBit()
	for sm := s.InitData.SMLists[ListMatch]; sm != nil; sm = sm.Next {
		kw := keywordByID(sm.Type)
		if kw == nil || kw.Tables == 0 {
			continue
		}
		if kw.Tables&tableBit == 0 {
			return parseErrorf("rule %d uses hook %q, but keyword %q doesn't support this hook",
				s.ID, s.DetectTable.String(), kw.Name)
		}
	}
	return nil
}

// validateConsolidate runs the cross-keyword validation steps in order
// and finishes the signature's classification.
func (e *Engine) validateConsolidate(s *Signature, parser *SignatureParser, dir uint8) error {
	if err := e.validateFirewall(s); err != nil {
		return err
	}
	if err := validatePacketStream(s); err != nil {
		return err
	}

	var tsExcl, tcExcl, dirAmb int
	if err := e.validateCheckBuffers(s, &tsExcl, &tcExcl, &dirAmb); err != nil {
		return err
	}
	if err := e.consolidateDirection(s, tsExcl, tcExcl, dirAmb); err != nil {
		return err
	}

	consolidateTcpBuffer(s)

	e.setSignatureType(s)
	ruleSetTable(s)

	if err := validateFileHandling(s); err != nil {
		return err
	}
	if err := validateTable(s); err != nil {
		return err
	}

	if s.Type == TypeIPOnly {
		srcStr, dstStr := parser.Src, parser.Dst
		if dir == dirSwitched {
			srcStr, dstStr = dstStr, srcStr
		}
		src, err := rulenet.ParseAddressList(srcStr)
		if err != nil {
			return parseErrorf("IP-only address parse failed for %q: %v", srcStr, err)
		}
		dst, err := rulenet.ParseAddressList(dstStr)
		if err != nil {
			return parseErrorf("IP-only address parse failed for %q: %v", dstStr, err)
		}
		s.IPOnlySrc = src.Prefixes()
		s.IPOnlyDst = dst.Prefixes()
	}
	return nil
}
