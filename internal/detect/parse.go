package detect

import (
	"errors"
	"strings"

	"github.com/afonot/suricata/internal/applayer"
	"github.com/afonot/suricata/internal/rulenet"
)

// address direction for bidirectional clones
const (
	dirNormal   = 0
	dirSwitched = 1
)

// postBuildHooks run after the build pass, before validation. Keyword
// modules register cleanups here (e.g. dropping redundant ip_proto
// match instances).
var postBuildHooks []func(e *Engine, s *Signature)

// RegisterPostBuildHook adds a cleanup pass run after option parsing.
func RegisterPostBuildHook(fn func(e *Engine, s *Signature)) {
	postBuildHooks = append(postBuildHooks, fn)
}

// parseBasics splits the rule and, unless scanOnly, interprets the
// seven header fields.
func (e *Engine) parseBasics(s *Signature, rule string, parser *SignatureParser, dir uint8, scanOnly bool) error {
	if err := splitRule(rule, parser); err != nil {
		return err
	}
	if scanOnly {
		return nil
	}

	if err := e.parseAction(s, parser.Action); err != nil {
		return err
	}
	if err := s.parseProto(parser.Protocol); err != nil {
		return err
	}

	switch parser.Direction {
	case "->":
	case "<>":
		s.InitData.Flags |= InitBidirectional
	case "=>":
		if s.Flags&FlagFirewall != 0 {
			return parseErrorf("transactional bidirectional rules not supported for firewall rules")
		}
		s.Flags |= FlagTxBothDir
	default:
		return parseErrorf("%q is not a valid direction modifier, "+
			"\"->\", \"<>\" and \"=>\" are supported", parser.Direction)
	}

	srcStr, dstStr := parser.Src, parser.Dst
	spStr, dpStr := parser.SP, parser.DP
	if dir == dirSwitched {
		srcStr, dstStr = dstStr, srcStr
		spStr, dpStr = dpStr, spStr
	}

	if err := e.parseAddress(s, srcStr, false); err != nil {
		return err
	}
	if err := e.parseAddress(s, dstStr, true); err != nil {
		return err
	}
	if err := e.parsePort(s, spStr, false); err != nil {
		return err
	}
	if err := e.parsePort(s, dpStr, true); err != nil {
		return err
	}
	return nil
}

func (e *Engine) parseAddress(s *Signature, addrstr string, dst bool) error {
	list, err := rulenet.ParseAddressList(addrstr)
	if err != nil {
		return parseErrorf("invalid address spec %q: %v", addrstr, err)
	}
	if dst {
		s.Dst = list
		if list.IsAny() {
			s.Flags |= FlagDstAny
		}
	} else {
		s.Src = list
		if list.IsAny() {
			s.Flags |= FlagSrcAny
		}
	}
	return nil
}

func (e *Engine) parsePort(s *Signature, portstr string, dst bool) error {
	list, err := rulenet.ParsePortList(portstr)
	if err != nil {
		return parseErrorf("invalid port spec %q: %v", portstr, err)
	}
	if dst {
		s.DP = list
		if list.IsAny() {
			s.Flags |= FlagDPAny
		}
	} else {
		s.SP = list
		if list.IsAny() {
			s.Flags |= FlagSPAny
		}
	}
	return nil
}

// sigParse is one pass over a rule: scan (requires/sid only) or build.
func (e *Engine) sigParse(s *Signature, rule string, dir uint8, parser *SignatureParser, scanPass bool) error {
	if err := checkRuleText(rule); err != nil {
		return err
	}
	if err := e.parseBasics(s, rule, parser, dir, scanPass); err != nil {
		return err
	}
	if parser.Opts != "" {
		if err := e.parseOptions(s, parser.Opts, scanPass); err != nil {
			return err
		}
	}
	if !scanPass {
		for _, hook := range postBuildHooks {
			hook(e, s)
		}
	}
	return nil
}

// sigInitHelper builds one signature from the rule text in the given
// address direction.
func (e *Engine) sigInitHelper(rule string, dir uint8, firewallRule bool) (*Signature, error) {
	if len(rule) > MaxRuleSize {
		return nil, parseErrorf("rule longer than %d bytes", MaxRuleSize)
	}

	sig := sigAlloc()
	sig.RawRule = rule
	if firewallRule {
		sig.InitData.FirewallRule = true
		sig.Flags |= FlagFirewall
	}

	var parser SignatureParser

	// scan pass: syntax plus requires/sid only
	if err := e.sigParse(sig, rule, dir, &parser, true); err != nil {
		sig.free()
		return nil, err
	}
	if sig.ID == 0 {
		sig.free()
		return nil, parseErrorf("signature missing required value \"sid\"")
	}

	// build pass
	if err := e.sigParse(sig, rule, dir, &parser, false); err != nil {
		sig.free()
		return nil, err
	}

	if sig.Prio == -1 {
		sig.Prio = DefaultPrio
	}

	sig.IID = e.signum
	e.signum++

	// reconcile the IP protocol set with the app-layer protocol
	if sig.AlProto != 0 {
		overrideNeeded := false
		if sig.Proto.Flags&ProtoAny != 0 {
			sig.Proto.Flags &^= ProtoAny
			sig.Proto.Proto = [256 / 8]byte{}
			overrideNeeded = true
		} else if sig.Proto.IsEmpty() {
			overrideNeeded = true
		}
		if overrideNeeded {
			applayer.SupportedIPProtos(sig.AlProto, sig.Proto.Proto[:])
		}
	}

	// packet evaluation is the default when no app-layer flag is set
	if sig.Flags&FlagAppLayer == 0 {
		if sig.InitData.SMLists[ListMatch] != nil {
			for sm := sig.InitData.SMLists[ListMatch]; sm != nil; sm = sm.Next {
				if kw := keywordByID(sm.Type); kw != nil && kw.Flags&KwPacketMatch != 0 {
					sig.InitData.Flags |= InitPacket
				}
			}
		} else {
			sig.InitData.Flags |= InitPacket
		}
	}

	if sig.InitData.Hook.Type == HookPkt && sig.InitData.Hook.Pkt == PktHookFlowStart {
		if sig.Flags&FlagToServer != 0 {
			sig.InitData.Flags |= InitFlow
		}
	}
	if sig.InitData.Flags&InitFlow == 0 {
		if sig.Flags&(FlagToServer|FlagToClient) == 0 {
			sig.Flags |= FlagToServer | FlagToClient
		}
	}

	sig.buildAddressMatchArrays()

	// run buffer type setup callbacks
	for _, b := range sig.InitData.Buffers {
		if bt := BufferTypeByID(b.ID); bt != nil && bt.Setup != nil {
			bt.Setup(e, sig, b.ID)
		}
	}

	e.setupPrefilter(sig)

	if err := e.validateConsolidate(sig, &parser, dir); err != nil {
		sig.free()
		return nil, err
	}

	return sig, nil
}

// hasSameSourceAndDestination reports whether a bidirectional rule is
// self-symmetric, comparing the canonical address and port lists.
func (s *Signature) hasSameSourceAndDestination() bool {
	if s.Flags&FlagSPAny == 0 || s.Flags&FlagDPAny == 0 {
		if !s.SP.Equal(s.DP) {
			return false
		}
	}
	if s.Flags&FlagSrcAny == 0 || s.Flags&FlagDstAny == 0 {
		if !s.Src.Equal(s.Dst) {
			return false
		}
	}
	return true
}

func (e *Engine) sigInitDo(rule string, firewallRule bool) (*Signature, error) {
	oldSignum := e.signum
	e.resetSigError()

	rule = strings.TrimSpace(rule)

	sig, err := e.sigInitHelper(rule, dirNormal, firewallRule)
	if err != nil {
		if errors.Is(err, ErrRequirementsUnmet) {
			e.SigErrorSilent = true
			e.SigErrorOK = true
			e.SigErrorRequires = true
		} else if errors.Is(err, ErrSilent) {
			e.SigErrorSilent = true
		}
		e.LastError = err
		e.signum = oldSignum
		return nil, err
	}

	if sig.InitData.Flags&InitBidirectional != 0 {
		if sig.hasSameSourceAndDestination() {
			e.log.Infof("rule with ID %d is bidirectional, but source and destination "+
				"are the same, treating the rule as unidirectional", sig.ID)
			sig.InitData.Flags &^= InitBidirectional
		} else {
			next, err := e.sigInitHelper(rule, dirSwitched, firewallRule)
			if err != nil {
				sig.free()
				e.LastError = err
				e.signum = oldSignum
				return nil, err
			}
			sig.Next = next
			sig.Bidirectional = true
		}
	}

	return sig, nil
}

// SigInit parses a rule into a validated signature. For bidirectional
// rules with non-symmetric endpoints the result is a two-node chain.
func (e *Engine) SigInit(rule string) (*Signature, error) {
	return e.sigInitDo(rule, false)
}

// FirewallRuleNew parses a rule under firewall validation rules.
func (e *Engine) FirewallRuleNew(rule string) (*Signature, error) {
	return e.sigInitDo(rule, true)
}
