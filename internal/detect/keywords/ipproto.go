package keywords

import (
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"

	"github.com/afonot/suricata/internal/detect"
)

// IPProtoData is the context of one `ip_proto` match.
type IPProtoData struct {
	Op    string // "=", "!", "<", ">"
	Proto layers.IPProtocol
}

// TTLData is the context of one `ttl` match.
type TTLData struct {
	Op   string
	TTL1 uint8
	TTL2 uint8
}

func init() {
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "ip_proto",
		Desc:  "match on the IP protocol number",
		Flags: detect.KwIPOnlyCompatible,
		Setup: ipProtoSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "ttl",
		Desc:  "match on the IP time-to-live",
		Flags: detect.KwPacketMatch,
		Tables: detect.TablePacketTD.AsBit() | detect.TablePacketFilter.AsBit() |
			detect.TablePacketPreFlow.AsBit() | detect.TablePacketPreStream.AsBit(),
		Setup: ttlSetup,
	})

	detect.RegisterPostBuildHook(removeRedundantIPProtoSMs)
}

var ipProtoNames = map[string]layers.IPProtocol{
	"tcp":    layers.IPProtocolTCP,
	"udp":    layers.IPProtocolUDP,
	"icmp":   layers.IPProtocolICMPv4,
	"icmpv6": layers.IPProtocolICMPv6,
	"sctp":   layers.IPProtocolSCTP,
	"esp":    layers.IPProtocolESP,
	"gre":    layers.IPProtocolGRE,
}

func ipProtoSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	v := strings.TrimSpace(opt.Value)
	ipd := &IPProtoData{Op: "="}
	switch {
	case strings.HasPrefix(v, "!"):
		ipd.Op = "!"
		v = strings.TrimSpace(v[1:])
	case strings.HasPrefix(v, "<"), strings.HasPrefix(v, ">"):
		ipd.Op = v[:1]
		v = strings.TrimSpace(v[1:])
	}

	if proto, ok := ipProtoNames[strings.ToLower(v)]; ok {
		ipd.Proto = proto
	} else {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return parseErrf("invalid ip_proto value '" + v + "'")
		}
		ipd.Proto = layers.IPProtocol(n)
	}

	if ipd.Op == "=" {
		s.Proto.SetProto(ipd.Proto)
	}
	_, err := detect.AppendSigMatch(s, detect.LookupKeyword("ip_proto").ID, ipd, detect.ListMatch)
	return err
}

// removeRedundantIPProtoSMs drops ip_proto match instances whose whole
// effect is already encoded in the signature's protocol bitmap.
func removeRedundantIPProtoSMs(e *detect.Engine, s *detect.Signature) {
	id := detect.LookupKeyword("ip_proto").ID
	sm := s.InitData.SMLists[detect.ListMatch]
	for sm != nil {
		next := sm.Next
		if sm.Type == id {
			if ipd := sm.Ctx.(*IPProtoData); ipd.Op == "=" {
				detect.RemoveSigMatch(s, sm, detect.ListMatch)
			}
		}
		sm = next
	}
}

func ttlSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	v := strings.TrimSpace(opt.Value)
	td := &TTLData{Op: "="}

	if i := strings.Index(v, "-"); i > 0 {
		lo, err1 := strconv.ParseUint(strings.TrimSpace(v[:i]), 10, 8)
		hi, err2 := strconv.ParseUint(strings.TrimSpace(v[i+1:]), 10, 8)
		if err1 != nil || err2 != nil || lo >= hi {
			return parseErrf("invalid ttl range '" + v + "'")
		}
		td.Op = "-"
		td.TTL1 = uint8(lo)
		td.TTL2 = uint8(hi)
	} else {
		if strings.HasPrefix(v, "<") || strings.HasPrefix(v, ">") {
			td.Op = v[:1]
			v = strings.TrimSpace(v[1:])
		}
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return parseErrf("invalid ttl value '" + v + "'")
		}
		td.TTL1 = uint8(n)
	}

	if _, err := detect.AppendSigMatch(s, detect.LookupKeyword("ttl").ID, td, detect.ListMatch); err != nil {
		return err
	}
	s.Flags |= detect.FlagRequirePacket
	return nil
}
