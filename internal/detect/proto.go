package detect

import (
	"strings"

	"github.com/google/gopacket/layers"

	"github.com/afonot/suricata/internal/applayer"
)

// ProtoFlags qualify the IP protocol set of a signature.
type ProtoFlags uint8

const (
	// ProtoAny matches every IP protocol.
	ProtoAny ProtoFlags = 1 << iota
	// ProtoOnlyPkt restricts TCP inspection to packets (tcp-pkt).
	ProtoOnlyPkt
	// ProtoOnlyStream restricts TCP inspection to the stream (tcp-stream).
	ProtoOnlyStream
	// ProtoIPv4 and ProtoIPv6 restrict the address family (ip4/ip6).
	ProtoIPv4
	ProtoIPv6
)

// DetectProto is a bitmap over the 256 IP protocol numbers.
type DetectProto struct {
	Proto [256 / 8]byte
	Flags ProtoFlags
}

// SetProto marks one IP protocol in the bitmap.
func (d *DetectProto) SetProto(p layers.IPProtocol) {
	d.Proto[int(p)/8] |= 1 << (uint(p) % 8)
}

// HasProto reports whether an IP protocol is in the set.
func (d *DetectProto) HasProto(p layers.IPProtocol) bool {
	if d.Flags&ProtoAny != 0 {
		return true
	}
	return d.Proto[int(p)/8]&(1<<(uint(p)%8)) != 0
}

// IsEmpty reports whether no protocol bit is set.
func (d *DetectProto) IsEmpty() bool {
	for _, b := range d.Proto {
		if b != 0 {
			return false
		}
	}
	return true
}

// parseIPProto interprets an IP-level protocol name. It returns false
// when the name is not an IP protocol (it may still be an app-layer
// protocol name).
func (d *DetectProto) parseIPProto(name string) bool {
	switch strings.ToLower(name) {
	case "tcp":
		d.SetProto(layers.IPProtocolTCP)
	case "tcp-pkt":
		d.SetProto(layers.IPProtocolTCP)
		d.Flags |= ProtoOnlyPkt
	case "tcp-stream":
		d.SetProto(layers.IPProtocolTCP)
		d.Flags |= ProtoOnlyStream
	case "udp":
		d.SetProto(layers.IPProtocolUDP)
	case "icmp", "icmpv4":
		d.SetProto(layers.IPProtocolICMPv4)
	case "icmpv6":
		d.SetProto(layers.IPProtocolICMPv6)
	case "sctp":
		d.SetProto(layers.IPProtocolSCTP)
	case "esp":
		d.SetProto(layers.IPProtocolESP)
	case "gre":
		d.SetProto(layers.IPProtocolGRE)
	case "ip", "pkthdr":
		d.Flags |= ProtoAny
	case "ip4", "ipv4":
		d.Flags |= ProtoAny | ProtoIPv4
	case "ip6", "ipv6":
		d.Flags |= ProtoAny | ProtoIPv6
	default:
		return false
	}
	return true
}

// parseProto interprets the protocol header field, including an optional
// `proto:hook` suffix for both IP and app-layer protocols.
func (s *Signature) parseProto(protostr string) error {
	if len(protostr) > 32 {
		return parseErrorf("protocol specification too long: %q", protostr)
	}

	name := protostr
	hook := ""
	if i := strings.IndexByte(protostr, ':'); i >= 0 {
		name = protostr[:i]
		hook = protostr[i+1:]
	}
	if name == "" {
		return parseErrorf("invalid protocol specification %q", protostr)
	}

	if !s.Proto.parseIPProto(name) {
		alproto := applayer.GetProtoByName(name)
		if alproto == applayer.Unknown {
			return parseErrorf("protocol %q cannot be used in a signature: "+
				"detection is not supported or has been disabled", name)
		}
		s.AlProto = alproto
		s.Flags |= FlagAppLayer
		applayer.SupportedIPProtos(alproto, s.Proto.Proto[:])

		if hook != "" {
			if err := s.parseProtoHookApp(protostr, name, hook); err != nil {
				return parseErrorf("protocol %q does not support hook %q", name, hook)
			}
		}
	} else if hook != "" {
		ph := pktHookFromString(hook)
		if ph == PktHookNotSet {
			return parseErrorf("protocol %q does not support hook %q", name, hook)
		}
		s.InitData.Hook = setPktHook(ph)
	}

	if s.Proto.Flags&ProtoOnlyPkt != 0 {
		s.Flags |= FlagRequirePacket
	} else if s.Proto.Flags&ProtoOnlyStream != 0 {
		s.Flags |= FlagRequireStream
	}
	return nil
}

// parseProtoHookApp resolves an app-layer hook name into a progress
// value and direction, and binds the generic inspection list registered
// for the `proto:hook` pair.
func (s *Signature) parseProtoHookApp(protoHook, proto, hook string) error {
	switch hook {
	case "request_started":
		s.Flags |= FlagToServer
		s.InitData.Hook = setAppHook(s.AlProto, 0)
	case "response_started":
		s.Flags |= FlagToClient
		s.InitData.Hook = setAppHook(s.AlProto, 0)
	case "request_complete":
		s.Flags |= FlagToServer
		s.InitData.Hook = setAppHook(s.AlProto,
			applayer.CompletionStatus(s.AlProto, applayer.ToServer))
	case "response_complete":
		s.Flags |= FlagToClient
		s.InitData.Hook = setAppHook(s.AlProto,
			applayer.CompletionStatus(s.AlProto, applayer.ToClient))
	default:
		if progress := applayer.StateIDByName(s.AlProto, hook, applayer.ToServer); progress >= 0 {
			s.Flags |= FlagToServer
			s.InitData.Hook = setAppHook(s.AlProto, progress)
		} else if progress := applayer.StateIDByName(s.AlProto, hook, applayer.ToClient); progress >= 0 {
			s.Flags |= FlagToClient
			s.InitData.Hook = setAppHook(s.AlProto, progress)
		} else {
			return parseErrorf("unknown app hook %q", hook)
		}
	}

	list := BufferTypeIDByName(protoHook + ":generic")
	if list < 0 {
		return parseErrorf("no list registered as %s:generic for hook %s", protoHook, protoHook)
	}
	s.InitData.Hook.SMList = list
	s.AppProgressHook = uint8(s.InitData.Hook.App.Progress)
	return nil
}
