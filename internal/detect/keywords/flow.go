package keywords

import (
	"strings"

	"github.com/afonot/suricata/internal/detect"
)

// FlowData is the context of one `flow` match.
type FlowData struct {
	ToServer    bool
	ToClient    bool
	Established bool
	NotEstab    bool
	Stateless   bool
	OnlyStream  bool
	NoStream    bool
}

// FlowbitsData is the context of one `flowbits` match.
type FlowbitsData struct {
	Action string
	Name   string
}

func init() {
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "flow",
		Desc:  "match on the direction and state of the flow",
		Flags: detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: flowSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "flowbits",
		Desc:  "operate on flow flag bits",
		Setup: flowbitsSetup,
	})

	detect.RegisterFlowImplicitHook(flowSetupImplicit)
}

func flowSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	fd := &FlowData{}
	for _, word := range strings.Split(opt.Value, ",") {
		switch strings.TrimSpace(word) {
		case "to_server", "from_client":
			if fd.ToClient {
				return parseErrf("flow cannot be both to_server and to_client")
			}
			fd.ToServer = true
		case "to_client", "from_server":
			if fd.ToServer {
				return parseErrf("flow cannot be both to_server and to_client")
			}
			fd.ToClient = true
		case "established":
			if fd.NotEstab || fd.Stateless {
				return parseErrf("flow established conflicts with an earlier state")
			}
			fd.Established = true
		case "not_established":
			if fd.Established || fd.Stateless {
				return parseErrf("flow not_established conflicts with an earlier state")
			}
			fd.NotEstab = true
		case "stateless":
			if fd.Established || fd.NotEstab {
				return parseErrf("flow stateless conflicts with an earlier state")
			}
			fd.Stateless = true
		case "only_stream":
			if fd.NoStream {
				return parseErrf("flow cannot be both only_stream and no_stream")
			}
			fd.OnlyStream = true
		case "no_stream":
			if fd.OnlyStream {
				return parseErrf("flow cannot be both only_stream and no_stream")
			}
			fd.NoStream = true
		default:
			return parseErrf("invalid flow option '" + strings.TrimSpace(word) + "'")
		}
	}

	if fd.ToServer {
		if s.Flags&detect.FlagToClient != 0 && s.Flags&detect.FlagTxBothDir == 0 {
			return parseErrf("contradictory flow directions")
		}
		s.Flags |= detect.FlagToServer
	}
	if fd.ToClient {
		if s.Flags&detect.FlagToServer != 0 && s.Flags&detect.FlagTxBothDir == 0 {
			return parseErrf("contradictory flow directions")
		}
		s.Flags |= detect.FlagToClient
	}
	if fd.OnlyStream {
		s.Flags |= detect.FlagRequireStream
	}
	if fd.NoStream {
		s.Flags |= detect.FlagRequirePacket
	}

	_, err := detect.AppendSigMatch(s, detect.LookupKeyword("flow").ID, fd, detect.ListMatch)
	return err
}

// flowSetupImplicit keeps a direction implied by buffer analysis
// coherent with an explicit flow keyword.
func flowSetupImplicit(s *detect.Signature, dir detect.SigFlags) error {
	sm := detect.GetLastSMByListID(s, detect.ListMatch, detect.LookupKeyword("flow").ID)
	if sm != nil {
		fd := sm.Ctx.(*FlowData)
		if dir == detect.FlagToServer && fd.ToClient {
			return parseErrf("implied to_server contradicts flow:to_client")
		}
		if dir == detect.FlagToClient && fd.ToServer {
			return parseErrf("implied to_client contradicts flow:to_server")
		}
		if dir == detect.FlagToServer {
			fd.ToServer = true
		} else {
			fd.ToClient = true
		}
	}

	// a default both-directions rule narrows to the implied one; an
	// explicit opposite direction is a conflict
	both := detect.FlagToServer | detect.FlagToClient
	if s.Flags&both == both {
		s.Flags &^= both
	}
	if dir == detect.FlagToServer && s.Flags&detect.FlagToClient != 0 {
		return parseErrf("conflicting directions")
	}
	if dir == detect.FlagToClient && s.Flags&detect.FlagToServer != 0 {
		return parseErrf("conflicting directions")
	}
	s.Flags |= dir
	return nil
}

func flowbitsSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	parts := strings.SplitN(opt.Value, ",", 2)
	action := strings.TrimSpace(parts[0])
	fb := &FlowbitsData{Action: action}

	switch action {
	case "noalert":
		if len(parts) != 1 {
			return parseErrf("flowbits noalert takes no name")
		}
	case "set", "unset", "toggle", "isset", "isnotset":
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return parseErrf("flowbits " + action + " requires a bit name")
		}
		fb.Name = strings.TrimSpace(parts[1])
	default:
		return parseErrf("invalid flowbits action '" + action + "'")
	}

	list := detect.ListMatch
	switch action {
	case "set", "unset", "toggle":
		list = detect.ListPostmatch
	}
	_, err := detect.AppendSigMatch(s, detect.LookupKeyword("flowbits").ID, fb, list)
	return err
}
