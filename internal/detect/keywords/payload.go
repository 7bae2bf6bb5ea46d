package keywords

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/afonot/suricata/internal/detect"
)

// DsizeData is the context of one `dsize` match.
type DsizeData struct {
	Mode string // "=", "<", ">", "<>", "!"
	Low  uint16
	High uint16
}

// ByteTestData is the context of one `byte_test` match.
type ByteTestData struct {
	Bytes  int
	Op     string
	Value  uint64
	Offset int32
}

func init() {
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "dsize",
		Desc:  "match on the size of the packet payload",
		Flags: detect.KwHandleNegation | detect.KwPacketMatch,
		Setup: dsizeSetup,
		SupportsPrefilter: func(s *detect.Signature) bool {
			return true
		},
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "byte_test",
		Desc:  "extract bytes and compare them against a value",
		Setup: byteTestSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "stream_size",
		Desc:  "match on the stream byte count",
		Flags: detect.KwPacketMatch,
		Setup: streamSizeSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "pcre",
		Desc:  "match on a regular expression",
		Flags: detect.KwQuotesOptional | detect.KwHandleNegation,
		Setup: pcreSetup,
		Free:  func(ctx interface{}) {},
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "app-layer-event",
		Desc:  "match on app-layer parser events",
		Setup: appLayerEventSetup,
	})
}

func dsizeSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	v := strings.TrimSpace(opt.Value)
	dd := &DsizeData{Mode: "="}
	if opt.Negated {
		dd.Mode = "!"
	}

	switch {
	case strings.Contains(v, "<>"):
		parts := strings.SplitN(v, "<>", 2)
		lo, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
		hi, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
		if err1 != nil || err2 != nil || lo >= hi {
			return parseErrf("invalid dsize range '" + v + "'")
		}
		dd.Mode = "<>"
		dd.Low = uint16(lo)
		dd.High = uint16(hi)
	case strings.HasPrefix(v, "<"), strings.HasPrefix(v, ">"):
		n, err := strconv.ParseUint(strings.TrimSpace(v[1:]), 10, 16)
		if err != nil {
			return parseErrf("invalid dsize value '" + v + "'")
		}
		dd.Mode = v[:1]
		dd.Low = uint16(n)
	default:
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return parseErrf("invalid dsize value '" + v + "'")
		}
		dd.Low = uint16(n)
	}

	if _, err := detect.AppendSigMatch(s, detect.LookupKeyword("dsize").ID, dd, detect.ListMatch); err != nil {
		return err
	}
	s.Flags |= detect.FlagRequirePacket
	return nil
}

func byteTestSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	parts := strings.Split(opt.Value, ",")
	if len(parts) < 4 {
		return parseErrf("byte_test requires bytes, operator, value and offset")
	}
	nbytes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || nbytes < 1 || nbytes > 8 {
		return parseErrf("invalid byte_test byte count '" + parts[0] + "'")
	}
	op := strings.TrimSpace(parts[1])
	switch op {
	case "<", ">", "=", "<=", ">=", "&", "^":
	default:
		return parseErrf("invalid byte_test operator '" + op + "'")
	}
	value, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 0, 64)
	if err != nil {
		return parseErrf("invalid byte_test value '" + parts[2] + "'")
	}
	offset, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 32)
	if err != nil {
		return parseErrf("invalid byte_test offset '" + parts[3] + "'")
	}

	bd := &ByteTestData{Bytes: nbytes, Op: op, Value: value, Offset: int32(offset)}
	list := detect.ActiveList(s, detect.ListPmatch)
	_, err = detect.AppendSigMatch(s, detect.LookupKeyword("byte_test").ID, bd, list)
	return err
}

func streamSizeSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	parts := strings.Split(opt.Value, ",")
	if len(parts) != 3 {
		return parseErrf("stream_size requires direction, operator and size")
	}
	dir := strings.TrimSpace(parts[0])
	switch dir {
	case "server", "client", "both", "either":
	default:
		return parseErrf("invalid stream_size direction '" + dir + "'")
	}
	mode := strings.TrimSpace(parts[1])
	switch mode {
	case "<", ">", "=", "!=", "<=", ">=":
	default:
		return parseErrf("invalid stream_size operator '" + mode + "'")
	}
	size, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return parseErrf("invalid stream_size value '" + parts[2] + "'")
	}

	sd := &detect.StreamSizeData{Direction: dir, Mode: mode, Size: size}
	_, err = detect.AppendSigMatch(s, detect.LookupKeyword("stream_size").ID, sd, detect.ListMatch)
	return err
}

// pcreSetup parses the /pattern/opts notation and compiles the pattern.
func pcreSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	v := opt.Value
	if len(v) < 2 || v[0] != '/' {
		return parseErrf("pcre pattern must start with '/'")
	}
	end := strings.LastIndexByte(v, '/')
	if end == 0 {
		return parseErrf("pcre pattern must end with '/'")
	}
	pattern := v[1:end]
	opts := v[end+1:]

	var reFlags string
	for _, o := range opts {
		switch o {
		case 'i':
			reFlags += "i"
		case 's':
			reFlags += "s"
		case 'm':
			reFlags += "m"
		case 'R', 'U', 'P', 'Q', 'H', 'D', 'M', 'C', 'I', 'V', 'W', 'B', 'O':
			// position and buffer modifiers are honoured by the match
			// engine, not the compiler
		default:
			return parseErrf("unknown pcre option '" + string(o) + "'")
		}
	}
	if reFlags != "" {
		pattern = "(?" + reFlags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return parseErrf("invalid pcre pattern: " + err.Error())
	}

	pd := &detect.PcreData{Regex: re, Opts: opts, Negate: opt.Negated}
	list := detect.ActiveList(s, detect.ListPmatch)
	_, err = detect.AppendSigMatch(s, detect.PcreKeywordID(), pd, list)
	return err
}

// knownAppEvents is the bounded set of parser events the engine
// exposes; unknown names are rejected silently so a rule file written
// for a newer engine degrades to a skip with one message.
var knownAppEvents = map[string]bool{
	"applayer_mismatch_protocol_both_directions": true,
	"applayer_wrong_direction_first_data":        true,
	"applayer_detect_protocol_only_one_direction": true,
	"applayer_proto_detection_skipped":            true,
	"http.request_line_invalid":                   true,
	"http.host_header_ambiguous":                  true,
	"dns.malformed_data":                          true,
	"tls.invalid_handshake_message":               true,
}

// AppLayerEventData is the context of one app-layer-event match.
type AppLayerEventData struct {
	Event string
}

func appLayerEventSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	name := strings.TrimSpace(opt.Value)
	if !knownAppEvents[name] {
		return detect.ErrSilent
	}
	_, err := detect.AppendSigMatch(s, detect.LookupKeyword("app-layer-event").ID,
		&AppLayerEventData{Event: name}, detect.ListMatch)
	return err
}
