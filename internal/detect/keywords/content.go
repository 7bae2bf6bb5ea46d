package keywords

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/afonot/suricata/internal/detect"
)

func init() {
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "content",
		Desc:  "match on payload content",
		Flags: detect.KwQuotesMandatory | detect.KwHandleNegation | detect.KwSupportFirewall,
		Setup: contentSetup,
		Free:  func(ctx interface{}) {},
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "nocase",
		Desc:  "make the preceding content match case-insensitive",
		Flags: detect.KwNoOpt,
		Setup: nocaseSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "rawbytes",
		Desc:  "match the preceding content on raw packet bytes",
		Flags: detect.KwNoOpt,
		Setup: rawbytesSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "offset",
		Desc:  "start content matching at a byte offset in the payload",
		Setup: offsetSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "depth",
		Desc:  "bound content matching to the first bytes of the payload",
		Setup: depthSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "distance",
		Desc:  "match content relative to the previous match",
		Setup: distanceSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "within",
		Desc:  "bound content matching relative to the previous match",
		Setup: withinSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "fast_pattern",
		Desc:  "force the preceding content into the MPM",
		Flags: detect.KwOptionalOpt,
		Setup: fastPatternSetup,
	})
}

// parseContentPattern decodes a content value: literal characters,
// |..| hex notation and the \" \\ \: \; escapes.
func parseContentPattern(v string) ([]byte, error) {
	var out []byte
	inHex := false
	var hexbuf strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if inHex {
			if c == '|' {
				raw, err := hex.DecodeString(strings.ReplaceAll(hexbuf.String(), " ", ""))
				if err != nil {
					return nil, parseErrf("invalid hex notation in content: '" + v + "'")
				}
				out = append(out, raw...)
				hexbuf.Reset()
				inHex = false
				continue
			}
			hexbuf.WriteByte(c)
			continue
		}
		switch c {
		case '|':
			inHex = true
		case '\\':
			if i+1 >= len(v) {
				return nil, parseErrf("invalid escape at end of content: '" + v + "'")
			}
			i++
			switch v[i] {
			case '"', '\\', ':', ';':
				out = append(out, v[i])
			default:
				return nil, parseErrf("invalid escape in content: '" + v + "'")
			}
		default:
			out = append(out, c)
		}
	}
	if inHex {
		return nil, parseErrf("unbalanced '|' in content: '" + v + "'")
	}
	if len(out) == 0 {
		return nil, parseErrf("empty content pattern")
	}
	return out, nil
}

func contentSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	pattern, err := parseContentPattern(opt.Value)
	if err != nil {
		return err
	}
	cd := &detect.ContentData{Pattern: pattern}
	if opt.Negated {
		cd.Flags |= detect.ContentNegated
	}
	list := detect.ActiveList(s, detect.ListPmatch)
	_, err = detect.AppendSigMatch(s, detect.ContentKeywordID(), cd, list)
	return err
}

// lastContent finds the content a modifier applies to.
func lastContent(s *detect.Signature, kw string) (*detect.SigMatch, *detect.ContentData, error) {
	sm := detect.GetLastSMFromLists(s, detect.ContentKeywordID())
	if sm == nil {
		return nil, nil, parseErrf("\"" + kw + "\" needs a preceding content option")
	}
	return sm, sm.Ctx.(*detect.ContentData), nil
}

func nocaseSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	_, cd, err := lastContent(s, "nocase")
	if err != nil {
		return err
	}
	if cd.Flags&detect.ContentNocase != 0 {
		return parseErrf("can't use multiple nocase modifiers with the same content")
	}
	cd.Flags |= detect.ContentNocase
	return nil
}

func rawbytesSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	sm, cd, err := lastContent(s, "rawbytes")
	if err != nil {
		return err
	}
	list := detect.ListSMBelongsTo(s, sm)
	if list >= detect.ListMax {
		return parseErrf("\"" + detect.ListToString(list) +
			"\" keyword can not be used with the rawbytes rule keyword")
	}
	cd.Flags |= detect.ContentRawbytes
	return nil
}

func offsetSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	_, cd, err := lastContent(s, "offset")
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(opt.Value, 10, 16)
	if err != nil {
		return parseErrf("invalid offset value '" + opt.Value + "'")
	}
	if cd.Flags&detect.ContentStartsWith != 0 {
		return parseErrf("can't use offset with startswith")
	}
	cd.Offset = uint16(n)
	cd.Flags |= detect.ContentOffset
	return nil
}

func depthSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	_, cd, err := lastContent(s, "depth")
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(opt.Value, 10, 16)
	if err != nil {
		return parseErrf("invalid depth value '" + opt.Value + "'")
	}
	if uint16(n) < uint16(len(cd.Pattern)) {
		return parseErrf("depth smaller than content length")
	}
	cd.Depth = uint16(n)
	cd.Flags |= detect.ContentDepth
	return nil
}

func distanceSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	sm, cd, err := lastContent(s, "distance")
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(opt.Value, 10, 32)
	if err != nil {
		return parseErrf("invalid distance value '" + opt.Value + "'")
	}
	cd.Distance = int32(n)
	cd.Flags |= detect.ContentDistance
	markPreviousRelative(s, sm)
	return nil
}

func withinSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	sm, cd, err := lastContent(s, "within")
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(opt.Value, 10, 32)
	if err != nil {
		return parseErrf("invalid within value '" + opt.Value + "'")
	}
	if n < int64(len(cd.Pattern)) {
		return parseErrf("within smaller than content length")
	}
	cd.Within = int32(n)
	cd.Flags |= detect.ContentWithin
	markPreviousRelative(s, sm)
	return nil
}

// markPreviousRelative flags the match before sm so the engine knows
// its successor matches relative to it.
func markPreviousRelative(s *detect.Signature, sm *detect.SigMatch) {
	prev := detect.GetLastSMByListPtr(sm.Prev, detect.ContentKeywordID(), detect.PcreKeywordID())
	if prev == nil {
		return
	}
	switch ctx := prev.Ctx.(type) {
	case *detect.ContentData:
		ctx.Flags |= detect.ContentRelativeNext
	case *detect.PcreData:
		ctx.Flags |= detect.ContentRelativeNext
	}
}

func fastPatternSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	sm, cd, err := lastContent(s, "fast_pattern")
	if err != nil {
		return err
	}
	if cd.Flags&detect.ContentNegated != 0 {
		return parseErrf("fast_pattern can not be used on negated content")
	}

	switch {
	case opt.Value == "":
		cd.Flags |= detect.ContentFastPattern
	case opt.Value == "only":
		cd.Flags |= detect.ContentFastPattern
	default:
		// chopped form: fast_pattern:offset,length
		parts := strings.Split(opt.Value, ",")
		if len(parts) != 2 {
			return parseErrf("invalid fast_pattern value '" + opt.Value + "'")
		}
		off, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
		length, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
		if err1 != nil || err2 != nil {
			return parseErrf("invalid fast_pattern value '" + opt.Value + "'")
		}
		if int(off+length) > len(cd.Pattern) {
			return parseErrf("fast_pattern offset plus length exceeds the pattern")
		}
		cd.Flags |= detect.ContentFastPattern
	}

	s.InitData.PrefilterSM = sm
	return nil
}
