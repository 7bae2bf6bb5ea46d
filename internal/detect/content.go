package detect

import (
	"regexp"

	"github.com/afonot/suricata/internal/applayer"
)

// ContentFlags qualify one content match.
type ContentFlags uint32

const (
	ContentNocase ContentFlags = 1 << iota
	ContentOffset
	ContentDepth
	ContentDistance
	ContentWithin
	ContentFastPattern
	ContentNegated
	ContentRawbytes
	ContentReplace
	ContentRelativeNext
	ContentStartsWith
	ContentEndsWith
)

// ContentData is the context of one `content` match instance. It is
// defined here because the validator, the prefilter picker and the
// content-modifier helper all inspect it.
type ContentData struct {
	Pattern  []byte
	Offset   uint16
	Depth    uint16
	Distance int32
	Within   int32
	Flags    ContentFlags
}

// PcreData is the context of one `pcre` match instance.
type PcreData struct {
	Regex  *regexp.Regexp
	Opts   string
	Flags  ContentFlags
	Negate bool
}

// StreamSizeData is the context of one `stream_size` match instance;
// its presence in the packet match list forces packet inspection on
// stream rules.
type StreamSizeData struct {
	Direction string
	Mode      string
	Size      uint64
}

// ContentModifierBufferSetup implements the legacy content-modifier
// keywords (`http_uri` and friends): it moves the most recent content
// from the payload list into the named sticky buffer.
func ContentModifierBufferSetup(e *Engine, s *Signature, arg string, smList int, alproto applayer.AppProto) error {
	if arg != "" {
		return parseErrorf("content modifier shouldn't be supplied with an argument")
	}
	if s.InitData.List != ListNotSet {
		return parseErrorf("keyword seen with a sticky buffer still set, " +
			"reset the sticky buffer with pkt_data first")
	}
	if s.AlProto != applayer.Unknown && !applayer.Equals(s.AlProto, alproto) {
		return parseErrorf("rule contains conflicting alprotos")
	}

	sm := GetLastSMByListID(s, ListPmatch, ContentKeywordID())
	if sm == nil {
		return parseErrorf("content modifier found inside the rule without a content context, " +
			"use a \"content\" keyword before it")
	}
	cd := sm.Ctx.(*ContentData)
	if cd.Flags&ContentRawbytes != 0 {
		return parseErrorf("content modifier can not be used with the rawbytes keyword")
	}
	if cd.Flags&ContentReplace != 0 {
		return parseErrorf("content modifier can not be used with the replace keyword")
	}

	if cd.Flags&(ContentWithin|ContentDistance) != 0 {
		if pm := GetLastSMByListPtr(sm.Prev, ContentKeywordID(), PcreKeywordID()); pm != nil {
			clearRelativeNext(pm)
		}
		if s.InitData.CurBuf != nil && s.InitData.CurBuf.ID == smList {
			if pm := GetLastSMByListPtr(s.InitData.CurBuf.Tail, ContentKeywordID(), PcreKeywordID()); pm != nil {
				setRelativeNext(pm)
			}
		}
	}

	if err := s.SetAppProto(alproto); err != nil {
		return err
	}

	if s.InitData.CurBuf == nil || s.InitData.CurBuf.ID != smList {
		if s.InitData.CurBuf != nil && s.InitData.CurBuf.Head == nil {
			return parseErrorf("no matches for previous buffer")
		}
		reuse := false
		if s.InitData.CurBuf != nil {
			for _, b := range s.InitData.Buffers {
				if b.ID == smList {
					s.InitData.CurBuf = b
					reuse = true
					break
				}
			}
		}
		if !reuse {
			b, err := s.expandBuffers()
			if err != nil {
				return err
			}
			b.ID = smList
			s.InitData.CurBuf = b
		}
	}

	transferSigMatch(sm,
		&s.InitData.SMLists[ListPmatch], &s.InitData.SMListsTail[ListPmatch],
		&s.InitData.CurBuf.Head, &s.InitData.CurBuf.Tail)
	return nil
}

func clearRelativeNext(sm *SigMatch) {
	switch ctx := sm.Ctx.(type) {
	case *ContentData:
		ctx.Flags &^= ContentRelativeNext
	case *PcreData:
		ctx.Flags &^= ContentRelativeNext
	}
}

func setRelativeNext(sm *SigMatch) {
	switch ctx := sm.Ctx.(type) {
	case *ContentData:
		ctx.Flags |= ContentRelativeNext
	case *PcreData:
		ctx.Flags |= ContentRelativeNext
	}
}

// well-known keyword ids, resolved lazily so the registry can be
// populated by the keywords package in any order
var (
	contentKwID = KeywordID(0xffff)
	pcreKwID    = KeywordID(0xffff)
)

// ContentKeywordID returns the dense id of the `content` keyword.
func ContentKeywordID() KeywordID {
	if contentKwID == 0xffff {
		if kw := LookupKeyword("content"); kw != nil {
			contentKwID = kw.ID
		}
	}
	return contentKwID
}

// PcreKeywordID returns the dense id of the `pcre` keyword.
func PcreKeywordID() KeywordID {
	if pcreKwID == 0xffff {
		if kw := LookupKeyword("pcre"); kw != nil {
			pcreKwID = kw.ID
		}
	}
	return pcreKwID
}
