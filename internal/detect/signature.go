package detect

import (
	"net/netip"

	"github.com/afonot/suricata/internal/applayer"
	"github.com/afonot/suricata/internal/rulenet"
)

// Reference is one `reference:` entry of a signature.
type Reference struct {
	Scheme string
	Value  string
}

// Metadata is one key/value `metadata:` entry.
type Metadata struct {
	Key   string
	Value string
}

// AddrMatch is one compact network-order address range used by the
// runtime match tables.
type AddrMatch struct {
	First netip.Addr
	Last  netip.Addr
}

// SigMatchData is one entry of the flattened, build-final match arrays.
// The keyword context is transferred here from the init-data lists.
type SigMatchData struct {
	Type   KeywordID
	IsLast bool
	Ctx    interface{}
}

// FlatBuffer is one flattened sticky buffer.
type FlatBuffer struct {
	ID      int
	Matches []SigMatchData
}

// InitDataBuffer is one sticky buffer during parsing.
type InitDataBuffer struct {
	ID   int
	Head *SigMatch
	Tail *SigMatch

	// OnlyTS / OnlyTC are set when the opening keyword forced one
	// direction for this buffer only.
	OnlyTS bool
	OnlyTC bool

	// SMInit is set for buffers opened directly by a match keyword, so
	// that a following sticky-buffer keyword can attach to it.
	SMInit bool

	// MultiCapable buffers are never reused across keyword instances.
	MultiCapable bool
}

// SignatureInitData is the transient build state of a signature. It is
// owned by the signature during parsing and released when the match
// lists are flattened.
type SignatureInitData struct {
	// Classical fixed-slot lists and their tails.
	SMLists     [ListMax]*SigMatch
	SMListsTail [ListMax]*SigMatch

	// Sticky buffers; pointers stay stable while the vector grows.
	Buffers []*InitDataBuffer
	CurBuf  *InitDataBuffer

	// SMCnt orders every attached match instance across all lists.
	SMCnt uint32

	// List is the sticky list id set by buffer keywords, consumed by
	// the next match keyword. ListNotSet when no sticky list is active.
	List int

	Flags InitFlags

	Hook SignatureHook

	FirewallRule bool

	// Alprotos holds an alternative app-proto set; used only while
	// AlProto on the signature itself is unset.
	Alprotos [maxAlprotos]applayer.AppProto

	HasPossiblePrefilter bool
	PrefilterSM          *SigMatch
	MpmSM                *SigMatch
	MpmSMList            int

	// rule requirements seen by the scan pass
	RequiresChecked bool
}

// Signature is a parsed detection rule.
type Signature struct {
	ID  uint32 // sid
	GID uint32
	Rev uint32

	// IID is the engine-internal dense id.
	IID uint32

	Action      ActionFlags
	ActionScope ActionScope

	Proto   DetectProto
	AlProto applayer.AppProto

	Flags     SigFlags
	FileFlags FileFlags

	Src *rulenet.AddressList
	Dst *rulenet.AddressList
	SP  *rulenet.PortList
	DP  *rulenet.PortList

	Msg        string
	References []Reference
	Metadata   []Metadata
	Prio       int

	Type        SigType
	DetectTable DetectTable

	AppProgressHook uint8

	// compiled artifacts
	MatchArrays [ListMax][]SigMatchData
	BufferData  []FlatBuffer
	Src4Matches []AddrMatch
	Src6Matches []AddrMatch
	Dst4Matches []AddrMatch
	Dst6Matches []AddrMatch

	// IP-only canonical CIDR lists, built for TypeIPOnly signatures.
	IPOnlySrc []netip.Prefix
	IPOnlyDst []netip.Prefix

	InitData *SignatureInitData

	RawRule string

	// Bidirectional survives the init-data teardown so duplicate
	// handling knows the signature heads a two-node chain.
	Bidirectional bool

	// Next chains the bidirectional sibling during parsing and the
	// engine list after append; prev is the engine-list backlink.
	Next *Signature
	prev *Signature
}

// sigAlloc returns an empty signature ready for parsing.
func sigAlloc() *Signature {
	return &Signature{
		GID:  1,
		Prio: -1,
		InitData: &SignatureInitData{
			Buffers:   make([]*InitDataBuffer, 0, 8),
			List:      ListNotSet,
			MpmSMList: -1,
		},
	}
}

// expandBuffers grows the sticky-buffer vector, honouring the hard cap.
func (s *Signature) expandBuffers() (*InitDataBuffer, error) {
	if len(s.InitData.Buffers) >= 64 {
		return nil, parseErrorf("failed to expand rule buffer array")
	}
	b := &InitDataBuffer{}
	s.InitData.Buffers = append(s.InitData.Buffers, b)
	return b, nil
}

// free releases every keyword context attached to the signature,
// across classical lists, sticky buffers and flattened arrays.
func (s *Signature) free() {
	if s == nil {
		return
	}
	if s.InitData != nil {
		for i := 0; i < ListMax; i++ {
			for sm := s.InitData.SMLists[i]; sm != nil; sm = sm.Next {
				freeMatchCtx(sm.Type, sm.Ctx)
			}
		}
		for _, b := range s.InitData.Buffers {
			for sm := b.Head; sm != nil; sm = sm.Next {
				freeMatchCtx(sm.Type, sm.Ctx)
			}
		}
		s.InitData = nil
		return
	}
	for i := range s.MatchArrays {
		for j := range s.MatchArrays[i] {
			freeMatchCtx(s.MatchArrays[i][j].Type, s.MatchArrays[i][j].Ctx)
		}
	}
	for _, fb := range s.BufferData {
		for j := range fb.Matches {
			freeMatchCtx(fb.Matches[j].Type, fb.Matches[j].Ctx)
		}
	}
}

func freeMatchCtx(t KeywordID, ctx interface{}) {
	if ctx == nil {
		return
	}
	if kw := keywordByID(t); kw != nil && kw.Free != nil {
		kw.Free(ctx)
	}
}

// SetAppProto assigns the signature's app-layer protocol, reconciling
// it with a previous assignment or a pending multi-proto set.
func (s *Signature) SetAppProto(alproto applayer.AppProto) error {
	if !applayer.IsValid(alproto) {
		return parseErrorf("invalid app-layer protocol %d", alproto)
	}

	if s.InitData.Alprotos[0] != applayer.Unknown {
		found := false
		for i := 0; i < maxAlprotos; i++ {
			if s.InitData.Alprotos[i] == alproto {
				found = true
				break
			}
		}
		if !found {
			return parseErrorf("can't set rule app proto to %s: conflicts with "+
				"previously set protocols", applayer.ToString(alproto))
		}
		// the restriction collapses the set to a single protocol
		s.InitData.Alprotos[0] = applayer.Unknown
	}

	if s.AlProto != applayer.Unknown {
		common := applayer.Common(s.AlProto, alproto)
		if common == applayer.Failed {
			return parseErrorf("can't set rule app proto to %s: already set to %s",
				applayer.ToString(alproto), applayer.ToString(s.AlProto))
		}
		alproto = common
	}

	s.AlProto = alproto
	s.Flags |= FlagAppLayer
	return nil
}

// SetMultiAppProto restricts the signature to a set of app-layer
// protocols. A nil-terminated semantics is not needed in Go: the slice
// carries the set. Intersections with an earlier set collapse to a
// singleton through SetAppProto where possible.
func (s *Signature) SetMultiAppProto(alprotos []applayer.AppProto) error {
	if s.AlProto != applayer.Unknown {
		for _, a := range alprotos {
			if s.AlProto == a {
				return nil
			}
		}
		return parseErrorf("app protos conflict with already set %s",
			applayer.ToString(s.AlProto))
	}

	if s.InitData.Alprotos[0] != applayer.Unknown {
		// intersect the existing set with the proposed one
		var intersect []applayer.AppProto
		for i := 0; i < maxAlprotos; i++ {
			cur := s.InitData.Alprotos[i]
			if cur == applayer.Unknown {
				break
			}
			for _, a := range alprotos {
				if cur == a {
					intersect = append(intersect, cur)
					break
				}
			}
		}
		if len(intersect) == 0 {
			return parseErrorf("app protos have no intersection with previous set")
		}
		for i := range s.InitData.Alprotos {
			s.InitData.Alprotos[i] = applayer.Unknown
		}
		if len(intersect) == 1 {
			return s.SetAppProto(intersect[0])
		}
		copy(s.InitData.Alprotos[:], intersect)
		return nil
	}

	if len(alprotos) == 0 {
		return parseErrorf("empty app proto set")
	}
	if len(alprotos) == 1 {
		return s.SetAppProto(alprotos[0])
	}
	if len(alprotos) > maxAlprotos {
		return parseErrorf("too many app protos, at most %d supported", maxAlprotos)
	}
	copy(s.InitData.Alprotos[:], alprotos)
	return nil
}

// buildAddressMatchArrays converts the canonical address lists into the
// four compact range tables the runtime engine walks: source and
// destination, IPv4 and IPv6.
func (s *Signature) buildAddressMatchArrays() {
	if s.Flags&FlagSrcAny == 0 && s.Src != nil {
		for _, r := range s.Src.IPv4 {
			s.Src4Matches = append(s.Src4Matches, AddrMatch{First: r.First, Last: r.Last})
		}
		for _, r := range s.Src.IPv6 {
			s.Src6Matches = append(s.Src6Matches, AddrMatch{First: r.First, Last: r.Last})
		}
	}
	if s.Flags&FlagDstAny == 0 && s.Dst != nil {
		for _, r := range s.Dst.IPv4 {
			s.Dst4Matches = append(s.Dst4Matches, AddrMatch{First: r.First, Last: r.Last})
		}
		for _, r := range s.Dst.IPv6 {
			s.Dst6Matches = append(s.Dst6Matches, AddrMatch{First: r.First, Last: r.Last})
		}
	}
}

// flatten converts the init-data lists into per-list compact arrays and
// releases the init data. Keyword contexts move, they are not copied.
func (s *Signature) flatten() {
	id := s.InitData
	for list := 0; list < ListMax; list++ {
		s.MatchArrays[list] = matchListToArray(id.SMLists[list])
	}
	for _, b := range id.Buffers {
		s.BufferData = append(s.BufferData, FlatBuffer{
			ID:      b.ID,
			Matches: matchListToArray(b.Head),
		})
	}
	s.InitData = nil
}

func matchListToArray(head *SigMatch) []SigMatchData {
	if head == nil {
		return nil
	}
	var out []SigMatchData
	for sm := head; sm != nil; sm = sm.Next {
		out = append(out, SigMatchData{
			Type:   sm.Type,
			IsLast: sm.Next == nil,
			Ctx:    sm.Ctx,
		})
	}
	return out
}
