package detect

// SigMatch is one attached keyword instance inside a signature: a
// doubly-linked node with the keyword type, its opaque context and the
// signature-wide insertion index.
type SigMatch struct {
	Type KeywordID
	Ctx  interface{}
	Idx  uint32
	Prev *SigMatch
	Next *SigMatch
}

// AppendSigMatch attaches a new match instance to the given list. For a
// classical list id the instance is linked into the fixed slot; for a
// sticky-buffer id the current buffer is reused or a new one opened.
func AppendSigMatch(s *Signature, typ KeywordID, ctx interface{}, list int) (*SigMatch, error) {
	sm := &SigMatch{Type: typ, Ctx: ctx}
	id := s.InitData

	if list < ListMax {
		if id.SMLists[list] == nil {
			id.SMLists[list] = sm
			id.SMListsTail[list] = sm
		} else {
			tail := id.SMListsTail[list]
			tail.Next = sm
			sm.Prev = tail
			id.SMListsTail[list] = sm
		}
		sm.Idx = id.SMCnt
		id.SMCnt++
		return sm, nil
	}

	// unset any sticky list that isn't the target
	if id.List != ListNotSet && list != id.List {
		id.List = ListNotSet
	}

	if id.CurBuf != nil && id.CurBuf.ID != list {
		for _, b := range id.Buffers {
			if b.ID == list && !b.MultiCapable {
				id.CurBuf = b
				break
			}
		}
	}

	if id.CurBuf == nil || id.CurBuf.ID != list {
		b, err := s.expandBuffers()
		if err != nil {
			return nil, err
		}
		b.ID = list
		// buffer set up by a match keyword is tracked so a following
		// sticky-buffer keyword can attach to the same list
		b.SMInit = true
		if bt := BufferTypeByID(list); bt != nil {
			b.MultiCapable = bt.Multi
		}
		if id.Flags&InitForceToClient != 0 {
			b.OnlyTC = true
		}
		if id.Flags&InitForceToServer != 0 {
			b.OnlyTS = true
		}
		id.CurBuf = b
	}

	cur := id.CurBuf
	sm.Prev = cur.Tail
	if cur.Tail != nil {
		cur.Tail.Next = sm
	}
	if cur.Head == nil {
		cur.Head = sm
	}
	cur.Tail = sm
	sm.Idx = id.SMCnt
	id.SMCnt++
	return sm, nil
}

// RemoveSigMatch unlinks a match instance from a classical list.
func RemoveSigMatch(s *Signature, sm *SigMatch, list int) {
	id := s.InitData
	if sm == id.SMLists[list] {
		id.SMLists[list] = sm.Next
	}
	if sm == id.SMListsTail[list] {
		id.SMListsTail[list] = sm.Prev
	}
	if sm.Prev != nil {
		sm.Prev.Next = sm.Next
	}
	if sm.Next != nil {
		sm.Next.Prev = sm.Prev
	}
	sm.Prev = nil
	sm.Next = nil
}

// transferSigMatch relocates one instance between two (head, tail)
// pairs, preserving its idx. Used by content-modifier keywords to move
// the latest content from the payload list into a sticky buffer.
func transferSigMatch(sm *SigMatch, srcHead, srcTail, dstHead, dstTail **SigMatch) {
	if sm.Prev != nil {
		sm.Prev.Next = sm.Next
	}
	if sm.Next != nil {
		sm.Next.Prev = sm.Prev
	}
	if sm == *srcHead {
		*srcHead = sm.Next
	}
	if sm == *srcTail {
		*srcTail = sm.Prev
	}

	if *dstHead == nil {
		*dstHead = sm
		*dstTail = sm
		sm.Next = nil
		sm.Prev = nil
	} else {
		cur := *dstTail
		cur.Next = sm
		sm.Prev = cur
		sm.Next = nil
		*dstTail = sm
	}
}

// lastSMByType walks a list tail-first for the newest instance of type.
func lastSMByType(sm *SigMatch, typ KeywordID) *SigMatch {
	for ; sm != nil; sm = sm.Prev {
		if sm.Type == typ {
			return sm
		}
	}
	return nil
}

// GetLastSMFromLists returns the newest instance of any given type
// across the sticky buffers and the classical lists, restricted to the
// active sticky list when one is set. Ties resolve by idx.
func GetLastSMFromLists(s *Signature, types ...KeywordID) *SigMatch {
	var last *SigMatch
	id := s.InitData

	for _, b := range id.Buffers {
		if id.List != ListNotSet && id.List != b.ID {
			continue
		}
		for _, typ := range types {
			if sm := lastSMByType(b.Tail, typ); sm != nil {
				if last == nil || sm.Idx > last.Idx {
					last = sm
				}
			}
		}
	}

	for list := 0; list < ListMax; list++ {
		if id.SMLists[list] == nil {
			continue
		}
		if id.List != ListNotSet && id.List != list {
			continue
		}
		for _, typ := range types {
			if sm := lastSMByType(id.SMListsTail[list], typ); sm != nil {
				if last == nil || sm.Idx > last.Idx {
					last = sm
				}
			}
		}
	}
	return last
}

// GetLastSMByListID returns the newest instance of any given type in a
// single list, classical or sticky.
func GetLastSMByListID(s *Signature, list int, types ...KeywordID) *SigMatch {
	var last *SigMatch
	id := s.InitData

	if list >= ListMax {
		for _, b := range id.Buffers {
			if b.ID != list {
				continue
			}
			for _, typ := range types {
				if sm := lastSMByType(b.Tail, typ); sm != nil {
					if last == nil || sm.Idx > last.Idx {
						last = sm
					}
				}
			}
		}
		return last
	}

	tail := id.SMListsTail[list]
	if tail == nil {
		return nil
	}
	for _, typ := range types {
		if sm := lastSMByType(tail, typ); sm != nil {
			if last == nil || sm.Idx > last.Idx {
				last = sm
			}
		}
	}
	return last
}

// GetLastSMByListPtr returns the newest instance of any given type at or
// before the given node.
func GetLastSMByListPtr(from *SigMatch, types ...KeywordID) *SigMatch {
	var last *SigMatch
	for _, typ := range types {
		if sm := lastSMByType(from, typ); sm != nil {
			if last == nil || sm.Idx > last.Idx {
				last = sm
			}
		}
	}
	return last
}

// GetLastSMFromMpmLists returns the newest instance of the given types
// from lists eligible for fast-pattern selection: the payload list and
// every sticky buffer whose type supports MPM.
func GetLastSMFromMpmLists(s *Signature, types ...KeywordID) *SigMatch {
	var last *SigMatch
	id := s.InitData

	for _, b := range id.Buffers {
		bt := BufferTypeByID(b.ID)
		if bt == nil || !bt.SupportsMpm {
			continue
		}
		for _, typ := range types {
			if sm := lastSMByType(b.Tail, typ); sm != nil {
				if last == nil || sm.Idx > last.Idx {
					last = sm
				}
			}
		}
	}
	for _, typ := range types {
		if sm := lastSMByType(id.SMListsTail[ListPmatch], typ); sm != nil {
			if last == nil || sm.Idx > last.Idx {
				last = sm
			}
		}
	}
	return last
}

// GetLastSM returns the newest instance across the whole signature.
func GetLastSM(s *Signature) *SigMatch {
	var last *SigMatch
	id := s.InitData
	for _, b := range id.Buffers {
		if b.Tail != nil && (last == nil || b.Tail.Idx > last.Idx) {
			last = b.Tail
		}
	}
	for list := 0; list < ListMax; list++ {
		if t := id.SMListsTail[list]; t != nil && (last == nil || t.Idx > last.Idx) {
			last = t
		}
	}
	return last
}

// ListSMBelongsTo returns the list id holding the given instance, -1
// when it is not attached.
func ListSMBelongsTo(s *Signature, key *SigMatch) int {
	if key == nil {
		return -1
	}
	id := s.InitData
	for _, b := range id.Buffers {
		for sm := b.Head; sm != nil; sm = sm.Next {
			if sm == key {
				return b.ID
			}
		}
	}
	for list := 0; list < ListMax; list++ {
		for sm := id.SMLists[list]; sm != nil; sm = sm.Next {
			if sm == key {
				return list
			}
		}
	}
	return -1
}
