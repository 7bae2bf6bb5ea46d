package detect

import "testing"

func testKeywordID(t *testing.T, name string) KeywordID {
	t.Helper()
	if kw := LookupKeyword(name); kw != nil {
		return kw.ID
	}
	return RegisterKeyword(KeywordEntry{
		Name:  name,
		Setup: func(e *Engine, s *Signature, opt *SetupCtx) error { return nil },
	})
}

func TestAppendSigMatchClassicalList(t *testing.T) {
	s := sigAlloc()
	id := testKeywordID(t, "test_sm_classical")

	a, err := AppendSigMatch(s, id, nil, ListMatch)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	b, err := AppendSigMatch(s, id, nil, ListMatch)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if s.InitData.SMLists[ListMatch] != a || s.InitData.SMListsTail[ListMatch] != b {
		t.Error("head/tail not maintained")
	}
	if b.Idx != a.Idx+1 {
		t.Errorf("idx not monotonic: %d then %d", a.Idx, b.Idx)
	}
	if a.Next != b || b.Prev != a {
		t.Error("links not maintained")
	}
}

func TestAppendSigMatchOpensBuffer(t *testing.T) {
	s := sigAlloc()
	id := testKeywordID(t, "test_sm_buffer")
	list := RegisterBufferType(BufferType{Name: "test.sm.buffer"})

	if _, err := AppendSigMatch(s, id, nil, list); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if len(s.InitData.Buffers) != 1 {
		t.Fatalf("expected one buffer, got %d", len(s.InitData.Buffers))
	}
	b := s.InitData.Buffers[0]
	if b.ID != list || !b.SMInit || b.Head == nil {
		t.Error("buffer not initialized from match keyword")
	}
	if s.InitData.CurBuf != b {
		t.Error("curbuf not set")
	}

	// same list appends to the same buffer
	if _, err := AppendSigMatch(s, id, nil, list); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if len(s.InitData.Buffers) != 1 {
		t.Error("existing buffer should be reused")
	}
}

func TestAppendSigMatchBufferCap(t *testing.T) {
	s := sigAlloc()
	id := testKeywordID(t, "test_sm_cap")
	list := RegisterBufferType(BufferType{Name: "test.sm.cap", Multi: true})

	for i := 0; i < 64; i++ {
		if _, err := AppendSigMatch(s, id, nil, list); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		// force a fresh buffer per append
		s.InitData.CurBuf = nil
	}
	if _, err := AppendSigMatch(s, id, nil, list); err == nil {
		t.Fatal("expected buffer vector cap error")
	}
}

func TestTransferSigMatchPreservesIdx(t *testing.T) {
	s := sigAlloc()
	id := testKeywordID(t, "test_sm_transfer")

	if _, err := AppendSigMatch(s, id, nil, ListPmatch); err != nil {
		t.Fatal(err)
	}
	sm, err := AppendSigMatch(s, id, nil, ListPmatch)
	if err != nil {
		t.Fatal(err)
	}
	idx := sm.Idx

	b, err := s.expandBuffers()
	if err != nil {
		t.Fatal(err)
	}
	b.ID = ListMax

	transferSigMatch(sm,
		&s.InitData.SMLists[ListPmatch], &s.InitData.SMListsTail[ListPmatch],
		&b.Head, &b.Tail)

	if sm.Idx != idx {
		t.Error("transfer must preserve idx")
	}
	if b.Head != sm || b.Tail != sm {
		t.Error("destination links wrong")
	}
	if s.InitData.SMListsTail[ListPmatch] == sm {
		t.Error("source tail not updated")
	}
	if got := ListSMBelongsTo(s, sm); got != ListMax {
		t.Errorf("expected list %d, got %d", ListMax, got)
	}
}

func TestGetLastSMAcrossLists(t *testing.T) {
	s := sigAlloc()
	idA := testKeywordID(t, "test_sm_last_a")
	idB := testKeywordID(t, "test_sm_last_b")

	first, _ := AppendSigMatch(s, idA, nil, ListMatch)
	second, _ := AppendSigMatch(s, idB, nil, ListPmatch)
	third, _ := AppendSigMatch(s, idA, nil, ListPmatch)

	if got := GetLastSM(s); got != third {
		t.Error("GetLastSM should return the newest instance")
	}
	if got := GetLastSMFromLists(s, idA); got != third {
		t.Error("cross-list query should resolve ties by idx")
	}
	if got := GetLastSMByListID(s, ListMatch, idA); got != first {
		t.Error("per-list query should stay in its list")
	}
	if got := GetLastSMByListPtr(second, idA, idB); got != second {
		t.Error("by-pointer query should search backwards from the node")
	}
	if got := GetLastSMFromLists(s, idB); got != second {
		t.Error("type filter failed")
	}
}

func TestRemoveSigMatch(t *testing.T) {
	s := sigAlloc()
	id := testKeywordID(t, "test_sm_remove")

	a, _ := AppendSigMatch(s, id, nil, ListMatch)
	b, _ := AppendSigMatch(s, id, nil, ListMatch)
	c, _ := AppendSigMatch(s, id, nil, ListMatch)

	RemoveSigMatch(s, b, ListMatch)
	if a.Next != c || c.Prev != a {
		t.Error("middle removal should relink neighbours")
	}
	RemoveSigMatch(s, a, ListMatch)
	if s.InitData.SMLists[ListMatch] != c {
		t.Error("head removal should advance the head")
	}
	RemoveSigMatch(s, c, ListMatch)
	if s.InitData.SMLists[ListMatch] != nil || s.InitData.SMListsTail[ListMatch] != nil {
		t.Error("emptied list should clear head and tail")
	}
}
