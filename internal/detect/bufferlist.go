package detect

// BufferSetActiveList makes a sticky buffer the active list: following
// match keywords attach to it until it is reset or switched. Pass
// ListNotSet to reset to the default payload list.
func BufferSetActiveList(e *Engine, s *Signature, list int) error {
	id := s.InitData

	if list == ListNotSet {
		id.List = ListNotSet
		return nil
	}

	// an open buffer of another type with no matches yet is a rule bug
	if id.CurBuf != nil && id.CurBuf.Head == nil && id.CurBuf.ID != list {
		return parseErrorf("buffer %s was set up but has no matches",
			ListToString(id.CurBuf.ID))
	}

	if id.CurBuf != nil && id.CurBuf.ID == list {
		id.List = list
		return nil
	}

	bt := BufferTypeByID(list)
	multi := bt != nil && bt.Multi
	if !multi {
		for _, b := range id.Buffers {
			if b.ID == list && !b.MultiCapable {
				id.CurBuf = b
				id.List = list
				return nil
			}
		}
	}

	b, err := s.expandBuffers()
	if err != nil {
		return err
	}
	b.ID = list
	b.MultiCapable = multi
	if id.Flags&InitForceToClient != 0 {
		b.OnlyTC = true
	}
	if id.Flags&InitForceToServer != 0 {
		b.OnlyTS = true
	}
	id.CurBuf = b
	id.List = list
	return nil
}

// ActiveList resolves the list a match keyword should attach to: the
// sticky list when one is set, otherwise the given default.
func ActiveList(s *Signature, def int) int {
	if s.InitData.List != ListNotSet {
		return s.InitData.List
	}
	return def
}
