package detect

// retrieveFPForSig runs the fast-pattern picker: it selects the most
// selective content across the MPM-capable lists and records it in
// InitData.MpmSM, or leaves it nil when no content qualifies.
func retrieveFPForSig(s *Signature) {
	var best *SigMatch
	var bestCd *ContentData

	consider := func(sm *SigMatch, list int) {
		cd, ok := sm.Ctx.(*ContentData)
		if !ok || len(cd.Pattern) == 0 {
			return
		}
		// negated contents can not prefilter
		if cd.Flags&ContentNegated != 0 {
			return
		}
		if best == nil {
			best, bestCd = sm, cd
			s.InitData.MpmSMList = list
			return
		}
		// an explicit fast_pattern always wins
		if cd.Flags&ContentFastPattern != 0 && bestCd.Flags&ContentFastPattern == 0 {
			best, bestCd = sm, cd
			s.InitData.MpmSMList = list
			return
		}
		if bestCd.Flags&ContentFastPattern != 0 {
			return
		}
		if len(cd.Pattern) > len(bestCd.Pattern) {
			best, bestCd = sm, cd
			s.InitData.MpmSMList = list
		}
	}

	for sm := s.InitData.SMLists[ListPmatch]; sm != nil; sm = sm.Next {
		consider(sm, ListPmatch)
	}
	for _, b := range s.InitData.Buffers {
		bt := BufferTypeByID(b.ID)
		if bt == nil || !bt.SupportsMpm {
			continue
		}
		for sm := b.Head; sm != nil; sm = sm.Next {
			consider(sm, b.ID)
		}
	}

	s.InitData.MpmSM = best
}

// setupPrefilter chooses the signature's prefilter: an explicit
// keyword-provided one, the fast-pattern picker, or in auto mode any
// prefilter-capable keyword with the smallest type.
func (e *Engine) setupPrefilter(s *Signature) {
	if s.InitData.PrefilterSM != nil {
		if s.InitData.PrefilterSM.Type == ContentKeywordID() {
			retrieveFPForSig(s)
			if s.InitData.MpmSM != nil {
				s.Flags |= FlagPrefilter
				return
			}
			// fall through: the mpm may not support the pattern
		} else {
			s.Flags |= FlagPrefilter
			return
		}
	} else {
		retrieveFPForSig(s)
		if s.InitData.MpmSM != nil {
			s.Flags |= FlagPrefilter
			return
		}
	}

	if !s.InitData.HasPossiblePrefilter {
		return
	}

	if e.cfg.PrefilterAuto() {
		best := KeywordID(0xffff)
		for i := 0; i < ListMax; i++ {
			for sm := s.InitData.SMLists[i]; sm != nil; sm = sm.Next {
				kw := keywordByID(sm.Type)
				if kw == nil || kw.SupportsPrefilter == nil {
					continue
				}
				if kw.SupportsPrefilter(s) && sm.Type < best {
					best = sm.Type
				}
			}
		}
		if best == 0xffff {
			return
		}
		for i := 0; i < ListMax; i++ {
			for sm := s.InitData.SMLists[i]; sm != nil; sm = sm.Next {
				if sm.Type == best {
					s.InitData.PrefilterSM = sm
					s.Flags |= FlagPrefilter
					e.log.Debugf("sid %d: prefilter is on %q", s.ID, KeywordName(sm.Type))
					return
				}
			}
		}
	}
}
