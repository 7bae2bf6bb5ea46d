package detect

// duplicate resolution outcomes
type dupResult int

const (
	dupNew dupResult = iota
	dupDrop
	dupReplaced
)

// resolveDuplicate looks the signature up by (gid, sid). New pairs are
// indexed; a duplicate keeps only the higher revision, unlinking and
// freeing the loser.
func (e *Engine) resolveDuplicate(sig *Signature) dupResult {
	key := SigKey{GID: sig.GID, SID: sig.ID}

	old, ok := e.dups[key]
	if !ok {
		e.dups[key] = sig
		return dupNew
	}

	if sig.Rev <= old.Rev {
		return dupDrop
	}

	e.listUnlink(old)
	freeChain(old)
	e.dups[key] = sig
	return dupReplaced
}

// listPrepend inserts a signature chain (one node, or two for a
// bidirectional rule) at the head of the engine list.
func (e *Engine) listPrepend(sig *Signature) {
	tail := sig
	if sig.Bidirectional && sig.Next != nil {
		sig.Next.prev = sig
		tail = sig.Next
	}
	tail.Next = e.SigList
	if e.SigList != nil {
		e.SigList.prev = tail
	}
	sig.prev = nil
	e.SigList = sig
}

// listUnlink removes a signature chain from the engine list with a
// single splice, whatever the chain's position or length.
func (e *Engine) listUnlink(old *Signature) {
	last := old
	if old.Bidirectional && old.Next != nil {
		last = old.Next
	}
	before := old.prev
	after := last.Next
	if before == nil {
		e.SigList = after
	} else {
		before.Next = after
	}
	if after != nil {
		after.prev = before
	}
	old.prev = nil
	last.Next = nil
}

func freeChain(sig *Signature) {
	if sig.Bidirectional && sig.Next != nil {
		sig.Next.free()
		sig.Next = nil
	}
	sig.free()
}

// AppendSig parses a rule and appends it to the engine's signature
// list, resolving (gid, sid) duplicates by revision. The returned head
// points through Next at the swapped clone for bidirectional rules.
func (e *Engine) AppendSig(rule string) (*Signature, error) {
	sig, err := e.SigInit(rule)
	if err != nil {
		return nil, err
	}
	return e.appendParsed(sig, rule)
}

// AppendFirewallSig is AppendSig under firewall validation rules.
func (e *Engine) AppendFirewallSig(rule string) (*Signature, error) {
	sig, err := e.FirewallRuleNew(rule)
	if err != nil {
		return nil, err
	}
	return e.appendParsed(sig, rule)
}

func (e *Engine) appendParsed(sig *Signature, rule string) (*Signature, error) {
	switch e.resolveDuplicate(sig) {
	case dupDrop:
		e.log.Warnf("duplicate signature %q", rule)
		freeChain(sig)
		return nil, ErrDuplicate
	case dupReplaced:
		e.log.Warnf("signature with newer revision, the older sig is replaced by %q", rule)
	}

	e.listPrepend(sig)

	// transfer ownership: the match lists become compact arrays now
	// that the signature is installed
	sig.flatten()
	if sig.Bidirectional && sig.Next != nil {
		sig.Next.flatten()
	}
	return sig, nil
}
