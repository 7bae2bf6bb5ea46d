package detect

import "strings"

// actionStringToFlags maps an action name to its flag set. The reject
// family needs packet-injection capability, checked on the engine.
func (e *Engine) actionStringToFlags(action string) (ActionFlags, error) {
	switch strings.ToLower(action) {
	case "alert":
		return ActionAlert, nil
	case "drop":
		return ActionDrop | ActionAlert, nil
	case "pass":
		return ActionPass, nil
	case "reject", "rejectsrc":
		if err := e.validateRejectAction(action); err != nil {
			return 0, err
		}
		return ActionReject | ActionDrop | ActionAlert, nil
	case "rejectdst":
		if err := e.validateRejectAction(action); err != nil {
			return 0, err
		}
		return ActionRejectDst | ActionDrop | ActionAlert, nil
	case "rejectboth":
		if err := e.validateRejectAction(action); err != nil {
			return 0, err
		}
		return ActionRejectBoth | ActionDrop | ActionAlert, nil
	case "config":
		return ActionConfig, nil
	case "accept":
		return ActionAccept, nil
	default:
		return 0, parseErrorf("an invalid action %q was given", action)
	}
}

// validateRejectAction refuses reject rules when the process lacks
// raw-packet injection capability.
func (e *Engine) validateRejectAction(action string) error {
	if !e.cfg.RejectCapability {
		return parseErrorf("raw packet injection capability is required for "+
			"action %q but is not available", action)
	}
	return nil
}

// parseAction interprets the action header field, including the
// optional `:<scope>` suffix, and applies the firewall restrictions.
func (e *Engine) parseAction(s *Signature, actionIn string) error {
	action := actionIn
	scope := ""
	if i := strings.IndexByte(actionIn, ':'); i >= 0 {
		action = actionIn[:i]
		scope = actionIn[i+1:]
	}
	if action == "" {
		return parseErrorf("invalid action specification %q", actionIn)
	}

	flags, err := e.actionStringToFlags(action)
	if err != nil {
		return err
	}

	if scope != "" {
		var scopeFlags ActionScope
		switch {
		case flags&(ActionDrop|ActionPass) != 0:
			switch scope {
			case "packet":
				scopeFlags = ScopePacket
			case "flow":
				scopeFlags = ScopeFlow
			default:
				return parseErrorf("invalid action scope %q in action %q: "+
					"only 'packet' and 'flow' allowed", scope, actionIn)
			}
		case flags&ActionAccept != 0:
			switch scope {
			case "packet":
				scopeFlags = ScopePacket
			case "flow":
				scopeFlags = ScopeFlow
			case "tx":
				scopeFlags = ScopeTx
			case "hook":
				scopeFlags = ScopeHook
			default:
				return parseErrorf("invalid action scope %q in action %q: "+
					"only 'packet', 'flow', 'tx' and 'hook' allowed", scope, actionIn)
			}
		case flags&ActionConfig != 0:
			if scope != "packet" {
				return parseErrorf("invalid action scope %q in action %q: "+
					"only 'packet' allowed", scope, actionIn)
			}
			scopeFlags = ScopePacket
		default:
			return parseErrorf("invalid action scope %q in action %q: scope only "+
				"supported for actions 'drop', 'pass' and 'accept'", scope, actionIn)
		}
		s.ActionScope = scopeFlags
	}

	if s.InitData.FirewallRule && s.ActionScope == ScopeNotSet {
		return parseErrorf("firewall rules require setting an explicit action scope")
	}
	if !s.InitData.FirewallRule && flags&ActionAccept != 0 {
		return parseErrorf("'accept' action only supported for firewall rules")
	}
	if s.InitData.FirewallRule && flags&ActionPass != 0 {
		return parseErrorf("'pass' action not supported for firewall rules")
	}

	s.Action = flags
	return nil
}
