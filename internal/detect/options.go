package detect

import (
	"errors"
	"strings"
)

// parseOptions drives the option body: one `name[:value];` pair per
// iteration, dispatched to the registered keyword. In the scan pass
// only `requires` and `sid` run; the build pass skips those two.
func (e *Engine) parseOptions(s *Signature, opts string, scanPass bool) error {
	rest := opts
	for rest != "" {
		var err error
		rest, err = e.parseOption(s, rest, scanPass)
		if err != nil {
			return err
		}
		rest = strings.TrimLeft(rest, " \t")
	}
	return nil
}

// parseOption consumes one option from the front of optstr and returns
// the remainder.
func (e *Engine) parseOption(s *Signature, optstr string, scanPass bool) (string, error) {
	optstr = strings.TrimLeft(optstr, " \t")

	// find the end of this option, honouring escaped semicolons
	end := -1
	for i := 0; i < len(optstr); i++ {
		if optstr[i] == ';' && (i == 0 || optstr[i-1] != '\\') {
			end = i
			break
		}
	}
	if end < 0 {
		return "", parseErrorf("no terminating \";\" found")
	}
	option := optstr[:end]
	rest := optstr[end+1:]

	name := option
	value := ""
	hasValue := false
	if i := strings.IndexByte(option, ':'); i >= 0 {
		name = option[:i]
		value = strings.TrimRight(option[i+1:], " \t")
		hasValue = true
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", parseErrorf("empty option name")
	}

	// `requires` and `sid` run in the scan pass only
	scanOnly := strings.EqualFold(name, "requires") || strings.EqualFold(name, "sid")
	if (scanPass && !scanOnly) || (!scanPass && scanOnly) {
		return rest, nil
	}

	kw := LookupKeyword(name)
	if kw == nil {
		return "", parseErrorf("unknown rule keyword %q", name)
	}

	if kw.Flags&(KwNoOpt|KwOptionalOpt) == 0 {
		if !hasValue || value == "" {
			return "", parseErrorf("invalid formatting or malformed option to %s keyword: %q",
				kw.Name, option)
		}
	} else if kw.Flags&KwNoOpt != 0 {
		if hasValue && value != "" {
			return "", parseErrorf("unexpected option to %s keyword: %q", kw.Name, option)
		}
	}

	s.InitData.HasPossiblePrefilter = s.InitData.HasPossiblePrefilter ||
		kw.SupportsPrefilter != nil

	if kw.Flags&KwInfoDeprecated != 0 {
		if kw.Alternative == "" {
			e.log.Warnf("keyword '%s' is deprecated and will be removed soon", kw.Name)
		} else {
			e.log.Warnf("keyword '%s' is deprecated and will be removed soon, use '%s' instead",
				kw.Name, kw.Alternative)
		}
	}

	setup := &SetupCtx{}
	var setupErr error

	if value != "" {
		value = strings.TrimLeft(value, " \t")
		if value == "" {
			return "", parseErrorf("invalid formatting or malformed option to %s keyword: %q",
				kw.Name, option)
		}

		if s.InitData.FirewallRule && kw.Flags&KwSupportFirewall == 0 {
			e.log.Warnf("keyword '%s' has not been tested for firewall rules", kw.Name)
		}

		if kw.Flags&KwHandleNegation != 0 && value[0] == '!' {
			setup.Negated = true
			value = strings.TrimLeft(value[1:], " \t")
			if value == "" {
				return "", parseErrorf("invalid formatting or malformed option to %s keyword: %q",
					kw.Name, option)
			}
		}

		if kw.Flags&KwQuotesMandatory != 0 && value[0] != '"' {
			return "", parseErrorf("invalid formatting to %s keyword: "+
				"value must be double quoted %q", kw.Name, option)
		}

		if kw.Flags&(KwQuotesOptional|KwQuotesMandatory) != 0 && value[0] == '"' {
			value = strings.TrimRight(value, " \t")
			if len(value) < 2 || value[len(value)-1] != '"' {
				return "", parseErrorf("bad option value formatting (possible missing "+
					"semicolon) for keyword %s: %q", kw.Name, value)
			}
			value = value[1 : len(value)-1]
			if value == "" {
				return "", parseErrorf("bad input for keyword %s: empty quoted value", kw.Name)
			}
		} else if value[0] == '"' {
			return "", parseErrorf("quotes on %s keyword that doesn't support them: %q",
				kw.Name, option)
		}

		if kw.Flags&KwSupportDir != 0 {
			var err error
			value, err = e.setupDirection(s, value, kw.Flags&KwOptionalOpt != 0)
			if err != nil {
				return "", parseErrorf("%s failed to setup direction: %v", kw.Name, err)
			}
		}

		setup.Value = unescapeOption(value)
		setupErr = kw.Setup(e, s, setup)
	} else {
		setupErr = kw.Setup(e, s, setup)
	}

	s.InitData.Flags &^= InitForceToServer | InitForceToClient

	if setupErr != nil {
		if errors.Is(setupErr, ErrSilent) {
			// the keyword message is emitted once per type per build;
			// later occurrences stay silent
			if !e.silentErrors[kw.ID] {
				e.silentErrors[kw.ID] = true
				return "", parseErrorf("%s keyword rejected the rule", kw.Name)
			}
			return "", setupErr
		}
		return "", setupErr
	}

	return rest, nil
}

// unescapeOption resolves `\;` escapes inside an option value.
func unescapeOption(v string) string {
	if !strings.Contains(v, `\;`) {
		return v
	}
	return strings.ReplaceAll(v, `\;`, ";")
}

// setupDirection consumes an optional leading to_server/to_client from
// a keyword value. With onlyDir the value may hold nothing else.
func (e *Engine) setupDirection(s *Signature, value string, onlyDir bool) (string, error) {
	orig := value

	var toClient bool
	switch {
	case strings.HasPrefix(value, "to_client"):
		toClient = true
		value = value[len("to_client"):]
	case strings.HasPrefix(value, "to_server"):
		toClient = false
		value = value[len("to_server"):]
	default:
		if onlyDir {
			return "", parseErrorf("unknown option: only accepts to_server or to_client")
		}
		return orig, nil
	}

	value = strings.TrimLeft(value, " \t")
	if value != "" {
		if onlyDir {
			return "", parseErrorf("unknown option: only accepts to_server or to_client")
		}
		if value[0] != ',' {
			// not a direction prefix after all, leave it to the keyword
			return orig, nil
		}
		value = strings.TrimLeft(value[1:], " \t")
	}

	if toClient {
		s.InitData.Flags |= InitForceToClient
		if s.Flags&FlagTxBothDir == 0 {
			if s.Flags&FlagToServer != 0 {
				return "", parseErrorf("contradictory directions")
			}
			s.Flags |= FlagToClient
		}
	} else {
		s.InitData.Flags |= InitForceToServer
		if s.Flags&FlagTxBothDir == 0 {
			if s.Flags&FlagToClient != 0 {
				return "", parseErrorf("contradictory directions")
			}
			s.Flags |= FlagToServer
		}
	}
	return value, nil
}
