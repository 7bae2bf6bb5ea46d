package keywords

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/afonot/suricata/internal/detect"
)

func init() {
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "sid",
		Desc:  "set rule id",
		Flags: detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: sidSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "gid",
		Desc:  "set rule group id",
		Flags: detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: gidSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "rev",
		Desc:  "set rule revision",
		Flags: detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: revSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "msg",
		Desc:  "information about the rule and the possible alert",
		Flags: detect.KwQuotesMandatory | detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: msgSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "priority",
		Desc:  "rules with a higher priority are examined first",
		Flags: detect.KwIPOnlyCompatible,
		Setup: prioritySetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "classtype",
		Desc:  "information about the classification of rules and alerts",
		Flags: detect.KwIPOnlyCompatible,
		Setup: classtypeSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "reference",
		Desc:  "direct to places where information about the rule can be found",
		Flags: detect.KwIPOnlyCompatible,
		Setup: referenceSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "metadata",
		Desc:  "free form key value pairs",
		Flags: detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: metadataSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "requires",
		Desc:  "capabilities the rule needs from the engine",
		Flags: detect.KwIPOnlyCompatible | detect.KwSupportFirewall,
		Setup: requiresSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "target",
		Desc:  "indicate to the alert logger which side is the victim",
		Flags: detect.KwIPOnlyCompatible,
		Setup: targetSetup,
	})
}

func sidSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	n, err := parseUint32("sid", opt.Value)
	if err != nil {
		return err
	}
	if n == 0 {
		return parseErrf("sid value 0 is invalid")
	}
	if s.ID != 0 && s.ID != n {
		return parseErrf("duplicated 'sid' keyword detected")
	}
	s.ID = n
	return nil
}

func gidSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	n, err := parseUint32("gid", opt.Value)
	if err != nil {
		return err
	}
	s.GID = n
	return nil
}

func revSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	n, err := parseUint32("rev", opt.Value)
	if err != nil {
		return err
	}
	s.Rev = n
	return nil
}

func msgSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	if opt.Value == "" {
		return parseErrf("empty msg")
	}
	s.Msg = opt.Value
	return nil
}

func prioritySetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	prio, err := strconv.Atoi(opt.Value)
	if err != nil || prio < 0 {
		return parseErrf("invalid priority value '" + opt.Value + "'")
	}
	if s.InitData.Flags&detect.InitPrioExplicit != 0 {
		return parseErrf("duplicated 'priority' keyword detected")
	}
	s.Prio = prio
	s.InitData.Flags |= detect.InitPrioExplicit
	return nil
}

func classtypeSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	name := strings.TrimSpace(opt.Value)
	if name == "" {
		return parseErrf("empty classtype")
	}
	ct := e.Classification().Lookup(name)
	if ct == nil {
		if detect.StrictEnabled(detect.LookupKeyword("classtype").ID) {
			return parseErrf("unknown classtype '" + name + "'")
		}
		e.Log().Warnf("unknown classtype '%s', using the default priority", name)
		return nil
	}
	if s.InitData.Flags&detect.InitPrioExplicit == 0 {
		s.Prio = ct.Priority
	}
	return nil
}

func referenceSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	parts := strings.SplitN(opt.Value, ",", 2)
	if len(parts) != 2 {
		return parseErrf("invalid reference '" + opt.Value + "', expected scheme,value")
	}
	scheme := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if scheme == "" || value == "" {
		return parseErrf("invalid reference '" + opt.Value + "'")
	}
	s.References = append(s.References, detect.Reference{Scheme: scheme, Value: value})
	return nil
}

func metadataSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	for _, entry := range strings.Split(opt.Value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kv := strings.SplitN(entry, " ", 2)
		md := detect.Metadata{Key: strings.TrimSpace(kv[0])}
		if len(kv) == 2 {
			md.Value = strings.TrimSpace(kv[1])
		}
		if md.Key == "" {
			continue
		}
		s.Metadata = append(s.Metadata, md)
	}
	return nil
}

func targetSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	switch strings.TrimSpace(opt.Value) {
	case "src_ip", "dest_ip":
		s.Metadata = append(s.Metadata, detect.Metadata{Key: "target", Value: opt.Value})
		return nil
	default:
		return parseErrf("invalid target value '" + opt.Value + "', only src_ip and dest_ip are supported")
	}
}

// requiresSetup checks the rule's capability requirements against the
// engine configuration. Unmet requirements are a silent skip, not an
// error.
func requiresSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	for _, term := range strings.Split(opt.Value, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		fields := strings.Fields(term)
		switch fields[0] {
		case "feature":
			if len(fields) != 2 {
				return parseErrf("invalid requires feature term '" + term + "'")
			}
			if !e.Cfg().HasFeature(fields[1]) {
				return detect.ErrRequirementsUnmet
			}
		case "version":
			if len(fields) < 3 {
				return parseErrf("invalid requires version term '" + term + "'")
			}
			met, err := versionCompare(e.Cfg().Version, fields[1], strings.Join(fields[2:], ""))
			if err != nil {
				return err
			}
			if !met {
				return detect.ErrRequirementsUnmet
			}
		case "keyword":
			if len(fields) != 2 {
				return parseErrf("invalid requires keyword term '" + term + "'")
			}
			if detect.LookupKeyword(fields[1]) == nil {
				return detect.ErrRequirementsUnmet
			}
		default:
			// unknown requirement kinds are treated as unmet so that
			// future rule features degrade to a skip
			return detect.ErrRequirementsUnmet
		}
	}
	s.InitData.RequiresChecked = true
	return nil
}

func versionCompare(have, op, want string) (bool, error) {
	hv, err := parseVersion(have)
	if err != nil {
		return false, err
	}
	wv, err := parseVersion(want)
	if err != nil {
		return false, err
	}
	cmp := 0
	for i := 0; i < 3; i++ {
		if hv[i] != wv[i] {
			if hv[i] > wv[i] {
				cmp = 1
			} else {
				cmp = -1
			}
			break
		}
	}
	switch op {
	case ">=":
		return cmp >= 0, nil
	case ">":
		return cmp > 0, nil
	case "<=":
		return cmp <= 0, nil
	case "<":
		return cmp < 0, nil
	case "==":
		return cmp == 0, nil
	default:
		return false, parseErrf("invalid requires version operator '" + op + "'")
	}
}

func parseVersion(v string) ([3]int, error) {
	var out [3]int
	parts := strings.SplitN(strings.TrimSpace(v), ".", 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, parseErrf(fmt.Sprintf("invalid version %q", v))
		}
		out[i] = n
	}
	return out, nil
}
