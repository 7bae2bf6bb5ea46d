package detect

import (
	"fmt"
	"sort"
	"strings"
)

// KeywordID is the dense id of a registered rule keyword.
type KeywordID uint16

// KeywordFlags control how the option parser treats a keyword.
type KeywordFlags uint16

const (
	// KwNoOpt keywords take no value.
	KwNoOpt KeywordFlags = 1 << iota
	// KwOptionalOpt keywords may or may not have a value.
	KwOptionalOpt
	// KwQuotesMandatory values must be double quoted.
	KwQuotesMandatory
	// KwQuotesOptional values may be double quoted.
	KwQuotesOptional
	// KwHandleNegation lets a leading '!' set the negation flag.
	KwHandleNegation
	// KwSupportDir lets the value start with to_server/to_client.
	KwSupportDir
	// KwSupportFirewall marks keywords tested for firewall rules.
	KwSupportFirewall
	// KwStrictParsing upgrades the keyword's lenient paths to errors.
	KwStrictParsing
	// KwInfoDeprecated logs a deprecation warning on use.
	KwInfoDeprecated
	// KwIPOnlyCompatible keywords keep a rule eligible for the IP-only
	// engine.
	KwIPOnlyCompatible
	// KwPacketMatch marks keywords with a packet-match callback.
	KwPacketMatch
)

// SetupCtx carries the per-invocation option state into a keyword setup
// callback: the normalised value and the negation flag. It exists so
// keyword code never reads transient parser state off the signature.
type SetupCtx struct {
	// Value is the option value with quotes stripped, whitespace
	// trimmed and any leading negation or direction prefix consumed.
	// Empty for value-less options.
	Value string

	// Negated is set when KwHandleNegation consumed a leading '!'.
	Negated bool
}

// KeywordEntry describes one registered rule keyword.
type KeywordEntry struct {
	ID    KeywordID
	Name  string
	Alias string
	Desc  string
	Flags KeywordFlags

	// Setup parses the option value and attaches match instances.
	// It must return nil, a *ParseError, ErrSilent or
	// ErrRequirementsUnmet.
	Setup func(e *Engine, s *Signature, opt *SetupCtx) error

	// Free releases the opaque context of one match instance.
	Free func(ctx interface{})

	// SupportsPrefilter reports whether this keyword can prefilter the
	// given signature.
	SupportsPrefilter func(s *Signature) bool

	// Tables is a bitmap of DetectTable bits the keyword supports;
	// zero means all.
	Tables uint8

	// Alternative names the replacement for a deprecated keyword.
	Alternative string
}

// Process-wide keyword table, populated during init, read-only after.
var (
	keywordTable  []*KeywordEntry
	keywordByName = make(map[string]*KeywordEntry)

	strictAll   bool
	strictNames = make(map[string]bool)
)

// RegisterKeyword adds a keyword to the table and returns its dense id.
// Panics on duplicate names (a compile-time bug).
func RegisterKeyword(kw KeywordEntry) KeywordID {
	if kw.Name == "" {
		panic("detect: keyword name cannot be empty")
	}
	if kw.Setup == nil {
		panic(fmt.Sprintf("detect: keyword %q has no setup callback", kw.Name))
	}
	lower := strings.ToLower(kw.Name)
	if _, exists := keywordByName[lower]; exists {
		panic(fmt.Sprintf("detect: keyword %q already registered", kw.Name))
	}
	kw.ID = KeywordID(len(keywordTable))
	stored := kw
	keywordTable = append(keywordTable, &stored)
	keywordByName[lower] = &stored
	if kw.Alias != "" {
		alias := strings.ToLower(kw.Alias)
		if _, exists := keywordByName[alias]; exists {
			panic(fmt.Sprintf("detect: keyword alias %q already registered", kw.Alias))
		}
		keywordByName[alias] = &stored
	}
	return stored.ID
}

// LookupKeyword resolves a keyword by name or alias, case-insensitive.
func LookupKeyword(name string) *KeywordEntry {
	return keywordByName[strings.ToLower(name)]
}

func keywordByID(id KeywordID) *KeywordEntry {
	if int(id) >= len(keywordTable) {
		return nil
	}
	return keywordTable[id]
}

// KeywordName returns the canonical name for an id.
func KeywordName(id KeywordID) string {
	if kw := keywordByID(id); kw != nil {
		return kw.Name
	}
	return "unknown"
}

// ListKeywords returns all registered keyword names, sorted.
func ListKeywords() []string {
	names := make([]string, 0, len(keywordTable))
	for _, kw := range keywordTable {
		names = append(names, kw.Name)
	}
	sort.Strings(names)
	return names
}

// ApplyStrictOption enables strict parsing globally ("all") or for a
// comma list of keyword names. Names are not checked against the
// registry; an unknown name has no effect.
func ApplyStrictOption(str string) {
	if str == "" {
		return
	}
	if strings.EqualFold(str, "all") {
		strictAll = true
		return
	}
	for _, name := range strings.Split(str, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			strictNames[name] = true
		}
	}
}

// StrictEnabled reports whether a keyword parses strictly.
func StrictEnabled(id KeywordID) bool {
	if strictAll {
		return true
	}
	kw := keywordByID(id)
	if kw == nil {
		return false
	}
	if kw.Flags&KwStrictParsing != 0 {
		return true
	}
	return strictNames[strings.ToLower(kw.Name)]
}
